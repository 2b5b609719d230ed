package campaign

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"flashsale/internal/repository"
)

// IDFilter is a bloom filter over known campaign ids. The reservation hot
// path consults it before touching the store so floods of requests for
// made-up campaign ids never reach the database. False positives fall
// through to a store lookup; false negatives cannot happen for ids added
// after the filter was warmed.
type IDFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewIDFilter creates a filter sized for the expected campaign count
func NewIDFilter(expectedItems uint, falsePositiveRate float64) *IDFilter {
	return &IDFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

func idBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

// Add records a campaign id
func (f *IDFilter) Add(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.Add(idBytes(id))
}

// MightContain reports whether the id may be known. False is definitive.
func (f *IDFilter) MightContain(id uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.Test(idBytes(id))
}

// Warm loads every stored campaign id into the filter. Called once at
// startup; ids created afterwards are added as they are created.
func (f *IDFilter) Warm(ctx context.Context, campaigns repository.CampaignRepository) error {
	// The zero cutoff keeps every campaign in view, ended ones included,
	// so lookups for old campaigns still pass through to the store.
	all, err := campaigns.ListUnfinished(ctx, time.Time{})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range all {
		f.filter.Add(idBytes(c.ID))
	}
	return nil
}
