package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// SoldOutCache is a local advisory cache of exhausted campaigns so the hot
// path can fail fast without touching the store. Entries expire on their
// own and are invalidated when a release returns stock; the cache never
// admits a purchase, it only short-circuits rejections.
type SoldOutCache struct {
	cache *bigcache.BigCache
}

// NewSoldOutCache creates a sold-out cache with the given entry lifetime
func NewSoldOutCache(ttl time.Duration) (*SoldOutCache, error) {
	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to create sold-out cache: %w", err)
	}
	return &SoldOutCache{cache: cache}, nil
}

func (c *SoldOutCache) key(campaignID uint64) string {
	return fmt.Sprintf("sold_out:%d", campaignID)
}

// Mark records a campaign as exhausted
func (c *SoldOutCache) Mark(campaignID uint64) {
	_ = c.cache.Set(c.key(campaignID), []byte("1"))
}

// IsSoldOut reports whether the campaign was recently seen exhausted
func (c *SoldOutCache) IsSoldOut(campaignID uint64) bool {
	_, err := c.cache.Get(c.key(campaignID))
	return err == nil
}

// Invalidate clears the marker, typically after a release returned stock
func (c *SoldOutCache) Invalidate(campaignID uint64) {
	if err := c.cache.Delete(c.key(campaignID)); err != nil &&
		!errors.Is(err, bigcache.ErrEntryNotFound) {
		return
	}
}
