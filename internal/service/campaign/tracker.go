package campaign

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const (
	viewKeyPrefix  = "flashsale:views:"
	clickKeyPrefix = "flashsale:clicks:"
)

// Tracker counts campaign page views and buy-button clicks in Redis.
// Counters are advisory analytics input; losing them loses nothing but
// funnel numbers.
type Tracker struct {
	client *goredis.Client
}

// NewTracker creates a tracker
func NewTracker(client *goredis.Client) *Tracker {
	return &Tracker{client: client}
}

// RecordView increments the view counter
func (t *Tracker) RecordView(ctx context.Context, campaignID uint64) error {
	return t.client.Incr(ctx, fmt.Sprintf("%s%d", viewKeyPrefix, campaignID)).Err()
}

// RecordClick increments the click counter
func (t *Tracker) RecordClick(ctx context.Context, campaignID uint64) error {
	return t.client.Incr(ctx, fmt.Sprintf("%s%d", clickKeyPrefix, campaignID)).Err()
}

// Counts returns the view and click counters
func (t *Tracker) Counts(ctx context.Context, campaignID uint64) (views, clicks int64, err error) {
	pipe := t.client.Pipeline()
	viewCmd := pipe.Get(ctx, fmt.Sprintf("%s%d", viewKeyPrefix, campaignID))
	clickCmd := pipe.Get(ctx, fmt.Sprintf("%s%d", clickKeyPrefix, campaignID))
	if _, err = pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return 0, 0, err
	}

	views, _ = viewCmd.Int64()
	clicks, _ = clickCmd.Int64()
	return views, clicks, nil
}
