package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/pkg/lock"
	"flashsale/pkg/log"
	"flashsale/pkg/queue"
)

// Sweeper periodically classifies all unfinished campaigns and publishes an
// event for every observed status transition. It never writes status back
// to the campaign store; status stays a read-time projection.
type Sweeper struct {
	campaigns        repository.CampaignRepository
	bus              queue.EventBus
	leaderLock       *lock.RedisLock
	interval         time.Duration
	endingSoonWindow time.Duration
	clock            func() time.Time

	mu       sync.Mutex
	last     map[uint64]Status
	lowStock map[uint64]bool

	stopCh  chan struct{}
	stopped sync.Once
}

// SweeperOption configures optional sweeper behavior
type SweeperOption func(*Sweeper)

// WithLeaderLock makes sweep cycles mutually exclusive across processes
func WithLeaderLock(l *lock.RedisLock) SweeperOption {
	return func(s *Sweeper) { s.leaderLock = l }
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.clock = clock }
}

// NewSweeper creates a lifecycle sweeper
func NewSweeper(
	campaigns repository.CampaignRepository,
	bus queue.EventBus,
	interval time.Duration,
	endingSoonWindow time.Duration,
	opts ...SweeperOption,
) *Sweeper {
	s := &Sweeper{
		campaigns:        campaigns,
		bus:              bus,
		interval:         interval,
		endingSoonWindow: endingSoonWindow,
		clock:            time.Now,
		last:             make(map[uint64]Status),
		lowStock:         make(map[uint64]bool),
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweep loop until Stop or context cancellation
func (s *Sweeper) Start(ctx context.Context) {
	log.WithFields(map[string]interface{}{
		"interval": s.interval.String(),
	}).Info("Starting lifecycle sweeper")

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				log.Info("Lifecycle sweeper stopped")
				return
			case <-ctx.Done():
				log.Info("Lifecycle sweeper context cancelled")
				return
			case <-ticker.C:
				if err := s.SweepOnce(ctx); err != nil {
					log.WithError(err).Error("Lifecycle sweep failed")
				}
			}
		}
	}()
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	s.stopped.Do(func() { close(s.stopCh) })
}

// SweepOnce classifies all unfinished campaigns once and emits transition
// events. Exported so tests can drive sweeps without the ticker.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	if s.leaderLock != nil {
		if err := s.leaderLock.Lock(ctx); err != nil {
			if errors.Is(err, lock.ErrLockFailed) {
				// Another instance is sweeping this period
				return nil
			}
			return err
		}
		defer func() {
			if err := s.leaderLock.Unlock(ctx); err != nil {
				log.WithError(err).Warn("Failed to release sweep lock")
			}
		}()
	}

	now := s.clock()
	cutoff := now.Add(-2 * s.interval)

	campaigns, err := s.campaigns.ListUnfinished(ctx, cutoff)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uint64]bool, len(campaigns))
	for _, c := range campaigns {
		seen[c.ID] = true
		s.observe(ctx, c, now)
	}

	// Forget campaigns that fell out of the sweep window
	for id := range s.last {
		if !seen[id] {
			delete(s.last, id)
			delete(s.lowStock, id)
		}
	}

	return nil
}

// observe compares the freshly classified status with the previous sweep's
// and emits the transition event. The first observation only records a
// baseline; emitting on it would replay old transitions after a restart.
func (s *Sweeper) observe(ctx context.Context, c *model.Campaign, now time.Time) {
	status := Classify(c, now, s.endingSoonWindow)
	prev, known := s.last[c.ID]
	s.last[c.ID] = status

	if known && status != prev {
		s.emitTransition(ctx, c, status, now)
	}

	// Advisory low-stock alert, once per campaign
	if status.Purchasable() && c.LowStockThresholdPct > 0 &&
		c.SoldPct() >= float64(c.LowStockThresholdPct) && !s.lowStock[c.ID] {
		s.lowStock[c.ID] = true
		s.publish(ctx, model.TopicLowStock, &model.CampaignEvent{
			Topic:        model.TopicLowStock,
			CampaignID:   c.ID,
			SoldQuantity: c.SoldQuantity,
			RemainingPct: c.RemainingPct(),
			OccurredAt:   now,
		})
	}
}

func (s *Sweeper) emitTransition(ctx context.Context, c *model.Campaign, status Status, now time.Time) {
	var topic string
	switch status {
	case StatusActive:
		topic = model.TopicBecameActive
	case StatusEndingSoon:
		topic = model.TopicEndingSoon
	case StatusSoldOut:
		topic = model.TopicSoldOut
	case StatusEnded:
		topic = model.TopicEnded
	default:
		// scheduled is never entered from another status
		return
	}

	s.publish(ctx, topic, &model.CampaignEvent{
		Topic:            topic,
		CampaignID:       c.ID,
		SoldQuantity:     c.SoldQuantity,
		RemainingSeconds: c.RemainingSeconds(now),
		OccurredAt:       now,
	})

	log.WithFields(map[string]interface{}{
		"campaign_id": c.ID,
		"status":      string(status),
	}).Info("Campaign lifecycle transition")
}

func (s *Sweeper) publish(ctx context.Context, topic string, event *model.CampaignEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, topic, payload); err != nil {
		log.WithFields(map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		}).Error("Failed to publish lifecycle event")
	}
}
