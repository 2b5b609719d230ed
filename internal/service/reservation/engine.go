package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"flashsale/internal/config"
	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/pkg/breaker"
	"flashsale/pkg/log"
	"flashsale/pkg/queue"
	"flashsale/pkg/snowflake"
)

const (
	breakerStore = "campaign_store"
	breakerQuota = "quota_redis"

	resultKeyPrefix    = "flashsale:result:"
	tombstoneKeyPrefix = "flashsale:released:"

	tombstoneTTL = 24 * time.Hour
)

// KnownCampaigns answers "might this campaign id exist" without a store
// round trip. False is definitive, true may be a false positive.
type KnownCampaigns interface {
	MightContain(id uint64) bool
}

// Engine is the reservation core. TryReserve admits at most max_quantity
// units per campaign and limit_per_user units per user, under any
// concurrency, with exactly-once semantics per idempotency key. Release
// returns stock and is idempotent.
//
// The durable store is authoritative for both counters; Redis carries the
// atomic per-user quota guard, the idempotent result cache and release
// tombstones. Local caches only ever short-circuit rejections.
type Engine struct {
	campaigns    repository.CampaignRepository
	reservations repository.ReservationRepository
	client       *goredis.Client
	quota        *QuotaGuard
	soldOut      *SoldOutCache
	bus          queue.EventBus
	breakers     *breaker.Manager
	idGen        *snowflake.IDGenerator
	known        KnownCampaigns
	cfg          config.FlashSaleConfig
	clock        func() time.Time
}

// Option configures optional engine behavior
type Option func(*Engine)

// WithKnownCampaigns installs a membership filter consulted before any
// store lookup
func WithKnownCampaigns(k KnownCampaigns) Option {
	return func(e *Engine) { e.known = k }
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine creates a reservation engine
func NewEngine(
	campaigns repository.CampaignRepository,
	reservations repository.ReservationRepository,
	client *goredis.Client,
	bus queue.EventBus,
	breakers *breaker.Manager,
	idGen *snowflake.IDGenerator,
	cfg config.FlashSaleConfig,
	opts ...Option,
) (*Engine, error) {
	soldOut, err := NewSoldOutCache(cfg.SoldOutCacheTTL)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		campaigns:    campaigns,
		reservations: reservations,
		client:       client,
		quota:        NewQuotaGuard(client, cfg.QuotaTTL),
		soldOut:      soldOut,
		bus:          bus,
		breakers:     breakers,
		idGen:        idGen,
		cfg:          cfg,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TryReserve attempts to reserve quantity units of the campaign for the
// user. Retrying with the same idempotency key returns the reservation
// already created, never a second one.
func (e *Engine) TryReserve(ctx context.Context, campaignID, userID uint64, quantity int, idempotencyKey string) (*model.Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if e.known != nil && !e.known.MightContain(campaignID) {
		return nil, ErrCampaignNotFound
	}

	// Fast path for retries: the cached outcome of a finished attempt.
	if cached := e.cachedResult(ctx, campaignID, userID, idempotencyKey); cached != nil {
		return cached, nil
	}

	// Durable idempotency check runs before every rejection gate so a
	// retry of a reservation that succeeded keeps succeeding even after
	// the campaign sold out or ended.
	existing, err := e.findExisting(ctx, campaignID, userID, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.cacheResult(ctx, existing)
		return existing, nil
	}

	if e.soldOut.IsSoldOut(campaignID) {
		return nil, ErrSoldOut
	}

	campaign, err := e.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if err := e.admit(campaign, quantity); err != nil {
		return nil, err
	}

	// Atomic per-user quota guard, seeded from the durable sum so the cap
	// survives counter eviction.
	acquired, err := e.acquireQuota(ctx, campaign, userID, quantity)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrPerUserLimitExceeded
	}

	reservation, err := e.commit(ctx, campaign, userID, quantity, idempotencyKey)
	if err != nil {
		return nil, err
	}

	e.cacheResult(ctx, reservation)
	e.afterReserve(ctx, campaignID)
	return reservation, nil
}

// admit runs the pure rejection gates against a loaded campaign
func (e *Engine) admit(c *model.Campaign, quantity int) error {
	if !c.Enabled {
		return ErrDisabled
	}

	now := e.clock()
	if now.Before(c.StartTime) || now.After(c.EndTime) {
		return ErrCampaignNotPurchasable
	}
	if c.IsExhausted() {
		e.soldOut.Mark(c.ID)
		return ErrSoldOut
	}

	if quantity > c.LimitPerUser {
		return ErrPerPurchaseLimitExceeded
	}
	return nil
}

func (e *Engine) acquireQuota(ctx context.Context, c *model.Campaign, userID uint64, quantity int) (bool, error) {
	seed := 0
	_, exists, err := e.quota.Current(ctx, c.ID, userID)
	if err != nil {
		return false, e.quotaUnavailable(err)
	}
	if !exists {
		if err := e.withStore(ctx, func(ctx context.Context) error {
			var serr error
			seed, serr = e.reservations.SumUserQuantity(ctx, c.ID, userID)
			return serr
		}); err != nil {
			return false, err
		}
	}

	ok, err := e.quota.Acquire(ctx, c.ID, userID, quantity, c.LimitPerUser, seed)
	if err != nil {
		return false, e.quotaUnavailable(err)
	}
	return ok, nil
}

// commit performs the durable two-step: conditional stock increment, then
// reservation insert. Every failure after the increment puts the stock and
// the quota counter back.
func (e *Engine) commit(ctx context.Context, c *model.Campaign, userID uint64, quantity int, idempotencyKey string) (*model.Reservation, error) {
	if err := e.withStore(ctx, func(ctx context.Context) error {
		return e.campaigns.AtomicIncrementSold(ctx, c.ID, quantity)
	}); err != nil {
		e.releaseQuota(ctx, c.ID, userID, quantity)
		switch {
		case errors.Is(err, repository.ErrStockExceeded):
			e.soldOut.Mark(c.ID)
			e.publishStockEvent(ctx, model.TopicSoldOut, c.ID)
			return nil, ErrSoldOut
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrCampaignNotFound
		default:
			return nil, err
		}
	}

	reservation := &model.Reservation{
		ID:             e.idGen.NextUint64(),
		CampaignID:     c.ID,
		UserID:         userID,
		Quantity:       quantity,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      e.clock(),
	}

	if err := e.withStore(ctx, func(ctx context.Context) error {
		return e.reservations.Create(ctx, reservation)
	}); err != nil {
		e.compensateStock(ctx, c.ID, quantity)
		e.releaseQuota(ctx, c.ID, userID, quantity)

		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent retry with the same key won the insert race.
			existing, lookupErr := e.findExisting(ctx, c.ID, userID, idempotencyKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return existing, nil
			}
			return nil, ErrStorageUnavailable
		}
		return nil, err
	}

	return reservation, nil
}

// Release returns the reservation's quantity to the campaign. Releasing an
// already released reservation is a distinct outcome from releasing an
// unknown one, even though the row is gone either way.
func (e *Engine) Release(ctx context.Context, reservationID uint64) error {
	if e.isTombstoned(ctx, reservationID) {
		return ErrAlreadyReleased
	}

	var reservation *model.Reservation
	err := e.withStore(ctx, func(ctx context.Context) error {
		var rerr error
		reservation, rerr = e.reservations.GetByID(ctx, reservationID)
		return rerr
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReservationNotFound
		}
		return err
	}

	var affected int64
	err = e.withStore(ctx, func(ctx context.Context) error {
		var derr error
		affected, derr = e.reservations.Delete(ctx, reservationID)
		return derr
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		// A concurrent release removed the row between lookup and delete;
		// that release owns the stock return.
		return ErrAlreadyReleased
	}

	if err := e.withStore(ctx, func(ctx context.Context) error {
		return e.campaigns.DecrementSold(ctx, reservation.CampaignID, reservation.Quantity)
	}); err != nil {
		// The row is already gone; surface the failure rather than
		// pretending the stock came back.
		log.WithFields(map[string]interface{}{
			"reservation_id": reservationID,
			"campaign_id":    reservation.CampaignID,
			"error":          err.Error(),
		}).Error("Failed to return stock on release")
		return err
	}

	e.releaseQuota(ctx, reservation.CampaignID, reservation.UserID, reservation.Quantity)
	e.soldOut.Invalidate(reservation.CampaignID)
	e.tombstone(ctx, reservationID)
	e.dropCachedResult(ctx, reservation)
	e.publishStockEvent(ctx, model.TopicStockChanged, reservation.CampaignID)

	return nil
}

// loadCampaign reads the campaign through the retry and breaker wrapper
func (e *Engine) loadCampaign(ctx context.Context, id uint64) (*model.Campaign, error) {
	var campaign *model.Campaign
	err := e.withStore(ctx, func(ctx context.Context) error {
		var gerr error
		campaign, gerr = e.campaigns.GetByID(ctx, id)
		return gerr
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return campaign, nil
}

func (e *Engine) findExisting(ctx context.Context, campaignID, userID uint64, key string) (*model.Reservation, error) {
	var reservation *model.Reservation
	err := e.withStore(ctx, func(ctx context.Context) error {
		var gerr error
		reservation, gerr = e.reservations.GetByIdempotencyKey(ctx, campaignID, userID, key)
		return gerr
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return reservation, nil
}

// withStore runs a store operation with a per-attempt timeout, a circuit
// breaker and bounded exponential backoff. Business outcomes pass through
// untouched and count as breaker successes; only transient failures retry,
// and what is still failing after the last attempt surfaces as
// ErrStorageUnavailable.
func (e *Engine) withStore(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := e.cfg.RetryBackoff

	var err error
	for attempt := 0; attempt < e.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		var definitive error
		err = e.breakers.Execute(ctx, breakerStore, func() error {
			opCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
			defer cancel()
			ferr := fn(opCtx)
			if ferr != nil && isBusinessOutcome(ferr) {
				// A definitive store answer is a completed round trip;
				// only faults may trip the breaker.
				definitive = ferr
				return nil
			}
			return ferr
		})
		if err == nil {
			return definitive
		}
		if errors.Is(err, breaker.ErrOpen) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Store operation failed, retrying")
	}

	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// isBusinessOutcome reports whether the error is a definitive store answer
// rather than a transient failure
func isBusinessOutcome(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrStockExceeded) ||
		errors.Is(err, repository.ErrDuplicate)
}

func (e *Engine) quotaUnavailable(err error) error {
	log.WithError(err).Error("Quota guard unavailable")
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// compensateStock undoes a stock increment whose reservation never landed
func (e *Engine) compensateStock(ctx context.Context, campaignID uint64, quantity int) {
	if err := e.withStore(ctx, func(ctx context.Context) error {
		return e.campaigns.DecrementSold(ctx, campaignID, quantity)
	}); err != nil {
		log.WithFields(map[string]interface{}{
			"campaign_id": campaignID,
			"quantity":    quantity,
			"error":       err.Error(),
		}).Error("Failed to compensate stock increment")
	}
}

func (e *Engine) releaseQuota(ctx context.Context, campaignID, userID uint64, quantity int) {
	if err := e.quota.Release(ctx, campaignID, userID, quantity); err != nil {
		log.WithFields(map[string]interface{}{
			"campaign_id": campaignID,
			"user_id":     userID,
			"error":       err.Error(),
		}).Warn("Failed to release quota counter")
	}
}

// afterReserve publishes post-commit advisory events. All best effort.
func (e *Engine) afterReserve(ctx context.Context, campaignID uint64) {
	campaign, err := e.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		e.publishStockEvent(ctx, model.TopicStockChanged, campaignID)
		return
	}

	e.publish(ctx, model.TopicStockChanged, &model.CampaignEvent{
		Topic:        model.TopicStockChanged,
		CampaignID:   campaignID,
		SoldQuantity: campaign.SoldQuantity,
		RemainingPct: campaign.RemainingPct(),
		OccurredAt:   e.clock(),
	})

	if campaign.IsExhausted() {
		e.soldOut.Mark(campaignID)
		e.publish(ctx, model.TopicSoldOut, &model.CampaignEvent{
			Topic:        model.TopicSoldOut,
			CampaignID:   campaignID,
			SoldQuantity: campaign.SoldQuantity,
			OccurredAt:   e.clock(),
		})
	}
}

func (e *Engine) publishStockEvent(ctx context.Context, topic string, campaignID uint64) {
	e.publish(ctx, topic, &model.CampaignEvent{
		Topic:      topic,
		CampaignID: campaignID,
		OccurredAt: e.clock(),
	})
}

func (e *Engine) publish(ctx context.Context, topic string, event *model.CampaignEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, topic, payload); err != nil {
		log.WithFields(map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		}).Warn("Failed to publish reservation event")
	}
}

func resultKey(campaignID, userID uint64, idempotencyKey string) string {
	return fmt.Sprintf("%s%d:%d:%s", resultKeyPrefix, campaignID, userID, idempotencyKey)
}

func (e *Engine) cachedResult(ctx context.Context, campaignID, userID uint64, key string) *model.Reservation {
	data, err := e.client.Get(ctx, resultKey(campaignID, userID, key)).Bytes()
	if err != nil {
		return nil
	}
	var reservation model.Reservation
	if err := json.Unmarshal(data, &reservation); err != nil {
		return nil
	}
	return &reservation
}

func (e *Engine) cacheResult(ctx context.Context, reservation *model.Reservation) {
	data, err := json.Marshal(reservation)
	if err != nil {
		return
	}
	key := resultKey(reservation.CampaignID, reservation.UserID, reservation.IdempotencyKey)
	if err := e.client.Set(ctx, key, data, e.cfg.ResultCacheTTL).Err(); err != nil {
		log.WithError(err).Warn("Failed to cache reservation result")
	}
}

func (e *Engine) dropCachedResult(ctx context.Context, reservation *model.Reservation) {
	key := resultKey(reservation.CampaignID, reservation.UserID, reservation.IdempotencyKey)
	_ = e.client.Del(ctx, key).Err()
}

func tombstoneKey(reservationID uint64) string {
	return fmt.Sprintf("%s%d", tombstoneKeyPrefix, reservationID)
}

func (e *Engine) isTombstoned(ctx context.Context, reservationID uint64) bool {
	n, err := e.client.Exists(ctx, tombstoneKey(reservationID)).Result()
	return err == nil && n > 0
}

func (e *Engine) tombstone(ctx context.Context, reservationID uint64) {
	if err := e.client.Set(ctx, tombstoneKey(reservationID), "1", tombstoneTTL).Err(); err != nil {
		log.WithError(err).Warn("Failed to write release tombstone")
	}
}
