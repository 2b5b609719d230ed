package campaign

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/internal/service/lifecycle"
)

type memCampaignRepo struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{rows: make(map[uint64]*model.Campaign)}
}

func (r *memCampaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	copied := *c
	r.rows[c.ID] = &copied
	return nil
}

func (r *memCampaignRepo) GetByID(ctx context.Context, id uint64) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memCampaignRepo) Update(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.rows[c.ID] = &copied
	return nil
}

func (r *memCampaignRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memCampaignRepo) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Enabled = enabled
	return nil
}

func (r *memCampaignRepo) ListActive(ctx context.Context, now time.Time, page, pageSize int) ([]*model.Campaign, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.rows {
		if c.Enabled && !now.Before(c.StartTime) && !now.After(c.EndTime) {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memCampaignRepo) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.rows {
		if c.Enabled && c.StartTime.After(now) {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memCampaignRepo) ListEndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]*model.Campaign, error) {
	return nil, nil
}

func (r *memCampaignRepo) ListUnfinished(ctx context.Context, cutoff time.Time) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.rows {
		if c.EndTime.After(cutoff) {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memCampaignRepo) AtomicIncrementSold(ctx context.Context, id uint64, delta int) error {
	return nil
}
func (r *memCampaignRepo) DecrementSold(ctx context.Context, id uint64, delta int) error {
	return nil
}

type memReservationCounts struct {
	reservations int64
	buyers       int64
}

func (r *memReservationCounts) Create(ctx context.Context, res *model.Reservation) error { return nil }
func (r *memReservationCounts) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return nil, repository.ErrNotFound
}
func (r *memReservationCounts) GetByIdempotencyKey(ctx context.Context, campaignID, userID uint64, key string) (*model.Reservation, error) {
	return nil, repository.ErrNotFound
}
func (r *memReservationCounts) Delete(ctx context.Context, id uint64) (int64, error) {
	return 0, nil
}
func (r *memReservationCounts) SumUserQuantity(ctx context.Context, campaignID, userID uint64) (int, error) {
	return 0, nil
}
func (r *memReservationCounts) CountByCampaign(ctx context.Context, campaignID uint64) (int64, error) {
	return r.reservations, nil
}
func (r *memReservationCounts) CountDistinctUsers(ctx context.Context, campaignID uint64) (int64, error) {
	return r.buyers, nil
}

var serviceNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memCampaignRepo, *memReservationCounts) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	campaigns := newMemCampaignRepo()
	reservations := &memReservationCounts{}

	svc := NewService(campaigns, reservations, NewTracker(client), NewIDFilter(1000, 0.01), 5*time.Minute)
	svc.clock = func() time.Time { return serviceNow }
	return svc, campaigns, reservations
}

func validCreate() *CreateRequest {
	return &CreateRequest{
		Name:           "spring sale",
		StartTime:      serviceNow.Add(-time.Hour),
		EndTime:        serviceNow.Add(time.Hour),
		MaxQuantity:    100,
		LimitPerUser:   2,
		OriginalPrice:  19900,
		FlashSalePrice: 9900,
	}
}

func TestCreateAndGet(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.True(t, created.Enabled)
	assert.Equal(t, 80, created.LowStockThresholdPct)

	view, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusActive, view.Status)
	assert.Equal(t, 100, view.Remaining)

	assert.True(t, svc.Filter().MightContain(created.ID))
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		wantErr error
	}{
		{"window inverted", func(r *CreateRequest) { r.EndTime = r.StartTime.Add(-time.Minute) }, ErrInvalidWindow},
		{"zero quantity", func(r *CreateRequest) { r.MaxQuantity = 0 }, ErrInvalidQuantity},
		{"limit above quantity", func(r *CreateRequest) { r.LimitPerUser = 200 }, ErrInvalidUserLimit},
		{"price above original", func(r *CreateRequest) { r.FlashSalePrice = 29900 }, ErrInvalidPrice},
		{"negative price", func(r *CreateRequest) { r.FlashSalePrice = -1 }, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(req)
			_, err := svc.Create(ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateAllowsFreeSale(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := validCreate()
	req.OriginalPrice = 0
	req.FlashSalePrice = 0

	created, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, created.FlashSalePrice)
}

func TestUpdateMaxQuantityBeforeStart(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req := validCreate()
	req.StartTime = serviceNow.Add(time.Hour)
	req.EndTime = serviceNow.Add(2 * time.Hour)
	created, err := svc.Create(ctx, req)
	require.NoError(t, err)

	larger := 150
	updated, err := svc.Update(ctx, created.ID, &UpdateRequest{MaxQuantity: &larger})
	require.NoError(t, err)
	assert.Equal(t, 150, updated.MaxQuantity)
}

func TestUpdateMaxQuantityLockedOnceStarted(t *testing.T) {
	svc, campaigns, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	campaigns.rows[created.ID].SoldQuantity = 40

	larger := 200
	_, err = svc.Update(ctx, created.ID, &UpdateRequest{MaxQuantity: &larger})
	assert.ErrorIs(t, err, ErrQuantityLocked)

	// Sending the unchanged value is not a change.
	same := 100
	_, err = svc.Update(ctx, created.ID, &UpdateRequest{MaxQuantity: &same})
	assert.NoError(t, err)
}

func TestDeleteOnlyAfterEnd(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	err = svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotEnded)

	ended := serviceNow.Add(-time.Minute)
	startEarlier := serviceNow.Add(-2 * time.Hour)
	_, err = svc.Update(ctx, created.ID, &UpdateRequest{StartTime: &startEarlier, EndTime: &ended})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetEnabled(t *testing.T) {
	svc, campaigns, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	require.NoError(t, svc.SetEnabled(ctx, created.ID, false))
	assert.False(t, campaigns.rows[created.ID].Enabled)

	assert.ErrorIs(t, svc.SetEnabled(ctx, 999, true), ErrNotFound)
}

func TestStats(t *testing.T) {
	svc, campaigns, reservations := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	campaigns.rows[created.ID].SoldQuantity = 25
	reservations.reservations = 20
	reservations.buyers = 18

	for i := 0; i < 10; i++ {
		require.NoError(t, svc.RecordView(ctx, created.ID))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.RecordClick(ctx, created.ID))
	}

	stats, err := svc.Stats(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StatusActive, stats.Status)
	assert.Equal(t, 25, stats.SoldQuantity)
	assert.Equal(t, 75, stats.Remaining)
	assert.InDelta(t, 25.0, stats.SoldPct, 0.01)
	assert.Equal(t, int64(10), stats.Views)
	assert.Equal(t, int64(4), stats.Clicks)
	assert.Equal(t, int64(20), stats.Reservations)
	assert.Equal(t, int64(18), stats.UniqueBuyers)
	assert.InDelta(t, 500.0, stats.ConversionPct, 0.01)
}

func TestListActiveAttachesStatus(t *testing.T) {
	svc, campaigns, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	// Close the window to inside the ending-soon horizon.
	campaigns.rows[created.ID].EndTime = serviceNow.Add(2 * time.Minute)

	views, total, err := svc.ListActive(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, lifecycle.StatusEndingSoon, views[0].Status)
}

func TestIDFilterWarm(t *testing.T) {
	svc, campaigns, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		req := validCreate()
		req.Name = fmt.Sprintf("campaign-%d", i)
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	fresh := NewIDFilter(1000, 0.01)
	assert.False(t, fresh.MightContain(1))

	require.NoError(t, fresh.Warm(ctx, campaigns))
	for id := uint64(1); id <= 5; id++ {
		assert.True(t, fresh.MightContain(id))
	}
}
