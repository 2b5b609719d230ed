package campaign

import (
	"context"
	"errors"
	"time"

	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/internal/service/lifecycle"
	"flashsale/pkg/log"
)

// View is a campaign with its derived lifecycle status attached. Status is
// computed at read time and never stored.
type View struct {
	*model.Campaign
	Status           lifecycle.Status `json:"status"`
	Remaining        int              `json:"remaining"`
	RemainingSeconds int64            `json:"remaining_seconds"`
}

// Stats aggregates the campaign funnel: views, clicks, reservations and
// conversion, plus the live stock picture.
type Stats struct {
	CampaignID       uint64           `json:"campaign_id"`
	Status           lifecycle.Status `json:"status"`
	SoldQuantity     int              `json:"sold_quantity"`
	Remaining        int              `json:"remaining"`
	SoldPct          float64          `json:"sold_pct"`
	Views            int64            `json:"views"`
	Clicks           int64            `json:"clicks"`
	Reservations     int64            `json:"reservations"`
	UniqueBuyers     int64            `json:"unique_buyers"`
	ConversionPct    float64          `json:"conversion_pct"`
	RemainingSeconds int64            `json:"remaining_seconds"`
}

// CreateRequest carries the fields an operator sets when creating a campaign
type CreateRequest struct {
	Name                 string    `json:"name" binding:"required"`
	StartTime            time.Time `json:"start_time" binding:"required"`
	EndTime              time.Time `json:"end_time" binding:"required"`
	MaxQuantity          int       `json:"max_quantity" binding:"required"`
	LimitPerUser         int       `json:"limit_per_user"`
	OriginalPrice        int64     `json:"original_price" binding:"min=0"`
	FlashSalePrice       int64     `json:"flash_sale_price" binding:"min=0"`
	LowStockThresholdPct int       `json:"low_stock_threshold_pct"`
}

// UpdateRequest carries the mutable campaign fields; nil means unchanged
type UpdateRequest struct {
	Name                 *string    `json:"name"`
	StartTime            *time.Time `json:"start_time"`
	EndTime              *time.Time `json:"end_time"`
	MaxQuantity          *int       `json:"max_quantity"`
	LimitPerUser         *int       `json:"limit_per_user"`
	OriginalPrice        *int64     `json:"original_price"`
	FlashSalePrice       *int64     `json:"flash_sale_price"`
	LowStockThresholdPct *int       `json:"low_stock_threshold_pct"`
}

// Service implements campaign administration and read models
type Service struct {
	campaigns        repository.CampaignRepository
	reservations     repository.ReservationRepository
	tracker          *Tracker
	filter           *IDFilter
	endingSoonWindow time.Duration
	clock            func() time.Time
}

// NewService creates a campaign service
func NewService(
	campaigns repository.CampaignRepository,
	reservations repository.ReservationRepository,
	tracker *Tracker,
	filter *IDFilter,
	endingSoonWindow time.Duration,
) *Service {
	return &Service{
		campaigns:        campaigns,
		reservations:     reservations,
		tracker:          tracker,
		filter:           filter,
		endingSoonWindow: endingSoonWindow,
		clock:            time.Now,
	}
}

// Filter exposes the known-campaign filter for the reservation hot path
func (s *Service) Filter() *IDFilter {
	return s.filter
}

// Create validates and stores a new campaign
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*model.Campaign, error) {
	campaign := &model.Campaign{
		Name:                 req.Name,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		MaxQuantity:          req.MaxQuantity,
		LimitPerUser:         req.LimitPerUser,
		OriginalPrice:        req.OriginalPrice,
		FlashSalePrice:       req.FlashSalePrice,
		Enabled:              true,
		LowStockThresholdPct: req.LowStockThresholdPct,
	}
	if campaign.LimitPerUser == 0 {
		campaign.LimitPerUser = 1
	}
	if campaign.LowStockThresholdPct == 0 {
		campaign.LowStockThresholdPct = 80
	}

	if err := validate(campaign); err != nil {
		return nil, err
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	if s.filter != nil {
		s.filter.Add(campaign.ID)
	}

	log.WithFields(map[string]interface{}{
		"campaign_id":  campaign.ID,
		"name":         campaign.Name,
		"max_quantity": campaign.MaxQuantity,
	}).Info("Campaign created")

	return campaign, nil
}

// Get returns the campaign with its derived status
func (s *Service) Get(ctx context.Context, id uint64) (*View, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return s.view(campaign), nil
}

// Update applies the changed fields. Max quantity is locked once the sale
// window opens; before that it still may not drop below the sold quantity.
func (s *Service) Update(ctx context.Context, id uint64, req *UpdateRequest) (*model.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.StartTime != nil {
		campaign.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		campaign.EndTime = *req.EndTime
	}
	if req.MaxQuantity != nil && *req.MaxQuantity != campaign.MaxQuantity {
		if !s.clock().Before(campaign.StartTime) {
			return nil, ErrQuantityLocked
		}
		if *req.MaxQuantity < campaign.SoldQuantity {
			return nil, ErrQuantityBelow
		}
		campaign.MaxQuantity = *req.MaxQuantity
	}
	if req.LimitPerUser != nil {
		campaign.LimitPerUser = *req.LimitPerUser
	}
	if req.OriginalPrice != nil {
		campaign.OriginalPrice = *req.OriginalPrice
	}
	if req.FlashSalePrice != nil {
		campaign.FlashSalePrice = *req.FlashSalePrice
	}
	if req.LowStockThresholdPct != nil {
		campaign.LowStockThresholdPct = *req.LowStockThresholdPct
	}

	if err := validate(campaign); err != nil {
		return nil, err
	}

	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete removes a campaign once it has ended
func (s *Service) Delete(ctx context.Context, id uint64) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}

	status := lifecycle.Classify(campaign, s.clock(), s.endingSoonWindow)
	if !status.Terminal() {
		return ErrNotEnded
	}

	return mapNotFound(s.campaigns.Delete(ctx, id))
}

// SetEnabled flips the operator kill-switch
func (s *Service) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	if err := s.campaigns.SetEnabled(ctx, id, enabled); err != nil {
		return mapNotFound(err)
	}

	log.WithFields(map[string]interface{}{
		"campaign_id": id,
		"enabled":     enabled,
	}).Info("Campaign kill-switch changed")
	return nil
}

// ListActive returns the page of campaigns whose window contains now
func (s *Service) ListActive(ctx context.Context, page, pageSize int) ([]*View, int64, error) {
	campaigns, total, err := s.campaigns.ListActive(ctx, s.clock(), page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return s.views(campaigns), total, nil
}

// ListUpcoming returns campaigns that have not started yet
func (s *Service) ListUpcoming(ctx context.Context, limit int) ([]*View, error) {
	campaigns, err := s.campaigns.ListUpcoming(ctx, s.clock(), limit)
	if err != nil {
		return nil, err
	}
	return s.views(campaigns), nil
}

// ListEndingSoon returns campaigns closing within the configured window
func (s *Service) ListEndingSoon(ctx context.Context) ([]*View, error) {
	campaigns, err := s.campaigns.ListEndingSoon(ctx, s.clock(), s.endingSoonWindow)
	if err != nil {
		return nil, err
	}
	return s.views(campaigns), nil
}

// RecordView counts a campaign page view
func (s *Service) RecordView(ctx context.Context, id uint64) error {
	return s.tracker.RecordView(ctx, id)
}

// RecordClick counts a buy-button click
func (s *Service) RecordClick(ctx context.Context, id uint64) error {
	return s.tracker.RecordClick(ctx, id)
}

// Stats returns the campaign funnel and stock picture
func (s *Service) Stats(ctx context.Context, id uint64) (*Stats, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	views, clicks, err := s.tracker.Counts(ctx, id)
	if err != nil {
		// Analytics counters are advisory; report the stock picture anyway.
		log.WithError(err).Warn("Failed to read view/click counters")
	}

	reservations, err := s.reservations.CountByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	buyers, err := s.reservations.CountDistinctUsers(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	conversion := 0.0
	if clicks > 0 {
		conversion = float64(reservations) / float64(clicks) * 100
	}

	return &Stats{
		CampaignID:       id,
		Status:           lifecycle.Classify(campaign, now, s.endingSoonWindow),
		SoldQuantity:     campaign.SoldQuantity,
		Remaining:        campaign.Remaining(),
		SoldPct:          campaign.SoldPct(),
		Views:            views,
		Clicks:           clicks,
		Reservations:     reservations,
		UniqueBuyers:     buyers,
		ConversionPct:    conversion,
		RemainingSeconds: campaign.RemainingSeconds(now),
	}, nil
}

func (s *Service) view(c *model.Campaign) *View {
	now := s.clock()
	return &View{
		Campaign:         c,
		Status:           lifecycle.Classify(c, now, s.endingSoonWindow),
		Remaining:        c.Remaining(),
		RemainingSeconds: c.RemainingSeconds(now),
	}
}

func (s *Service) views(campaigns []*model.Campaign) []*View {
	out := make([]*View, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, s.view(c))
	}
	return out
}

func validate(c *model.Campaign) error {
	if !c.EndTime.After(c.StartTime) {
		return ErrInvalidWindow
	}
	if c.MaxQuantity <= 0 {
		return ErrInvalidQuantity
	}
	if c.LimitPerUser <= 0 || c.LimitPerUser > c.MaxQuantity {
		return ErrInvalidUserLimit
	}
	if c.FlashSalePrice < 0 || c.OriginalPrice < 0 || c.FlashSalePrice > c.OriginalPrice {
		return ErrInvalidPrice
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
