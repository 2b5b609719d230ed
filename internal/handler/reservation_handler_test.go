package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flashsale/internal/config"
	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/internal/service/reservation"
)

// Prometheus metrics register on the default registry, so the whole package
// shares one collector.
var testMetrics = monitor.NewMetricsCollector()

func testTracer(t *testing.T) *monitor.Tracer {
	tracer, err := monitor.NewTracer(config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	return tracer
}

// MockReservationEngine is a mock implementation of ReservationEngine
type MockReservationEngine struct {
	mock.Mock
}

func (m *MockReservationEngine) TryReserve(ctx context.Context, campaignID, userID uint64, quantity int, idempotencyKey string) (*model.Reservation, error) {
	args := m.Called(ctx, campaignID, userID, quantity, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *MockReservationEngine) Release(ctx context.Context, reservationID uint64) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func newReservationRouter(t *testing.T, engine ReservationEngine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewReservationHandler(engine, testMetrics, testTracer(t))

	router := gin.New()
	router.POST("/reservations", h.Reserve)
	router.DELETE("/reservations/:id", h.Release)
	return router
}

func postReserve(router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/reservations", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestReservationHandler_Reserve(t *testing.T) {
	t.Run("successful reservation", func(t *testing.T) {
		engine := &MockReservationEngine{}
		router := newReservationRouter(t, engine)

		engine.On("TryReserve", mock.Anything, uint64(1), uint64(7), 2, "req-abc").
			Return(&model.Reservation{
				ID:             99,
				CampaignID:     1,
				UserID:         7,
				Quantity:       2,
				IdempotencyKey: "req-abc",
			}, nil)

		w := postReserve(router, ReserveRequest{
			CampaignID:     1,
			UserID:         7,
			Quantity:       2,
			IdempotencyKey: "req-abc",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		engine.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		engine := &MockReservationEngine{}
		router := newReservationRouter(t, engine)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/reservations", bytes.NewBufferString("not json"))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		engine.AssertNotCalled(t, "TryReserve")
	})

	t.Run("missing idempotency key", func(t *testing.T) {
		engine := &MockReservationEngine{}
		router := newReservationRouter(t, engine)

		w := postReserve(router, gin.H{
			"campaign_id": 1,
			"user_id":     7,
			"quantity":    1,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		engine.AssertNotCalled(t, "TryReserve")
	})
}

func TestReservationHandler_ReserveRejections(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"campaign not found", reservation.ErrCampaignNotFound, http.StatusNotFound},
		{"sold out", reservation.ErrSoldOut, http.StatusConflict},
		{"per-user limit", reservation.ErrPerUserLimitExceeded, http.StatusUnprocessableEntity},
		{"per-purchase limit", reservation.ErrPerPurchaseLimitExceeded, http.StatusUnprocessableEntity},
		{"not purchasable", reservation.ErrCampaignNotPurchasable, http.StatusForbidden},
		{"disabled", reservation.ErrDisabled, http.StatusForbidden},
		{"invalid quantity", reservation.ErrInvalidQuantity, http.StatusBadRequest},
		{"storage unavailable", reservation.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{"unexpected error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockReservationEngine{}
			router := newReservationRouter(t, engine)

			engine.On("TryReserve", mock.Anything, uint64(1), uint64(7), 1, "req-abc").
				Return(nil, tt.err)

			w := postReserve(router, ReserveRequest{
				CampaignID:     1,
				UserID:         7,
				Quantity:       1,
				IdempotencyKey: "req-abc",
			})

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestReservationHandler_Release(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"released", nil, http.StatusOK},
		{"not found", reservation.ErrReservationNotFound, http.StatusNotFound},
		{"already released", reservation.ErrAlreadyReleased, http.StatusConflict},
		{"storage unavailable", reservation.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{"unexpected error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockReservationEngine{}
			router := newReservationRouter(t, engine)

			engine.On("Release", mock.Anything, uint64(99)).Return(tt.err)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("DELETE", "/reservations/99", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			engine.AssertExpectations(t)
		})
	}
}

func TestReservationHandler_ReleaseInvalidID(t *testing.T) {
	engine := &MockReservationEngine{}
	router := newReservationRouter(t, engine)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/reservations/abc", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	engine.AssertNotCalled(t, "Release")
}
