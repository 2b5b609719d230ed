package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"flashsale/internal/config"
	"flashsale/pkg/limiter"
	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

// RateLimit limits requests across the global, per-user and per-IP
// dimensions using the Redis sliding window. When Redis is unreachable a
// process-local token bucket takes over so the API degrades instead of
// failing closed.
func RateLimit(cfg config.RateLimitConfig, multi *limiter.MultiDimensionLimiter) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	if cfg.Global.Limit > 0 {
		multi.SetLimit("global", cfg.Global.Limit, cfg.Global.Window)
	}
	if cfg.PerUser.Limit > 0 {
		multi.SetLimit("user", cfg.PerUser.Limit, cfg.PerUser.Window)
	}
	if cfg.PerIP.Limit > 0 {
		multi.SetLimit("ip", cfg.PerIP.Limit, cfg.PerIP.Window)
	}

	fallback := limiter.NewTokenBucketLimiter(rate.Limit(float64(cfg.Global.Limit)/cfg.Global.Window.Seconds()), cfg.Global.Limit)

	return func(c *gin.Context) {
		dimensions := map[string]string{
			"global": "all",
			"ip":     c.ClientIP(),
		}
		if userID := c.GetString("user_id"); userID != "" {
			dimensions["user"] = userID
		}

		allowed, err := multi.Allow(c.Request.Context(), dimensions)
		if err != nil {
			log.WithError(err).Warn("Rate limiter unavailable, using local fallback")
			allowed, _ = fallback.Allow(c.Request.Context(), "global")
		}

		if !allowed {
			c.Header("Retry-After", "1")
			utils.ErrorResponse(c, http.StatusTooManyRequests, utils.CodeRateLimit, "too many requests")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CampaignRateLimit adds a per-campaign dimension for the reservation
// endpoint, keyed by the campaign id in the request body. The body is
// restored for the handler; unparseable requests pass through and fail
// validation there instead.
func CampaignRateLimit(multi *limiter.MultiDimensionLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var req struct {
			CampaignID uint64 `json:"campaign_id"`
		}
		if json.Unmarshal(body, &req) != nil || req.CampaignID == 0 {
			c.Next()
			return
		}

		allowed, err := multi.Allow(c.Request.Context(), map[string]string{
			"campaign": strconv.FormatUint(req.CampaignID, 10),
		})
		if err != nil {
			// Per-campaign limiting is advisory; let the request through.
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", "1")
			utils.ErrorResponse(c, http.StatusTooManyRequests, utils.CodeRateLimit, "campaign is too busy, try again shortly")
			c.Abort()
			return
		}
		c.Next()
	}
}
