package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"flashsale/internal/redis"
	"flashsale/pkg/queue"
)

// HealthHandler liveness and readiness endpoints
type HealthHandler struct {
	db     *gorm.DB
	client *goredis.Client
	bus    queue.EventBus
}

// NewHealthHandler creates a health handler
func NewHealthHandler(db *gorm.DB, client *goredis.Client, bus queue.EventBus) *HealthHandler {
	return &HealthHandler{db: db, client: client, bus: bus}
}

// Live reports process liveness
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports dependency health. Any failing dependency makes the whole
// check fail so load balancers stop routing here.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil {
		checks["database"] = "error: " + err.Error()
		healthy = false
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		checks["database"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if err := redis.Health(c.Request.Context(), h.client); err != nil {
		checks["redis"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if err := h.bus.Health(); err != nil {
		checks["event_bus"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["event_bus"] = "ok"
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{"status": overall, "checks": checks})
}
