package consumer

import (
	"context"
	"encoding/json"
	"strings"

	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/pkg/queue"
)

// AnalyticsConsumer feeds every bus event into the metrics pipeline so
// dashboards see transition rates and stock movement without touching the
// hot path.
type AnalyticsConsumer struct {
	bus     queue.EventBus
	metrics *monitor.MetricsCollector
}

// NewAnalyticsConsumer creates an analytics consumer
func NewAnalyticsConsumer(bus queue.EventBus, metrics *monitor.MetricsCollector) *AnalyticsConsumer {
	return &AnalyticsConsumer{bus: bus, metrics: metrics}
}

var analyticsTopics = []string{
	model.TopicBecameActive,
	model.TopicEndingSoon,
	model.TopicSoldOut,
	model.TopicEnded,
	model.TopicLowStock,
	model.TopicStockChanged,
}

// Start subscribes to every topic
func (c *AnalyticsConsumer) Start() error {
	for _, topic := range analyticsTopics {
		if err := c.bus.Subscribe(topic, c.handle); err != nil {
			return err
		}
	}
	return nil
}

func (c *AnalyticsConsumer) handle(ctx context.Context, topic string, payload []byte) error {
	c.metrics.RecordEventPublished(topic)

	var event model.CampaignEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}

	switch topic {
	case model.TopicBecameActive, model.TopicEndingSoon, model.TopicSoldOut, model.TopicEnded:
		// "campaign.became_active" -> "became_active"
		status := strings.TrimPrefix(topic, "campaign.")
		c.metrics.RecordLifecycleTransition(status)
	}
	return nil
}
