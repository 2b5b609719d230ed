package consumer

import (
	"context"
	"encoding/json"

	"flashsale/internal/model"
	"flashsale/pkg/log"
	"flashsale/pkg/queue"
)

// NotificationConsumer turns lifecycle events into operator notifications.
// Delivery is a structured log line here; a real deployment would fan out
// to a webhook or messaging channel from the same handler.
type NotificationConsumer struct {
	bus queue.EventBus
}

// NewNotificationConsumer creates a notification consumer
func NewNotificationConsumer(bus queue.EventBus) *NotificationConsumer {
	return &NotificationConsumer{bus: bus}
}

// Topics a human operator cares about. High-volume stock_changed noise is
// deliberately excluded.
var notificationTopics = []string{
	model.TopicBecameActive,
	model.TopicEndingSoon,
	model.TopicSoldOut,
	model.TopicEnded,
	model.TopicLowStock,
}

// Start subscribes to the notification topics
func (c *NotificationConsumer) Start() error {
	for _, topic := range notificationTopics {
		if err := c.bus.Subscribe(topic, c.handle); err != nil {
			return err
		}
	}
	log.Info("Notification consumer started")
	return nil
}

func (c *NotificationConsumer) handle(ctx context.Context, topic string, payload []byte) error {
	var event model.CampaignEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.WithFields(map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		}).Error("Failed to decode campaign event")
		return err
	}

	log.WithFields(map[string]interface{}{
		"topic":             topic,
		"campaign_id":       event.CampaignID,
		"sold_quantity":     event.SoldQuantity,
		"remaining_seconds": event.RemainingSeconds,
		"remaining_pct":     event.RemainingPct,
	}).Info("Campaign notification dispatched")
	return nil
}
