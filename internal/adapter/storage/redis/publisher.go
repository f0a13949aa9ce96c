package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"status-promo-marketplace/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces the pub/sub channels; the topic follows it.
const ChannelPrefix = "marketplace:events:"

// Publisher implements ports.EventPublisher over Redis pub/sub.
type Publisher struct {
	client *goredis.Client
}

// NewPublisher creates a Redis pub/sub publisher.
func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends event as JSON on ChannelPrefix+topic.
func (p *Publisher) Publish(ctx context.Context, topic string, event ports.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, ChannelPrefix+topic, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}
