package notify

import (
	"context"
	"errors"

	"status-promo-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
)

// MultiPublisher fans one event out to every target.
type MultiPublisher []ports.EventPublisher

// Publish calls every target and joins their errors.
func (m MultiPublisher) Publish(ctx context.Context, topic string, event ports.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a logging publisher.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the event at info level.
func (p *LogPublisher) Publish(_ context.Context, topic string, event ports.Event) error {
	p.log.Info().
		Str("topic", topic).
		Str("event_type", event.Type).
		Str("entity_id", event.EntityID.String()).
		Int("recipients", len(event.UserIDs)).
		Msg("event published")
	return nil
}
