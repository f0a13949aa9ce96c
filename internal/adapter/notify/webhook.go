package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"status-promo-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
)

// Webhook headers.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderTopic     = "X-Event-Topic"
)

// DefaultRetryIntervals is the wait before each redelivery.
var DefaultRetryIntervals = []time.Duration{
	15 * time.Second,
	time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookPayload is the JSON body posted to the notification service.
type WebhookPayload struct {
	Topic string      `json:"topic"`
	Event ports.Event `json:"event"`
}

// WebhookPublisher implements ports.EventPublisher by posting signed events
// to a single endpoint. Delivery is asynchronous and retried.
type WebhookPublisher struct {
	url     string
	signer  *Signer
	client  HTTPClient
	retries []time.Duration
	now     func() time.Time
	log     zerolog.Logger

	base   context.Context // cancelled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookPublisher creates a publisher. A nil retries slice uses DefaultRetryIntervals.
func NewWebhookPublisher(url, secret string, client HTTPClient, retries []time.Duration, log zerolog.Logger) *WebhookPublisher {
	if retries == nil {
		retries = DefaultRetryIntervals
	}
	base, cancel := context.WithCancel(context.Background())
	return &WebhookPublisher{
		base:    base,
		cancel:  cancel,
		url:     url,
		signer:  NewSigner(secret),
		client:  client,
		retries: retries,
		now:     time.Now,
		log:     log.With().Str("component", "webhook").Logger(),
	}
}

// Publish encodes the event and hands it to a background delivery.
func (p *WebhookPublisher) Publish(_ context.Context, topic string, event ports.Event) error {
	body, err := json.Marshal(WebhookPayload{Topic: topic, Event: event})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.deliver(p.base, topic, event, body)
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (p *WebhookPublisher) Wait() {
	p.wg.Wait()
}

// Close abandons pending retries and waits for in-flight requests to return.
func (p *WebhookPublisher) Close() {
	p.cancel()
	p.wg.Wait()
}

// deliver signs every attempt afresh so late retries stay inside the
// receiver's timestamp tolerance.
func (p *WebhookPublisher) deliver(ctx context.Context, topic string, event ports.Event, body []byte) {
	logger := p.log.With().Str("topic", topic).Str("event_type", event.Type).Str("entity_id", event.EntityID.String()).Logger()

	for attempt := 0; attempt <= len(p.retries); attempt++ {
		if attempt > 0 {
			wait := p.retries[attempt-1]
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			logger.Error().Err(err).Msg("webhook: failed to create request")
			return
		}
		ts := p.now().Unix()
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderSignature, p.signer.Sign(ts, body))
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderTopic, topic)

		resp, err := p.client.Do(req)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Debug().Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered")
			return
		}
		logger.Warn().Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	logger.Error().Msg("webhook: all retry attempts exhausted")
}
