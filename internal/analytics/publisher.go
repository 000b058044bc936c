// Package analytics provides payment event capture and revenue aggregation.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gateflow/gateflow/internal/metrics"
)

const (
	// StreamKey is the Redis stream for payment events.
	StreamKey = "stream:payment_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:payment_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Event kinds carried on the stream.
const (
	KindSucceeded = "succeeded"
	KindRefunded  = "refunded"
)

// PaymentEventPayload is the compressed event format for the Redis stream.
type PaymentEventPayload struct {
	PaymentID   string `json:"pid"`
	ProductID   string `json:"prid"`
	Kind        string `json:"k"` // succeeded | refunded
	AmountCents int64  `json:"a"`
	Currency    string `json:"c"`
	OccurredAt  int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues payment events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new analytics event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a payment event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event PaymentEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the checkout path.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event PaymentEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish payment event",
				"payment_id", event.PaymentID,
				"kind", event.Kind,
				"error", err,
			)
			p.metrics.IncAnalyticsEventPublished("dropped")
			return
		}

		p.logger.Debug("payment event published",
			"payment_id", event.PaymentID,
			"kind", event.Kind,
			"stream_id", streamID,
		)
		p.metrics.IncAnalyticsEventPublished("success")
	}()
}
