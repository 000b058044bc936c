package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/model"
)

// Publisher creates webhook delivery records when events occur.
type Publisher struct {
	repo   *Repository
	logger *slog.Logger
}

// NewPublisher creates a new webhook publisher.
func NewPublisher(repo *Repository, logger *slog.Logger) *Publisher {
	return &Publisher{
		repo:   repo,
		logger: logger.With("component", "webhook.publisher"),
	}
}

// Publish fans an event out to every active endpoint subscribed to it.
// A failure to enqueue one endpoint does not block the others.
func (p *Publisher) Publish(ctx context.Context, eventType model.EventType, eventID string, data map[string]any) error {
	endpoints, err := p.repo.ListActiveEndpointsByEvent(ctx, eventType)
	if err != nil {
		return fmt.Errorf("list active endpoints: %w", err)
	}

	if len(endpoints) == 0 {
		return nil // No webhooks configured
	}

	payload := model.WebhookPayload{
		EventType: string(eventType),
		EventID:   eventID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now()
	for _, endpoint := range endpoints {
		delivery := &model.WebhookDelivery{
			ID:           ulid.Make().String(),
			EndpointID:   endpoint.ID,
			EventID:      eventID,
			EventType:    eventType,
			PayloadJSON:  string(payloadJSON),
			Status:       model.DeliveryStatusPending,
			AttemptCount: 0,
			MaxAttempts:  DefaultMaxAttempts,
			NextRetryAt:  now, // Immediate delivery
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := p.repo.CreateDelivery(ctx, delivery); err != nil {
			p.logger.Warn("failed to create delivery",
				"endpoint_id", endpoint.ID,
				"event_id", eventID,
				"error", err,
			)
			continue
		}

		p.logger.Debug("webhook delivery created",
			"delivery_id", delivery.ID,
			"endpoint_id", endpoint.ID,
			"event_id", eventID,
		)
	}

	return nil
}

// PublishToEndpoint enqueues a single-endpoint delivery, bypassing
// subscription filtering. Used for explicit test sends.
func (p *Publisher) PublishToEndpoint(ctx context.Context, endpoint *model.WebhookEndpoint, eventType model.EventType, data map[string]any) (*model.WebhookDelivery, error) {
	eventID := ulid.Make().String()

	payload := model.WebhookPayload{
		EventType: string(eventType),
		EventID:   eventID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now()
	delivery := &model.WebhookDelivery{
		ID:           ulid.Make().String(),
		EndpointID:   endpoint.ID,
		EventID:      eventID,
		EventType:    eventType,
		PayloadJSON:  string(payloadJSON),
		Status:       model.DeliveryStatusPending,
		AttemptCount: 0,
		MaxAttempts:  DefaultMaxAttempts,
		NextRetryAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.repo.CreateDelivery(ctx, delivery); err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}

	return delivery, nil
}
