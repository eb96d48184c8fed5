package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// Publisher handles publishing events to RabbitMQ
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
	source   string
	logger   *logger.Logger
}

// NewPublisher creates a new publisher for the given exchange
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) (*Publisher, error) {
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		rmq:      rmq,
		exchange: exchange,
		source:   source,
		logger:   log,
	}, nil
}

// Publish wraps data in a new Event and publishes it with the event type
// as routing key.
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event, err := NewEvent(eventType, p.source, CorrelationID(ctx), data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return p.PublishEvent(ctx, eventType, event)
}

// PublishEvent publishes a prepared event and waits for the broker confirm.
func (p *Publisher) PublishEvent(ctx context.Context, routingKey string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	confirm, err := p.rmq.Channel().PublishWithDeferredConfirmWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     event.ID,
			CorrelationId: event.CorrelationID,
			Timestamp:     event.Timestamp,
			Type:          event.Type,
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if confirm != nil {
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("failed waiting for publish confirm: %w", err)
		}
		if !acked {
			return fmt.Errorf("broker nacked event %s", event.ID)
		}
	}

	p.logger.Debug().
		Str("routing_key", routingKey).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("event published")

	return nil
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationID retrieves the correlation ID from context
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
