// Package events moves stock audit events out of the service: the outbox
// relay publishes committed audit rows to RabbitMQ and the expiry scanner
// announces batches that are about to expire.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
)

// Source is the event source stamped on every published message.
const Source = "stock-service"

// Publisher delivers events to the broker. *messaging.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	PublishEvent(ctx context.Context, routingKey string, event *messaging.Event) error
}

// OutboxRelay publishes audit events that committed with their movement.
// Delivery is at least once: a row is marked published only after the
// broker confirmed it, and the message ID is the audit event ID.
type OutboxRelay struct {
	tx        repository.Transactor
	publisher Publisher
	batchSize int
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

// NewOutboxRelay creates a relay claiming up to batchSize rows per run.
func NewOutboxRelay(tx repository.Transactor, publisher Publisher, batchSize int, m *metrics.Metrics, log *logger.Logger) *OutboxRelay {
	return &OutboxRelay{
		tx:        tx,
		publisher: publisher,
		batchSize: batchSize,
		metrics:   m,
		logger:    log.WithComponent("outbox-relay"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce publishes one batch of unpublished events in write order and
// returns how many were marked published. It stops at the first publish
// failure; the remaining rows are retried on the next run.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	var (
		published  int
		publishErr error
	)

	err := r.tx.InTx(ctx, func(ctx context.Context, s repository.Store) error {
		pending, err := s.Audit().ClaimUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(pending))
		for i := range pending {
			event, err := toMessage(&pending[i])
			if err != nil {
				publishErr = err
				break
			}
			if err := r.publisher.PublishEvent(ctx, event.Type, event); err != nil {
				publishErr = fmt.Errorf("publish audit event %s: %w", pending[i].ID, err)
				break
			}
			ids = append(ids, pending[i].ID)
		}

		if len(ids) == 0 {
			return nil
		}
		if err := s.Audit().MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.metrics.AddRelayed(published)
	if published > 0 {
		r.logger.Debug().Int("published", published).Msg("audit events relayed")
	}
	return published, publishErr
}

func toMessage(e *domain.AuditEvent) (*messaging.Event, error) {
	data, err := json.Marshal(messaging.AuditPayload{
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Actor:      e.Actor,
		OldValues:  nullIfEmpty(e.OldValues),
		NewValues:  nullIfEmpty(e.NewValues),
	})
	if err != nil {
		return nil, fmt.Errorf("encode audit event %s: %w", e.ID, err)
	}
	return &messaging.Event{
		ID:        e.ID,
		Type:      e.EventType,
		Source:    Source,
		Timestamp: e.CreatedAt,
		Data:      data,
	}, nil
}

// nullIfEmpty drops stored JSON nulls so they are omitted from the payload.
func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
