// Package engine implements the stock movement engine: every operation that
// changes stock runs as one transaction that writes the stock records, the
// ledger entries and a single audit event together.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/internal/stock/sequence"
	"github.com/stockledger/stockledger-backend/pkg/actor"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
	"github.com/stockledger/stockledger-backend/pkg/validation"
)

// Movement kinds, used as log and metric labels.
const (
	KindReceipt       = "receipt"
	KindAdjustment    = "adjustment"
	KindAllocation    = "allocation"
	KindReservation   = "reservation"
	KindDocument      = "document"
	KindDelivery      = "delivery"
	KindGoodsReceipt  = "goods_receipt"
	KindWorkOrder     = "work_order"
	KindProductionRun = "production_output"
)

// Engine runs stock movements against a Transactor.
type Engine struct {
	tx      repository.Transactor
	seq     sequence.Counter
	retry   RetryPolicy
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryPolicy sets how isolation conflicts are retried.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithMetrics records movement outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a movement engine.
func New(tx repository.Transactor, seq sequence.Counter, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		tx:     tx,
		seq:    seq,
		retry:  DefaultRetryPolicy(),
		logger: log.WithComponent("movement-engine"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run executes fn as one movement transaction, retrying isolation conflicts.
func (e *Engine) run(ctx context.Context, kind string, ref domain.Reference, fn func(ctx context.Context, s repository.Store) error) error {
	log := e.logger.WithMovement(kind, ref.Type, ref.ID)
	attempt := 0

	err := Retry(ctx, e.retry, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			e.metrics.IncRetry()
			log.Warn().Int("attempt", attempt).Msg("retrying movement after concurrency conflict")
		}
		return e.tx.InTx(ctx, fn)
	})

	outcome := outcomeOf(err)
	e.metrics.ObserveMovement(kind, outcome)

	switch outcome {
	case metrics.OutcomeCommitted:
		log.Info().Str("actor", actor.IDFromContext(ctx)).Msg("movement committed")
	case metrics.OutcomeError:
		log.Error().Err(err).Msg("movement failed")
	default:
		log.Warn().Err(err).Str("outcome", outcome).Msg("movement rejected")
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCommitted
	case errors.Is(err, errors.ErrInsufficientStock):
		return metrics.OutcomeInsufficient
	case errors.IsRetriable(err):
		return metrics.OutcomeConflict
	case errors.Is(err, errors.ErrValidation),
		errors.Is(err, errors.ErrInvalidStateTransition),
		errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrConflict),
		errors.Is(err, errors.ErrBadRequest):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// post applies delta to key and appends the matching ledger entry.
func (e *Engine) post(ctx context.Context, s repository.Store, key domain.StockKey, delta decimal.Decimal, expiry *time.Time, mt domain.MutationType, ref domain.Reference, reason string) (*domain.StockRecord, *domain.LedgerEntry, error) {
	rec, err := s.Stock().ApplyDelta(ctx, key, delta, expiry)
	if err != nil {
		return nil, nil, err
	}

	entry := &domain.LedgerEntry{
		ItemID:        key.ItemID,
		LocationID:    key.LocationID,
		Batch:         key.Batch,
		Change:        delta,
		Balance:       rec.Quantity,
		MutationType:  mt,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Reason:        reason,
		Actor:         actor.IDFromContext(ctx),
		CreatedAt:     e.now(),
	}
	if err := s.Ledger().Append(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("append ledger entry: %w", err)
	}
	return rec, entry, nil
}

// audit appends the movement's audit event to the outbox.
func (e *Engine) audit(ctx context.Context, s repository.Store, eventType, action, entityType, entityID string, oldValues, newValues interface{}) error {
	oldJSON, err := json.Marshal(oldValues)
	if err != nil {
		return fmt.Errorf("marshal audit old values: %w", err)
	}
	newJSON, err := json.Marshal(newValues)
	if err != nil {
		return fmt.Errorf("marshal audit new values: %w", err)
	}

	return s.Audit().Append(ctx, &domain.AuditEvent{
		EventType:  eventType,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor.IDFromContext(ctx),
		OldValues:  oldJSON,
		NewValues:  newJSON,
		CreatedAt:  e.now(),
	})
}

// requireItemAt checks that the item and location exist. Inbound movements
// additionally require an active location.
func requireItemAt(ctx context.Context, s repository.Store, itemID, locationID string, inbound bool) error {
	if _, err := s.Catalog().GetItem(ctx, itemID); err != nil {
		return err
	}
	loc, err := s.Catalog().GetLocation(ctx, locationID)
	if err != nil {
		return err
	}
	if inbound && !loc.Active {
		return validation.Field("location_id", "location is inactive")
	}
	return nil
}

// nextNumber obtains a document number outside the movement transaction;
// a number consumed by a failed movement is simply skipped.
func (e *Engine) nextNumber(ctx context.Context, prefix string) (string, error) {
	n, err := e.seq.Next(ctx, prefix, e.now())
	if err != nil {
		return "", fmt.Errorf("issue %s document number: %w", prefix, err)
	}
	return n, nil
}

type quantitySnapshot struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reserved decimal.Decimal `json:"reserved"`
}

type statusSnapshot struct {
	Status string `json:"status"`
}
