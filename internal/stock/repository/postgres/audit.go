package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
)

type auditRepo struct{ s *store }

func (r auditRepo) Append(ctx context.Context, e *domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO audit_outbox (id, event_type, action, entity_type, entity_id, actor, old_values, new_values, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9)`
	_, err := r.s.q.ExecContext(ctx, query,
		e.ID, e.EventType, e.Action, e.EntityType, e.EntityID, e.Actor,
		jsonText(e.OldValues), jsonText(e.NewValues), e.CreatedAt,
	)
	return mapErr(err)
}

// ClaimUnpublished must run inside a transaction for SKIP LOCKED to hold
// the claim until MarkPublished commits.
func (r auditRepo) ClaimUnpublished(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	query := `
		SELECT id, event_type, action, entity_type, entity_id, actor, old_values, new_values, created_at, published_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	if r.s.inTx {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	events := make([]domain.AuditEvent, 0)
	if err := sqlx.SelectContext(ctx, r.s.q, &events, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return events, nil
}

func (r auditRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.s.q.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $2 WHERE id = ANY($1)`, pq.Array(ids), at)
	return mapErr(err)
}

func jsonText(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
