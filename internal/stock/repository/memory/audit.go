package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
)

type auditRepo struct{ v *view }

func (r auditRepo) Append(ctx context.Context, event *domain.AuditEvent) error {
	defer r.v.lock()()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.v.now()
	}
	st := r.v.state()
	st.audit = append(st.audit, *event)
	return nil
}

func (r auditRepo) ClaimUnpublished(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	defer r.v.lock()()
	out := make([]domain.AuditEvent, 0)
	for _, e := range r.v.state().audit {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r auditRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	defer r.v.lock()()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	st := r.v.state()
	for i := range st.audit {
		if _, ok := want[st.audit[i].ID]; ok {
			t := at
			st.audit[i].PublishedAt = &t
		}
	}
	return nil
}
