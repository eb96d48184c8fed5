package domain

import (
	"encoding/json"
	"time"
)

// Audit actions
const (
	ActionReceive      = "RECEIVE"
	ActionAdjust       = "ADJUST"
	ActionAllocate     = "ALLOCATE"
	ActionReserve      = "RESERVE"
	ActionUnreserve    = "UNRESERVE"
	ActionCreate       = "CREATE"
	ActionStatusChange = "STATUS_CHANGE"
	ActionRecordOutput = "RECORD_OUTPUT"
)

// AuditEvent is the single structured record emitted per mutation. It is
// written to the outbox in the movement transaction and relayed later.
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	EventType   string          `json:"event_type" db:"event_type"`
	Action      string          `json:"action" db:"action"`
	EntityType  string          `json:"entity_type" db:"entity_type"`
	EntityID    string          `json:"entity_id" db:"entity_id"`
	Actor       string          `json:"actor" db:"actor"`
	OldValues   json.RawMessage `json:"old_values,omitempty" db:"old_values"`
	NewValues   json.RawMessage `json:"new_values,omitempty" db:"new_values"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty" db:"published_at"`
}
