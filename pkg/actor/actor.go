// Package actor identifies the user or system performing a stock movement.
// The actor ID is stamped on every ledger entry and audit event.
package actor

import (
	"context"
)

// SystemID is the actor ID used for scheduled and background work.
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil || a.ID == SystemID {
		return "system"
	}
	if a.Email != "" {
		return a.ID + " (" + a.Email + ")"
	}
	return a.ID
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// IDFromContext returns the actor ID, falling back to the system actor.
func IDFromContext(ctx context.Context) string {
	if a := FromContext(ctx); a != nil && a.ID != "" {
		return a.ID
	}
	return SystemID
}

// SystemActor returns an Actor representing the service itself.
func SystemActor() *Actor {
	return &Actor{ID: SystemID, Email: "system@stockledger.local"}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	return a == nil || a.ID == SystemID
}
