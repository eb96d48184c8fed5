// Package sequence issues monotonic document numbers of the form
// PREFIX-YYYYMM-0001, one counter per prefix and month.
package sequence

import (
	"context"
	"fmt"
	"time"
)

// Counter issues the next document number for prefix in the month of at.
type Counter interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

// Period returns the counter period (YYYYMM, UTC) of at.
func Period(at time.Time) string {
	return at.UTC().Format("200601")
}

// Format renders a document number.
func Format(prefix string, at time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, Period(at), n)
}
