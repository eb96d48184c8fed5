package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stockledger/stockledger-backend/pkg/config"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// RetryPolicy bounds the retries of a movement that hit an isolation conflict.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy retries three times starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second}
}

// RetryPolicyFromConfig reads the policy from the ledger configuration.
func RetryPolicyFromConfig(cfg config.LedgerConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

// Retry runs op, repeating it with exponential backoff while it fails with a
// retriable concurrency error. Any other error is returned at once. A
// negative MaxRetries retries until ctx is done.
func Retry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		eb.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		eb.MaxInterval = p.MaxBackoff
	}
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	switch {
	case p.MaxRetries == 0:
		b = &backoff.StopBackOff{}
	case p.MaxRetries > 0:
		b = backoff.WithMaxRetries(eb, uint64(p.MaxRetries))
	}

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil || errors.IsRetriable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}
