package events

import (
	"context"
	"math"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
)

// ExpiringFinder lists positive stock expiring within days. *query.Service
// implements it.
type ExpiringFinder interface {
	ExpiringSoon(ctx context.Context, days int, locationID *string) ([]domain.StockRecord, error)
}

// ExpiryScanner publishes a stock.batch.expiring event per record that
// expires inside the window.
type ExpiryScanner struct {
	finder     ExpiringFinder
	publisher  Publisher
	windowDays int
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

// NewExpiryScanner creates a scanner looking windowDays ahead.
func NewExpiryScanner(finder ExpiringFinder, publisher Publisher, windowDays int, m *metrics.Metrics, log *logger.Logger) *ExpiryScanner {
	return &ExpiryScanner{
		finder:     finder,
		publisher:  publisher,
		windowDays: windowDays,
		metrics:    m,
		logger:     log.WithComponent("expiry-scanner"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Scan publishes one event per expiring record and returns how many were
// found. Publish failures are logged and the scan continues; the last one
// is returned.
func (s *ExpiryScanner) Scan(ctx context.Context) (int, error) {
	records, err := s.finder.ExpiringSoon(ctx, s.windowDays, nil)
	if err != nil {
		return 0, err
	}
	s.metrics.SetExpiring(len(records))

	now := s.now()
	var lastErr error
	for i := range records {
		rec := &records[i]
		if rec.ExpiryDate == nil {
			continue
		}
		data := messaging.BatchExpiringEvent{
			StockRecordID: rec.ID,
			ItemID:        rec.ItemID,
			LocationID:    rec.LocationID,
			Batch:         rec.Batch,
			Quantity:      rec.Quantity.String(),
			ExpiryDate:    *rec.ExpiryDate,
			DaysLeft:      daysUntil(now, *rec.ExpiryDate),
		}
		if err := s.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
			s.logger.Error().Err(err).
				Str("stock_record_id", rec.ID).
				Msg("failed to publish batch expiring event")
			lastErr = err
		}
	}

	s.logger.Info().Int("expiring", len(records)).Int("window_days", s.windowDays).Msg("expiry scan completed")
	return len(records), lastErr
}

func daysUntil(now, expiry time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}
