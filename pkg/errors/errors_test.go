package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStock_CarriesShortfall(t *testing.T) {
	err := errors.InsufficientStock("item-1", "loc-1", decimal.NewFromInt(20), decimal.NewFromInt(15))

	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.Equal(t, "INSUFFICIENT_STOCK", err.Code)
	assert.Equal(t, "5", err.Details["shortfall"])
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	wrapped := fmt.Errorf("confirm delivery: %w", err)
	ise, ok := errors.AsInsufficientStock(wrapped)
	require.True(t, ok)
	assert.True(t, ise.Requested.Equal(decimal.NewFromInt(20)))
	assert.True(t, ise.Available.Equal(decimal.NewFromInt(15)))
	assert.True(t, ise.Shortfall().Equal(decimal.NewFromInt(5)))
}

func TestInsufficientStockError_ShortfallNeverNegative(t *testing.T) {
	ise := &errors.InsufficientStockError{Requested: decimal.NewFromInt(1), Available: decimal.NewFromInt(3)}
	assert.True(t, ise.Shortfall().IsZero())
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"concurrency", errors.Concurrency(fmt.Errorf("serialization failure")), true},
		{"wrapped concurrency", fmt.Errorf("movement: %w", errors.Concurrency(fmt.Errorf("deadlock"))), true},
		{"insufficient stock", errors.InsufficientStock("i", "l", decimal.NewFromInt(2), decimal.Zero), false},
		{"invalid transition", errors.InvalidStateTransition("delivery_order", "DELIVERED", "CANCELLED"), false},
		{"validation", errors.Validation(map[string]string{"quantity": "must be positive"}), false},
		{"plain", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.IsRetriable(tt.err))
		})
	}
}

func TestInvalidStateTransition_Details(t *testing.T) {
	err := errors.InvalidStateTransition("goods_receipt", "PASSED", "PENDING")
	assert.Equal(t, "INVALID_STATE_TRANSITION", err.Code)
	assert.Equal(t, "PASSED", err.Details["from"])
	assert.Equal(t, "PENDING", err.Details["to"])
	assert.Contains(t, err.Error(), "goods_receipt cannot move from PASSED to PENDING")
}
