package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventStockReceived          = "stock.record.received"
	EventStockAdjusted          = "stock.record.adjusted"
	EventStockAllocated         = "stock.record.allocated"
	EventStockReserved          = "stock.record.reserved"
	EventStockUnreserved        = "stock.record.unreserved"
	EventDeliveryStatusChanged  = "stock.delivery.status_changed"
	EventReceiptStatusChanged   = "stock.receipt.status_changed"
	EventWorkOrderStatusChanged = "stock.work_order.status_changed"
	EventWorkOrderOutput        = "stock.work_order.output_recorded"
	EventDocumentCreated        = "stock.document.created"
	EventBatchExpiring          = "stock.batch.expiring"
)

// Exchange names
const (
	ExchangeStockAudit = "stock.audit"
)

// Event is the envelope published on the broker
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// AuditPayload is the body of every stock mutation event.
type AuditPayload struct {
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Actor      string          `json:"actor"`
	OldValues  json.RawMessage `json:"old_values,omitempty"`
	NewValues  json.RawMessage `json:"new_values,omitempty"`
}

// BatchExpiringEvent is published by the expiry scanner for each batch
// that expires inside the configured window.
type BatchExpiringEvent struct {
	StockRecordID string    `json:"stock_record_id"`
	ItemID        string    `json:"item_id"`
	LocationID    string    `json:"location_id"`
	Batch         string    `json:"batch,omitempty"`
	Quantity      string    `json:"quantity"`
	ExpiryDate    time.Time `json:"expiry_date"`
	DaysLeft      int       `json:"days_left"`
}
