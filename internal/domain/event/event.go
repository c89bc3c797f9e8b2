package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// Payload keys used by the ledger services
const (
	KeyPreviousStatus = "previous_status"
	KeyPriorID        = "prior_id"
	KeyWithUpload     = "with_upload"
	KeyCount          = "count"
)

// Event records a change to the ledger
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Invoice   *entity.Invoice        `json:"invoice,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event about invoice, which may be nil for
// ledger-wide events. The invoice is copied.
func NewEvent(eventType Type, invoice *entity.Invoice) *Event {
	return &Event{
		ID:        newID(),
		Type:      eventType,
		Invoice:   invoice.Clone(),
		Payload:   map[string]interface{}{},
		Timestamp: time.Now(),
	}
}

// WithPayload returns a copy of the event with key set
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	c := *e
	c.Payload = payload
	return &c
}

// InvoiceID returns the identity of the event's invoice as a string, or ""
func (e *Event) InvoiceID() string {
	if e.Invoice == nil {
		return ""
	}
	return e.Invoice.ID.String()
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int {
	switch v := e.Payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
