package event

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/site-invoices/internal/domain/entity"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"invoice created", TypeInvoiceCreated, true},
		{"invoice updated", TypeInvoiceUpdated, true},
		{"status changed", TypeStatusChanged, true},
		{"invoice removed", TypeInvoiceRemoved, true},
		{"ledger refreshed", TypeLedgerRefreshed, true},
		{"empty", Type(""), false},
		{"unknown", Type("invoice.archived"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type(%q).IsValid() = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	inv := &entity.Invoice{
		ID:         entity.ConfirmedID("srv-1"),
		VendorName: "Acme",
		Amount:     decimal.NewFromInt(10),
		Status:     entity.StatusUnpaid,
	}

	before := time.Now()
	evt := NewEvent(TypeInvoiceCreated, inv)

	if evt.ID == "" {
		t.Error("ID is empty")
	}
	if evt.Type != TypeInvoiceCreated {
		t.Errorf("Type = %q", evt.Type)
	}
	if evt.Timestamp.Before(before) {
		t.Errorf("Timestamp %v is before %v", evt.Timestamp, before)
	}
	if evt.InvoiceID() != "confirmed:srv-1" {
		t.Errorf("InvoiceID() = %q", evt.InvoiceID())
	}

	// The event holds its own copy
	inv.Status = entity.StatusPaid
	if evt.Invoice.Status != entity.StatusUnpaid {
		t.Errorf("event invoice changed with the source: %q", evt.Invoice.Status)
	}
}

func TestNewEvent_LedgerWide(t *testing.T) {
	evt := NewEvent(TypeLedgerRefreshed, nil).WithPayload(KeyCount, 3)

	if evt.Invoice != nil {
		t.Error("expected no invoice")
	}
	if evt.InvoiceID() != "" {
		t.Errorf("InvoiceID() = %q, want empty", evt.InvoiceID())
	}
	if got := evt.GetPayloadInt(KeyCount); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestEvent_WithPayloadDoesNotMutate(t *testing.T) {
	original := NewEvent(TypeStatusChanged, nil).WithPayload(KeyPreviousStatus, "unpaid")
	derived := original.WithPayload(KeyWithUpload, true)

	if _, ok := original.Payload[KeyWithUpload]; ok {
		t.Error("original payload was mutated")
	}
	if derived.ID != original.ID {
		t.Error("derived event should keep the ID")
	}
	if derived.GetPayloadString(KeyPreviousStatus) != "unpaid" {
		t.Error("derived event lost existing payload")
	}
	if !derived.GetPayloadBool(KeyWithUpload) {
		t.Error("derived event missing new key")
	}
}

func TestEvent_PayloadGetters(t *testing.T) {
	evt := NewEvent(TypeInvoiceUpdated, nil).
		WithPayload("s", "text").
		WithPayload("i64", int64(7)).
		WithPayload("f", float64(2)).
		WithPayload("b", true)

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"string", evt.GetPayloadString("s"), "text"},
		{"string wrong type", evt.GetPayloadString("b"), ""},
		{"string missing", evt.GetPayloadString("x"), ""},
		{"int64", evt.GetPayloadInt("i64"), 7},
		{"float", evt.GetPayloadInt("f"), 2},
		{"int missing", evt.GetPayloadInt("x"), 0},
		{"bool", evt.GetPayloadBool("b"), true},
		{"bool wrong type", evt.GetPayloadBool("s"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEvent(TypeInvoiceCreated, nil).ID
		if seen[id] {
			t.Fatalf("duplicate ID %s", id)
		}
		seen[id] = true
	}
}
