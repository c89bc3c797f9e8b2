package event

// Type identifies the type of ledger event
type Type string

const (
	TypeInvoiceCreated  Type = "invoice.created"
	TypeInvoiceUpdated  Type = "invoice.updated"
	TypeStatusChanged   Type = "invoice.status_changed"
	TypeInvoiceRemoved  Type = "invoice.removed"
	TypeLedgerRefreshed Type = "ledger.refreshed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInvoiceCreated,
		TypeInvoiceUpdated,
		TypeStatusChanged,
		TypeInvoiceRemoved,
		TypeLedgerRefreshed:
		return true
	default:
		return false
	}
}
