package service

import "github.com/garyjia/site-invoices/internal/domain/entity"

// DecisionKind is the remote operation chosen for a synchronization
type DecisionKind int

const (
	DecisionCreate DecisionKind = iota + 1
	DecisionUpdate
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionCreate:
		return "create"
	case DecisionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Decision is the outcome of comparing a materialized record with the
// record it replaces.
type Decision struct {
	Kind       DecisionKind
	WithUpload bool
}

// Decide picks the remote operation for next. A create (preceded by an
// attachment upload) is chosen when there is no prior record, when the
// attachment changed, or when the prior record was never confirmed.
// Otherwise the confirmed record is updated in place.
func Decide(next, prior *entity.Invoice) Decision {
	if prior == nil || next.FileURI != prior.FileURI || !prior.ID.IsConfirmed() {
		return Decision{Kind: DecisionCreate, WithUpload: true}
	}
	return Decision{Kind: DecisionUpdate}
}
