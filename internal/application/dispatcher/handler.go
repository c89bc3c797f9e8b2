package dispatcher

import (
	"context"

	"github.com/garyjia/site-invoices/internal/domain/event"
)

// Handler reacts to a ledger event
type Handler func(ctx context.Context, evt *event.Event) error

type subscription struct {
	name    string
	handler Handler
}
