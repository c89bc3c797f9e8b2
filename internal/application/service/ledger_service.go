package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
	"github.com/garyjia/site-invoices/internal/domain/ledger"
)

// LedgerService exposes the ledger to list and detail views
type LedgerService interface {
	List(ctx context.Context) []*entity.Invoice
	Get(ctx context.Context, id entity.Identity) (*entity.Invoice, bool)
	Totals(ctx context.Context) port.LedgerTotals
	SetStatus(ctx context.Context, id entity.Identity, status entity.Status) (*entity.Invoice, error)
	Remove(ctx context.Context, id entity.Identity) bool
	Refresh(ctx context.Context) error
	Export(ctx context.Context, w io.Writer) error
	ExportContentType() string
}

type ledgerServiceImpl struct {
	ledger   *ledger.Ledger
	storage  port.InvoiceStorage
	exporter port.LedgerExporter
	events   port.EventPublisher
	logger   Logger
}

// NewLedgerService creates a new LedgerService. exporter may be nil, in
// which case Export fails; events may be nil.
func NewLedgerService(
	l *ledger.Ledger,
	storage port.InvoiceStorage,
	exporter port.LedgerExporter,
	events port.EventPublisher,
	logger Logger,
) LedgerService {
	return &ledgerServiceImpl{
		ledger:   l,
		storage:  storage,
		exporter: exporter,
		events:   events,
		logger:   logger,
	}
}

// List returns all ledger entries in ledger order
func (s *ledgerServiceImpl) List(ctx context.Context) []*entity.Invoice {
	return s.ledger.List()
}

// Get looks up a single entry
func (s *ledgerServiceImpl) Get(ctx context.Context, id entity.Identity) (*entity.Invoice, bool) {
	return s.ledger.FindByID(id)
}

// Totals computes the aggregates from the current entries
func (s *ledgerServiceImpl) Totals(ctx context.Context) port.LedgerTotals {
	return port.LedgerTotals{
		Outstanding: s.ledger.OutstandingTotal(),
		Paid:        s.ledger.PaidTotal(),
		Currency:    entity.SupportedCurrency,
		Count:       s.ledger.Len(),
	}
}

// SetStatus changes an entry's status in the ledger and pushes the change to
// the store of record. When the push fails the status change is undone,
// unless the entry was written again in the meantime, and a
// *entity.SyncError is returned.
func (s *ledgerServiceImpl) SetStatus(ctx context.Context, id entity.Identity, status entity.Status) (*entity.Invoice, error) {
	previous, ok := s.ledger.FindByID(id)
	if !ok {
		return nil, entity.ErrInvoiceNotFound
	}

	changed, err := s.ledger.SetStatus(id, status)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, entity.ErrInvoiceNotFound
	}

	updated, _ := s.ledger.FindByID(id)
	if !updated.ID.IsConfirmed() {
		s.publishStatusChange(ctx, updated, previous.Status)
		return updated, nil
	}

	if _, err := s.storage.UpdateInvoice(ctx, updated); err != nil {
		reverted := s.ledger.RevertStatus(id, updated, previous)
		s.logger.Error("Failed to persist status change",
			"id", id.String(),
			"status", string(status),
			"reverted", reverted,
			"error", err,
		)
		return nil, &entity.SyncError{Op: "update", Cause: err}
	}

	s.logger.Info("Invoice status changed",
		"id", id.String(),
		"from", string(previous.Status),
		"to", string(status),
	)
	s.publishStatusChange(ctx, updated, previous.Status)
	return updated, nil
}

func (s *ledgerServiceImpl) publishStatusChange(ctx context.Context, inv *entity.Invoice, from entity.Status) {
	s.publish(ctx, event.NewEvent(event.TypeStatusChanged, inv).WithPayload(event.KeyPreviousStatus, string(from)))
}

func (s *ledgerServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.events != nil {
		s.events.Publish(ctx, evt)
	}
}

// Remove drops an entry from the ledger
func (s *ledgerServiceImpl) Remove(ctx context.Context, id entity.Identity) bool {
	inv, ok := s.ledger.FindByID(id)
	if !ok || !s.ledger.Remove(id) {
		return false
	}

	s.logger.Info("Invoice removed from ledger", "id", id.String())
	s.publish(ctx, event.NewEvent(event.TypeInvoiceRemoved, inv))
	return true
}

// Refresh reloads the ledger from the store of record
func (s *ledgerServiceImpl) Refresh(ctx context.Context) error {
	invoices, err := s.storage.ListInvoices(ctx)
	if err != nil {
		s.logger.Error("Failed to list invoices", "error", err)
		return fmt.Errorf("refresh ledger: %w", err)
	}

	s.ledger.Load(invoices)
	s.logger.Info("Ledger refreshed", "count", len(invoices))
	s.publish(ctx, event.NewEvent(event.TypeLedgerRefreshed, nil).WithPayload(event.KeyCount, len(invoices)))
	return nil
}

// Export writes the ledger with its totals through the configured exporter
func (s *ledgerServiceImpl) Export(ctx context.Context, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("no ledger exporter configured")
	}

	invoices := s.ledger.List()
	if err := s.exporter.Export(ctx, w, invoices, s.Totals(ctx)); err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}
	return nil
}

// ExportContentType returns the MIME type of exported documents
func (s *ledgerServiceImpl) ExportContentType() string {
	if s.exporter == nil {
		return ""
	}
	return s.exporter.ContentType()
}
