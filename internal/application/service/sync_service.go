package service

import (
	"context"
	"fmt"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
	"github.com/garyjia/site-invoices/internal/domain/ledger"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SyncResult describes a completed synchronization
type SyncResult struct {
	Invoice  *entity.Invoice
	Decision Decision
	Created  bool // a new ledger entry was added
}

// SyncService reconciles drafts with the store of record and commits the
// confirmed result to the ledger. It does not serialize overlapping calls
// for the same draft; see DraftBook.
type SyncService interface {
	Synchronize(ctx context.Context, draft *Draft) (*SyncResult, error)
}

type syncServiceImpl struct {
	storage  port.InvoiceStorage
	ledger   *ledger.Ledger
	composer *Composer
	events   port.EventPublisher
	logger   Logger
}

// NewSyncService creates a new SyncService. events may be nil.
func NewSyncService(
	storage port.InvoiceStorage,
	ledger *ledger.Ledger,
	composer *Composer,
	events port.EventPublisher,
	logger Logger,
) SyncService {
	return &syncServiceImpl{
		storage:  storage,
		ledger:   ledger,
		composer: composer,
		events:   events,
		logger:   logger,
	}
}

// Synchronize materializes the draft, decides between create and update,
// performs the remote calls in order and commits to the ledger on success.
// Validation failures are returned as *entity.ValidationError before any
// remote call; remote failures are returned as *entity.SyncError and leave
// both the ledger and the draft fields untouched.
func (s *syncServiceImpl) Synchronize(ctx context.Context, draft *Draft) (*SyncResult, error) {
	next, err := s.composer.Materialize(draft)
	if err != nil {
		return nil, err
	}

	decision := Decide(next, draft.Prior)
	s.logger.Info("Synchronizing invoice",
		"id", next.ID.String(),
		"decision", decision.Kind.String(),
		"with_upload", decision.WithUpload,
	)

	var saved *entity.Invoice
	switch decision.Kind {
	case DecisionCreate:
		if decision.WithUpload {
			ref, err := s.storage.UploadAttachment(ctx, next.FileURI)
			if err != nil {
				s.logger.Error("Attachment upload failed", "id", next.ID.String(), "error", err)
				return nil, &entity.SyncError{Op: "upload", Cause: err}
			}
			next.FileURI = ref.FileURI
			next.ThumbnailURI = ref.ThumbnailURI
		}

		next.Recompute()
		saved, err = s.storage.CreateInvoice(ctx, next)
		if err != nil {
			s.logger.Error("Remote create failed", "id", next.ID.String(), "error", err)
			return nil, &entity.SyncError{Op: "create", Cause: err}
		}

	case DecisionUpdate:
		next.Recompute()
		saved, err = s.storage.UpdateInvoice(ctx, next)
		if err != nil {
			s.logger.Error("Remote update failed", "id", next.ID.String(), "error", err)
			return nil, &entity.SyncError{Op: "update", Cause: err}
		}

	default:
		return nil, fmt.Errorf("unknown decision %d", decision.Kind)
	}

	if saved == nil {
		return nil, &entity.SyncError{Op: decision.Kind.String(), Cause: fmt.Errorf("store returned no record")}
	}

	result := &SyncResult{Invoice: saved, Decision: decision}
	if draft.Prior == nil {
		result.Created = s.ledger.Upsert(saved)
	} else {
		// The saved record may carry a new identity; it takes the place of
		// the entry the draft was opened from.
		result.Created = s.ledger.UpsertAs(draft.Prior.ID, saved)
	}

	s.logger.Info("Invoice synchronized",
		"id", saved.ID.String(),
		"decision", decision.Kind.String(),
		"ledger_size", s.ledger.Len(),
	)

	if s.events != nil {
		eventType := event.TypeInvoiceUpdated
		if decision.Kind == DecisionCreate {
			eventType = event.TypeInvoiceCreated
		}
		evt := event.NewEvent(eventType, saved).WithPayload(event.KeyWithUpload, decision.WithUpload)
		if draft.Prior != nil {
			evt = evt.WithPayload(event.KeyPriorID, draft.Prior.ID.String())
		}
		s.events.Publish(ctx, evt)
	}

	return result, nil
}
