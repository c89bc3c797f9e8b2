package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/ledger"
)

var (
	// ErrDraftNotFound is returned for an unknown draft handle
	ErrDraftNotFound = errors.New("draft not found")

	// ErrSubmissionInProgress is returned while a draft is being synchronized
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

type draftEntry struct {
	draft    *Draft
	inFlight bool
}

// DraftBook keeps the working drafts of the presentation layer and enforces
// that at most one synchronization per draft is outstanding.
type DraftBook struct {
	mu       sync.Mutex
	drafts   map[string]*draftEntry
	composer *Composer
	sync     SyncService
	ledger   *ledger.Ledger
	logger   Logger
}

// NewDraftBook creates a new DraftBook
func NewDraftBook(composer *Composer, syncService SyncService, l *ledger.Ledger, logger Logger) *DraftBook {
	return &DraftBook{
		drafts:   make(map[string]*draftEntry),
		composer: composer,
		sync:     syncService,
		ledger:   l,
		logger:   logger,
	}
}

// Open starts a draft. A zero identity opens a create-mode draft; otherwise
// the matching ledger entry is loaded for editing.
func (b *DraftBook) Open(from entity.Identity) (string, *Draft, error) {
	var existing *entity.Invoice
	if !from.IsZero() {
		inv, ok := b.ledger.FindByID(from)
		if !ok {
			return "", nil, entity.ErrInvoiceNotFound
		}
		existing = inv
	}

	d := b.composer.StartDraft(existing)
	handle := uuid.NewString()

	b.mu.Lock()
	b.drafts[handle] = &draftEntry{draft: d}
	b.mu.Unlock()

	b.logger.Info("Draft opened", "handle", handle, "from", from.String())
	return handle, d.Clone(), nil
}

// Get returns a copy of the draft
func (b *DraftBook) Get(handle string) (*Draft, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.drafts[handle]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return e.draft.Clone(), nil
}

// Edit applies field edits to the draft
func (b *DraftBook) Edit(handle string, edit DraftEdit) (*Draft, error) {
	return b.mutate(handle, func(d *Draft) error {
		b.composer.ApplyEdit(d, edit)
		return nil
	})
}

// Attach points the draft at a captured document
func (b *DraftBook) Attach(handle, fileURI, thumbnailURI string) (*Draft, error) {
	return b.mutate(handle, func(d *Draft) error {
		return b.composer.AttachFile(d, fileURI, thumbnailURI)
	})
}

// Prefill fills empty draft fields from extracted values
func (b *DraftBook) Prefill(handle string, x *port.ExtractedFields) (*Draft, []string, error) {
	var applied []string
	d, err := b.mutate(handle, func(d *Draft) error {
		applied = b.composer.Prefill(d, x)
		return nil
	})
	return d, applied, err
}

// Discard drops the draft
func (b *DraftBook) Discard(handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.drafts[handle]
	if !ok {
		return ErrDraftNotFound
	}
	if e.inFlight {
		return ErrSubmissionInProgress
	}
	delete(b.drafts, handle)
	return nil
}

// Submit synchronizes the draft. A successful submission discards the
// draft; a failed one keeps it, fields as entered, for a retry.
func (b *DraftBook) Submit(ctx context.Context, handle string) (*SyncResult, error) {
	b.mu.Lock()
	e, ok := b.drafts[handle]
	if !ok {
		b.mu.Unlock()
		return nil, ErrDraftNotFound
	}
	if e.inFlight {
		b.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	e.inFlight = true
	work := e.draft.Clone()
	b.mu.Unlock()

	result, err := b.sync.Synchronize(ctx, work)

	b.mu.Lock()
	defer b.mu.Unlock()
	e.inFlight = false
	if err != nil {
		// Keep the draft identity minted during the attempt so a retry reuses it.
		e.draft = work
		b.logger.Error("Draft submission failed", "handle", handle, "error", err)
		return nil, err
	}

	delete(b.drafts, handle)
	b.logger.Info("Draft submitted", "handle", handle, "id", result.Invoice.ID.String())
	return result, nil
}

// Len returns the number of open drafts
func (b *DraftBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.drafts)
}

// References reports whether an open draft points at uri as its attachment
func (b *DraftBook) References(uri string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.drafts {
		if e.draft.Fields.FileURI == uri {
			return true
		}
	}
	return false
}

func (b *DraftBook) mutate(handle string, fn func(d *Draft) error) (*Draft, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.drafts[handle]
	if !ok {
		return nil, ErrDraftNotFound
	}
	if e.inFlight {
		return nil, ErrSubmissionInProgress
	}

	work := e.draft.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	e.draft = work
	return work.Clone(), nil
}
