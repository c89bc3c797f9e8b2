// Package ledger holds the in-memory collection of confirmed invoice records
// shown to the presentation layer, together with its derived aggregates.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// Ledger is an ordered collection of invoice records. Newly inserted records
// go to the front. Aggregates are recomputed from the entries on every call.
//
// A Ledger is owned by whichever component composes it; all mutation goes
// through Upsert, UpsertAs, SetStatus, RevertStatus, Remove and Load.
type Ledger struct {
	mu      sync.RWMutex
	entries []*entity.Invoice
	now     func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates an empty ledger
func New(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the ledger contents, keeping the given order.
func (l *Ledger) Load(records []*entity.Invoice) {
	entries := make([]*entity.Invoice, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		entries = append(entries, r.Clone())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
}

// Upsert inserts the record if its identity is absent, otherwise merges it
// into the existing entry. Returns true when a new entry was inserted.
func (l *Ledger) Upsert(record *entity.Invoice) bool {
	return l.UpsertAs(record.ID, record)
}

// UpsertAs merges record into the entry identified by key, adopting the
// record's own identity. When no entry matches key the record is inserted at
// the front. Returns true when a new entry was inserted.
func (l *Ledger) UpsertAs(key entity.Identity, record *entity.Invoice) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	incoming := record.Clone()
	if incoming.UpdatedAt.IsZero() {
		incoming.UpdatedAt = now
	}

	idx := l.indexOf(key)
	if idx < 0 && key != incoming.ID {
		idx = l.indexOf(incoming.ID)
	}

	if idx < 0 {
		if incoming.CreatedAt.IsZero() {
			incoming.CreatedAt = now
		}
		l.entries = append([]*entity.Invoice{incoming}, l.entries...)
		return true
	}

	existing := l.entries[idx]
	if !existing.CreatedAt.IsZero() {
		incoming.CreatedAt = existing.CreatedAt
	} else if incoming.CreatedAt.IsZero() {
		incoming.CreatedAt = now
	}
	l.entries[idx] = incoming

	// A merged identity change may leave a second entry carrying the new id.
	if key != incoming.ID {
		for i := len(l.entries) - 1; i >= 0; i-- {
			if i != idx && l.entries[i].ID == incoming.ID {
				l.entries = append(l.entries[:i], l.entries[i+1:]...)
			}
		}
	}
	return false
}

// SetStatus changes the status of the entry with the given identity and
// stamps UpdatedAt. Any status may move to any other. Returns false when no
// entry matches.
func (l *Ledger) SetStatus(id entity.Identity, status entity.Status) (bool, error) {
	if !status.IsValid() {
		return false, &entity.ValidationError{Field: entity.FieldStatus, Reason: "unknown status " + string(status)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return false, nil
	}

	updated := l.entries[idx].Clone()
	updated.Status = status
	updated.UpdatedAt = l.now()
	l.entries[idx] = updated
	return true, nil
}

// RevertStatus undoes a SetStatus whose change could not be kept. The entry
// gets back previous's status and UpdatedAt only while it still carries the
// status and stamp that SetStatus left (applied); an entry written since is
// left alone. Returns true when the entry was reverted.
func (l *Ledger) RevertStatus(id entity.Identity, applied, previous *entity.Invoice) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}

	current := l.entries[idx]
	if current.Status != applied.Status || !current.UpdatedAt.Equal(applied.UpdatedAt) {
		return false
	}

	reverted := current.Clone()
	reverted.Status = previous.Status
	reverted.UpdatedAt = previous.UpdatedAt
	l.entries[idx] = reverted
	return true
}

// Remove deletes the entry with the given identity. Returns false when no
// entry matches.
func (l *Ledger) Remove(id entity.Identity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	return true
}

// FindByID returns a copy of the entry with the given identity. Absence is
// reported through the boolean, never as an error.
func (l *Ledger) FindByID(id entity.Identity) (*entity.Invoice, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	return l.entries[idx].Clone(), true
}

// List returns copies of all entries in ledger order.
func (l *Ledger) List() []*entity.Invoice {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*entity.Invoice, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of entries
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// OutstandingTotal sums the effective total of all unpaid entries.
func (l *Ledger) OutstandingTotal() decimal.Decimal {
	return l.sumByStatus(entity.StatusUnpaid)
}

// PaidTotal sums the effective total of all paid entries.
func (l *Ledger) PaidTotal() decimal.Decimal {
	return l.sumByStatus(entity.StatusPaid)
}

func (l *Ledger) sumByStatus(status entity.Status) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range l.entries {
		if e.Status == status {
			sum = sum.Add(e.EffectiveTotal())
		}
	}
	return sum
}

// indexOf must be called with the lock held.
func (l *Ledger) indexOf(id entity.Identity) int {
	if id.IsZero() {
		return -1
	}
	for i, e := range l.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
