package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
	"github.com/garyjia/site-invoices/internal/domain/ledger"
)

type mockStorage struct {
	mu    sync.Mutex
	calls []string

	uploadFunc func(ctx context.Context, localURI string) (*entity.AttachmentRef, error)
	createFunc func(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error)
	updateFunc func(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error)
	listFunc   func(ctx context.Context) ([]*entity.Invoice, error)

	created []*entity.Invoice
	updated []*entity.Invoice
}

func (m *mockStorage) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockStorage) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockStorage) UploadAttachment(ctx context.Context, localURI string) (*entity.AttachmentRef, error) {
	m.record("upload")
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, localURI)
	}
	return &entity.AttachmentRef{
		FileURI:      "store://attachments/" + strings.TrimPrefix(localURI, "local://"),
		ThumbnailURI: "store://thumbnails/thumb.jpg",
	}, nil
}

func (m *mockStorage) CreateInvoice(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	m.record("create")
	m.mu.Lock()
	m.created = append(m.created, inv.Clone())
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(ctx, inv)
	}
	saved := inv.Clone()
	saved.ID = entity.ConfirmedID("srv-1")
	return saved, nil
}

func (m *mockStorage) UpdateInvoice(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	m.record("update")
	m.mu.Lock()
	m.updated = append(m.updated, inv.Clone())
	m.mu.Unlock()
	if m.updateFunc != nil {
		return m.updateFunc(ctx, inv)
	}
	return inv.Clone(), nil
}

func (m *mockStorage) ListInvoices(ctx context.Context) ([]*entity.Invoice, error) {
	m.record("list")
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

type mockPublisher struct {
	events []*event.Event
}

func (m *mockPublisher) Publish(ctx context.Context, evt *event.Event) {
	m.events = append(m.events, evt)
}

func (m *mockPublisher) types() []event.Type {
	var types []event.Type
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

type mockExporter struct {
	invoices []*entity.Invoice
	totals   port.LedgerTotals
}

func (m *mockExporter) Export(ctx context.Context, w io.Writer, invoices []*entity.Invoice, totals port.LedgerTotals) error {
	m.invoices = invoices
	m.totals = totals
	_, err := w.Write([]byte("exported"))
	return err
}

func (m *mockExporter) ContentType() string { return "text/plain" }

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestComposer(clock *stepClock) *Composer {
	n := 0
	return NewComposer(
		WithComposerClock(clock.Now),
		WithDraftIDs(func() entity.Identity {
			n++
			return entity.DraftID(fmt.Sprintf("draft-%d", n))
		}),
	)
}

func confirmedInvoice(id string, status entity.Status) *entity.Invoice {
	inv := &entity.Invoice{
		ID:         entity.ConfirmedID(id),
		VendorName: "Acme",
		Amount:     decimal.NewFromInt(100),
		TaxAmount:  decimal.NewFromInt(8),
		Currency:   entity.SupportedCurrency,
		Category:   entity.CategoryMaterials,
		Status:     status,
		FileURI:    "store://attachments/" + id + ".jpg",
		IssueDate:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	inv.Recompute()
	return inv
}

func strPtr(s string) *string { return &s }

func newTestLedger(clock *stepClock) *ledger.Ledger {
	return ledger.New(ledger.WithClock(clock.Now))
}
