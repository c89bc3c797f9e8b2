package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
)

type syncFixture struct {
	clock    *stepClock
	composer *Composer
	storage  *mockStorage
	events   *mockPublisher
	service  SyncService
}

func newSyncFixture(storage *mockStorage, seed ...*entity.Invoice) (*syncFixture, func() int) {
	clock := newStepClock()
	composer := newTestComposer(clock)
	l := newTestLedger(clock)
	l.Load(seed)
	events := &mockPublisher{}
	f := &syncFixture{
		clock:    clock,
		composer: composer,
		storage:  storage,
		events:   events,
		service:  NewSyncService(storage, l, composer, events, &mockLogger{}),
	}
	return f, l.Len
}

func TestSyncService_CreateNewInvoice(t *testing.T) {
	storage := &mockStorage{}
	f, ledgerLen := newSyncFixture(storage)

	d := f.composer.StartDraft(nil)
	f.composer.ApplyEdit(d, DraftEdit{
		VendorName: strPtr("Acme"),
		Amount:     strPtr("100.00"),
		TaxAmount:  strPtr("8.00"),
	})
	require.NoError(t, f.composer.AttachFile(d, "local://a.jpg", ""))

	result, err := f.service.Synchronize(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, []string{"upload", "create"}, storage.Calls())
	assert.Equal(t, Decision{Kind: DecisionCreate, WithUpload: true}, result.Decision)
	assert.True(t, result.Created)
	assert.Equal(t, 1, ledgerLen())

	saved := result.Invoice
	assert.Equal(t, entity.ConfirmedID("srv-1"), saved.ID)
	assert.Equal(t, "store://attachments/a.jpg", saved.FileURI)
	assert.Equal(t, "store://thumbnails/thumb.jpg", saved.ThumbnailURI)
	assert.True(t, saved.TotalAmount.Decimal.Equal(decimal.NewFromInt(108)))

	require.Len(t, storage.created, 1)
	assert.True(t, storage.created[0].ID.IsDraft())
	assert.Equal(t, "store://attachments/a.jpg", storage.created[0].FileURI)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, event.TypeInvoiceCreated, f.events.events[0].Type)
	assert.True(t, f.events.events[0].GetPayloadBool(event.KeyWithUpload))
	assert.Equal(t, saved.ID, f.events.events[0].Invoice.ID)
}

func TestSyncService_NotesOnlyEditUpdatesInPlace(t *testing.T) {
	existing := confirmedInvoice("r1", entity.StatusUnpaid)
	storage := &mockStorage{}
	f, ledgerLen := newSyncFixture(storage, existing)

	d := f.composer.StartDraft(existing)
	f.composer.ApplyEdit(d, DraftEdit{Notes: strPtr("called vendor")})

	result, err := f.service.Synchronize(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, []string{"update"}, storage.Calls())
	assert.Equal(t, DecisionUpdate, result.Decision.Kind)
	assert.False(t, result.Created)
	assert.Equal(t, 1, ledgerLen())

	require.Len(t, storage.updated, 1)
	sent := storage.updated[0]
	assert.Equal(t, entity.ConfirmedID("r1"), sent.ID)
	assert.Equal(t, "called vendor", sent.Notes)
	assert.Equal(t, existing.FileURI, sent.FileURI)
	assert.Equal(t, existing.CreatedAt, sent.CreatedAt)
}

func TestSyncService_ReplacedAttachmentCreatesNewRecord(t *testing.T) {
	existing := confirmedInvoice("r1", entity.StatusUnpaid)
	storage := &mockStorage{
		createFunc: func(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
			saved := inv.Clone()
			saved.ID = entity.ConfirmedID("r2")
			return saved, nil
		},
	}
	f, ledgerLen := newSyncFixture(storage, existing)

	d := f.composer.StartDraft(existing)
	require.NoError(t, f.composer.AttachFile(d, "local://new.jpg", ""))

	result, err := f.service.Synchronize(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, []string{"upload", "create"}, storage.Calls())
	assert.Equal(t, entity.ConfirmedID("r2"), result.Invoice.ID)
	assert.False(t, result.Created)
	assert.Equal(t, 1, ledgerLen())
}

func TestSyncService_DraftIdentityNeverUpdates(t *testing.T) {
	unconfirmed := confirmedInvoice("r1", entity.StatusUnassigned)
	unconfirmed.ID = entity.DraftID("d-local")
	storage := &mockStorage{}
	f, ledgerLen := newSyncFixture(storage, unconfirmed)

	d := f.composer.StartDraft(unconfirmed)
	f.composer.ApplyEdit(d, DraftEdit{Notes: strPtr("retry")})

	result, err := f.service.Synchronize(context.Background(), d)
	require.NoError(t, err)

	assert.NotContains(t, storage.Calls(), "update")
	assert.Equal(t, []string{"upload", "create"}, storage.Calls())
	assert.True(t, result.Invoice.ID.IsConfirmed())
	assert.Equal(t, 1, ledgerLen())
}

func TestSyncService_Failures(t *testing.T) {
	remoteErr := errors.New("connection reset")

	tests := []struct {
		name    string
		storage *mockStorage
		edit    bool
		wantOp  string
		calls   []string
	}{
		{
			name: "upload fails",
			storage: &mockStorage{
				uploadFunc: func(ctx context.Context, localURI string) (*entity.AttachmentRef, error) {
					return nil, remoteErr
				},
			},
			wantOp: "upload",
			calls:  []string{"upload"},
		},
		{
			name: "create fails",
			storage: &mockStorage{
				createFunc: func(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
					return nil, remoteErr
				},
			},
			wantOp: "create",
			calls:  []string{"upload", "create"},
		},
		{
			name: "update fails",
			storage: &mockStorage{
				updateFunc: func(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
					return nil, remoteErr
				},
			},
			edit:   true,
			wantOp: "update",
			calls:  []string{"update"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := confirmedInvoice("r1", entity.StatusUnpaid)
			f, ledgerLen := newSyncFixture(tt.storage, existing)

			var d *Draft
			if tt.edit {
				d = f.composer.StartDraft(existing)
				f.composer.ApplyEdit(d, DraftEdit{Notes: strPtr("changed")})
			} else {
				d = f.composer.StartDraft(nil)
				f.composer.ApplyEdit(d, DraftEdit{VendorName: strPtr("Acme"), Amount: strPtr("10")})
				require.NoError(t, f.composer.AttachFile(d, "local://a.jpg", ""))
			}
			fieldsBefore := d.Fields

			result, err := f.service.Synchronize(context.Background(), d)

			require.Error(t, err)
			assert.Nil(t, result)
			var syncErr *entity.SyncError
			require.ErrorAs(t, err, &syncErr)
			assert.Equal(t, tt.wantOp, syncErr.Op)
			assert.ErrorIs(t, err, remoteErr)
			assert.Equal(t, tt.calls, tt.storage.Calls())
			assert.Equal(t, 1, ledgerLen())
			assert.Empty(t, f.events.events)

			assert.Equal(t, fieldsBefore.VendorName, d.Fields.VendorName)
			assert.Equal(t, fieldsBefore.FileURI, d.Fields.FileURI)
			assert.Equal(t, fieldsBefore.Notes, d.Fields.Notes)
		})
	}
}

func TestSyncService_ValidationFailureMakesNoRemoteCalls(t *testing.T) {
	storage := &mockStorage{}
	f, ledgerLen := newSyncFixture(storage)

	d := f.composer.StartDraft(nil)
	f.composer.ApplyEdit(d, DraftEdit{VendorName: strPtr("Acme"), Amount: strPtr("12")})

	_, err := f.service.Synchronize(context.Background(), d)
	require.Error(t, err)

	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, entity.FieldFileURI, verr.Field)
	assert.Empty(t, storage.Calls())
	assert.Equal(t, 0, ledgerLen())
}

func TestSyncService_PublishesUpdateWithPrior(t *testing.T) {
	storage := &mockStorage{}
	prior := confirmedInvoice("srv-9", entity.StatusUnpaid)
	f, _ := newSyncFixture(storage, prior)

	d := f.composer.StartDraft(prior)
	f.composer.ApplyEdit(d, DraftEdit{Notes: strPtr("second delivery")})

	result, err := f.service.Synchronize(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, DecisionUpdate, result.Decision.Kind)

	require.Len(t, f.events.events, 1)
	evt := f.events.events[0]
	assert.Equal(t, event.TypeInvoiceUpdated, evt.Type)
	assert.Equal(t, "confirmed:srv-9", evt.GetPayloadString(event.KeyPriorID))
	assert.False(t, evt.GetPayloadBool(event.KeyWithUpload))
}
