package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/infrastructure/persistence/repository"
	"github.com/garyjia/site-invoices/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/site-invoices/internal/infrastructure/storage"
	"github.com/garyjia/site-invoices/pkg/database"
)

type failingBlobs struct {
	port.BlobStore
	err error
}

func (f *failingBlobs) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	return "", f.err
}

type fixture struct {
	store   *Store
	staging *storage.StagingArea
	blobs   port.BlobStore
	repo    port.InvoiceRepository
}

func newFixture(t *testing.T, blobs func(port.BlobStore) port.BlobStore) *fixture {
	t.Helper()
	logger := zap.NewNop()
	dir := t.TempDir()

	db, err := database.New(database.Config{Path: filepath.Join(dir, "store.db"), MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunEmbedded())

	staging := storage.NewStagingArea(storage.NewLocalFileStorage(filepath.Join(dir, "staging"), logger), logger)
	var blobStore port.BlobStore = storage.NewLocalBlobStore(storage.NewLocalFileStorage(filepath.Join(dir, "blobs"), logger), logger)
	if blobs != nil {
		blobStore = blobs(blobStore)
	}
	repo := repository.NewInvoiceRepository(db.DB, logger)

	n := 0
	store := NewStore(
		staging,
		blobStore,
		storage.NewThumbnailRenderer(32, 80),
		repo,
		repository.NewAttachmentRepository(db.DB, logger),
		sqlite.NewDB(db.DB, logger),
		logger,
		WithIDs(func() entity.Identity {
			n++
			return entity.ConfirmedID(fmt.Sprintf("inv-%d", n))
		}),
	)
	return &fixture{store: store, staging: staging, blobs: blobStore, repo: repo}
}

func pngBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 100, 50))))
	return buf.Bytes()
}

func draftInvoice(fileURI string) *entity.Invoice {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	inv := &entity.Invoice{
		ID:         entity.DraftID("d-1"),
		VendorName: "Acme",
		Amount:     decimal.NewFromInt(100),
		TaxAmount:  decimal.NewFromInt(8),
		Currency:   entity.SupportedCurrency,
		IssueDate:  now,
		Category:   entity.CategoryMaterials,
		Status:     entity.StatusUnpaid,
		FileURI:    fileURI,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inv.Recompute()
	return inv
}

func TestStore_UploadAttachment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	localURI, err := f.staging.Stage(ctx, "receipt.png", pngBytes(t))
	require.NoError(t, err)

	ref, err := f.store.UploadAttachment(ctx, localURI)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.FileURI, storage.StoreScheme+"attachments/"))
	assert.True(t, strings.HasSuffix(ref.FileURI, "/receipt.png"))
	assert.True(t, strings.HasPrefix(ref.ThumbnailURI, storage.StoreScheme+"thumbnails/"))

	file, err := f.store.OpenAttachment(ctx, ref.FileURI)
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, "receipt.png", file.FileName)

	thumb, err := f.store.OpenAttachment(ctx, ref.ThumbnailURI)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", thumb.MimeType)

	again, err := f.store.UploadAttachment(ctx, ref.FileURI)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
}

func TestStore_UploadWithoutThumbnail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	localURI, err := f.staging.Stage(ctx, "notes.txt", []byte("plain text receipt"))
	require.NoError(t, err)

	ref, err := f.store.UploadAttachment(ctx, localURI)
	require.NoError(t, err)
	assert.NotEmpty(t, ref.FileURI)
	assert.Empty(t, ref.ThumbnailURI)
}

func TestStore_UploadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown local uri", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.store.UploadAttachment(ctx, "local://missing.jpg")
		var uploadErr *entity.UploadError
		require.ErrorAs(t, err, &uploadErr)
		assert.Equal(t, "local://missing.jpg", uploadErr.URI)
	})

	t.Run("unknown stored uri", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.store.UploadAttachment(ctx, "store://attachments/nope.jpg")
		var uploadErr *entity.UploadError
		assert.ErrorAs(t, err, &uploadErr)
	})

	t.Run("blob store down", func(t *testing.T) {
		down := errors.New("disk full")
		f := newFixture(t, func(b port.BlobStore) port.BlobStore { return &failingBlobs{BlobStore: b, err: down} })

		localURI, err := f.staging.Stage(ctx, "a.png", pngBytes(t))
		require.NoError(t, err)

		_, err = f.store.UploadAttachment(ctx, localURI)
		var uploadErr *entity.UploadError
		require.ErrorAs(t, err, &uploadErr)
		assert.ErrorIs(t, err, down)
	})
}

func TestStore_CreateInvoice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	draft := draftInvoice("store://attachments/x/a.png")
	saved, err := f.store.CreateInvoice(ctx, draft)
	require.NoError(t, err)

	assert.Equal(t, entity.ConfirmedID("inv-1"), saved.ID)
	assert.Equal(t, entity.DraftID("d-1"), draft.ID)
	assert.True(t, saved.CreatedAt.Equal(draft.CreatedAt))

	stored, err := f.repo.GetByID(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", stored.VendorName)
	assert.Equal(t, "108", stored.TotalAmount.Decimal.String())
}

func TestStore_CreateReplacesConfirmedRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	original, err := f.store.CreateInvoice(ctx, draftInvoice("store://attachments/x/a.png"))
	require.NoError(t, err)

	replacement := original.Clone()
	replacement.FileURI = "store://attachments/y/b.png"
	saved, err := f.store.CreateInvoice(ctx, replacement)
	require.NoError(t, err)
	assert.Equal(t, entity.ConfirmedID("inv-2"), saved.ID)
	assert.True(t, saved.CreatedAt.Equal(original.CreatedAt))

	list, err := f.store.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
	assert.Equal(t, "store://attachments/y/b.png", list[0].FileURI)

	// a second replacement of the same record is refused and leaves no row
	again := original.Clone()
	again.FileURI = "store://attachments/z/c.png"
	_, err = f.store.CreateInvoice(ctx, again)
	var remoteErr *entity.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.ErrorIs(t, err, entity.ErrInvoiceNotFound)

	_, err = f.repo.GetByID(ctx, "inv-3")
	assert.ErrorIs(t, err, entity.ErrInvoiceNotFound)

	list, err = f.store.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_CreateRejectsLocalAttachment(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.store.CreateInvoice(context.Background(), draftInvoice("local://a.png"))
	var remoteErr *entity.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "create", remoteErr.Op)
	assert.ErrorIs(t, err, ErrNotUploaded)
}

func TestStore_CreateRejectsInvalidRecord(t *testing.T) {
	f := newFixture(t, nil)
	inv := draftInvoice("store://attachments/a.png")
	inv.VendorName = " "

	_, err := f.store.CreateInvoice(context.Background(), inv)
	var remoteErr *entity.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, entity.IsValidationError(err))
}

func TestStore_UpdateInvoice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	saved, err := f.store.CreateInvoice(ctx, draftInvoice("store://attachments/a.png"))
	require.NoError(t, err)

	edit := saved.Clone()
	edit.Notes = "called vendor"
	edit.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	updated, err := f.store.UpdateInvoice(ctx, edit)
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(saved.CreatedAt))
	assert.Equal(t, saved.ID, updated.ID)

	list, err := f.store.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "called vendor", list[0].Notes)
}

func TestStore_UpdateFailures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.UpdateInvoice(ctx, draftInvoice("store://attachments/a.png"))
	var remoteErr *entity.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "update", remoteErr.Op)

	ghost := draftInvoice("store://attachments/a.png")
	ghost.ID = entity.ConfirmedID("ghost")
	_, err = f.store.UpdateInvoice(ctx, ghost)
	assert.ErrorIs(t, err, entity.ErrInvoiceNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := draftInvoice("store://attachments/a.png")
	second := draftInvoice("store://attachments/b.png")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)

	_, err := f.store.CreateInvoice(ctx, first)
	require.NoError(t, err)
	_, err = f.store.CreateInvoice(ctx, second)
	require.NoError(t, err)

	list, err := f.store.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "inv-2", list[0].ID.Value())
}
