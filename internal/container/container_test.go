package container

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/site-invoices/internal/application/service"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "invoices.db")
	cfg.Storage.LocalDir = filepath.Join(dir, "blobs")
	cfg.Storage.StagingDir = filepath.Join(dir, "staging")
	return cfg
}

func strPtr(s string) *string { return &s }

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Storage.Driver = "ftp"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"missing local dir", func(c *Config) { c.Storage.LocalDir = "" }, true},
		{"s3 without bucket", func(c *Config) { c.Storage.Driver = StorageDriverS3 }, true},
		{"s3 with bucket", func(c *Config) { c.Storage.Driver = StorageDriverS3; c.Storage.S3Bucket = "b" }, false},
		{"missing staging dir", func(c *Config) { c.Storage.StagingDir = "" }, true},
		{"zero thumbnail size", func(c *Config) { c.Storage.ThumbnailMaxPx = 0 }, true},
		{"zero staging max age", func(c *Config) { c.Storage.StagingMaxAge = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, c.Ready())
	assert.False(t, c.Health().Overall)
	assert.Error(t, c.StartWorkers(), "workers before start")

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start")

	health := c.Health()
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["prefill"].Message)
	assert.Equal(t, "disabled", health.Components["notifications"].Message)
	assert.Nil(t, c.Extractor())
	assert.Equal(t, "disabled", health.Components["workers"].Message)

	require.NoError(t, c.StartWorkers())
	assert.Equal(t, "enabled", c.Health().Components["workers"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(ctx), "start after close")
}

func TestContainer_SubmitAndReload(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))

	uri, err := c.Storage().Staging.Stage(ctx, "receipt.txt", []byte("lumber 2x4 x 40"))
	require.NoError(t, err)

	drafts := c.Services().Drafts
	handle, _, err := drafts.Open(entity.Identity{})
	require.NoError(t, err)
	_, err = drafts.Edit(handle, service.DraftEdit{
		VendorName: strPtr("Acme Lumber"),
		Amount:     strPtr("100"),
		TaxAmount:  strPtr("8"),
	})
	require.NoError(t, err)
	_, err = drafts.Attach(handle, uri, "")
	require.NoError(t, err)

	result, err := drafts.Submit(ctx, handle)
	require.NoError(t, err)
	assert.True(t, result.Invoice.ID.IsConfirmed())
	assert.Equal(t, "108", result.Invoice.EffectiveTotal().String())
	assert.NotEqual(t, uri, result.Invoice.FileURI)
	require.NoError(t, c.Close())

	// A fresh container loads the ledger from the store of record
	reopened, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, reopened.Start(ctx))
	defer reopened.Close()

	inv, ok := reopened.Ledger().FindByID(result.Invoice.ID)
	require.True(t, ok)
	assert.Equal(t, "Acme Lumber", inv.VendorName)

	file, err := reopened.Store().OpenAttachment(ctx, inv.FileURI)
	require.NoError(t, err)
	assert.Equal(t, "lumber 2x4 x 40", string(file.Content))
}

func TestConvertToZapFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewServiceLogger(zap.New(core))

	logger.Info("Draft opened", "handle", "h1", 42, "ignored", "count", 3)
	logger.Error("Failed", "error", assert.AnError)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{"handle": "h1", "count": int64(3)}, entries[0].ContextMap())
	assert.Equal(t, assert.AnError.Error(), entries[1].ContextMap()["error"])
}

type recordingNotifier struct {
	mu    sync.Mutex
	types []event.Type
}

func (n *recordingNotifier) HandleEvent(ctx context.Context, evt *event.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.types = append(n.types, evt.Type)
	return nil
}

func TestProvideDispatcher(t *testing.T) {
	notifier := &recordingNotifier{}
	d := ProvideDispatcher(notifier, zap.NewNop())

	assert.Equal(t, []string{"notifier"}, d.Handlers(event.TypeInvoiceCreated))
	assert.Equal(t, []string{"notifier"}, d.Handlers(event.TypeStatusChanged))
	assert.Empty(t, d.Handlers(event.TypeInvoiceRemoved))

	d.Publish(context.Background(), event.NewEvent(event.TypeInvoiceCreated, nil))
	d.Publish(context.Background(), event.NewEvent(event.TypeLedgerRefreshed, nil))
	require.NoError(t, d.Close())
	assert.Equal(t, []event.Type{event.TypeInvoiceCreated}, notifier.types)

	disabled := ProvideDispatcher(nil, zap.NewNop())
	assert.Empty(t, disabled.Handlers(event.TypeInvoiceCreated))
}

func TestContainer_NotificationHealth(t *testing.T) {
	notifier := &recordingNotifier{}
	tests := []struct {
		name        string
		container   *Container
		wantHealthy bool
		wantMessage string
	}{
		{
			name:        "disabled",
			container:   &Container{events: ProvideDispatcher(nil, zap.NewNop())},
			wantHealthy: true,
			wantMessage: "disabled",
		},
		{
			name:        "subscribed",
			container:   &Container{notifier: notifier, events: ProvideDispatcher(notifier, zap.NewNop())},
			wantHealthy: true,
			wantMessage: "enabled: invoice.created, invoice.updated, invoice.status_changed",
		},
		{
			name:        "configured without subscriptions",
			container:   &Container{notifier: notifier, events: ProvideDispatcher(nil, zap.NewNop())},
			wantHealthy: false,
			wantMessage: "enabled, no event subscriptions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.container.notificationHealth()
			assert.Equal(t, tt.wantHealthy, got.Healthy)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}
