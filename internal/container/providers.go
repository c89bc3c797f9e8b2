package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/dispatcher"
	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/application/service"
	"github.com/garyjia/site-invoices/internal/domain/event"
	"github.com/garyjia/site-invoices/internal/domain/ledger"
	"github.com/garyjia/site-invoices/internal/infrastructure/export"
	infraLark "github.com/garyjia/site-invoices/internal/infrastructure/external/lark"
	"github.com/garyjia/site-invoices/internal/infrastructure/external/openai"
	"github.com/garyjia/site-invoices/internal/infrastructure/persistence/repository"
	"github.com/garyjia/site-invoices/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/site-invoices/internal/infrastructure/remote"
	"github.com/garyjia/site-invoices/internal/infrastructure/storage"
	"github.com/garyjia/site-invoices/internal/infrastructure/worker"
	"github.com/garyjia/site-invoices/pkg/database"
)

// prefillPageSize bounds rendered PDF pages sent to the vision model
const prefillPageSize = 1600

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice    port.InvoiceRepository
	Attachment port.AttachmentRepository
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	Staging    *storage.StagingArea
	Blobs      port.BlobStore
	Thumbnails *storage.ThumbnailRenderer
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Composer *service.Composer
	Sync     service.SyncService
	Drafts   *service.DraftBook
	Ledger   service.LedgerService
}

// ProvideDatabase opens the SQLite database, applies the embedded
// migrations and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunEmbedded(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Invoice:    repository.NewInvoiceRepository(db.DB, logger),
		Attachment: repository.NewAttachmentRepository(db.DB, logger),
	}, nil
}

// ProvideStorage creates the staging area, the blob store selected by the
// driver and the thumbnail renderer.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	staging := storage.NewStagingArea(storage.NewLocalFileStorage(cfg.StagingDir, logger), logger)

	var blobs port.BlobStore
	switch cfg.Driver {
	case StorageDriverS3:
		s3Store, err := storage.NewS3BlobStore(ctx, storage.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
		}
		blobs = s3Store
	default:
		blobs = storage.NewLocalBlobStore(storage.NewLocalFileStorage(cfg.LocalDir, logger), logger)
	}

	return &StorageBundle{
		Staging:    staging,
		Blobs:      blobs,
		Thumbnails: storage.NewThumbnailRenderer(cfg.ThumbnailMaxPx, cfg.ThumbnailQuality),
	}, nil
}

// ProvideStore creates the store of record over the repositories and blobs.
func ProvideStore(repos *RepositoryBundle, st *StorageBundle, tx port.TransactionManager, logger *zap.Logger) (*remote.Store, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if st == nil {
		return nil, fmt.Errorf("storage bundle is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	return remote.NewStore(
		st.Staging,
		st.Blobs,
		st.Thumbnails,
		repos.Invoice,
		repos.Attachment,
		tx,
		logger,
	), nil
}

// ProvideExtractor creates the prefill extractor. Returns nil when no API
// key is configured.
func ProvideExtractor(cfg *OpenAIConfig, logger *zap.Logger) (port.InvoiceExtractor, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, nil
	}

	prompts, err := openai.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	return openai.NewExtractor(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, prompts, storage.NewThumbnailRenderer(prefillPageSize, 90), logger), nil
}

// ProvideNotifier creates the sync notifier. Returns nil when Lark is not
// configured.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) port.Notifier {
	larkCfg := infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		ChatID:    cfg.ChatID,
		BaseURL:   cfg.BaseURL,
	}
	if !larkCfg.Enabled() {
		return nil
	}

	return infraLark.NewNotifier(infraLark.NewSDKClient(larkCfg, logger), larkCfg.ChatID, logger)
}

// notifierHandler names the notifier's dispatcher subscription
const notifierHandler = "notifier"

// notifiedEvents are relayed to the notifier when one is configured
var notifiedEvents = []event.Type{
	event.TypeInvoiceCreated,
	event.TypeInvoiceUpdated,
	event.TypeStatusChanged,
}

// ProvideDispatcher creates the ledger event dispatcher and subscribes the
// notifier, which may be nil.
func ProvideDispatcher(notifier port.Notifier, logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(NewServiceLogger(logger)))
	if notifier != nil {
		for _, t := range notifiedEvents {
			d.Subscribe(t, notifierHandler, notifier.HandleEvent)
		}
	}
	return d
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Ledger  *ledger.Ledger
	Storage port.InvoiceStorage
	Events  port.EventPublisher
	Logger  *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("invoice storage is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := NewServiceLogger(deps.Logger)
	composer := service.NewComposer()
	syncService := service.NewSyncService(deps.Storage, deps.Ledger, composer, deps.Events, serviceLogger)

	return &ServiceBundle{
		Composer: composer,
		Sync:     syncService,
		Drafts:   service.NewDraftBook(composer, syncService, deps.Ledger, serviceLogger),
		Ledger: service.NewLedgerService(
			deps.Ledger,
			deps.Storage,
			export.NewExcelExporter(deps.Logger),
			deps.Events,
			serviceLogger,
		),
	}, nil
}

// ProvideWorkers registers the background workers. They are started
// separately by long-running processes.
func ProvideWorkers(cfg *StorageConfig, staging *storage.StagingArea, drafts *service.DraftBook, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	manager.Register(worker.NewStagingSweeper(
		worker.StagingSweeperConfig{
			Interval: cfg.SweepInterval,
			MaxAge:   cfg.StagingMaxAge,
		},
		staging,
		drafts.References,
		logger,
	))
	return manager
}
