package container

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/dispatcher"
	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/application/service"
	"github.com/garyjia/site-invoices/internal/domain/ledger"
	"github.com/garyjia/site-invoices/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/site-invoices/internal/infrastructure/remote"
	"github.com/garyjia/site-invoices/internal/infrastructure/worker"
	"github.com/garyjia/site-invoices/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	tx           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Storage
	storage *StorageBundle
	store   *remote.Store

	// Infrastructure - External, nil when disabled
	extractor port.InvoiceExtractor
	notifier  port.Notifier

	// Application
	ledger   *ledger.Ledger
	events   dispatcher.Dispatcher
	services *ServiceBundle
	workers  *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. Storage and the store of record
// 3. External clients (OpenAI, Lark)
// 4. Ledger and application services
// 5. Initial ledger population from the store of record
//
// Background workers are registered but not started; see StartWorkers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		c.abortStart()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	// Step 2: Initialize storage
	if err := c.initStorage(); err != nil {
		c.abortStart()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized", zap.String("driver", c.config.Storage.Driver))

	// Step 3: Initialize external clients
	if err := c.initExternalClients(); err != nil {
		c.abortStart()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized",
		zap.Bool("prefill", c.extractor != nil),
		zap.Bool("notifications", c.notifier != nil))

	// Step 4: Initialize application services
	if err := c.initServices(); err != nil {
		c.abortStart()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 5: Populate the ledger
	if err := c.services.Ledger.Refresh(c.ctx); err != nil {
		c.abortStart()
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	c.logger.Info("Ledger loaded", zap.Int("entries", c.ledger.Len()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// StartWorkers starts the background workers. Only long-running processes
// call it; short-lived tools work without them.
func (c *Container) StartWorkers() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	return c.workers.StartAll(c.ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}
	if c.events != nil {
		// Waits for pending notifications
		if err := c.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}
	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.db != nil {
		if err := c.db.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check storage
	if c.storage != nil {
		status.Components["storage"] = ComponentHealth{
			Healthy: true,
			Message: c.config.Storage.Driver,
		}
	} else {
		status.Components["storage"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check ledger
	if c.ledger != nil {
		status.Components["ledger"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("entries: %d", c.ledger.Len()),
		}
	} else {
		status.Components["ledger"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Optional integrations never affect overall health
	status.Components["prefill"] = ComponentHealth{Healthy: true, Message: enabledMessage(c.extractor != nil)}
	status.Components["notifications"] = c.notificationHealth()
	status.Components["workers"] = ComponentHealth{Healthy: true, Message: enabledMessage(c.workers != nil && c.workers.IsRunning())}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = bundle.DB
	c.tx = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}

	c.repositories = repos
	return nil
}

// initStorage initializes blob storage and the store of record.
func (c *Container) initStorage() error {
	bundle, err := ProvideStorage(c.ctx, &c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = bundle

	store, err := ProvideStore(c.repositories, c.storage, c.tx, c.logger)
	if err != nil {
		return err
	}
	c.store = store
	return nil
}

// initExternalClients initializes the optional OpenAI and Lark clients.
func (c *Container) initExternalClients() error {
	extractor, err := ProvideExtractor(&c.config.OpenAI, c.logger)
	if err != nil {
		return err
	}
	c.extractor = extractor
	c.notifier = ProvideNotifier(&c.config.Lark, c.logger)
	return nil
}

// initServices creates the ledger and the application services.
func (c *Container) initServices() error {
	c.ledger = ledger.New()
	c.events = ProvideDispatcher(c.notifier, c.logger)

	services, err := ProvideServices(&ServiceDeps{
		Ledger:  c.ledger,
		Storage: c.store,
		Events:  c.events,
		Logger:  c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	c.workers = ProvideWorkers(&c.config.Storage, c.storage.Staging, services.Drafts, c.logger)
	return nil
}

// abortStart releases what a failed Start acquired
func (c *Container) abortStart() {
	c.closeDatabase()
	c.cancel()
}

func (c *Container) closeDatabase() error {
	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	} else {
		c.logger.Info("Database closed")
	}
	c.db = nil
	return err
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Storage returns the storage components.
func (c *Container) Storage() *StorageBundle {
	return c.storage
}

// Store returns the store of record.
func (c *Container) Store() *remote.Store {
	return c.store
}

// Extractor returns the prefill extractor, nil when disabled.
func (c *Container) Extractor() port.InvoiceExtractor {
	return c.extractor
}

// Ledger returns the in-memory ledger.
func (c *Container) Ledger() *ledger.Ledger {
	return c.ledger
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// NewServiceLogger adapts a zap.Logger to the key/value logger used by the
// application and interface layers.
func NewServiceLogger(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// notificationHealth reports the event types the notifier is subscribed to
func (c *Container) notificationHealth() ComponentHealth {
	if c.notifier == nil || c.events == nil {
		return ComponentHealth{Healthy: true, Message: enabledMessage(false)}
	}

	var subscribed []string
	for _, t := range notifiedEvents {
		if slices.Contains(c.events.Handlers(t), notifierHandler) {
			subscribed = append(subscribed, t.String())
		}
	}
	if len(subscribed) == 0 {
		return ComponentHealth{Healthy: false, Message: "enabled, no event subscriptions"}
	}
	return ComponentHealth{Healthy: true, Message: "enabled: " + strings.Join(subscribed, ", ")}
}

func enabledMessage(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
