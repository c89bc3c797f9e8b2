package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes staged documents older than a cutoff
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time, keep func(uri string) bool) (int, error)
}

// StagingSweeperConfig holds configuration for the staging sweeper
type StagingSweeperConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// DefaultStagingSweeperConfig returns default configuration
func DefaultStagingSweeperConfig() StagingSweeperConfig {
	return StagingSweeperConfig{
		Interval: time.Hour,
		MaxAge:   24 * time.Hour,
	}
}

// SweeperStats summarizes the sweeper's activity since it started
type SweeperStats struct {
	Runs      int       `json:"runs"`
	Removed   int       `json:"removed"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// StagingSweeper periodically clears captures that were staged but never
// synchronized, such as those of discarded drafts or those already uploaded.
// Captures still referenced by an open draft are kept.
type StagingSweeper struct {
	config StagingSweeperConfig
	target Sweeper
	inUse  func(uri string) bool
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	stats     SweeperStats
}

// NewStagingSweeper creates a new sweeper. inUse may be nil.
func NewStagingSweeper(config StagingSweeperConfig, target Sweeper, inUse func(uri string) bool, logger *zap.Logger) *StagingSweeper {
	return &StagingSweeper{
		config: config,
		target: target,
		inUse:  inUse,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the sweep loop
func (s *StagingSweeper) Start(ctx context.Context) error {
	if s.config.Interval <= 0 || s.config.MaxAge <= 0 {
		return fmt.Errorf("staging sweeper needs a positive interval and max age")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("staging sweeper already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("StagingSweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("max_age", s.config.MaxAge))

	go s.loop(loopCtx, s.done)
	return nil
}

// Stop terminates the loop and waits for an in-progress sweep to finish
func (s *StagingSweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done

	stats := s.Stats()
	s.logger.Info("StagingSweeper stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("removed", stats.Removed))
	return nil
}

// Name returns the worker name for identification
func (s *StagingSweeper) Name() string {
	return "StagingSweeper"
}

// Stats returns a snapshot of the sweeper's counters
func (s *StagingSweeper) Stats() SweeperStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// RunOnce performs a single sweep
func (s *StagingSweeper) RunOnce(ctx context.Context) (int, error) {
	removed, err := s.target.Sweep(ctx, s.now().Add(-s.config.MaxAge), s.inUse)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.Removed += removed
	s.stats.LastRun = s.now()
	s.stats.LastError = ""
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.mu.Unlock()

	return removed, err
}

func (s *StagingSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Staging sweep failed", zap.Error(err))
			}
		}
	}
}
