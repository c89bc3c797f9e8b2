package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSweeper struct {
	mu        sync.Mutex
	calls     int
	lastKeep  func(uri string) bool
	cutoffs   []time.Time
	sweepFunc func(ctx context.Context, cutoff time.Time, keep func(uri string) bool) (int, error)
}

func (m *mockSweeper) Sweep(ctx context.Context, cutoff time.Time, keep func(uri string) bool) (int, error) {
	m.mu.Lock()
	m.calls++
	m.cutoffs = append(m.cutoffs, cutoff)
	m.lastKeep = keep
	m.mu.Unlock()
	if m.sweepFunc != nil {
		return m.sweepFunc(ctx, cutoff, keep)
	}
	return 0, nil
}

func (m *mockSweeper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockWorker struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (w *mockWorker) Start(ctx context.Context) error {
	*w.events = append(*w.events, "start "+w.name)
	return w.startErr
}

func (w *mockWorker) Stop() error {
	*w.events = append(*w.events, "stop "+w.name)
	return w.stopErr
}

func (w *mockWorker) Name() string { return w.name }

func TestStagingSweeper_RunOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		sweep       func(ctx context.Context, cutoff time.Time, keep func(uri string) bool) (int, error)
		wantRemoved int
		wantErr     bool
	}{
		{
			name: "removes stale captures",
			sweep: func(ctx context.Context, cutoff time.Time, keep func(uri string) bool) (int, error) {
				return 3, nil
			},
			wantRemoved: 3,
		},
		{
			name: "partial failure is recorded",
			sweep: func(ctx context.Context, cutoff time.Time, keep func(uri string) bool) (int, error) {
				return 1, errors.New("disk gone")
			},
			wantRemoved: 1,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &mockSweeper{sweepFunc: tt.sweep}
			inUse := func(uri string) bool { return uri == "local://open.pdf" }
			s := NewStagingSweeper(StagingSweeperConfig{Interval: time.Hour, MaxAge: 24 * time.Hour}, target, inUse, zap.NewNop())
			s.now = func() time.Time { return now }

			removed, err := s.RunOnce(context.Background())
			assert.Equal(t, tt.wantRemoved, removed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			require.Len(t, target.cutoffs, 1)
			assert.Equal(t, now.Add(-24*time.Hour), target.cutoffs[0])
			require.NotNil(t, target.lastKeep)
			assert.True(t, target.lastKeep("local://open.pdf"))

			stats := s.Stats()
			assert.Equal(t, 1, stats.Runs)
			assert.Equal(t, tt.wantRemoved, stats.Removed)
			assert.Equal(t, now, stats.LastRun)
			assert.Equal(t, tt.wantErr, stats.LastError != "")
		})
	}
}

func TestStagingSweeper_Loop(t *testing.T) {
	target := &mockSweeper{}
	s := NewStagingSweeper(StagingSweeperConfig{Interval: 5 * time.Millisecond, MaxAge: time.Hour}, target, nil, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start")

	assert.Eventually(t, func() bool { return target.callCount() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	calls := target.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, target.callCount(), "no sweeps after stop")
	assert.NoError(t, s.Stop(), "stop is idempotent")
}

func TestStagingSweeper_InvalidConfig(t *testing.T) {
	s := NewStagingSweeper(StagingSweeperConfig{}, &mockSweeper{}, nil, zap.NewNop())
	assert.Error(t, s.Start(context.Background()))
}

func TestManager_StartStopOrder(t *testing.T) {
	var events []string
	m := NewManager(zap.NewNop())
	m.Register(&mockWorker{name: "a", events: &events})
	m.Register(&mockWorker{name: "b", events: &events, startErr: errors.New("boom")})
	m.Register(&mockWorker{name: "c", events: &events})
	assert.Equal(t, 3, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, events)

	assert.NoError(t, m.StopAll(), "stopping twice is a no-op")
}

func TestManager_StopErrors(t *testing.T) {
	var events []string
	m := NewManager(zap.NewNop())
	m.Register(&mockWorker{name: "a", events: &events, stopErr: errors.New("stuck")})

	require.NoError(t, m.StartAll(context.Background()))
	assert.Error(t, m.StopAll())
}
