package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func created() *event.Event {
	return event.NewEvent(event.TypeInvoiceCreated, &entity.Invoice{ID: entity.ConfirmedID("srv-1"), VendorName: "Acme"})
}

func TestSubscribe(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe(event.TypeInvoiceCreated, "lark", noop)
	d.Subscribe(event.TypeInvoiceCreated, "audit", noop)
	d.Subscribe(event.TypeStatusChanged, "lark", noop)

	got := d.Handlers(event.TypeInvoiceCreated)
	if len(got) != 2 || got[0] != "lark" || got[1] != "audit" {
		t.Errorf("Handlers(created) = %v", got)
	}
	if got := d.Handlers(event.TypeInvoiceRemoved); len(got) != 0 {
		t.Errorf("Handlers(removed) = %v, want none", got)
	}
}

func TestPublish(t *testing.T) {
	t.Run("runs handlers in background and Close waits", func(t *testing.T) {
		d := NewDispatcher()
		var called atomic.Int32
		release := make(chan struct{})

		for _, name := range []string{"a", "b"} {
			d.Subscribe(event.TypeInvoiceCreated, name, func(ctx context.Context, evt *event.Event) error {
				<-release
				called.Add(1)
				return nil
			})
		}

		d.Publish(context.Background(), created())
		if called.Load() != 0 {
			t.Error("Publish should not wait for handlers")
		}

		close(release)
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if called.Load() != 2 {
			t.Errorf("called = %d, want 2", called.Load())
		}
	})

	t.Run("handlers survive caller cancellation", func(t *testing.T) {
		d := NewDispatcher()
		errCh := make(chan error, 1)
		d.Subscribe(event.TypeInvoiceCreated, "lark", func(ctx context.Context, evt *event.Event) error {
			time.Sleep(5 * time.Millisecond)
			errCh <- ctx.Err()
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.Publish(ctx, created())
		cancel()

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := <-errCh; err != nil {
			t.Errorf("handler context err = %v, want nil", err)
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32
		d.Subscribe(event.TypeInvoiceCreated, "panicky", func(ctx context.Context, evt *event.Event) error {
			panic("nil map")
		})
		d.Subscribe(event.TypeInvoiceCreated, "steady", func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		d.Publish(context.Background(), created())
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if called.Load() != 1 {
			t.Errorf("steady handler called %d times, want 1", called.Load())
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("error count = %d, want 1", logger.ErrorCount())
		}
	})

	t.Run("ignores other event types", func(t *testing.T) {
		d := NewDispatcher()
		var called atomic.Bool
		d.Subscribe(event.TypeInvoiceRemoved, "removed", func(ctx context.Context, evt *event.Event) error {
			called.Store(true)
			return nil
		})

		d.Publish(context.Background(), created())
		_ = d.Close()
		if called.Load() {
			t.Error("handler for another type was called")
		}
	})

	t.Run("errors are logged", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypeInvoiceCreated, "failing", func(ctx context.Context, evt *event.Event) error {
			return errors.New("lark unavailable")
		})

		d.Publish(context.Background(), created())
		_ = d.Close()

		if logger.ErrorCount() != 1 {
			t.Errorf("error count = %d, want 1", logger.ErrorCount())
		}
	})
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	called := false
	d.Subscribe(event.TypeInvoiceCreated, "h", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second close should fail")
	}
	d.Publish(context.Background(), created())
	if called {
		t.Error("handler ran after close")
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("dropped event not logged, error count = %d", logger.ErrorCount())
	}
}

func TestConcurrentPublish(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	d.Subscribe(event.TypeStatusChanged, "counter", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Publish(context.Background(), event.NewEvent(event.TypeStatusChanged, nil))
		}()
	}
	wg.Wait()

	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if count.Load() != 50 {
		t.Errorf("count = %d, want 50", count.Load())
	}
}

func TestPublishDuringClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		d := NewDispatcher()
		var started, finished atomic.Int32
		d.Subscribe(event.TypeInvoiceCreated, "slow", func(ctx context.Context, evt *event.Event) error {
			started.Add(1)
			time.Sleep(time.Millisecond)
			finished.Add(1)
			return nil
		})

		var publishers sync.WaitGroup
		for i := 0; i < 20; i++ {
			publishers.Add(1)
			go func() {
				defer publishers.Done()
				for j := 0; j < 5; j++ {
					d.Publish(context.Background(), created())
				}
			}()
		}

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		afterClose := finished.Load()
		if started.Load() != afterClose {
			t.Fatalf("round %d: %d handlers started but %d finished when Close returned", round, started.Load(), afterClose)
		}

		publishers.Wait()
		time.Sleep(5 * time.Millisecond)
		if started.Load() != afterClose {
			t.Fatalf("round %d: handler started after Close returned", round)
		}
	}
}
