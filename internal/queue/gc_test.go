package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockDLQPurger struct {
	purgeFunc func(ctx context.Context, retention time.Duration) (int, error)
	calls     int
}

func (m *mockDLQPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	m.calls++
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, retention)
	}
	return 0, nil
}

func TestGarbageCollectorPurgesOnTick(t *testing.T) {
	t.Parallel()

	purged := make(chan struct{}, 1)
	mock := &mockDLQPurger{
		purgeFunc: func(ctx context.Context, retention time.Duration) (int, error) {
			select {
			case purged <- struct{}{}:
			default:
			}
			return 2, nil
		},
	}

	gc := NewGarbageCollector(mock, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- gc.Start(ctx) }()

	select {
	case <-purged:
	case <-time.After(time.Second):
		t.Fatal("expected a purge within one second")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Start returned %v, want context.Canceled", err)
	}
}

func TestGarbageCollectorSurvivesPurgeError(t *testing.T) {
	t.Parallel()

	mock := &mockDLQPurger{
		purgeFunc: func(ctx context.Context, retention time.Duration) (int, error) {
			return 0, errors.New("broker unavailable")
		},
	}

	gc := NewGarbageCollector(mock, 5*time.Millisecond, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_ = gc.Start(ctx)
	if mock.calls < 2 {
		t.Errorf("expected GC to keep running after an error, got %d call(s)", mock.calls)
	}
}

func TestGarbageCollectorNilPurger(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(nil, 5*time.Millisecond, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Must not panic with no purger configured.
	_ = gc.Start(ctx)
}
