package background

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePurger struct {
	calls atomic.Int32
}

func (f *fakePurger) DeleteExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 2, nil
}

type fakeDeactivator struct {
	calls atomic.Int32
}

func (f *fakeDeactivator) DeactivateExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 1, nil
}

func TestCleanupManager_RunsImmediatelyAndStops(t *testing.T) {
	purger := &fakePurger{}
	deactivator := &fakeDeactivator{}

	cm := NewCleanupManager(purger, deactivator, slog.Default(), time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	// The first sweep happens on startup, before the first tick
	assert.Eventually(t, func() bool {
		return purger.calls.Load() >= 1 && deactivator.calls.Load() >= 1
	}, time.Second, 10*time.Millisecond)

	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm := NewCleanupManager(&fakePurger{}, &fakeDeactivator{}, slog.Default(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not honor context cancellation")
	}
}
