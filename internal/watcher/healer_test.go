package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/axeltournament/judge/internal/store"
)

type fakeHealerStore struct {
	store.Store
	queuedCalls, runningCalls int
	queuedN, runningN         int64
}

func (f *fakeHealerStore) ResetStaleQueued(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.queuedCalls++
	return f.queuedN, nil
}

func (f *fakeHealerStore) ResetStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.runningCalls++
	return f.runningN, nil
}

func TestHealerSweepResetsBothBuckets(t *testing.T) {
	fs := &fakeHealerStore{queuedN: 2, runningN: 1}
	h := NewHealer(fs, 5*time.Minute, 10*time.Minute)

	h.sweep(context.Background())

	if fs.queuedCalls != 1 || fs.runningCalls != 1 {
		t.Fatalf("expected one call each, got queued=%d running=%d", fs.queuedCalls, fs.runningCalls)
	}
}

func TestHealerRunStopsOnContextCancel(t *testing.T) {
	fs := &fakeHealerStore{}
	h := NewHealer(fs, time.Minute, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Run(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if fs.queuedCalls == 0 {
		t.Error("expected at least one sweep before returning")
	}
}
