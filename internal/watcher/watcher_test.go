package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/axeltournament/judge/internal/capacity"
	"github.com/axeltournament/judge/internal/store"
)

type fakeWatcherStore struct {
	store.Store
	claims   []*store.Match
	claimIdx int
	claimErr error
}

func (f *fakeWatcherStore) ClaimPendingMatch(ctx context.Context, gameID string) (*store.Match, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if f.claimIdx >= len(f.claims) {
		return nil, nil
	}
	m := f.claims[f.claimIdx]
	f.claimIdx++
	return m, nil
}

func TestSleepOrDoneReturnsFalseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if sleepOrDone(ctx, time.Hour) {
		t.Fatal("expected sleepOrDone to report cancellation")
	}
}

func TestSleepOrDoneZeroDurationReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	if !sleepOrDone(ctx, 0) {
		t.Fatal("expected zero-duration sleep to return true")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	fs := &fakeWatcherStore{}
	w := New("rps", fs, capacity.New(10, 0), store.SchemaSubmissionAndUser)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunIdlesWhenNoMatchClaimed(t *testing.T) {
	fs := &fakeWatcherStore{}
	w := New("rps", fs, capacity.New(10, 0), store.SchemaSubmissionAndUser)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	if err == nil {
		t.Fatal("expected deadline exceeded")
	}
}

func TestRunBacksOffWhenAtCapacity(t *testing.T) {
	fs := &fakeWatcherStore{}
	full := capacity.New(1, 0)
	full.IncrementMatches()
	w := New("rps", fs, full, store.SchemaSubmissionAndUser)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err == nil {
		t.Fatal("expected deadline exceeded")
	}
	if fs.claimIdx != 0 {
		t.Error("expected no claim attempts while over capacity")
	}
}
