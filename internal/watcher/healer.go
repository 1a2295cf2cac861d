package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/axeltournament/judge/internal/store"
)

const healerTick = 30 * time.Second

// Healer periodically resets matches stuck in queued or running back to
// pending, recovering from a replica that claimed work and then crashed or
// was killed before it could complete the match — spec.md §4.11's final
// bullet.
type Healer struct {
	Store      store.Store
	QueuedTTL  time.Duration
	RunningTTL time.Duration
}

// NewHealer returns a Healer with the given TTLs.
func NewHealer(st store.Store, queuedTTL, runningTTL time.Duration) *Healer {
	return &Healer{Store: st, QueuedTTL: queuedTTL, RunningTTL: runningTTL}
}

// Run sweeps every healerTick until ctx is cancelled.
func (h *Healer) Run(ctx context.Context) error {
	t := time.NewTicker(healerTick)
	defer t.Stop()

	for {
		h.sweep(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (h *Healer) sweep(ctx context.Context) {
	n, err := h.Store.ResetStaleQueued(ctx, h.QueuedTTL)
	if err != nil {
		slog.Error("healer: reset stale queued failed", "error", err)
	} else if n > 0 {
		slog.Warn("healer: reset stale queued matches", "count", n)
	}

	n, err = h.Store.ResetStaleRunning(ctx, h.RunningTTL)
	if err != nil {
		slog.Error("healer: reset stale running failed", "error", err)
	} else if n > 0 {
		slog.Warn("healer: reset stale running matches", "count", n)
	}
}
