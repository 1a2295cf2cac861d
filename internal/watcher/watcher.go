// Package watcher runs the per-game claim loop and the cross-game healer
// sweep described in spec.md §4.11.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/axeltournament/judge/internal/capacity"
	"github.com/axeltournament/judge/internal/game"
	"github.com/axeltournament/judge/internal/player"
	"github.com/axeltournament/judge/internal/sandbox"
	"github.com/axeltournament/judge/internal/store"
)

const idleSleep = time.Second
const backpressureSleep = 500 * time.Millisecond

// claimFailureRate sizes the per-Watcher backoff limiter (burst 1): the
// first claim failure retries without delay, and further consecutive
// failures are spaced at most one claimFailureRate apart by
// Reserve().Delay(). The delay does not grow beyond that and has no jitter.
const claimFailureRate = 500 * time.Millisecond

// DefaultPerTurnTimeout bounds how long the Game Loop waits for a single
// bot response; spec.md §5 says this is configurable per game, tens of ms
// to tens of seconds, so it is a Watcher field rather than a constant.
const DefaultPerTurnTimeout = 5 * time.Second

// Watcher claims and executes matches for exactly one game slug.
type Watcher struct {
	GameID         string
	Store          store.Store
	Capacity       *capacity.Tracker
	Schema         store.ParticipantSchema
	RootBase       string
	PerTurnTimeout time.Duration
	AllowNetwork   bool

	claimBackoff *rate.Limiter
}

// New returns a Watcher for gameID with sane defaults; callers may
// override RootBase/PerTurnTimeout/AllowNetwork before calling Run.
func New(gameID string, st store.Store, cap *capacity.Tracker, schema store.ParticipantSchema) *Watcher {
	return &Watcher{
		GameID:         gameID,
		Store:          st,
		Capacity:       cap,
		Schema:         schema,
		RootBase:       filepath.Join("/tmp", "judge-sandboxes"),
		PerTurnTimeout: DefaultPerTurnTimeout,
		claimBackoff:   rate.NewLimiter(rate.Every(claimFailureRate), 1),
	}
}

// Run executes spec.md §4.11's per-tick sequence until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := time.Duration(w.Capacity.ClaimDelayMS()) * time.Millisecond
		capacity.ObserveClaimDelay(w.Capacity.ClaimDelayMS())
		if !sleepOrDone(ctx, delay) {
			return ctx.Err()
		}

		if !w.Capacity.CanAcceptWork() {
			if !sleepOrDone(ctx, backpressureSleep) {
				return ctx.Err()
			}
			continue
		}

		m, err := w.Store.ClaimPendingMatch(ctx, w.GameID)
		if err != nil {
			backoff := w.claimBackoff.Reserve().Delay()
			slog.Error("watcher: claim failed, retrying after backoff",
				"game", w.GameID, "error", err, "backoff", backoff)
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			continue
		}
		if m == nil {
			if !sleepOrDone(ctx, idleSleep) {
				return ctx.Err()
			}
			continue
		}

		capacity.RecordClaim(w.GameID)
		go w.runMatch(context.WithoutCancel(ctx), m)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runMatch drives one claimed match from queued to a terminal status. It
// never returns an error to the caller — every failure before the
// completion write records status='failed' itself, per spec.md §4.11 step
// 4's "on any exception before completion" clause; a failed completion write
// is only logged, leaving the match running for the healer to reset — and
// always decrements capacity exactly once.
func (w *Watcher) runMatch(ctx context.Context, m *store.Match) {
	w.Capacity.IncrementMatches()
	capacity.PublishSnapshot(w.Capacity.Snapshot())
	defer func() {
		w.Capacity.DecrementMatches()
		capacity.PublishSnapshot(w.Capacity.Snapshot())
	}()

	if err := w.Store.SetMatchRunning(ctx, m.ID); err != nil {
		w.fail(ctx, m.ID, fmt.Errorf("set running: %w", err))
		return
	}

	if len(m.Participants) != 2 {
		w.fail(ctx, m.ID, fmt.Errorf("expected 2 participants, got %d", len(m.Participants)))
		return
	}

	rules, err := game.Lookup(m.GameID)
	if err != nil {
		w.fail(ctx, m.ID, err)
		return
	}

	subs := [2]*store.Submission{}
	for i := range subs {
		sub, err := w.Store.GetSubmission(ctx, m.Participants[i].SubmissionID)
		if err != nil {
			w.fail(ctx, m.ID, fmt.Errorf("load submission %s: %w", m.Participants[i].SubmissionID, err))
			return
		}
		subs[i] = sub
	}

	var players [2]game.BotPlayer
	var spawnErr error
	for i := range players {
		p, err := player.New(w.RootBase, uuid.NewString(), subs[i].CompiledBinaryPath,
			sandbox.ExecutionLimits, w.AllowNetwork, w.PerTurnTimeout)
		if err != nil {
			spawnErr = fmt.Errorf("spawn player %d: %w", i, err)
			break
		}
		players[i] = p
	}
	if spawnErr != nil {
		for _, p := range players {
			if p != nil {
				p.Close()
			}
		}
		w.fail(ctx, m.ID, spawnErr)
		return
	}

	outcomes, err := game.Run(ctx, rules, players)
	if err != nil {
		w.fail(ctx, m.ID, fmt.Errorf("game loop: %w", err))
		return
	}

	result := make([]store.MatchParticipant, len(m.Participants))
	for i, out := range outcomes {
		score := float64(out.Score)
		code := store.ErrorCode(out.Code)
		result[i] = store.MatchParticipant{
			SubmissionID: m.Participants[i].SubmissionID,
			UserID:       m.Participants[i].UserID,
			Score:        &score,
			ErrorCode:    &code,
		}
		if m.TournamentID != nil && result[i].UserID != nil {
			if err := w.Store.AddParticipantScore(ctx, *m.TournamentID, *result[i].UserID, score); err != nil {
				slog.Error("watcher: add participant score failed", "match", m.ID, "error", err)
			}
		}
	}

	if err := w.Store.CompleteMatch(ctx, m.ID, result); err != nil {
		slog.Error("watcher: complete match failed", "match", m.ID, "error", err)
		return
	}
	capacity.RecordCompletion(w.GameID, "completed")
}

func (w *Watcher) fail(ctx context.Context, matchID string, cause error) {
	slog.Error("watcher: match failed", "match", matchID, "game", w.GameID, "error", cause)
	if err := w.Store.FailMatch(ctx, matchID, cause.Error()); err != nil {
		slog.Error("watcher: write failed status failed", "match", matchID, "error", err)
	}
	capacity.RecordCompletion(w.GameID, "failed")
}
