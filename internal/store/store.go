// Package store provides datastore access for matches, submissions, and
// tournament-participant scores, behind a single Store interface with two
// interchangeable backends.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is the datastore surface the watcher, healer, and game loop need.
// ClaimPendingMatch must be implemented as a single atomic conditional
// update so that two replicas racing for the same match produce exactly one
// winner — spec.md §4.11 step 3.
type Store interface {
	ClaimPendingMatch(ctx context.Context, gameID string) (*Match, error)
	SetMatchRunning(ctx context.Context, id string) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	CompleteMatch(ctx context.Context, id string, participants []MatchParticipant) error
	FailMatch(ctx context.Context, id string, errMsg string) error
	AddParticipantScore(ctx context.Context, tournamentID, userID string, delta float64) error
	ResetStaleQueued(ctx context.Context, olderThan time.Duration) (int64, error)
	ResetStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// Open dispatches on dsn's URL scheme: "postgres://" or "postgresql://"
// opens the Postgres backend; anything else (including a bare filesystem
// path, the teacher's own default) opens the embedded-migrations sqlite
// backend.
func Open(dsn string, schema ParticipantSchema) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := openPostgres(dsn, schema)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		return s, nil
	}
	s, err := openSQLite(dsn, schema)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	return s, nil
}
