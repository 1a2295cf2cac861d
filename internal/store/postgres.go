package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// postgresStore is the multi-replica-grade Store backend. Atomicity for
// ClaimPendingMatch comes from Postgres's row-level locking rather than
// SQLite's whole-file write lock: `SELECT ... FOR UPDATE SKIP LOCKED`
// inside a transaction lets N replicas poll concurrently without blocking
// each other on rows they won't win anyway.
type postgresStore struct {
	db     *sqlx.DB
	schema ParticipantSchema
}

func openPostgres(dsn string, schema ParticipantSchema) (*postgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &postgresStore{db: db, schema: schema}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func (s *postgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			tournament_id TEXT,
			status TEXT NOT NULL,
			participants JSONB NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_matches_pending ON matches (game_id, status, created_at);

		CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			language TEXT NOT NULL,
			compiled_binary_path TEXT NOT NULL,
			status TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tournament_participants (
			tournament_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			submission_id TEXT,
			score DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (tournament_id, user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type matchRow struct {
	ID           string          `db:"id"`
	GameID       string          `db:"game_id"`
	TournamentID sql.NullString  `db:"tournament_id"`
	Status       string          `db:"status"`
	Participants json.RawMessage `db:"participants"`
	Metadata     json.RawMessage `db:"metadata"`
	CreatedAt    time.Time       `db:"created_at"`
	StartedAt    sql.NullTime    `db:"started_at"`
	CompletedAt  sql.NullTime    `db:"completed_at"`
	ErrorMessage sql.NullString  `db:"error_message"`
}

func (r *matchRow) toMatch() (*Match, error) {
	m := &Match{
		ID:        r.ID,
		GameID:    r.GameID,
		Status:    MatchStatus(r.Status),
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
	if r.TournamentID.Valid {
		m.TournamentID = &r.TournamentID.String
	}
	if r.ErrorMessage.Valid {
		m.ErrorMessage = &r.ErrorMessage.String
	}
	if r.StartedAt.Valid {
		m.StartedAt = &r.StartedAt.Time
	}
	if r.CompletedAt.Valid {
		m.CompletedAt = &r.CompletedAt.Time
	}
	if err := json.Unmarshal(r.Participants, &m.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	return m, nil
}

func (s *postgresStore) ClaimPendingMatch(ctx context.Context, gameID string) (*Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim: begin: %w", err)
	}
	defer tx.Rollback()

	var row matchRow
	err = tx.GetContext(ctx, &row, `SELECT id, game_id, tournament_id, status, participants,
		metadata, created_at, started_at, completed_at, error_message
		FROM matches WHERE game_id = $1 AND status = $2
		ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED`, gameID, StatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim: select: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`,
		StatusQueued, row.ID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("claim: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim: commit: %w", err)
	}

	m, err := row.toMatch()
	if err != nil {
		return nil, err
	}
	m.Status = StatusQueued
	return m, nil
}

func (s *postgresStore) SetMatchRunning(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE matches SET status = $1, started_at = now() WHERE id = $2`,
		StatusRunning, id)
	if err != nil {
		return fmt.Errorf("set running: %w", err)
	}
	return nil
}

func (s *postgresStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	var sub Submission
	err := s.db.GetContext(ctx, &sub, `SELECT id, game_id, language, compiled_binary_path, status
		FROM submissions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", id, err)
	}
	return &sub, nil
}

func (s *postgresStore) CompleteMatch(ctx context.Context, id string, participants []MatchParticipant) error {
	payload, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("complete: marshal participants: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE matches SET status = $1, completed_at = now(), participants = $2
		WHERE id = $3 AND status = $4`, StatusCompleted, payload, id, StatusRunning)
	if err != nil {
		return fmt.Errorf("complete match %s: %w", id, err)
	}
	return nil
}

func (s *postgresStore) FailMatch(ctx context.Context, id string, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE matches SET status = $1, completed_at = now(), error_message = $2
		WHERE id = $3 AND status != $4`, StatusFailed, errMsg, id, StatusCompleted)
	if err != nil {
		return fmt.Errorf("fail match %s: %w", id, err)
	}
	return nil
}

func (s *postgresStore) AddParticipantScore(ctx context.Context, tournamentID, userID string, delta float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tournament_participants SET score = score + $1
		WHERE tournament_id = $2 AND user_id = $3`, delta, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("add participant score: %w", err)
	}
	return nil
}

func (s *postgresStore) ResetStaleQueued(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET status = $1
		WHERE status = $2 AND created_at < now() - ($3 || ' seconds')::interval`,
		StatusPending, StatusQueued, int64(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("reset stale queued: %w", err)
	}
	return res.RowsAffected()
}

func (s *postgresStore) ResetStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET status = $1
		WHERE status = $2 AND started_at < now() - ($3 || ' seconds')::interval`,
		StatusPending, StatusRunning, int64(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("reset stale running: %w", err)
	}
	return res.RowsAffected()
}
