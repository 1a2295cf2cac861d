package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteStore is the default Store backend, grounded on the teacher's own
// database/sql + modernc.org/sqlite + embedded-migrations setup. Atomic
// claims rely on SQLite's single-writer semantics: BEGIN IMMEDIATE takes
// the write lock for the whole claim attempt, so a second replica sharing
// the same database file blocks until the first's transaction commits or
// rolls back, then observes the row already claimed.
type sqliteStore struct {
	db     *sql.DB
	schema ParticipantSchema
}

func openSQLite(dsn string, schema ParticipantSchema) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &sqliteStore{db: db, schema: schema}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

func (s *sqliteStore) ClaimPendingMatch(ctx context.Context, gameID string) (*Match, error) {
	// sql.LevelSerializable maps to SQLite's BEGIN IMMEDIATE, taking the
	// write lock up front instead of on first write — the select-then-
	// update below must not let a second claimer's select interleave
	// between this transaction's select and its update.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("claim: begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT id, game_id, tournament_id, status, participants,
		metadata, created_at, started_at, completed_at, error_message
		FROM matches WHERE game_id = ? AND status = ? ORDER BY created_at LIMIT 1`,
		gameID, StatusPending)

	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim: scan: %w", err)
	}

	res, err := tx.ExecContext(ctx, "UPDATE matches SET status = ? WHERE id = ? AND status = ?",
		StatusQueued, m.ID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("claim: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim: rows affected: %w", err)
	}
	if n == 0 {
		// Lost the race to another goroutine/process between the select
		// and the update; the caller simply has nothing this tick.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim: commit: %w", err)
	}

	m.Status = StatusQueued
	return m, nil
}

func (s *sqliteStore) SetMatchRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, "UPDATE matches SET status = ?, started_at = ? WHERE id = ?",
		StatusRunning, now, id)
	if err != nil {
		return fmt.Errorf("set running: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, game_id, language, compiled_binary_path, status
		FROM submissions WHERE id = ?`, id)
	var sub Submission
	if err := row.Scan(&sub.ID, &sub.GameID, &sub.Language, &sub.CompiledBinaryPath, &sub.Status); err != nil {
		return nil, fmt.Errorf("get submission %s: %w", id, err)
	}
	return &sub, nil
}

func (s *sqliteStore) CompleteMatch(ctx context.Context, id string, participants []MatchParticipant) error {
	payload, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("complete: marshal participants: %w", err)
	}
	now := time.Now().UTC()
	// Acting only from running prevents a replayed write from re-scoring a
	// match that's already terminal — spec.md §4.13's idempotence note.
	_, err = s.db.ExecContext(ctx, `UPDATE matches SET status = ?, completed_at = ?, participants = ?
		WHERE id = ? AND status = ?`, StatusCompleted, now, payload, id, StatusRunning)
	if err != nil {
		return fmt.Errorf("complete match %s: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) FailMatch(ctx context.Context, id string, errMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE matches SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ? AND status != ?`, StatusFailed, now, errMsg, id, StatusCompleted)
	if err != nil {
		return fmt.Errorf("fail match %s: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) AddParticipantScore(ctx context.Context, tournamentID, userID string, delta float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tournament_participants SET score = score + ?
		WHERE tournament_id = ? AND user_id = ?`, delta, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("add participant score: %w", err)
	}
	return nil
}

func (s *sqliteStore) ResetStaleQueued(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET status = ? WHERE status = ? AND created_at < ?`,
		StatusPending, StatusQueued, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stale queued: %w", err)
	}
	return res.RowsAffected()
}

func (s *sqliteStore) ResetStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET status = ? WHERE status = ? AND started_at < ?`,
		StatusPending, StatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stale running: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*Match, error) {
	var m Match
	var tournamentID, metadata, startedAt, completedAt, errorMessage sql.NullString
	var participantsJSON string
	var createdAt time.Time

	if err := row.Scan(&m.ID, &m.GameID, &tournamentID, &m.Status, &participantsJSON,
		&metadata, &createdAt, &startedAt, &completedAt, &errorMessage); err != nil {
		return nil, err
	}

	if tournamentID.Valid {
		m.TournamentID = &tournamentID.String
	}
	if metadata.Valid {
		m.Metadata = []byte(metadata.String)
	}
	if errorMessage.Valid {
		m.ErrorMessage = &errorMessage.String
	}
	m.CreatedAt = createdAt
	if startedAt.Valid {
		if t, err := time.Parse(time.RFC3339, startedAt.String); err == nil {
			m.StartedAt = &t
		}
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			m.CompletedAt = &t
		}
	}

	if err := json.Unmarshal([]byte(participantsJSON), &m.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}

	return &m, nil
}
