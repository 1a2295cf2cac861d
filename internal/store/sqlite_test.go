package store

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	s, err := openSQLite(":memory:", SchemaSubmissionAndUser)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertMatch(t *testing.T, s *sqliteStore, id, gameID string, status MatchStatus) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO matches (id, game_id, status, participants) VALUES (?, ?, ?, ?)`,
		id, gameID, status, `[{"SubmissionID":"sub-a"},{"SubmissionID":"sub-b"}]`)
	if err != nil {
		t.Fatalf("insert match %s: %v", id, err)
	}
}

func TestClaimPendingMatchClaimsExactlyOnce(t *testing.T) {
	s := openTestStore(t)
	insertMatch(t, s, "m-1", "rps", StatusPending)

	ctx := context.Background()
	m, err := s.ClaimPendingMatch(ctx, "rps")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if m == nil || m.ID != "m-1" {
		t.Fatalf("expected to claim m-1, got %+v", m)
	}
	if m.Status != StatusQueued {
		t.Errorf("status = %q, want queued", m.Status)
	}

	again, err := s.ClaimPendingMatch(ctx, "rps")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no second claim, got %+v", again)
	}
}

func TestClaimPendingMatchIgnoresOtherGames(t *testing.T) {
	s := openTestStore(t)
	insertMatch(t, s, "m-1", "tic-tac-toe", StatusPending)

	m, err := s.ClaimPendingMatch(context.Background(), "rps")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if m != nil {
		t.Fatalf("expected no claim across game slugs, got %+v", m)
	}
}

func TestCompleteMatchOnlyFromRunning(t *testing.T) {
	s := openTestStore(t)
	insertMatch(t, s, "m-1", "rps", StatusPending)

	participants := []MatchParticipant{{SubmissionID: "sub-a"}, {SubmissionID: "sub-b"}}

	// Completing a match that never reached running must be a no-op, not
	// an error — acting only from running is how the reporter stays
	// idempotent against replays.
	if err := s.CompleteMatch(context.Background(), "m-1", participants); err != nil {
		t.Fatalf("complete: %v", err)
	}
	var status string
	if err := s.db.QueryRow("SELECT status FROM matches WHERE id = ?", "m-1").Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != string(StatusPending) {
		t.Errorf("status = %q, want unchanged pending", status)
	}

	if err := s.SetMatchRunning(context.Background(), "m-1"); err != nil {
		t.Fatalf("set running: %v", err)
	}
	if err := s.CompleteMatch(context.Background(), "m-1", participants); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.db.QueryRow("SELECT status FROM matches WHERE id = ?", "m-1").Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != string(StatusCompleted) {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestResetStaleQueuedAndRunning(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().UTC().Add(-time.Hour)

	insertMatch(t, s, "m-queued", "rps", StatusQueued)
	insertMatch(t, s, "m-running", "rps", StatusRunning)
	if _, err := s.db.Exec("UPDATE matches SET created_at = ? WHERE id = ?", old, "m-queued"); err != nil {
		t.Fatalf("backdate queued: %v", err)
	}
	if _, err := s.db.Exec("UPDATE matches SET started_at = ? WHERE id = ?", old, "m-running"); err != nil {
		t.Fatalf("backdate running: %v", err)
	}

	n, err := s.ResetStaleQueued(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("reset queued: %v", err)
	}
	if n != 1 {
		t.Errorf("reset %d queued, want 1", n)
	}

	n, err = s.ResetStaleRunning(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("reset running: %v", err)
	}
	if n != 1 {
		t.Errorf("reset %d running, want 1", n)
	}
}

func TestAddParticipantScoreAdditive(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.db.Exec(`INSERT INTO tournament_participants (tournament_id, user_id, score) VALUES (?, ?, ?)`,
		"tourn-1", "user-1", 10.0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := s.AddParticipantScore(context.Background(), "tourn-1", "user-1", 3); err != nil {
		t.Fatalf("add score: %v", err)
	}

	var score float64
	if err := s.db.QueryRow("SELECT score FROM tournament_participants WHERE tournament_id = ? AND user_id = ?",
		"tourn-1", "user-1").Scan(&score); err != nil {
		t.Fatalf("query score: %v", err)
	}
	if score != 13 {
		t.Errorf("score = %v, want 13", score)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestAllTablesExist(t *testing.T) {
	s := openTestStore(t)
	tables := []string{"matches", "submissions", "tournament_participants", "schema_migrations"}
	for _, name := range tables {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
		if err != nil {
			t.Fatalf("check table %s: %v", name, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", name)
		}
	}
}
