package config

import (
	"os"
	"testing"

	"github.com/axeltournament/judge/internal/store"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "PARTICIPANT_SCHEMA", "MAX_CAPACITY", "MAX_CLAIM_DELAY_MS",
		"SERVER_HOST", "SERVER_PORT", "JWT_SECRET", "QUEUED_TTL_SECONDS",
		"RUNNING_TTL_SECONDS", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	os.Setenv("PARTICIPANT_SCHEMA", "submission_only")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadRequiresParticipantSchema(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "./test.db")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when PARTICIPANT_SCHEMA is unset")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "./test.db")
	os.Setenv("PARTICIPANT_SCHEMA", "submission_only")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerHost != "0.0.0.0" {
		t.Errorf("ServerHost = %q, want 0.0.0.0", cfg.ServerHost)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.MaxCapacity != 100 {
		t.Errorf("MaxCapacity = %d, want 100", cfg.MaxCapacity)
	}
	if cfg.QueuedTTLSeconds != 300 || cfg.RunningTTLSeconds != 600 {
		t.Errorf("TTLs = %d/%d, want 300/600", cfg.QueuedTTLSeconds, cfg.RunningTTLSeconds)
	}
}

func TestResolveParticipantSchema(t *testing.T) {
	cases := map[string]store.ParticipantSchema{
		"submission_only":     store.SchemaSubmissionOnly,
		"submission_and_user": store.SchemaSubmissionAndUser,
	}
	for raw, want := range cases {
		cfg := &Config{ParticipantSchema: raw}
		got, err := cfg.ResolveParticipantSchema()
		if err != nil {
			t.Fatalf("ResolveParticipantSchema(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("ResolveParticipantSchema(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestResolveParticipantSchemaRejectsUnknown(t *testing.T) {
	cfg := &Config{ParticipantSchema: "bogus"}
	if _, err := cfg.ResolveParticipantSchema(); err == nil {
		t.Fatal("expected error for unrecognized schema")
	}
}
