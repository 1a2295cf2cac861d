package store

import (
	"encoding/json"
	"time"
)

// MatchStatus is a match's lifecycle state.
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusQueued    MatchStatus = "queued"
	StatusRunning   MatchStatus = "running"
	StatusCompleted MatchStatus = "completed"
	StatusFailed    MatchStatus = "failed"
	StatusCancelled MatchStatus = "cancelled"
)

// ErrorCode is a participant's terminal per-match outcome.
type ErrorCode string

const (
	CodeOK  ErrorCode = "OK"
	CodeTLE ErrorCode = "TLE"
	CodeWA  ErrorCode = "WA"
	CodeRE  ErrorCode = "RE"
	CodeCE  ErrorCode = "CE"
)

// ParticipantSchema selects which of the two historical participant record
// shapes this deployment emits. The engine must be told which at startup —
// it never guesses (spec.md §9 Open Questions).
type ParticipantSchema int

const (
	SchemaSubmissionOnly ParticipantSchema = iota
	SchemaSubmissionAndUser
)

// MatchParticipant is one slot in a Match's participants array.
type MatchParticipant struct {
	SubmissionID string
	UserID       *string // present only under SchemaSubmissionAndUser
	Score        *float64
	ErrorCode    *ErrorCode
}

// Match is one row of the match table.
type Match struct {
	ID           string
	GameID       string
	TournamentID *string
	Participants []MatchParticipant
	Status       MatchStatus
	Metadata     json.RawMessage
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
}

// Submission is one row of the submission table.
type Submission struct {
	ID                 string `db:"id"`
	GameID             string `db:"game_id"`
	Language           string `db:"language"`
	CompiledBinaryPath string `db:"compiled_binary_path"`
	Status             string `db:"status"`
}
