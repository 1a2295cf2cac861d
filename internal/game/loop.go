package game

import (
	"context"
	"errors"
)

// BotPlayer is the subset of player.Player the loop needs. Declared here
// (rather than importing internal/player) so this package stays dependency-
// free of the sandbox stack and is easy to drive from tests with a fake.
type BotPlayer interface {
	SendMessage(line string) error
	ReceiveMessage(ctx context.Context) (string, error)
	Close() error
}

// Outcome is one participant's terminal result from a single match.
type Outcome struct {
	Code  ErrorCode
	Score int
}

// ErrBotTimeout marks a ReceiveMessage failure that should be treated as
// TLE. Concrete BotPlayer implementations (player.Player) return this via
// errors.Is-compatible wrapping of player.ErrTimeout; tests can satisfy it
// directly.
var ErrBotTimeout = errors.New("game: bot timed out")

// TimeoutChecker is implemented by errors that identify themselves as a
// per-turn timeout rather than a generic I/O failure, letting callers avoid
// a hard dependency between this package and internal/player's sentinel.
type TimeoutChecker interface {
	IsPlayerTimeout() bool
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrBotTimeout) {
		return true
	}
	var tc TimeoutChecker
	if errors.As(err, &tc) {
		return tc.IsPlayerTimeout()
	}
	return false
}

// activeIndices expands a Rules.ActivePlayer result into the participant
// indices the loop should prompt this round.
func activeIndices(active int) []int {
	if active == bothActive {
		return []int{0, 1}
	}
	return []int{active}
}

// Run drives players[0] and players[1] through rules until IsOver or
// rules.MaxRounds() iterations, implementing spec.md §4.10's step sequence.
// Each round only the participant(s) rules.ActivePlayer names are prompted,
// so turn-alternating games (tic-tac-toe) and simultaneous-move games (RPS,
// Prisoner's Dilemma) share the same loop. Both players are always closed
// before Run returns, including on panic — callers must not also close them.
func Run(ctx context.Context, rules Rules, players [2]BotPlayer) (out [2]Outcome, err error) {
	defer func() {
		for _, p := range players {
			if p != nil {
				p.Close()
			}
		}
		if r := recover(); r != nil {
			err = errPanic(r)
		}
	}()

	state := rules.NewState()
	codes := [2]ErrorCode{"", ""}

	for round := 0; round < rules.MaxRounds(); round++ {
		turn := activeIndices(rules.ActivePlayer(state))

		for _, i := range turn {
			if codes[i] != "" {
				continue
			}
			if sendErr := players[i].SendMessage(rules.EncodeStateForPlayer(state, i)); sendErr != nil {
				codes[i] = CodeRE
				break
			}
		}
		if codes[0] != "" || codes[1] != "" {
			break
		}

		lines := [2]string{}
		for _, i := range turn {
			line, recvErr := players[i].ReceiveMessage(ctx)
			if recvErr != nil {
				if isTimeout(recvErr) {
					codes[i] = CodeTLE
				} else {
					codes[i] = CodeRE
				}
				continue
			}
			lines[i] = line
		}
		if codes[0] != "" || codes[1] != "" {
			break
		}

		moves := [2]any{}
		for _, i := range turn {
			move, parseErr := rules.ParseMove(lines[i])
			if parseErr != nil {
				codes[i] = CodeWA
				continue
			}
			moves[i] = move
		}
		if codes[0] != "" || codes[1] != "" {
			break
		}

		for _, i := range turn {
			if applyErr := rules.ApplyMove(state, i, moves[i]); applyErr != nil {
				codes[i] = CodeWA
			}
		}
		if codes[0] != "" || codes[1] != "" {
			break
		}

		if rules.IsOver(state) {
			break
		}
	}

	// Every fault path above breaks before mutating state for the round in
	// progress (ApplyMove rejects illegal moves without committing them),
	// so the accumulated score at this point is exactly "current score at
	// time of fault" for a non-offending participant and "unset" in effect
	// (still its last accumulated value) for the offender, per spec.md §4.10
	// step 6/7.
	finalScores := rules.Scores(state)
	for i := 0; i < 2; i++ {
		if codes[i] == "" {
			out[i] = Outcome{Code: CodeOK, Score: finalScores[i]}
		} else {
			out[i] = Outcome{Code: codes[i], Score: finalScores[i]}
		}
	}
	return out, nil
}

func errPanic(r any) error {
	return &panicError{r: r}
}

type panicError struct{ r any }

func (e *panicError) Error() string { return "game: loop panicked" }
