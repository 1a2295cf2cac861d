package game

import (
	"fmt"
	"strings"
)

const pdRounds = 100

type pdMove int

const (
	pdCooperate pdMove = iota
	pdDefect
)

type pdState struct {
	round     int
	scores    [2]int
	moves     [2]*pdMove
	lastMoves [2]pdMove
	haveLast  bool
}

type pdRules struct{}

// PrisonersDilemma is the iterated Prisoner's Dilemma Rules implementation:
// 100 rounds, payoff matrix (C,C)=(3,3) (D,D)=(1,1) (C,D)=(0,5) (D,C)=(5,0).
var PrisonersDilemma Rules = pdRules{}

func init() { Register("prisoners-dilemma", PrisonersDilemma) }

func (pdRules) NewState() any { return &pdState{} }

func (pdRules) ParseMove(text string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "cooperate", "c":
		m := pdCooperate
		return &m, nil
	case "defect", "d":
		m := pdDefect
		return &m, nil
	default:
		return nil, fmt.Errorf("prisoners-dilemma: unrecognized move %q", text)
	}
}

func (pdRules) ApplyMove(state any, playerIdx int, move any) error {
	s := state.(*pdState)
	m := move.(*pdMove)
	s.moves[playerIdx] = m

	if s.moves[0] == nil || s.moves[1] == nil {
		return nil
	}

	a, b := *s.moves[0], *s.moves[1]
	pa, pb := pdPayoff(a, b)
	s.scores[0] += pa
	s.scores[1] += pb

	s.lastMoves = [2]pdMove{a, b}
	s.haveLast = true
	s.round++
	s.moves[0] = nil
	s.moves[1] = nil
	return nil
}

func pdPayoff(a, b pdMove) (int, int) {
	switch {
	case a == pdCooperate && b == pdCooperate:
		return 3, 3
	case a == pdDefect && b == pdDefect:
		return 1, 1
	case a == pdCooperate && b == pdDefect:
		return 0, 5
	default: // a == pdDefect && b == pdCooperate
		return 5, 0
	}
}

func (pdRules) IsOver(state any) bool {
	return state.(*pdState).round >= pdRounds
}

func (pdRules) Scores(state any) [2]int {
	return state.(*pdState).scores
}

// EncodeStateForPlayer sends the literal MOVE on round 1, then reports the
// opponent's previous move so a tit-for-tat strategy can be written.
func (pdRules) EncodeStateForPlayer(state any, playerIdx int) string {
	s := state.(*pdState)
	if !s.haveLast {
		return "MOVE"
	}
	opponent := 1 - playerIdx
	if s.lastMoves[opponent] == pdCooperate {
		return "OPP cooperate"
	}
	return "OPP defect"
}

func (pdRules) MaxRounds() int { return pdRounds }

func (pdRules) ActivePlayer(state any) int { return bothActive }
