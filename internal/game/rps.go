package game

import (
	"fmt"
	"strings"
)

const rpsRounds = 100

type rpsMove int

const (
	rpsRock rpsMove = iota
	rpsPaper
	rpsScissors
)

type rpsState struct {
	round  int
	scores [2]int
	moves  [2]*rpsMove
}

type rpsRules struct{}

// RPS is the Rock-Paper-Scissors Rules implementation: 100 rounds, winner
// of each round +1, ties and losses +0.
var RPS Rules = rpsRules{}

func init() { Register("rps", RPS) }

func (rpsRules) NewState() any { return &rpsState{} }

func (rpsRules) ParseMove(text string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "rock", "r":
		m := rpsRock
		return &m, nil
	case "paper", "p":
		m := rpsPaper
		return &m, nil
	case "scissors", "s":
		m := rpsScissors
		return &m, nil
	default:
		return nil, fmt.Errorf("rps: unrecognized move %q", text)
	}
}

func (rpsRules) ApplyMove(state any, playerIdx int, move any) error {
	s := state.(*rpsState)
	m := move.(*rpsMove)
	s.moves[playerIdx] = m

	if s.moves[0] == nil || s.moves[1] == nil {
		return nil
	}

	a, b := *s.moves[0], *s.moves[1]
	switch rpsOutcome(a, b) {
	case 1:
		s.scores[0]++
	case -1:
		s.scores[1]++
	}

	s.round++
	s.moves[0] = nil
	s.moves[1] = nil
	return nil
}

// rpsOutcome returns 1 if a beats b, -1 if b beats a, 0 on a tie.
func rpsOutcome(a, b rpsMove) int {
	if a == b {
		return 0
	}
	beats := map[rpsMove]rpsMove{rpsRock: rpsScissors, rpsPaper: rpsRock, rpsScissors: rpsPaper}
	if beats[a] == b {
		return 1
	}
	return -1
}

func (rpsRules) IsOver(state any) bool {
	return state.(*rpsState).round >= rpsRounds
}

func (rpsRules) Scores(state any) [2]int {
	return state.(*rpsState).scores
}

func (rpsRules) EncodeStateForPlayer(state any, playerIdx int) string {
	return "READY"
}

func (rpsRules) MaxRounds() int { return rpsRounds }

func (rpsRules) ActivePlayer(state any) int { return bothActive }
