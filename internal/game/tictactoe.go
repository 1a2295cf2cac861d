package game

import (
	"fmt"
	"strconv"
	"strings"
)

const ttMaxRounds = 9

type ttCell byte

const (
	ttEmpty ttCell = '.'
	ttX     ttCell = 'X'
	ttO     ttCell = 'O'
)

type ttState struct {
	board   [9]ttCell
	moves   int
	winner  int // -1 = none yet, 0/1 = winner, 2 = draw
	scores  [2]int
	settled bool
}

type ttRules struct{}

// TicTacToe is the single-game-to-completion Rules implementation. Player 0
// plays X, player 1 plays O; win = 3, loss = 0, draw = 1 each.
var TicTacToe Rules = ttRules{}

func init() { Register("tic-tac-toe", TicTacToe) }

func (ttRules) NewState() any {
	s := &ttState{winner: -1}
	for i := range s.board {
		s.board[i] = ttEmpty
	}
	return s
}

func (ttRules) ParseMove(text string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 || n > 8 {
		return nil, fmt.Errorf("tic-tac-toe: invalid cell index %q", text)
	}
	return n, nil
}

func (ttRules) ApplyMove(state any, playerIdx int, move any) error {
	s := state.(*ttState)
	cell := move.(int)
	if s.board[cell] != ttEmpty {
		return fmt.Errorf("tic-tac-toe: cell %d already occupied", cell)
	}
	if playerIdx == 0 {
		s.board[cell] = ttX
	} else {
		s.board[cell] = ttO
	}
	s.moves++

	if w := ttWinner(&s.board); w >= 0 {
		s.winner = w
		s.settleScores()
	} else if s.moves == 9 {
		s.winner = 2
		s.settleScores()
	}
	return nil
}

var ttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// ttWinner returns 0 if X has a line, 1 if O has a line, -1 otherwise.
func ttWinner(board *[9]ttCell) int {
	for _, line := range ttLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a == ttEmpty || a != b || b != c {
			continue
		}
		if a == ttX {
			return 0
		}
		return 1
	}
	return -1
}

func (s *ttState) settleScores() {
	if s.settled {
		return
	}
	s.settled = true
	switch s.winner {
	case 0:
		s.scores = [2]int{3, 0}
	case 1:
		s.scores = [2]int{0, 3}
	case 2:
		s.scores = [2]int{1, 1}
	}
}

func (ttRules) IsOver(state any) bool {
	return state.(*ttState).winner >= 0
}

func (ttRules) Scores(state any) [2]int {
	return state.(*ttState).scores
}

// EncodeStateForPlayer renders the two-line block spec.md §4.9 requires: the
// player's own symbol, then the 9-character board.
func (ttRules) EncodeStateForPlayer(state any, playerIdx int) string {
	s := state.(*ttState)
	symbol := "X"
	if playerIdx == 1 {
		symbol = "O"
	}
	var b strings.Builder
	for _, c := range s.board {
		b.WriteByte(byte(c))
	}
	return symbol + "\n" + b.String()
}

func (ttRules) MaxRounds() int { return ttMaxRounds }

// ActivePlayer alternates starting with player 0 (X moves first), per
// spec.md §4.9's "prompt to each player at their turn."
func (ttRules) ActivePlayer(state any) int {
	return state.(*ttState).moves % 2
}
