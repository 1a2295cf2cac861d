package game

import "testing"

func playCell(t *testing.T, state any, playerIdx, cell int) {
	t.Helper()
	move, err := TicTacToe.ParseMove(itoa(cell))
	if err != nil {
		t.Fatalf("ParseMove(%d): %v", cell, err)
	}
	if err := TicTacToe.ApplyMove(state, playerIdx, move); err != nil {
		t.Fatalf("ApplyMove(%d, %d): %v", playerIdx, cell, err)
	}
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestTicTacToeXWinsTopRow(t *testing.T) {
	state := TicTacToe.NewState()
	// X: 0,1,2 ; O: 3,4
	playCell(t, state, 0, 0)
	playCell(t, state, 1, 3)
	playCell(t, state, 0, 1)
	playCell(t, state, 1, 4)
	playCell(t, state, 0, 2)

	if !TicTacToe.IsOver(state) {
		t.Fatal("expected game over after top-row win")
	}
	scores := TicTacToe.Scores(state)
	if scores != [2]int{3, 0} {
		t.Errorf("scores = %v, want [3 0]", scores)
	}
}

func TestTicTacToeDraw(t *testing.T) {
	state := TicTacToe.NewState()
	// X O X / X O O / O X X -> no line, board full
	order := []struct {
		player, cell int
	}{
		{0, 0}, {1, 1}, {0, 2},
		{1, 4}, {0, 3}, {1, 5},
		{0, 7}, {1, 6}, {0, 8},
	}
	for _, m := range order {
		playCell(t, state, m.player, m.cell)
	}

	if !TicTacToe.IsOver(state) {
		t.Fatal("expected game over on full board")
	}
	scores := TicTacToe.Scores(state)
	if scores != [2]int{1, 1} {
		t.Errorf("scores = %v, want [1 1] draw", scores)
	}
}

func TestTicTacToeRejectsOccupiedCell(t *testing.T) {
	state := TicTacToe.NewState()
	playCell(t, state, 0, 0)

	move, _ := TicTacToe.ParseMove("0")
	if err := TicTacToe.ApplyMove(state, 1, move); err == nil {
		t.Fatal("expected error applying move to occupied cell")
	}
}

func TestTicTacToeEncodeStateForPlayer(t *testing.T) {
	state := TicTacToe.NewState()
	playCell(t, state, 0, 4)

	p0 := TicTacToe.EncodeStateForPlayer(state, 0)
	p1 := TicTacToe.EncodeStateForPlayer(state, 1)
	if p0[0] != 'X' || p1[0] != 'O' {
		t.Errorf("expected symbol lines X/O, got %q / %q", p0[:1], p1[:1])
	}
}
