package board

import (
	"math/rand"
	"testing"
)

func mustFEN(t *testing.T, fen string) *Position {
	t.Helper()
	pos, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func mustMove(t *testing.T, pos *Position, uci string) Move {
	t.Helper()
	m, err := ParseMove(uci, pos)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", uci, err)
	}
	return m
}

func TestSEE(t *testing.T) {
	tests := []struct {
		fen  string
		move string
		want int
	}{
		// pawn takes undefended pawn
		{"4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1", "e4d5", 100},
		// rook takes defended pawn: pawn for rook
		{"4k3/8/4p3/3p4/8/8/3R4/4K3 w - - 0 1", "d2d5", 100 - 500},
		// queen takes defended pawn
		{"4k3/8/4p3/3p4/8/8/3Q4/4K3 w - - 0 1", "d2d5", 100 - 900},
		// quiet move hanging a rook comes back negative
		{"4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1", "d2d4", -500},
		// quiet move to a safe square is neutral
		{"4k3/8/8/8/8/8/3R4/4K3 w - - 0 1", "d2c2", 0},
	}

	for _, tt := range tests {
		pos := mustFEN(t, tt.fen)
		m := mustMove(t, pos, tt.move)
		if got := pos.SEE(m); got != tt.want {
			t.Errorf("SEE(%s) in %q = %d, want %d", tt.move, tt.fen, got, tt.want)
		}
	}
}

func TestMakeUnmakeRestoresPosition(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	pos := NewPosition()

	var moves []Move
	var undos []UndoInfo
	var snapshots []Position

	for i := 0; i < 64; i++ {
		legal := pos.GenerateLegalMoves()
		if legal.Len() == 0 {
			break
		}
		snapshots = append(snapshots, *pos)

		m := legal.Get(rng.Intn(legal.Len()))
		undo := pos.MakeMove(m)
		if !undo.Valid {
			t.Fatalf("legal move %s rejected at step %d", m, i)
		}
		moves = append(moves, m)
		undos = append(undos, undo)
	}

	for i := len(moves) - 1; i >= 0; i-- {
		pos.UnmakeMove(moves[i], undos[i])
		if *pos != snapshots[i] {
			t.Fatalf("position not restored after unmaking %s at step %d", moves[i], i)
		}
		if pos.Hash != snapshots[i].Hash {
			t.Fatalf("hash not restored at step %d", i)
		}
	}
}
