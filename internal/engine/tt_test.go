package engine

import (
	"testing"

	"github.com/pauxav06/ChePP/internal/board"
)

func TestTTRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x1234567890abcdef)
	move := board.NewMove(board.E2, board.E4)

	if _, ok := tt.Probe(hash); ok {
		t.Fatal("probe hit on empty table")
	}

	tt.Store(hash, 5, 42, BoundExact, move)

	entry, ok := tt.Probe(hash)
	if !ok {
		t.Fatal("probe missed a stored key")
	}
	if entry.Move != move || entry.Score != 42 || entry.Depth != 5 || entry.Bound != BoundExact {
		t.Fatalf("round trip mangled the entry: %+v", entry)
	}
}

func TestTTDeeperReplaces(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0xdeadbeefcafebabe)

	tt.Store(hash, 4, 10, BoundLower, board.NewMove(board.E2, board.E4))
	tt.Store(hash, 8, 20, BoundExact, board.NewMove(board.D2, board.D4))

	entry, ok := tt.Probe(hash)
	if !ok {
		t.Fatal("probe missed")
	}
	if entry.Depth != 8 || entry.Score != 20 {
		t.Fatalf("deeper same-key store did not replace: %+v", entry)
	}
}

func TestTTGenerationReplacesAcrossDepth(t *testing.T) {
	tt := NewTranspositionTable(1)

	// two keys landing in the same slot
	base := uint64(0x42)
	other := base + tt.Size()

	tt.Store(base, 10, 1, BoundExact, board.NoMove)

	// same generation, shallower, different key: incumbent survives
	tt.Store(other, 3, 2, BoundExact, board.NoMove)
	if _, ok := tt.Probe(base); !ok {
		t.Fatal("deep incumbent evicted by shallow same-generation store")
	}

	// fresher generation wins regardless of depth
	tt.NewGeneration()
	tt.Store(other, 3, 2, BoundExact, board.NoMove)
	if _, ok := tt.Probe(other); !ok {
		t.Fatal("fresh-generation store did not replace stale entry")
	}
	if _, ok := tt.Probe(base); ok {
		t.Fatal("stale entry still probeable after replacement")
	}
}

func TestTTKeepsMoveOnMovelessStore(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x77)
	move := board.NewMove(board.G1, board.F3)

	tt.Store(hash, 6, 15, BoundExact, move)
	tt.Store(hash, 7, -3, BoundUpper, board.NoMove)

	entry, ok := tt.Probe(hash)
	if !ok {
		t.Fatal("probe missed")
	}
	if entry.Move != move {
		t.Fatalf("known best move lost on moveless store: %+v", entry)
	}
}

func TestTTMateScoreAdjustment(t *testing.T) {
	// a mate found 3 plies below a node at ply 2 must read back as the
	// same distance when probed from ply 4
	score := mateIn(5)
	stored := ScoreToTT(score, 2)
	if got := ScoreFromTT(stored, 2); got != score {
		t.Fatalf("store/read at same ply: got %d, want %d", got, score)
	}

	readBack := ScoreFromTT(stored, 4)
	if readBack != mateIn(7) {
		t.Fatalf("mate distance wrong across plies: got %d, want %d", readBack, mateIn(7))
	}

	negScore := matedIn(5)
	stored = ScoreToTT(negScore, 2)
	if got := ScoreFromTT(stored, 2); got != negScore {
		t.Fatalf("mated store/read at same ply: got %d, want %d", got, negScore)
	}
}

func TestTTPackUnpack(t *testing.T) {
	entries := []Entry{
		{Move: board.NewMove(board.A1, board.H8), Score: -12345, Depth: 77, Bound: BoundUpper, Gen: 200},
		{Move: board.NoMove, Score: 32000, Depth: -5, Bound: BoundLower, Gen: 0},
		{Move: board.NewPromotion(board.A7, board.A8, board.Queen), Score: 1, Depth: 1, Bound: BoundExact, Gen: 255},
	}
	for _, e := range entries {
		if got := unpack(pack(e)); got != e {
			t.Fatalf("pack/unpack: got %+v, want %+v", got, e)
		}
	}
}
