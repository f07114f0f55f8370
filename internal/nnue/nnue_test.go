package nnue

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pauxav06/ChePP/internal/board"
)

var testNet *Network

func network(t *testing.T) *Network {
	t.Helper()
	if testNet == nil {
		testNet = NewNetwork()
		testNet.InitRandom(12345)
	}
	return testNet
}

// playRandomGame applies n random legal moves from the starting position,
// returning every position along the way (index i = position after i moves).
func playRandomGame(t *testing.T, rng *rand.Rand, n int) []*board.Position {
	t.Helper()

	positions := []*board.Position{board.NewPosition()}
	for i := 0; i < n; i++ {
		cur := positions[len(positions)-1]
		moves := cur.GenerateLegalMoves()
		if moves.Len() == 0 {
			break
		}
		next := cur.Copy()
		m := moves.Get(rng.Intn(moves.Len()))
		undo := next.MakeMove(m)
		if !undo.Valid {
			t.Fatalf("legal move %s rejected by MakeMove", m)
		}
		positions = append(positions, next)
	}
	return positions
}

func accumulatorsEqual(a, b *Accumulator) bool {
	if a.White != b.White || a.Black != b.Black {
		return false
	}
	if a.WhitePsqt != b.WhitePsqt || a.BlackPsqt != b.BlackPsqt {
		return false
	}
	return a.Bucket == b.Bucket
}

func TestIncrementalMatchesRefresh(t *testing.T) {
	net := network(t)
	rng := rand.New(rand.NewSource(42))

	for game := 0; game < 4; game++ {
		positions := playRandomGame(t, rng, 32)

		var stack AccumulatorStack
		stack.Init(positions[0], net)

		for i := 1; i < len(positions); i++ {
			stack.DoMove(positions[i], positions[i-1], net)

			var fresh Accumulator
			fresh.Refresh(positions[i], net)

			if !accumulatorsEqual(stack.Last(), &fresh) {
				t.Fatalf("game %d ply %d: incremental accumulator diverged from refresh", game, i)
			}

			stm := positions[i].SideToMove
			if got, want := net.Evaluate(stack.Last(), stm), net.Evaluate(&fresh, stm); got != want {
				t.Fatalf("game %d ply %d: evaluate mismatch: incremental %d refresh %d", game, i, got, want)
			}
		}

		// unwinding the stack must land back on the root accumulator
		for i := 1; i < len(positions); i++ {
			stack.UndoMove()
		}
		var root Accumulator
		root.Refresh(positions[0], net)
		if !accumulatorsEqual(stack.Last(), &root) {
			t.Fatalf("game %d: unwound stack does not match root refresh", game)
		}
	}
}

func TestFeatureIndexInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	positions := playRandomGame(t, rng, 40)

	for _, pos := range positions {
		for _, view := range []board.Color{board.White, board.Black} {
			features := activeFeatures(pos, view, nil)
			for _, f := range features {
				if f < 0 || f >= NumFeatures {
					t.Fatalf("feature index %d out of range", f)
				}
			}
			if want := pos.AllOccupied.PopCount(); len(features) != want {
				t.Fatalf("got %d features, board has %d pieces", len(features), want)
			}
		}
	}
}

func TestKingMoveTriggersRefresh(t *testing.T) {
	pos, err := board.ParseFEN("4k3/8/8/8/8/8/8/4K2R w K - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	next := pos.Copy()
	m, err := board.ParseMove("e1f1", next)
	if err != nil {
		t.Fatal(err)
	}
	if undo := next.MakeMove(m); !undo.Valid {
		t.Fatal("king move rejected")
	}

	if !NeedsRefresh(next, pos, board.White) {
		t.Error("white king moved, white perspective must refresh")
	}
	if NeedsRefresh(next, pos, board.Black) {
		t.Error("black king did not move, black perspective must not refresh")
	}

	// the refresh path inside DoMove must agree with a direct refresh
	net := network(t)
	var stack AccumulatorStack
	stack.Init(pos, net)
	stack.DoMove(next, pos, net)

	var fresh Accumulator
	fresh.Refresh(next, net)
	if !accumulatorsEqual(stack.Last(), &fresh) {
		t.Fatal("accumulator wrong after king move")
	}
}

func TestManifestSize(t *testing.T) {
	size, err := ManifestSize(networkManifest)
	if err != nil {
		t.Fatal(err)
	}

	var want int64
	want += int64(NumFeatures*FTOut) * 2
	want += int64(FTOut) * 2
	want += int64(NumFeatures*PsqtOut) * 2
	want += int64(PsqtOut) * 2
	want += int64(L1Size*2*FTOut) * 2
	want += int64(L1Size) * 4
	want += int64(L2Size*L1Size) * 2
	want += int64(L2Size) * 4
	want += int64(L2Size) * 2
	want += 4

	if size != want {
		t.Fatalf("manifest size %d, want %d", size, want)
	}
}

func TestWeightBlobRoundTrip(t *testing.T) {
	net := network(t)
	path := filepath.Join(t.TempDir(), "chepp.net")

	if err := SaveNetwork(net, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadNetwork(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.FTWeights != net.FTWeights || loaded.L1Biases != net.L1Biases || loaded.OutBias != net.OutBias {
		t.Fatal("loaded network differs from saved network")
	}

	// a truncated blob must be rejected before any section is read
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	short := filepath.Join(t.TempDir(), "short.net")
	if err := os.WriteFile(short, data[:len(data)-4], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNetwork(short); err == nil {
		t.Fatal("expected size mismatch error for truncated blob")
	}
}
