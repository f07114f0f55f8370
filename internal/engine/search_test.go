package engine

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/pauxav06/ChePP/internal/board"
	"github.com/pauxav06/ChePP/internal/nnue"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// zeroNet evaluates every position to 0, which keeps the search tests about
// search behaviour rather than network weights.
var zeroNet = nnue.NewNetwork()

// newTestThread builds a depth-limited worker. Non-zero ids keep the
// per-depth log lines out of test output.
func newTestThread(t *testing.T, id int, fen string, depth int, tt *TranspositionTable) *SearchThread {
	t.Helper()

	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}

	tm := NewTimeManager()
	tm.Init(UCILimits{Depth: depth}, pos.SideToMove, 0)
	tm.Start()

	if tt == nil {
		tt = NewTranspositionTable(16)
	}

	th, err := NewSearchThread(id, tm, tt, zeroNet, pos, nil)
	if err != nil {
		t.Fatal(err)
	}
	return th
}

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestStartingPositionDepthOne(t *testing.T) {
	th := newTestThread(t, 1, startFEN, 1, nil)
	res := th.IterativeDeepening()

	if res.BestMove == board.NoMove {
		t.Fatal("no best move from the starting position")
	}
	pos, _ := board.ParseFEN(startFEN)
	if !pos.GenerateLegalMoves().Contains(res.BestMove) {
		t.Fatalf("best move %s is not legal", res.BestMove)
	}
	if abs(res.Score) > 100 {
		t.Fatalf("starting position eval %d out of range", res.Score)
	}
}

func TestMateInOne(t *testing.T) {
	// Ra8 is mate: the rook seals the back rank from a distance and the
	// white king covers every seventh-rank flight square.
	const fen = "6k1/8/6K1/8/8/8/8/R7 w - - 0 1"

	th := newTestThread(t, 1, fen, 3, nil)
	res := th.IterativeDeepening()

	if want := board.NewMove(board.A1, board.A8); res.BestMove != want {
		t.Fatalf("best move %s, want %s", res.BestMove, want)
	}
	if res.Score != MateScore-1 {
		t.Fatalf("score %d, want %d", res.Score, MateScore-1)
	}
}

func TestMateScoreSymmetry(t *testing.T) {
	// the colour-swapped mirror of the mate-in-one must search identically
	const mirror = "r7/8/8/8/8/6k1/8/6K1 b - - 0 1"

	white := newTestThread(t, 1, "6k1/8/6K1/8/8/8/8/R7 w - - 0 1", 3, nil)
	black := newTestThread(t, 1, mirror, 3, nil)

	wres := white.IterativeDeepening()
	bres := black.IterativeDeepening()

	if wres.Score != bres.Score {
		t.Fatalf("mirror scores differ: %d vs %d", wres.Score, bres.Score)
	}
	if want := board.NewMove(board.A8, board.A1); bres.BestMove != want {
		t.Fatalf("mirror best move %s, want %s", bres.BestMove, want)
	}
}

func TestStalemateIsZero(t *testing.T) {
	const fen = "7k/5K2/6Q1/8/8/8/8/8 b - - 0 1"

	th := newTestThread(t, 1, fen, 4, nil)
	res := th.IterativeDeepening()

	if res.Score != 0 {
		t.Fatalf("stalemate score %d, want 0", res.Score)
	}
	if res.BestMove != board.NoMove {
		t.Fatalf("stalemate produced a move: %s", res.BestMove)
	}
}

func TestRepetitionDetection(t *testing.T) {
	pos, _ := board.ParseFEN(startFEN)

	uci := []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8"}
	cur := pos.Copy()
	var played []board.Move
	for _, s := range uci {
		m, err := board.ParseMove(s, cur)
		if err != nil {
			t.Fatal(err)
		}
		played = append(played, m)
		if undo := cur.MakeMove(m); !undo.Valid {
			t.Fatalf("move %s rejected", s)
		}
	}

	positions, err := NewPositions(pos, played)
	if err != nil {
		t.Fatal(err)
	}

	// third arrival at the root hash
	if positions.Last().Hash != pos.Hash {
		t.Fatal("knight shuffle did not return to the start hash")
	}
	if !positions.IsRepetition() {
		t.Fatal("threefold repetition not detected")
	}

	// two arrivals are not yet a draw
	partial, err := NewPositions(pos, played[:4])
	if err != nil {
		t.Fatal(err)
	}
	if partial.IsRepetition() {
		t.Fatal("twofold flagged as repetition")
	}
}

func TestTTCutoffsReduceWork(t *testing.T) {
	const fen = "r1bqkbnr/pppp1ppp/2n5/1B2p3/4P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 3"

	fresh := newTestThread(t, 1, fen, 4, nil)
	fresh.IterativeDeepening()
	freshNodes := fresh.Nodes()

	warm := NewTranspositionTable(16)
	deep := newTestThread(t, 1, fen, 6, warm)
	deep.IterativeDeepening()

	again := newTestThread(t, 1, fen, 4, warm)
	res := again.IterativeDeepening()

	if again.Nodes() >= freshNodes {
		t.Fatalf("warmed re-search visited %d nodes, fresh search %d", again.Nodes(), freshNodes)
	}
	if res.BestMove == board.NoMove {
		t.Fatal("warmed re-search returned no move")
	}
}

func TestAspirationMatchesInfiniteWindow(t *testing.T) {
	// on a forced mate the aspiration loop must converge to the exact
	// full-window score
	const fen = "6k1/8/6K1/8/8/8/8/R7 w - - 0 1"

	full := newTestThread(t, 1, fen, 8, nil)
	fullScore := full.negamax(8, -Infinity, Infinity)

	asp := newTestThread(t, 1, fen, 8, nil)
	aspScore := asp.aspirationWindow(8, 0)

	if fullScore != aspScore {
		t.Fatalf("aspiration score %d differs from full window %d", aspScore, fullScore)
	}
}

func TestQSearchStandPatBound(t *testing.T) {
	// a calm position with no tactics: quiescence must stand pat
	th := newTestThread(t, 1, startFEN, 1, nil)

	standPat := th.evaluate()
	score := th.qsearch(-500, 500)

	if score < standPat {
		t.Fatalf("qsearch %d fell below stand pat %d", score, standPat)
	}
}

func TestScoreBounds(t *testing.T) {
	fens := []string{
		startFEN,
		"6k1/8/6K1/8/8/8/8/R7 w - - 0 1",
		"4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1",
	}
	for _, fen := range fens {
		th := newTestThread(t, 1, fen, 4, nil)
		res := th.IterativeDeepening()
		if res.Score <= -Infinity || res.Score >= Infinity {
			t.Fatalf("score %d out of (-INF, INF) for %q", res.Score, fen)
		}
	}
}

func TestHistoryGravityClamp(t *testing.T) {
	h := NewHistoryManager()
	pos, _ := board.ParseFEN(startFEN)

	ss := NewSearchStack()
	node := ss.At(0)
	node.Pos = pos

	quiets := board.NewMoveList()
	best := board.NewMove(board.G1, board.F3)
	other := board.NewMove(board.B1, board.C3)
	quiets.Add(best)
	quiets.Add(other)

	for i := 0; i < 10_000; i++ {
		h.UpdateQuiets(node, quiets, best, 20)
	}

	if got := h.HistScore(pos, best); got != histCeiling {
		t.Fatalf("butterfly score %d did not saturate at %d", got, histCeiling)
	}
	if got := h.HistScore(pos, other); got != 0 {
		t.Fatalf("decayed loser score %d, want 0", got)
	}
}

func TestCoordinatorMajorityVote(t *testing.T) {
	pos, _ := board.ParseFEN("6k1/8/6K1/8/8/8/8/R7 w - - 0 1")

	c := NewCoordinator(16, zeroNet, testLogger())
	if err := c.Set(2, UCILimits{Depth: 3}, pos, nil); err != nil {
		t.Fatal(err)
	}

	best, res := c.Start()
	if want := board.NewMove(board.A1, board.A8); best != want {
		t.Fatalf("voted move %s, want %s", best, want)
	}
	if res.Score != MateScore-1 {
		t.Fatalf("thread 0 score %d, want %d", res.Score, MateScore-1)
	}
}
