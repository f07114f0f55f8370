package engine

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pauxav06/ChePP/internal/board"
)

// SearchInfo describes one completed iteration of thread 0.
type SearchInfo struct {
	Depth int
	Score int
	Nodes uint64
	Time  time.Duration
	Best  board.Move
	PV    []board.Move
}

// aspirationStats tracks an exponentially smoothed variance of the
// per-iteration score deltas; the window is sized from its square root.
type aspirationStats struct {
	variance float64
}

const (
	aspirationLambda = 0.95
	aspirationZ      = 2
	aspirationMin    = 8
	aspirationMax    = 300
)

func newAspirationStats() aspirationStats {
	return aspirationStats{variance: 10000}
}

func (s *aspirationStats) window() int {
	w := int(aspirationZ * math.Sqrt(s.variance))
	return clamp(w, aspirationMin, aspirationMax)
}

func (s *aspirationStats) update(delta int) {
	d2 := float64(delta) * float64(delta)
	s.variance = aspirationLambda*s.variance + (1-aspirationLambda)*d2
}

// IterativeDeepening runs depths 1, 2, ... until the time manager stops the
// search, and returns the last fully completed result.
func (t *SearchThread) IterativeDeepening() SearchResult {
	t.aspiration = newAspirationStats()
	prevEval := t.evaluate()

	depth := 1
	for ; ; depth++ {
		t.tm.UpdateDepth(depth)
		if t.tm.ShouldStop() {
			break
		}

		eval := t.aspirationWindow(depth, prevEval)
		if t.tm.ShouldStop() {
			break
		}
		prevEval = eval

		if t.id == 0 {
			t.reportDepth(depth, eval)
		}
	}

	return SearchResult{
		Score:    prevEval,
		Depth:    depth - 1,
		BestMove: t.bestMove,
		Nodes:    t.nodes,
	}
}

// reportDepth prints the per-depth log line and the PV recovered from the
// transposition table, then feeds the info callback if one is registered.
func (t *SearchThread) reportDepth(depth, eval int) {
	fmt.Printf("Depth %d Eval %s Nodes %d best %s\n",
		depth, scoreString(eval), t.nodes, t.bestMove)

	pv := t.pvLine(depth)
	fmt.Printf("PV (Eval %d):", eval)
	for _, m := range pv {
		fmt.Printf(" %s", m)
	}
	fmt.Println()

	if t.onDepth != nil {
		t.onDepth(SearchInfo{
			Depth: depth,
			Score: eval,
			Nodes: t.nodes,
			Time:  t.tm.Elapsed(),
			Best:  t.bestMove,
			PV:    pv,
		})
	}
}

// scoreString renders an eval in centipawns, or as "mate in N".
func scoreString(eval int) string {
	if eval >= MateInMaxPly {
		return "mate in " + strconv.Itoa(MateScore-eval)
	}
	if eval <= MatedInMaxPly {
		return "mated in " + strconv.Itoa(MateScore+eval)
	}
	return strconv.Itoa(eval)
}

// pvLine walks the transposition table from the root, following stored best
// moves while they stay legal.
func (t *SearchThread) pvLine(maxDepth int) []board.Move {
	var pv []board.Move
	pos := *t.positions.Last()

	for ply := 0; ply < maxDepth && ply < MaxPly; ply++ {
		entry, ok := t.tt.Probe(pos.Hash)
		if !ok || entry.Move == board.NoMove {
			break
		}
		if !pos.IsLegal(entry.Move) {
			break
		}

		pv = append(pv, entry.Move)
		if undo := pos.MakeMove(entry.Move); !undo.Valid {
			pv = pv[:len(pv)-1]
			break
		}
		if pos.GenerateLegalMoves().Len() == 0 {
			break
		}
	}

	return pv
}

// aspirationWindow searches the depth with a window sized from the running
// score variance, doubling on every fail until the score lands strictly
// inside. Shallow depths search with the full window.
func (t *SearchThread) aspirationWindow(depth, prevEval int) int {
	if depth <= 7 {
		eval := t.negamax(depth, -Infinity, Infinity)
		if depth > 1 {
			t.aspiration.update(eval - prevEval)
		}
		return eval
	}

	window := t.aspiration.window()
	alpha := prevEval - window
	beta := prevEval + window

	eval := t.negamax(depth, alpha, beta)

	for eval <= alpha || eval >= beta {
		if t.tm.ShouldStop() {
			break
		}

		window *= 2
		alpha = clamp(eval-window, -Infinity, Infinity)
		beta = clamp(eval+window, -Infinity, Infinity)

		eval = t.negamax(depth, alpha, beta)
	}

	t.aspiration.update(eval - prevEval)

	return eval
}
