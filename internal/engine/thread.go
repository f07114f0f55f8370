package engine

import (
	"github.com/pauxav06/ChePP/internal/board"
	"github.com/pauxav06/ChePP/internal/nnue"
)

// SearchThread is one Lazy SMP worker. It owns its position stack,
// accumulator stack, search stack, and history tables; only the
// transposition table and the time manager are shared.
type SearchThread struct {
	id int
	tm *TimeManager
	tt *TranspositionTable

	net *nnue.Network

	positions *Positions
	accs      *nnue.AccumulatorStack
	ss        *SearchStack
	history   *HistoryManager

	nodes  uint64
	ttHits uint64

	// cumulative nodes spent refuting each root move across iterations,
	// fed back into root move ordering at higher depths
	rootRefutation map[board.Move]uint64

	aspiration aspirationStats

	bestMove board.Move

	// onDepth, when set, receives the info for each completed iteration.
	// Only thread 0 reports.
	onDepth func(SearchInfo)
}

// SearchResult is what a worker hands back after iterative deepening.
type SearchResult struct {
	Score    int
	Depth    int
	BestMove board.Move
	Nodes    uint64
}

// NewSearchThread sets up a worker for the root position with the given
// moves already played (the game line, used for repetition detection).
func NewSearchThread(id int, tm *TimeManager, tt *TranspositionTable, net *nnue.Network, root *board.Position, played []board.Move) (*SearchThread, error) {
	positions, err := NewPositions(root, played)
	if err != nil {
		return nil, err
	}

	t := &SearchThread{
		id:             id,
		tm:             tm,
		tt:             tt,
		net:            net,
		positions:      positions,
		accs:           &nnue.AccumulatorStack{},
		ss:             NewSearchStack(),
		history:        NewHistoryManager(),
		rootRefutation: make(map[board.Move]uint64),
	}
	t.accs.Init(positions.Last(), net)
	t.ss.At(0).Pos = positions.Last()
	return t, nil
}

// Nodes returns the number of nodes searched.
func (t *SearchThread) Nodes() uint64 {
	return t.nodes
}

// BestMove returns the last fully validated root move.
func (t *SearchThread) BestMove() board.Move {
	return t.bestMove
}

func (t *SearchThread) ply() int {
	return t.positions.Ply()
}

func (t *SearchThread) node() *Node {
	return t.ss.At(t.ply())
}

// doMove plays a move, updating the accumulator stack alongside.
func (t *SearchThread) doMove(m board.Move) bool {
	prev := t.positions.Last()
	if !t.positions.DoMove(m) {
		return false
	}
	cur := t.positions.Last()
	t.accs.DoMove(cur, prev, t.net)

	n := t.ss.At(t.ply())
	n.Pos = cur
	n.Move = m
	n.Moved = cur.PieceAt(m.To())
	n.Null = false
	n.Excluded = board.NoMove
	n.DoubleExtensions = n.Prev().DoubleExtensions
	return true
}

func (t *SearchThread) undoMove() {
	t.positions.UndoMove()
	t.accs.UndoMove()
}

// doMoveQuick plays a move without touching the accumulator; used where no
// evaluation will be requested before the matching undoMoveQuick (the TT
// draw-validation probe).
func (t *SearchThread) doMoveQuick(m board.Move) bool {
	if !t.positions.DoMove(m) {
		return false
	}
	n := t.ss.At(t.ply())
	n.Pos = t.positions.Last()
	n.Move = m
	n.Moved = n.Pos.PieceAt(m.To())
	n.Null = false
	return true
}

func (t *SearchThread) undoMoveQuick() {
	t.positions.UndoMove()
}

// doNull plays a null move. The piece placement is unchanged, so the
// accumulator stack is deliberately left alone.
func (t *SearchThread) doNull() {
	t.positions.DoNull()
	n := t.ss.At(t.ply())
	n.Pos = t.positions.Last()
	n.Move = board.NoMove
	n.Moved = board.NoPiece
	n.Null = true
	n.Excluded = board.NoMove
	n.DoubleExtensions = n.Prev().DoubleExtensions
}

func (t *SearchThread) undoNull() {
	t.positions.UndoMove()
}

// evaluate runs the NNUE forward pass for the current position, clamps the
// score inside the mate window, and damps it as the 50-move clock runs down.
func (t *SearchThread) evaluate() int {
	pos := t.positions.Last()
	eval := int(t.net.Evaluate(t.accs.Last(), pos.SideToMove))
	eval = clamp(eval, MatedInMaxPly+1, MateInMaxPly-1)
	eval -= eval * pos.HalfMoveClock / 101
	return eval
}

func (t *SearchThread) isDraw() bool {
	pos := t.positions.Last()
	return t.positions.IsRepetition() ||
		pos.HalfMoveClock >= 100 ||
		pos.IsInsufficientMaterial()
}

// probeTT fetches the entry for the current position, invalidating hits
// whose move is illegal here (index collision) and hits whose move walks
// straight into a repetition draw.
func (t *SearchThread) probeTT(pos *board.Position) (Entry, bool) {
	entry, ok := t.tt.Probe(pos.Hash)
	if !ok {
		return Entry{}, false
	}
	if entry.Move != board.NoMove {
		if !pos.IsLegal(entry.Move) {
			entry.Move = board.NoMove
		} else if t.ply()+1 < MaxPly {
			if t.doMoveQuick(entry.Move) {
				drawn := t.isDraw()
				t.undoMoveQuick()
				if drawn {
					return Entry{}, false
				}
			}
		}
	}
	t.ttHits++
	return entry, true
}

// negamax is the main alpha-beta search.
func (t *SearchThread) negamax(depth, alpha, beta int) int {
	if t.id == 0 && t.nodes%4096 == 0 {
		t.tm.UpdateTime()
	}

	pos := t.positions.Last()
	alphaOrg := alpha
	isRoot := t.ply() == 0
	inCheck := pos.InCheck()

	if inCheck {
		depth++
	}

	if depth <= 0 {
		return t.qsearch(alpha, beta)
	}

	t.nodes++

	ply := t.ply()
	node := t.node()

	if !isRoot {
		if t.isDraw() {
			return 0
		}
		if ply >= MaxPly {
			return t.evaluate()
		}

		// mate-distance pruning: the worst case is being mated here, the
		// best is mating next ply
		alpha = max(alpha, matedIn(ply))
		beta = min(beta, mateIn(ply+1))
		if alpha >= beta {
			return alpha
		}
	}

	isPV := beta-alpha > 1

	var ttEntry Entry
	ttHit := false
	if node.Excluded == board.NoMove {
		ttEntry, ttHit = t.probeTT(pos)
	}
	ttMove := board.NoMove
	if ttHit {
		ttMove = ttEntry.Move
	}

	if !isPV && ttHit && int(ttEntry.Depth) >= depth {
		score := ScoreFromTT(int(ttEntry.Score), ply)
		switch ttEntry.Bound {
		case BoundExact:
			return score
		case BoundLower:
			if score >= beta {
				return score
			}
		case BoundUpper:
			if score <= alpha {
				return score
			}
		}
	}

	staticEval := 0
	if !inCheck {
		if ttHit {
			staticEval = int(ttEntry.Score)
		} else {
			staticEval = t.evaluate()
		}
	}
	node.Eval = staticEval

	improving := false
	if !inCheck {
		if ply >= 2 {
			improving = staticEval > t.ss.At(ply-2).Eval
		} else {
			improving = true
		}
	}

	// reverse futility: a static eval far above beta fails high outright
	if !isRoot && !isPV && !inCheck && depth < 9 {
		improve := 0
		if improving {
			improve = 1
		}
		margin := (depth-improve)*77 - node.Prev().Eval/400
		if staticEval >= beta+margin {
			return staticEval
		}
	}

	// null move: hand over the move and search reduced; a fail-high means
	// the position is strong enough to stand a free tempo. Skipped without
	// enough pieces (zugzwang) and when the TT already says we fail low.
	if !isRoot && !isPV && !node.Null && !inCheck && depth >= 3 &&
		staticEval >= beta &&
		(!ttHit || ttEntry.Bound != BoundUpper || int(ttEntry.Score) > beta) &&
		!isMateScore(staticEval) &&
		nonPawnPieces(pos) >= 3 {

		reduction := 3 + depth/3 + clamp((staticEval-beta)/100, 0, 4)
		nullDepth := depth - reduction - 1

		t.doNull()
		score := -t.negamax(nullDepth, -beta, -(beta - 1))
		t.undoNull()

		if score >= beta {
			if isMateScore(score) {
				score = beta
			}
			return score
		}
	}

	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return matedIn(ply)
		}
		return 0
	}

	var scores []int
	if isRoot && depth > 7 {
		// at high depths the root ordering is driven by how much work each
		// move cost to refute in earlier iterations
		scores = make([]int, moves.Len())
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			scores[i] = int(t.rootRefutation[m])
			if ttMove != board.NoMove && m == ttMove {
				scores[i] = int(^uint(0) >> 1)
			}
		}
	} else {
		scores = t.scoreMoves(node, moves, ttMove)
	}
	SortMoves(moves, scores)

	// probcut: when a tactical scout already clears beta by a margin at
	// reduced depth, trust it
	if !isRoot && node.Excluded == board.NoMove && !isPV && !inCheck &&
		depth >= 3 && staticEval >= beta+probcutMargin {

		probBeta := beta + probcutMargin
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			if !m.IsCapture(pos) && !m.IsPromotion() {
				continue
			}
			if ttMove != board.NoMove && m == ttMove {
				continue
			}
			if scores[i] < -1_000_000 {
				continue
			}
			if !t.doMove(m) {
				continue
			}

			score := -t.qsearch(-probBeta, -(probBeta - 1))
			if score >= probBeta {
				probDepth := max(1, depth-4)
				score = -t.negamax(probDepth, -probBeta, -(probBeta - 1))
			}

			t.undoMove()

			if t.tm.ShouldStop() {
				return 0
			}
			if score >= probBeta {
				return score
			}
		}
	}

	bestEval := -Infinity
	localBest := board.NoMove
	flag := BoundUpper
	moveIdx := 0
	firstMove := true
	skipQuiets := false

	quiets := board.NewMoveList()
	captures := board.NewMoveList()

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)

		if m == node.Excluded {
			continue
		}

		isCapture := m.IsCapture(pos)
		isQuiet := !isCapture && !m.IsPromotion()
		if isQuiet {
			quiets.Add(m)
		}
		if isCapture {
			captures.Add(m)
		}

		// selective pruning, once some legal best move exists
		if !isRoot && bestEval > MatedInMaxPly && localBest != board.NoMove {
			if isQuiet {
				if skipQuiets {
					moveIdx++
					firstMove = false
					continue
				}

				// late move pruning: with sane ordering, quiets this far
				// down the list almost never matter
				if !isPV && !inCheck && depth <= 7 && quiets.Len() > lmpLimit(improving, depth) {
					skipQuiets = true
					moveIdx++
					firstMove = false
					continue
				}

				// futility: a hopeless static eval prunes remaining quiets
				if !isPV && !inCheck && lmrReduction(true, depth, moveIdx) <= 6 {
					improve := 0
					if improving {
						improve = 1
					}
					if staticEval+futilityMargin(depth)+100*improve <= alpha {
						skipQuiets = true
						moveIdx++
						firstMove = false
						continue
					}
				}

				// SEE pruning for quiets that hang material
				if depth <= 8 && pos.SEE(m)+70*depth < 0 {
					moveIdx++
					firstMove = false
					continue
				}
			} else {
				// SEE pruning for losing tactical moves
				if depth <= 6 && isCapture && pos.SEE(m)+15*depth*depth < 0 {
					moveIdx++
					firstMove = false
					continue
				}
			}
		}

		searchDepth := depth
		nodesBefore := t.nodes

		// singular extension: verify the TT move is the only move holding
		// its score; extend it if so, otherwise reduce it
		if m == ttMove && !isRoot && !isPV && depth >= 6 && ttMove != board.NoMove &&
			ttHit && ttEntry.Bound == BoundLower && int(ttEntry.Depth) >= depth-3 &&
			!isMateScore(ScoreFromTT(int(ttEntry.Score), ply)) && moves.Len() > 1 {

			ttScore := ScoreFromTT(int(ttEntry.Score), ply)
			singularBeta := ttScore - depth
			singularDepth := (depth - 1) / 2

			node.Excluded = ttMove
			singularScore := t.negamax(singularDepth, singularBeta-1, singularBeta)
			node.Excluded = board.NoMove

			if singularScore < singularBeta {
				searchDepth++
				if singularScore < singularBeta-20 && node.DoubleExtensions <= 5 {
					searchDepth++
					node.DoubleExtensions++
				}
			} else if ttScore >= beta {
				return ttScore
			} else if ttScore <= singularScore || !isPV {
				searchDepth = max(1, searchDepth-1)
			}
		}

		if !t.doMove(m) {
			continue
		}

		score := 0
		fullSearch := !isPV || moveIdx > 0

		// late move reductions: late, calm moves are searched shallower
		// with a null window; only a surprise promotes them to full depth
		if depth >= 3 && !inCheck && moveIdx > 2*(1+boolToInt(isPV)) {
			reduction := min(lmrReduction(isQuiet, depth, moveIdx), depth-1)
			if !improving {
				reduction++
			}
			if !isPV {
				reduction++
			}
			if m == node.Killer1 || m == node.Killer2 {
				reduction -= 2
			}
			reduction = clamp(reduction, 1, depth-1)

			reducedDepth := max(1, searchDepth-reduction)
			score = -t.negamax(reducedDepth-1, -(alpha + 1), -alpha)

			fullSearch = score > alpha && reduction != 1
			if fullSearch && score > bestEval+70+12*(searchDepth-reduction) {
				searchDepth++
			}
		}

		if fullSearch {
			score = -t.negamax(searchDepth-1, -(alpha + 1), -alpha)
		}

		// principal variation search: the first move, or a null-window
		// surprise inside the window, gets the full window
		if isPV && (firstMove || (score > alpha && score < beta)) {
			score = -t.negamax(searchDepth-1, -beta, -alpha)
		}

		t.undoMove()

		if isRoot {
			t.rootRefutation[m] += t.nodes - nodesBefore
		}

		if t.tm.ShouldStop() {
			if isRoot && localBest != board.NoMove {
				break
			}
			return 0
		}

		if score > bestEval {
			bestEval = score
			localBest = m
		}
		if score > alpha {
			alpha = score
		}

		if alpha >= beta {
			if isQuiet {
				if node.Killer1 != m {
					node.Killer2 = node.Killer1
					node.Killer1 = m
				}
				t.history.UpdateQuiets(node, quiets, m, depth)
			}
			if isCapture {
				t.history.UpdateCaptures(node, captures, m, depth)
			}
			break
		}

		firstMove = false
		moveIdx++
	}

	if localBest == board.NoMove {
		if isRoot {
			// every root move was discarded without a stop: make/unmake or
			// pruning is broken
			panic("engine: no best move at root")
		}
		// all moves excluded or rejected; fail soft on the original bound
		return alpha
	}

	if bestEval >= beta {
		flag = BoundLower
	} else if bestEval > alphaOrg {
		flag = BoundExact
	}

	bestValid := !t.tm.ShouldStop() && node.Excluded == board.NoMove
	if isRoot && bestValid {
		t.bestMove = localBest
	}
	if bestValid {
		t.tt.Store(pos.Hash, depth, ScoreToTT(bestEval, ply), flag, localBest)
	}

	return bestEval
}

// qsearch searches only tactical moves to settle the horizon.
func (t *SearchThread) qsearch(alpha, beta int) int {
	if t.id == 0 && t.nodes%4096 == 0 {
		t.tm.UpdateTime()
	}

	t.nodes++

	isPV := beta-alpha > 1
	pos := t.positions.Last()
	ply := t.ply()
	node := t.node()

	if ply >= MaxPly {
		return t.evaluate()
	}
	if t.isDraw() {
		return 0
	}

	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if pos.InCheck() {
			return matedIn(ply)
		}
		return 0
	}

	ttEntry, ttHit := t.probeTT(pos)
	ttMove := board.NoMove
	if ttHit {
		ttMove = ttEntry.Move
	}

	if !isPV && ttHit {
		score := ScoreFromTT(int(ttEntry.Score), ply)
		switch ttEntry.Bound {
		case BoundExact:
			return score
		case BoundLower:
			if score >= beta {
				return score
			}
		case BoundUpper:
			if score <= alpha {
				return score
			}
		}
	}

	standPat := t.evaluate()
	node.Eval = standPat

	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}

	tactical := board.NewMoveList()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.IsCapture(pos) || m.IsPromotion() {
			tactical.Add(m)
		}
	}

	scores := t.scoreMoves(node, tactical, ttMove)
	SortMoves(tactical, scores)

	bestEval := standPat
	for i := 0; i < tactical.Len(); i++ {
		m := tactical.Get(i)

		// hopeless captures: very negative SEE, or not enough upside to
		// reach alpha even after winning the victim
		if !isPV && !pos.IsEmpty(m.To()) {
			victim := pos.PieceAt(m.To())
			if scores[i] < -5_000_000 || victim.Value()+2*scores[i]+bestEval < alpha {
				continue
			}
		}

		if !t.doMove(m) {
			continue
		}

		score := -t.qsearch(-beta, -alpha)

		t.undoMove()

		if t.tm.ShouldStop() {
			break
		}

		if score > bestEval {
			bestEval = score
		}
		if bestEval > alpha {
			alpha = bestEval
		}
		if alpha >= beta {
			break
		}
	}

	return bestEval
}

// nonPawnPieces counts knights, bishops, rooks and queens of both colours.
func nonPawnPieces(pos *board.Position) int {
	bb := pos.Pieces[board.White][board.Knight] | pos.Pieces[board.Black][board.Knight] |
		pos.Pieces[board.White][board.Bishop] | pos.Pieces[board.Black][board.Bishop] |
		pos.Pieces[board.White][board.Rook] | pos.Pieces[board.Black][board.Rook] |
		pos.Pieces[board.White][board.Queen] | pos.Pieces[board.Black][board.Queen]
	return bb.PopCount()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
