package engine

import "github.com/pauxav06/ChePP/internal/board"

// History scores live in [0, histCeiling]. Bonuses are scaled per table so
// the hottest entries saturate at roughly the same search effort.
const histCeiling = 50_000_000

// Per-table bonus scales and proportional decay divisors.
const (
	histScaleButterfly = 500
	histScaleCont      = 300
	histScalePawn      = 200
	histScaleCapture   = 1000

	histDecayButterfly = 50
	histDecayCont      = 100
	histDecayPawn      = 30
	histDecayCapture   = 5
)

// contHistMaxBack is how many preceding plies feed continuation history.
const contHistMaxBack = 2

// histAdjust selects between rewarding the cutoff move and decaying the
// moves that failed to produce one.
type histAdjust uint8

const (
	histBonus histAdjust = iota
	histPenalty
)

// apply computes the new score for an entry.
func (a histAdjust) apply(old, depth, scale, decay int) int {
	var next int
	if a == histBonus {
		next = old + depth*depth*scale
	} else {
		next = old - old/decay
	}
	return clamp(next, 0, histCeiling)
}

// histTable is indexed by (moving piece, destination square).
type histTable [12][64]int

// contHistTable adds one plane per predecessor: (previous moved piece,
// previous destination) selects a histTable for the candidate move.
type contHistTable [12][64]histTable

// captureHistTable is indexed by (captured type, attacker piece, destination).
type captureHistTable [6]histTable

// HistoryManager owns all per-thread heuristic tables.
type HistoryManager struct {
	butterfly *histTable
	pawn      *histTable
	cont      *contHistTable
	capture   *captureHistTable
}

// NewHistoryManager allocates zeroed tables.
func NewHistoryManager() *HistoryManager {
	return &HistoryManager{
		butterfly: &histTable{},
		pawn:      &histTable{},
		cont:      &contHistTable{},
		capture:   &captureHistTable{},
	}
}

// movedPiece is the piece a quiet move displaces.
func movedPiece(pos *board.Position, m board.Move) board.Piece {
	return pos.PieceAt(m.From())
}

// capturedType resolves the victim of a capture, en passant included.
func capturedType(pos *board.Position, m board.Move) board.PieceType {
	if m.IsEnPassant() {
		return board.Pawn
	}
	return pos.PieceAt(m.To()).Type()
}

// HistScore is the butterfly score for a quiet move.
func (h *HistoryManager) HistScore(pos *board.Position, m board.Move) int {
	p := movedPiece(pos, m)
	if p == board.NoPiece {
		return 0
	}
	return h.butterfly[p][m.To()]
}

// CaptureHistScore scores a capture by (victim, attacker, destination).
func (h *HistoryManager) CaptureHistScore(pos *board.Position, m board.Move) int {
	attacker := movedPiece(pos, m)
	victim := capturedType(pos, m)
	if attacker == board.NoPiece || victim >= board.King {
		return 0
	}
	return h.capture[victim][attacker][m.To()]
}

// ContHistBonus sums the continuation planes for a candidate move over the
// preceding plies, advancing one node per plane and skipping null moves.
func (h *HistoryManager) ContHistBonus(node *Node, m board.Move) int {
	p := movedPiece(node.Pos, m)
	if p == board.NoPiece {
		return 0
	}

	bonus := 0
	n := node
	for back := 0; back < contHistMaxBack && n != nil; back, n = back+1, n.Prev() {
		if n.Move == board.NoMove || n.Null {
			continue
		}
		bonus += h.cont[n.Moved][n.Move.To()][p][m.To()]
	}
	return bonus
}

// UpdateQuiets rewards the cutoff move and decays the quiets searched before
// it, across the butterfly, pawn, and continuation tables.
func (h *HistoryManager) UpdateQuiets(node *Node, quiets *board.MoveList, best board.Move, depth int) {
	pos := node.Pos
	for i := 0; i < quiets.Len(); i++ {
		m := quiets.Get(i)
		p := movedPiece(pos, m)
		if p == board.NoPiece {
			continue
		}

		adj := histPenalty
		if m == best {
			adj = histBonus
		}

		e := &h.butterfly[p][m.To()]
		*e = adj.apply(*e, depth, histScaleButterfly, histDecayButterfly)

		if p.Type() == board.Pawn {
			e = &h.pawn[p][m.To()]
			*e = adj.apply(*e, depth, histScalePawn, histDecayPawn)
		}
	}

	n := node
	for back := 0; back < contHistMaxBack && n != nil; back, n = back+1, n.Prev() {
		if n.Move == board.NoMove || n.Null {
			continue
		}
		plane := &h.cont[n.Moved][n.Move.To()]
		for i := 0; i < quiets.Len(); i++ {
			m := quiets.Get(i)
			p := movedPiece(pos, m)
			if p == board.NoPiece {
				continue
			}
			adj := histPenalty
			if m == best {
				adj = histBonus
			}
			e := &plane[p][m.To()]
			*e = adj.apply(*e, depth, histScaleCont, histDecayCont)
		}
	}
}

// UpdateCaptures rewards the cutoff capture and decays the ones tried first.
func (h *HistoryManager) UpdateCaptures(node *Node, captures *board.MoveList, best board.Move, depth int) {
	pos := node.Pos
	for i := 0; i < captures.Len(); i++ {
		m := captures.Get(i)
		attacker := movedPiece(pos, m)
		victim := capturedType(pos, m)
		if attacker == board.NoPiece || victim >= board.King {
			continue
		}

		adj := histPenalty
		if m == best {
			adj = histBonus
		}
		e := &h.capture[victim][attacker][m.To()]
		*e = adj.apply(*e, depth, histScaleCapture, histDecayCapture)
	}
}
