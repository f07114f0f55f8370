package engine

import "github.com/pauxav06/ChePP/internal/board"

// Node is the per-ply search state. Nodes live in a single preallocated
// arena; Prev walks toward the root without any heap traffic.
type Node struct {
	Pos *board.Position // position being searched at this ply

	Move  board.Move  // move that produced Pos (NoMove at root / after null)
	Moved board.Piece // piece standing on Move.To() after the move
	Null  bool        // Pos was produced by a null move

	Eval     int        // static evaluation recorded at this ply
	Excluded board.Move // move excluded by a singular verification search

	Killer1 board.Move
	Killer2 board.Move

	DoubleExtensions int

	ply  int
	prev *Node
}

// Prev returns the logically preceding node, nil at the root.
func (n *Node) Prev() *Node {
	return n.prev
}

// Ply returns the node's absolute ply.
func (n *Node) Ply() int {
	return n.ply
}

// SearchStack is a contiguous arena of MaxPly+1 nodes addressed by ply.
type SearchStack struct {
	nodes [MaxPly + 1]Node
}

// NewSearchStack wires up the arena's back pointers.
func NewSearchStack() *SearchStack {
	ss := &SearchStack{}
	for i := range ss.nodes {
		ss.nodes[i].ply = i
		if i > 0 {
			ss.nodes[i].prev = &ss.nodes[i-1]
		}
	}
	return ss
}

// At returns the node for an absolute ply.
func (ss *SearchStack) At(ply int) *Node {
	return &ss.nodes[ply]
}

// Positions is the root-to-current path of the search. Entries are full
// position copies so the NNUE update can diff consecutive positions; the
// stack is preallocated and strictly LIFO.
type Positions struct {
	stack [MaxPly + 1]board.Position
	top   int

	// hashes of the game positions that preceded the root, oldest first;
	// repetition detection looks through them.
	gameHashes []uint64
}

// NewPositions builds the path for a root position with the given moves
// already played from it. The final position becomes ply 0.
func NewPositions(root *board.Position, played []board.Move) (*Positions, error) {
	p := &Positions{}
	cur := *root
	for _, m := range played {
		p.gameHashes = append(p.gameHashes, cur.Hash)
		if undo := cur.MakeMove(m); !undo.Valid {
			return nil, &IllegalMoveError{Move: m}
		}
	}
	p.stack[0] = cur
	return p, nil
}

// IllegalMoveError reports a move that could not be applied while setting
// up the root position.
type IllegalMoveError struct {
	Move board.Move
}

func (e *IllegalMoveError) Error() string {
	return "engine: illegal move " + e.Move.String() + " in position setup"
}

// Last returns the position currently being searched.
func (p *Positions) Last() *board.Position {
	return &p.stack[p.top]
}

// Ply returns the depth from the root.
func (p *Positions) Ply() int {
	return p.top
}

// DoMove appends the position after m. The move must be legal.
func (p *Positions) DoMove(m board.Move) bool {
	if p.top+1 >= len(p.stack) {
		panic("engine: position stack overflow")
	}
	next := &p.stack[p.top+1]
	*next = p.stack[p.top]
	if undo := next.MakeMove(m); !undo.Valid {
		return false
	}
	p.top++
	return true
}

// DoNull appends the position after a null move.
func (p *Positions) DoNull() {
	if p.top+1 >= len(p.stack) {
		panic("engine: position stack overflow")
	}
	next := &p.stack[p.top+1]
	*next = p.stack[p.top]
	next.MakeNullMove()
	p.top++
}

// UndoMove pops the current position.
func (p *Positions) UndoMove() {
	if p.top == 0 {
		panic("engine: position stack underflow")
	}
	p.top--
}

// IsRepetition reports whether the current position occurred at least three
// times along the game-plus-search path.
func (p *Positions) IsRepetition() bool {
	cur := &p.stack[p.top]

	count := 1
	for i := p.top - 1; i >= 0; i-- {
		if p.stack[i].Hash == cur.Hash {
			count++
			if count >= 3 {
				return true
			}
		}
	}
	for i := len(p.gameHashes) - 1; i >= 0; i-- {
		if p.gameHashes[i] == cur.Hash {
			count++
			if count >= 3 {
				return true
			}
		}
	}
	return false
}
