package nnue

import "github.com/pauxav06/ChePP/internal/board"

// Accumulator holds the feature-transformer activations for both
// perspectives, the parallel PSQT partial sums, and the material bucket of
// the position it was computed for.
type Accumulator struct {
	White [FTOut]int16
	Black [FTOut]int16

	WhitePsqt [PsqtOut]int32
	BlackPsqt [PsqtOut]int32

	Bucket int
}

// materialBucket selects among the parallel PSQT heads by piece count.
func materialBucket(pos *board.Position) int {
	return (pos.AllOccupied.PopCount() - 1) / 4
}

// Refresh rebuilds both perspectives from scratch.
func (acc *Accumulator) Refresh(pos *board.Position, net *Network) {
	var buf [32]int
	for _, view := range []board.Color{board.White, board.Black} {
		features := activeFeatures(pos, view, buf[:0])
		acc.refreshView(view, features, net)
	}
	acc.Bucket = materialBucket(pos)
}

// UpdateFrom derives this accumulator from prev, given the positions before
// and after the move. A perspective whose king moved is refreshed; the other
// is updated by adding and subtracting the changed feature columns.
func (acc *Accumulator) UpdateFrom(prev *Accumulator, cur, prevPos *board.Position, net *Network) {
	var addBuf, remBuf [32]int
	for _, view := range []board.Color{board.White, board.Black} {
		if NeedsRefresh(cur, prevPos, view) {
			features := activeFeatures(cur, view, addBuf[:0])
			acc.refreshView(view, features, net)
			continue
		}
		add, rem := changedFeatures(cur, prevPos, view, addBuf[:0], remBuf[:0])
		acc.updateView(prev, view, add, rem, net)
	}
	acc.Bucket = materialBucket(cur)
}

func (acc *Accumulator) vectors(view board.Color) (*[FTOut]int16, *[PsqtOut]int32) {
	if view == board.White {
		return &acc.White, &acc.WhitePsqt
	}
	return &acc.Black, &acc.BlackPsqt
}

func (acc *Accumulator) refreshView(view board.Color, features []int, net *Network) {
	vec, psqt := acc.vectors(view)

	copy(vec[:], net.FTBiases[:])
	for i := range psqt {
		psqt[i] = int32(net.PsqtBiases[i])
	}

	for _, f := range features {
		col := net.FTWeights[f*FTOut : f*FTOut+FTOut]
		for i := 0; i < FTOut; i++ {
			vec[i] += col[i]
		}
		pcol := net.PsqtWeights[f*PsqtOut : f*PsqtOut+PsqtOut]
		for i := 0; i < PsqtOut; i++ {
			psqt[i] += int32(pcol[i])
		}
	}
}

func (acc *Accumulator) updateView(prev *Accumulator, view board.Color, add, rem []int, net *Network) {
	vec, psqt := acc.vectors(view)
	prevVec, prevPsqt := prev.vectors(view)

	copy(vec[:], prevVec[:])
	copy(psqt[:], prevPsqt[:])

	for _, f := range add {
		col := net.FTWeights[f*FTOut : f*FTOut+FTOut]
		for i := 0; i < FTOut; i++ {
			vec[i] += col[i]
		}
		pcol := net.PsqtWeights[f*PsqtOut : f*PsqtOut+PsqtOut]
		for i := 0; i < PsqtOut; i++ {
			psqt[i] += int32(pcol[i])
		}
	}
	for _, f := range rem {
		col := net.FTWeights[f*FTOut : f*FTOut+FTOut]
		for i := 0; i < FTOut; i++ {
			vec[i] -= col[i]
		}
		pcol := net.PsqtWeights[f*PsqtOut : f*PsqtOut+PsqtOut]
		for i := 0; i < PsqtOut; i++ {
			psqt[i] -= int32(pcol[i])
		}
	}
}

// AccumulatorStack mirrors the search's position stack: entry i is the
// accumulator for the position at ply i. It is preallocated; the hot path
// never allocates.
type AccumulatorStack struct {
	stack [MaxPly + 1]Accumulator
	top   int
}

// Init seats the root accumulator.
func (s *AccumulatorStack) Init(pos *board.Position, net *Network) {
	s.top = 0
	s.stack[0].Refresh(pos, net)
}

// DoMove appends the accumulator for cur, derived from the current top.
func (s *AccumulatorStack) DoMove(cur, prev *board.Position, net *Network) {
	if s.top+1 >= len(s.stack) {
		panic("nnue: accumulator stack overflow")
	}
	next := &s.stack[s.top+1]
	next.UpdateFrom(&s.stack[s.top], cur, prev, net)
	s.top++
}

// UndoMove pops the top accumulator.
func (s *AccumulatorStack) UndoMove() {
	if s.top == 0 {
		panic("nnue: accumulator stack underflow")
	}
	s.top--
}

// Last returns the accumulator for the current position.
func (s *AccumulatorStack) Last() *Accumulator {
	return &s.stack[s.top]
}
