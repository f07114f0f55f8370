package engine

import (
	"sync/atomic"

	"github.com/pauxav06/ChePP/internal/board"
)

// Bound classifies a stored score.
type Bound uint8

const (
	BoundNone Bound = iota
	BoundExact
	BoundLower // score failed high: a lower bound
	BoundUpper // score failed low: an upper bound
)

// Entry is a decoded transposition-table record.
type Entry struct {
	Move  board.Move
	Score int16
	Depth int16
	Bound Bound
	Gen   uint8
}

// slot stores an entry in two words. Writers are lock-free; a torn write is
// detected on probe because xorKey must recover the full hash from data.
type slot struct {
	xorKey atomic.Uint64 // hash ^ data
	data   atomic.Uint64
}

// pack lays out an entry as
// move(16) | score(16) | depth(16) | bound(8) | gen(8).
func pack(e Entry) uint64 {
	return uint64(uint16(e.Move)) |
		uint64(uint16(e.Score))<<16 |
		uint64(uint16(e.Depth))<<32 |
		uint64(e.Bound)<<48 |
		uint64(e.Gen)<<56
}

func unpack(d uint64) Entry {
	return Entry{
		Move:  board.Move(uint16(d)),
		Score: int16(uint16(d >> 16)),
		Depth: int16(uint16(d >> 32)),
		Bound: Bound(uint8(d >> 48)),
		Gen:   uint8(d >> 56),
	}
}

// TranspositionTable is the shared, generation-tagged search cache. Probes
// and stores are unsynchronised; the XOR key verification rejects any
// inconsistent (torn) slot as a miss.
type TranspositionTable struct {
	slots []slot
	mask  uint64
	gen   atomic.Uint32
}

// NewTranspositionTable sizes the table to the given number of megabytes,
// rounded down to a power-of-two slot count.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	const slotSize = 16
	n := uint64(sizeMB) * 1024 * 1024 / slotSize
	n = roundDownToPowerOf2(n)
	if n == 0 {
		n = 1
	}
	return &TranspositionTable{
		slots: make([]slot, n),
		mask:  n - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up the hash. A slot whose key does not verify, including any
// torn read, is a miss.
func (tt *TranspositionTable) Probe(hash uint64) (Entry, bool) {
	s := &tt.slots[hash&tt.mask]
	data := s.data.Load()
	if data == 0 {
		return Entry{}, false
	}
	if s.xorKey.Load()^data != hash {
		return Entry{}, false
	}
	return unpack(data), true
}

// Store writes an entry. Same-key and empty slots are replaced
// unconditionally; otherwise the newcomer wins when it is from the current
// generation and the incumbent is not, or when it searched at least as deep.
func (tt *TranspositionTable) Store(hash uint64, depth, score int, bound Bound, move board.Move) {
	s := &tt.slots[hash&tt.mask]
	gen := uint8(tt.gen.Load())

	oldData := s.data.Load()
	if oldData != 0 {
		old := unpack(oldData)
		if s.xorKey.Load()^oldData == hash {
			// same position: keep the known move if the new search has none
			if move == board.NoMove {
				move = old.Move
			}
		} else if old.Gen == gen && depth < int(old.Depth) {
			// a deeper current-generation incumbent survives
			return
		}
	}

	e := Entry{
		Move:  move,
		Score: int16(score),
		Depth: int16(depth),
		Bound: bound,
		Gen:   gen,
	}
	data := pack(e)
	s.data.Store(data)
	s.xorKey.Store(hash ^ data)
}

// NewGeneration bumps the replacement tag; called once per search.
func (tt *TranspositionTable) NewGeneration() {
	tt.gen.Add(1)
}

// Clear wipes the table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.slots {
		tt.slots[i].data.Store(0)
		tt.slots[i].xorKey.Store(0)
	}
	tt.gen.Store(0)
}

// Size returns the slot count.
func (tt *TranspositionTable) Size() uint64 {
	return uint64(len(tt.slots))
}

// HashFull samples the table and returns the permille of slots holding
// current-generation entries.
func (tt *TranspositionTable) HashFull() int {
	sample := 1000
	if uint64(sample) > tt.Size() {
		sample = int(tt.Size())
	}
	gen := uint8(tt.gen.Load())
	used := 0
	for i := 0; i < sample; i++ {
		d := tt.slots[i].data.Load()
		if d != 0 && unpack(d).Gen == gen {
			used++
		}
	}
	return used * 1000 / sample
}

// ScoreToTT converts a root-relative mate score to node-relative form for
// storage.
func ScoreToTT(score, ply int) int {
	if score >= MateInMaxPly {
		return score + ply
	}
	if score <= MatedInMaxPly {
		return score - ply
	}
	return score
}

// ScoreFromTT undoes ScoreToTT at the probing node's ply.
func ScoreFromTT(score, ply int) int {
	if score >= MateInMaxPly {
		return score - ply
	}
	if score <= MatedInMaxPly {
		return score + ply
	}
	return score
}
