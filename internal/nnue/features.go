package nnue

import "github.com/pauxav06/ChePP/internal/board"

// kingBucket compresses the 64 king squares into 32 buckets by mirroring
// the right half of the board onto the left.
var kingBucket = [64]int{
	0, 1, 2, 3, 3, 2, 1, 0,
	4, 5, 6, 7, 7, 6, 5, 4,
	8, 9, 10, 11, 11, 10, 9, 8,
	12, 13, 14, 15, 15, 14, 13, 12,
	16, 17, 18, 19, 19, 18, 17, 16,
	20, 21, 22, 23, 23, 22, 21, 20,
	24, 25, 26, 27, 27, 26, 25, 24,
	28, 29, 30, 31, 31, 30, 29, 28,
}

// FeatureIndex computes the feature-transformer input index for a piece on
// a square, seen from the given perspective:
//  1. rank-mirror both squares for the black perspective,
//  2. file-mirror the piece square when the king sits on files e-h,
//  3. piece index is type*2, +1 when the piece belongs to the opponent.
func FeatureIndex(view board.Color, ksq, sq board.Square, pc board.Piece) int {
	if view == board.Black {
		ksq ^= 56
		sq ^= 56
	}
	if ksq.File() > 3 {
		sq ^= 7
	}
	pieceIdx := int(pc.Type()) * 2
	if pc.Color() != view {
		pieceIdx++
	}
	return kingBucket[ksq] + int(sq)*NumKingBuckets + pieceIdx*NumKingBuckets*NumSquares
}

// NeedsRefresh reports whether the perspective's accumulator must be rebuilt
// from scratch: every feature index depends on the king square, so a king
// move invalidates the whole perspective.
func NeedsRefresh(cur, prev *board.Position, view board.Color) bool {
	return cur.KingSquare[view] != prev.KingSquare[view]
}

// activeFeatures appends the feature index of every piece on the board, from
// the given perspective, to dst.
func activeFeatures(pos *board.Position, view board.Color, dst []int) []int {
	ksq := pos.KingSquare[view]
	occ := pos.AllOccupied
	for occ != 0 {
		sq := occ.PopLSB()
		dst = append(dst, FeatureIndex(view, ksq, sq, pos.PieceAt(sq)))
	}
	return dst
}

// changedFeatures computes the added and removed feature indices between two
// positions whose king (for this view) did not move. The per-colour occupancy
// XOR yields exactly the squares whose contents changed.
func changedFeatures(cur, prev *board.Position, view board.Color, add, rem []int) ([]int, []int) {
	ksq := cur.KingSquare[view]
	for c := board.White; c <= board.Black; c++ {
		diff := prev.Occupied[c] ^ cur.Occupied[c]
		for diff != 0 {
			sq := diff.PopLSB()
			if prev.Occupied[c].IsSet(sq) {
				rem = append(rem, FeatureIndex(view, ksq, sq, prev.PieceAt(sq)))
			} else {
				add = append(add, FeatureIndex(view, ksq, sq, cur.PieceAt(sq)))
			}
		}
	}
	return add, rem
}
