package engine

import "github.com/pauxav06/ChePP/internal/board"

// Move ordering tiers. Scores are additive on top of the tier bases, so a
// killer that is also the previous best still sorts first.
const (
	prevBestScore = 500_000_000
	killer1Score  = 80_000_000
	killer2Score  = 79_000_000

	promoScoreScale = 100_000
	seeScoreScale   = 100_000
)

// scoreMoves annotates each move with its ordering score: previous best,
// killers, promotions by promoted-piece value, captures by SEE plus capture
// history, quiets by continuation plus butterfly history.
func (t *SearchThread) scoreMoves(node *Node, moves *board.MoveList, prevBest board.Move) []int {
	pos := node.Pos
	scores := make([]int, moves.Len())

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		score := 0

		if m == prevBest {
			score += prevBestScore
		}
		if m == node.Killer1 {
			score += killer1Score
		}
		if m == node.Killer2 {
			score += killer2Score
		}

		isCapture := m.IsCapture(pos)
		if m.IsPromotion() {
			score += board.PieceValue[m.Promotion()] * promoScoreScale
		}
		if isCapture {
			score += pos.SEE(m)*seeScoreScale + t.history.CaptureHistScore(pos, m)
		}
		if !isCapture && !m.IsPromotion() {
			score += t.history.ContHistBonus(node, m)
			score += t.history.HistScore(pos, m)
		}

		scores[i] = score
	}

	return scores
}

// SortMoves sorts moves descending by score. Selection sort is fine for the
// list sizes involved.
func SortMoves(moves *board.MoveList, scores []int) {
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			moves.Swap(i, best)
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}
