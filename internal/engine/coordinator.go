package engine

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pauxav06/ChePP/internal/board"
	"github.com/pauxav06/ChePP/internal/nnue"
)

// Coordinator owns the shared transposition table and time manager, spawns
// the Lazy SMP workers, and picks the final move by majority vote.
type Coordinator struct {
	tt  *TranspositionTable
	tm  *TimeManager
	net *nnue.Network

	threads []*SearchThread

	log zerolog.Logger

	// OnInfo, when set, receives thread 0's per-depth search info.
	OnInfo func(SearchInfo)
}

// NewCoordinator builds a coordinator around a hash table of the given size.
func NewCoordinator(ttSizeMB int, net *nnue.Network, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		tt:  NewTranspositionTable(ttSizeMB),
		tm:  NewTimeManager(),
		net: net,
		log: log,
	}
}

// TT exposes the shared table (the UCI layer clears it on ucinewgame).
func (c *Coordinator) TT() *TranspositionTable {
	return c.tt
}

// Set prepares numThreads workers for the root position with the given game
// moves already played from it.
func (c *Coordinator) Set(numThreads int, limits UCILimits, root *board.Position, played []board.Move) error {
	if numThreads < 1 {
		numThreads = 1
	}

	rootPly := len(played)
	c.tm.Init(limits, sideToMoveAfter(root, played), rootPly)

	c.threads = c.threads[:0]
	for i := 0; i < numThreads; i++ {
		t, err := NewSearchThread(i, c.tm, c.tt, c.net, root, played)
		if err != nil {
			return err
		}
		if i == 0 {
			t.onDepth = func(info SearchInfo) {
				if c.OnInfo != nil {
					c.OnInfo(info)
				}
			}
		}
		c.threads = append(c.threads, t)
	}
	return nil
}

func sideToMoveAfter(root *board.Position, played []board.Move) board.Color {
	stm := root.SideToMove
	if len(played)%2 == 1 {
		stm = stm.Other()
	}
	return stm
}

// Start runs every worker's iterative deepening to completion, prints the
// majority-voted best move, and returns it together with thread 0's result.
func (c *Coordinator) Start() (board.Move, SearchResult) {
	c.tt.NewGeneration()
	c.tm.Start()

	results := make([]SearchResult, len(c.threads))

	var g errgroup.Group
	for i, t := range c.threads {
		i, t := i, t
		g.Go(func() error {
			results[i] = t.IterativeDeepening()
			return nil
		})
	}
	// workers only stop through the time manager; no errors to propagate
	_ = g.Wait()

	best := c.voteBestMove()
	c.log.Debug().
		Int("threads", len(c.threads)).
		Uint64("nodes", c.totalNodes()).
		Str("bestmove", best.String()).
		Msg("search finished")

	if best != board.NoMove {
		fmt.Printf("bestmove %s\n", best)
	}

	return best, results[0]
}

// StopAll raises the shared stop flag.
func (c *Coordinator) StopAll() {
	c.tm.Stop()
}

// voteBestMove counts each worker's best move; ties break toward the worker
// that reported first.
func (c *Coordinator) voteBestMove() board.Move {
	votes := make(map[board.Move]int)
	var order []board.Move

	for _, t := range c.threads {
		m := t.BestMove()
		if m == board.NoMove {
			continue
		}
		if _, seen := votes[m]; !seen {
			order = append(order, m)
		}
		votes[m]++
	}

	best := board.NoMove
	bestVotes := 0
	for _, m := range order {
		if votes[m] > bestVotes {
			best = m
			bestVotes = votes[m]
		}
	}
	return best
}

func (c *Coordinator) totalNodes() uint64 {
	var n uint64
	for _, t := range c.threads {
		n += t.Nodes()
	}
	return n
}
