package engine

import (
	"sync/atomic"
	"time"

	"github.com/pauxav06/ChePP/internal/board"
)

// UCILimits carries the time-control parameters of a "go" command.
type UCILimits struct {
	Time      [2]time.Duration // remaining time per colour
	Inc       [2]time.Duration // increment per move per colour
	MovesToGo int              // moves to the next time control, 0 = sudden death
	MoveTime  time.Duration    // fixed time for this move
	Depth     int              // maximum depth, 0 = no limit
	Infinite  bool             // search until stopped
}

// TimeManager enforces the search budget. Thread 0 calls UpdateTime
// periodically; every other thread only reads the atomic stop flag, so the
// search has no synchronisation points beyond this.
type TimeManager struct {
	optimum time.Duration
	maximum time.Duration
	start   time.Time

	depthLimit int
	infinite   bool

	stop atomic.Bool
}

// NewTimeManager returns a manager with no budget set.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init derives the budget from the limits. ply is the game ply of the root.
func (tm *TimeManager) Init(limits UCILimits, us board.Color, ply int) {
	tm.depthLimit = limits.Depth
	tm.infinite = false

	if limits.MoveTime > 0 {
		tm.optimum = limits.MoveTime
		tm.maximum = limits.MoveTime
		return
	}

	if limits.Infinite || limits.Time[us] == 0 {
		tm.infinite = true
		return
	}

	timeLeft := limits.Time[us]
	inc := limits.Inc[us]

	mtg := limits.MovesToGo
	if mtg == 0 {
		mtg = clamp(50-ply/4, 10, 50)
	}

	base := timeLeft/time.Duration(mtg) + inc*9/10
	tm.optimum = base

	tm.maximum = min(base*5, timeLeft*8/10)
	if tm.maximum > timeLeft*95/100 {
		tm.maximum = timeLeft * 95 / 100
	}

	if tm.optimum < 10*time.Millisecond {
		tm.optimum = 10 * time.Millisecond
	}
	if tm.maximum < 50*time.Millisecond {
		tm.maximum = 50 * time.Millisecond
	}
}

// Start marks the beginning of the search and clears the stop flag.
func (tm *TimeManager) Start() {
	tm.start = time.Now()
	tm.stop.Store(false)
}

// Elapsed is the time since Start.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.start)
}

// UpdateDepth is called before each iteration; it stops the search once the
// depth limit is exhausted.
func (tm *TimeManager) UpdateDepth(depth int) {
	if tm.depthLimit > 0 && depth > tm.depthLimit {
		tm.stop.Store(true)
	}
	if depth > MaxPly {
		tm.stop.Store(true)
	}
}

// UpdateTime raises the stop flag once the budget is spent. Only thread 0
// calls this; the check itself is cheap enough for a 4096-node cadence.
func (tm *TimeManager) UpdateTime() {
	if tm.infinite {
		return
	}
	if tm.maximum > 0 && tm.Elapsed() >= tm.maximum {
		tm.stop.Store(true)
	}
}

// ShouldStop reads the stop flag.
func (tm *TimeManager) ShouldStop() bool {
	return tm.stop.Load()
}

// Stop raises the stop flag; the coordinator's stop_all path.
func (tm *TimeManager) Stop() {
	tm.stop.Store(true)
}
