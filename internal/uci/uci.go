// Package uci implements the UCI protocol loop that fronts the search
// coordinator.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pauxav06/ChePP/internal/board"
	"github.com/pauxav06/ChePP/internal/engine"
	"github.com/pauxav06/ChePP/internal/nnue"
	"github.com/pauxav06/ChePP/internal/storage"
)

// UCI drives the coordinator from stdin commands.
type UCI struct {
	coordinator *engine.Coordinator
	net         *nnue.Network
	log         zerolog.Logger

	// position state from the last "position" command
	root   *board.Position
	played []board.Move
	cur    *board.Position

	threads int
	hashMB  int

	store *storage.Storage // optional

	// OnInfo is forwarded to the coordinator for each search.
	OnInfo func(engine.SearchInfo)

	searching  chan struct{} // closed when the current search finishes
	searchBusy bool
}

// New creates a protocol handler around a network and a hash size.
func New(net *nnue.Network, threads, hashMB int, log zerolog.Logger) *UCI {
	u := &UCI{
		net:     net,
		log:     log,
		threads: threads,
		hashMB:  hashMB,
		root:    board.NewPosition(),
		cur:     board.NewPosition(),
	}
	u.coordinator = engine.NewCoordinator(hashMB, net, log)
	return u
}

// AttachStorage enables persistent analysis records.
func (u *UCI) AttachStorage(s *storage.Storage) {
	u.store = s
}

// Run processes commands until EOF or "quit".
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleStop()
			return
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.cur.String())
		}
	}
}

func (u *UCI) handleUCI() {
	fmt.Println("id name ChePP")
	fmt.Println("id author the ChePP developers")
	fmt.Println()
	fmt.Println("option name Hash type spin default 64 min 1 max 4096")
	fmt.Println("option name Threads type spin default 1 min 1 max 64")
	fmt.Println("option name EvalFile type string default <empty>")
	fmt.Println("uciok")
}

func (u *UCI) handleNewGame() {
	u.waitSearch()
	u.coordinator.TT().Clear()
	u.root = board.NewPosition()
	u.played = nil
	u.cur = board.NewPosition()
}

// handlePosition parses "position [startpos|fen <fen>] [moves ...]".
func (u *UCI) handlePosition(args []string) {
	u.waitSearch()
	if len(args) == 0 {
		return
	}

	var moveStart int
	switch args[0] {
	case "startpos":
		u.root = board.NewPosition()
		moveStart = 1
	case "fen":
		fenEnd := len(args)
		for i, arg := range args {
			if arg == "moves" {
				fenEnd = i
				break
			}
		}
		pos, err := board.ParseFEN(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string invalid fen: %v\n", err)
			return
		}
		u.root = pos
		moveStart = fenEnd
	default:
		return
	}

	u.played = nil
	cur := u.root.Copy()

	if moveStart < len(args) && args[moveStart] == "moves" {
		for _, s := range args[moveStart+1:] {
			m, err := board.ParseMove(s, cur)
			if err != nil {
				fmt.Fprintf(os.Stderr, "info string invalid move %s: %v\n", s, err)
				return
			}
			if undo := cur.MakeMove(m); !undo.Valid {
				fmt.Fprintf(os.Stderr, "info string illegal move %s\n", s)
				return
			}
			u.played = append(u.played, m)
		}
	}

	u.cur = cur
}

// handleGo parses the limits and launches the search.
func (u *UCI) handleGo(args []string) {
	u.waitSearch()

	var limits engine.UCILimits
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			limits.Depth = nextInt(args, &i)
		case "movetime":
			limits.MoveTime = time.Duration(nextInt(args, &i)) * time.Millisecond
		case "wtime":
			limits.Time[board.White] = time.Duration(nextInt(args, &i)) * time.Millisecond
		case "btime":
			limits.Time[board.Black] = time.Duration(nextInt(args, &i)) * time.Millisecond
		case "winc":
			limits.Inc[board.White] = time.Duration(nextInt(args, &i)) * time.Millisecond
		case "binc":
			limits.Inc[board.Black] = time.Duration(nextInt(args, &i)) * time.Millisecond
		case "movestogo":
			limits.MovesToGo = nextInt(args, &i)
		case "infinite":
			limits.Infinite = true
		}
	}

	if u.store != nil {
		if rec, ok, err := u.store.LoadAnalysis(u.cur.Hash); err == nil && ok {
			fmt.Fprintf(os.Stderr, "info string previous analysis: %s depth %d score %d\n",
				rec.BestMove, rec.Depth, rec.Score)
		}
	}

	u.coordinator.OnInfo = u.OnInfo
	if err := u.coordinator.Set(u.threads, limits, u.root, u.played); err != nil {
		fmt.Fprintf(os.Stderr, "info string %v\n", err)
		return
	}

	done := make(chan struct{})
	u.searching = done
	u.searchBusy = true

	rootHash := u.cur.Hash
	go func() {
		defer close(done)
		best, result := u.coordinator.Start()
		u.recordAnalysis(rootHash, best, result)
	}()
}

// recordAnalysis persists the finished search when storage is attached.
func (u *UCI) recordAnalysis(hash uint64, best board.Move, result engine.SearchResult) {
	if u.store == nil || best == board.NoMove {
		return
	}
	rec := &storage.AnalysisRecord{
		BestMove: best.String(),
		Score:    result.Score,
		Depth:    result.Depth,
		Nodes:    result.Nodes,
	}
	if err := u.store.SaveAnalysis(hash, rec); err != nil {
		u.log.Warn().Err(err).Msg("saving analysis record")
	}
}

func (u *UCI) handleStop() {
	if u.searchBusy {
		u.coordinator.StopAll()
		u.waitSearch()
	}
}

// waitSearch blocks until the running search, if any, has joined.
func (u *UCI) waitSearch() {
	if u.searchBusy {
		<-u.searching
		u.searchBusy = false
	}
}

func (u *UCI) handleSetOption(args []string) {
	u.waitSearch()

	// setoption name <id> [value <x>]
	name, value := "", ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "name":
			j := i + 1
			for ; j < len(args) && args[j] != "value"; j++ {
			}
			name = strings.Join(args[i+1:j], " ")
			i = j - 1
		case "value":
			value = strings.Join(args[i+1:], " ")
			i = len(args)
		}
	}

	switch strings.ToLower(name) {
	case "threads":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 {
			u.threads = n
		}
	case "hash":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 {
			u.hashMB = n
			u.coordinator = engine.NewCoordinator(n, u.net, u.log)
		}
	case "evalfile":
		net, err := nnue.LoadNetwork(value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string %v\n", err)
			return
		}
		u.net = net
		u.coordinator = engine.NewCoordinator(u.hashMB, net, u.log)
	}
}

func nextInt(args []string, i *int) int {
	if *i+1 >= len(args) {
		return 0
	}
	*i++
	n, err := strconv.Atoi(args[*i])
	if err != nil {
		return 0
	}
	return n
}
