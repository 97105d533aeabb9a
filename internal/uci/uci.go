package uci

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hailam/xqplay/internal/board"
	"github.com/hailam/xqplay/internal/engine"
)

const (
	engineName   = "XQPlay"
	engineAuthor = "the XQPlay developers"

	defaultHashMB   = 16
	maxHashMB       = 65536
	maxThreads      = 1024
	defaultOverhead = 10 * time.Millisecond
)

// UCI implements the universal chess interface protocol over
// stdin/stdout, adapted to xiangqi coordinates (files a..i, ranks
// 0..9).
type UCI struct {
	tt       *engine.TranspositionTable
	eval     engine.Evaluator
	pool     *engine.Pool
	position *board.Position
	log      zerolog.Logger

	showWDL bool

	// Root position snapshot for the search in flight; sendInfo reads
	// it from the search goroutine.
	searchPos  *board.Position
	searching  bool
	searchDone chan struct{}

	logFile     *os.File
	profileFile *os.File
}

// New creates a protocol handler with a default-sized table and a
// single worker.
func New(log zerolog.Logger) *UCI {
	tt := engine.NewTranspositionTable(defaultHashMB)
	eval := engine.NewEvaluator()
	opts := engine.Options{
		Threads:      1,
		MultiPV:      1,
		MoveOverhead: defaultOverhead,
	}
	return &UCI{
		tt:       tt,
		eval:     eval,
		pool:     engine.NewPool(tt, eval, opts, log),
		position: board.NewPosition(),
		log:      log,
	}
}

// Run reads commands until EOF or "quit".
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)

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
		case "setoption":
			u.handleSetOption(args)
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "ponderhit":
			u.pool.PonderHit()
		case "quit":
			u.handleQuit()
		// Debug commands
		case "d":
			fmt.Println(u.position.String())
		case "eval":
			u.handleEval()
		case "flip":
			u.position = u.position.Flip()
		case "bench":
			u.handleBench(args)
		case "perft":
			u.handlePerft(args)
		case "compiler":
			fmt.Printf("Compiled with %s %s on %s/%s\n",
				runtime.Compiler, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		default:
			fmt.Printf("Unknown command: '%s'.\n", line)
		}
	}
}

func (u *UCI) handleUCI() {
	fmt.Printf("id name %s\n", engineName)
	fmt.Printf("id author %s\n", engineAuthor)
	fmt.Println()
	fmt.Println("option name Debug Log File type string default <empty>")
	fmt.Printf("option name Threads type spin default 1 min 1 max %d\n", maxThreads)
	fmt.Printf("option name Hash type spin default %d min 1 max %d\n", defaultHashMB, maxHashMB)
	fmt.Println("option name Clear Hash type button")
	fmt.Println("option name Ponder type check default false")
	fmt.Println("option name MultiPV type spin default 1 min 1 max 128")
	fmt.Println("option name Move Overhead type spin default 10 min 0 max 5000")
	fmt.Println("option name nodestime type spin default 0 min 0 max 10000")
	fmt.Println("option name UCI_ShowWDL type check default false")
	fmt.Println("uciok")
}

func (u *UCI) handleNewGame() {
	u.pool.Clear()
	u.position = board.NewPosition()
}

// handleSetOption processes "setoption name X value Y". Option names
// may contain spaces and are matched case-insensitively.
func (u *UCI) handleSetOption(args []string) {
	var name, value string
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	switch strings.ToLower(name) {
	case "debug log file":
		u.setLogFile(value)
	case "threads":
		n, err := strconv.Atoi(value)
		if err == nil && n >= 1 && n <= maxThreads {
			u.pool.SetThreads(n)
		}
	case "hash":
		mb, err := strconv.Atoi(value)
		if err == nil && mb >= 1 && mb <= maxHashMB {
			u.tt.Resize(mb)
		}
	case "clear hash":
		u.pool.Clear()
	case "ponder":
		// Pondering is armed per search by "go ponder"; nothing to
		// store here.
	case "multipv":
		n, err := strconv.Atoi(value)
		if err == nil && n >= 1 {
			u.pool.SetMultiPV(n)
		}
	case "move overhead":
		ms, err := strconv.Atoi(value)
		if err == nil && ms >= 0 {
			u.pool.SetMoveOverhead(time.Duration(ms) * time.Millisecond)
		}
	case "nodestime":
		n, err := strconv.ParseInt(value, 10, 64)
		if err == nil && n >= 0 {
			u.pool.SetNodesTime(n)
		}
	case "uci_showwdl":
		u.showWDL = strings.EqualFold(value, "true")
	default:
		fmt.Printf("No such option: %s\n", name)
	}
}

// setLogFile redirects the engine log to a file. Each file gets a fresh
// session id so interleaved runs can be told apart.
func (u *UCI) setLogFile(path string) {
	if u.logFile != nil {
		u.logFile.Close()
		u.logFile = nil
	}
	if path == "" || path == "<empty>" {
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "info string Failed to open log file: %v\n", err)
		return
	}
	u.logFile = f
	u.log = zerolog.New(f).With().
		Timestamp().
		Str("session", uuid.NewString()).
		Logger().Level(zerolog.DebugLevel)
	u.pool.SetLogger(u.log)
	u.log.Info().Str("engine", engineName).Msg("debug log opened")
}

// handlePosition parses "position [startpos|fen FEN] [moves ...]".
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var moveStart int

	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
		moveStart = 1
	case "fen":
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				break
			}
		}
		pos, err := board.ParseFEN(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string Invalid FEN: %v\n", err)
			return
		}
		u.position = pos
		moveStart = fenEnd
	default:
		return
	}

	if moveStart >= len(args) || args[moveStart] != "moves" {
		return
	}

	for _, moveStr := range args[moveStart+1:] {
		move, err := board.ParseMove(moveStr, u.position)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string Invalid move: %s\n", moveStr)
			return
		}
		u.position.MakeMove(move)
		u.position.UpdateCheckers()
	}
}

// parseLimits converts "go" arguments into search limits.
func (u *UCI) parseLimits(args []string) engine.Limits {
	limits := engine.Limits{Start: time.Now()}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "wtime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				limits.Time[board.White] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "btime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				limits.Time[board.Black] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "winc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				limits.Inc[board.White] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "binc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				limits.Inc[board.Black] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				limits.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "depth":
			if i+1 < len(args) {
				limits.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				limits.Nodes, _ = strconv.ParseInt(args[i+1], 10, 64)
				i++
			}
		case "mate":
			if i+1 < len(args) {
				limits.Mate, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				limits.MoveTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "infinite":
			limits.Infinite = true
		case "ponder":
			limits.Ponder = true
		case "searchmoves":
			for i++; i < len(args); i++ {
				m, err := board.ParseMove(args[i], u.position)
				if err != nil {
					break
				}
				limits.SearchMoves = append(limits.SearchMoves, m)
			}
		}
	}

	return limits
}

// handleGo launches a search and emits bestmove when it finishes.
func (u *UCI) handleGo(args []string) {
	for i, arg := range args {
		if arg == "perft" {
			u.handlePerft(args[i+1:])
			return
		}
	}

	limits := u.parseLimits(args)
	pos := u.position.Copy()
	u.searchPos = pos
	u.searching = true
	u.searchDone = make(chan struct{})

	u.pool.StartSearch(context.Background(), pos, limits, u.sendInfo)

	go func() {
		defer close(u.searchDone)

		best, ponder := u.pool.Wait()
		u.searching = false

		if best != board.NoMove {
			legal := pos.GenerateLegalMoves()
			if legal.Contains(best) {
				if ponder != board.NoMove {
					fmt.Printf("bestmove %s ponder %s\n", best, ponder)
				} else {
					fmt.Printf("bestmove %s\n", best)
				}
				return
			}
			u.log.Error().Stringer("move", best).Msg("search returned illegal move")
		}

		// Fall back to any legal move; (none) only when mated or
		// stalemated.
		legal := pos.GenerateLegalMoves()
		if legal.Len() > 0 {
			fmt.Printf("bestmove %s\n", legal.Get(0))
		} else {
			fmt.Println("bestmove (none)")
		}
	}()
}

// sendInfo outputs one "info" line for a depth report.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var parts []string

	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	parts = append(parts, fmt.Sprintf("seldepth %d", info.SelDepth))
	parts = append(parts, fmt.Sprintf("multipv %d", info.MultiPV))

	v := info.Value
	switch {
	case engine.IsWin(v):
		parts = append(parts, fmt.Sprintf("score mate %d", (engine.ValueMate-v+1)/2))
	case engine.IsLoss(v):
		parts = append(parts, fmt.Sprintf("score mate %d", -(engine.ValueMate+v)/2))
	default:
		parts = append(parts, fmt.Sprintf("score cp %d", normalizeToCp(v, u.searchPos)))
	}
	switch info.Bound {
	case engine.BoundLower:
		parts = append(parts, "lowerbound")
	case engine.BoundUpper:
		parts = append(parts, "upperbound")
	}

	if u.showWDL && !engine.IsDecisive(v) {
		win, draw, loss := winRate(v, u.searchPos)
		parts = append(parts, fmt.Sprintf("wdl %d %d %d", win, draw, loss))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("nps %d", info.NPS))
	parts = append(parts, fmt.Sprintf("hashfull %d", info.Hashfull))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	if len(info.PV) > 0 {
		pv := make([]string, len(info.PV))
		for i, m := range info.PV {
			pv[i] = m.String()
		}
		parts = append(parts, "pv "+strings.Join(pv, " "))
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// handleStop halts the search and waits for bestmove to go out.
func (u *UCI) handleStop() {
	if u.searching {
		u.pool.Stop()
		<-u.searchDone
	}
}

func (u *UCI) handleQuit() {
	u.handleStop()
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
	}
	if u.logFile != nil {
		u.log.Info().Msg("debug log closed")
		u.logFile.Close()
	}
	os.Exit(0)
}

// handleEval prints the static evaluation of the current position.
func (u *UCI) handleEval() {
	fmt.Println(u.position.String())
	material, positional := u.eval.Evaluate(u.position)
	v := material + positional
	fmt.Printf("Material: %d\n", material)
	fmt.Printf("Positional: %d\n", positional)
	fmt.Printf("Static evaluation: %d (side to move)\n", v)
	fmt.Printf("Normalized: %+.2f pawns\n", float64(normalizeToCp(v, u.position))/100)
}

// handlePerft counts leaf nodes to the given depth.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil && d > 0 {
			depth = d
		}
	}

	start := time.Now()
	nodes := perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}

func perft(p *board.Position, depth int) int64 {
	if depth == 0 {
		return 1
	}
	moves := p.GenerateLegalMoves()
	if depth == 1 {
		return int64(moves.Len())
	}
	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := p.MakeMove(m)
		nodes += perft(p, depth-1)
		p.UnmakeMove(m, undo)
	}
	return nodes
}
