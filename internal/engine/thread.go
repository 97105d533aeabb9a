package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/xqplay/internal/board"
)

// SearchInfo is a per-depth progress report from the main worker.
type SearchInfo struct {
	Depth    int
	SelDepth int
	MultiPV  int
	Value    Value
	Bound    Bound
	Nodes    int64
	NPS      int64
	Hashfull int
	Time     time.Duration
	PV       []board.Move
}

// InfoFunc receives progress reports during a search.
type InfoFunc func(SearchInfo)

// Options holds the tunables shared by all workers.
type Options struct {
	Threads      int
	MultiPV      int
	MoveOverhead time.Duration
	NodesTime    int64
}

// Pool owns the workers, the shared transposition table and the search
// lifecycle. One search runs at a time.
type Pool struct {
	tt      *TranspositionTable
	eval    Evaluator
	opts    Options
	log     zerolog.Logger
	workers []*Worker

	stop      atomic.Bool
	ponder    atomic.Bool
	increase  atomic.Bool
	group     *errgroup.Group
	groupDone chan struct{}

	limits Limits
	tm     *TimeManager
	info   InfoFunc
}

// NewPool builds a pool over a shared table.
func NewPool(tt *TranspositionTable, eval Evaluator, opts Options, log zerolog.Logger) *Pool {
	p := &Pool{tt: tt, eval: eval, opts: opts, log: log, tm: NewTimeManager()}
	p.SetThreads(opts.Threads)
	return p
}

// SetThreads resizes the worker set. Histories reset with the workers.
func (p *Pool) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	p.opts.Threads = n
	p.workers = make([]*Worker, n)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
}

// SetMultiPV sets the number of principal variations reported.
func (p *Pool) SetMultiPV(n int) {
	if n < 1 {
		n = 1
	}
	p.opts.MultiPV = n
}

// SetMoveOverhead reserves time per move for I/O latency.
func (p *Pool) SetMoveOverhead(d time.Duration) { p.opts.MoveOverhead = d }

// SetNodesTime switches time accounting to searched nodes.
func (p *Pool) SetNodesTime(n int64) { p.opts.NodesTime = n }

// SetLogger swaps the pool's logger.
func (p *Pool) SetLogger(log zerolog.Logger) { p.log = log }

// Clear resets the table and every worker's histories.
func (p *Pool) Clear() {
	p.tt.Clear()
	for _, w := range p.workers {
		w.hist.clear()
	}
	p.tm = NewTimeManager()
}

// StartSearch launches the workers on pos. It returns immediately; use
// Wait to collect the result.
func (p *Pool) StartSearch(ctx context.Context, pos *board.Position, limits Limits, info InfoFunc) {
	p.stop.Store(false)
	p.ponder.Store(limits.Ponder)
	p.increase.Store(true)
	p.limits = limits
	p.info = info
	p.tt.NewSearch()
	p.tm.Init(&limits, pos.SideToMove, pos.GamePly, p.opts.MoveOverhead, p.opts.NodesTime)

	rootMoves := buildRootMoves(pos, limits.SearchMoves)
	for _, w := range p.workers {
		w.prepare(pos, rootMoves)
	}
	p.log.Debug().
		Str("fen", pos.ToFEN()).
		Int("threads", len(p.workers)).
		Int("root_moves", len(rootMoves)).
		Msg("search started")

	g, ctx := errgroup.WithContext(ctx)
	p.group = g
	p.groupDone = make(chan struct{})
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			w.iterate(ctx)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(p.groupDone)
	}()
}

// Stop asks all workers to unwind.
func (p *Pool) Stop() {
	p.stop.Store(true)
}

// PonderHit converts a ponder search into a normal timed search.
func (p *Pool) PonderHit() {
	p.ponder.Store(false)
}

// Wait blocks until the search finishes and returns the best and
// ponder moves after the thread vote.
func (p *Pool) Wait() (best, ponder board.Move) {
	<-p.groupDone
	w := p.bestWorker()
	p.tm.ConsumeNodes(p.Nodes())
	if len(w.rootMoves) == 0 {
		return board.NoMove, board.NoMove
	}
	rm := w.rootMoves[0]
	best = rm.Move
	if len(rm.PV) > 1 {
		ponder = rm.PV[1]
	}
	p.log.Debug().
		Stringer("bestmove", best).
		Int("depth", w.completedDepth).
		Int64("nodes", p.Nodes()).
		Msg("search finished")
	return best, ponder
}

// Nodes sums node counts over all workers.
func (p *Pool) Nodes() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.nodes.Load()
	}
	return n
}

// bestWorker runs the thread vote: deeper results for stronger scores
// gather votes, with proven mates short-circuiting.
func (p *Pool) bestWorker() *Worker {
	best := p.workers[0]
	if len(p.workers) == 1 {
		return best
	}

	minScore := best.rootMoves[0].Value
	for _, w := range p.workers[1:] {
		if len(w.rootMoves) > 0 && w.rootMoves[0].Value < minScore {
			minScore = w.rootMoves[0].Value
		}
	}

	votes := make(map[board.Move]int64)
	for _, w := range p.workers {
		if len(w.rootMoves) == 0 {
			continue
		}
		rm := w.rootMoves[0]
		votes[rm.Move] += int64(rm.Value-minScore+14) * int64(w.completedDepth)
	}

	for _, w := range p.workers[1:] {
		if len(w.rootMoves) == 0 {
			continue
		}
		bestVal := best.rootMoves[0].Value
		newVal := w.rootMoves[0].Value

		switch {
		case IsWin(bestVal):
			// Keep the shortest proven mate.
			if newVal > bestVal {
				best = w
			}
		case IsWin(newVal):
			best = w
		case IsLoss(newVal) && newVal > bestVal:
			// All threads see a loss: take the longest defense.
			best = w
		case !IsLoss(bestVal) &&
			votes[w.rootMoves[0].Move] > votes[best.rootMoves[0].Move]:
			best = w
		}
	}
	return best
}

// RootMove tracks one root move's running statistics across iterations.
type RootMove struct {
	Move             board.Move
	Value            Value
	PrevValue        Value
	AvgValue         Value
	MeanSquaredScore int64
	SelDepth         int
	Effort           int64
	PV               []board.Move
}

func buildRootMoves(pos *board.Position, searchMoves []board.Move) []RootMove {
	legal := pos.GenerateLegalMoves()
	rms := make([]RootMove, 0, legal.Len())
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if len(searchMoves) > 0 && !containsMove(searchMoves, m) {
			continue
		}
		rms = append(rms, RootMove{
			Move: m, Value: -ValueInfinite, PrevValue: -ValueInfinite,
			AvgValue: -ValueInfinite, PV: []board.Move{m},
		})
	}
	return rms
}

func containsMove(moves []board.Move, m board.Move) bool {
	for _, x := range moves {
		if x == m {
			return true
		}
	}
	return false
}

// stackEntry is the per-ply search state.
type stackEntry struct {
	pv            []board.Move
	contHist      *PieceToHistory
	ply           int
	currentMove   board.Move
	excludedMove  board.Move
	movedPiece    board.Piece
	capturedPiece board.PieceType
	staticEval    Value
	statScore     int
	moveCount     int
	inCheck       bool
	wasCapture    bool
	ttPv          bool
	ttHit         bool
	cutoffCnt     int
}

// stackOffset leaves sentinel entries below ply zero so continuation
// lookups two and four plies back never underflow.
const stackOffset = 7

// Worker is a single search thread. All its mutable state is private
// except the shared transposition table.
type Worker struct {
	id   int
	pool *Pool

	rootPos   *board.Position
	rootMoves []RootMove
	hist      histories
	stack     [MaxPly + stackOffset + 3]stackEntry

	nodes    atomic.Int64
	rootDepth, completedDepth,
	selDepth, nmpMinPly int
	pvIdx     int
	rootDelta Value
	optimism  [2]Value
	callsCnt  int

	bestMoveChanges    float64
	prevTimeReduction  float64
	lastBestMove       board.Move
	lastBestMoveDepth  int
	searchAgainCounter int
}

func newWorker(id int, pool *Pool) *Worker {
	w := &Worker{id: id, pool: pool}
	w.hist.clear()
	w.prevTimeReduction = 1.0
	return w
}

func (w *Worker) prepare(pos *board.Position, rootMoves []RootMove) {
	w.rootPos = pos.Copy()
	w.rootMoves = make([]RootMove, len(rootMoves))
	copy(w.rootMoves, rootMoves)
	for i := range w.rootMoves {
		w.rootMoves[i].PV = []board.Move{w.rootMoves[i].Move}
	}
	w.nodes.Store(0)
	w.completedDepth = 0
	w.rootDepth = 0
	w.nmpMinPly = 0
	w.bestMoveChanges = 0
	w.lastBestMove = board.NoMove
	w.lastBestMoveDepth = 0
	w.callsCnt = 0
}

func (w *Worker) isMain() bool { return w.id == 0 }

// checkTime polls the clock on the main worker at most every 512 nodes.
func (w *Worker) checkTime() {
	w.callsCnt--
	if w.callsCnt > 0 {
		return
	}
	w.callsCnt = int(min(512, w.nodes.Load()/1024))
	if w.callsCnt < 1 {
		w.callsCnt = 1
	}
	if !w.isMain() {
		return
	}

	p := w.pool
	if p.ponder.Load() {
		return
	}
	limits := &p.limits
	nodes := p.Nodes()
	switch {
	case limits.Nodes > 0 && nodes >= limits.Nodes:
		p.stop.Store(true)
	case limits.MoveTime > 0 && p.tm.Elapsed() >= limits.MoveTime:
		p.stop.Store(true)
	case limits.UseTimeManagement(w.rootPos.SideToMove) &&
		w.completedDepth > 0 &&
		p.tm.Elapsed() >= p.tm.Maximum():
		p.stop.Store(true)
	}
}
