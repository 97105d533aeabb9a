package engine

import (
	"math"
	"time"

	"github.com/hailam/xqplay/internal/board"
)

// TimeManager converts the clock situation into an optimum and a
// maximum budget for the current move. With the nodestime option set it
// measures "time" in searched nodes instead of milliseconds, which
// makes results reproducible across machines.
type TimeManager struct {
	startTime   time.Time
	optimumTime time.Duration
	maximumTime time.Duration

	nodestime          int64
	availableNodes     int64
	originalTimeAdjust float64
}

const availableNodesUnset = -1

// NewTimeManager returns a manager with no budget; Init arms it.
func NewTimeManager() *TimeManager {
	return &TimeManager{availableNodes: availableNodesUnset, originalTimeAdjust: -1}
}

// Elapsed returns wall time since Init.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// ElapsedNodes returns the node count when nodestime is active, else
// the elapsed milliseconds.
func (tm *TimeManager) ElapsedNodes(nodes int64) int64 {
	if tm.nodestime > 0 {
		return nodes
	}
	return tm.Elapsed().Milliseconds()
}

func (tm *TimeManager) Optimum() time.Duration { return tm.optimumTime }
func (tm *TimeManager) Maximum() time.Duration { return tm.maximumTime }

// Init computes the move budget from the limits. ply is the game ply of
// the root position.
func (tm *TimeManager) Init(limits *Limits, us board.Color, ply int, moveOverhead time.Duration, nodestime int64) {
	tm.startTime = limits.Start
	tm.nodestime = nodestime
	if !limits.UseTimeManagement(us) {
		tm.optimumTime = 0
		tm.maximumTime = 0
		return
	}

	timeMs := float64(limits.Time[us].Milliseconds())
	incMs := float64(limits.Inc[us].Milliseconds())
	overheadMs := float64(moveOverhead.Milliseconds())

	// With nodestime active, the clock is converted once into a pool of
	// virtual nodes, and per-move budgets come out of that pool.
	scaleFactor := 1.0
	if nodestime > 0 {
		if tm.availableNodes == availableNodesUnset {
			tm.availableNodes = nodestime * int64(timeMs)
		}
		timeMs = float64(tm.availableNodes)
		scaleFactor = float64(nodestime)
		incMs *= scaleFactor
		overheadMs *= scaleFactor
	}
	scaledTime := timeMs / scaleFactor

	mtg := 60.0
	if limits.MovesToGo > 0 {
		mtg = float64(min(limits.MovesToGo, 60))
	}
	// On very low time and proportionally large increments, stretch the
	// horizon so the increment carries the game.
	if scaledTime < 1000 && incMs > 0 && mtg > 0.05*scaledTime/(incMs/scaleFactor) {
		mtg = 0.05 * scaledTime
		if mtg < 1 {
			mtg = 1
		}
	}

	timeLeft := timeMs + incMs*(mtg-1) - overheadMs*(2+mtg)
	if timeLeft < 1 {
		timeLeft = 1
	}

	var optScale, maxScale float64
	if limits.MovesToGo == 0 {
		// Sudden death plus increment.
		if tm.originalTimeAdjust < 0 {
			tm.originalTimeAdjust = 0.3285*math.Log10(timeLeft) - 0.4830
		}
		logTimeInSec := math.Log10(scaledTime / 1000.0)
		optConstant := math.Min(0.00344+0.000200*logTimeInSec, 0.00450)
		maxConstant := math.Max(3.90+3.10*logTimeInSec, 2.50)

		optScale = math.Min(0.0155+math.Pow(float64(ply)+3.0, 0.45)*optConstant,
			0.2*timeMs/timeLeft) * tm.originalTimeAdjust
		maxScale = math.Min(6.5, maxConstant+float64(ply)/13.6)
	} else {
		optScale = math.Min((0.88+float64(ply)/116.4)/mtg, 0.88*timeMs/timeLeft)
		maxScale = math.Min(6.3, 1.5+0.11*mtg)
	}

	optimum := optScale * timeLeft
	maximum := math.Min(0.81*timeMs-overheadMs, maxScale*optimum) - 10

	if limits.Ponder {
		optimum += optimum / 4
	}
	if maximum < optimum {
		maximum = optimum
	}

	tm.optimumTime = time.Duration(optimum/scaleFactor) * time.Millisecond
	tm.maximumTime = time.Duration(maximum/scaleFactor) * time.Millisecond
}

// ConsumeNodes charges searched nodes against the virtual pool.
func (tm *TimeManager) ConsumeNodes(nodes int64) {
	if tm.nodestime > 0 && tm.availableNodes != availableNodesUnset {
		tm.availableNodes -= nodes
		if tm.availableNodes < 0 {
			tm.availableNodes = 0
		}
	}
}
