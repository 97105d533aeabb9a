package engine

import (
	"testing"
	"time"

	"github.com/hailam/xqplay/internal/board"
)

func TestTimeManagerNoClock(t *testing.T) {
	tm := NewTimeManager()
	limits := &Limits{Start: time.Now(), Depth: 10}
	tm.Init(limits, board.White, 0, 10*time.Millisecond, 0)

	if tm.Optimum() != 0 || tm.Maximum() != 0 {
		t.Errorf("budgets without a clock: opt=%v max=%v", tm.Optimum(), tm.Maximum())
	}
}

func TestTimeManagerBudgetsOrdered(t *testing.T) {
	tm := NewTimeManager()
	limits := &Limits{Start: time.Now()}
	limits.Time[board.White] = 60 * time.Second
	limits.Inc[board.White] = time.Second
	tm.Init(limits, board.White, 20, 10*time.Millisecond, 0)

	opt, max := tm.Optimum(), tm.Maximum()
	if opt <= 0 {
		t.Fatalf("optimum = %v", opt)
	}
	if max < opt {
		t.Errorf("maximum %v below optimum %v", max, opt)
	}
	if max >= 60*time.Second {
		t.Errorf("maximum %v exceeds remaining time", max)
	}
}

func TestTimeManagerMovesToGo(t *testing.T) {
	tm := NewTimeManager()
	limits := &Limits{Start: time.Now(), MovesToGo: 40}
	limits.Time[board.Black] = 5 * time.Minute
	tm.Init(limits, board.Black, 30, 10*time.Millisecond, 0)

	if tm.Optimum() <= 0 {
		t.Fatalf("optimum = %v", tm.Optimum())
	}
	if tm.Maximum() >= 5*time.Minute {
		t.Errorf("maximum %v exceeds remaining time", tm.Maximum())
	}
}

func TestTimeManagerPonderBoost(t *testing.T) {
	mk := func(ponder bool) time.Duration {
		tm := NewTimeManager()
		limits := &Limits{Start: time.Now(), Ponder: ponder}
		limits.Time[board.White] = 60 * time.Second
		tm.Init(limits, board.White, 20, 10*time.Millisecond, 0)
		return tm.Optimum()
	}

	if plain, pondering := mk(false), mk(true); pondering <= plain {
		t.Errorf("ponder optimum %v not above plain %v", pondering, plain)
	}
}

func TestTimeManagerShortClockStaysPositive(t *testing.T) {
	tm := NewTimeManager()
	limits := &Limits{Start: time.Now()}
	limits.Time[board.White] = 200 * time.Millisecond
	limits.Inc[board.White] = 100 * time.Millisecond
	tm.Init(limits, board.White, 80, 10*time.Millisecond, 0)

	if tm.Optimum() <= 0 {
		t.Errorf("optimum %v on a short clock", tm.Optimum())
	}
	if tm.Maximum() < tm.Optimum() {
		t.Errorf("maximum %v below optimum %v", tm.Maximum(), tm.Optimum())
	}
}

func TestElapsedNodesModes(t *testing.T) {
	tm := NewTimeManager()
	limits := &Limits{Start: time.Now()}
	limits.Time[board.White] = time.Minute
	tm.Init(limits, board.White, 0, 0, 1000)

	if got := tm.ElapsedNodes(12345); got != 12345 {
		t.Errorf("nodestime ElapsedNodes = %d", got)
	}

	tm = NewTimeManager()
	tm.Init(limits, board.White, 0, 0, 0)
	if got := tm.ElapsedNodes(12345); got == 12345 {
		t.Error("wall-clock mode returned the node count")
	}
}

func TestConsumeNodesDrainsPool(t *testing.T) {
	tm := NewTimeManager()
	limits := &Limits{Start: time.Now()}
	limits.Time[board.White] = time.Minute
	tm.Init(limits, board.White, 0, 0, 1000)

	before := tm.availableNodes
	if before <= 0 {
		t.Fatalf("virtual pool not armed: %d", before)
	}
	tm.ConsumeNodes(before / 2)
	if tm.availableNodes != before-before/2 {
		t.Errorf("pool = %d, want %d", tm.availableNodes, before-before/2)
	}
	tm.ConsumeNodes(before)
	if tm.availableNodes != 0 {
		t.Errorf("pool went negative: %d", tm.availableNodes)
	}
}
