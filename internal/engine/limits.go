package engine

import (
	"time"

	"github.com/hailam/xqplay/internal/board"
)

// Limits describes everything the "go" command may constrain a search
// by. Zero values mean the constraint is absent.
type Limits struct {
	Time        [2]time.Duration
	Inc         [2]time.Duration
	MovesToGo   int
	Depth       int
	Nodes       int64
	Mate        int
	MoveTime    time.Duration
	Infinite    bool
	Ponder      bool
	SearchMoves []board.Move

	Start time.Time
}

// UseTimeManagement reports whether the clock fields are in play.
func (l *Limits) UseTimeManagement(us board.Color) bool {
	return l.Time[us] > 0
}
