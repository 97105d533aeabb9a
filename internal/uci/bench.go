package uci

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hailam/xqplay/internal/board"
	"github.com/hailam/xqplay/internal/engine"
)

// benchGames are opening lines played out from the starting position.
// Keeping them as move lists instead of FEN strings guarantees every
// bench position is reachable and legal.
var benchGames = [][]string{
	nil,
	{"h2e2", "h9g7"},
	{"h2e2", "b9c7", "h0g2", "h9g7"},
	{"b2e2", "h9g7", "b0c2", "i9h9"},
	{"h0g2", "h9g7", "i0h0", "i9h9"},
	{"h2e2", "h9g7", "h0g2", "i9h9", "i0h0", "b9c7"},
	{"b2e2", "b9c7", "b0c2", "a9b9", "a0b0", "h9g7"},
	{"h0g2", "b9c7", "b0c2", "h9g7", "i0h0", "a9b9"},
}

const defaultBenchDepth = 13

// handleBench searches each bench position to a fixed depth and prints
// aggregate node statistics. Token form: bench [ttSize] [threads] [depth].
func (u *UCI) handleBench(args []string) {
	ttSize, threads, depth := 16, 1, defaultBenchDepth
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			ttSize = n
		}
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			threads = n
		}
	}
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil && n > 0 {
			depth = n
		}
	}
	u.tt.Resize(ttSize)
	u.pool.SetThreads(threads)

	var totalNodes int64
	start := time.Now()

	for i, game := range benchGames {
		pos := board.NewPosition()
		for _, moveStr := range game {
			m, err := board.ParseMove(moveStr, pos)
			if err != nil {
				u.log.Error().Str("move", moveStr).Err(err).Msg("bad bench move")
				break
			}
			pos.MakeMove(m)
			pos.UpdateCheckers()
		}

		fmt.Printf("\nPosition: %d/%d (%s)\n", i+1, len(benchGames), pos.ToFEN())

		u.searchPos = pos
		u.pool.Clear()
		limits := engine.Limits{Depth: depth, Start: time.Now()}
		u.pool.StartSearch(context.Background(), pos, limits, u.sendInfo)
		u.pool.Wait()
		totalNodes += u.pool.Nodes()
	}

	elapsed := time.Since(start)
	nps := int64(0)
	if ms := elapsed.Milliseconds(); ms > 0 {
		nps = totalNodes * 1000 / ms
	}

	fmt.Println("\n===========================")
	fmt.Printf("Total time (ms) : %d\n", elapsed.Milliseconds())
	fmt.Printf("Nodes searched  : %d\n", totalNodes)
	fmt.Printf("Nodes/second    : %d\n", nps)
}
