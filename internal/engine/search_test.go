package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/xqplay/internal/board"
)

func newTestPool(threads int) *Pool {
	tt := NewTranspositionTable(16)
	opts := Options{Threads: threads, MultiPV: 1, MoveOverhead: 10 * time.Millisecond}
	return NewPool(tt, NewEvaluator(), opts, zerolog.Nop())
}

func runSearch(t *testing.T, p *Pool, fen string, limits Limits) (board.Move, []SearchInfo) {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	limits.Start = time.Now()

	var infos []SearchInfo
	p.StartSearch(context.Background(), pos, limits, func(info SearchInfo) {
		infos = append(infos, info)
	})
	best, _ := p.Wait()
	return best, infos
}

func TestSearchReturnsLegalMove(t *testing.T) {
	p := newTestPool(1)
	best, infos := runSearch(t, p, board.StartFEN, Limits{Depth: 4})

	pos, _ := board.ParseFEN(board.StartFEN)
	if !pos.GenerateLegalMoves().Contains(best) {
		t.Fatalf("best move %v is not legal", best)
	}
	if len(infos) == 0 {
		t.Fatal("no progress reports")
	}
	last := infos[len(infos)-1]
	if last.Depth < 4 {
		t.Errorf("final depth = %d, want >= 4", last.Depth)
	}
	if last.Nodes <= 0 {
		t.Errorf("nodes = %d", last.Nodes)
	}
}

func TestSearchFindsMateInOne(t *testing.T) {
	// Red rook mates on the back rank; the black king cannot leave the
	// palace and the advanced pawn covers the flight squares.
	const fen = "4k4/3P5/9/9/9/9/9/9/9/3K4R w - - 0 1"

	p := newTestPool(1)
	best, infos := runSearch(t, p, fen, Limits{Depth: 6})

	want, err := board.ParseMove("i0i9", mustParse(t, fen))
	if err != nil {
		t.Fatal(err)
	}
	if best != want {
		t.Fatalf("best = %v, want %v", best, want)
	}

	last := infos[len(infos)-1]
	if !IsWin(last.Value) {
		t.Fatalf("value %d is not a proven win", last.Value)
	}
	if mate := (ValueMate - last.Value + 1) / 2; mate != 1 {
		t.Errorf("mate distance = %d, want 1", mate)
	}
}

func TestSearchFindsMateForBlack(t *testing.T) {
	// The same mating pattern with colors reversed.
	const fen = "3k4r/9/9/9/9/9/9/9/3p5/4K4 b - - 0 1"

	p := newTestPool(1)
	best, infos := runSearch(t, p, fen, Limits{Depth: 6})

	want, err := board.ParseMove("i9i0", mustParse(t, fen))
	if err != nil {
		t.Fatal(err)
	}
	if best != want {
		t.Fatalf("best = %v, want %v", best, want)
	}
	if last := infos[len(infos)-1]; !IsWin(last.Value) {
		t.Errorf("value %d is not a proven win", last.Value)
	}
}

func TestSearchObeysSearchMoves(t *testing.T) {
	pos := mustParse(t, board.StartFEN)
	only, err := board.ParseMove("b2e2", pos)
	if err != nil {
		t.Fatal(err)
	}

	p := newTestPool(1)
	best, _ := runSearch(t, p, board.StartFEN, Limits{
		Depth:       3,
		SearchMoves: []board.Move{only},
	})
	if best != only {
		t.Errorf("best = %v, want the only allowed move %v", best, only)
	}
}

func TestSearchRespectsNodeLimit(t *testing.T) {
	p := newTestPool(1)
	runSearch(t, p, board.StartFEN, Limits{Nodes: 2000})

	// The limit is polled every few hundred nodes, so allow slack.
	if n := p.Nodes(); n > 200000 {
		t.Errorf("searched %d nodes against a limit of 2000", n)
	}
}

func TestStopEndsInfiniteSearch(t *testing.T) {
	pos := board.NewPosition()

	p := newTestPool(1)
	p.StartSearch(context.Background(), pos, Limits{Infinite: true, Start: time.Now()}, nil)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	done := make(chan board.Move, 1)
	go func() {
		best, _ := p.Wait()
		done <- best
	}()

	select {
	case best := <-done:
		if !pos.GenerateLegalMoves().Contains(best) {
			t.Errorf("best move %v is not legal", best)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("search did not stop")
	}
}

func TestMultiThreadedSearchAgrees(t *testing.T) {
	const fen = "4k4/3P5/9/9/9/9/9/9/9/3K4R w - - 0 1"

	p := newTestPool(4)
	best, _ := runSearch(t, p, fen, Limits{Depth: 6})

	want, _ := board.ParseMove("i0i9", mustParse(t, fen))
	if best != want {
		t.Errorf("best = %v, want %v", best, want)
	}
}

func TestMultiPVReportsSeparateLines(t *testing.T) {
	p := newTestPool(1)
	p.SetMultiPV(3)
	_, infos := runSearch(t, p, board.StartFEN, Limits{Depth: 3})

	seen := map[int]bool{}
	for _, info := range infos {
		seen[info.MultiPV] = true
	}
	for line := 1; line <= 3; line++ {
		if !seen[line] {
			t.Errorf("no report for multipv line %d", line)
		}
	}
}

func TestClearResetsBetweenGames(t *testing.T) {
	p := newTestPool(1)
	runSearch(t, p, board.StartFEN, Limits{Depth: 3})
	p.Clear()

	best, _ := runSearch(t, p, board.StartFEN, Limits{Depth: 3})
	pos := board.NewPosition()
	if !pos.GenerateLegalMoves().Contains(best) {
		t.Errorf("best move %v after Clear is not legal", best)
	}
}

func mustParse(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	return pos
}
