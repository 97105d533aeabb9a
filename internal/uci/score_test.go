package uci

import (
	"testing"

	"github.com/hailam/xqplay/internal/board"
	"github.com/hailam/xqplay/internal/engine"
)

func TestNormalizeToCpZero(t *testing.T) {
	if cp := normalizeToCp(0, board.NewPosition()); cp != 0 {
		t.Errorf("cp(0) = %d", cp)
	}
}

func TestNormalizeToCpMonotonic(t *testing.T) {
	pos := board.NewPosition()
	prev := normalizeToCp(-500, pos)
	for _, v := range []engine.Value{-100, 0, 100, 500, 2000} {
		cp := normalizeToCp(v, pos)
		if cp <= prev {
			t.Fatalf("cp(%d) = %d not above cp of previous score %d", v, cp, prev)
		}
		prev = cp
	}
}

func TestNormalizeToCpSymmetric(t *testing.T) {
	pos := board.NewPosition()
	for _, v := range []engine.Value{50, 123, 800} {
		if normalizeToCp(v, pos) != -normalizeToCp(-v, pos) {
			t.Errorf("cp not antisymmetric at %d", v)
		}
	}
}

func TestWinRateSumsToThousand(t *testing.T) {
	pos := board.NewPosition()
	for _, v := range []engine.Value{-1500, -200, 0, 200, 1500} {
		win, draw, loss := winRate(v, pos)
		if win+draw+loss != 1000 {
			t.Errorf("wdl(%d) sums to %d", v, win+draw+loss)
		}
		if win < 0 || draw < 0 || loss < 0 {
			t.Errorf("wdl(%d) negative component: %d %d %d", v, win, draw, loss)
		}
	}
}

func TestWinRateMirror(t *testing.T) {
	pos := board.NewPosition()
	for _, v := range []engine.Value{0, 150, 900} {
		win, _, _ := winRate(v, pos)
		_, _, loss := winRate(-v, pos)
		if win != loss {
			t.Errorf("win(%d)=%d but loss(%d)=%d", v, win, -v, loss)
		}
	}
}

func TestWinRateGrowsWithScore(t *testing.T) {
	pos := board.NewPosition()
	lowWin, _, _ := winRate(0, pos)
	highWin, _, _ := winRate(1000, pos)
	if highWin <= lowWin {
		t.Errorf("win rate flat: %d at 0, %d at 1000", lowWin, highWin)
	}
}

func TestWinRateParamsMaterialDependent(t *testing.T) {
	full := board.NewPosition()
	bare, err := board.ParseFEN("4k4/9/9/9/9/9/9/9/9/3K4R w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	aFull, _ := winRateParams(full)
	aBare, _ := winRateParams(bare)
	if aFull == aBare {
		t.Error("logistic parameters ignore material")
	}
}
