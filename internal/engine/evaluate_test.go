package engine

import (
	"testing"

	"github.com/hailam/xqplay/internal/board"
)

func TestEvaluateStartposBalanced(t *testing.T) {
	ev := NewEvaluator()
	material, positional := ev.Evaluate(board.NewPosition())
	if material != 0 {
		t.Errorf("material = %d at the starting position", material)
	}
	if positional != 0 {
		t.Errorf("positional = %d at the starting position", positional)
	}
}

func TestEvaluateMaterialAdvantage(t *testing.T) {
	pos, err := board.ParseFEN("4k4/9/9/9/9/9/9/9/9/3K4R w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	ev := NewEvaluator()
	material, _ := ev.Evaluate(pos)
	if material != board.PieceValue[board.Rook] {
		t.Errorf("material = %d, want %d", material, board.PieceValue[board.Rook])
	}
}

func TestEvaluatePerspective(t *testing.T) {
	// The same position scored for the other side flips sign.
	white, err := board.ParseFEN("4k4/9/9/9/9/9/9/9/9/3K4R w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	black, err := board.ParseFEN("4k4/9/9/9/9/9/9/9/9/3K4R b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	ev := NewEvaluator()
	wm, wp := ev.Evaluate(white)
	bm, bp := ev.Evaluate(black)
	if wm != -bm || wp != -bp {
		t.Errorf("perspective mismatch: white (%d,%d) black (%d,%d)", wm, wp, bm, bp)
	}
}

func TestEvaluateBlendStaysInMateBounds(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"4k4/9/9/9/9/9/9/9/9/3K4R w - - 0 1",
		"3k5/9/9/9/9/9/9/9/9/5K3 b - - 0 1",
	}
	ev := NewEvaluator()
	for _, fen := range fens {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		for _, optimism := range []Value{-200, 0, 200} {
			v := evaluate(ev, pos, optimism)
			if v <= ValueMatedInMaxPly || v >= ValueMateInMaxPly {
				t.Errorf("evaluate(%q, %d) = %d escapes mate bounds", fen, optimism, v)
			}
		}
	}
}

func TestEvaluateRule60DragsTowardDraw(t *testing.T) {
	fresh, err := board.ParseFEN("4k4/9/9/9/9/9/9/9/9/3K4R w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	stale, err := board.ParseFEN("4k4/9/9/9/9/9/9/9/9/3K4R w - - 100 1")
	if err != nil {
		t.Fatal(err)
	}

	ev := NewEvaluator()
	vFresh := evaluate(ev, fresh, 0)
	vStale := evaluate(ev, stale, 0)
	if abs(vStale) >= abs(vFresh) {
		t.Errorf("rule-60 decay missing: fresh %d stale %d", vFresh, vStale)
	}
}
