package engine

import (
	"testing"

	"github.com/hailam/xqplay/internal/board"
)

func TestValueToTTRoundTrip(t *testing.T) {
	values := []Value{
		0, 17, -348, 2500, -2500,
		MateIn(5), MateIn(30), MatedIn(5), MatedIn(44),
	}
	for _, v := range values {
		for _, ply := range []int{0, 3, 40} {
			stored := Value(valueToTT(v, ply))
			got := valueFromTT(stored, ply, 0)
			if got != v {
				t.Errorf("roundtrip(%d, ply=%d) = %d", v, ply, got)
			}
		}
	}
}

func TestValueFromTTDowngradesStaleMates(t *testing.T) {
	// A mate further away than the 60-move rule allows must not be
	// reported as proven.
	v := Value(valueToTT(MateIn(10), 0))
	got := valueFromTT(v, 0, 115)
	if got != ValueMateInMaxPly-1 {
		t.Errorf("stale win = %d, want %d", got, ValueMateInMaxPly-1)
	}

	v = Value(valueToTT(MatedIn(10), 0))
	got = valueFromTT(v, 0, 115)
	if got != ValueMatedInMaxPly+1 {
		t.Errorf("stale loss = %d, want %d", got, ValueMatedInMaxPly+1)
	}
}

func TestProbeMissThenHit(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0x123456789abcdef0)

	_, hit, w := tt.Probe(key)
	if hit {
		t.Fatal("hit on empty table")
	}

	m := board.NewMove(board.A0, board.A1)
	w.Save(key, 123, true, BoundExact, 7, m, 45)

	d, hit, _ := tt.Probe(key)
	if !hit {
		t.Fatal("miss after save")
	}
	if d.Move != m || d.Value != 123 || d.Eval != 45 || d.Depth != 7 || d.Bound != BoundExact || !d.IsPV {
		t.Errorf("decoded entry = %+v", d)
	}
}

func TestSaveKeepsDeeperEntry(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0xfeedface)

	_, _, w := tt.Probe(key)
	deep := board.NewMove(board.A0, board.A1)
	w.Save(key, 50, false, BoundLower, 12, deep, 10)

	// A shallow non-exact write on the same key must not displace the
	// deep entry.
	_, _, w = tt.Probe(key)
	shallow := board.NewMove(board.B0, board.B1)
	w.Save(key, -50, false, BoundUpper, 2, shallow, -10)

	d, hit, _ := tt.Probe(key)
	if !hit {
		t.Fatal("entry lost")
	}
	if d.Depth != 12 || d.Value != 50 {
		t.Errorf("deep entry displaced: %+v", d)
	}
	// The move slot still follows the latest writer.
	if d.Move != shallow {
		t.Errorf("move = %v, want %v", d.Move, shallow)
	}
}

func TestSaveExactAlwaysReplaces(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0xdeadbeef)

	_, _, w := tt.Probe(key)
	w.Save(key, 50, false, BoundLower, 12, board.NewMove(board.A0, board.A1), 10)

	_, _, w = tt.Probe(key)
	w.Save(key, 99, false, BoundExact, 2, board.NewMove(board.B0, board.B1), 20)

	d, _, _ := tt.Probe(key)
	if d.Value != 99 || d.Depth != 2 {
		t.Errorf("exact write did not replace: %+v", d)
	}
}

func TestClearEmptiesTable(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0xabcdef)

	_, _, w := tt.Probe(key)
	w.Save(key, 1, false, BoundExact, 5, board.NoMove, 0)
	tt.Clear()

	if _, hit, _ := tt.Probe(key); hit {
		t.Error("hit after Clear")
	}
	if hf := tt.Hashfull(); hf != 0 {
		t.Errorf("Hashfull after Clear = %d", hf)
	}
}

func TestNewSearchAgesEntries(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0x42)

	_, _, w := tt.Probe(key)
	w.Save(key, 1, false, BoundExact, 5, board.NoMove, 0)
	tt.NewSearch()

	// Old-generation entries still probe as hits but no longer count
	// toward hashfull.
	if _, hit, _ := tt.Probe(key); !hit {
		t.Error("aged entry should still hit")
	}
	if hf := tt.Hashfull(); hf != 0 {
		t.Errorf("Hashfull counts old generation: %d", hf)
	}
}

func TestResizeDropsEntries(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0x77)

	_, _, w := tt.Probe(key)
	w.Save(key, 1, false, BoundExact, 5, board.NoMove, 0)
	tt.Resize(2)

	if _, hit, _ := tt.Probe(key); hit {
		t.Error("hit survived resize")
	}
}
