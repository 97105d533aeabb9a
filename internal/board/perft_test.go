package board

import "testing"

// Perft counts the number of leaf nodes at the given depth.
// This is the standard way to verify move generation correctness.
func perft(p *Position, depth int) int64 {
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

// TestPerftStartingPosition tests move generation from the starting position.
func TestPerftStartingPosition(t *testing.T) {
	pos := NewPosition()

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 44},
		{2, 1920},
		{3, 79666},
		{4, 3290240},
		// Depth 5 takes longer, enable for thorough testing:
		// {5, 133312995},
	}

	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			got := perft(pos, tc.depth)
			if got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}
		})
	}
}

// TestPerftBareKings checks that facing generals are handled: with only
// the two kings on an open file, moves along that file stay illegal.
func TestPerftBareKings(t *testing.T) {
	pos, err := ParseFEN("4k4/9/9/9/9/9/9/9/9/4K4 w - - 0 1")
	if err != nil {
		t.Fatalf("Failed to parse FEN: %v", err)
	}

	// Kings face each other on the e-file; any move that ends on the
	// file without closing it is illegal.
	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.To().File() != 4 {
			continue
		}
		if m.From().File() == 4 {
			t.Errorf("move %v keeps the generals facing on an open file", m)
		}
	}
}

// TestPerftMakeUnmakeRoundTrip verifies that unmaking restores the exact
// position state, including the incrementally updated hash.
func TestPerftMakeUnmakeRoundTrip(t *testing.T) {
	pos := NewPosition()

	var walk func(depth int)
	walk = func(depth int) {
		if depth == 0 {
			return
		}
		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)

			hash := pos.Hash
			rule60 := pos.Rule60
			board := pos.Board
			fen := pos.ToFEN()

			undo := pos.MakeMove(m)
			if pos.Hash != pos.ComputeHash() {
				t.Fatalf("after %v: incremental hash %x != recomputed %x", m, pos.Hash, pos.ComputeHash())
			}
			walk(depth - 1)
			pos.UnmakeMove(m, undo)

			if pos.Hash != hash {
				t.Fatalf("unmake %v: hash %x, want %x", m, pos.Hash, hash)
			}
			if pos.Rule60 != rule60 {
				t.Fatalf("unmake %v: rule60 %d, want %d", m, pos.Rule60, rule60)
			}
			if pos.Board != board {
				t.Fatalf("unmake %v: board differs\n%s", m, pos.String())
			}
			if got := pos.ToFEN(); got != fen {
				t.Fatalf("unmake %v: fen %q, want %q", m, got, fen)
			}
		}
	}
	walk(3)
}

// TestKeyAfter verifies that KeyAfter predicts the post-move hash.
func TestKeyAfter(t *testing.T) {
	pos := NewPosition()
	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		want := pos.KeyAfter(m)
		undo := pos.MakeMove(m)
		if pos.Hash != want {
			t.Errorf("KeyAfter(%v) = %x, but hash after make is %x", m, want, pos.Hash)
		}
		pos.UnmakeMove(m, undo)
	}
}
