package board

import (
	"testing"
)

func TestCheckmate(t *testing.T) {
	// Rook checks along the back rank while the pawn at the throat covers
	// d9 and e8. Black to move is checkmated.
	pos, err := ParseFEN("4k3R/3P5/9/9/9/9/9/9/9/3K5 b - - 0 1")
	if err != nil {
		t.Fatal("Error parsing FEN:", err)
	}

	t.Log("Checkmate position:")
	t.Log(pos)

	t.Log("Checkers bitboard:", pos.Checkers)
	t.Log("InCheck:", pos.InCheck())

	blackMoves := pos.GenerateLegalMoves()
	t.Log("Black legal moves:", blackMoves.Len())
	for i := 0; i < blackMoves.Len(); i++ {
		t.Log("  Move:", blackMoves.Get(i))
	}

	if !pos.IsCheckmate() {
		t.Error("Expected checkmate but got false")
	}
}

func TestMateInOne(t *testing.T) {
	// Same mating net one move earlier: i0i9 is the only mating move.
	pos, err := ParseFEN("4k4/3P5/9/9/9/9/9/9/9/3K4R w - - 0 1")
	if err != nil {
		t.Fatal("Error parsing FEN:", err)
	}

	m, err := ParseMove("i0i9", pos)
	if err != nil {
		t.Fatal("Error parsing move:", err)
	}
	if !pos.GivesCheck(m) {
		t.Error("i0i9 should give check")
	}

	undo := pos.MakeMove(m)
	if !pos.InCheck() {
		t.Error("black should be in check after i0i9")
	}
	if !pos.IsCheckmate() {
		t.Error("Expected checkmate after i0i9")
	}
	pos.UnmakeMove(m, undo)
}

func TestNotCheckmate(t *testing.T) {
	// The rook checks from next to the king without protection, so the
	// king simply captures it.
	pos, err := ParseFEN("4kR3/9/9/9/9/9/9/9/9/3K5 b - - 0 1")
	if err != nil {
		t.Fatal("Error parsing FEN:", err)
	}

	t.Log("Not checkmate position (king can capture rook):")
	t.Log(pos)

	t.Log("InCheck:", pos.InCheck())

	blackMoves := pos.GenerateLegalMoves()
	t.Log("Black legal moves:", blackMoves.Len())
	for i := 0; i < blackMoves.Len(); i++ {
		t.Log("  Move:", blackMoves.Get(i))
	}

	if pos.IsCheckmate() {
		t.Error("Expected NOT checkmate but got true")
	}
	if !blackMoves.Contains(NewMove(E9, F9)) {
		t.Error("king should be able to capture the rook on f9")
	}
}

func TestStalemateIsLoss(t *testing.T) {
	// Black king is boxed in without being in check. In xiangqi the
	// stalemated side loses, so IsMated is true while IsCheckmate is not.
	pos, err := ParseFEN("3k5/4P4/9/9/9/9/9/9/9/4K4 b - - 0 1")
	if err != nil {
		t.Fatal("Error parsing FEN:", err)
	}

	t.Log("Stalemate position:")
	t.Log(pos)

	if pos.InCheck() {
		t.Fatal("black should not be in check")
	}
	if pos.HasLegalMoves() {
		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			t.Log("  unexpected move:", moves.Get(i))
		}
		t.Fatal("black should have no legal moves")
	}
	if pos.IsCheckmate() {
		t.Error("stalemate is not checkmate")
	}
	if !pos.IsMated() {
		t.Error("stalemated side should count as mated")
	}
}

func applyMoves(t *testing.T, pos *Position, moves []string) {
	t.Helper()
	for _, s := range moves {
		m, err := ParseMove(s, pos)
		if err != nil {
			t.Fatalf("move %s: %v", s, err)
		}
		pos.MakeMove(m)
	}
}

func TestRepetitionDraw(t *testing.T) {
	// Both sides shuffle their rooks without checking; the repeated
	// position is a plain draw. The pawn on e4 keeps the kings apart.
	pos, err := ParseFEN("4k3r/9/9/9/9/4P4/9/9/9/R3K4 w - - 0 1")
	if err != nil {
		t.Fatal("Error parsing FEN:", err)
	}

	cycle := []string{"a0b0", "i9h9", "b0a0", "h9i9"}
	applyMoves(t, pos, cycle)
	applyMoves(t, pos, cycle)

	if !pos.HasRepeated() {
		t.Error("position should have repeated")
	}
	if got := pos.RuleJudge(); got != ResultDraw {
		t.Errorf("RuleJudge() = %v, want %v", got, ResultDraw)
	}
}

func TestPerpetualCheck(t *testing.T) {
	// The white rook checks from a9 and a8 forever while the black king
	// shuffles between e9 and e8. The checking side is ruled against.
	pos, err := ParseFEN("4k4/9/9/9/9/4P4/9/9/9/R3K4 w - - 0 1")
	if err != nil {
		t.Fatal("Error parsing FEN:", err)
	}

	applyMoves(t, pos, []string{"a0a9"})
	cycle := []string{"e9e8", "a9a8", "e8e9", "a8a9"}
	applyMoves(t, pos, cycle)
	applyMoves(t, pos, cycle)

	// Black, the perpetually checked side, is to move and wins by rule.
	if got := pos.RuleJudge(); got != ResultWin {
		t.Errorf("RuleJudge() for the checked side = %v, want %v", got, ResultWin)
	}

	// One ply earlier it is white, the checking side, to move and loses.
	pos2, err := ParseFEN("4k4/9/9/9/9/4P4/9/9/9/R3K4 w - - 0 1")
	if err != nil {
		t.Fatal("Error parsing FEN:", err)
	}
	applyMoves(t, pos2, []string{"a0a9"})
	applyMoves(t, pos2, cycle)
	applyMoves(t, pos2, []string{"e9e8", "a9a8", "e8e9"})

	if got := pos2.RuleJudge(); got != ResultLoss {
		t.Errorf("RuleJudge() for the checking side = %v, want %v", got, ResultLoss)
	}
}
