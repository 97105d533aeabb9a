package board

import (
	"math/rand"
	"testing"
)

func randomOccupancy(r *rand.Rand) Bitboard {
	// Roughly a third of the board occupied, like a middlegame.
	var occ Bitboard
	for sq := A0; sq < NoSquare; sq++ {
		if r.Intn(3) == 0 {
			occ = occ.Set(sq)
		}
	}
	return occ
}

// TestRookAttackSymmetry checks that rook attacks are symmetric: if a rook
// on s1 attacks s2, then a rook on s2 attacks s1 under the same occupancy.
func TestRookAttackSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		occ := randomOccupancy(r)
		for s1 := A0; s1 < NoSquare; s1++ {
			attacks := RookAttacks(s1, occ)
			for bb := attacks; bb.Any(); {
				s2 := bb.PopLSB()
				if !RookAttacks(s2, occ).IsSet(s1) {
					t.Fatalf("rook on %v attacks %v but not vice versa\nocc:\n%v", s1, s2, occ)
				}
			}
		}
	}
}

// TestKnightLegBlocking checks the lame-leaper property: a knight reaches a
// destination iff its leg square is empty.
func TestKnightLegBlocking(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		occ := randomOccupancy(r)
		for sq := A0; sq < NoSquare; sq++ {
			free := KnightAttacks(sq, Bitboard{})
			got := KnightAttacks(sq, occ)
			for bb := free; bb.Any(); {
				to := bb.PopLSB()
				blocked := occ.IsSet(legSquare(sq, to))
				if blocked == got.IsSet(to) {
					t.Fatalf("knight %v->%v: leg blocked=%v but attack set says %v", sq, to, blocked, got.IsSet(to))
				}
			}
		}
	}
}

// TestKnightToIsReverseOfKnight checks that KnightToAttacks(sq) lists
// exactly the squares whose knights attack sq.
func TestKnightToIsReverseOfKnight(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	for trial := 0; trial < 100; trial++ {
		occ := randomOccupancy(r)
		for sq := A0; sq < NoSquare; sq++ {
			from := KnightToAttacks(sq, occ)
			for bb := from; bb.Any(); {
				s := bb.PopLSB()
				if !KnightAttacks(s, occ).IsSet(sq) {
					t.Fatalf("KnightToAttacks(%v) lists %v, but knight there does not attack back", sq, s)
				}
			}
			for s := A0; s < NoSquare; s++ {
				if KnightAttacks(s, occ).IsSet(sq) && !from.IsSet(s) {
					t.Fatalf("knight on %v attacks %v but KnightToAttacks misses it", s, sq)
				}
			}
		}
	}
}

// TestCannonAttacks spot-checks screen semantics on a hand-built position.
func TestCannonAttacks(t *testing.T) {
	// Cannon on e4, screen on e6, enemy piece on e8: the cannon may move
	// to e5 quietly and capture e8, but e6 and e7 are unreachable.
	occ := SquareBB(E4).Set(E6).Set(E8)
	attacks := CannonAttacks(E4, occ)

	if !attacks.IsSet(E5) {
		t.Error("quiet destination e5 missing")
	}
	if attacks.IsSet(E6) {
		t.Error("screen square e6 must not be attacked")
	}
	if attacks.IsSet(E7) {
		t.Error("square behind the screen before the target must not be attacked")
	}
	if !attacks.IsSet(E8) {
		t.Error("capture target e8 missing")
	}
	if attacks.IsSet(E9) {
		t.Error("square behind the capture target must not be attacked")
	}
}

// TestBishopRiver checks that bishops never cross the river.
func TestBishopRiver(t *testing.T) {
	for sq := A0; sq < NoSquare; sq++ {
		attacks := BishopAttacks(sq, Bitboard{})
		half := HalfMask[0]
		if sq.Rank() > 4 {
			half = HalfMask[1]
		}
		if attacks.AndNot(half).Any() {
			t.Errorf("bishop on %v attacks across the river: %v", sq, attacks)
		}
	}
}

// TestPalaceConfinement checks king and advisor step sets stay inside the
// palace and are empty elsewhere.
func TestPalaceConfinement(t *testing.T) {
	for sq := A0; sq < NoSquare; sq++ {
		if !Palace.IsSet(sq) {
			if KingAttacks(sq).Any() || AdvisorAttacks(sq).Any() {
				t.Errorf("square %v outside the palace has king/advisor moves", sq)
			}
			continue
		}
		if KingAttacks(sq).AndNot(Palace).Any() {
			t.Errorf("king on %v steps out of the palace", sq)
		}
		if AdvisorAttacks(sq).AndNot(Palace).Any() {
			t.Errorf("advisor on %v steps out of the palace", sq)
		}
	}
}

// TestPawnSteps checks river crossing unlocks sideways pawn steps.
func TestPawnSteps(t *testing.T) {
	if got := PawnAttacks(White, E3); got != SquareBB(E4) {
		t.Errorf("white pawn on e3 should only push north, got %v", got)
	}
	want := SquareBB(E6).Set(D5).Set(F5)
	if got := PawnAttacks(White, E5); got != want {
		t.Errorf("white pawn on e5 = %v, want %v", got, want)
	}
	// A black pawn on e5 has not crossed the river yet.
	want = SquareBB(E4)
	if got := PawnAttacks(Black, E5); got != want {
		t.Errorf("black pawn on e5 = %v, want %v", got, want)
	}
	// Pawns on the last rank can still step sideways.
	want = SquareBB(D9).Set(F9)
	if got := PawnAttacks(White, E9); got != want {
		t.Errorf("white pawn on e9 = %v, want %v", got, want)
	}
}

func TestSeeGe(t *testing.T) {
	// Rook takes a pawn defended by a knight: loses rook for pawn.
	pos, err := ParseFEN("4k4/4n4/9/3p5/9/9/9/9/9/3RK4 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := NewMove(D0, D6)
	if pos.SeeGe(m, 0) {
		t.Error("rook takes defended pawn should lose material")
	}
	if !pos.SeeGe(m, PieceValue[Pawn]-PieceValue[Rook]) {
		t.Error("exchange should be exactly pawn minus rook")
	}

	// Undefended pawn: clean win of a pawn.
	pos2, err := ParseFEN("3k5/9/9/3p5/9/9/9/9/9/3RK4 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if !pos2.SeeGe(NewMove(D0, D6), PieceValue[Pawn]) {
		t.Error("taking an undefended pawn should win its value")
	}
}
