package board

// Precomputed masks and attack tables. Everything here is filled once by
// initAttacks and never mutated afterwards.

var (
	// FileMask and RankMask give the bitboard of a whole file or rank.
	FileMask [9]Bitboard
	RankMask [10]Bitboard

	// HalfMask[0] covers ranks 0-4 (red's side of the river),
	// HalfMask[1] covers ranks 5-9.
	HalfMask [2]Bitboard

	// PalaceMask[c] is the 3x3 palace of the given color;
	// Palace is the union of both.
	PalaceMask [2]Bitboard
	Palace     Bitboard

	pawnAttacks   [2][SquareNB]Bitboard
	pawnAttacksTo [2][SquareNB]Bitboard
	kingAttacks   [SquareNB]Bitboard
	advisorAttack [SquareNB]Bitboard

	lineBB    [SquareNB][SquareNB]Bitboard
	betweenBB [SquareNB][SquareNB]Bitboard
)

func initAttacks() {
	initMasks()
	initMagics()
	initLeaperTables()
	initLineBetween()
}

func initMasks() {
	for sq := A0; sq < NoSquare; sq++ {
		FileMask[sq.File()] = FileMask[sq.File()].Set(sq)
		RankMask[sq.Rank()] = RankMask[sq.Rank()].Set(sq)
		if sq.Rank() <= 4 {
			HalfMask[0] = HalfMask[0].Set(sq)
		} else {
			HalfMask[1] = HalfMask[1].Set(sq)
		}
		if sq.File() >= 3 && sq.File() <= 5 {
			if sq.Rank() <= 2 {
				PalaceMask[White] = PalaceMask[White].Set(sq)
			} else if sq.Rank() >= 7 {
				PalaceMask[Black] = PalaceMask[Black].Set(sq)
			}
		}
	}
	Palace = PalaceMask[White].Or(PalaceMask[Black])
}

func initLeaperTables() {
	for sq := A0; sq < NoSquare; sq++ {
		// Pawns step forward; once across the river they may also step
		// sideways.
		for c := White; c <= Black; c++ {
			forward := North
			crossed := sq.Rank() >= 5
			if c == Black {
				forward = South
				crossed = sq.Rank() <= 4
			}
			if to := destination(sq, forward); to != NoSquare {
				pawnAttacks[c][sq] = pawnAttacks[c][sq].Set(to)
			}
			if crossed {
				for _, d := range [2]int{East, West} {
					if to := destination(sq, d); to != NoSquare {
						pawnAttacks[c][sq] = pawnAttacks[c][sq].Set(to)
					}
				}
			}
		}

		// Kings and advisors never leave the palace.
		if Palace.IsSet(sq) {
			for _, d := range [4]int{North, South, East, West} {
				if to := destination(sq, d); to != NoSquare && samePalace(sq, to) {
					kingAttacks[sq] = kingAttacks[sq].Set(to)
				}
			}
			for _, d := range [4]int{North + East, North + West, South + East, South + West} {
				if to := destination(sq, d); to != NoSquare && samePalace(sq, to) {
					advisorAttack[sq] = advisorAttack[sq].Set(to)
				}
			}
		}
	}

	// Reverse pawn map: from which squares does a pawn of color c attack sq.
	for c := White; c <= Black; c++ {
		for from := A0; from < NoSquare; from++ {
			b := pawnAttacks[c][from]
			for b.Any() {
				to := b.PopLSB()
				pawnAttacksTo[c][to] = pawnAttacksTo[c][to].Set(from)
			}
		}
	}
}

func samePalace(a, b Square) bool {
	return PalaceMask[White].IsSet(a) && PalaceMask[White].IsSet(b) ||
		PalaceMask[Black].IsSet(a) && PalaceMask[Black].IsSet(b)
}

func initLineBetween() {
	for s1 := A0; s1 < NoSquare; s1++ {
		rays := RookAttacks(s1, Bitboard{})
		for s2 := A0; s2 < NoSquare; s2++ {
			if rays.IsSet(s2) {
				lineBB[s1][s2] = RookAttacks(s1, Bitboard{}).And(RookAttacks(s2, Bitboard{})).
					Set(s1).Set(s2)
				betweenBB[s1][s2] = RookAttacks(s1, SquareBB(s2)).And(RookAttacks(s2, SquareBB(s1))).
					Set(s2)
			}
			// Leaper "between" is the blocking leg, used for evasions.
			if KnightAttacks(s1, Bitboard{}).IsSet(s2) {
				betweenBB[s1][s2] = SquareBB(legSquare(s1, s2)).Set(s2)
			}
			if BishopAttacks(s1, Bitboard{}).IsSet(s2) {
				betweenBB[s1][s2] = SquareBB(legSquare(s1, s2)).Set(s2)
			}
		}
	}
}

// RookAttacks returns the rook attack set from sq given the occupancy.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &rookMagics[sq]
	return m.Attacks[m.Index(occupied)]
}

// CannonAttacks returns the cannon move-and-capture set from sq: quiet
// destinations before the screen plus the single capture square past it.
func CannonAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &cannonMagics[sq]
	return RookAttacks(sq, occupied).AndNot(occupied).
		Or(m.Attacks[m.Index(occupied)].And(occupied))
}

// KnightAttacks returns the knight attack set from sq, honoring leg blocks.
func KnightAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &knightMagics[sq]
	return m.Attacks[m.Index(occupied)]
}

// KnightToAttacks returns the squares from which a knight would attack sq.
func KnightToAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &knightToMagics[sq]
	return m.Attacks[m.Index(occupied)]
}

// BishopAttacks returns the bishop attack set from sq, honoring leg blocks
// and the river.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &bishopMagics[sq]
	return m.Attacks[m.Index(occupied)]
}

// KingAttacks returns the king step set from sq (empty outside the palace).
func KingAttacks(sq Square) Bitboard {
	return kingAttacks[sq]
}

// AdvisorAttacks returns the advisor step set from sq (empty outside the
// palace).
func AdvisorAttacks(sq Square) Bitboard {
	return advisorAttack[sq]
}

// PawnAttacks returns the pawn step set for a pawn of color c on sq.
func PawnAttacks(c Color, sq Square) Bitboard {
	return pawnAttacks[c][sq]
}

// PawnAttacksTo returns the squares from which a pawn of color c attacks sq.
func PawnAttacksTo(c Color, sq Square) Bitboard {
	return pawnAttacksTo[c][sq]
}

// Line returns the full rook line through s1 and s2, or empty if they are
// not aligned.
func Line(s1, s2 Square) Bitboard {
	return lineBB[s1][s2]
}

// Between returns the squares strictly between s1 and s2 plus s2 itself;
// for leaper relationships it is the blocking leg plus s2.
func Between(s1, s2 Square) Bitboard {
	return betweenBB[s1][s2]
}

// Aligned returns true if all three squares share a rook line.
func Aligned(s1, s2, s3 Square) bool {
	return lineBB[s1][s2].IsSet(s3)
}

// AttacksBB returns the attack set for a piece of the given type and color
// on sq. Color only matters for pawns.
func AttacksBB(pt PieceType, c Color, sq Square, occupied Bitboard) Bitboard {
	switch pt {
	case Rook:
		return RookAttacks(sq, occupied)
	case Cannon:
		return CannonAttacks(sq, occupied)
	case Knight:
		return KnightAttacks(sq, occupied)
	case Bishop:
		return BishopAttacks(sq, occupied)
	case Pawn:
		return PawnAttacks(c, sq)
	case Advisor:
		return AdvisorAttacks(sq)
	case King:
		return KingAttacks(sq)
	}
	return Bitboard{}
}
