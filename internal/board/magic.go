package board

import "math/bits"

// Pext-indexed attack tables for the sliding and blocked-leaping pieces.
// One table per piece kind; rook and cannon share relevant-occupancy masks.

// Magic holds the lookup data for a single square.
type Magic struct {
	Mask    Bitboard   // Relevant occupancy mask
	Attacks []Bitboard // Attack table slice for this square
	LoBits  uint8      // Set bits in Mask.Lo; shift for the high pext half
}

// Index maps an occupancy to the attack table slot.
func (m *Magic) Index(occ Bitboard) uint64 {
	return pext64(occ.Lo, m.Mask.Lo) | pext64(occ.Hi, m.Mask.Hi)<<m.LoBits
}

var (
	rookMagics     [SquareNB]Magic
	cannonMagics   [SquareNB]Magic
	knightMagics   [SquareNB]Magic
	bishopMagics   [SquareNB]Magic
	knightToMagics [SquareNB]Magic
)

var (
	knightDeltas = [8]int{19, 17, 11, 7, -7, -11, -17, -19}
	bishopDeltas = [4]int{20, 16, -16, -20}
)

// destination returns sq+delta, or NoSquare when the step wraps around the
// board edge.
func destination(sq Square, delta int) Square {
	to := int(sq) + delta
	if to < 0 || to >= SquareNB {
		return NoSquare
	}
	t := Square(to)
	df := t.File() - sq.File()
	if df < 0 {
		df = -df
	}
	dr := t.Rank() - sq.Rank()
	if dr < 0 {
		dr = -dr
	}
	if df > 2 || dr > 2 {
		return NoSquare
	}
	return t
}

// slidingAttack is the slow reference routine for rook and cannon rays.
// A rook slides until the first occupier, including it. For a cannon it
// yields the squares past the screen up to and including the next
// occupier; CannonAttacks adds the quiet squares before the screen and
// keeps only the occupied square past it.
func slidingAttack(pt PieceType, sq Square, occupied Bitboard) Bitboard {
	var attacks Bitboard
	for _, d := range [4]int{North, South, East, West} {
		hurdle := false
		for s := destination(sq, d); s != NoSquare; s = destination(s, d) {
			if pt == Rook || hurdle {
				attacks = attacks.Set(s)
			}
			if occupied.IsSet(s) {
				if pt == Cannon && !hurdle {
					hurdle = true
					continue
				}
				break
			}
		}
	}
	return attacks
}

// legSquare returns the blocking square of the lame-leaper step from sq
// toward to. Horizontal-leg vs vertical-leg is decided by which axis
// dominates the step; the diagonal case is the bishop midpoint.
func legSquare(sq, to Square) Square {
	df := to.File() - sq.File()
	dr := to.Rank() - sq.Rank()
	adf, adr := df, dr
	if adf < 0 {
		adf = -adf
	}
	if adr < 0 {
		adr = -adr
	}
	step := 0
	switch {
	case adf > adr:
		if df > 0 {
			step = East
		} else {
			step = West
		}
	case adf < adr:
		if dr > 0 {
			step = North
		} else {
			step = South
		}
	default:
		if dr > 0 {
			step = North
		} else {
			step = South
		}
		if df > 0 {
			step += East
		} else {
			step += West
		}
	}
	return Square(int(sq) + step)
}

// lameLeaperPath returns the union of leg squares for all steps of the
// given leaper from sq.
func lameLeaperPath(pt PieceType, sq Square) Bitboard {
	var path Bitboard
	deltas := knightDeltas[:]
	if pt == Bishop {
		deltas = bishopDeltas[:]
	}
	for _, d := range deltas {
		to := destination(sq, d)
		if to == NoSquare {
			continue
		}
		if pt == KnightTo {
			// Leg sits next to the would-be knight square, not next to sq.
			path = path.Set(legSquare(to, sq))
		} else {
			path = path.Set(legSquare(sq, to))
		}
	}
	return path
}

// lameLeaperAttack is the slow reference routine for knight, bishop and
// the reverse knight table.
func lameLeaperAttack(pt PieceType, sq Square, occupied Bitboard) Bitboard {
	var attacks Bitboard
	deltas := knightDeltas[:]
	if pt == Bishop {
		deltas = bishopDeltas[:]
	}
	for _, d := range deltas {
		to := destination(sq, d)
		if to == NoSquare {
			continue
		}
		var leg Square
		if pt == KnightTo {
			leg = legSquare(to, sq)
		} else {
			leg = legSquare(sq, to)
		}
		if !occupied.IsSet(leg) {
			attacks = attacks.Set(to)
		}
	}
	if pt == Bishop {
		attacks = attacks.And(HalfMask[boolToInt(sq.Rank() > 4)])
	}
	return attacks
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sub128 computes b - m over the 128-bit pair.
func sub128(b, m Bitboard) Bitboard {
	lo, borrow := bits.Sub64(b.Lo, m.Lo, 0)
	hi, _ := bits.Sub64(b.Hi, m.Hi, borrow)
	return Bitboard{lo, hi}
}

// initMagicTable fills one square's table by enumerating every subset of
// the relevant-occupancy mask with the Carry-Rippler trick.
func initMagicTable(m *Magic, mask Bitboard, attack func(Bitboard) Bitboard) {
	m.Mask = mask
	m.LoBits = uint8(bits.OnesCount64(mask.Lo))
	m.Attacks = make([]Bitboard, 1<<mask.PopCount())

	occ := Bitboard{}
	for {
		m.Attacks[m.Index(occ)] = attack(occ)
		occ = sub128(occ, mask).And(mask)
		if occ.IsEmpty() {
			break
		}
	}
}

func initMagics() {
	for sq := A0; sq < NoSquare; sq++ {
		// Edge squares cannot affect a ray that ends there anyway.
		edges := RankMask[0].Or(RankMask[9]).AndNot(RankMask[sq.Rank()]).
			Or(FileMask[0].Or(FileMask[8]).AndNot(FileMask[sq.File()]))

		s := sq
		rookMask := slidingAttack(Rook, s, Bitboard{}).AndNot(edges)
		initMagicTable(&rookMagics[sq], rookMask, func(occ Bitboard) Bitboard {
			return slidingAttack(Rook, s, occ)
		})
		initMagicTable(&cannonMagics[sq], rookMask, func(occ Bitboard) Bitboard {
			return slidingAttack(Cannon, s, occ)
		})
		initMagicTable(&knightMagics[sq], lameLeaperPath(Knight, s).AndNot(edges), func(occ Bitboard) Bitboard {
			return lameLeaperAttack(Knight, s, occ)
		})
		initMagicTable(&bishopMagics[sq], lameLeaperPath(Bishop, s).AndNot(edges), func(occ Bitboard) Bitboard {
			return lameLeaperAttack(Bishop, s, occ)
		})
		initMagicTable(&knightToMagics[sq], lameLeaperPath(KnightTo, s), func(occ Bitboard) Bitboard {
			return lameLeaperAttack(KnightTo, s, occ)
		})
	}
}
