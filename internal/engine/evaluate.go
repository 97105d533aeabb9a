package engine

import "github.com/hailam/xqplay/internal/board"

// Evaluator scores a position from the side to move's point of view.
// It returns a material-ish component and a positional component so the
// blend below can weigh them against search optimism.
type Evaluator interface {
	Evaluate(pos *board.Position) (material, positional Value)
}

// pstEvaluator is the built-in evaluator: material plus piece-square
// tables, incrementally cheap and deterministic.
type pstEvaluator struct{}

// NewEvaluator returns the default material and piece-square evaluator.
func NewEvaluator() Evaluator {
	return pstEvaluator{}
}

// pst is indexed from white's point of view; black squares are
// mirrored by rank. Values are small nudges on top of material.
var pst = [board.PieceTypeNB][board.SquareNB]int{
	board.Rook: {
		-6, 6, 4, 12, 0, 12, 4, 6, -6,
		5, 8, 6, 12, 0, 12, 6, 8, 5,
		-2, 8, 4, 12, 12, 12, 4, 8, -2,
		4, 9, 4, 12, 14, 12, 4, 9, 4,
		8, 11, 11, 14, 15, 14, 11, 11, 8,
		8, 13, 13, 16, 16, 16, 13, 13, 8,
		6, 13, 13, 16, 16, 16, 13, 13, 6,
		6, 12, 9, 16, 33, 16, 9, 12, 6,
		6, 12, 9, 16, 33, 16, 9, 12, 6,
		6, 8, 7, 13, 14, 13, 7, 8, 6,
	},
	board.Cannon: {
		0, 0, 1, 3, 3, 3, 1, 0, 0,
		0, 1, 2, 2, 2, 2, 2, 1, 0,
		1, 0, 4, 3, 5, 3, 4, 0, 1,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
		-1, 0, 3, 0, 4, 0, 3, 0, -1,
		0, 0, 0, 0, 4, 0, 0, 0, 0,
		0, 3, 3, 2, 4, 2, 3, 3, 0,
		1, 1, 0, -5, -4, -5, 0, 1, 1,
		2, 2, 0, -4, -7, -4, 0, 2, 2,
		4, 4, 0, -5, -6, -5, 0, 4, 4,
	},
	board.Knight: {
		0, -4, 0, 0, 0, 0, 0, -4, 0,
		0, 2, 4, 4, -2, 4, 4, 2, 0,
		4, 2, 8, 8, 4, 8, 8, 2, 4,
		2, 6, 8, 6, 10, 6, 8, 6, 2,
		4, 12, 16, 14, 12, 14, 16, 12, 4,
		6, 16, 14, 18, 16, 18, 14, 16, 6,
		8, 24, 18, 24, 20, 24, 18, 24, 8,
		12, 14, 16, 20, 18, 20, 16, 14, 12,
		4, 10, 28, 16, 8, 16, 28, 10, 4,
		4, 8, 16, 12, 4, 12, 16, 8, 4,
	},
	board.Pawn: {
		0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
		2, 0, 8, 0, 8, 0, 8, 0, 2,
		6, 0, 8, 0, 14, 0, 8, 0, 6,
		10, 18, 22, 35, 40, 35, 22, 18, 10,
		20, 27, 30, 40, 42, 40, 30, 27, 20,
		20, 30, 45, 55, 55, 55, 45, 30, 20,
		20, 30, 50, 65, 70, 65, 50, 30, 20,
		0, 3, 6, 9, 12, 9, 6, 3, 0,
	},
	board.Advisor: {
		0, 0, 0, 2, 0, 2, 0, 0, 0,
		0, 0, 0, 0, 3, 0, 0, 0, 0,
		0, 0, 0, 2, 0, 2, 0, 0, 0,
	},
	board.Bishop: {
		0, 0, 2, 0, 0, 0, 2, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
		3, 0, 0, 0, 4, 0, 0, 0, 3,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 2, 0, 0, 0, 2, 0, 0,
	},
	board.King: {
		0, 0, 0, 1, 5, 1, 0, 0, 0,
		0, 0, 0, -8, -8, -8, 0, 0, 0,
		0, 0, 0, -9, -9, -9, 0, 0, 0,
	},
}

func pstValue(pt board.PieceType, c board.Color, sq board.Square) int {
	if c == board.Black {
		sq = board.NewSquare(sq.File(), 9-sq.Rank())
	}
	return pst[pt][sq]
}

func (pstEvaluator) Evaluate(pos *board.Position) (Value, Value) {
	us := pos.SideToMove
	var material, positional int
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c != us {
			sign = -1
		}
		for pt := board.Rook; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb.Any() {
				sq := bb.PopLSB()
				material += sign * board.PieceValue[pt]
				positional += sign * pstValue(pt, c, sq)
			}
		}
	}
	return Value(material), Value(positional)
}

// evaluate blends the raw evaluation with search optimism, damps the
// score as the 120-ply counter climbs, and keeps the result short of a
// proven mate.
func evaluate(ev Evaluator, pos *board.Position, optimism Value) Value {
	material, positional := ev.Evaluate(pos)
	raw := material + positional

	complexity := abs(material - positional)
	optimism += optimism * complexity / 485
	raw -= raw * complexity / 11683

	mm := (pos.MajorMaterial(board.White) + pos.MajorMaterial(board.Black)) / 40
	v := (raw*(443+mm) + optimism*(76+mm)) / 503

	v -= v * pos.Rule60 / 267

	return clamp(v, ValueMatedInMaxPly+1, ValueMateInMaxPly-1)
}
