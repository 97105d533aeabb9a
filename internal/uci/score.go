package uci

import (
	"math"

	"github.com/hailam/xqplay/internal/board"
	"github.com/hailam/xqplay/internal/engine"
)

// winRateParams fits the material-dependent logistic that maps internal
// scores onto centipawns and win/draw/loss rates. The fit degrades at
// very low and very high material, hence the clamp.
func winRateParams(pos *board.Position) (a, b float64) {
	count := func(pt board.PieceType) int {
		return pos.Pieces[board.White][pt].PopCount() +
			pos.Pieces[board.Black][pt].PopCount()
	}
	material := 10*count(board.Rook) +
		5*count(board.Knight) +
		5*count(board.Cannon) +
		3*count(board.Bishop) +
		2*count(board.Advisor) +
		count(board.Pawn)
	if material < 17 {
		material = 17
	} else if material > 110 {
		material = 110
	}

	m := float64(material) / 65.0
	a = ((220.6*m-810.4)*m+928.7)*m + 79.8
	b = ((62.0*m-233.7)*m+325.9)*m - 68.7
	return a, b
}

// normalizeToCp rescales an internal score so that 100 centipawns
// corresponds to a 50% win probability.
func normalizeToCp(v engine.Value, pos *board.Position) int {
	a, _ := winRateParams(pos)
	return int(math.Round(100 * float64(v) / a))
}

// winRate returns per-mille win, draw and loss probabilities for v from
// the side to move's perspective.
func winRate(v engine.Value, pos *board.Position) (win, draw, loss int) {
	a, b := winRateParams(pos)
	win = int(math.Round(1000 / (1 + math.Exp((a-float64(v))/b))))
	loss = int(math.Round(1000 / (1 + math.Exp((a+float64(v))/b))))
	draw = 1000 - win - loss
	return win, draw, loss
}
