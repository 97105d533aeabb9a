package engine

import "github.com/hailam/xqplay/internal/board"

// History tables use the gravity update: entries drift toward the bonus
// and saturate at their limit, so recent results outweigh stale ones.

const (
	mainHistoryLimit    = 8192
	lowPlyHistoryLimit  = 8192
	captureHistoryLimit = 10692
	pawnHistoryLimit    = 8192
	contHistoryLimit    = 29952
	corrHistoryLimit    = 1024

	lowPlySize      = 5
	pawnHistorySize = 512
)

func gravity(entry *int16, bonus, limit int) {
	bonus = clamp(bonus, -limit, limit)
	v := int(*entry) + bonus - int(*entry)*abs(bonus)/limit
	*entry = int16(v)
}

// ButterflyHistory is indexed by color and the from-to pair of a move.
type ButterflyHistory [2][board.SquareNB * board.SquareNB]int16

func (h *ButterflyHistory) Get(c board.Color, m board.Move) int {
	return int(h[c][m.FromTo()])
}

func (h *ButterflyHistory) Update(c board.Color, m board.Move, bonus int) {
	gravity(&h[c][m.FromTo()], bonus, mainHistoryLimit)
}

// LowPlyHistory biases move ordering near the root of the current search.
type LowPlyHistory [lowPlySize][board.SquareNB * board.SquareNB]int16

func (h *LowPlyHistory) Get(ply int, m board.Move) int {
	return int(h[ply][m.FromTo()])
}

func (h *LowPlyHistory) Update(ply int, m board.Move, bonus int) {
	gravity(&h[ply][m.FromTo()], bonus, lowPlyHistoryLimit)
}

// CaptureHistory is indexed by moved piece, destination and captured
// piece type.
type CaptureHistory [board.PieceNB][board.SquareNB][board.PieceTypeNB]int16

func (h *CaptureHistory) Get(pc board.Piece, to board.Square, captured board.PieceType) int {
	return int(h[pc][to][captured])
}

func (h *CaptureHistory) Update(pc board.Piece, to board.Square, captured board.PieceType, bonus int) {
	gravity(&h[pc][to][captured], bonus, captureHistoryLimit)
}

// PawnHistory keys quiet-move stats on the low bits of the pawn
// structure key, so ordering adapts to the pawn skeleton.
type PawnHistory [pawnHistorySize][board.PieceNB][board.SquareNB]int16

func pawnHistoryIndex(pos *board.Position) int {
	return int(pos.PawnKey & (pawnHistorySize - 1))
}

func (h *PawnHistory) Get(pawnKey int, pc board.Piece, to board.Square) int {
	return int(h[pawnKey][pc][to])
}

func (h *PawnHistory) Update(pawnKey int, pc board.Piece, to board.Square, bonus int) {
	gravity(&h[pawnKey][pc][to], bonus, pawnHistoryLimit)
}

// PieceToHistory is the leaf table of the continuation history.
type PieceToHistory [board.PieceNB][board.SquareNB]int16

func (h *PieceToHistory) Get(pc board.Piece, to board.Square) int {
	return int(h[pc][to])
}

func (h *PieceToHistory) Update(pc board.Piece, to board.Square, bonus int) {
	gravity(&h[pc][to], bonus, contHistoryLimit)
}

func (h *PieceToHistory) Fill(v int16) {
	for pc := range h {
		for to := range h[pc] {
			h[pc][to] = v
		}
	}
}

// ContinuationHistory relates consecutive moves: the outer indices are
// whether the earlier move was made in check and whether it captured.
type ContinuationHistory [2][2][board.PieceNB][board.SquareNB]PieceToHistory

// histories bundles all ordering state owned by one search worker.
type histories struct {
	main     ButterflyHistory
	lowPly   LowPlyHistory
	capture  CaptureHistory
	pawn     PawnHistory
	cont     ContinuationHistory
	contCorr ContinuationCorrectionHistory
	corr     CorrectionHistories
}

// clear resets the tables to their tuned fill values.
func (h *histories) clear() {
	fill16(h.main[:], 61)
	fill16(h.lowPly[:], 106)
	for pc := range h.capture {
		for to := range h.capture[pc] {
			for pt := range h.capture[pc][to] {
				h.capture[pc][to][pt] = -598
			}
		}
	}
	for k := range h.pawn {
		for pc := range h.pawn[k] {
			for to := range h.pawn[k][pc] {
				h.pawn[k][pc][to] = -1181
			}
		}
	}
	for ic := range h.cont {
		for cc := range h.cont[ic] {
			for pc := range h.cont[ic][cc] {
				for to := range h.cont[ic][cc][pc] {
					h.cont[ic][cc][pc][to].Fill(-427)
				}
			}
		}
	}
	h.contCorr = ContinuationCorrectionHistory{}
	h.corr = CorrectionHistories{}
}

func fill16[T ~[board.SquareNB * board.SquareNB]int16](rows []T, v int16) {
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = v
		}
	}
}
