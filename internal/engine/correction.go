package engine

import "github.com/hailam/xqplay/internal/board"

// Correction histories track the signed difference between the static
// evaluation and the search result, keyed by partial position keys.
// They nudge future static evaluations toward what search found.

const corrHistSize = 32768

type corrTable [corrHistSize][2]int16

func (t *corrTable) get(key uint64, us board.Color) int {
	return int(t[key&(corrHistSize-1)][us])
}

func (t *corrTable) update(key uint64, us board.Color, bonus int) {
	gravity(&t[key&(corrHistSize-1)][us], bonus, corrHistoryLimit)
}

// CorrectionHistories bundles the piece-subset tables.
type CorrectionHistories struct {
	pawn    corrTable
	major   corrTable
	minor   corrTable
	nonPawn [2]corrTable
}

// ContinuationCorrectionHistory corrects based on the last two moves.
type ContinuationCorrectionHistory [board.PieceNB][board.SquareNB]PieceToHistory

// correctionValue blends all correction sources into one signed value
// scaled by 1 << 17.
func (w *Worker) correctionValue(pos *board.Position, ss int) int {
	us := pos.SideToMove
	h := &w.hist
	pcv := h.corr.pawn.get(pos.PawnKey, us)
	macv := h.corr.major.get(pos.MajorKey, us)
	micv := h.corr.minor.get(pos.MinorKey, us)
	wnpcv := h.corr.nonPawn[board.White].get(pos.NonPawnKey[board.White], us)
	bnpcv := h.corr.nonPawn[board.Black].get(pos.NonPawnKey[board.Black], us)

	cntcv := 0
	prev := w.stack[ss-1].currentMove
	prev2 := w.stack[ss-2].currentMove
	if prev.IsOK() && prev2.IsOK() {
		cntcv = int(h.contCorr[w.stack[ss-1].movedPiece][prev.To()][w.stack[ss-2].movedPiece][prev2.To()])
	}

	return 6245*pcv + 3442*macv + 6999*micv + 6036*(wnpcv+bnpcv) + 6232*cntcv
}

// toCorrected applies the correction and keeps the result short of a
// proven mate or loss.
func toCorrected(v Value, cv int) Value {
	return clamp(v+cv/131072, ValueMatedInMaxPly+1, ValueMateInMaxPly-1)
}

// updateCorrectionHistories records how far static eval missed the
// search result.
func (w *Worker) updateCorrectionHistories(pos *board.Position, ss int, bonus int) {
	us := pos.SideToMove
	h := &w.hist
	h.corr.pawn.update(pos.PawnKey, us, bonus*148/128)
	h.corr.major.update(pos.MajorKey, us, bonus*185/128)
	h.corr.minor.update(pos.MinorKey, us, bonus*101/128)
	h.corr.nonPawn[board.White].update(pos.NonPawnKey[board.White], us, bonus*139/128)
	h.corr.nonPawn[board.Black].update(pos.NonPawnKey[board.Black], us, bonus*139/128)

	prev := w.stack[ss-1].currentMove
	prev2 := w.stack[ss-2].currentMove
	if prev.IsOK() && prev2.IsOK() {
		e := &h.contCorr[w.stack[ss-1].movedPiece][prev.To()]
		e.Update(w.stack[ss-2].movedPiece, prev2.To(), bonus)
	}
}
