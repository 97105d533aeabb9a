package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/hailam/xqplay/internal/board"
)

type nodeType int

const (
	nodeNonPV nodeType = iota
	nodePV
	nodeRoot
)

// reductionTable drives late move reductions; filled once at startup.
var reductionTable [board.MaxMoves]int

func init() {
	for i := 1; i < board.MaxMoves; i++ {
		reductionTable[i] = int(14.60 * math.Log(float64(i)))
	}
}

// reduction combines depth and move count with the aspiration window
// width; wider windows reduce less.
func (w *Worker) reduction(improving bool, depth, moveCount int, delta Value) int {
	scale := reductionTable[min(depth, board.MaxMoves-1)] * reductionTable[min(moveCount, board.MaxMoves-1)]
	r := scale - delta*1181/w.rootDelta + 2199
	if !improving {
		r += scale / 3
	}
	return r
}

// drawValue dithers draw scores by a node-count bit to break
// three-fold shuffling ties.
func (w *Worker) drawValue() Value {
	return ValueDraw - 1 + Value(w.nodes.Load()&0x2)
}

// iterate runs the iterative deepening loop for one worker.
func (w *Worker) iterate(ctx context.Context) {
	p := w.pool
	pos := w.rootPos
	us := pos.SideToMove
	multiPV := min(p.opts.MultiPV, len(w.rootMoves))

	for i := range w.stack {
		w.stack[i] = stackEntry{
			contHist:   &w.hist.cont[0][0][board.NoPiece][board.A0],
			staticEval: ValueNone,
			ply:        i - stackOffset,
		}
	}

	if len(w.rootMoves) == 0 {
		// Checkmated or stalemated at the root; both lose.
		if w.isMain() && p.info != nil {
			p.info(SearchInfo{Depth: 0, Value: MatedIn(0), Time: p.tm.Elapsed()})
		}
		return
	}

	var lastBestPV []board.Move
	lastBestValue := -ValueInfinite
	var iterValue [4]Value
	totBestMoveChanges := 0.0
	w.searchAgainCounter = 0

	for w.rootDepth = 1; w.rootDepth < MaxPly; w.rootDepth++ {
		if p.stop.Load() || ctx.Err() != nil {
			break
		}
		if p.limits.Depth > 0 && w.isMain() && w.rootDepth > p.limits.Depth {
			break
		}

		// Helper threads de-synchronize by skipping depths.
		if !w.isMain() && (w.rootDepth+w.id)%3 == 1 {
			continue
		}

		w.bestMoveChanges /= 2
		totBestMoveChanges /= 2

		for i := range w.rootMoves {
			w.rootMoves[i].PrevValue = w.rootMoves[i].Value
		}
		if !p.increase.Load() {
			w.searchAgainCounter++
		}

		for w.pvIdx = 0; w.pvIdx < multiPV && !p.stop.Load(); w.pvIdx++ {
			w.selDepth = 0

			rm := &w.rootMoves[w.pvIdx]
			avg := rm.AvgValue
			if avg == -ValueInfinite {
				avg = 0
			}
			delta := Value(10 + int(abs64(rm.MeanSquaredScore)/44420))
			alpha := max(avg-delta, -ValueInfinite)
			beta := min(avg+delta, ValueInfinite)

			w.optimism[us] = 99 * avg / (abs(avg) + 92)
			w.optimism[us.Other()] = -w.optimism[us]

			failedHighCnt := 0
			for {
				adjustedDepth := max(1, w.rootDepth-failedHighCnt-3*(w.searchAgainCounter+1)/4)
				w.rootDelta = beta - alpha
				v := w.search(pos, stackOffset, alpha, beta, adjustedDepth, false, nodeRoot)

				w.sortRootMoves(w.pvIdx)

				if p.stop.Load() {
					break
				}

				if w.isMain() && multiPV == 1 && (v <= alpha || v >= beta) &&
					p.tm.Elapsed() > 3*time.Second {
					w.report(v, alpha, beta)
				}

				if v <= alpha {
					beta = (alpha + beta) / 2
					alpha = max(v-delta, -ValueInfinite)
					failedHighCnt = 0
				} else if v >= beta {
					beta = min(v+delta, ValueInfinite)
					failedHighCnt++
				} else {
					break
				}
				delta += delta / 3
			}

			w.sortRootMoves(0)

			if w.isMain() && (p.stop.Load() || w.pvIdx+1 == multiPV || p.tm.Elapsed() > 3*time.Second) {
				w.report(w.rootMoves[w.pvIdx].Value, -ValueInfinite, ValueInfinite)
			}
		}

		if !p.stop.Load() {
			w.completedDepth = w.rootDepth
		}

		// Track when the best move last changed; stability shortens
		// the budget.
		if w.rootMoves[0].Move != w.lastBestMove {
			w.lastBestMove = w.rootMoves[0].Move
			w.lastBestMoveDepth = w.rootDepth
		}
		if w.rootMoves[0].Value > lastBestValue || len(lastBestPV) == 0 ||
			w.rootMoves[0].Move != lastBestPV[0] {
			lastBestPV = append(lastBestPV[:0], w.rootMoves[0].PV...)
			lastBestValue = w.rootMoves[0].Value
		}

		if p.limits.Mate > 0 && IsWin(w.rootMoves[0].Value) &&
			ValueMate-w.rootMoves[0].Value <= 2*p.limits.Mate {
			p.stop.Store(true)
		}

		if !w.isMain() {
			continue
		}
		if p.limits.Infinite || p.limits.MoveTime > 0 || p.limits.Depth > 0 ||
			p.limits.Nodes > 0 {
			continue
		}
		if !p.limits.UseTimeManagement(us) {
			continue
		}

		for _, hw := range p.workers {
			totBestMoveChanges += hw.bestMoveChanges
			hw.bestMoveChanges = 0
		}

		bestValue := w.rootMoves[0].Value
		prevAvg := w.rootMoves[0].AvgValue
		fallingEval := (86.0 + 14.0*float64(prevAvg-bestValue) +
			4.0*float64(iterValue[w.completedDepth%4]-bestValue)) / 566.87
		fallingEval = math.Max(0.62, math.Min(1.76, fallingEval))

		timeReduction := 0.63
		if w.lastBestMoveDepth+12 < w.completedDepth {
			timeReduction = 1.59
		}
		reduction := (1.91 + w.prevTimeReduction) / (3.17 * timeReduction)
		instability := 0.87 + 1.62*totBestMoveChanges/float64(len(p.workers))

		totalTime := float64(p.tm.Optimum().Milliseconds()) *
			fallingEval * reduction * instability
		if len(w.rootMoves) == 1 {
			totalTime = math.Min(500, totalTime)
		}
		elapsed := float64(p.tm.Elapsed().Milliseconds())

		nodesEffort := int64(0)
		if n := w.nodes.Load(); n > 0 {
			nodesEffort = w.rootMoves[0].Effort * 144 / n
		}
		if w.completedDepth >= 9 && nodesEffort >= 111 &&
			elapsed > totalTime*0.73 && !p.ponder.Load() {
			p.stop.Store(true)
		}

		if elapsed > totalTime {
			if p.ponder.Load() {
				// Keep searching while pondering; stop on ponderhit.
			} else {
				p.stop.Store(true)
			}
			w.prevTimeReduction = timeReduction
		}
		p.increase.Store(p.ponder.Load() || elapsed <= totalTime*0.279)

		iterValue[w.completedDepth%4] = bestValue
	}

	if len(lastBestPV) > 0 && w.rootMoves[0].Move != lastBestPV[0] {
		// Restore the last fully searched result if the final
		// iteration was aborted mid-move.
		for i := range w.rootMoves {
			if w.rootMoves[i].Move == lastBestPV[0] {
				w.rootMoves[0], w.rootMoves[i] = w.rootMoves[i], w.rootMoves[0]
				w.rootMoves[0].PV = append([]board.Move(nil), lastBestPV...)
				w.rootMoves[0].Value = lastBestValue
				break
			}
		}
	}

	// The main worker winding down releases the helpers.
	if w.isMain() {
		p.stop.Store(true)
	}
}

func (w *Worker) sortRootMoves(from int) {
	rms := w.rootMoves[from:]
	sort.SliceStable(rms, func(i, j int) bool {
		if rms[i].Value != rms[j].Value {
			return rms[i].Value > rms[j].Value
		}
		return rms[i].PrevValue > rms[j].PrevValue
	})
}

func (w *Worker) report(v, alpha, beta Value) {
	p := w.pool
	if p.info == nil {
		return
	}
	rm := &w.rootMoves[w.pvIdx]
	bound := BoundExact
	if v <= alpha {
		bound = BoundUpper
	} else if v >= beta {
		bound = BoundLower
	}
	nodes := p.Nodes()
	elapsed := p.tm.Elapsed()
	nps := int64(0)
	if ms := elapsed.Milliseconds(); ms > 0 {
		nps = nodes * 1000 / ms
	}
	p.info(SearchInfo{
		Depth:    w.rootDepth,
		SelDepth: rm.SelDepth,
		MultiPV:  w.pvIdx + 1,
		Value:    v,
		Bound:    bound,
		Nodes:    nodes,
		NPS:      nps,
		Hashfull: p.tt.Hashfull(),
		Time:     elapsed,
		PV:       rm.PV,
	})
}

// search is the main alpha-beta recursion.
func (w *Worker) search(pos *board.Position, ss int, alpha, beta Value, depth int, cutNode bool, nt nodeType) Value {
	pvNode := nt != nodeNonPV
	rootNode := nt == nodeRoot
	e := &w.stack[ss]
	ply := e.ply

	if depth <= 0 {
		return w.qsearch(pos, ss, alpha, beta, pvNode)
	}
	depth = min(depth, MaxPly-1)

	w.nodes.Add(1)
	w.checkTime()

	e.inCheck = pos.InCheck()
	e.moveCount = 0
	e.cutoffCnt = 0
	w.stack[ss+1].cutoffCnt = 0
	w.stack[ss+2].cutoffCnt = 0
	if pvNode && w.selDepth < ply+1 {
		w.selDepth = ply + 1
	}

	if !rootNode {
		if w.pool.stop.Load() || ply >= MaxPly {
			if ply >= MaxPly && !e.inCheck {
				return evaluate(w.pool.eval, pos, w.optimism[pos.SideToMove])
			}
			return w.drawValue()
		}

		// Rule adjudication: repetition, perpetual check, 60-move rule.
		switch pos.RuleJudge() {
		case board.ResultDraw:
			return w.drawValue()
		case board.ResultWin:
			return MateIn(ply + 1)
		case board.ResultLoss:
			return MatedIn(ply)
		}

		// Mate distance pruning.
		alpha = max(alpha, MatedIn(ply))
		beta = min(beta, MateIn(ply+1))
		if alpha >= beta {
			return alpha
		}
	}

	e.statScore = 0
	excluded := e.excludedMove

	// Transposition table lookup.
	posKey := pos.Hash
	ttd, ttHit, ttw := w.pool.tt.Probe(posKey)
	e.ttHit = ttHit
	ttValue := ValueNone
	if ttHit {
		ttValue = valueFromTT(ttd.Value, ply, pos.Rule60)
	}
	ttMove := board.NoMove
	if rootNode {
		ttMove = w.rootMoves[w.pvIdx].PV[0]
	} else if ttHit {
		ttMove = ttd.Move
	}
	ttCapture := ttMove.IsOK() && pos.IsCapture(ttMove)
	if excluded == board.NoMove {
		e.ttPv = pvNode || (ttHit && ttd.IsPV)
	}

	// TT cutoff for non-PV nodes, disabled near the 120-ply horizon.
	if !pvNode && excluded == board.NoMove && ttValue != ValueNone &&
		ttd.Depth > depth-(b2i(ttValue <= beta)) && pos.Rule60 < 110 &&
		boundCovers(ttd.Bound, ttValue, beta) {
		if ttMove.IsOK() && ttValue >= beta {
			if !ttCapture {
				w.updateQuietStats(pos, ss, ttMove, statBonus(depth)*747/1024)
			}
			prev := w.stack[ss-1]
			if prev.moveCount <= 2 && prev.currentMove.IsOK() && !prev.wasCapture {
				w.updateContinuationHistories(ss-1, prev.movedPiece,
					prev.currentMove.To(), -statMalus(depth+1)*1091/1024)
			}
		}
		return ttValue
	}

	us := pos.SideToMove
	var unadjustedStaticEval, eval, probCutBeta Value
	improving := false
	opponentWorsening := false
	correctionVal := 0

	if e.inCheck {
		e.staticEval = ValueNone
		eval = ValueNone
		unadjustedStaticEval = ValueNone
		improving = false
		goto movesLoop
	}

	if excluded != board.NoMove {
		unadjustedStaticEval = e.staticEval
		eval = e.staticEval
		correctionVal = w.correctionValue(pos, ss)
	} else if ttHit {
		unadjustedStaticEval = ttd.Eval
		if unadjustedStaticEval == ValueNone {
			unadjustedStaticEval = evaluate(w.pool.eval, pos, w.optimism[us])
		}
		correctionVal = w.correctionValue(pos, ss)
		eval = toCorrected(unadjustedStaticEval, correctionVal)
		e.staticEval = eval
		if ttValue != ValueNone && boundCovers(ttd.Bound, ttValue, eval) {
			eval = ttValue
		}
	} else {
		unadjustedStaticEval = evaluate(w.pool.eval, pos, w.optimism[us])
		correctionVal = w.correctionValue(pos, ss)
		eval = toCorrected(unadjustedStaticEval, correctionVal)
		e.staticEval = eval
		ttw.Save(posKey, ValueNone, e.ttPv, BoundNone, DepthUnsearched,
			board.NoMove, unadjustedStaticEval)
	}

	// Reward quiet moves that raised the opponent's eval expectations.
	if prev := &w.stack[ss-1]; prev.currentMove.IsOK() &&
		prev.currentMove != board.NullMove && !prev.wasCapture &&
		prev.staticEval != ValueNone && e.staticEval != ValueNone {
		bonus := clamp(-17*(prev.staticEval+e.staticEval), -1024, 2058) + 332
		w.hist.main.Update(us.Other(), prev.currentMove, bonus*1340/1024)
		if prev.movedPiece.Type() != board.Pawn {
			w.hist.pawn.Update(pawnHistoryIndex(pos), prev.movedPiece,
				prev.currentMove.To(), bonus*1159/1024)
		}
	}

	if w.stack[ss-2].staticEval != ValueNone {
		improving = e.staticEval > w.stack[ss-2].staticEval
	}
	improving = improving || e.staticEval >= beta+113
	if prev := &w.stack[ss-1]; prev.staticEval != ValueNone {
		opponentWorsening = e.staticEval > -prev.staticEval
	}

	// Razoring: hopeless nodes drop straight to quiescence.
	if !pvNode && eval < alpha-1373-252*depth*depth {
		return w.qsearch(pos, ss, alpha-1, alpha, false)
	}

	// Futility: a comfortable margin above beta fails high at once.
	if !e.ttPv && depth < 16 && eval >= beta && eval < ValueMateInMaxPly &&
		(ttMove == board.NoMove || ttCapture) && beta > ValueMatedInMaxPly {
		futilityMult := 140 - 33*b2i(cutNode && !ttHit)
		margin := futilityMult*depth -
			b2i(improving)*futilityMult*2 -
			b2i(opponentWorsening)*futilityMult/3 +
			w.stack[ss-1].statScore/159 +
			b2i(e.staticEval == eval)*(40-abs(correctionVal)/131072)
		if eval-Value(margin) >= beta {
			return beta + (eval-beta)/3
		}
	}

	// Null move pruning.
	if cutNode && w.stack[ss-1].currentMove != board.NullMove &&
		eval >= beta && excluded == board.NoMove &&
		e.staticEval >= beta-8*depth+189 && beta > ValueMatedInMaxPly &&
		ply >= w.nmpMinPly && pos.MajorMaterial(us) > 0 {
		r := min((eval-beta)/254, 5) + depth/3 + 5
		e.currentMove = board.NullMove
		e.movedPiece = board.NoPiece
		e.wasCapture = false
		e.capturedPiece = board.NoPieceType
		e.contHist = &w.hist.cont[0][0][board.NoPiece][board.A0]
		undo := pos.MakeNullMove()
		nullValue := -w.search(pos, ss+1, -beta, -beta+1, depth-r, false, nodeNonPV)
		pos.UnmakeNullMove(undo)

		if nullValue >= beta && !IsWin(nullValue) {
			if w.nmpMinPly != 0 || depth < 15 {
				return nullValue
			}
			// Verification search at high depths.
			w.nmpMinPly = ply + 3*(depth-r)/4
			v := w.search(pos, ss, beta-1, beta, depth-r, false, nodeNonPV)
			w.nmpMinPly = 0
			if v >= beta {
				return nullValue
			}
		}
	}

	// Internal iterative reductions.
	if pvNode && ttMove == board.NoMove {
		depth -= 2
	}
	if depth <= 0 {
		return w.qsearch(pos, ss, alpha, beta, true)
	}
	if cutNode && depth >= 7 &&
		(ttMove == board.NoMove || ttd.Bound == BoundUpper) {
		depth -= 1 + b2i(ttMove == board.NoMove)
	}

	// ProbCut: a shallow search on good captures proving a score well
	// above beta.
	probCutBeta = beta + 234 - 66*b2i(improving)
	if depth > 4 && !IsDecisive(beta) &&
		!(ttValue != ValueNone && ttd.Depth >= depth-3 && ttValue < probCutBeta) {
		mp := newProbcutPicker(w, pos, ttMove, probCutBeta-e.staticEval)
		for m := mp.next(); m != board.NoMove; m = mp.next() {
			if m == excluded || !pos.Legal(m) {
				continue
			}
			pc := pos.MovedPiece(m)
			captured := pos.PieceAt(m.To()).Type()
			e.currentMove = m
			e.movedPiece = pc
			e.wasCapture = true
			e.capturedPiece = captured
			e.contHist = &w.hist.cont[b2i(e.inCheck)][1][pc][m.To()]
			undo := pos.MakeMove(m)
			value := -w.qsearch(pos, ss+1, -probCutBeta, -probCutBeta+1, false)
			if value >= probCutBeta {
				value = -w.search(pos, ss+1, -probCutBeta, -probCutBeta+1, depth-4, !cutNode, nodeNonPV)
			}
			pos.UnmakeMove(m, undo)
			if value >= probCutBeta {
				w.hist.capture.Update(pc, m.To(), captured, statBonus(depth-2))
				if !IsDecisive(value) {
					ttw.Save(posKey, Value(valueToTT(value, ply)), e.ttPv, BoundLower,
						depth-3, m, unadjustedStaticEval)
					return value - (probCutBeta - beta)
				}
			}
		}
	}

	// Small ProbCut against a proven lower bound in the table.
	probCutBeta = beta + 441
	if ttd.Bound&BoundLower != 0 && ttd.Depth >= depth-4 &&
		ttValue != ValueNone && ttValue >= probCutBeta &&
		!IsDecisive(beta) && !IsDecisive(ttValue) {
		return probCutBeta
	}

movesLoop:
	contHist := [2]*PieceToHistory{
		w.stack[ss-1].contHist,
		w.stack[ss-2].contHist,
	}
	mp := newMovePicker(w, pos, ttMove, depth, ply, contHist)

	bestValue := -ValueInfinite
	bestMove := board.NoMove
	value := bestValue
	moveCount := 0
	var quietsSearched, capturesSearched []board.Move

	for m := mp.next(); m != board.NoMove; m = mp.next() {
		if m == excluded {
			continue
		}
		if rootNode && !w.rootMoveAllowed(m) {
			continue
		}
		if !rootNode && !pos.Legal(m) {
			continue
		}

		moveCount++
		e.moveCount = moveCount

		capture := pos.IsCapture(m)
		pc := pos.MovedPiece(m)
		givesCheck := pos.GivesCheck(m)
		newDepth := depth - 1

		delta := beta - alpha
		r := w.reduction(improving, depth, moveCount, delta)

		// Pruning at shallow depth.
		if !rootNode && pos.MajorMaterial(us) > 0 && !IsLoss(bestValue) {
			if moveCount >= (3+depth*depth)/(2-b2i(improving)) {
				mp.skipQuiets = true
			}

			lmrDepth := newDepth - r/1054

			if capture || givesCheck {
				captured := pos.PieceAt(m.To()).Type()
				capHist := w.hist.capture.Get(pc, m.To(), captured)

				if !givesCheck && lmrDepth < 18 && !e.inCheck {
					futilityValue := e.staticEval + 332 + 371*lmrDepth +
						Value(board.PieceValue[captured]) + Value(capHist/5)
					if futilityValue <= alpha {
						continue
					}
				}

				seeHist := clamp(capHist/28, -243*depth, 179*depth)
				if !pos.SeeGe(m, -275*depth-seeHist) {
					continue
				}
			} else {
				history := contHist[0].Get(pc, m.To()) +
					contHist[1].Get(pc, m.To()) +
					w.hist.pawn.Get(pawnHistoryIndex(pos), pc, m.To())

				if history < -3190*depth {
					continue
				}
				history += 2 * w.hist.main.Get(us, m)
				lmrDepth += history / 3718

				margin := Value(96)
				if bestValue < e.staticEval-45 {
					margin = 215
				}
				futilityValue := e.staticEval + margin + Value(120*lmrDepth)
				if !e.inCheck && lmrDepth < 10 && futilityValue <= alpha {
					if bestValue <= futilityValue && !IsDecisive(bestValue) &&
						!IsWin(futilityValue) {
						bestValue = futilityValue
					}
					continue
				}
				lmrDepth = max(lmrDepth, 0)
				if !pos.SeeGe(m, -36*lmrDepth*lmrDepth) {
					continue
				}
			}
		}

		// Singular extension search: is the TT move much better than
		// all alternatives?
		extension := 0
		if !rootNode && m == ttMove && excluded == board.NoMove &&
			depth >= 4-b2i(w.completedDepth > 32)+b2i(e.ttPv) &&
			ttValue != ValueNone && !IsDecisive(ttValue) &&
			ttd.Bound&BoundLower != 0 && ttd.Depth >= depth-3 {
			singularBeta := ttValue - Value(41+73*b2i(e.ttPv && !pvNode))*depth/76
			singularDepth := newDepth / 2

			e.excludedMove = m
			v := w.search(pos, ss, singularBeta-1, singularBeta, singularDepth, cutNode, nodeNonPV)
			e.excludedMove = board.NoMove

			if v < singularBeta {
				doubleMargin := 246*b2i(pvNode) - 108*b2i(!ttCapture)
				tripleMargin := 132 + 334*b2i(pvNode) - 279*b2i(!ttCapture) + 68*b2i(e.ttPv)
				extension = 1 + b2i(v < singularBeta-Value(doubleMargin)) +
					b2i(v < singularBeta-Value(tripleMargin))
				depth += b2i(!pvNode && depth < 20)
			} else if v >= beta && !IsDecisive(v) {
				// Multi-cut: several moves beat beta already.
				return v
			} else if ttValue >= beta {
				extension = -3
			} else if cutNode {
				extension = -2
			}
		} else if pvNode && capture &&
			m.To() == w.stack[ss-1].currentMove.To() &&
			w.hist.capture.Get(pc, m.To(), pos.PieceAt(m.To()).Type()) > 5255 {
			extension = 1
		}

		newDepth += extension

		capturedType := pos.PieceAt(m.To()).Type()
		e.currentMove = m
		e.movedPiece = pc
		e.wasCapture = capture
		e.capturedPiece = capturedType
		e.contHist = &w.hist.cont[b2i(e.inCheck)][b2i(capture)][pc][m.To()]
		nodesBefore := w.nodes.Load()
		w.pool.tt.Prefetch(pos.KeyAfter(m))
		undo := pos.MakeMove(m)

		// Late move reductions.
		if e.ttPv {
			r -= 1024 + b2i(ttValue != ValueNone && ttValue > alpha)*1024 +
				b2i(ttHit && ttd.Depth >= depth)*1024
		}
		if pvNode {
			r -= 1024
		}
		r += 330
		r -= abs(correctionVal) / 32768
		if cutNode {
			r += 3179 - 949*b2i(ttHit && ttd.Depth >= depth && ttd.IsPV)
		}
		if ttCapture && !capture {
			r += 1401 + 1471*b2i(depth < 8)
		}
		if w.stack[ss+1].cutoffCnt > 3 {
			r += 1332 + 959*b2i(!pvNode && !cutNode)
		} else if m == ttMove {
			r -= 2775
		}
		if capture {
			e.statScore = 7*board.PieceValue[capturedType] +
				w.hist.capture.Get(pc, m.To(), capturedType) - 5000
		} else {
			e.statScore = 2*w.hist.main.Get(us, m) +
				contHist[0].Get(pc, m.To()) +
				contHist[1].Get(pc, m.To()) - 4241
		}
		r -= e.statScore * 2652 / 18912

		if depth >= 2 && moveCount > 1 {
			d := max(1, min(newDepth-r/1024,
				newDepth+b2i(cutNode || pvNode)+b2i(pvNode && bestMove == board.NoMove)))
			value = -w.search(pos, ss+1, -(alpha + 1), -alpha, d, true, nodeNonPV)

			if value > alpha && d < newDepth {
				doDeeper := value > bestValue+58+2*newDepth
				doShallower := value < bestValue+8
				newDepth += b2i(doDeeper) - b2i(doShallower)
				if newDepth > d {
					value = -w.search(pos, ss+1, -(alpha + 1), -alpha, newDepth, !cutNode, nodeNonPV)
				}
				if value >= beta {
					w.updateContinuationHistories(ss, pc, m.To(), 2048)
				}
			}
		} else if !pvNode || moveCount > 1 {
			if ttMove == board.NoMove {
				r += 1744
			}
			value = -w.search(pos, ss+1, -(alpha + 1), -alpha,
				newDepth-b2i(r > 4047), !cutNode, nodeNonPV)
		}

		if pvNode && (moveCount == 1 || value > alpha) {
			w.stack[ss+1].pv = w.stack[ss+1].pv[:0]
			value = -w.search(pos, ss+1, -beta, -alpha, newDepth, false, nodePV)
		}

		pos.UnmakeMove(m, undo)

		if w.pool.stop.Load() {
			return ValueZero
		}

		if rootNode {
			rm := w.findRootMove(m)
			rm.Effort += w.nodes.Load() - nodesBefore
			if moveCount == 1 || value > alpha {
				rm.Value = value
				rm.SelDepth = w.selDepth
				if rm.AvgValue == -ValueInfinite {
					rm.AvgValue = value
				} else {
					rm.AvgValue = (2*value + rm.AvgValue) / 3
				}
				rm.MeanSquaredScore = (int64(value)*int64(abs(value)) + rm.MeanSquaredScore) / 2
				rm.PV = rm.PV[:1]
				rm.PV = append(rm.PV, w.stack[ss+1].pv...)
				if moveCount > 1 && w.pvIdx == 0 {
					w.bestMoveChanges++
				}
			} else {
				rm.Value = -ValueInfinite
			}
		}

		if value > bestValue {
			bestValue = value
			if value > alpha {
				bestMove = m
				if pvNode && !rootNode {
					w.updatePV(ss, m)
				}
				if value >= beta {
					e.cutoffCnt += b2i(ttMove == board.NoMove) + b2i(extension < 2)
					break
				}
				if depth > 2 && depth < 10 && !IsDecisive(value) {
					depth -= 2
				}
				alpha = value
			}
		}

		if m != bestMove && moveCount <= 32 {
			if capture {
				capturesSearched = append(capturesSearched, m)
			} else {
				quietsSearched = append(quietsSearched, m)
			}
		}
	}

	if moveCount == 0 {
		// No legal moves: checkmate or stalemate, both losses here.
		if excluded != board.NoMove {
			return alpha
		}
		return MatedIn(ply)
	}

	if bestValue >= beta && !IsDecisive(bestValue) &&
		!IsDecisive(alpha) && !IsDecisive(beta) {
		bestValue = (bestValue*depth + beta) / (depth + 1)
	}

	if bestMove != board.NoMove {
		w.updateAllStats(pos, ss, bestMove, quietsSearched, capturesSearched, depth)
	} else if prev := &w.stack[ss-1]; prev.currentMove.IsOK() && !prev.wasCapture {
		// Fail low: reward the quiet move that led here.
		scaledBonus := bonusScale(w, ss, depth, pvNode || cutNode, bestValue)
		w.updateContinuationHistories(ss-1, prev.movedPiece, prev.currentMove.To(),
			scaledBonus*416/32768)
		w.hist.main.Update(us.Other(), prev.currentMove, scaledBonus*212/32768)
		if prev.movedPiece.Type() != board.Pawn {
			w.hist.pawn.Update(pawnHistoryIndex(pos), prev.movedPiece,
				prev.currentMove.To(), scaledBonus*1073/32768)
		}
	} else if prev.currentMove.IsOK() && prev.wasCapture {
		// Fail low after a capture: reward it in the capture history.
		w.hist.capture.Update(prev.movedPiece, prev.currentMove.To(),
			prev.capturedPiece, statBonus(depth)*2)
	} else if ttMove != board.NoMove && (pvNode || cutNode) {
		w.hist.main.Update(us, ttMove, statBonus(depth)*287/1024)
	}

	if pvNode && bestValue > beta {
		bestValue = beta
	}

	if excluded == board.NoMove && !(rootNode && w.pvIdx > 0) {
		bound := BoundUpper
		if bestValue >= beta {
			bound = BoundLower
		} else if pvNode && bestMove != board.NoMove {
			bound = BoundExact
		}
		ttw.Save(posKey, Value(valueToTT(bestValue, ply)), e.ttPv, bound,
			depth, bestMove, unadjustedStaticEval)
	}

	// Update correction histories when the static eval missed.
	if !e.inCheck && (bestMove == board.NoMove || !pos.IsCapture(bestMove)) &&
		!(bestValue >= beta && bestValue <= e.staticEval) &&
		!(bestMove == board.NoMove && bestValue >= e.staticEval) {
		bonus := clamp((bestValue-e.staticEval)*depth/8,
			-corrHistoryLimit/4, corrHistoryLimit/4)
		w.updateCorrectionHistories(pos, ss, bonus)
	}

	return bestValue
}

// bonusScale weighs the fail-low refutation bonus by how surprising the
// fail low was.
func bonusScale(w *Worker, ss int, depth int, notAllNode bool, bestValue Value) int {
	e := &w.stack[ss]
	prev := &w.stack[ss-1]
	s := 184*b2i(depth > 6) + 80*b2i(notAllNode) +
		152*b2i(prev.moveCount > 11) +
		77*b2i(!e.inCheck && bestValue <= e.staticEval-157) +
		169*b2i(!prev.inCheck && bestValue <= -prev.staticEval-99)
	s += min(-prev.statScore/79, 234)
	return max(s, 0) * statBonus(depth)
}

func (w *Worker) rootMoveAllowed(m board.Move) bool {
	for i := w.pvIdx; i < len(w.rootMoves); i++ {
		if w.rootMoves[i].Move == m {
			return true
		}
	}
	return false
}

func (w *Worker) findRootMove(m board.Move) *RootMove {
	for i := range w.rootMoves {
		if w.rootMoves[i].Move == m {
			return &w.rootMoves[i]
		}
	}
	return nil
}

func (w *Worker) updatePV(ss int, m board.Move) {
	e := &w.stack[ss]
	e.pv = append(e.pv[:0], m)
	e.pv = append(e.pv, w.stack[ss+1].pv...)
}

// updateAllStats rewards the cutoff move and punishes the alternatives
// that were searched first.
func (w *Worker) updateAllStats(pos *board.Position, ss int, bestMove board.Move,
	quiets, captures []board.Move, depth int) {
	us := pos.SideToMove
	bonus := statBonus(depth)
	malus := statMalus(depth)

	if !pos.IsCapture(bestMove) {
		w.updateQuietStats(pos, ss, bestMove, bonus*1131/1024)
		for _, m := range quiets {
			w.hist.main.Update(us, m, -malus*1028/1024)
			w.updateContinuationHistories(ss, pos.MovedPiece(m), m.To(), -malus*1028/1024)
			w.hist.pawn.Update(pawnHistoryIndex(pos), pos.MovedPiece(m), m.To(), -malus*1028/1024)
		}
	} else {
		pc := pos.MovedPiece(bestMove)
		captured := pos.PieceAt(bestMove.To()).Type()
		w.hist.capture.Update(pc, bestMove.To(), captured, bonus*1291/1024)
	}

	// Extra penalty for an early prior quiet move that got refuted.
	prev := &w.stack[ss-1]
	if prev.currentMove.IsOK() && !prev.wasCapture &&
		prev.moveCount == 1+b2i(prev.ttHit) {
		w.updateContinuationHistories(ss-1, prev.movedPiece,
			prev.currentMove.To(), -malus*919/1024)
	}

	for _, m := range captures {
		pc := pos.MovedPiece(m)
		captured := pos.PieceAt(m.To()).Type()
		w.hist.capture.Update(pc, m.To(), captured, -malus*1090/1024)
	}
}

// updateQuietStats feeds a quiet cutoff into all ordering tables.
func (w *Worker) updateQuietStats(pos *board.Position, ss int, m board.Move, bonus int) {
	e := &w.stack[ss]
	us := pos.SideToMove
	pc := pos.MovedPiece(m)
	w.hist.main.Update(us, m, bonus)
	w.updateContinuationHistories(ss, pc, m.To(), bonus*853/1024)
	if e.ply < lowPlySize {
		w.hist.lowPly.Update(e.ply, m, bonus*874/1024)
	}
	if pc.Type() != board.Pawn {
		w.hist.pawn.Update(pawnHistoryIndex(pos), pc, m.To(), bonus*628/1024)
	}
}

// updateContinuationHistories writes a bonus through the continuation
// tables of the preceding plies.
func (w *Worker) updateContinuationHistories(ss int, pc board.Piece, to board.Square, bonus int) {
	offsets := [...]struct{ back, weight int }{
		{1, 1024}, {2, 571}, {3, 339}, {4, 500}, {6, 592},
	}
	inCheck := w.stack[ss].inCheck
	for _, o := range offsets {
		if inCheck && o.back > 2 {
			break
		}
		prev := &w.stack[ss-o.back]
		if prev.currentMove.IsOK() && prev.currentMove != board.NullMove {
			prev.contHist.Update(pc, to, bonus*o.weight/1024)
		}
	}
}

// qsearch resolves captures and checks until the position is quiet.
func (w *Worker) qsearch(pos *board.Position, ss int, alpha, beta Value, pvNode bool) Value {
	e := &w.stack[ss]
	ply := e.ply

	w.nodes.Add(1)
	w.checkTime()

	if pvNode {
		e.pv = e.pv[:0]
		if w.selDepth < ply+1 {
			w.selDepth = ply + 1
		}
	}

	if w.pool.stop.Load() || ply >= MaxPly {
		if ply >= MaxPly && !pos.InCheck() {
			return evaluate(w.pool.eval, pos, w.optimism[pos.SideToMove])
		}
		return w.drawValue()
	}

	switch pos.RuleJudge() {
	case board.ResultDraw:
		return w.drawValue()
	case board.ResultWin:
		return MateIn(ply + 1)
	case board.ResultLoss:
		return MatedIn(ply)
	}

	e.inCheck = pos.InCheck()

	posKey := pos.Hash
	ttd, ttHit, ttw := w.pool.tt.Probe(posKey)
	e.ttHit = ttHit
	ttValue := ValueNone
	if ttHit {
		ttValue = valueFromTT(ttd.Value, ply, pos.Rule60)
	}
	ttMove := board.NoMove
	if ttHit {
		ttMove = ttd.Move
	}
	pvHit := ttHit && ttd.IsPV

	if !pvNode && ttValue != ValueNone && ttd.Depth >= DepthQS &&
		boundCovers(ttd.Bound, ttValue, beta) {
		return ttValue
	}

	us := pos.SideToMove
	var bestValue, futilityBase Value
	unadjustedStaticEval := ValueNone

	if e.inCheck {
		bestValue = -ValueInfinite
		futilityBase = -ValueInfinite
		e.staticEval = ValueNone
	} else {
		if ttHit {
			unadjustedStaticEval = ttd.Eval
			if unadjustedStaticEval == ValueNone {
				unadjustedStaticEval = evaluate(w.pool.eval, pos, w.optimism[us])
			}
			bestValue = toCorrected(unadjustedStaticEval, w.correctionValue(pos, ss))
			e.staticEval = bestValue
			if ttValue != ValueNone && boundCovers(ttd.Bound, ttValue, bestValue) {
				bestValue = ttValue
			}
		} else {
			unadjustedStaticEval = evaluate(w.pool.eval, pos, w.optimism[us])
			bestValue = toCorrected(unadjustedStaticEval, w.correctionValue(pos, ss))
			e.staticEval = bestValue
		}

		// Stand pat.
		if bestValue >= beta {
			if !IsDecisive(bestValue) {
				bestValue = (3*bestValue + beta) / 4
			}
			if !ttHit {
				ttw.Save(posKey, Value(valueToTT(bestValue, ply)), false, BoundLower,
					DepthUnsearched, board.NoMove, unadjustedStaticEval)
			}
			return bestValue
		}
		if bestValue > alpha {
			alpha = bestValue
		}
		futilityBase = e.staticEval + 204
	}

	contHist := [2]*PieceToHistory{
		w.stack[ss-1].contHist,
		w.stack[ss-2].contHist,
	}
	mp := newMovePicker(w, pos, ttMove, DepthQS, ply, contHist)

	bestMove := board.NoMove
	moveCount := 0

	for m := mp.next(); m != board.NoMove; m = mp.next() {
		if !pos.Legal(m) {
			continue
		}
		moveCount++

		capture := pos.IsCapture(m)
		pc := pos.MovedPiece(m)
		givesCheck := pos.GivesCheck(m)

		if !IsLoss(bestValue) {
			// Futility on quiet-ish captures.
			if !givesCheck && m.To() != w.stack[ss-1].currentMove.To() &&
				!IsLoss(futilityBase) {
				if moveCount > 2 {
					continue
				}
				futilityValue := futilityBase + Value(pos.PieceAt(m.To()).Value())
				if futilityValue <= alpha {
					bestValue = max(bestValue, futilityValue)
					continue
				}
				if futilityBase <= alpha && !pos.SeeGe(m, 1) {
					bestValue = max(bestValue, futilityBase)
					continue
				}
				if futilityBase > alpha && !pos.SeeGe(m, (alpha-futilityBase)*4) {
					bestValue = alpha
					continue
				}
			}

			if !capture {
				history := contHist[0].Get(pc, m.To()) +
					contHist[1].Get(pc, m.To()) +
					w.hist.pawn.Get(pawnHistoryIndex(pos), pc, m.To())
				if history <= 3047 {
					continue
				}
			}

			if !pos.SeeGe(m, -102) {
				continue
			}
		}

		e.currentMove = m
		e.movedPiece = pc
		e.wasCapture = capture
		e.capturedPiece = pos.PieceAt(m.To()).Type()
		e.contHist = &w.hist.cont[b2i(e.inCheck)][b2i(capture)][pc][m.To()]
		w.pool.tt.Prefetch(pos.KeyAfter(m))
		undo := pos.MakeMove(m)
		value := -w.qsearch(pos, ss+1, -beta, -alpha, pvNode)
		pos.UnmakeMove(m, undo)

		if value > bestValue {
			bestValue = value
			if value > alpha {
				bestMove = m
				if pvNode {
					w.updatePV(ss, m)
				}
				if value >= beta {
					break
				}
				alpha = value
			}
		}
	}

	// Checkmate or ruled loss when in check with no moves.
	if e.inCheck && moveCount == 0 {
		return MatedIn(ply)
	}
	if bestValue >= beta && !IsDecisive(bestValue) {
		bestValue = (3*bestValue + beta) / 4
	}

	bound := BoundUpper
	if bestValue >= beta {
		bound = BoundLower
	}
	ttw.Save(posKey, Value(valueToTT(bestValue, ply)), pvHit, bound,
		DepthQS, bestMove, unadjustedStaticEval)

	return bestValue
}

// boundCovers reports whether a stored bound proves value relative to
// the probe threshold.
func boundCovers(b Bound, value, threshold Value) bool {
	if value >= threshold {
		return b&BoundLower != 0
	}
	return b&BoundUpper != 0
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
