package engine

import "github.com/hailam/xqplay/internal/board"

// movePicker yields moves in stages so the search usually cuts off
// before the expensive quiet generation and scoring run at all.

type pickStage int

const (
	stageMainTT pickStage = iota
	stageCaptureInit
	stageGoodCapture
	stageQuietInit
	stageGoodQuiet
	stageBadCapture
	stageBadQuiet

	stageEvasionTT
	stageEvasionInit
	stageEvasion

	stageProbcutTT
	stageProbcutInit
	stageProbcut

	stageQSearchTT
	stageQCaptureInit
	stageQCapture
)

type scoredMove struct {
	move  board.Move
	score int
}

type movePicker struct {
	pos       *board.Position
	w         *Worker
	ttMove    board.Move
	cont      [2]*PieceToHistory
	depth     int
	ply       int
	threshold int
	stage     pickStage

	cur, end    int
	endBadCap   int
	beginBadCap int
	skipQuiets  bool
	moves       [board.MaxMoves]scoredMove
}

// newMovePicker sets up the main or quiescence picker. A non-positive
// depth selects quiescence behavior.
func newMovePicker(w *Worker, pos *board.Position, ttMove board.Move, depth, ply int, cont [2]*PieceToHistory) *movePicker {
	mp := &movePicker{pos: pos, w: w, depth: depth, ply: ply, cont: cont}
	switch {
	case pos.InCheck():
		mp.stage = stageEvasionTT
	case depth > 0:
		mp.stage = stageMainTT
	default:
		mp.stage = stageQSearchTT
	}
	if ttMove.IsOK() && pseudoLegal(pos, ttMove) {
		mp.ttMove = ttMove
	} else {
		mp.stage++
	}
	return mp
}

// newProbcutPicker yields only captures whose static exchange clears
// the threshold.
func newProbcutPicker(w *Worker, pos *board.Position, ttMove board.Move, threshold int) *movePicker {
	mp := &movePicker{pos: pos, w: w, threshold: threshold, stage: stageProbcutTT}
	if ttMove.IsOK() && pos.IsCapture(ttMove) && pseudoLegal(pos, ttMove) && pos.SeeGe(ttMove, threshold) {
		mp.ttMove = ttMove
	} else {
		mp.stage++
	}
	return mp
}

// pseudoLegal is a cheap sanity check for moves coming out of the
// transposition table.
func pseudoLegal(pos *board.Position, m board.Move) bool {
	if !m.IsOK() {
		return false
	}
	pc := pos.PieceAt(m.From())
	if pc == board.NoPiece || pc.Color() != pos.SideToMove {
		return false
	}
	if target := pos.PieceAt(m.To()); target != board.NoPiece && target.Color() == pos.SideToMove {
		return false
	}
	return board.AttacksBB(pc.Type(), pc.Color(), m.From(), pos.AllOccupied).IsSet(m.To())
}

func (mp *movePicker) scoreCaptures(from, to int) {
	for i := from; i < to; i++ {
		m := mp.moves[i].move
		pc := mp.pos.MovedPiece(m)
		victim := mp.pos.PieceAt(m.To()).Type()
		mp.moves[i].score = 7*board.PieceValue[victim] +
			mp.w.hist.capture.Get(pc, m.To(), victim)
	}
}

func (mp *movePicker) scoreQuiets(from, to int) {
	pos := mp.pos
	us := pos.SideToMove
	pawnKey := pawnHistoryIndex(pos)
	for i := from; i < to; i++ {
		m := mp.moves[i].move
		pc := pos.MovedPiece(m)
		s := 2 * mp.w.hist.main.Get(us, m)
		s += mp.cont[0].Get(pc, m.To())
		s += mp.cont[1].Get(pc, m.To())
		s += mp.w.hist.pawn.Get(pawnKey, pc, m.To())
		if mp.ply < lowPlySize {
			s += 8 * mp.w.hist.lowPly.Get(mp.ply, m) / (1 + 2*mp.ply)
		}
		mp.moves[i].score = s
	}
}

func (mp *movePicker) scoreEvasions(from, to int) {
	pos := mp.pos
	us := pos.SideToMove
	for i := from; i < to; i++ {
		m := mp.moves[i].move
		if pos.IsCapture(m) {
			victim := pos.PieceAt(m.To()).Type()
			mp.moves[i].score = board.PieceValue[victim] + 1<<28
		} else {
			pc := pos.MovedPiece(m)
			mp.moves[i].score = mp.w.hist.main.Get(us, m) + mp.cont[0].Get(pc, m.To())
		}
	}
}

// bestOf swaps the highest scored remaining move into position cur.
func (mp *movePicker) bestOf(from, to int) {
	best := from
	for i := from + 1; i < to; i++ {
		if mp.moves[i].score > mp.moves[best].score {
			best = i
		}
	}
	mp.moves[from], mp.moves[best] = mp.moves[best], mp.moves[from]
}

func (mp *movePicker) fill(ml *board.MoveList, keepCaptures bool) {
	mp.cur = 0
	mp.end = 0
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if m == mp.ttMove {
			continue
		}
		if mp.pos.IsCapture(m) != keepCaptures {
			continue
		}
		mp.moves[mp.end] = scoredMove{move: m}
		mp.end++
	}
}

// next returns the following move, or NoMove when exhausted. Quiet
// stages are skipped entirely once skipQuiets is set.
func (mp *movePicker) next() board.Move {
	for {
		switch mp.stage {
		case stageMainTT, stageEvasionTT, stageQSearchTT, stageProbcutTT:
			mp.stage++
			return mp.ttMove

		case stageCaptureInit, stageQCaptureInit, stageProbcutInit:
			mp.fill(mp.pos.GenerateCaptures(), true)
			mp.scoreCaptures(0, mp.end)
			mp.beginBadCap = board.MaxMoves
			mp.endBadCap = board.MaxMoves
			mp.stage++

		case stageGoodCapture:
			for mp.cur < mp.end {
				mp.bestOf(mp.cur, mp.end)
				sm := mp.moves[mp.cur]
				mp.cur++
				if mp.pos.SeeGe(sm.move, -sm.score/18) {
					return sm.move
				}
				// Park losing captures at the tail for later.
				mp.beginBadCap--
				mp.moves[mp.beginBadCap] = sm
			}
			mp.stage = stageQuietInit

		case stageQuietInit:
			if mp.skipQuiets {
				mp.stage = stageBadCapture
				continue
			}
			mp.fill(mp.pos.GeneratePseudoLegalMoves(), false)
			mp.scoreQuiets(0, mp.end)
			mp.stage++

		case stageGoodQuiet:
			if !mp.skipQuiets && mp.cur < mp.end {
				mp.bestOf(mp.cur, mp.end)
				if mp.moves[mp.cur].score > -14000 {
					m := mp.moves[mp.cur].move
					mp.cur++
					return m
				}
				// The remainder are bad quiets, tried after the
				// losing captures.
			}
			mp.stage = stageBadCapture

		case stageBadCapture:
			if mp.beginBadCap < mp.endBadCap {
				m := mp.moves[mp.beginBadCap].move
				mp.beginBadCap++
				return m
			}
			mp.stage = stageBadQuiet

		case stageBadQuiet:
			for !mp.skipQuiets && mp.cur < mp.end {
				m := mp.moves[mp.cur].move
				mp.cur++
				return m
			}
			return board.NoMove

		case stageEvasionInit:
			mp.fillEvasions()
			mp.scoreEvasions(0, mp.end)
			mp.stage++

		case stageEvasion:
			if mp.cur < mp.end {
				mp.bestOf(mp.cur, mp.end)
				m := mp.moves[mp.cur].move
				mp.cur++
				return m
			}
			return board.NoMove

		case stageProbcut:
			for mp.cur < mp.end {
				mp.bestOf(mp.cur, mp.end)
				m := mp.moves[mp.cur].move
				mp.cur++
				if mp.pos.SeeGe(m, mp.threshold) {
					return m
				}
			}
			return board.NoMove

		case stageQCapture:
			if mp.cur < mp.end {
				mp.bestOf(mp.cur, mp.end)
				m := mp.moves[mp.cur].move
				mp.cur++
				return m
			}
			return board.NoMove
		}
	}
}

func (mp *movePicker) fillEvasions() {
	ml := mp.pos.GeneratePseudoLegalMoves()
	mp.cur = 0
	mp.end = 0
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if m == mp.ttMove {
			continue
		}
		mp.moves[mp.end] = scoredMove{move: m}
		mp.end++
	}
}
