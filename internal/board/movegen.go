package board

// GenerateLegalMoves generates all legal moves for the position.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml, Bitboard{}.Not())
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave
// the king in check or generals facing).
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml, Bitboard{}.Not())
	return ml
}

// GenerateCaptures generates pseudo-legal capture moves only.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml, p.Occupied[p.SideToMove.Other()])
	return ml
}

// generateAllMoves generates pseudo-legal moves whose destination lies in
// target. Passing the full board yields all moves, passing the enemy
// occupancy yields captures.
func (p *Position) generateAllMoves(ml *MoveList, target Bitboard) {
	us := p.SideToMove
	occupied := p.AllOccupied
	target = target.AndNot(p.Occupied[us])

	// Rook moves
	rooks := p.Pieces[us][Rook]
	for rooks.Any() {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied).And(target)
		for attacks.Any() {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}

	// Cannon moves
	cannons := p.Pieces[us][Cannon]
	for cannons.Any() {
		from := cannons.PopLSB()
		attacks := CannonAttacks(from, occupied).And(target)
		for attacks.Any() {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}

	// Knight moves
	knights := p.Pieces[us][Knight]
	for knights.Any() {
		from := knights.PopLSB()
		attacks := KnightAttacks(from, occupied).And(target)
		for attacks.Any() {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}

	// Bishop moves
	bishops := p.Pieces[us][Bishop]
	for bishops.Any() {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied).And(target)
		for attacks.Any() {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}

	// Advisor moves
	advisors := p.Pieces[us][Advisor]
	for advisors.Any() {
		from := advisors.PopLSB()
		attacks := AdvisorAttacks(from).And(target)
		for attacks.Any() {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}

	// Pawn moves
	pawns := p.Pieces[us][Pawn]
	for pawns.Any() {
		from := pawns.PopLSB()
		attacks := PawnAttacks(us, from).And(target)
		for attacks.Any() {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}

	// King moves
	from := p.KingSquare[us]
	attacks := KingAttacks(from).And(target)
	for attacks.Any() {
		ml.Add(NewMove(from, attacks.PopLSB()))
	}
}

// filterLegalMoves removes the moves that leave the own king attacked or
// the generals facing.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()
	for i := 0; i < ml.Len(); i++ {
		if m := ml.Get(i); p.Legal(m) {
			result.Add(m)
		}
	}
	return result
}

// HasLegalMoves returns true if the side to move has any legal move.
func (p *Position) HasLegalMoves() bool {
	ml := p.GeneratePseudoLegalMoves()
	for i := 0; i < ml.Len(); i++ {
		if p.Legal(ml.Get(i)) {
			return true
		}
	}
	return false
}

// IsCheckmate returns true if the side to move is in check with no legal
// moves. In xiangqi stalemate is also a loss, so IsMated covers both.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsMated returns true if the side to move has no legal moves. Unlike
// chess, a stalemated side loses.
func (p *Position) IsMated() bool {
	return !p.HasLegalMoves()
}

// SeeGe returns true if the static exchange evaluation of the move is
// at least the given threshold. Cannon attacks depend on screens, so the
// cannon attacker set is rebuilt from scratch after every removal while
// rook and knight attackers are only ever revealed, never lost.
func (p *Position) SeeGe(m Move, threshold int) bool {
	from, to := m.From(), m.To()

	swap := p.Board[to].Value() - threshold
	if swap < 0 {
		return false
	}

	swap = p.Board[from].Value() - swap
	if swap <= 0 {
		return true
	}

	occ := p.AllOccupied.Clear(from).Set(to)
	stm := p.SideToMove
	attackers := p.attackersTo(to, occ)

	allCannons := p.Pieces[White][Cannon].Or(p.Pieces[Black][Cannon])
	allRooks := p.Pieces[White][Rook].Or(p.Pieces[Black][Rook])
	allKnights := p.Pieces[White][Knight].Or(p.Pieces[Black][Knight])

	res := 1

	for {
		stm = stm.Other()
		attackers = attackers.And(occ)

		stmAttackers := attackers.And(p.Occupied[stm])
		if stmAttackers.IsEmpty() {
			break
		}

		res ^= 1

		// Locate and remove the next least valuable attacker, then
		// refresh the attacker set for the changed occupancy.
		var bb Bitboard
		if bb = stmAttackers.And(p.Pieces[stm][Pawn]); bb.Any() {
			if swap = PieceValue[Pawn] - swap; swap < res {
				break
			}
			occ = occ.Clear(bb.LSB())
		} else if bb = stmAttackers.And(p.Pieces[stm][Bishop]); bb.Any() {
			if swap = PieceValue[Bishop] - swap; swap < res {
				break
			}
			occ = occ.Clear(bb.LSB())
		} else if bb = stmAttackers.And(p.Pieces[stm][Advisor]); bb.Any() {
			if swap = PieceValue[Advisor] - swap; swap < res {
				break
			}
			occ = occ.Clear(bb.LSB())
		} else if bb = stmAttackers.And(p.Pieces[stm][Knight]); bb.Any() {
			if swap = PieceValue[Knight] - swap; swap < res {
				break
			}
			occ = occ.Clear(bb.LSB())
		} else if bb = stmAttackers.And(p.Pieces[stm][Cannon]); bb.Any() {
			if swap = PieceValue[Cannon] - swap; swap < res {
				break
			}
			occ = occ.Clear(bb.LSB())
		} else if bb = stmAttackers.And(p.Pieces[stm][Rook]); bb.Any() {
			if swap = PieceValue[Rook] - swap; swap < res {
				break
			}
			occ = occ.Clear(bb.LSB())
		} else {
			// King takes. Legal only if the opponent has no attacker
			// left, which flips the result one last time.
			if attackers.AndNot(p.Occupied[stm]).Any() {
				res ^= 1
			}
			return res != 0
		}

		attackers = attackers.AndNot(allCannons).
			Or(RookAttacks(to, occ).And(allRooks)).
			Or(KnightToAttacks(to, occ).And(allKnights)).
			Or(CannonAttacks(to, occ).And(allCannons))
	}

	return res != 0
}
