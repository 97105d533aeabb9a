package board

import "fmt"

// Position represents a complete xiangqi position.
type Position struct {
	// Piece bitboards: [Color][PieceType]
	Pieces [2][PieceTypeNB]Bitboard

	// Occupancy bitboards (cached for efficiency)
	Occupied    [2]Bitboard // All pieces of each color
	AllOccupied Bitboard    // All pieces on the board

	// Mailbox for O(1) piece lookup
	Board [SquareNB]Piece

	// Game state
	SideToMove Color
	Rule60     int // Plies since the last capture (120 plies = 60 moves)
	GamePly    int
	FullMove   int

	// Zobrist hash for the transposition table
	Hash uint64

	// Partial keys over piece subsets, used by the correction histories.
	PawnKey    uint64
	MajorKey   uint64
	MinorKey   uint64
	NonPawnKey [2]uint64

	// King positions (cached for check detection)
	KingSquare [2]Square

	// Checkers bitboard (pieces giving check to the side to move)
	Checkers Bitboard

	// Plies since the last null move; bounds repetition scans.
	PliesFromNull int

	// Keys of prior positions for repetition detection. Each entry also
	// remembers whether the side to move was in check there.
	history []histEntry
}

type histEntry struct {
	key   uint64
	check bool
}

// Undo stores per-move scratch state for UnmakeMove.
type Undo struct {
	Hash          uint64
	Rule60        int
	PliesFromNull int
	Captured      Piece
	Checkers      Bitboard
}

// GameResult classifies a rule-terminal position for the side to move.
type GameResult int

const (
	ResultNone GameResult = iota
	ResultDraw
	ResultWin
	ResultLoss
)

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, _ := ParseFEN(StartFEN)
	return pos
}

// Copy creates a deep copy of the position.
func (p *Position) Copy() *Position {
	newPos := *p
	newPos.history = append([]histEntry(nil), p.history...)
	return &newPos
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	return p.Board[sq]
}

// IsEmpty returns true if the square is empty.
func (p *Position) IsEmpty(sq Square) bool {
	return p.Board[sq] == NoPiece
}

// xorKeys toggles the partial keys affected by a piece on a square. XOR is
// its own inverse, so the same call serves placement and removal.
func (p *Position) xorKeys(c Color, pt PieceType, sq Square) {
	key := zobristPiece[c][pt][sq]
	switch pt {
	case Pawn:
		p.PawnKey ^= key
	case Rook, Cannon, Knight:
		p.MajorKey ^= key
		p.NonPawnKey[c] ^= key
	case Advisor, Bishop:
		p.MinorKey ^= key
		p.NonPawnKey[c] ^= key
	case King:
		p.MajorKey ^= key
		p.MinorKey ^= key
		p.NonPawnKey[c] ^= key
	}
}

// setPiece places a piece on a square (does not update hash).
func (p *Position) setPiece(piece Piece, sq Square) {
	if piece == NoPiece {
		return
	}
	c := piece.Color()
	pt := piece.Type()
	p.xorKeys(c, pt, sq)

	p.Pieces[c][pt] = p.Pieces[c][pt].Set(sq)
	p.Occupied[c] = p.Occupied[c].Set(sq)
	p.AllOccupied = p.AllOccupied.Set(sq)
	p.Board[sq] = piece

	if pt == King {
		p.KingSquare[c] = sq
	}
}

// removePiece removes a piece from a square (does not update hash).
func (p *Position) removePiece(sq Square) Piece {
	piece := p.Board[sq]
	if piece == NoPiece {
		return NoPiece
	}
	c := piece.Color()
	pt := piece.Type()
	p.xorKeys(c, pt, sq)

	p.Pieces[c][pt] = p.Pieces[c][pt].Clear(sq)
	p.Occupied[c] = p.Occupied[c].Clear(sq)
	p.AllOccupied = p.AllOccupied.Clear(sq)
	p.Board[sq] = NoPiece

	return piece
}

// movePiece moves a piece between squares (does not update hash).
func (p *Position) movePiece(from, to Square) {
	piece := p.Board[from]
	c := piece.Color()
	pt := piece.Type()
	p.xorKeys(c, pt, from)
	p.xorKeys(c, pt, to)
	moveBB := SquareBB(from).Or(SquareBB(to))

	p.Pieces[c][pt] = p.Pieces[c][pt].Xor(moveBB)
	p.Occupied[c] = p.Occupied[c].Xor(moveBB)
	p.AllOccupied = p.AllOccupied.Xor(moveBB)
	p.Board[from] = NoPiece
	p.Board[to] = piece

	if pt == King {
		p.KingSquare[c] = to
	}
}

// MovedPiece returns the piece that the move would displace.
func (p *Position) MovedPiece(m Move) Piece {
	return p.Board[m.From()]
}

// IsCapture returns true if the move captures a piece.
func (p *Position) IsCapture(m Move) bool {
	return p.Board[m.To()] != NoPiece
}

// MakeMove applies a legal move and returns the scratch needed to undo it.
func (p *Position) MakeMove(m Move) Undo {
	undo := Undo{
		Hash:          p.Hash,
		Rule60:        p.Rule60,
		PliesFromNull: p.PliesFromNull,
		Checkers:      p.Checkers,
	}

	p.history = append(p.history, histEntry{key: p.Hash, check: p.Checkers.Any()})

	from, to := m.From(), m.To()
	us := p.SideToMove
	piece := p.Board[from]

	if captured := p.Board[to]; captured != NoPiece {
		undo.Captured = captured
		p.removePiece(to)
		p.Hash ^= zobristPiece[captured.Color()][captured.Type()][to]
		p.Rule60 = 0
	} else {
		p.Rule60++
	}

	p.movePiece(from, to)
	p.Hash ^= zobristPiece[us][piece.Type()][from] ^ zobristPiece[us][piece.Type()][to]

	p.SideToMove = us.Other()
	p.Hash ^= zobristSideToMove
	p.GamePly++
	p.PliesFromNull++
	if p.SideToMove == White {
		p.FullMove++
	}

	p.UpdateCheckers()

	return undo
}

// UnmakeMove reverses a move made by MakeMove.
func (p *Position) UnmakeMove(m Move, undo Undo) {
	p.SideToMove = p.SideToMove.Other()
	p.GamePly--
	if p.SideToMove == Black {
		p.FullMove--
	}

	from, to := m.From(), m.To()
	p.movePiece(to, from)
	if undo.Captured != NoPiece {
		p.setPiece(undo.Captured, to)
	}

	p.Hash = undo.Hash
	p.Rule60 = undo.Rule60
	p.PliesFromNull = undo.PliesFromNull
	p.Checkers = undo.Checkers
	p.history = p.history[:len(p.history)-1]
}

// MakeNullMove passes the turn without moving. Used by null-move pruning.
func (p *Position) MakeNullMove() Undo {
	undo := Undo{
		Hash:          p.Hash,
		Rule60:        p.Rule60,
		PliesFromNull: p.PliesFromNull,
		Checkers:      p.Checkers,
	}

	p.history = append(p.history, histEntry{key: p.Hash, check: p.Checkers.Any()})

	p.SideToMove = p.SideToMove.Other()
	p.Hash ^= zobristSideToMove
	p.GamePly++
	p.Rule60++
	p.PliesFromNull = 0

	p.UpdateCheckers()

	return undo
}

// UnmakeNullMove undoes a null move.
func (p *Position) UnmakeNullMove(undo Undo) {
	p.SideToMove = p.SideToMove.Other()
	p.GamePly--
	p.Hash = undo.Hash
	p.Rule60 = undo.Rule60
	p.PliesFromNull = undo.PliesFromNull
	p.Checkers = undo.Checkers
	p.history = p.history[:len(p.history)-1]
}

// KeyAfter returns the Zobrist key the position would have after the move.
// Used for transposition table prefetching.
func (p *Position) KeyAfter(m Move) uint64 {
	from, to := m.From(), m.To()
	piece := p.Board[from]
	key := p.Hash ^ zobristSideToMove
	key ^= zobristPiece[piece.Color()][piece.Type()][from] ^ zobristPiece[piece.Color()][piece.Type()][to]
	if captured := p.Board[to]; captured != NoPiece {
		key ^= zobristPiece[captured.Color()][captured.Type()][to]
	}
	return key
}

// InCheck returns true if the side to move is in check.
func (p *Position) InCheck() bool {
	return p.Checkers.Any()
}

// UpdateCheckers recomputes the pieces giving check to the side to move.
func (p *Position) UpdateCheckers() {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]
	occ := p.AllOccupied

	ch := RookAttacks(ksq, occ).And(p.Pieces[them][Rook])
	ch = ch.Or(CannonAttacks(ksq, occ).And(p.Pieces[them][Cannon]))
	ch = ch.Or(KnightToAttacks(ksq, occ).And(p.Pieces[them][Knight]))
	ch = ch.Or(PawnAttacksTo(them, ksq).And(p.Pieces[them][Pawn]))
	p.Checkers = ch
}

// IsSquareAttacked returns true if the square is attacked by the given side.
// The flying-general rule is not an attack; it is handled by Legal.
func (p *Position) IsSquareAttacked(sq Square, by Color) bool {
	occ := p.AllOccupied
	if RookAttacks(sq, occ).Intersects(p.Pieces[by][Rook]) {
		return true
	}
	if CannonAttacks(sq, occ).Intersects(p.Pieces[by][Cannon]) {
		return true
	}
	if KnightToAttacks(sq, occ).Intersects(p.Pieces[by][Knight]) {
		return true
	}
	if PawnAttacksTo(by, sq).Intersects(p.Pieces[by][Pawn]) {
		return true
	}
	if KingAttacks(sq).Intersects(p.Pieces[by][King]) {
		return true
	}
	if AdvisorAttacks(sq).Intersects(p.Pieces[by][Advisor]) {
		return true
	}
	if BishopAttacks(sq, occ).Intersects(p.Pieces[by][Bishop]) {
		return true
	}
	return false
}

// attackersTo returns all pieces of both colors attacking sq under the
// given occupancy.
func (p *Position) attackersTo(sq Square, occ Bitboard) Bitboard {
	rooks := p.Pieces[White][Rook].Or(p.Pieces[Black][Rook])
	cannons := p.Pieces[White][Cannon].Or(p.Pieces[Black][Cannon])
	knights := p.Pieces[White][Knight].Or(p.Pieces[Black][Knight])
	bishops := p.Pieces[White][Bishop].Or(p.Pieces[Black][Bishop])
	advisors := p.Pieces[White][Advisor].Or(p.Pieces[Black][Advisor])
	kings := p.Pieces[White][King].Or(p.Pieces[Black][King])

	b := RookAttacks(sq, occ).And(rooks)
	b = b.Or(CannonAttacks(sq, occ).And(cannons))
	b = b.Or(KnightToAttacks(sq, occ).And(knights))
	b = b.Or(BishopAttacks(sq, occ).And(bishops))
	b = b.Or(AdvisorAttacks(sq).And(advisors))
	b = b.Or(KingAttacks(sq).And(kings))
	b = b.Or(PawnAttacksTo(White, sq).And(p.Pieces[White][Pawn]))
	b = b.Or(PawnAttacksTo(Black, sq).And(p.Pieces[Black][Pawn]))
	return b
}

// Legal reports whether a pseudo-legal move leaves its own king safe and
// does not expose facing generals.
func (p *Position) Legal(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()

	ksq := p.KingSquare[us]
	if from == ksq {
		ksq = to
	}
	occ := p.AllOccupied.Clear(from).Set(to)

	if RookAttacks(ksq, occ).Intersects(p.Pieces[them][Rook].Clear(to)) {
		return false
	}
	if CannonAttacks(ksq, occ).Intersects(p.Pieces[them][Cannon].Clear(to)) {
		return false
	}
	if KnightToAttacks(ksq, occ).Intersects(p.Pieces[them][Knight].Clear(to)) {
		return false
	}
	if PawnAttacksTo(them, ksq).Intersects(p.Pieces[them][Pawn].Clear(to)) {
		return false
	}

	// Facing generals on an open file.
	eksq := p.KingSquare[them]
	if to != eksq && ksq.File() == eksq.File() {
		if !Between(ksq, eksq).Clear(eksq).Intersects(occ) {
			return false
		}
	}

	return true
}

// GivesCheck reports whether the move would check the opponent, either
// directly or by discovery along a rook, cannon or knight-leg line.
func (p *Position) GivesCheck(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[them]
	from, to := m.From(), m.To()
	pt := p.Board[from].Type()

	occ := p.AllOccupied.Clear(from).Set(to)

	if AttacksBB(pt, us, to, occ).IsSet(ksq) {
		return true
	}

	if RookAttacks(ksq, occ).Intersects(p.Pieces[us][Rook].Clear(from)) {
		return true
	}
	if CannonAttacks(ksq, occ).Intersects(p.Pieces[us][Cannon].Clear(from)) {
		return true
	}
	if KnightToAttacks(ksq, occ).Intersects(p.Pieces[us][Knight].Clear(from)) {
		return true
	}
	return false
}

// MajorMaterial returns the summed rook, cannon and knight values for the
// given color.
func (p *Position) MajorMaterial(c Color) int {
	return p.Pieces[c][Rook].PopCount()*PieceValue[Rook] +
		p.Pieces[c][Cannon].PopCount()*PieceValue[Cannon] +
		p.Pieces[c][Knight].PopCount()*PieceValue[Knight]
}

// Material returns the material balance (positive favors the side to move).
func (p *Position) Material() int {
	score := 0
	for pt := Rook; pt <= King; pt++ {
		score += p.Pieces[White][pt].PopCount() * PieceValue[pt]
		score -= p.Pieces[Black][pt].PopCount() * PieceValue[pt]
	}
	if p.SideToMove == Black {
		return -score
	}
	return score
}

// RuleJudge detects rule-terminal states for the side to move: the 60-move
// rule and repetitions, classifying perpetual check per xiangqi rules.
func (p *Position) RuleJudge() GameResult {
	if p.Rule60 >= 120 {
		return ResultDraw
	}

	limit := p.Rule60
	if p.PliesFromNull < limit {
		limit = p.PliesFromNull
	}
	n := len(p.history)
	if limit > n {
		limit = n
	}

	for d := 4; d <= limit; d += 2 {
		if p.history[n-d].key != p.Hash {
			continue
		}

		// Repetition found d plies back. Decide who, if anyone, has been
		// delivering all the checks in the cycle.
		usChecked := p.Checkers.Any()
		themChecked := true
		for i := 1; i <= d; i++ {
			e := p.history[n-i]
			if i%2 == 1 {
				themChecked = themChecked && e.check
			} else {
				usChecked = usChecked && e.check
			}
		}

		switch {
		case themChecked && !usChecked:
			// We have checked on every one of our moves: forbidden.
			return ResultLoss
		case usChecked && !themChecked:
			return ResultWin
		default:
			return ResultDraw
		}
	}

	return ResultNone
}

// HasRepeated reports whether the current key occurred before within the
// reversible-move window. Used by tests.
func (p *Position) HasRepeated() bool {
	return p.RuleJudge() != ResultNone && p.Rule60 < 120
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	s := "\n +---+---+---+---+---+---+---+---+---+\n"
	for rank := 9; rank >= 0; rank-- {
		s += " |"
		for file := 0; file < 9; file++ {
			piece := p.Board[NewSquare(file, rank)]
			if piece == NoPiece {
				s += "   |"
			} else {
				s += " " + piece.String() + " |"
			}
		}
		s += fmt.Sprintf(" %d\n", rank)
		s += " +---+---+---+---+---+---+---+---+---+\n"
	}
	s += "   a   b   c   d   e   f   g   h   i\n\n"
	s += fmt.Sprintf("Fen: %s\n", p.ToFEN())
	s += fmt.Sprintf("Key: %016X\n", p.Hash)
	return s
}

// Flip mirrors the board top to bottom and swaps colors.
func (p *Position) Flip() *Position {
	flipped := &Position{
		SideToMove: p.SideToMove.Other(),
		Rule60:     p.Rule60,
		FullMove:   p.FullMove,
	}
	flipped.KingSquare[White] = NoSquare
	flipped.KingSquare[Black] = NoSquare
	for sq := A0; sq < NoSquare; sq++ {
		piece := p.Board[sq]
		if piece == NoPiece {
			continue
		}
		flipped.setPiece(NewPiece(piece.Type(), piece.Color().Other()), sq.Flip())
	}
	flipped.Hash = flipped.ComputeHash()
	flipped.UpdateCheckers()
	return flipped
}
