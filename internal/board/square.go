// Package board implements xiangqi board representation using 128-bit bitboards.
package board

import "fmt"

// Square represents a square on the xiangqi board (0-89).
// Files a..i run left to right from red's side, ranks 0..9 bottom to top:
// A0=0, I0=8, A9=81, I9=89.
type Square uint8

// Square constants for all 90 squares.
const (
	A0 Square = iota
	B0
	C0
	D0
	E0
	F0
	G0
	H0
	I0
	A1
	B1
	C1
	D1
	E1
	F1
	G1
	H1
	I1
	A2
	B2
	C2
	D2
	E2
	F2
	G2
	H2
	I2
	A3
	B3
	C3
	D3
	E3
	F3
	G3
	H3
	I3
	A4
	B4
	C4
	D4
	E4
	F4
	G4
	H4
	I4
	A5
	B5
	C5
	D5
	E5
	F5
	G5
	H5
	I5
	A6
	B6
	C6
	D6
	E6
	F6
	G6
	H6
	I6
	A7
	B7
	C7
	D7
	E7
	F7
	G7
	H7
	I7
	A8
	B8
	C8
	D8
	E8
	F8
	G8
	H8
	I8
	A9
	B9
	C9
	D9
	E9
	F9
	G9
	H9
	I9
	NoSquare Square = 90
)

// SquareNB is the number of squares on the board.
const SquareNB = 90

// Direction deltas. North points from red toward black.
const (
	North = 9
	East  = 1
	South = -North
	West  = -East
)

// File returns the file (column) of the square (0-8, where 0=a, 8=i).
func (sq Square) File() int {
	return int(sq) % 9
}

// Rank returns the rank (row) of the square (0-9).
func (sq Square) Rank() int {
	return int(sq) / 9
}

// String returns the coordinate notation for the square (e.g., "e4").
func (sq Square) String() string {
	if sq >= NoSquare {
		return "-"
	}
	return fmt.Sprintf("%c%c", 'a'+sq.File(), '0'+sq.Rank())
}

// NewSquare creates a square from file and rank (0-indexed).
func NewSquare(file, rank int) Square {
	return Square(rank*9 + file)
}

// ParseSquare parses coordinate notation (e.g., "e4") into a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square: %s", s)
	}

	file := int(s[0] - 'a')
	rank := int(s[1] - '0')

	if file < 0 || file > 8 || rank < 0 || rank > 9 {
		return NoSquare, fmt.Errorf("invalid square: %s", s)
	}

	return NewSquare(file, rank), nil
}

// IsValid returns true if the square is a valid board square (0-89).
func (sq Square) IsValid() bool {
	return sq < NoSquare
}

// Flip returns the square mirrored top-to-bottom (for black's perspective).
func (sq Square) Flip() Square {
	return NewSquare(sq.File(), 9-sq.Rank())
}

// RelativeRank returns the rank from a given color's perspective.
// For White (red), rank 0 is the home rank; for Black, rank 9 is.
func (sq Square) RelativeRank(c Color) int {
	if c == White {
		return sq.Rank()
	}
	return 9 - sq.Rank()
}

// Distance returns the Chebyshev distance between two squares.
func Distance(a, b Square) int {
	df := a.File() - b.File()
	if df < 0 {
		df = -df
	}
	dr := a.Rank() - b.Rank()
	if dr < 0 {
		dr = -dr
	}
	if df > dr {
		return df
	}
	return dr
}
