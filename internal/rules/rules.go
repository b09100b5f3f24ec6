// Package rules adapts third-party chess move generators to the small
// capability set the encoder and the evaluator need: parse a position,
// query square occupancy and side to move, list and apply legal moves.
package rules

import "fmt"

type Color int8

const (
	White Color = iota
	Black
)

type PieceType int8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

type Piece struct {
	Type  PieceType
	Color Color
}

// Position is read-only. Squares are numbered 0..63, a1 = 0, h8 = 63.
type Position interface {
	PieceAt(sq int) (Piece, bool)
	WhiteToMove() bool
	FEN() string
}

type Engine interface {
	Parse(fen string) (Position, error)
	// LegalMoves returns the legal moves in UCI notation.
	LegalMoves(pos Position) []string
	// Apply returns the position after move; pos is left unchanged.
	Apply(pos Position, move string) (Position, error)
}

const (
	NotnilEngineName      = "notnil"
	DragontoothEngineName = "dragontooth"
)

func New(name string) (Engine, error) {
	switch name {
	case "", NotnilEngineName:
		return &NotnilEngine{}, nil
	case DragontoothEngineName:
		return &DragontoothEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown rules engine %v", name)
	}
}

func IsLegal(e Engine, pos Position, move string) bool {
	for _, m := range e.LegalMoves(pos) {
		if m == move {
			return true
		}
	}
	return false
}

// ApplyMoves plays moves one after another starting from pos.
func ApplyMoves(e Engine, pos Position, moves []string) (Position, error) {
	for _, move := range moves {
		var next, err = e.Apply(pos, move)
		if err != nil {
			return nil, err
		}
		pos = next
	}
	return pos, nil
}

// CountPieces returns the number of occupied squares.
func CountPieces(pos Position) int {
	var n int
	for sq := 0; sq < 64; sq++ {
		if _, ok := pos.PieceAt(sq); ok {
			n++
		}
	}
	return n
}
