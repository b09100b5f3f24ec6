// Package features encodes chess positions into the 769-input layout:
// one input per (square, colored piece) pair plus a side-to-move input.
//
// Index layout: square*12 + color*6 + kind, with color 0 for white and kind
// 0..5 for pawn, knight, bishop, rook, queen, king. Input 768 is 1 when
// white is to move. Castling rights, the en passant square and the move
// counters are not encoded.
package features

import (
	"github.com/chessnnue/nnue769/internal/domain"
	"github.com/chessnnue/nnue769/internal/rules"
)

type Encoder struct {
	rules rules.Engine
}

func NewEncoder(engine rules.Engine) *Encoder {
	return &Encoder{rules: engine}
}

// Encode parses fen and returns the active input indices.
// An unparsable fen yields *domain.InvalidPositionError.
func (e *Encoder) Encode(fen string) ([]int16, error) {
	var pos, err = e.rules.Parse(fen)
	if err != nil {
		return nil, err
	}
	return FromPosition(pos), nil
}

// FromPosition returns a freshly allocated slice, so it is safe to call from
// several goroutines.
func FromPosition(pos rules.Position) []int16 {
	var buffer [65]int16
	var size int
	for sq := 0; sq < 64; sq++ {
		var piece, ok = pos.PieceAt(sq)
		if !ok {
			continue
		}
		buffer[size] = int16(Index(sq, piece))
		size++
	}
	if pos.WhiteToMove() {
		buffer[size] = domain.SideToMoveIndex
		size++
	}

	var result = make([]int16, size)
	copy(result, buffer[:size])
	return result
}

func Index(sq int, piece rules.Piece) int {
	var colorOffset int
	if piece.Color == rules.Black {
		colorOffset = 6
	}
	return sq*12 + colorOffset + int(piece.Type)
}

// Dense expands active indices into the full feature vector.
func Dense(input []int16) []float64 {
	var result = make([]float64, domain.FeatureSize)
	for _, index := range input {
		result[index] = 1
	}
	return result
}
