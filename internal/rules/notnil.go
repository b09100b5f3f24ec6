package rules

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/chessnnue/nnue769/internal/domain"
)

type NotnilEngine struct{}

type notnilPosition struct {
	pos *chess.Position
}

func (e *NotnilEngine) Parse(fen string) (Position, error) {
	normalized, err := normalizeFen(fen)
	if err != nil {
		return nil, err
	}
	opt, err := chess.FEN(normalized)
	if err != nil {
		return nil, &domain.InvalidPositionError{Fen: fen, Reason: err.Error()}
	}
	var game = chess.NewGame(opt)
	return &notnilPosition{pos: game.Position()}, nil
}

func (e *NotnilEngine) LegalMoves(pos Position) []string {
	var p, ok = pos.(*notnilPosition)
	if !ok {
		return nil
	}
	var moves = p.pos.ValidMoves()
	var result = make([]string, 0, len(moves))
	for _, m := range moves {
		result = append(result, m.String())
	}
	return result
}

func (e *NotnilEngine) Apply(pos Position, move string) (Position, error) {
	var p, ok = pos.(*notnilPosition)
	if !ok {
		return nil, fmt.Errorf("position %T does not belong to notnil engine", pos)
	}
	for _, m := range p.pos.ValidMoves() {
		if m.String() == move {
			return &notnilPosition{pos: p.pos.Update(m)}, nil
		}
	}
	return nil, fmt.Errorf("illegal move %v in %v", move, p.pos.String())
}

func (p *notnilPosition) PieceAt(sq int) (Piece, bool) {
	var piece = p.pos.Board().Piece(chess.Square(sq))
	if piece == chess.NoPiece {
		return Piece{}, false
	}
	var color = White
	if piece.Color() == chess.Black {
		color = Black
	}
	switch piece.Type() {
	case chess.Pawn:
		return Piece{Pawn, color}, true
	case chess.Knight:
		return Piece{Knight, color}, true
	case chess.Bishop:
		return Piece{Bishop, color}, true
	case chess.Rook:
		return Piece{Rook, color}, true
	case chess.Queen:
		return Piece{Queen, color}, true
	case chess.King:
		return Piece{King, color}, true
	}
	return Piece{}, false
}

func (p *notnilPosition) WhiteToMove() bool {
	return p.pos.Turn() == chess.White
}

func (p *notnilPosition) FEN() string {
	return p.pos.String()
}
