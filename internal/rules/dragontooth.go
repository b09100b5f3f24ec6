package rules

import (
	"fmt"

	"github.com/dylhunn/dragontoothmg"

	"github.com/chessnnue/nnue769/internal/domain"
)

// DragontoothEngine is backed by dragontoothmg bitboards. Its FEN parser
// trusts the input, so notation is validated before it gets there.
type DragontoothEngine struct{}

type dragontoothPosition struct {
	board dragontoothmg.Board
}

func (e *DragontoothEngine) Parse(fen string) (result Position, err error) {
	normalized, err := normalizeFen(fen)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &domain.InvalidPositionError{Fen: fen, Reason: fmt.Sprint(r)}
		}
	}()
	var board = dragontoothmg.ParseFen(normalized)
	return &dragontoothPosition{board: board}, nil
}

func (e *DragontoothEngine) LegalMoves(pos Position) []string {
	var p, ok = pos.(*dragontoothPosition)
	if !ok {
		return nil
	}
	var board = p.board
	var moves = board.GenerateLegalMoves()
	var result = make([]string, 0, len(moves))
	for _, m := range moves {
		result = append(result, m.String())
	}
	return result
}

func (e *DragontoothEngine) Apply(pos Position, move string) (Position, error) {
	var p, ok = pos.(*dragontoothPosition)
	if !ok {
		return nil, fmt.Errorf("position %T does not belong to dragontooth engine", pos)
	}
	var board = p.board
	for _, m := range board.GenerateLegalMoves() {
		if m.String() == move {
			board.Apply(m)
			return &dragontoothPosition{board: board}, nil
		}
	}
	return nil, fmt.Errorf("illegal move %v in %v", move, p.FEN())
}

func (p *dragontoothPosition) PieceAt(sq int) (Piece, bool) {
	var bit = uint64(1) << uint(sq)
	if p.board.White.All&bit != 0 {
		return Piece{pieceType(&p.board.White, bit), White}, true
	}
	if p.board.Black.All&bit != 0 {
		return Piece{pieceType(&p.board.Black, bit), Black}, true
	}
	return Piece{}, false
}

func pieceType(bb *dragontoothmg.Bitboards, bit uint64) PieceType {
	switch {
	case bb.Pawns&bit != 0:
		return Pawn
	case bb.Knights&bit != 0:
		return Knight
	case bb.Bishops&bit != 0:
		return Bishop
	case bb.Rooks&bit != 0:
		return Rook
	case bb.Queens&bit != 0:
		return Queen
	default:
		return King
	}
}

func (p *dragontoothPosition) WhiteToMove() bool {
	return p.board.Wtomove
}

func (p *dragontoothPosition) FEN() string {
	return p.board.ToFen()
}
