package rules

import (
	"strconv"
	"strings"

	"github.com/chessnnue/nnue769/internal/domain"
)

const InitialPositionFen = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// normalizeFen checks the structure of fen and completes EPD-style
// notation (board and side only, or without move counters) to six fields.
func normalizeFen(fen string) (string, error) {
	var invalid = func(reason string) error {
		return &domain.InvalidPositionError{Fen: fen, Reason: reason}
	}

	var fields = strings.Fields(fen)
	switch len(fields) {
	case 0:
		return "", invalid("empty notation")
	case 1:
		return "", invalid("side to move is missing")
	case 2:
		fields = append(fields, "-", "-", "0", "1")
	case 3:
		fields = append(fields, "-", "0", "1")
	case 4:
		fields = append(fields, "0", "1")
	case 5:
		fields = append(fields, "1")
	case 6:
	default:
		return "", invalid("too many fields")
	}

	if reason := checkBoard(fields[0]); reason != "" {
		return "", invalid(reason)
	}
	if fields[1] != "w" && fields[1] != "b" {
		return "", invalid("bad side to move " + fields[1])
	}
	if fields[2] != "-" {
		for _, ch := range fields[2] {
			if !strings.ContainsRune("KQkq", ch) {
				return "", invalid("bad castling rights " + fields[2])
			}
		}
	}
	if ep := fields[3]; ep != "-" {
		if len(ep) != 2 || ep[0] < 'a' || ep[0] > 'h' || (ep[1] != '3' && ep[1] != '6') {
			return "", invalid("bad en passant square " + ep)
		}
	}
	if n, err := strconv.Atoi(fields[4]); err != nil || n < 0 || n > 255 {
		return "", invalid("bad halfmove clock " + fields[4])
	}
	if n, err := strconv.Atoi(fields[5]); err != nil || n < 1 {
		return "", invalid("bad fullmove number " + fields[5])
	}
	return strings.Join(fields, " "), nil
}

func checkBoard(board string) string {
	var ranks = strings.Split(board, "/")
	if len(ranks) != 8 {
		return "board must have 8 ranks"
	}
	var whiteKings, blackKings int
	for _, rank := range ranks {
		var files int
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				files += int(ch - '0')
			case strings.ContainsRune("pnbrqkPNBRQK", ch):
				files++
				if ch == 'K' {
					whiteKings++
				} else if ch == 'k' {
					blackKings++
				}
			default:
				return "bad piece character " + string(ch)
			}
		}
		if files != 8 {
			return "rank " + rank + " must have 8 files"
		}
	}
	if whiteKings != 1 || blackKings != 1 {
		return "each side must have exactly one king"
	}
	return ""
}
