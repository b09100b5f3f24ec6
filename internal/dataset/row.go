package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/chessnnue/nnue769/internal/domain"
	"github.com/chessnnue/nnue769/internal/features"
)

type RowStatus int

const (
	RowParsed RowStatus = iota
	RowSkippedFormat
	RowSkippedPosition
	RowSkippedScore
	rowStatusCount
)

func (s RowStatus) String() string {
	switch s {
	case RowParsed:
		return "parsed"
	case RowSkippedFormat:
		return "bad format"
	case RowSkippedPosition:
		return "bad position"
	case RowSkippedScore:
		return "bad score"
	default:
		return "unknown"
	}
}

type RowResult struct {
	Status RowStatus
	Sample domain.Sample
	Err    error
}

var (
	errMissingField = errors.New("expected position and score fields")
	errRowTooLong   = errors.New("row too long")
)

// ParseRow decodes one "position<delim>score" line. Fields follow CSV
// quoting rules; columns past the second are ignored.
func ParseRow(encoder *features.Encoder, line string, delimiter rune) RowResult {
	if len(line) > maxRowLength {
		return RowResult{Status: RowSkippedFormat, Err: errRowTooLong}
	}
	var fields, err = splitRow(line, delimiter)
	if err != nil {
		return RowResult{Status: RowSkippedFormat, Err: err}
	}
	if len(fields) < 2 {
		return RowResult{Status: RowSkippedFormat, Err: errMissingField}
	}

	input, err := encoder.Encode(strings.TrimSpace(fields[0]))
	if err != nil {
		return RowResult{Status: RowSkippedPosition, Err: err}
	}

	score, err := parseScore(strings.TrimSpace(fields[1]))
	if err != nil {
		return RowResult{Status: RowSkippedScore, Err: err}
	}

	return RowResult{
		Status: RowParsed,
		Sample: domain.Sample{Input: input, Target: float32(score)},
	}
}

func splitRow(line string, delimiter rune) ([]string, error) {
	var r = csv.NewReader(strings.NewReader(line))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	var fields, err = r.Read()
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func parseScore(s string) (float64, error) {
	var score, err = strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) ||
		math.IsInf(float64(float32(score)), 0) {
		return 0, &domain.ScoreParseError{Value: s}
	}
	return score, nil
}

type parsedChunk struct {
	index   int
	rows    int
	samples []domain.Sample
	skipped [rowStatusCount]int
}

func parseChunks(
	ctx context.Context,
	encoder *features.Encoder,
	delimiter rune,
	chunks <-chan rowChunk,
	results chan<- parsedChunk,
) error {
	for chunk := range chunks {
		var result = parsedChunk{
			index:   chunk.index,
			rows:    len(chunk.lines) + chunk.tooLong,
			samples: make([]domain.Sample, 0, len(chunk.lines)),
		}
		result.skipped[RowSkippedFormat] += chunk.tooLong
		for _, line := range chunk.lines {
			var row = ParseRow(encoder, line, delimiter)
			if row.Status != RowParsed {
				result.skipped[row.Status]++
				continue
			}
			result.samples = append(result.samples, row.Sample)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case results <- result:
		}
	}
	return nil
}

// mergeChunks restores source order of chunks finished by parallel workers.
func mergeChunks(results <-chan parsedChunk) *Dataset {
	var ds = &Dataset{Skipped: make(map[RowStatus]int)}
	var pending = make(map[int]parsedChunk)
	var next int
	for result := range results {
		pending[result.index] = result
		for {
			var chunk, found = pending[next]
			if !found {
				break
			}
			delete(pending, next)
			next++
			ds.Rows += chunk.rows
			ds.Samples = append(ds.Samples, chunk.samples...)
			for status, count := range chunk.skipped {
				if count != 0 {
					ds.Skipped[RowStatus(status)] += count
				}
			}
		}
	}
	return ds
}
