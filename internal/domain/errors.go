package domain

import (
	"fmt"
	"math"
)

type InvalidPositionError struct {
	Fen    string
	Reason string
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position %q: %s", e.Fen, e.Reason)
}

type ScoreParseError struct {
	Value string
}

func (e *ScoreParseError) Error() string {
	return fmt.Sprintf("invalid score %q", e.Value)
}

type SourceUnavailableError struct {
	Path string
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable %v: %v", e.Path, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// ShapeMismatchError reports a checkpoint whose topology differs from the
// model it is loaded into.
type ShapeMismatchError struct {
	Want string
	Got  string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: model %v, checkpoint %v", e.Want, e.Got)
}

type NonFiniteLossError struct {
	Epoch int
	Batch int
	Loss  float64
}

func (e *NonFiniteLossError) Error() string {
	return fmt.Sprintf("non-finite loss %v at epoch %v batch %v", e.Loss, e.Epoch, e.Batch)
}

func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
