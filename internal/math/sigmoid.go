package math

import "math"

// DefaultScale maps an engine score in centipawns to a logit.
const DefaultScale = 3.5 / 512

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// WinProbability converts a score into an expected result in [0, 1].
func WinProbability(score, scale float64) float64 {
	return Sigmoid(score * scale)
}
