package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Gradients accumulates a batch gradient for one parameter tensor and keeps
// the Adam moments for it.
type Gradients struct {
	Value []float64
	M1    []float64
	M2    []float64
}

func NewGradients(size int) Gradients {
	return Gradients{
		Value: make([]float64, size),
		M1:    make([]float64, size),
		M2:    make([]float64, size),
	}
}

// NewAccumulator returns gradients without optimizer state, for worker copies.
func NewAccumulator(size int) Gradients {
	return Gradients{Value: make([]float64, size)}
}

func (g *Gradients) AddTo(parent *Gradients) {
	floats.Add(parent.Value, g.Value)
	g.Reset()
}

func (g *Gradients) Reset() {
	for i := range g.Value {
		g.Value[i] = 0
	}
}

// Apply takes one step of params against the accumulated gradient and
// clears it. Parameters with a zero gradient are left alone.
func (g *Gradients) Apply(params []float64, opt *Adam) {
	for i, value := range g.Value {
		if value == 0 {
			continue
		}
		g.M1[i] = g.M1[i]*opt.Beta1 + value*(1-opt.Beta1)
		g.M2[i] = g.M2[i]*opt.Beta2 + value*value*(1-opt.Beta2)
		params[i] -= opt.LearningRate * g.M1[i] / (math.Sqrt(g.M2[i]) + opt.Epsilon)
		g.Value[i] = 0
	}
}
