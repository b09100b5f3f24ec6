package train

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/chessnnue/nnue769/internal/ml"
)

// Layer is a dense layer. Weights are stored inputs x outputs, so a sparse
// input row can be gathered with RawRowView.
type Layer struct {
	activationFn ml.IActivationFn
	weights      *mat.Dense
	biases       *mat.VecDense
	wGradients   ml.Gradients
	bGradients   ml.Gradients

	wGrad       *mat.Dense
	output      *mat.VecDense
	prime       *mat.VecDense
	delta       *mat.VecDense
	inputError  *mat.VecDense
	input       *mat.VecDense
	sparseInput []int16
}

func NewLayer(
	inputSize int,
	outputSize int,
	activationFn ml.IActivationFn,
) *Layer {
	var layer = &Layer{
		activationFn: activationFn,
		weights:      mat.NewDense(inputSize, outputSize, nil),
		biases:       mat.NewVecDense(outputSize, nil),
		wGradients:   ml.NewGradients(inputSize * outputSize),
		bGradients:   ml.NewGradients(outputSize),
	}
	layer.initBuffers()
	return layer
}

// ThreadCopy shares parameters with l but owns its activations and
// gradient accumulators.
func (l *Layer) ThreadCopy() *Layer {
	var layer = &Layer{
		activationFn: l.activationFn,
		weights:      l.weights,
		biases:       l.biases,
		wGradients:   ml.NewAccumulator(len(l.wGradients.Value)),
		bGradients:   ml.NewAccumulator(len(l.bGradients.Value)),
	}
	layer.initBuffers()
	return layer
}

func (l *Layer) initBuffers() {
	var inputSize, outputSize = l.weights.Dims()
	l.wGrad = mat.NewDense(inputSize, outputSize, l.wGradients.Value)
	l.output = mat.NewVecDense(outputSize, nil)
	l.prime = mat.NewVecDense(outputSize, nil)
	l.delta = mat.NewVecDense(outputSize, nil)
	l.inputError = mat.NewVecDense(inputSize, nil)
}

func (l *Layer) InitWeightsReLU(rnd *rand.Rand) *Layer {
	var inputSize, _ = l.weights.Dims()
	ml.InitUniform(rnd, l.weights.RawMatrix().Data, 2.0/float64(inputSize))
	return l
}

func (l *Layer) InitWeightsXavier(rnd *rand.Rand) *Layer {
	var inputSize, outputSize = l.weights.Dims()
	ml.InitUniform(rnd, l.weights.RawMatrix().Data, 2.0/float64(inputSize+outputSize))
	return l
}

// ForwardSparse treats input as the indices of inputs equal to 1.
func (l *Layer) ForwardSparse(input []int16) *mat.VecDense {
	var x = l.output.RawVector().Data
	copy(x, l.biases.RawVector().Data)
	for _, index := range input {
		floats.Add(x, l.weights.RawRowView(int(index)))
	}
	l.input = nil
	l.sparseInput = input
	l.activate()
	return l.output
}

func (l *Layer) Forward(input *mat.VecDense) *mat.VecDense {
	l.output.MulVec(l.weights.T(), input)
	l.output.AddVec(l.output, l.biases)
	l.input = input
	l.sparseInput = nil
	l.activate()
	return l.output
}

func (l *Layer) activate() {
	var x = l.output.RawVector().Data
	var prime = l.prime.RawVector().Data
	for i := range x {
		prime[i] = l.activationFn.SigmaPrime(x[i])
		x[i] = l.activationFn.Sigma(x[i])
	}
}

// Backward accumulates gradients for the last Forward call and returns the
// error with respect to a dense input, or nil after ForwardSparse.
func (l *Layer) Backward(outputError *mat.VecDense) *mat.VecDense {
	l.delta.MulElemVec(outputError, l.prime)
	var delta = l.delta.RawVector().Data
	floats.Add(l.bGradients.Value, delta)

	if l.input == nil {
		for _, index := range l.sparseInput {
			floats.Add(l.wGrad.RawRowView(int(index)), delta)
		}
		return nil
	}

	l.wGrad.RankOne(l.wGrad, 1, l.input, l.delta)
	l.inputError.MulVec(l.weights, l.delta)
	return l.inputError
}

func (l *Layer) AddGradients(main *Layer) {
	l.wGradients.AddTo(&main.wGradients)
	l.bGradients.AddTo(&main.bGradients)
}

func (l *Layer) ApplyGradients(opt *ml.Adam) {
	l.wGradients.Apply(l.weights.RawMatrix().Data, opt)
	l.bGradients.Apply(l.biases.RawVector().Data, opt)
}
