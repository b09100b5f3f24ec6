package train

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/chessnnue/nnue769/internal/domain"
	"github.com/chessnnue/nnue769/internal/ml"
	"github.com/chessnnue/nnue769/internal/network"
)

// Topology is fixed: 769 -> 256 -> 32 -> 1. Both hidden layers are clamped
// to [0, 1] so the net can later be quantized.
var Topology = network.NewTopology(domain.FeatureSize, 1, []uint32{256, 32})

type Model struct {
	layers      []*Layer
	cost        ml.IModelCost
	outputError *mat.VecDense
}

func NewModel(rnd *rand.Rand) *Model {
	var layers = make([]*Layer, Topology.LayerSize())
	for i := range layers {
		var inputs, outputs = Topology.LayerShape(i)
		if i == len(layers)-1 {
			layers[i] = NewLayer(inputs, outputs, &ml.IdentityActivation{}).
				InitWeightsXavier(rnd)
		} else {
			// a legal position activates at most 33 inputs
			layers[i] = NewLayer(inputs, outputs, &ml.ClippedReLuActivation{}).
				InitWeightsReLU(rnd)
		}
	}
	return &Model{
		layers:      layers,
		cost:        &ml.MSECost{},
		outputError: mat.NewVecDense(1, nil),
	}
}

func (m *Model) ThreadCopy() *Model {
	var layers = make([]*Layer, len(m.layers))
	for i := range layers {
		layers[i] = m.layers[i].ThreadCopy()
	}
	return &Model{
		layers:      layers,
		cost:        m.cost,
		outputError: mat.NewVecDense(1, nil),
	}
}

// Predict is not safe for concurrent use; give each goroutine a ThreadCopy.
func (m *Model) Predict(input []int16) float64 {
	var x = m.layers[0].ForwardSparse(input)
	for _, layer := range m.layers[1:] {
		x = layer.Forward(x)
	}
	return x.AtVec(0)
}

func (m *Model) CalcCost(sample *domain.Sample) float64 {
	var predicted = m.Predict(sample.Input)
	return m.cost.Cost(predicted, float64(sample.Target))
}

// Train accumulates the gradient of one sample and returns its cost.
func (m *Model) Train(sample *domain.Sample) float64 {
	var predicted = m.Predict(sample.Input)
	var target = float64(sample.Target)
	m.outputError.SetVec(0, m.cost.CostPrime(predicted, target))
	// back propagation
	var e = m.outputError
	for i := len(m.layers) - 1; i >= 0; i-- {
		e = m.layers[i].Backward(e)
	}
	return m.cost.Cost(predicted, target)
}

func (m *Model) AddGradients(mainModel *Model) {
	if m == mainModel {
		return
	}
	for i := range m.layers {
		m.layers[i].AddGradients(mainModel.layers[i])
	}
}

func (m *Model) ApplyGradients(opt *ml.Adam) {
	for _, layer := range m.layers {
		layer.ApplyGradients(opt)
	}
}

// Network returns a copy of the model parameters.
func (m *Model) Network() *network.Network {
	var n = network.NewNetwork(Topology)
	n.Id = 1
	for i, layer := range m.layers {
		n.Weights[i].Copy(layer.weights)
		n.Biases[i].CopyVec(layer.biases)
	}
	return n
}

// SetNetwork overwrites the parameters in place, so thread copies stay
// attached. Optimizer state is reset.
func (m *Model) SetNetwork(n *network.Network) error {
	if !n.Topology.Equal(Topology) {
		return &domain.ShapeMismatchError{
			Want: Topology.String(),
			Got:  n.Topology.String(),
		}
	}
	for i, layer := range m.layers {
		layer.weights.Copy(n.Weights[i])
		layer.biases.CopyVec(n.Biases[i])
		layer.wGradients = ml.NewGradients(len(layer.wGradients.Value))
		layer.bGradients = ml.NewGradients(len(layer.bGradients.Value))
		layer.initBuffers()
	}
	return nil
}

func (m *Model) Load(filepath string) error {
	var n, err = network.LoadFile(filepath)
	if err != nil {
		return err
	}
	return m.SetNetwork(n)
}

func (m *Model) Save(filepath string) error {
	return m.Network().SaveFile(filepath)
}
