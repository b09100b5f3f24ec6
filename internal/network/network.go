package network

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrFormat   = errors.New("network: unsupported file format")
	ErrChecksum = errors.New("network: checksum mismatch")
)

const (
	maxLayers     = 16
	maxLayerSize  = 1 << 20
	maxParameters = 1 << 24
)

type Topology struct {
	Inputs        uint32
	Outputs       uint32
	HiddenNeurons []uint32
}

func NewTopology(inputs, outputs uint32, hiddenNeurons []uint32) Topology {
	return Topology{
		Inputs:        inputs,
		Outputs:       outputs,
		HiddenNeurons: hiddenNeurons,
	}
}

func (t Topology) LayerSize() int {
	return len(t.HiddenNeurons) + 1
}

// LayerShape returns the input and output width of layer i.
func (t Topology) LayerShape(i int) (inputs, outputs int) {
	inputs = int(t.Inputs)
	if i > 0 {
		inputs = int(t.HiddenNeurons[i-1])
	}
	outputs = int(t.Outputs)
	if i < len(t.HiddenNeurons) {
		outputs = int(t.HiddenNeurons[i])
	}
	return
}

func (t Topology) Equal(other Topology) bool {
	if t.Inputs != other.Inputs || t.Outputs != other.Outputs ||
		len(t.HiddenNeurons) != len(other.HiddenNeurons) {
		return false
	}
	for i := range t.HiddenNeurons {
		if t.HiddenNeurons[i] != other.HiddenNeurons[i] {
			return false
		}
	}
	return true
}

func (t Topology) String() string {
	var sb strings.Builder
	fmt.Fprint(&sb, t.Inputs)
	for _, n := range t.HiddenNeurons {
		fmt.Fprintf(&sb, "x%v", n)
	}
	fmt.Fprintf(&sb, "x%v", t.Outputs)
	return sb.String()
}

// Network holds the parameters of a dense feed-forward net. Weights[i] is an
// inputs x outputs matrix, Biases[i] has one entry per output.
type Network struct {
	Id       uint32
	Topology Topology
	Weights  []*mat.Dense
	Biases   []*mat.VecDense
}

func NewNetwork(topology Topology) *Network {
	var n = &Network{
		Topology: topology,
		Weights:  make([]*mat.Dense, topology.LayerSize()),
		Biases:   make([]*mat.VecDense, topology.LayerSize()),
	}
	for i := range n.Weights {
		var inputs, outputs = topology.LayerShape(i)
		n.Weights[i] = mat.NewDense(inputs, outputs, nil)
		n.Biases[i] = mat.NewVecDense(outputs, nil)
	}
	return n
}

// Binary layout of the network file:
// - All the data is stored in little-endian layout
// - The magic number/version consists of 4 bytes:
//   - 66 (which is the ASCII code for B), uint8
//   - 90 (which is the ASCII code for Z), uint8
//   - 3 The major part of the current version number, uint8
//   - 0 The minor part of the current version number, uint8
//
// - 4 bytes (uint32) to denote the network ID
// - 4 bytes (uint32) to denote input size
// - 4 bytes (uint32) to denote output size
// - 4 bytes (uint32) number of hidden layers
// - 4 bytes (uint32) for the size of each hidden layer
// - All weights for a layer (float64, row-major inputs x outputs),
//   followed by all the biases of the same layer
// - Other layers follow just like the above point
// - 8 bytes (uint64) xxhash64 of everything above
func (n *Network) Save(w io.Writer) error {
	var digest = xxhash.New()
	var bw = bufio.NewWriter(io.MultiWriter(w, digest))

	var buf = make([]byte, 5*4+4*len(n.Topology.HiddenNeurons))
	copy(buf, []byte{66, 90, 3, 0})
	binary.LittleEndian.PutUint32(buf[4:], n.Id)
	binary.LittleEndian.PutUint32(buf[8:], n.Topology.Inputs)
	binary.LittleEndian.PutUint32(buf[12:], n.Topology.Outputs)
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(n.Topology.HiddenNeurons)))
	for i, size := range n.Topology.HiddenNeurons {
		binary.LittleEndian.PutUint32(buf[20+4*i:], size)
	}
	if _, err := bw.Write(buf); err != nil {
		return err
	}

	for i := 0; i < n.Topology.LayerSize(); i++ {
		if err := writeSlice(bw, n.Weights[i].RawMatrix().Data); err != nil {
			return err
		}
		if err := writeSlice(bw, n.Biases[i].RawVector().Data); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], digest.Sum64())
	_, err := w.Write(trailer[:])
	return err
}

// SaveFile writes the network next to path and renames it into place, so a
// crash never leaves a half written checkpoint behind.
func (n *Network) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	var tmp = path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = n.Save(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func LoadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return load(f, info.Size())
}

// Load reads a network written by Save.
func Load(r io.Reader) (*Network, error) {
	return load(r, -1)
}

// load checks the header against size, when it is known, before allocating
// the layers.
func load(r io.Reader, size int64) (*Network, error) {
	var br = bufio.NewReader(r)
	var digest = xxhash.New()
	var tr = io.TeeReader(br, digest)

	var buf = make([]byte, 20)
	if _, err := io.ReadFull(tr, buf); err != nil {
		return nil, err
	}
	if buf[0] != 66 || buf[1] != 90 || buf[2] != 3 || buf[3] != 0 {
		return nil, ErrFormat
	}
	var id = binary.LittleEndian.Uint32(buf[4:])
	var inputs = binary.LittleEndian.Uint32(buf[8:])
	var outputs = binary.LittleEndian.Uint32(buf[12:])
	var layers = binary.LittleEndian.Uint32(buf[16:])
	if layers > maxLayers || inputs == 0 || inputs > maxLayerSize ||
		outputs == 0 || outputs > maxLayerSize {
		return nil, ErrFormat
	}

	buf = make([]byte, 4*layers)
	if _, err := io.ReadFull(tr, buf); err != nil {
		return nil, err
	}
	var neurons = make([]uint32, layers)
	for i := range neurons {
		neurons[i] = binary.LittleEndian.Uint32(buf[i*4:])
		if neurons[i] == 0 || neurons[i] > maxLayerSize {
			return nil, ErrFormat
		}
	}

	var topology = NewTopology(inputs, outputs, neurons)
	var parameters int
	for i := 0; i < topology.LayerSize(); i++ {
		var in, out = topology.LayerShape(i)
		parameters += in*out + out
	}
	if parameters > maxParameters {
		return nil, ErrFormat
	}
	if size >= 0 && size != int64(20+4*len(neurons)+8*parameters+8) {
		return nil, ErrFormat
	}

	var net = NewNetwork(topology)
	net.Id = id
	for i := 0; i < net.Topology.LayerSize(); i++ {
		if err := readSlice(tr, net.Weights[i].RawMatrix().Data); err != nil {
			return nil, err
		}
		if err := readSlice(tr, net.Biases[i].RawVector().Data); err != nil {
			return nil, err
		}
	}

	var trailer [8]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint64(trailer[:]) != digest.Sum64() {
		return nil, ErrChecksum
	}
	return net, nil
}

func writeSlice(w io.Writer, data []float64) error {
	var buf [8]byte
	for j := range data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(data[j]))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func readSlice(r io.Reader, data []float64) error {
	var buf [8]byte
	for j := range data {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		data[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
	}
	return nil
}
