package network

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randomNetwork(rnd *rand.Rand, topology Topology) *Network {
	var n = NewNetwork(topology)
	n.Id = 7
	for i := range n.Weights {
		var w = n.Weights[i].RawMatrix().Data
		for j := range w {
			w[j] = rnd.NormFloat64()
		}
		var b = n.Biases[i].RawVector().Data
		for j := range b {
			b[j] = rnd.NormFloat64()
		}
	}
	return n
}

func TestSaveLoad(t *testing.T) {
	var topology = NewTopology(769, 1, []uint32{256, 32})
	var n = randomNetwork(rand.New(rand.NewSource(1)), topology)
	var path = filepath.Join(t.TempDir(), "net", "n.nn")
	if err := n.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Id != 7 || !loaded.Topology.Equal(topology) {
		t.Fatalf("header = %v %v", loaded.Id, loaded.Topology)
	}
	for i := range n.Weights {
		if !mat.Equal(n.Weights[i], loaded.Weights[i]) {
			t.Errorf("weights %v differ", i)
		}
		if !mat.Equal(n.Biases[i], loaded.Biases[i]) {
			t.Errorf("biases %v differ", i)
		}
	}
}

func TestLayerShape(t *testing.T) {
	var topology = NewTopology(769, 1, []uint32{256, 32})
	var want = [][2]int{{769, 256}, {256, 32}, {32, 1}}
	for i, shape := range want {
		var inputs, outputs = topology.LayerShape(i)
		if inputs != shape[0] || outputs != shape[1] {
			t.Errorf("layer %v = %vx%v, want %v", i, inputs, outputs, shape)
		}
	}
	if s := topology.String(); s != "769x256x32x1" {
		t.Errorf("String() = %v", s)
	}
}

func TestLoadCorrupted(t *testing.T) {
	var n = randomNetwork(rand.New(rand.NewSource(2)), NewTopology(8, 1, []uint32{4}))
	var buf bytes.Buffer
	if err := n.Save(&buf); err != nil {
		t.Fatal(err)
	}
	var data = buf.Bytes()

	var flipped = append([]byte(nil), data...)
	flipped[40] ^= 0xff
	if _, err := Load(bytes.NewReader(flipped)); !errors.Is(err, ErrChecksum) {
		t.Errorf("flipped byte: error = %v, want ErrChecksum", err)
	}

	if _, err := Load(bytes.NewReader(data[:len(data)-3])); err == nil {
		t.Error("truncated file must fail")
	}

	var badMagic = append([]byte(nil), data...)
	badMagic[2] = 2
	if _, err := Load(bytes.NewReader(badMagic)); !errors.Is(err, ErrFormat) {
		t.Errorf("old version: error = %v, want ErrFormat", err)
	}
}

func TestLoadOversizedHeader(t *testing.T) {
	var n = randomNetwork(rand.New(rand.NewSource(2)), NewTopology(8, 1, []uint32{4}))
	var buf bytes.Buffer
	if err := n.Save(&buf); err != nil {
		t.Fatal(err)
	}
	var data = buf.Bytes()

	// within the per-layer limits, but far more parameters than allowed
	var huge = append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(huge[8:], 1<<20)
	binary.LittleEndian.PutUint32(huge[20:], 1<<20)
	if _, err := Load(bytes.NewReader(huge)); !errors.Is(err, ErrFormat) {
		t.Errorf("huge topology: error = %v, want ErrFormat", err)
	}

	// plausible size, but the file cannot hold it
	var wide = append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(wide[8:], 4096)
	var path = filepath.Join(t.TempDir(), "wide.nn")
	if err := os.WriteFile(path, wide, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); !errors.Is(err, ErrFormat) {
		t.Errorf("header larger than file: error = %v, want ErrFormat", err)
	}

	path = filepath.Join(t.TempDir(), "ok.nn")
	if err := n.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Errorf("LoadFile: %v", err)
	}
}
