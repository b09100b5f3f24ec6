package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/chessnnue/nnue769/internal/domain"
	"github.com/chessnnue/nnue769/internal/features"
	"github.com/chessnnue/nnue769/internal/rules"
)

var goodRows = []string{
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1,35",
	"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1,-12.5",
	"8/8/3k4/8/8/4K3/8/8 b - - 0 1,0",
	"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3,48",
	"4k3/8/8/8/8/8/8/4K2R w K - 0 1,812",
}

var badRows = []string{
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1,abc",
	"not a position,10",
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
	"",
	"8/8/8/8/8/8/8/8 w - - 0 1,5",
	"4k3/8/8/8/8/8/8/4K3 w - - 0 1,NaN",
}

func newEncoder(t *testing.T) *features.Encoder {
	var e, err = rules.New(rules.NotnilEngineName)
	if err != nil {
		t.Fatal(err)
	}
	return features.NewEncoder(e)
}

func writeFile(t *testing.T, name string, lines []string) string {
	var path = filepath.Join(t.TempDir(), name)
	var err = os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(path string) Config {
	var cfg = DefaultConfig()
	cfg.Path = path
	cfg.Threads = 3
	return cfg
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	var lines []string
	for i := range goodRows {
		lines = append(lines, goodRows[i])
		if i < len(badRows) {
			lines = append(lines, badRows[i])
		}
	}
	lines = append(lines, badRows[len(goodRows):]...)

	var path = writeFile(t, "corpus.csv", lines)
	var ds, err = Load(context.Background(), testConfig(path), newEncoder(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Samples) != len(goodRows) {
		t.Fatalf("samples = %v, want %v", len(ds.Samples), len(goodRows))
	}
	if ds.SkippedCount() != len(badRows) {
		t.Errorf("skipped = %v, want %v", ds.SkippedCount(), len(badRows))
	}
	if ds.Rows != len(lines) {
		t.Errorf("rows = %v, want %v", ds.Rows, len(lines))
	}
	var wantTargets = []float32{35, -12.5, 0, 48, 812}
	for i, sample := range ds.Samples {
		if sample.Target != wantTargets[i] {
			t.Errorf("sample %v target = %v, want %v", i, sample.Target, wantTargets[i])
		}
	}
}

func TestLoadPreservesOrder(t *testing.T) {
	var lines []string
	for i := 0; i < 3*chunkSize+17; i++ {
		lines = append(lines, fmt.Sprintf("%v,%v", rules.InitialPositionFen, i))
	}
	var path = writeFile(t, "order.csv", lines)
	var ds, err = Load(context.Background(), testConfig(path), newEncoder(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Samples) != len(lines) {
		t.Fatalf("samples = %v, want %v", len(ds.Samples), len(lines))
	}
	for i, sample := range ds.Samples {
		if sample.Target != float32(i) {
			t.Fatalf("sample %v target = %v", i, sample.Target)
		}
	}
}

func TestLoadMaxRows(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, goodRows[i%len(goodRows)])
	}
	var path = writeFile(t, "capped.csv", lines)
	for _, maxRows := range []int{1, 7, 50, 100} {
		var cfg = testConfig(path)
		cfg.MaxRows = maxRows
		var ds, err = Load(context.Background(), cfg, newEncoder(t))
		if err != nil {
			t.Fatal(err)
		}
		if len(ds.Samples) != min(maxRows, len(lines)) {
			t.Errorf("MaxRows %v: samples = %v", maxRows, len(ds.Samples))
		}
	}
}

func TestLoadMissingSource(t *testing.T) {
	var cfg = testConfig(filepath.Join(t.TempDir(), "missing.csv"))
	var _, err = Load(context.Background(), cfg, newEncoder(t))
	var target *domain.SourceUnavailableError
	if !errors.As(err, &target) {
		t.Errorf("error = %v, want SourceUnavailableError", err)
	}
}

func TestLoadGzip(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "corpus.csv.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	var zw = gzip.NewWriter(f)
	zw.Write([]byte(strings.Join(goodRows, "\n")))
	zw.Close()
	f.Close()

	ds, err := Load(context.Background(), testConfig(path), newEncoder(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Samples) != len(goodRows) {
		t.Errorf("samples = %v, want %v", len(ds.Samples), len(goodRows))
	}
}

func TestLoadZstd(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "corpus.csv.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	zw.Write([]byte(strings.Join(goodRows, "\n")))
	zw.Close()
	f.Close()

	ds, err := Load(context.Background(), testConfig(path), newEncoder(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Samples) != len(goodRows) {
		t.Errorf("samples = %v, want %v", len(ds.Samples), len(goodRows))
	}
}

func TestLoadSkipsOverlongRow(t *testing.T) {
	var lines = append([]string{}, goodRows...)
	lines = append(lines, strings.Repeat("x", 2*maxRowLength)+",1")
	lines = append(lines, goodRows...)
	var path = writeFile(t, "long.csv", lines)

	var cfg = testConfig(path)
	var ds, err = Load(context.Background(), cfg, newEncoder(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Samples) != 2*len(goodRows) {
		t.Errorf("samples = %v, want %v", len(ds.Samples), 2*len(goodRows))
	}
	if ds.Skipped[RowSkippedFormat] != 1 || ds.SkippedCount() != 1 {
		t.Errorf("skipped = %v, want one bad format row", ds.Skipped)
	}
	if ds.Rows != len(lines) {
		t.Errorf("rows = %v, want %v", ds.Rows, len(lines))
	}
	if ds.Samples[len(goodRows)].Target != 35 {
		t.Errorf("rows after the long one out of order: %v", ds.Samples[len(goodRows)].Target)
	}

	// the cap counts the dropped row too
	cfg.MaxRows = len(goodRows) + 1
	ds, err = Load(context.Background(), cfg, newEncoder(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Samples) != len(goodRows) || ds.Rows != len(goodRows)+1 {
		t.Errorf("capped: samples = %v rows = %v", len(ds.Samples), ds.Rows)
	}
}

func TestParseRow(t *testing.T) {
	var encoder = newEncoder(t)
	var tests = []struct {
		line string
		want RowStatus
	}{
		{goodRows[0], RowParsed},
		{"\"" + rules.InitialPositionFen + "\", 17", RowParsed},
		{"\"" + rules.InitialPositionFen + "\",\"-3\",extra", RowParsed},
		{rules.InitialPositionFen + "\t5", RowSkippedFormat},
		{"\"4k3/8/8/8/8/8/8/4K3 w - - 0 1\"\"\",1", RowSkippedPosition},
		{"only one field", RowSkippedFormat},
		{"bad fen,1", RowSkippedPosition},
		{rules.InitialPositionFen + ",", RowSkippedScore},
		{rules.InitialPositionFen + ",+Inf", RowSkippedScore},
		{rules.InitialPositionFen + ",1e60", RowSkippedScore},
	}
	for _, test := range tests {
		var row = ParseRow(encoder, test.line, ',')
		if row.Status != test.want {
			t.Errorf("ParseRow(%q) = %v (%v), want %v", test.line, row.Status, row.Err, test.want)
		}
	}
}

func TestSplit(t *testing.T) {
	var ds = &Dataset{}
	for i := 0; i < 101; i++ {
		ds.Samples = append(ds.Samples, domain.Sample{Target: float32(i)})
	}
	var training, validation = ds.Split(0.2, rand.New(rand.NewSource(1)))
	if len(validation) != 21 || len(training) != 80 {
		t.Fatalf("split = %v/%v, want 80/21", len(training), len(validation))
	}
	var seen = make(map[float32]bool)
	for _, s := range append(append([]domain.Sample{}, training...), validation...) {
		if seen[s.Target] {
			t.Fatalf("sample %v appears twice", s.Target)
		}
		seen[s.Target] = true
	}
	if len(seen) != 101 {
		t.Errorf("split lost samples: %v", len(seen))
	}
	if ds.Samples[0].Target != 0 || ds.Samples[100].Target != 100 {
		t.Error("Split must not reorder the dataset")
	}
}
