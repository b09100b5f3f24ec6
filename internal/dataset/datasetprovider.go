package dataset

import (
	"context"
	"log"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/chessnnue/nnue769/internal/domain"
	"github.com/chessnnue/nnue769/internal/features"
)

type Config struct {
	Path          string
	Delimiter     rune
	MaxRows       int // 0 means no limit
	ProgressEvery int
	Threads       int
}

func DefaultConfig() Config {
	return Config{
		Delimiter:     ',',
		MaxRows:       2_000_000,
		ProgressEvery: 100_000,
		Threads:       runtime.NumCPU(),
	}
}

// Dataset is read-only once loaded and may be shared between goroutines.
type Dataset struct {
	Samples []domain.Sample
	Rows    int
	Skipped map[RowStatus]int
}

// Load reads the labeled corpus at cfg.Path. Malformed rows are counted and
// dropped; only an unavailable source fails the whole load.
func Load(
	ctx context.Context,
	cfg Config,
	encoder *features.Encoder,
) (*Dataset, error) {
	log.Println("loadDataset started", "path", cfg.Path)
	defer log.Println("loadDataset finished")

	total, err := countRows(cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRows != 0 && total > cfg.MaxRows {
		total = cfg.MaxRows
	}
	log.Println("loadDataset", "rows", humanize.Comma(int64(total)))

	g, ctx := errgroup.WithContext(ctx)

	var chunks = make(chan rowChunk, 128)
	var results = make(chan parsedChunk, 128)

	g.Go(func() error {
		defer close(chunks)
		return readRows(ctx, cfg, total, chunks)
	})

	var threads = max(1, cfg.Threads)
	var wg = &sync.WaitGroup{}
	for i := 0; i < threads; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return parseChunks(ctx, encoder, cfg.Delimiter, chunks, results)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	var ds *Dataset
	g.Go(func() error {
		ds = mergeChunks(results)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Println("loadDataset",
		"samples", humanize.Comma(int64(len(ds.Samples))),
		"skipped", ds.SkippedCount())
	return ds, nil
}

func (ds *Dataset) SkippedCount() int {
	var n int
	for _, count := range ds.Skipped {
		n += count
	}
	return n
}

// Split shuffles a copy of the samples and cuts off ceil(n*ratio) of them
// for validation.
func (ds *Dataset) Split(ratio float64, rnd *rand.Rand) (training, validation []domain.Sample) {
	var samples = make([]domain.Sample, len(ds.Samples))
	copy(samples, ds.Samples)
	rnd.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
	var validationSize = int(math.Ceil(float64(len(samples)) * ratio))
	validationSize = min(max(validationSize, 0), len(samples))
	return samples[validationSize:], samples[:validationSize]
}
