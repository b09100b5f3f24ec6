package train

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/chessnnue/nnue769/internal/journal"
)

type Config struct {
	Epochs          int
	BatchSize       int
	Threads         int
	LearningRate    float64
	ValidationRatio float64
	Seed            int64 // 0 picks a random seed
	CheckpointPath  string
	CheckpointEvery int    // batches between extra checkpoints, 0 disables
	SnapshotFolder  string // keeps a copy of every epoch when set
	FreshOnMismatch bool
}

func DefaultConfig() Config {
	return Config{
		Epochs:          500,
		BatchSize:       512,
		Threads:         DefaultThreads(),
		LearningRate:    0.001,
		ValidationRatio: 0.2,
		CheckpointPath:  "nnue_weights.nn",
	}
}

func DefaultThreads() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// History stores per-epoch results across runs.
type History interface {
	Append(rec journal.Record) error
	Last() (journal.Record, bool, error)
}
