package train

import (
	"context"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/chessnnue/nnue769/internal/dataset"
)

// Run trains on ds until cfg.Epochs are done and leaves the final weights at
// cfg.CheckpointPath. Errors carry the stage they came from.
func Run(ctx context.Context, ds *dataset.Dataset, cfg Config, history History) error {
	log.Println("train.Run started",
		"samples", humanize.Comma(int64(len(ds.Samples))),
		"threads", cfg.Threads,
		"topology", Topology)
	defer log.Println("train.Run finished")

	var trainer = NewTrainer(cfg, history)
	if err := trainer.WarmStart(); err != nil {
		return fmt.Errorf("warm start: %w", err)
	}

	var training, validation = ds.Split(cfg.ValidationRatio, trainer.rnd)
	log.Println("split",
		"training", humanize.Comma(int64(len(training))),
		"validation", humanize.Comma(int64(len(validation))))

	if err := trainer.Train(ctx, training, validation); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return trainer.Save()
}
