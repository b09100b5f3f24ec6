package train

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chessnnue/nnue769/internal/domain"
	"github.com/chessnnue/nnue769/internal/journal"
	"github.com/chessnnue/nnue769/internal/ml"
)

// Trainer owns the model parameters for the whole run. Batches are applied
// one after another; the samples of a batch are spread over Threads copies.
type Trainer struct {
	cfg        Config
	rnd        *rand.Rand
	opt        *ml.Adam
	models     []*Model
	history    History
	firstEpoch int
}

func NewTrainer(cfg Config, history History) *Trainer {
	var seed = cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var rnd = rand.New(rand.NewSource(seed))
	var mainModel = NewModel(rnd)
	var models = make([]*Model, max(1, cfg.Threads))
	models[0] = mainModel
	for i := 1; i < len(models); i++ {
		models[i] = mainModel.ThreadCopy()
	}
	return &Trainer{
		cfg:        cfg,
		rnd:        rnd,
		opt:        ml.NewAdam(cfg.LearningRate),
		models:     models,
		history:    history,
		firstEpoch: 1,
	}
}

func (t *Trainer) Model() *Model {
	return t.models[0]
}

// WarmStart loads the checkpoint if there is a usable one. A missing or
// unreadable file keeps the fresh weights; a shape mismatch is an error
// unless FreshOnMismatch is set.
func (t *Trainer) WarmStart() error {
	if t.history != nil {
		var last, found, err = t.history.Last()
		if err != nil {
			return err
		}
		if found {
			t.firstEpoch = last.Epoch + 1
		}
	}

	if t.cfg.CheckpointPath == "" {
		return nil
	}
	var err = t.models[0].Load(t.cfg.CheckpointPath)
	if err == nil {
		log.Println("warmStart", "loaded", t.cfg.CheckpointPath)
		return nil
	}
	var mismatch *domain.ShapeMismatchError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Println("warmStart", "no checkpoint, fresh weights")
		return nil
	case errors.As(err, &mismatch):
		if t.cfg.FreshOnMismatch {
			log.Println("warmStart", "fresh weights:", err)
			return nil
		}
		return err
	default:
		log.Println("warmStart", "checkpoint unreadable, fresh weights:", err)
		return nil
	}
}

func (t *Trainer) Train(
	ctx context.Context,
	training []domain.Sample,
	validation []domain.Sample,
) error {
	log.Println("Train started",
		"training", len(training),
		"validation", len(validation))
	defer log.Println("Train finished")

	var lastEpoch = t.firstEpoch + t.cfg.Epochs - 1
	for epoch := t.firstEpoch; epoch <= lastEpoch; epoch++ {
		shuffle(t.rnd, training)
		var totalCost, err = t.trainEpoch(ctx, epoch, training)
		if err != nil {
			return err
		}
		t.firstEpoch = epoch + 1

		var trainingCost float64
		if len(training) != 0 {
			trainingCost = totalCost / float64(len(training))
		}
		log.Printf("Finished Epoch %v\n", epoch)
		log.Printf("Current training cost is: %f\n", trainingCost)
		var validationCost float64
		if len(validation) != 0 {
			validationCost = calcAverageCost(validation, t.models)
			log.Printf("Current validation cost is: %f\n", validationCost)
		}

		if err := t.Save(); err != nil {
			return err
		}
		if t.cfg.SnapshotFolder != "" {
			var err = t.models[0].Save(buildNetPath(t.cfg.SnapshotFolder, epoch, validationCost))
			if err != nil {
				return err
			}
		}
		if t.history != nil {
			var err = t.history.Append(journal.Record{
				Epoch:          epoch,
				TrainingCost:   trainingCost,
				ValidationCost: validationCost,
				Samples:        len(training),
				Checkpoint:     t.cfg.CheckpointPath,
				Finished:       time.Now(),
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// trainEpoch runs one pass over training in order and returns the summed cost.
func (t *Trainer) trainEpoch(ctx context.Context, epoch int, training []domain.Sample) (float64, error) {
	var batchSize = max(1, t.cfg.BatchSize)
	var totalCost float64
	var batchIndex int
	for i := 0; i < len(training); i += batchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var batch = training[i:min(i+batchSize, len(training))]
		var cost = trainBatch(batch, t.models)
		if !domain.IsFinite(cost) {
			return 0, &domain.NonFiniteLossError{
				Epoch: epoch,
				Batch: batchIndex,
				Loss:  cost / float64(len(batch)),
			}
		}
		applyGradients(t.models, t.opt)
		totalCost += cost
		batchIndex++
		if t.cfg.CheckpointEvery > 0 && batchIndex%t.cfg.CheckpointEvery == 0 {
			if err := t.Save(); err != nil {
				return 0, err
			}
		}
	}
	return totalCost, nil
}

// Save writes the checkpoint; it is a no-op without CheckpointPath.
func (t *Trainer) Save() error {
	if t.cfg.CheckpointPath == "" {
		return nil
	}
	var err = t.models[0].Save(t.cfg.CheckpointPath)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func shuffle(rnd *rand.Rand, training []domain.Sample) {
	rnd.Shuffle(len(training), func(i, j int) {
		training[i], training[j] = training[j], training[i]
	})
}

func trainBatch(samples []domain.Sample, models []*Model) float64 {
	var index int32 = -1
	var wg = &sync.WaitGroup{}
	var totalCost float64
	var mu = &sync.Mutex{}
	for i := range models {
		wg.Add(1)
		go func(m *Model) {
			defer wg.Done()
			var localCost float64
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= len(samples) {
					break
				}
				localCost += m.Train(&samples[i])
			}
			mu.Lock()
			totalCost += localCost
			mu.Unlock()
		}(models[i])
	}
	wg.Wait()
	return totalCost
}

func applyGradients(models []*Model, opt *ml.Adam) {
	for i := 1; i < len(models); i++ {
		models[i].AddGradients(models[0])
	}
	models[0].ApplyGradients(opt)
}

func calcAverageCost(samples []domain.Sample, models []*Model) float64 {
	var index int32 = -1
	var wg = &sync.WaitGroup{}
	var totalCost float64
	var mu = &sync.Mutex{}
	for i := range models {
		wg.Add(1)
		go func(m *Model) {
			defer wg.Done()
			var localCost float64
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= len(samples) {
					break
				}
				localCost += m.CalcCost(&samples[i])
			}
			mu.Lock()
			totalCost += localCost
			mu.Unlock()
		}(models[i])
	}
	wg.Wait()
	averageCost := totalCost / float64(len(samples))
	return averageCost
}

func buildNetPath(netFolderPath string, epoch int, validationCost float64) string {
	var valCostInt = int(100000 * validationCost)
	return filepath.Join(netFolderPath, fmt.Sprintf("n-%03d-%v.nn", epoch, valCostInt))
}
