package evaluator

import (
	"math/rand"
	"sync"

	"github.com/chessnnue/nnue769/internal/features"
	"github.com/chessnnue/nnue769/internal/math"
	"github.com/chessnnue/nnue769/internal/rules"
	"github.com/chessnnue/nnue769/internal/train"
)

type Evaluation struct {
	Fen            string
	Score          float64
	WinProbability float64
}

// EvalService scores positions with a trained checkpoint. It is safe for
// concurrent use.
type EvalService struct {
	engine rules.Engine
	Scale  float64

	mu    sync.Mutex
	model *train.Model
}

func NewEvalService(engine rules.Engine, filepath string) (*EvalService, error) {
	var model = train.NewModel(rand.New(rand.NewSource(1)))
	var err = model.Load(filepath)
	if err != nil {
		return nil, err
	}
	return &EvalService{
		engine: engine,
		Scale:  math.DefaultScale,
		model:  model,
	}, nil
}

// Evaluate scores fen after playing moves (UCI notation) from it.
func (e *EvalService) Evaluate(fen string, moves []string) (Evaluation, error) {
	var pos, err = e.engine.Parse(fen)
	if err != nil {
		return Evaluation{}, err
	}
	pos, err = rules.ApplyMoves(e.engine, pos, moves)
	if err != nil {
		return Evaluation{}, err
	}
	var score = e.EvaluatePosition(pos)
	return Evaluation{
		Fen:            pos.FEN(),
		Score:          score,
		WinProbability: math.WinProbability(score, e.Scale),
	}, nil
}

func (e *EvalService) EvaluatePosition(pos rules.Position) float64 {
	var input = features.FromPosition(pos)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Predict(input)
}
