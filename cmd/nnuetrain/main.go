package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/cpuid/v2"

	"github.com/chessnnue/nnue769/internal/dataset"
	"github.com/chessnnue/nnue769/internal/evaluator"
	"github.com/chessnnue/nnue769/internal/features"
	"github.com/chessnnue/nnue769/internal/journal"
	"github.com/chessnnue/nnue769/internal/rules"
	"github.com/chessnnue/nnue769/internal/train"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	var ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt)
	var err = run(ctx, os.Args)
	cancel()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var cli = NewCommandArgs(args)
	var handler = NewCommandHandler()
	handler.Add("train", func() error { return runTrain(ctx, cli) })
	handler.Add("eval", func() error { return runEval(cli) })
	handler.Add("history", func() error { return runHistory(cli) })
	return handler.Execute(cli.CommandName())
}

func trainSettings(cli *CommandArgs) (dataset.Config, train.Config, error) {
	var dsConfig = dataset.DefaultConfig()
	var config = train.DefaultConfig()
	var err error

	dsConfig.Path = cli.GetString("td", dsConfig.Path)
	if dsConfig.Path == "" {
		return dsConfig, config, fmt.Errorf("-td training data path required")
	}
	if delim := cli.GetString("delim", ""); delim != "" {
		dsConfig.Delimiter = []rune(delim)[0]
	}
	if dsConfig.MaxRows, err = cli.GetInt("maxrows", dsConfig.MaxRows); err != nil {
		return dsConfig, config, err
	}
	if dsConfig.ProgressEvery, err = cli.GetInt("progress", dsConfig.ProgressEvery); err != nil {
		return dsConfig, config, err
	}

	config.CheckpointPath = cli.GetString("net", config.CheckpointPath)
	config.SnapshotFolder = cli.GetString("snapshots", config.SnapshotFolder)
	if config.Epochs, err = cli.GetInt("epochs", config.Epochs); err != nil {
		return dsConfig, config, err
	}
	if config.BatchSize, err = cli.GetInt("batch", config.BatchSize); err != nil {
		return dsConfig, config, err
	}
	if config.Threads, err = cli.GetInt("threads", config.Threads); err != nil {
		return dsConfig, config, err
	}
	if config.CheckpointEvery, err = cli.GetInt("checkpointevery", config.CheckpointEvery); err != nil {
		return dsConfig, config, err
	}
	var seed int
	if seed, err = cli.GetInt("seed", 0); err != nil {
		return dsConfig, config, err
	}
	config.Seed = int64(seed)
	if config.LearningRate, err = cli.GetFloat("lr", config.LearningRate); err != nil {
		return dsConfig, config, err
	}
	if config.ValidationRatio, err = cli.GetFloat("val", config.ValidationRatio); err != nil {
		return dsConfig, config, err
	}
	if config.FreshOnMismatch, err = cli.GetBool("fresh", config.FreshOnMismatch); err != nil {
		return dsConfig, config, err
	}

	switch {
	case config.Epochs < 0:
		return dsConfig, config, fmt.Errorf("-epochs must not be negative")
	case config.BatchSize < 1:
		return dsConfig, config, fmt.Errorf("-batch must be positive")
	case config.ValidationRatio < 0 || config.ValidationRatio >= 1:
		return dsConfig, config, fmt.Errorf("-val must be in [0, 1)")
	case config.Threads < 1:
		config.Threads = 1
	}
	dsConfig.Threads = config.Threads
	return dsConfig, config, nil
}

func runTrain(ctx context.Context, cli *CommandArgs) error {
	var dsConfig, config, err = trainSettings(cli)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	engine, err := rules.New(cli.GetString("rules", rules.NotnilEngineName))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log.Println("cpu", cpuid.CPU.BrandName,
		"cores", cpuid.CPU.PhysicalCores,
		"threads", config.Threads)

	var history train.History
	if dir := cli.GetString("journal", ""); dir != "" {
		var j, err = journal.Open(dir)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer j.Close()
		history = j
	}

	ds, err := dataset.Load(ctx, dsConfig, features.NewEncoder(engine))
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	log.Println("loaded",
		"samples", humanize.Comma(int64(len(ds.Samples))),
		"skipped", humanize.Comma(int64(ds.SkippedCount())))
	return train.Run(ctx, ds, config, history)
}

func runEval(cli *CommandArgs) error {
	engine, err := rules.New(cli.GetString("rules", rules.NotnilEngineName))
	if err != nil {
		return err
	}
	service, err := evaluator.NewEvalService(engine, cli.GetString("net", train.DefaultConfig().CheckpointPath))
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if service.Scale, err = cli.GetFloat("scale", service.Scale); err != nil {
		return err
	}
	var moves = strings.Fields(cli.GetString("moves", ""))
	result, err := service.Evaluate(cli.GetString("fen", rules.InitialPositionFen), moves)
	if err != nil {
		return err
	}
	fmt.Printf("fen %v\nscore %.4f\nwin %.4f\n", result.Fen, result.Score, result.WinProbability)
	return nil
}

func runHistory(cli *CommandArgs) error {
	var dir = cli.GetString("journal", "")
	if dir == "" {
		return fmt.Errorf("-journal directory required")
	}
	j, err := journal.Open(dir)
	if err != nil {
		return err
	}
	defer j.Close()
	records, err := j.Records()
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%5d %10.6f %10.6f %12v %v\n",
			rec.Epoch, rec.TrainingCost, rec.ValidationCost,
			humanize.Comma(int64(rec.Samples)), rec.Finished.Format("2006-01-02 15:04:05"))
	}
	return nil
}
