package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyseg/anyclean"
	"github.com/unixpickle/anyseg/anydata"
	"github.com/unixpickle/anyseg/anyeval"
	"github.com/unixpickle/anyseg/anymt"
	"github.com/unixpickle/anyseg/anyrec"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/rip"
	"go.uber.org/zap"
)

func main() {
	cfg := anymt.DefaultConfig()
	var patch, clType string
	var synthetic bool
	flag.StringVar(&cfg.RootPath, "root_path", cfg.RootPath, "dataset directory")
	flag.StringVar(&cfg.Exp, "exp", cfg.Exp, "experiment name")
	flag.StringVar(&cfg.Model, "model", cfg.Model,
		"network name ("+strings.Join(anyseg.NetNames(), ", ")+")")
	flag.StringVar(&cfg.ModelDir, "model_dir", cfg.ModelDir, "checkpoint root")
	flag.IntVar(&cfg.MaxIterations, "max_iterations", cfg.MaxIterations, "training iterations")
	flag.IntVar(&cfg.BatchSize, "batch_size", cfg.BatchSize, "volumes per batch")
	flag.IntVar(&cfg.LabeledBS, "labeled_bs", cfg.LabeledBS, "labeled volumes per batch")
	flag.IntVar(&cfg.LabeledNum, "labeled_num", cfg.LabeledNum, "labeled training volumes")
	flag.IntVar(&cfg.TotalSample, "total_sample", cfg.TotalSample, "training volumes")
	flag.StringVar(&cfg.Optimizer, "optimizer", cfg.Optimizer, "optimizer (sgd, adam)")
	flag.Float64Var(&cfg.BaseLR, "base_lr", cfg.BaseLR, "initial learning rate")
	flag.Float64Var(&cfg.LRPower, "lr_power", cfg.LRPower,
		"polynomial decay power, 0 for a constant rate")
	flag.StringVar(&patch, "patch_size", cfg.Patch.String(), "patch size XxYxZ")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.Float64Var(&cfg.EMADecay, "ema_decay", cfg.EMADecay, "teacher EMA decay")
	flag.Float64Var(&cfg.Consistency, "consistency", cfg.Consistency, "maximum consistency weight")
	flag.Float64Var(&cfg.ConsistencyRampup, "consistency_rampup", cfg.ConsistencyRampup,
		"consistency rampup length")
	flag.StringVar(&clType, "CL_type", cfg.CLType.String(),
		"label filter (both, prune_by_class, prune_by_noise_rate)")
	flag.Float64Var(&cfg.PseudoThreshold, "pseudo_threshold", cfg.PseudoThreshold,
		"confidence for perturbation pseudo-labels")
	flag.Float64Var(&cfg.PerturbWeight, "perturb_weight", cfg.PerturbWeight,
		"perturbation loss weight")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "data loading workers")
	flag.BoolVar(&synthetic, "synthetic", false, "train on generated spheres")
	flag.Parse()

	var err error
	if cfg.Patch, err = parseShape(patch); err != nil {
		die(err)
	}
	if cfg.CLType, err = anyclean.ParseStrategy(clType); err != nil {
		die(err)
	}
	if err := cfg.Validate(); err != nil {
		die(err)
	}

	snapshot := cfg.SnapshotPath()
	if err := os.MkdirAll(snapshot, 0755); err != nil {
		die(err)
	}
	log := newLogger(snapshot)
	defer log.Sync()
	log.Infof("config: %+v", *cfg)

	creator := anyvec32.CurrentCreator()
	train, test, err := datasets(cfg, creator, synthetic)
	if err != nil {
		log.Fatal(err)
	}

	labeled, unlabeled, err := anydata.Split(cfg.LabeledNum, cfg.TotalSample)
	if err != nil {
		log.Fatal(err)
	}
	sampler, err := anydata.NewTwoStreamSampler(labeled, unlabeled, cfg.BatchSize,
		cfg.UnlabeledBS(), rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		log.Fatal(err)
	}
	loader := anydata.NewLoader(train, sampler, anydata.LoaderOptions{
		Workers:   cfg.Workers,
		Seed:      cfg.Seed,
		Transform: &anydata.RandomCrop{Shape: cfg.Patch},
	})
	defer loader.Close()

	r := rand.New(rand.NewSource(cfg.Seed))
	student, err := anyseg.NewNet(cfg.Model, creator, cfg.InChannels, cfg.Classes, r)
	if err != nil {
		log.Fatal(err)
	}
	trainer, err := anymt.NewTrainer(cfg, student, loader, r)
	if err != nil {
		log.Fatal(err)
	}

	db, err := anyrec.OpenSQLite(filepath.Join(snapshot, "log.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	trainer.Log = log
	trainer.Recorder = db
	trainer.Checkpointer = &anymt.Checkpointer{Dir: snapshot, Model: cfg.Model}
	trainer.Evaluator = &anyeval.SlidingWindow{
		Cases:    test,
		Classes:  cfg.Classes,
		Patch:    cfg.Patch,
		StrideXY: cfg.StrideXY,
		StrideZ:  cfg.StrideZ,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := rip.NewRIP()
	go func() {
		select {
		case <-stop.Chan():
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("Press ctrl+c once to stop...")
	err = trainer.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Fatal(err)
		}
		log.Info("stopped early")
	}
	if err := db.Err(); err != nil {
		log.Warnf("recording failed: %v", err)
	}
	log.Infof("finished at iteration %d: best dice %f, %d filter fallbacks, %d checkpoint failures",
		trainer.Iter, trainer.BestScore, trainer.FilterFallbacks, trainer.CheckpointFailures)
}

func die(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func newLogger(snapshot string) *zap.SugaredLogger {
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{"stdout", filepath.Join(snapshot, "log.txt")}
	logger, err := zc.Build()
	if err != nil {
		die(err)
	}
	return logger.Sugar()
}

func datasets(cfg *anymt.Config, c anyvec.Creator,
	synthetic bool) (train, test anydata.Dataset, err error) {
	if synthetic {
		train = &anydata.Synthetic{Creator: c, Num: cfg.TotalSample, Shape: cfg.Patch,
			Noise: 0.3, Seed: cfg.Seed}
		test = &anydata.Synthetic{Creator: c, Num: 4, Shape: cfg.Patch, Noise: 0.3,
			Seed: cfg.Seed + int64(cfg.TotalSample)}
		return
	}
	trainSet, err := anydata.NewFileDataset(c, cfg.RootPath,
		filepath.Join(cfg.RootPath, "train.list"))
	if err != nil {
		return nil, nil, err
	}
	if trainSet.Len() < cfg.TotalSample {
		return nil, nil, &anymt.ConfigError{Field: "total sample",
			Msg: fmt.Sprintf("%d exceeds the %d cases in the train list", cfg.TotalSample,
				trainSet.Len())}
	}
	testSet, err := anydata.NewFileDataset(c, cfg.RootPath,
		filepath.Join(cfg.RootPath, "test.list"))
	if err != nil {
		return nil, nil, err
	}
	return trainSet, testSet, nil
}

func parseShape(s string) (anyseg.Shape, error) {
	parts := strings.Split(s, "x")
	if len(parts) != 3 {
		return anyseg.Shape{}, fmt.Errorf("parse patch size: %q is not XxYxZ", s)
	}
	var sides [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return anyseg.Shape{}, essentials.AddCtx("parse patch size", err)
		}
		sides[i] = n
	}
	return anyseg.Shape{X: sides[0], Y: sides[1], Z: sides[2]}, nil
}
