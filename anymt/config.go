package anymt

import (
	"fmt"
	"path/filepath"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyseg/anyclean"
	"github.com/unixpickle/anyseg/anysgd"
)

// These are the supported optimizers.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Config holds the hyper-parameters of a training run.
type Config struct {
	// RootPath is the dataset directory.
	RootPath string

	// Exp and Model name the run; checkpoints go under
	// ModelDir/<Exp>_<LabeledNum>/<Model>.
	Exp      string
	Model    string
	ModelDir string

	MaxIterations int
	BatchSize     int
	LabeledBS     int
	LabeledNum    int
	TotalSample   int

	InChannels int
	Classes    int
	Patch      anyseg.Shape

	// Optimizer is OptimizerSGD (with Momentum) or
	// OptimizerAdam. WeightDecay applies to both.
	Optimizer string

	// LRPower is the exponent of the polynomial decay.
	// A value of 0 keeps the rate at BaseLR.
	BaseLR      float64
	LRPower     float64
	Momentum    float64
	WeightDecay float64

	Seed     int64
	EMADecay float64

	Consistency       float64
	ConsistencyRampup float64
	RampupInterval    int

	CLType anyclean.Strategy

	NoiseStd  float64
	NoiseClip float64

	PseudoThreshold float64
	PerturbWeight   float64

	// Validation runs every ValInterval iterations once the
	// iteration count exceeds ValWarmup.
	ValInterval int
	ValWarmup   int
	StrideXY    int
	StrideZ     int

	// ImageInterval is the number of iterations between
	// recorded image grids, or 0 for none.
	ImageInterval int

	Workers int
}

// DefaultConfig returns the settings used for the left
// atrium experiments.
func DefaultConfig() *Config {
	return &Config{
		RootPath:          "../data/LA",
		Exp:               "MCL3S",
		Model:             "voxelnet",
		ModelDir:          "../model",
		MaxIterations:     15000,
		BatchSize:         4,
		LabeledBS:         2,
		LabeledNum:        10,
		TotalSample:       51,
		InChannels:        1,
		Classes:           2,
		Patch:             anyseg.Shape{X: 160, Y: 160, Z: 120},
		Optimizer:         OptimizerSGD,
		BaseLR:            0.01,
		LRPower:           0.9,
		Momentum:          0.9,
		WeightDecay:       1e-4,
		Seed:              2025,
		EMADecay:          0.99,
		Consistency:       0.1,
		ConsistencyRampup: 40,
		RampupInterval:    150,
		CLType:            anyclean.Both,
		NoiseStd:          0.1,
		NoiseClip:         0.2,
		PseudoThreshold:   0.95,
		PerturbWeight:     0.2,
		ValInterval:       50,
		ValWarmup:         500,
		StrideXY:          18,
		StrideZ:           4,
		ImageInterval:     20,
		Workers:           4,
	}
}

// UnlabeledBS returns the number of unlabeled volumes per
// batch.
func (c *Config) UnlabeledBS() int {
	return c.BatchSize - c.LabeledBS
}

// SnapshotPath returns the directory for checkpoints and
// logs.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.ModelDir, fmt.Sprintf("%s_%d", c.Exp, c.LabeledNum), c.Model)
}

// A ConfigError reports an invalid setting.
type ConfigError struct {
	Field string
	Msg   string
}

func (c *ConfigError) Error() string {
	return "invalid " + c.Field + ": " + c.Msg
}

// Validate checks that the settings are consistent.
func (c *Config) Validate() error {
	check := func(ok bool, field, format string, args ...interface{}) error {
		if ok {
			return nil
		}
		return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
	}
	checks := []error{
		check(c.MaxIterations > 0, "max iterations", "%d is not positive", c.MaxIterations),
		check(c.BatchSize > 0, "batch size", "%d is not positive", c.BatchSize),
		check(c.LabeledBS >= 0, "labeled batch size", "%d is negative", c.LabeledBS),
		check(c.BatchSize-c.LabeledBS > 0, "labeled batch size",
			"%d leaves no unlabeled volumes in a batch of %d", c.LabeledBS, c.BatchSize),
		check(c.LabeledNum >= c.LabeledBS, "labeled num",
			"%d labeled volumes cannot fill %d per batch", c.LabeledNum, c.LabeledBS),
		check(c.TotalSample-c.LabeledNum >= c.UnlabeledBS(), "total sample",
			"%d unlabeled volumes cannot fill %d per batch", c.TotalSample-c.LabeledNum,
			c.UnlabeledBS()),
		check(c.InChannels > 0, "input channels", "%d is not positive", c.InChannels),
		check(c.Classes >= 2, "classes", "need at least 2 but got %d", c.Classes),
		check(c.Patch.Valid(), "patch size", "%v", c.Patch),
		check(c.Optimizer == OptimizerSGD || c.Optimizer == OptimizerAdam, "optimizer",
			"unknown optimizer %q", c.Optimizer),
		check(c.BaseLR > 0, "base lr", "%f is not positive", c.BaseLR),
		check(c.LRPower >= 0, "lr power", "%f is negative", c.LRPower),
		check(c.EMADecay >= 0 && c.EMADecay <= 1, "ema decay", "%f not in [0, 1]", c.EMADecay),
		check(c.Consistency >= 0, "consistency", "%f is negative", c.Consistency),
		check(c.ConsistencyRampup >= 0, "consistency rampup", "%f is negative",
			c.ConsistencyRampup),
		check(c.RampupInterval > 0, "rampup interval", "%d is not positive", c.RampupInterval),
		check(c.NoiseStd >= 0 && c.NoiseClip >= 0, "noise", "std %f and clip %f must not be negative",
			c.NoiseStd, c.NoiseClip),
		check(c.PseudoThreshold >= 0 && c.PseudoThreshold <= 1, "pseudo threshold",
			"%f not in [0, 1]", c.PseudoThreshold),
		check(c.PerturbWeight >= 0, "perturb weight", "%f is negative", c.PerturbWeight),
		check(c.ValInterval > 0, "validation interval", "%d is not positive", c.ValInterval),
		check(c.StrideXY > 0 && c.StrideZ > 0, "strides", "%d, %d must be positive",
			c.StrideXY, c.StrideZ),
		check(c.ImageInterval >= 0, "image interval", "%d is negative", c.ImageInterval),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// NewOptimizer creates the gradient transformer selected
// by c.Optimizer.
func (c *Config) NewOptimizer() anysgd.Transformer {
	decay := &anysgd.WeightDecay{Rate: c.WeightDecay}
	if c.Optimizer == OptimizerAdam {
		return anysgd.Chain{decay, &anysgd.Adam{}}
	}
	return anysgd.Chain{decay, &anysgd.Momentum{Momentum: c.Momentum}}
}

// NewRater creates the learning rate schedule.
func (c *Config) NewRater() anysgd.Rater {
	if c.LRPower == 0 {
		return anysgd.ConstRater(c.BaseLR)
	}
	return &anysgd.PolyRater{
		Base:    c.BaseLR,
		MaxIter: c.MaxIterations,
		Power:   c.LRPower,
	}
}
