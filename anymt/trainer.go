// Package anymt trains a segmentation network with a mean
// teacher, confident-learning pseudo-label filtering and a
// perturbed self-training path.
package anymt

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyseg/anydata"
	"github.com/unixpickle/anyseg/anyema"
	"github.com/unixpickle/anyseg/anyeval"
	"github.com/unixpickle/anyseg/anyrec"
	"github.com/unixpickle/anyseg/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

const imageDepthStep = 10

// A BatchSource produces training batches.
type BatchSource interface {
	Next(ctx context.Context) (*anydata.Batch, error)
	EpochLen() int
}

// State is the phase of a Trainer.
type State int

const (
	Running State = iota
	Validating
	Checkpointing
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Validating:
		return "validating"
	case Checkpointing:
		return "checkpointing"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StepStats summarizes one training step.
type StepStats struct {
	// Iter is the iteration count after the step.
	Iter int

	LR     float64
	Weight float64
	Alpha  float64

	CE           float64
	Dice         float64
	Supervised   float64
	Consistency  float64
	Perturbation float64
	Total        float64

	SupervisedSkipped bool
	Fallback          bool
	Flagged           int
}

// A Trainer runs the training loop.
//
// Config, Student, Teacher and Source are required.
// Evaluator, Checkpointer and Recorder may be nil.
type Trainer struct {
	Config  *Config
	Student anyseg.Segmenter
	Teacher anyseg.Segmenter
	Source  BatchSource

	Evaluator    anyeval.Evaluator
	Checkpointer *Checkpointer
	Recorder     anyrec.Recorder
	Log          *zap.SugaredLogger

	Composer  *Composer
	Noise     *NoiseInjector
	Optimizer anysgd.Transformer
	Rater     anysgd.Rater
	Ramp      *anysgd.ConsistencyRamp

	State     State
	Iter      int
	BestScore float64

	// FilterFallbacks counts steps whose consistency term
	// used the unmasked fallback.
	FilterFallbacks int

	// CheckpointFailures counts improvements that could not
	// be saved.
	CheckpointFailures int

	shadow *anyema.Shadow
}

// NewTrainer creates a Trainer whose teacher starts as a
// copy of the student.
//
// The random source drives noise injection and the
// teacher's stochastic layers.
func NewTrainer(cfg *Config, student anyseg.Segmenter, src BatchSource,
	r *rand.Rand) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if student.NumClasses() != cfg.Classes {
		return nil, &ConfigError{Field: "classes",
			Msg: fmt.Sprintf("network has %d classes but config has %d", student.NumClasses(),
				cfg.Classes)}
	}
	if r == nil {
		r = rand.New(rand.NewSource(cfg.Seed))
	}
	teacher := student.Clone(rand.New(rand.NewSource(r.Int63())))
	return &Trainer{
		Config:  cfg,
		Student: student,
		Teacher: teacher,
		Source:  src,
		Composer: &Composer{
			Classes:         cfg.Classes,
			Strategy:        cfg.CLType,
			PseudoThreshold: cfg.PseudoThreshold,
			PerturbWeight:   cfg.PerturbWeight,
		},
		Noise: &NoiseInjector{Std: cfg.NoiseStd, Clip: cfg.NoiseClip, Rand: r},
		Optimizer: cfg.NewOptimizer(),
		Rater:     cfg.NewRater(),
		Ramp: &anysgd.ConsistencyRamp{
			Max:      cfg.Consistency,
			Length:   cfg.ConsistencyRampup,
			Interval: cfg.RampupInterval,
		},
		shadow: &anyema.Shadow{Params: teacher.Parameters(), Decay: cfg.EMADecay},
	}, nil
}

// Run trains until the iteration limit is reached, the
// context is cancelled, or a fatal error occurs.
//
// Cancellation returns the context's error.
func (t *Trainer) Run(ctx context.Context) error {
	defer func() {
		t.State = Stopped
	}()
	log := t.logger()
	epochLen := t.Source.EpochLen()
	if epochLen <= 0 {
		return fmt.Errorf("train: epoch length %d", epochLen)
	}
	log.Infof("%d iterations per epoch", epochLen)

	t.State = Running
	for t.Iter < t.Config.MaxIterations {
		for i := 0; i < epochLen; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := t.Step(ctx); err != nil {
				return err
			}
			if t.Iter > t.Config.ValWarmup && t.Iter%t.Config.ValInterval == 0 {
				if err := t.Validate(); err != nil {
					return err
				}
			}
			if t.Iter >= t.Config.MaxIterations {
				break
			}
		}
	}
	return nil
}

// Step performs one training iteration.
func (t *Trainer) Step(ctx context.Context) (*StepStats, error) {
	cfg := t.Config
	batch, err := t.Source.Next(ctx)
	if err != nil {
		return nil, essentials.AddCtx("train step", err)
	}
	if batch.Num != cfg.BatchSize || batch.Labeled != cfg.LabeledBS {
		return nil, fmt.Errorf("train step: batch has %d volumes (%d labeled), expected %d (%d)",
			batch.Num, batch.Labeled, cfg.BatchSize, cfg.LabeledBS)
	}

	vols := batch.Volumes()
	unlabeled := vols.Slice(batch.Labeled, batch.Num)
	raw, noisy := t.Noise.Inputs(unlabeled.Data)

	out := t.Student.Forward(vols, anyseg.ForwardOptions{
		Perturb:     true,
		PerturbFrom: batch.Labeled,
	})
	teacherProbs := t.teacherProbs(unlabeled, raw)
	noisyTeacherProbs := t.teacherProbs(unlabeled, noisy)

	weight := t.Ramp.Weight(t.Iter)
	losses := t.Composer.Compose(&LossInputs{
		Num:               batch.Num,
		Labeled:           batch.Labeled,
		Voxels:            batch.Shape.Voxels(),
		Logits:            out.Logits,
		Perturbed:         out.Perturbed,
		Labels:            batch.Labels,
		TeacherProbs:      teacherProbs,
		NoisyTeacherProbs: noisyTeacherProbs,
		ConsistencyWeight: weight,
	})
	total := anyseg.Scalar(losses.Total)
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("train step: non-finite loss %f at iteration %d", total, t.Iter)
	}
	if losses.Fallback() {
		t.FilterFallbacks++
		t.logger().Warnf("iteration %d : label filter failed, using unmasked consistency: %v",
			t.Iter, losses.Filter.Err)
	}

	params := t.Student.Parameters()
	grad := anydiff.NewGrad(params...)
	c := losses.Total.Output().Creator()
	losses.Total.Propagate(anyseg.MakeVector(c, []float64{1}), grad)
	lr := t.Rater.Rate(t.Iter)
	anysgd.Step(t.Optimizer.Transform(grad), lr)

	alpha, err := t.shadow.Update(params, t.Iter)
	if err != nil {
		return nil, essentials.AddCtx("train step", err)
	}
	t.Iter++

	stats := &StepStats{
		Iter:              t.Iter,
		LR:                lr,
		Weight:            weight,
		Alpha:             alpha,
		CE:                anyseg.Scalar(losses.CE),
		Dice:              anyseg.Scalar(losses.Dice),
		Supervised:        anyseg.Scalar(losses.Supervised),
		Consistency:       anyseg.Scalar(losses.Consistency),
		Perturbation:      anyseg.Scalar(losses.Perturbation),
		Total:             total,
		SupervisedSkipped: losses.SupervisedSkipped,
		Fallback:          losses.Fallback(),
		Flagged:           losses.Filter.Count(),
	}
	t.record(stats)
	if cfg.ImageInterval > 0 && t.Iter%cfg.ImageInterval == 0 {
		t.recordImages(batch, out.Logits)
	}
	return stats, nil
}

// Validate scores the student in evaluation mode and saves
// it if the score is a new best.
func (t *Trainer) Validate() error {
	if t.Evaluator == nil {
		return nil
	}
	log := t.logger()
	t.State = Validating
	t.Student.SetTraining(false)
	metrics, err := t.Evaluator.Evaluate(t.Student)
	t.Student.SetTraining(true)
	t.State = Running
	if err != nil {
		return essentials.AddCtx("validate", err)
	}

	score := metrics.MeanDice()
	if score > t.BestScore {
		t.State = Checkpointing
		if t.Checkpointer == nil {
			t.BestScore = score
		} else if err := t.Checkpointer.Save(t.Student, t.Iter, score); err != nil {
			t.CheckpointFailures++
			log.Warnf("iteration %d : %v", t.Iter, err)
		} else {
			t.BestScore = score
			log.Infof("iteration %d : saved %s", t.Iter, t.Checkpointer.IterPath(t.Iter, score))
		}
		t.State = Running
	}

	var dice, hd95 float64
	if len(metrics) > 0 {
		dice, hd95 = metrics[0][0], metrics[0][1]
	}
	rec := t.recorder()
	rec.Scalar("info/val_dice_score", dice, t.Iter)
	rec.Scalar("info/val_hd95", hd95, t.Iter)
	log.Infof("iteration %d : dice_score : %f hd95 : %f", t.Iter, score, metrics.MeanHD95())
	return nil
}

func (t *Trainer) teacherProbs(unlabeled *anyseg.Volumes, data anyvec.Vector) []float64 {
	in := *unlabeled
	in.Data = data
	logits := anyseg.NoGrad(func() anydiff.Res {
		return t.Teacher.Apply(&in)
	})
	return anyseg.Softmax(anyseg.Floats(logits.Output()), t.Config.Classes)
}

func (t *Trainer) record(s *StepStats) {
	rec := t.recorder()
	rec.Scalar("info/lr", s.LR, s.Iter)
	rec.Scalar("info/total_loss", s.Total, s.Iter)
	rec.Scalar("info/loss_ce", s.CE, s.Iter)
	rec.Scalar("info/loss_dice", s.Dice, s.Iter)
	rec.Scalar("info/loss_p", s.Perturbation, s.Iter)
	rec.Scalar("info/consistency_loss", s.Consistency, s.Iter)
	rec.Scalar("info/consistency_weight", s.Weight, s.Iter)
	rec.Scalar("info/flagged_voxels", float64(s.Flagged), s.Iter)
	rec.Scalar("loss/loss", s.Total, s.Iter)
	t.logger().Infof("iteration %d : loss : %f, loss_ce: %f, loss_dice: %f, loss_p: %f",
		s.Iter, s.Total, s.CE, s.Dice, s.Perturbation)
}

func (t *Trainer) recordImages(b *anydata.Batch, logits anydiff.Res) {
	rec, ok := t.Recorder.(anyrec.ImageRecorder)
	if !ok {
		return
	}
	classes := t.Config.Classes
	voxels := b.Shape.Voxels()
	image := anyseg.Floats(b.Images.Slice(0, voxels*b.Channels))
	rec.Image("train/Image", anyrec.DepthGrid(image, b.Shape, b.Channels, 0, imageDepthStep),
		t.Iter)
	probs := anyseg.Softmax(anyseg.Floats(logits.Output().Slice(0, voxels*classes)), classes)
	rec.Image("train/Predicted_label",
		anyrec.DepthGrid(probs, b.Shape, classes, 1, imageDepthStep), t.Iter)
	if b.Labeled > 0 {
		rec.Image("train/Groundtruth_label",
			anyrec.DepthGrid(anyrec.LabelVolume(b.Labels[:voxels]), b.Shape, 1, 0,
				imageDepthStep), t.Iter)
	}
}

func (t *Trainer) recorder() anyrec.Recorder {
	if t.Recorder == nil {
		return anyrec.Nop{}
	}
	return t.Recorder
}

func (t *Trainer) logger() *zap.SugaredLogger {
	if t.Log == nil {
		return zap.NewNop().Sugar()
	}
	return t.Log
}
