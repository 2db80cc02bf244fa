package anymt

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyseg/anyclean"
)

// consistencyEps keeps the masked consistency mean finite
// when no voxel is flagged.
const consistencyEps = 1e-16

// A FilterFunc flags unreliable pseudo-labels.
type FilterFunc func(labels []int, probs []float64, classes int) anyclean.Result

// LossInputs gathers the per-step tensors for Compose.
//
// All per-voxel tensors are packed channel-last, and the
// first Labeled of the Num volumes are labeled.
type LossInputs struct {
	Num     int
	Labeled int
	Voxels  int

	// Logits is the student's primary output for the batch.
	Logits anydiff.Res

	// Perturbed is the student's perturbed output for the
	// unlabeled volumes, or nil.
	Perturbed anydiff.Res

	// Labels holds the labels of the labeled volumes.
	Labels []int

	// TeacherProbs and NoisyTeacherProbs are the teacher's
	// class probabilities for the clean and noisy unlabeled
	// inputs.
	TeacherProbs      []float64
	NoisyTeacherProbs []float64

	ConsistencyWeight float64
}

// Losses holds every loss term of a step.
type Losses struct {
	CE           anydiff.Res
	Dice         anydiff.Res
	Supervised   anydiff.Res
	Consistency  anydiff.Res
	Perturbation anydiff.Res
	Total        anydiff.Res

	Weight float64

	// SupervisedSkipped is set when the batch has no labeled
	// volumes; CE and Dice are then zero.
	SupervisedSkipped bool

	// Filter is the label-noise filter outcome. When it
	// failed, the consistency term averages over every voxel.
	Filter anyclean.Result
}

// Fallback reports whether the consistency term used the
// unmasked fallback.
func (l *Losses) Fallback() bool {
	return !l.Filter.OK()
}

// A Composer combines the supervised, consistency and
// perturbation losses.
type Composer struct {
	Classes int

	// Filter selects the voxels used by the consistency
	// term. If nil, anyclean.Find with Strategy is used.
	Filter   FilterFunc
	Strategy anyclean.Strategy

	PseudoThreshold float64
	PerturbWeight   float64

	// CEWeights optionally weights the cross-entropy per
	// class.
	CEWeights []float64
}

// Compose computes the losses for one step.
func (c *Composer) Compose(in *LossInputs) *Losses {
	classes := c.Classes
	cr := in.Logits.Output().Creator()
	labeledLen := in.Labeled * in.Voxels * classes
	totalLen := in.Num * in.Voxels * classes
	if in.Logits.Output().Len() != totalLen {
		panic(fmt.Sprintf("logits should have length %d, but got %d", totalLen,
			in.Logits.Output().Len()))
	}

	res := &Losses{Weight: in.ConsistencyWeight}
	if in.Labeled == 0 {
		res.CE = anyseg.Zero(cr)
		res.Dice = anyseg.Zero(cr)
		res.SupervisedSkipped = true
	} else {
		labeledLogits := anydiff.Slice(in.Logits, 0, labeledLen)
		res.CE = anyseg.CrossEntropy(labeledLogits, in.Labels, classes, c.CEWeights)
		res.Dice = anyseg.Dice(anyseg.Probs(labeledLogits, classes), in.Labels, classes, nil)
	}
	res.Supervised = anydiff.Scale(anydiff.Add(res.CE, res.Dice), cr.MakeNumeric(0.5))

	unlabeledLogits := anydiff.Slice(in.Logits, labeledLen, totalLen)
	studentProbs := anyseg.Probs(unlabeledLogits, classes)
	detached := anyseg.Floats(studentProbs.Output())
	pseudo, conf := anyseg.ArgMax(detached, classes)

	filter := c.Filter
	if filter == nil {
		filter = c.defaultFilter
	}
	res.Filter = filter(pseudo, in.TeacherProbs, classes)
	se := anyseg.SquaredError(studentProbs, anyseg.MakeVector(cr, in.NoisyTeacherProbs))
	if res.Filter.OK() && len(res.Filter.Flags) == len(pseudo) {
		mask := make([]float64, len(pseudo)*classes)
		for i, flag := range res.Filter.Flags {
			if flag {
				for j := 0; j < classes; j++ {
					mask[i*classes+j] = 1
				}
			}
		}
		res.Consistency = anyseg.MaskedMean(se, mask, consistencyEps)
	} else {
		if res.Filter.OK() {
			res.Filter = anyclean.Result{Err: fmt.Errorf("filter returned %d flags for %d voxels",
				len(res.Filter.Flags), len(pseudo))}
		}
		res.Consistency = anyseg.Mean(se)
	}

	if in.Perturbed == nil {
		res.Perturbation = anyseg.Zero(cr)
	} else {
		keep := make([]bool, len(conf))
		for i, x := range conf {
			keep[i] = x >= c.PseudoThreshold
		}
		res.Perturbation = anyseg.Dice(anyseg.Probs(in.Perturbed, classes), pseudo, classes, keep)
	}

	res.Total = anydiff.Add(
		res.Supervised,
		anydiff.Add(
			anydiff.Scale(res.Consistency, cr.MakeNumeric(in.ConsistencyWeight)),
			anydiff.Scale(res.Perturbation, cr.MakeNumeric(c.PerturbWeight)),
		),
	)
	return res
}

func (c *Composer) defaultFilter(labels []int, probs []float64, classes int) anyclean.Result {
	return anyclean.Find(labels, probs, classes, anyclean.Options{Strategy: c.Strategy})
}
