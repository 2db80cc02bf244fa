package anymt

import (
	"errors"
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyseg/anyclean"
	"github.com/unixpickle/anyvec/anyvec64"
)

// composerInputs builds a batch of one labeled and one
// unlabeled volume with two voxels each.
func composerInputs(labeled int) *LossInputs {
	logits := []float64{2, -1, 0.5, 0.5, 1, 0, -3, 3}
	in := &LossInputs{
		Num:               2,
		Labeled:           labeled,
		Voxels:            2,
		TeacherProbs:      []float64{0.7, 0.3, 0.4, 0.6},
		NoisyTeacherProbs: []float64{0.6, 0.4, 0.2, 0.8},
		ConsistencyWeight: 0.5,
	}
	if labeled == 0 {
		in.Num = 1
		logits = logits[4:]
	} else {
		in.Labels = []int{0, 1}
	}
	in.Logits = anydiff.NewVar(anyvec64.MakeVectorData(logits))
	in.Perturbed = anydiff.NewConst(anyvec64.MakeVectorData([]float64{0.2, 0.1, -1, 1}))
	return in
}

func unlabeledSquaredErrors() []float64 {
	probs := anyseg.Softmax([]float64{1, 0, -3, 3}, 2)
	noisy := []float64{0.6, 0.4, 0.2, 0.8}
	res := make([]float64, len(probs))
	for i, p := range probs {
		res[i] = (p - noisy[i]) * (p - noisy[i])
	}
	return res
}

func TestComposerMasked(t *testing.T) {
	c := &Composer{
		Classes: 2,
		Filter: func(labels []int, probs []float64, classes int) anyclean.Result {
			if len(labels) != 2 || labels[0] != 0 || labels[1] != 1 {
				t.Errorf("unexpected pseudo-labels %v", labels)
			}
			return anyclean.Result{Flags: []bool{false, true}}
		},
		PseudoThreshold: 0.95,
		PerturbWeight:   0.2,
	}
	losses := c.Compose(composerInputs(1))
	if losses.Fallback() || losses.SupervisedSkipped {
		t.Fatal("unexpected fallback or skip")
	}
	se := unlabeledSquaredErrors()
	expected := (se[2] + se[3]) / (2 + consistencyEps)
	assertClose(t, anyseg.Scalar(losses.Consistency), expected)

	sup := anyseg.Scalar(losses.Supervised)
	ce, dice := anyseg.Scalar(losses.CE), anyseg.Scalar(losses.Dice)
	assertClose(t, sup, 0.5*(ce+dice))
	total := sup + 0.5*anyseg.Scalar(losses.Consistency) + 0.2*anyseg.Scalar(losses.Perturbation)
	assertClose(t, anyseg.Scalar(losses.Total), total)
}

func TestComposerFallback(t *testing.T) {
	c := &Composer{
		Classes: 2,
		Filter: func(labels []int, probs []float64, classes int) anyclean.Result {
			return anyclean.Result{Err: errors.New("filter failed")}
		},
		PseudoThreshold: 0.95,
		PerturbWeight:   0.2,
	}
	losses := c.Compose(composerInputs(1))
	if !losses.Fallback() {
		t.Fatal("expected fallback")
	}
	var mean float64
	for _, x := range unlabeledSquaredErrors() {
		mean += x / 4
	}
	assertClose(t, anyseg.Scalar(losses.Consistency), mean)
}

func TestComposerBadFlagCount(t *testing.T) {
	c := &Composer{
		Classes: 2,
		Filter: func(labels []int, probs []float64, classes int) anyclean.Result {
			return anyclean.Result{Flags: []bool{true}}
		},
	}
	if losses := c.Compose(composerInputs(1)); !losses.Fallback() {
		t.Error("expected fallback for wrong flag count")
	}
}

func TestComposerDegenerateFilter(t *testing.T) {
	in := composerInputs(1)
	// Both unlabeled voxels predict class 0.
	in.Logits = anydiff.NewVar(anyvec64.MakeVectorData([]float64{2, -1, 0.5, 0.5, 1, 0, 3, -3}))
	c := &Composer{Classes: 2, Strategy: anyclean.Both, PseudoThreshold: 0.95, PerturbWeight: 0.2}
	losses := c.Compose(in)
	if !losses.Fallback() || !errors.Is(losses.Filter.Err, anyclean.ErrDegenerate) {
		t.Fatalf("expected degenerate fallback but got %v", losses.Filter.Err)
	}
	cons := anyseg.Scalar(losses.Consistency)
	if math.IsNaN(cons) || math.IsInf(cons, 0) || cons < 0 {
		t.Errorf("bad consistency %f", cons)
	}
}

func TestComposerNoLabeled(t *testing.T) {
	c := &Composer{
		Classes: 2,
		Filter: func(labels []int, probs []float64, classes int) anyclean.Result {
			return anyclean.Result{Flags: make([]bool, len(labels))}
		},
		PseudoThreshold: 0.95,
		PerturbWeight:   0.2,
	}
	in := composerInputs(0)
	losses := c.Compose(in)
	if !losses.SupervisedSkipped {
		t.Error("expected supervised loss to be skipped")
	}
	if anyseg.Scalar(losses.CE) != 0 || anyseg.Scalar(losses.Dice) != 0 {
		t.Error("skipped terms should be zero")
	}
	if math.IsNaN(anyseg.Scalar(losses.Total)) {
		t.Error("total is NaN")
	}

	v := in.Logits.(*anydiff.Var)
	grad := anydiff.NewGrad(v)
	losses.Total.Propagate(anyvec64.MakeVectorData([]float64{1}), grad)
	for _, x := range anyseg.Floats(grad[v]) {
		if math.IsNaN(x) {
			t.Fatal("NaN gradient")
		}
	}
}

func TestComposerPerturbation(t *testing.T) {
	c := &Composer{
		Classes: 2,
		Filter: func(labels []int, probs []float64, classes int) anyclean.Result {
			return anyclean.Result{Flags: make([]bool, len(labels))}
		},
		PseudoThreshold: 0.95,
		PerturbWeight:   0.2,
	}
	in := composerInputs(1)
	losses := c.Compose(in)

	// Only the second unlabeled voxel (p = 0.9975 for class 1)
	// passes the confidence threshold.
	expected := anyseg.Dice(
		anyseg.Probs(in.Perturbed, 2),
		[]int{0, 1},
		2,
		[]bool{false, true},
	)
	assertClose(t, anyseg.Scalar(losses.Perturbation), anyseg.Scalar(expected))

	in.Perturbed = nil
	if anyseg.Scalar(c.Compose(in).Perturbation) != 0 {
		t.Error("missing perturbed output should give zero loss")
	}
}

func assertClose(t *testing.T, actual, expected float64) {
	t.Helper()
	if math.IsNaN(actual) || math.Abs(actual-expected) > 1e-8 {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}
