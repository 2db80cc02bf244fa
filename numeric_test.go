package anyseg

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float64{0, 0, 1000, 0, -2, 3}, 2)
	for i := 0; i < len(probs); i += 2 {
		sum := probs[i] + probs[i+1]
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("voxel %d: probabilities sum to %f", i/2, sum)
		}
	}
	if probs[0] != 0.5 || probs[2] != 1 {
		t.Errorf("unexpected probabilities: %v", probs)
	}
}

func TestSoftmaxMatchesProbs(t *testing.T) {
	logits := []float64{0.3, -1, 2, 0.5, 0.5, 0.1}
	expected := Softmax(logits, 3)
	actual := Floats(Probs(anydiff.NewConst(anyvec64.MakeVectorData(logits)), 3).Output())
	for i, x := range expected {
		assertClose(t, actual[i], x, 1e-9)
	}
}

func TestArgMax(t *testing.T) {
	labels, conf := ArgMax([]float64{0.2, 0.8, 0.5, 0.5, 0.9, 0.1}, 2)
	if labels[0] != 1 || labels[1] != 0 || labels[2] != 0 {
		t.Errorf("unexpected labels: %v", labels)
	}
	if conf[0] != 0.8 || conf[1] != 0.5 || conf[2] != 0.9 {
		t.Errorf("unexpected confidences: %v", conf)
	}
}

func TestOneHot(t *testing.T) {
	actual := OneHot([]int{2, 0}, 3)
	expected := []float64{0, 0, 1, 1, 0, 0}
	for i, x := range expected {
		if actual[i] != x {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range label")
		}
	}()
	OneHot([]int{3}, 3)
}

func TestNoGrad(t *testing.T) {
	v := randomVar(4)
	c := NoGrad(func() anydiff.Res {
		return anydiff.Scale(v, v.Vector.Creator().MakeNumeric(2))
	})
	before := Floats(c.Output())

	grad := anydiff.NewGrad(v)
	upstream := anyvec64.MakeVectorData([]float64{1, 1, 1, 1})
	anydiff.Mul(c, c).Propagate(upstream, grad)
	for _, x := range Floats(grad[v]) {
		if x != 0 {
			t.Fatalf("gradient leaked through no-grad scope: %v", Floats(grad[v]))
		}
	}

	v.Vector.Scale(v.Vector.Creator().MakeNumeric(3))
	after := Floats(c.Output())
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("detached output changed with its source")
		}
	}
}
