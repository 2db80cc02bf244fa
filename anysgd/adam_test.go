package anysgd

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestAdamFirstStep(t *testing.T) {
	v := anydiff.NewVar(anyvec64.MakeVectorData([]float64{0, 0, 0}))
	a := &Adam{Damping: 1e-12}
	g := anydiff.Grad{v: anyvec64.MakeVectorData([]float64{4, -0.5, 0})}
	actual := a.Transform(g)[v].Data().([]float64)

	// The bias-corrected first step is sign(g).
	expected := []float64{1, -1, 0}
	for i, x := range expected {
		if math.Abs(actual[i]-x) > 1e-6 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}
