package anyseg

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
)

func TestSumClassesOutput(t *testing.T) {
	actual := Floats(sumClasses(constVec(1, 2, 3, 4, 5, 6), 3).Output())
	expected := []float64{5, 7, 9}
	for i, x := range expected {
		if actual[i] != x {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestSumClassesProp(t *testing.T) {
	v := randomVar(12)
	t.Run("Var", func(t *testing.T) {
		checker := &anydifftest.ResChecker{
			F: func() anydiff.Res {
				return sumClasses(v, 4)
			},
			V: []*anydiff.Var{v},
		}
		checker.FullCheck(t)
	})
	t.Run("Nested", func(t *testing.T) {
		checker := &anydifftest.ResChecker{
			F: func() anydiff.Res {
				return sumClasses(anydiff.Square(v), 3)
			},
			V: []*anydiff.Var{v},
		}
		checker.FullCheck(t)
	})
}
