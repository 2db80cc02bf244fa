package anyclean

import (
	"errors"
	"math"
	"testing"
)

// plantedProblem has 45 samples of class 0, 5 mislabeled
// samples of class 1 at indices 45 to 49, and 50 correct
// samples of class 1.
func plantedProblem() ([]int, []float64) {
	var labels []int
	var probs []float64
	for i := 0; i < 45; i++ {
		labels = append(labels, 0)
		probs = append(probs, 0.9, 0.1)
	}
	for i := 0; i < 5; i++ {
		labels = append(labels, 1)
		probs = append(probs, 0.95, 0.05)
	}
	for i := 0; i < 50; i++ {
		labels = append(labels, 1)
		probs = append(probs, 0.1, 0.9)
	}
	return labels, probs
}

func TestFindPlanted(t *testing.T) {
	labels, probs := plantedProblem()
	for _, strategy := range []Strategy{Both, PruneByClass, PruneByNoiseRate} {
		t.Run(strategy.String(), func(t *testing.T) {
			res := Find(labels, probs, 2, Options{Strategy: strategy})
			if !res.OK() {
				t.Fatal(res.Err)
			}
			if len(res.Flags) != len(labels) {
				t.Fatalf("expected %d flags but got %d", len(labels), len(res.Flags))
			}
			for i, f := range res.Flags {
				expected := i >= 45 && i < 50
				if f != expected {
					t.Errorf("sample %d: expected flag %v", i, expected)
				}
			}
			if res.Count() != 5 {
				t.Errorf("expected 5 flags but got %d", res.Count())
			}
		})
	}
}

func TestFindNeverFlagsAgreement(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1, 1, 2, 2, 2}
	probs := []float64{
		0.8, 0.1, 0.1,
		0.4, 0.3, 0.3,
		0.2, 0.7, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.6, 0.3,
		0.3, 0.1, 0.6,
		0.1, 0.1, 0.8,
		0.2, 0.2, 0.6,
		0.5, 0.1, 0.4,
	}
	res := Find(labels, probs, 3, Options{Strategy: PruneByNoiseRate})
	if !res.OK() {
		t.Fatal(res.Err)
	}
	for i, f := range res.Flags {
		if !f {
			continue
		}
		best := 0
		for c := 1; c < 3; c++ {
			if probs[i*3+c] > probs[i*3+best] {
				best = c
			}
		}
		if best == labels[i] {
			t.Errorf("sample %d agrees with its label but was flagged", i)
		}
	}
}

func TestFindMinPerClass(t *testing.T) {
	labels := []int{0, 1, 1, 1}
	probs := []float64{0.1, 0.9, 0.1, 0.9, 0.1, 0.9, 0.1, 0.9}
	res := Find(labels, probs, 2, Options{Strategy: PruneByClass})
	if !res.OK() {
		t.Fatal(res.Err)
	}
	if res.Count() != 0 {
		t.Errorf("the only sample of class 0 was flagged: %v", res.Flags)
	}
}

func TestFindErrors(t *testing.T) {
	table := []struct {
		name    string
		labels  []int
		probs   []float64
		classes int
		opts    Options
		target  error
	}{
		{"Empty", nil, nil, 2, Options{}, ErrEmpty},
		{"Degenerate", []int{1, 1}, []float64{0.5, 0.5, 0.2, 0.8}, 2, Options{}, ErrDegenerate},
		{"EmptyClass", []int{0, 1}, []float64{1, 0, 0, 0, 1, 0}, 3, Options{}, ErrEmptyClass},
		{"Mismatch", []int{0, 1}, []float64{1, 0, 0}, 2, Options{}, nil},
		{"OneClass", []int{0, 0}, []float64{1, 1}, 1, Options{}, nil},
		{"Range", []int{0, 2}, []float64{1, 0, 0, 1}, 2, Options{}, nil},
		{"NaN", []int{0, 1}, []float64{math.NaN(), 0, 0, 1}, 2, Options{}, nil},
		{"Negative", []int{0, 1}, []float64{-0.1, 1.1, 0, 1}, 2, Options{}, nil},
		{"TooLarge", []int{0, 1, 1}, []float64{1, 0, 0, 1, 0, 1}, 2, Options{MaxSamples: 2}, nil},
		{"Strategy", []int{0, 1}, []float64{1, 0, 0, 1}, 2, Options{Strategy: 7}, nil},
	}
	for _, x := range table {
		t.Run(x.name, func(t *testing.T) {
			res := Find(x.labels, x.probs, x.classes, x.opts)
			if res.OK() {
				t.Fatal("expected an error")
			}
			if res.Flags != nil {
				t.Error("flags should be nil on failure")
			}
			if x.target != nil && !errors.Is(res.Err, x.target) {
				t.Errorf("expected %v but got %v", x.target, res.Err)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{Both, PruneByClass, PruneByNoiseRate} {
		parsed, err := ParseStrategy(s.String())
		if err != nil {
			t.Fatal(err)
		}
		if parsed != s {
			t.Errorf("expected %v but got %v", s, parsed)
		}
	}
	if _, err := ParseStrategy("confident"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestRoundRow(t *testing.T) {
	actual := roundRow([]float64{1.2, 2.5, 0.3}, 4)
	expected := []int{1, 3, 0}
	for i, x := range expected {
		if actual[i] != x {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestPruneByNoiseRateUnion(t *testing.T) {
	labels := []int{0, 0, 0, 0, 1, 1, 2, 2}
	probs := []float64{
		0.1, 0.45, 0.45,
		0.3, 0.5, 0.2,
		0.3, 0.2, 0.5,
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
		0.1, 0.1, 0.8,
	}
	p, err := newProblem(labels, probs, 3, Options{})
	if err != nil {
		t.Fatal(err)
	}

	// Sample 0 has the largest margin toward both other
	// classes, so both rankings pick it.
	joint := [][]int{{2, 1, 1}, {0, 2, 0}, {0, 0, 2}}
	flags := p.pruneByNoiseRate(joint)
	expected := []bool{true, false, false, false, false, false, false, false}
	for i, f := range flags {
		if f != expected[i] {
			t.Fatalf("expected %v but got %v", expected, flags)
		}
	}
}

func TestNoiseCounts(t *testing.T) {
	table := []struct {
		row         []int
		label       int
		minPerClass int
		expected    []int
	}{
		{[]int{2, 1, 1}, 0, 1, []int{2, 1, 1}},
		{[]int{1, 2, 1}, 0, 3, []int{3, 1, 0}},
		{[]int{3, 0, 1}, 1, 2, []int{2, 2, 0}},
		{[]int{0, 1}, 1, 1, []int{0, 1}},
	}
	for _, x := range table {
		p := &problem{classes: len(x.row), minPerClass: x.minPerClass}
		actual := p.noiseCounts(x.row, x.label)
		for i, n := range x.expected {
			if actual[i] != n {
				t.Errorf("row %v label %d: expected %v but got %v", x.row, x.label,
					x.expected, actual)
				break
			}
		}
	}
}
