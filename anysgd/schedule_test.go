package anysgd

import (
	"math"
	"testing"
)

func TestPolyRater(t *testing.T) {
	r := &PolyRater{Base: 0.01, MaxIter: 1000, Power: 0.9}
	if r.Rate(0) != 0.01 {
		t.Errorf("initial rate %f", r.Rate(0))
	}
	if r.Rate(1000) != 0 || r.Rate(1500) != 0 {
		t.Errorf("final rates %f, %f", r.Rate(1000), r.Rate(1500))
	}
	expected := 0.01 * math.Pow(0.5, 0.9)
	if math.Abs(r.Rate(500)-expected) > 1e-12 {
		t.Errorf("rate at 500 should be %f but got %f", expected, r.Rate(500))
	}
	last := r.Rate(0)
	for i := 1; i <= 1000; i++ {
		rate := r.Rate(i)
		if rate > last {
			t.Fatalf("rate increased at %d", i)
		}
		last = rate
	}
}

func TestSigmoidRampup(t *testing.T) {
	table := []struct {
		current, length, expected float64
	}{
		{0, 40, math.Exp(-5)},
		{-3, 40, math.Exp(-5)},
		{20, 40, math.Exp(-5 * 0.25)},
		{40, 40, 1},
		{100, 40, 1},
		{7, 0, 1},
	}
	for _, x := range table {
		actual := SigmoidRampup(x.current, x.length)
		if math.Abs(actual-x.expected) > 1e-12 {
			t.Errorf("SigmoidRampup(%v, %v) = %v, expected %v", x.current, x.length,
				actual, x.expected)
		}
	}

	last := 0.0
	for i := 0; i <= 50; i++ {
		w := SigmoidRampup(float64(i), 40)
		if w < last {
			t.Fatalf("rampup decreased at %d", i)
		}
		last = w
	}
}

func TestConsistencyRamp(t *testing.T) {
	r := &ConsistencyRamp{Max: 0.1, Length: 40, Interval: 150}
	if r.Weight(0) != r.Weight(149) {
		t.Error("weight changed within an interval")
	}
	if r.Weight(150) <= r.Weight(149) {
		t.Error("weight did not grow across an interval")
	}
	if math.Abs(r.Weight(150*40)-0.1) > 1e-12 || math.Abs(r.Weight(1e6)-0.1) > 1e-12 {
		t.Error("weight should plateau at Max")
	}
	if math.Abs(r.Weight(0)-0.1*math.Exp(-5)) > 1e-12 {
		t.Errorf("initial weight %f", r.Weight(0))
	}
}
