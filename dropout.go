package anyseg

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Dropout zeroes each component with probability
// 1-KeepProb and rescales the survivors by 1/KeepProb, so
// that evaluation needs no rescaling.
type Dropout struct {
	KeepProb float64

	// Rand is the source for masks.
	// If nil, the global source is used.
	Rand *rand.Rand
}

// Apply applies a fresh dropout mask.
func (d *Dropout) Apply(in anydiff.Res, n int) anydiff.Res {
	if d.KeepProb >= 1 {
		return in
	}
	c := in.Output().Creator()
	mask := c.MakeVector(in.Output().Len())
	anyvec.Rand(mask, anyvec.Uniform, d.Rand)
	anyvec.LessThan(mask, c.MakeNumeric(d.KeepProb))
	mask.Scale(c.MakeNumeric(1 / d.KeepProb))
	return anydiff.Mul(in, anydiff.NewConst(mask))
}

// FeatureNoise multiplies every feature by an independent
// factor drawn uniformly from [1-Magnitude, 1+Magnitude].
type FeatureNoise struct {
	Magnitude float64
	Rand      *rand.Rand
}

// Apply applies freshly drawn noise.
func (f *FeatureNoise) Apply(in anydiff.Res, n int) anydiff.Res {
	if f.Magnitude == 0 {
		return in
	}
	c := in.Output().Creator()
	factors := c.MakeVector(in.Output().Len())
	anyvec.Rand(factors, anyvec.Uniform, f.Rand)
	factors.Scale(c.MakeNumeric(2 * f.Magnitude))
	factors.AddScalar(c.MakeNumeric(1 - f.Magnitude))
	return anydiff.Mul(in, anydiff.NewConst(factors))
}
