package anymt

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyvec"
)

// A NoiseInjector makes the two teacher inputs for the
// unlabeled volumes.
type NoiseInjector struct {
	Std  float64
	Clip float64

	// Rand is the noise source.
	// If nil, the global source is used.
	Rand *rand.Rand
}

// Inputs returns the input itself and a copy with Gaussian
// noise of standard deviation Std, clipped to [-Clip, Clip],
// added to every component.
func (n *NoiseInjector) Inputs(u anyvec.Vector) (raw, noisy anyvec.Vector) {
	data := anyseg.Floats(u)
	for i := range data {
		var z float64
		if n.Rand != nil {
			z = n.Rand.NormFloat64()
		} else {
			z = rand.NormFloat64()
		}
		data[i] += math.Max(-n.Clip, math.Min(n.Clip, z*n.Std))
	}
	return u, anyseg.MakeVector(u.Creator(), data)
}
