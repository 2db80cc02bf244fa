package anysgd

import "github.com/unixpickle/anydiff"

// WeightDecay adds Rate times each variable to its
// gradient, which is L2 regularization with penalty Rate/2.
type WeightDecay struct {
	Rate float64
}

// Transform adds the decay term to g.
func (w *WeightDecay) Transform(g anydiff.Grad) anydiff.Grad {
	if w.Rate == 0 {
		return g
	}
	for v, vec := range g {
		decay := v.Vector.Copy()
		decay.Scale(decay.Creator().MakeNumeric(w.Rate))
		vec.Add(decay)
	}
	return g
}
