package anysgd

import "github.com/unixpickle/anydiff"

// A Transformer transforms gradients.
// For example, momentum is implemented as a transformer.
//
// After its first call, a Transformer expects to see
// gradients containing the same variables.
//
// A Transformer may modify its input and return it.
// It must not keep a reference to the input after
// Transform returns; state it needs is copied into its own
// gradients.
type Transformer interface {
	Transform(g anydiff.Grad) anydiff.Grad
}

// A Rater determines the learning rate for a step.
type Rater interface {
	Rate(iter int) float64
}

// Chain applies transformers in order.
type Chain []Transformer

// Transform applies every transformer.
func (c Chain) Transform(g anydiff.Grad) anydiff.Grad {
	for _, t := range c {
		g = t.Transform(g)
	}
	return g
}
