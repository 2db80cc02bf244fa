// Package anysgd provides gradient transformers, learning
// rate schedules and rampup functions for stochastic
// gradient descent.
package anysgd

import "github.com/unixpickle/anydiff"

// Step scales g by -rate and adds it to its variables.
func Step(g anydiff.Grad, rate float64) {
	scaleGrad(g, -rate)
	g.AddToVars()
}
