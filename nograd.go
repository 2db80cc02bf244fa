package anyseg

import "github.com/unixpickle/anydiff"

// NoGrad evaluates f in a scope that records no path back
// to any variable.
//
// The result is a constant holding a copy of f's output,
// so nothing downstream can propagate into the variables
// f used and the graph built inside f can be released.
func NoGrad(f func() anydiff.Res) *anydiff.Const {
	return anydiff.NewConst(f().Output().Copy())
}
