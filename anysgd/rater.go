package anysgd

import "math"

// A ConstRater is a Rater which always returns the same
// constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(iter int) float64 {
	return float64(c)
}

// PolyRater decays the rate polynomially to zero:
//
//     Base * (1 - iter/MaxIter)^Power
//
// Past MaxIter, the rate stays at zero.
type PolyRater struct {
	Base    float64
	MaxIter int
	Power   float64
}

// Rate computes the rate for the iteration.
func (p *PolyRater) Rate(iter int) float64 {
	if p.MaxIter <= 0 {
		return p.Base
	}
	frac := 1 - float64(iter)/float64(p.MaxIter)
	if frac <= 0 {
		return 0
	}
	return p.Base * math.Pow(frac, p.Power)
}
