package anysgd

import "math"

// SigmoidRampup returns exp(-5(1-t)^2) where t is current
// divided by length and clipped to [0, 1].
//
// A length of zero ramps up immediately.
func SigmoidRampup(current, length float64) float64 {
	if length == 0 {
		return 1
	}
	t := 1 - clip(current/length)
	return math.Exp(-5 * t * t)
}

// ConsistencyRamp computes the weight of the unsupervised
// consistency loss.
//
// The iteration is first divided by Interval using integer
// division, so the weight changes once every Interval
// iterations.
type ConsistencyRamp struct {
	Max      float64
	Length   float64
	Interval int
}

// Weight returns Max * SigmoidRampup(iter/Interval, Length).
func (c *ConsistencyRamp) Weight(iter int) float64 {
	epoch := iter
	if c.Interval > 0 {
		epoch = iter / c.Interval
	}
	return c.Max * SigmoidRampup(float64(epoch), c.Length)
}

func clip(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
