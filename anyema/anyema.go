// Package anyema maintains a teacher network as an
// exponential moving average of a student's parameters.
package anyema

import (
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
)

// Alpha returns the averaging coefficient for a step,
// which ramps from 0 up to decay and then stays there.
func Alpha(step int, decay float64) float64 {
	return math.Min(1-1/float64(step+1), decay)
}

// A Shadow is a set of parameters that tracks another set
// of parameters with an exponential moving average.
//
// The shadow owns its vectors; they are updated in place
// and never receive gradients.
type Shadow struct {
	Params []*anydiff.Var
	Decay  float64
}

// Update moves every shadow parameter toward the
// corresponding student parameter:
//
//     t = alpha*t + (1-alpha)*s
//
// It returns the alpha that was used.
func (s *Shadow) Update(student []*anydiff.Var, step int) (float64, error) {
	if len(student) != len(s.Params) {
		return 0, fmt.Errorf("update shadow: %d student parameters but %d shadow parameters",
			len(student), len(s.Params))
	}
	for i, p := range s.Params {
		if p.Vector.Len() != student[i].Vector.Len() {
			return 0, fmt.Errorf("update shadow: parameter %d has length %d but student has %d",
				i, p.Vector.Len(), student[i].Vector.Len())
		}
	}
	alpha := Alpha(step, s.Decay)
	for i, p := range s.Params {
		c := p.Vector.Creator()
		if alpha == 0 {
			p.Vector.Set(student[i].Vector)
			continue
		}
		p.Vector.Scale(c.MakeNumeric(alpha))
		scaled := student[i].Vector.Copy()
		scaled.Scale(c.MakeNumeric(1 - alpha))
		p.Vector.Add(scaled)
	}
	return alpha, nil
}
