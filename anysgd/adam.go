package anysgd

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const (
	adamDefaultBeta1   = 0.9
	adamDefaultBeta2   = 0.999
	adamDefaultDamping = 1e-8
)

// Adam implements the adaptive moments technique from
// https://arxiv.org/pdf/1412.6980.pdf.
//
// Zero fields are replaced with the defaults from the
// paper.
type Adam struct {
	Beta1, Beta2 float64
	Damping      float64

	first  anydiff.Grad
	second anydiff.Grad
	steps  float64
}

// Transform replaces g with the bias-corrected ratio of
// the moment estimates.
func (a *Adam) Transform(g anydiff.Grad) anydiff.Grad {
	b1 := valueOrDefault(a.Beta1, adamDefaultBeta1)
	b2 := valueOrDefault(a.Beta2, adamDefaultBeta2)
	damping := valueOrDefault(a.Damping, adamDefaultDamping)

	if a.first == nil {
		a.first = zeroGrad(g)
		a.second = zeroGrad(g)
	}
	for v, vec := range g {
		c := vec.Creator()
		m := a.first[v]
		m.Scale(c.MakeNumeric(b1))
		scaled := vec.Copy()
		scaled.Scale(c.MakeNumeric(1 - b1))
		m.Add(scaled)

		s := a.second[v]
		s.Scale(c.MakeNumeric(b2))
		sq := vec.Copy()
		sq.Mul(vec)
		sq.Scale(c.MakeNumeric(1 - b2))
		s.Add(sq)
	}

	a.steps++
	correction := math.Sqrt(1-math.Pow(b2, a.steps)) / (1 - math.Pow(b1, a.steps))
	for v, vec := range g {
		c := vec.Creator()
		vec.Set(a.first[v])
		vec.Scale(c.MakeNumeric(correction))
		div := a.second[v].Copy()
		anyvec.Pow(div, c.MakeNumeric(0.5))
		div.AddScalar(c.MakeNumeric(damping))
		vec.Div(div)
	}
	return g
}
