package anyeval

import (
	"math"

	"github.com/unixpickle/anyseg"
)

const edtInf = 1e20

// squaredDistances computes, for every voxel, the squared
// Euclidean distance to the nearest feature voxel.
//
// It runs the lower envelope transform of Felzenszwalb and
// Huttenlocher along each axis in turn.
func squaredDistances(features []bool, s anyseg.Shape) []float64 {
	dist := make([]float64, len(features))
	for i, f := range features {
		if !f {
			dist[i] = edtInf
		}
	}
	maxSide := s.X
	if s.Y > maxSide {
		maxSide = s.Y
	}
	if s.Z > maxSide {
		maxSide = s.Z
	}
	buf := newEnvelope(maxSide)

	for x := 0; x < s.X; x++ {
		for y := 0; y < s.Y; y++ {
			buf.line(dist, s.Index(x, y, 0), 1, s.Z)
		}
	}
	for x := 0; x < s.X; x++ {
		for z := 0; z < s.Z; z++ {
			buf.line(dist, s.Index(x, 0, z), s.Z, s.Y)
		}
	}
	for y := 0; y < s.Y; y++ {
		for z := 0; z < s.Z; z++ {
			buf.line(dist, s.Index(0, y, z), s.Y*s.Z, s.X)
		}
	}
	return dist
}

type envelope struct {
	f []float64
	d []float64
	v []int
	z []float64
}

func newEnvelope(n int) *envelope {
	return &envelope{
		f: make([]float64, n),
		d: make([]float64, n),
		v: make([]int, n),
		z: make([]float64, n+1),
	}
}

// line transforms the n entries of data starting at start
// and spaced by stride.
func (e *envelope) line(data []float64, start, stride, n int) {
	for i := 0; i < n; i++ {
		e.f[i] = data[start+i*stride]
	}
	k := 0
	e.v[0] = 0
	e.z[0] = math.Inf(-1)
	e.z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := e.intersect(q, e.v[k])
		for s <= e.z[k] {
			k--
			s = e.intersect(q, e.v[k])
		}
		k++
		e.v[k] = q
		e.z[k] = s
		e.z[k+1] = math.Inf(1)
	}
	k = 0
	for q := 0; q < n; q++ {
		for e.z[k+1] < float64(q) {
			k++
		}
		p := e.v[k]
		e.d[q] = float64((q-p)*(q-p)) + e.f[p]
	}
	for i := 0; i < n; i++ {
		data[start+i*stride] = e.d[i]
	}
}

// intersect finds where the parabolas rooted at q and p
// cross.
func (e *envelope) intersect(q, p int) float64 {
	return ((e.f[q] + float64(q*q)) - (e.f[p] + float64(p*p))) / float64(2*q-2*p)
}
