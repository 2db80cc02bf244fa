package anydata

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyvec"
)

// Synthetic is a Dataset of noisy single-channel volumes,
// each containing one bright sphere labeled as class 1.
//
// Sample i is fully determined by Seed and i.
type Synthetic struct {
	Creator anyvec.Creator
	Num     int
	Shape   anyseg.Shape

	// Noise is the standard deviation of the Gaussian noise
	// added to every voxel.
	Noise float64

	Seed int64
}

// Len returns s.Num.
func (s *Synthetic) Len() int {
	return s.Num
}

// Sample generates the sample at index i.
func (s *Synthetic) Sample(i int) (*Sample, error) {
	if i < 0 || i >= s.Num {
		return nil, fmt.Errorf("synthetic sample %d out of range", i)
	}
	if !s.Shape.Valid() {
		return nil, fmt.Errorf("synthetic sample: invalid shape %v", s.Shape)
	}
	r := rand.New(rand.NewSource(s.Seed + int64(i)))

	minSide := math.Min(float64(s.Shape.X), math.Min(float64(s.Shape.Y), float64(s.Shape.Z)))
	radius := minSide * (0.2 + 0.15*r.Float64())
	cx := float64(s.Shape.X) * (0.3 + 0.4*r.Float64())
	cy := float64(s.Shape.Y) * (0.3 + 0.4*r.Float64())
	cz := float64(s.Shape.Z) * (0.3 + 0.4*r.Float64())

	image := make([]float64, s.Shape.Voxels())
	label := make([]int, s.Shape.Voxels())
	for x := 0; x < s.Shape.X; x++ {
		for y := 0; y < s.Shape.Y; y++ {
			for z := 0; z < s.Shape.Z; z++ {
				idx := s.Shape.Index(x, y, z)
				dx, dy, dz := float64(x)+0.5-cx, float64(y)+0.5-cy, float64(z)+0.5-cz
				if dx*dx+dy*dy+dz*dz <= radius*radius {
					label[idx] = 1
					image[idx] = 1
				}
				image[idx] += r.NormFloat64() * s.Noise
			}
		}
	}
	return &Sample{
		Image:    anyseg.MakeVector(s.Creator, image),
		Channels: 1,
		Label:    label,
		Shape:    s.Shape,
	}, nil
}
