package anydata

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anyseg"
)

// A Transform maps a sample to a new sample.
//
// Transforms must not modify their input.
// The random source belongs to the calling worker.
type Transform interface {
	Apply(s *Sample, r *rand.Rand) (*Sample, error)
}

// Compose applies transforms in order.
type Compose []Transform

// Apply applies every transform.
func (c Compose) Apply(s *Sample, r *rand.Rand) (*Sample, error) {
	var err error
	for _, t := range c {
		s, err = t.Apply(s, r)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CenterCrop crops the center of a volume.
// Sides shorter than the crop are padded with zeros.
type CenterCrop struct {
	Shape anyseg.Shape
}

// Apply crops the sample.
func (c *CenterCrop) Apply(s *Sample, r *rand.Rand) (*Sample, error) {
	if !c.Shape.Valid() {
		return nil, fmt.Errorf("center crop: invalid shape %v", c.Shape)
	}
	return Crop(s, c.Shape,
		(s.Shape.X-c.Shape.X)/2,
		(s.Shape.Y-c.Shape.Y)/2,
		(s.Shape.Z-c.Shape.Z)/2), nil
}

// RandomCrop crops a random window of a volume.
// Sides shorter than the crop are centered and padded
// with zeros.
type RandomCrop struct {
	Shape anyseg.Shape
}

// Apply crops the sample.
func (c *RandomCrop) Apply(s *Sample, r *rand.Rand) (*Sample, error) {
	if !c.Shape.Valid() {
		return nil, fmt.Errorf("random crop: invalid shape %v", c.Shape)
	}
	return Crop(s, c.Shape,
		randomOrigin(r, s.Shape.X, c.Shape.X),
		randomOrigin(r, s.Shape.Y, c.Shape.Y),
		randomOrigin(r, s.Shape.Z, c.Shape.Z)), nil
}

func randomOrigin(r *rand.Rand, in, out int) int {
	if in <= out {
		return (in - out) / 2
	}
	if r == nil {
		return rand.Intn(in - out + 1)
	}
	return r.Intn(in - out + 1)
}

// Crop extracts the window of shape out whose first voxel
// is at (ox, oy, oz) in the input.
// Voxels outside the input are zero with label 0.
func Crop(s *Sample, out anyseg.Shape, ox, oy, oz int) *Sample {
	inData := anyseg.Floats(s.Image)
	ch := s.Channels
	image := make([]float64, out.Voxels()*ch)
	var label []int
	if s.Label != nil {
		label = make([]int, out.Voxels())
	}
	for x := 0; x < out.X; x++ {
		for y := 0; y < out.Y; y++ {
			for z := 0; z < out.Z; z++ {
				sx, sy, sz := x+ox, y+oy, z+oz
				if !s.Shape.Contains(sx, sy, sz) {
					continue
				}
				src := s.Shape.Index(sx, sy, sz)
				dst := out.Index(x, y, z)
				copy(image[dst*ch:(dst+1)*ch], inData[src*ch:(src+1)*ch])
				if label != nil {
					label[dst] = s.Label[src]
				}
			}
		}
	}
	return &Sample{
		Image:    anyseg.MakeVector(s.Image.Creator(), image),
		Channels: ch,
		Label:    label,
		Shape:    out,
	}
}
