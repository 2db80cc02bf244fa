package anyseg

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

// Shape is the spatial extent of a volume.
//
// Z is the fastest-varying axis, so voxel (x, y, z) lives
// at index (x*Y+y)*Z+z.
type Shape struct {
	X, Y, Z int
}

// Voxels returns the number of voxels.
func (s Shape) Voxels() int {
	return s.X * s.Y * s.Z
}

// Index returns the flat index of a voxel.
func (s Shape) Index(x, y, z int) int {
	return (x*s.Y+y)*s.Z + z
}

// Contains checks if a coordinate is inside the volume.
func (s Shape) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < s.X && y < s.Y && z < s.Z
}

// Valid checks that every side is positive.
func (s Shape) Valid() bool {
	return s.X > 0 && s.Y > 0 && s.Z > 0
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.X, s.Y, s.Z)
}

// Volumes is a packed batch of multi-channel volumes.
type Volumes struct {
	Data     anyvec.Vector
	Num      int
	Channels int
	Shape    Shape
}

// Check panics if the data does not hold Num volumes.
func (v *Volumes) Check() {
	expected := v.Num * v.Channels * v.Shape.Voxels()
	if v.Data.Len() != expected {
		panic(fmt.Sprintf("volume data should have length %d, but got %d",
			expected, v.Data.Len()))
	}
}

// Slice returns the volumes [start, end) of the batch.
func (v *Volumes) Slice(start, end int) *Volumes {
	size := v.Channels * v.Shape.Voxels()
	return &Volumes{
		Data:     v.Data.Slice(start*size, end*size),
		Num:      end - start,
		Channels: v.Channels,
		Shape:    v.Shape,
	}
}
