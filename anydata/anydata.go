// Package anydata provides datasets and batch sampling for
// semi-supervised segmentation.
//
// Every batch draws a fixed number of labeled samples and
// a fixed number of unlabeled samples from two disjoint
// pools. Labeled samples always come first.
package anydata

import (
	"fmt"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyvec"
)

// A Sample is one volume.
//
// The image is packed voxel-major with Channels values per
// voxel. Label has one class index per voxel, or is nil
// for unlabeled volumes.
type Sample struct {
	Image    anyvec.Vector
	Channels int
	Label    []int
	Shape    anyseg.Shape
}

// Check returns an error if the sample's sizes disagree.
func (s *Sample) Check() error {
	if !s.Shape.Valid() {
		return fmt.Errorf("invalid shape %v", s.Shape)
	}
	if s.Channels < 1 {
		return fmt.Errorf("invalid channel count %d", s.Channels)
	}
	if n := s.Shape.Voxels() * s.Channels; s.Image.Len() != n {
		return fmt.Errorf("image length %d should be %d", s.Image.Len(), n)
	}
	if s.Label != nil && len(s.Label) != s.Shape.Voxels() {
		return fmt.Errorf("label length %d should be %d", len(s.Label), s.Shape.Voxels())
	}
	return nil
}

// A Dataset is an indexed list of samples.
//
// Sample may be called from several goroutines at once.
type Dataset interface {
	Len() int
	Sample(i int) (*Sample, error)
}

// SliceDataset is a Dataset held in memory.
type SliceDataset []*Sample

// Len returns the number of samples.
func (s SliceDataset) Len() int {
	return len(s)
}

// Sample returns the sample at index i.
func (s SliceDataset) Sample(i int) (*Sample, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("sample %d out of range", i)
	}
	return s[i], nil
}

// A ConfigError is returned when sampling parameters are
// inconsistent.
type ConfigError struct {
	Msg string
}

func (c *ConfigError) Error() string {
	return "sampler config: " + c.Msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
