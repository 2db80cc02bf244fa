package anyeval

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyseg/anydata"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/stat"
)

// An Evaluator scores a network.
//
// The caller is responsible for putting the network in
// evaluation mode.
type Evaluator interface {
	Evaluate(m anyseg.Segmenter) (Metrics, error)
}

// SlidingWindow evaluates a network on whole labeled
// volumes by averaging class probabilities over
// overlapping patches.
type SlidingWindow struct {
	Cases   anydata.Dataset
	Classes int
	Patch   anyseg.Shape

	// StrideXY is the window step along X and Y, and StrideZ
	// the step along Z.
	StrideXY int
	StrideZ  int
}

// Evaluate scores every case and averages the metrics of
// each class over cases.
func (s *SlidingWindow) Evaluate(m anyseg.Segmenter) (Metrics, error) {
	if s.Cases.Len() == 0 {
		return nil, errors.New("evaluate: no cases")
	}
	if s.Classes < 2 {
		return nil, fmt.Errorf("evaluate: need at least 2 classes but got %d", s.Classes)
	}
	perClass := make([][2][]float64, s.Classes-1)
	for i := 0; i < s.Cases.Len(); i++ {
		sample, err := s.Cases.Sample(i)
		if err != nil {
			return nil, essentials.AddCtx("evaluate", err)
		}
		if sample.Label == nil {
			return nil, fmt.Errorf("evaluate: case %d has no label", i)
		}
		pred, err := s.Predict(m, sample)
		if err != nil {
			return nil, essentials.AddCtx("evaluate", err)
		}
		for c, x := range CaseMetrics(pred, sample.Label, s.Classes, sample.Shape) {
			perClass[c][0] = append(perClass[c][0], x[0])
			perClass[c][1] = append(perClass[c][1], x[1])
		}
	}
	res := make(Metrics, len(perClass))
	for c, x := range perClass {
		res[c] = [2]float64{stat.Mean(x[0], nil), stat.Mean(x[1], nil)}
	}
	return res, nil
}

// Predict labels every voxel of a sample.
//
// Volumes smaller than the patch are padded with zeros.
func (s *SlidingWindow) Predict(m anyseg.Segmenter, sample *anydata.Sample) ([]int, error) {
	if !s.Patch.Valid() || s.StrideXY < 1 || s.StrideZ < 1 {
		return nil, fmt.Errorf("predict: invalid patch %v with strides %d, %d", s.Patch,
			s.StrideXY, s.StrideZ)
	}
	orig := sample.Shape
	padShape := anyseg.Shape{
		X: maxInt(orig.X, s.Patch.X),
		Y: maxInt(orig.Y, s.Patch.Y),
		Z: maxInt(orig.Z, s.Patch.Z),
	}
	offX, offY, offZ := (padShape.X-orig.X)/2, (padShape.Y-orig.Y)/2, (padShape.Z-orig.Z)/2
	padded := anydata.Crop(sample, padShape, -offX, -offY, -offZ)

	classes := s.Classes
	scores := make([]float64, padShape.Voxels()*classes)
	counts := make([]float64, padShape.Voxels())
	for _, x := range windowStarts(padShape.X, s.Patch.X, s.StrideXY) {
		for _, y := range windowStarts(padShape.Y, s.Patch.Y, s.StrideXY) {
			for _, z := range windowStarts(padShape.Z, s.Patch.Z, s.StrideZ) {
				patch := anydata.Crop(padded, s.Patch, x, y, z)
				out := m.Apply(&anyseg.Volumes{
					Data:     patch.Image,
					Num:      1,
					Channels: patch.Channels,
					Shape:    s.Patch,
				}).Output()
				probs := anyseg.Softmax(anyseg.Floats(out), classes)
				s.accumulate(scores, counts, probs, padShape, x, y, z)
			}
		}
	}
	for i, c := range counts {
		for j := 0; j < classes; j++ {
			scores[i*classes+j] /= c
		}
	}
	labels, _ := anyseg.ArgMax(scores, classes)

	res := make([]int, orig.Voxels())
	for x := 0; x < orig.X; x++ {
		for y := 0; y < orig.Y; y++ {
			for z := 0; z < orig.Z; z++ {
				res[orig.Index(x, y, z)] = labels[padShape.Index(x+offX, y+offY, z+offZ)]
			}
		}
	}
	return res, nil
}

func (s *SlidingWindow) accumulate(scores, counts, probs []float64, padShape anyseg.Shape,
	ox, oy, oz int) {
	classes := s.Classes
	p := s.Patch
	for x := 0; x < p.X; x++ {
		for y := 0; y < p.Y; y++ {
			for z := 0; z < p.Z; z++ {
				src := p.Index(x, y, z)
				dst := padShape.Index(x+ox, y+oy, z+oz)
				for c := 0; c < classes; c++ {
					scores[dst*classes+c] += probs[src*classes+c]
				}
				counts[dst]++
			}
		}
	}
}

// windowStarts lists the window origins along one axis,
// the last of which ends at the edge.
func windowStarts(size, patch, stride int) []int {
	steps := (size-patch+stride-1)/stride + 1
	res := make([]int, steps)
	for i := range res {
		res[i] = i * stride
		if res[i] > size-patch {
			res[i] = size - patch
		}
	}
	return res
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
