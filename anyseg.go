// Package anyseg provides the building blocks for training
// volumetric segmentation networks with a mean teacher.
//
// Volumes are packed channel-last: a batch of n samples
// with C channels over a Shape with V voxels is a vector
// of n*V*C components, indexed by sample, then voxel,
// then channel.
//
// Sub-packages implement batching (anydata), the teacher
// shadow (anyema), label-noise filtering (anyclean),
// schedules (anysgd), evaluation (anyeval), recording
// (anyrec) and the training loop itself (anymt).
package anyseg

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n Net
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNet)
}

// A Parameterizer is anything with learnable variables.
//
// The parameters of a Parameterizer must be in the same
// order every time Parameters() is called.
// Two Parameterizers built by the same constructor list
// corresponding parameters at the same positions.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// A Layer is a voxel-wise computation unit.
//
// The input packs n equally-long feature vectors, one per
// voxel, and the output packs n vectors as well.
type Layer interface {
	Apply(in anydiff.Res, n int) anydiff.Res
}

// A Net evaluates a list of layers, one after another.
type Net []Layer

// DeserializeNet deserializes a Net.
func DeserializeNet(d []byte) (Net, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Net", err)
	}
	res := make(Net, len(slice))
	for i, x := range slice {
		layer, ok := x.(Layer)
		if !ok {
			return nil, fmt.Errorf("deserialize Net: not a Layer: %T", x)
		}
		res[i] = layer
	}
	return res, nil
}

// Apply applies the layers in order.
func (n Net) Apply(in anydiff.Res, count int) anydiff.Res {
	for _, l := range n {
		in = l.Apply(in, count)
	}
	return in
}

// Parameters gathers the parameters of every layer which
// implements Parameterizer, from the first layer onwards.
func (n Net) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, x := range n {
		if p, ok := x.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// Clone copies the Net.
// Dense layers get fresh copies of their parameters, and
// every other layer is shared since it holds no state.
func (n Net) Clone() Net {
	res := make(Net, len(n))
	for i, l := range n {
		if d, ok := l.(*Dense); ok {
			res[i] = d.Clone()
		} else {
			res[i] = l
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Net with the serializer package.
func (n Net) SerializerType() string {
	return "github.com/unixpickle/anyseg.Net"
}

// Serialize serializes the Net.
// It fails if any layer is not a serializer.Serializer.
func (n Net) Serialize() ([]byte, error) {
	var slice []serializer.Serializer
	for _, x := range n {
		s, ok := x.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("not a Serializer: %T", x)
		}
		slice = append(slice, s)
	}
	return serializer.SerializeSlice(slice)
}
