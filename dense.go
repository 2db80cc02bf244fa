package anyseg

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Dense
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDense)
}

// Dense maps every voxel's feature vector through the
// same affine transform, like a 1x1x1 convolution.
type Dense struct {
	InCount  int
	OutCount int
	Weights  *anydiff.Var
	Biases   *anydiff.Var
}

// DeserializeDense deserializes a Dense.
func DeserializeDense(d []byte) (*Dense, error) {
	var weights, biases *anyvecsave.S
	if err := serializer.DeserializeAny(d, &weights, &biases); err != nil {
		return nil, essentials.AddCtx("deserialize Dense", err)
	}
	outCount := biases.Vector.Len()
	if outCount == 0 || weights.Vector.Len()%outCount != 0 {
		return nil, errors.New("deserialize Dense: invalid matrix dimensions")
	}
	return &Dense{
		InCount:  weights.Vector.Len() / outCount,
		OutCount: outCount,
		Weights:  anydiff.NewVar(weights.Vector),
		Biases:   anydiff.NewVar(biases.Vector),
	}, nil
}

// NewDense creates a Dense with normally distributed
// weights of variance 1/in and zero biases.
//
// If r is nil, the global source is used.
func NewDense(c anyvec.Creator, in, out int, r *rand.Rand) *Dense {
	res := &Dense{
		InCount:  in,
		OutCount: out,
		Weights:  anydiff.NewVar(c.MakeVector(in * out)),
		Biases:   anydiff.NewVar(c.MakeVector(out)),
	}
	anyvec.Rand(res.Weights.Vector, anyvec.Normal, r)
	res.Weights.Vector.Scale(c.MakeNumeric(1 / math.Sqrt(float64(in))))
	return res
}

// Apply applies the transform to n packed feature vectors.
func (d *Dense) Apply(in anydiff.Res, n int) anydiff.Res {
	if n*d.InCount != in.Output().Len() {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			n*d.InCount, in.Output().Len()))
	}
	weightMat := &anydiff.Matrix{
		Data: d.Weights,
		Rows: d.OutCount,
		Cols: d.InCount,
	}
	inMat := &anydiff.Matrix{
		Data: in,
		Rows: n,
		Cols: d.InCount,
	}
	product := anydiff.MatMul(false, true, inMat, weightMat)
	return anydiff.AddRepeated(product.Data, d.Biases)
}

// Clone creates a Dense with copies of the parameters.
func (d *Dense) Clone() *Dense {
	return &Dense{
		InCount:  d.InCount,
		OutCount: d.OutCount,
		Weights:  anydiff.NewVar(d.Weights.Vector.Copy()),
		Biases:   anydiff.NewVar(d.Biases.Vector.Copy()),
	}
}

// Parameters returns the weights and biases, in that
// order.
func (d *Dense) Parameters() []*anydiff.Var {
	return []*anydiff.Var{d.Weights, d.Biases}
}

// SerializerType returns the unique ID used to serialize
// a Dense with the serializer package.
func (d *Dense) SerializerType() string {
	return "github.com/unixpickle/anyseg.Dense"
}

// Serialize serializes the Dense.
func (d *Dense) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: d.Weights.Vector},
		&anyvecsave.S{Vector: d.Biases.Vector},
	)
}
