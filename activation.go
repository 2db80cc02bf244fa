package anyseg

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is a voxel-wise nonlinearity layer.
//
// VoxelNet uses ReLU between its hidden layers, and Tanh
// after the first layer when neighborhood context is on.
type Activation byte

const (
	ReLU Activation = iota
	Tanh

	numActivations
)

var activationNames = [numActivations]string{"relu", "tanh"}

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: expected 1 byte but got %d", len(d))
	}
	if a := Activation(d[0]); a < numActivations {
		return a, nil
	}
	return 0, fmt.Errorf("deserialize Activation: unknown ID %d", d[0])
}

// Apply applies the nonlinearity to every component.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	if a == Tanh {
		return anydiff.Tanh(in)
	} else if a == ReLU {
		return anydiff.ClipPos(in)
	}
	panic("unknown activation: " + a.String())
}

func (a Activation) String() string {
	if a < numActivations {
		return activationNames[a]
	}
	return fmt.Sprintf("Activation(%d)", byte(a))
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/unixpickle/anyseg.Activation"
}

// Serialize encodes the activation as its ID.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}
