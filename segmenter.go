package anyseg

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/serializer"
)

// ForwardOptions controls a student forward pass.
type ForwardOptions struct {
	// SuppressDropout disables dropout on the primary path.
	SuppressDropout bool

	// Perturb enables the perturbed path for the volumes
	// from PerturbFrom onwards.
	Perturb     bool
	PerturbFrom int
}

// Output is the result of a student forward pass.
type Output struct {
	// Logits covers every volume in the batch.
	Logits anydiff.Res

	// Perturbed covers the volumes [PerturbFrom, Num) and
	// is nil unless the perturbed path was enabled.
	Perturbed anydiff.Res

	// Aux holds architecture-specific extras.
	Aux anydiff.Res
}

// A Segmenter is a segmentation network usable as a
// student or as a teacher.
type Segmenter interface {
	Parameterizer
	serializer.Serializer

	// Forward runs the student role.
	Forward(in *Volumes, opts ForwardOptions) *Output

	// Apply runs the teacher role and returns logits.
	Apply(in *Volumes) anydiff.Res

	// SetTraining switches between training and evaluation
	// behavior. Evaluation disables every stochastic path.
	SetTraining(training bool)

	// Clone creates a network with independently owned
	// copies of every parameter.
	Clone(r *rand.Rand) Segmenter

	NumClasses() int
}

// A Factory creates a fresh network.
type Factory func(c anyvec.Creator, inChannels, classes int, r *rand.Rand) Segmenter

var factories = map[string]Factory{
	"voxelnet": func(c anyvec.Creator, in, classes int, r *rand.Rand) Segmenter {
		return NewVoxelNet(c, in, classes, false, r)
	},
	"voxelnet_ctx": func(c anyvec.Creator, in, classes int, r *rand.Rand) Segmenter {
		return NewVoxelNet(c, in, classes, true, r)
	},
}

// RegisterNet adds a named network factory.
func RegisterNet(name string, f Factory) {
	factories[name] = f
}

// NetNames lists the registered network names.
func NetNames() []string {
	var res []string
	for name := range factories {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// NewNet creates a network by name.
func NewNet(name string, c anyvec.Creator, inChannels, classes int,
	r *rand.Rand) (Segmenter, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown network: %q (have %v)", name, NetNames())
	}
	return f(c, inChannels, classes, r), nil
}
