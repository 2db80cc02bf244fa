package anyseg

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const (
	voxelNetHidden         = 16
	voxelNetKeepProb       = 0.5
	voxelNetNoiseMagnitude = 0.3
)

func init() {
	var v VoxelNet
	serializer.RegisterTypedDeserializer(v.SerializerType(), DeserializeVoxelNet)
}

// VoxelNet is a small segmentation network that classifies
// every voxel from its own features.
//
// With Context set, each channel's mean over the 3x3x3
// neighborhood of the voxel is appended to its features,
// and the first hidden layer uses Tanh instead of ReLU.
//
// The perturbed path applies FeatureNoise and then dropout
// to the hidden features before the shared head.
type VoxelNet struct {
	InChannels int
	Classes    int
	Context    bool

	Encoder Net
	Head    *Dense

	KeepProb       float64
	NoiseMagnitude float64

	// Training enables dropout and the perturbed path.
	Training bool

	rand *rand.Rand
}

// NewVoxelNet creates a randomly initialized VoxelNet in
// training mode.
// The random source r drives initialization, dropout and
// feature noise; if it is nil, the global source is used.
func NewVoxelNet(c anyvec.Creator, inChannels, classes int, context bool,
	r *rand.Rand) *VoxelNet {
	features := inChannels
	first := ReLU
	if context {
		features *= 2
		first = Tanh
	}
	return &VoxelNet{
		InChannels: inChannels,
		Classes:    classes,
		Context:    context,
		Encoder: Net{
			NewDense(c, features, voxelNetHidden, r),
			first,
			NewDense(c, voxelNetHidden, voxelNetHidden, r),
			ReLU,
		},
		Head:           NewDense(c, voxelNetHidden, classes, r),
		KeepProb:       voxelNetKeepProb,
		NoiseMagnitude: voxelNetNoiseMagnitude,
		Training:       true,
		rand:           r,
	}
}

// DeserializeVoxelNet deserializes a VoxelNet.
// The result is in training mode and uses the global
// random source.
func DeserializeVoxelNet(d []byte) (*VoxelNet, error) {
	var inChannels, classes serializer.Int
	var context bool
	var keepProb, noise float64
	var encoder Net
	var head *Dense
	err := serializer.DeserializeAny(d, &inChannels, &classes, &context, &keepProb,
		&noise, &encoder, &head)
	if err != nil {
		return nil, essentials.AddCtx("deserialize VoxelNet", err)
	}
	return &VoxelNet{
		InChannels:     int(inChannels),
		Classes:        int(classes),
		Context:        context,
		Encoder:        encoder,
		Head:           head,
		KeepProb:       keepProb,
		NoiseMagnitude: noise,
		Training:       true,
	}, nil
}

// Forward runs the network as a student.
func (v *VoxelNet) Forward(in *Volumes, opts ForwardOptions) *Output {
	v.checkInput(in)
	if opts.PerturbFrom < 0 || opts.PerturbFrom > in.Num {
		panic(fmt.Sprintf("perturbation start %d out of range [0, %d]",
			opts.PerturbFrom, in.Num))
	}
	voxels := in.Shape.Voxels()
	count := in.Num * voxels
	hidden := v.Encoder.Apply(anydiff.NewConst(v.features(in)), count)

	primary := hidden
	if v.Training && !opts.SuppressDropout {
		primary = v.dropout().Apply(hidden, count)
	}
	res := &Output{
		Logits: v.Head.Apply(primary, count),
		Aux:    hidden,
	}

	if v.Training && opts.Perturb && opts.PerturbFrom < in.Num {
		start := opts.PerturbFrom * voxels
		n := count - start
		sub := anydiff.Slice(hidden, start*v.Head.InCount, count*v.Head.InCount)
		noise := &FeatureNoise{Magnitude: v.NoiseMagnitude, Rand: v.rand}
		sub = v.dropout().Apply(noise.Apply(sub, n), n)
		res.Perturbed = v.Head.Apply(sub, n)
	}
	return res
}

// Apply runs the network as a teacher.
// Dropout follows the training mode, as for Forward.
func (v *VoxelNet) Apply(in *Volumes) anydiff.Res {
	return v.Forward(in, ForwardOptions{}).Logits
}

// SetTraining sets the training mode.
func (v *VoxelNet) SetTraining(training bool) {
	v.Training = training
}

// Clone copies the network with fresh parameter vectors.
// The copy draws its randomness from r.
func (v *VoxelNet) Clone(r *rand.Rand) Segmenter {
	res := *v
	res.Encoder = v.Encoder.Clone()
	res.Head = v.Head.Clone()
	res.rand = r
	return &res
}

// NumClasses returns the number of output classes.
func (v *VoxelNet) NumClasses() int {
	return v.Classes
}

// Parameters returns the encoder parameters followed by
// the head parameters.
func (v *VoxelNet) Parameters() []*anydiff.Var {
	return append(v.Encoder.Parameters(), v.Head.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// a VoxelNet with the serializer package.
func (v *VoxelNet) SerializerType() string {
	return "github.com/unixpickle/anyseg.VoxelNet"
}

// Serialize serializes the network.
func (v *VoxelNet) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(v.InChannels),
		serializer.Int(v.Classes),
		v.Context,
		v.KeepProb,
		v.NoiseMagnitude,
		v.Encoder,
		v.Head,
	)
}

func (v *VoxelNet) dropout() *Dropout {
	return &Dropout{KeepProb: v.KeepProb, Rand: v.rand}
}

func (v *VoxelNet) checkInput(in *Volumes) {
	if in.Channels != v.InChannels {
		panic(fmt.Sprintf("expected %d input channels but got %d", v.InChannels,
			in.Channels))
	}
	in.Check()
}

func (v *VoxelNet) features(in *Volumes) anyvec.Vector {
	if !v.Context {
		return in.Data
	}
	return MakeVector(in.Data.Creator(), neighborhoodMeans(in))
}

// neighborhoodMeans packs, for every voxel, its channels
// followed by each channel's mean over the 3x3x3 window
// clipped to the volume.
func neighborhoodMeans(in *Volumes) []float64 {
	data := Floats(in.Data)
	s := in.Shape
	ch := in.Channels
	voxels := s.Voxels()
	res := make([]float64, len(data)*2)
	for n := 0; n < in.Num; n++ {
		base := n * voxels
		for x := 0; x < s.X; x++ {
			for y := 0; y < s.Y; y++ {
				for z := 0; z < s.Z; z++ {
					dst := (base + s.Index(x, y, z)) * ch * 2
					for c := 0; c < ch; c++ {
						var sum float64
						var count int
						for dx := -1; dx <= 1; dx++ {
							for dy := -1; dy <= 1; dy++ {
								for dz := -1; dz <= 1; dz++ {
									if !s.Contains(x+dx, y+dy, z+dz) {
										continue
									}
									idx := base + s.Index(x+dx, y+dy, z+dz)
									sum += data[idx*ch+c]
									count++
								}
							}
						}
						res[dst+c] = data[(base+s.Index(x, y, z))*ch+c]
						res[dst+ch+c] = sum / float64(count)
					}
				}
			}
		}
	}
	return res
}
