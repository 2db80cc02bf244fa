package anydata

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A Batch is a packed list of samples, labeled samples
// first.
type Batch struct {
	IDs []int

	// Images stores Num volumes packed sample-major.
	Images   anyvec.Vector
	Channels int
	Shape    anyseg.Shape
	Num      int

	// Labels stores the labels of the first Labeled samples.
	Labels  []int
	Labeled int
}

// Volumes returns the images as packed volumes.
func (b *Batch) Volumes() *anyseg.Volumes {
	return &anyseg.Volumes{
		Data:     b.Images,
		Num:      b.Num,
		Channels: b.Channels,
		Shape:    b.Shape,
	}
}

// Fetch loads, transforms and packs the samples with the
// given ids, the first labeled of which must have labels.
//
// The transform may be nil.
// The random source is passed to the transform.
func Fetch(d Dataset, ids []int, labeled int, t Transform, r *rand.Rand) (*Batch, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("fetch batch: empty batch")
	}
	images := make([]anyvec.Vector, len(ids))
	res := &Batch{IDs: append([]int{}, ids...), Num: len(ids), Labeled: labeled}
	for i, id := range ids {
		sample, err := d.Sample(id)
		if err != nil {
			return nil, essentials.AddCtx(fmt.Sprintf("fetch sample %d", id), err)
		}
		if t != nil {
			sample, err = t.Apply(sample, r)
			if err != nil {
				return nil, essentials.AddCtx(fmt.Sprintf("transform sample %d", id), err)
			}
		}
		if err := sample.Check(); err != nil {
			return nil, essentials.AddCtx(fmt.Sprintf("fetch sample %d", id), err)
		}
		if i == 0 {
			res.Shape = sample.Shape
			res.Channels = sample.Channels
		} else if sample.Shape != res.Shape || sample.Channels != res.Channels {
			return nil, fmt.Errorf("fetch batch: sample %d is %v with %d channels, expected %v with %d",
				id, sample.Shape, sample.Channels, res.Shape, res.Channels)
		}
		if i < labeled {
			if sample.Label == nil {
				return nil, fmt.Errorf("fetch batch: sample %d has no label", id)
			}
			res.Labels = append(res.Labels, sample.Label...)
		}
		images[i] = sample.Image
	}
	res.Images = images[0].Creator().Concat(images...)
	return res, nil
}
