package anydata

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyvec/anyvec64"
)

// idDataset stores each sample's index in its voxels.
func idDataset(n int, s anyseg.Shape) SliceDataset {
	var res SliceDataset
	for i := 0; i < n; i++ {
		image := make([]float64, s.Voxels())
		label := make([]int, s.Voxels())
		for j := range image {
			image[j] = float64(i)
			label[j] = i % 2
		}
		res = append(res, &Sample{
			Image:    anyvec64.MakeVectorData(image),
			Channels: 1,
			Label:    label,
			Shape:    s,
		})
	}
	return res
}

// noiseTransform adds one random number to every voxel.
type noiseTransform struct{}

func (n noiseTransform) Apply(s *Sample, r *rand.Rand) (*Sample, error) {
	res := *s
	res.Image = s.Image.Copy()
	res.Image.AddScalar(r.Float64())
	return &res, nil
}

func TestLoaderOrder(t *testing.T) {
	shape := anyseg.Shape{X: 2, Y: 1, Z: 2}
	ds := idDataset(12, shape)
	labeled, unlabeled, _ := Split(4, 12)

	expectedSampler, _ := NewTwoStreamSampler(labeled, unlabeled, 3, 2, rand.New(rand.NewSource(3)))
	sampler, _ := NewTwoStreamSampler(labeled, unlabeled, 3, 2, rand.New(rand.NewSource(3)))
	loader := NewLoader(ds, sampler, LoaderOptions{Workers: 3, Prefetch: 4})
	defer loader.Close()

	for i := 0; i < 10; i++ {
		batch, err := loader.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		expected := expectedSampler.Next()
		data := anyseg.Floats(batch.Images)
		for j, id := range expected {
			if batch.IDs[j] != id || data[j*shape.Voxels()] != float64(id) {
				t.Fatalf("batch %d: expected ids %v but got %v", i, expected, batch.IDs)
			}
		}
		if batch.Labeled != 1 || len(batch.Labels) != shape.Voxels() {
			t.Fatalf("batch %d: %d labeled with %d labels", i, batch.Labeled, len(batch.Labels))
		}
		if batch.Labels[0] != expected[0]%2 {
			t.Fatalf("batch %d: wrong label", i)
		}
		if v := batch.Volumes(); v.Num != 3 || v.Shape != shape {
			t.Fatalf("batch %d: bad volumes", i)
		}
	}
}

func TestLoaderDeterminism(t *testing.T) {
	run := func() [][]float64 {
		ds := idDataset(8, anyseg.Shape{X: 1, Y: 1, Z: 1})
		labeled, unlabeled, _ := Split(2, 8)
		sampler, _ := NewTwoStreamSampler(labeled, unlabeled, 2, 1, rand.New(rand.NewSource(4)))
		loader := NewLoader(ds, sampler, LoaderOptions{
			Workers:   2,
			Seed:      2025,
			Transform: noiseTransform{},
		})
		defer loader.Close()
		var res [][]float64
		for i := 0; i < 6; i++ {
			batch, err := loader.Next(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			res = append(res, anyseg.Floats(batch.Images))
		}
		return res
	}
	first, second := run(), run()
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("batch %d differs between runs", i)
			}
		}
	}
}

func TestLoaderErrors(t *testing.T) {
	ds := SliceDataset(idDataset(4, anyseg.Shape{X: 1, Y: 1, Z: 1}))
	ds[0].Label = nil
	sampler, _ := NewTwoStreamSampler([]int{0}, []int{1, 2, 3}, 2, 1, nil)
	loader := NewLoader(ds, sampler, LoaderOptions{Workers: 1})
	if _, err := loader.Next(context.Background()); err == nil {
		t.Error("expected error for missing label")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	loader.Close()
	if _, err := loader.Next(ctx); err == nil {
		t.Error("expected error after close")
	}
}
