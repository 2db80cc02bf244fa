package anyrec

import (
	"image"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/unixpickle/anyseg"
)

func TestMemMulti(t *testing.T) {
	a, b := &Mem{}, &Mem{}
	m := Multi{a, Nop{}, b}
	m.Scalar("loss", 2, 0)
	m.Scalar("loss", 1, 1)
	m.Image("grid", image.NewGray(image.Rect(0, 0, 1, 1)), 1)
	for _, r := range []*Mem{a, b} {
		values := r.Values("loss")
		if len(values) != 2 || values[0] != 2 || values[1] != 1 {
			t.Errorf("unexpected values %v", values)
		}
		if len(r.Images("grid")) != 1 {
			t.Error("missing image")
		}
	}
	if len(a.Values("other")) != 0 {
		t.Error("unexpected values for unknown tag")
	}
}

func TestSQLite(t *testing.T) {
	dir, err := ioutil.TempDir("", "anyrec")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	s, err := OpenSQLite(filepath.Join(dir, "log.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.Scalar("info/total_loss", 0.5, 1)
	s.Scalar("info/total_loss", 0.25, 2)
	s.Scalar("info/lr", 0.01, 1)
	s.Image("train/Image", DepthGrid([]float64{0, 1, 2, 3}, anyseg.Shape{X: 1, Y: 2, Z: 2},
		1, 0, 1), 1)
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	points, err := s.Scalars("info/total_loss")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 || points[0] != (Point{1, 0.5}) || points[1] != (Point{2, 0.25}) {
		t.Errorf("unexpected points %v", points)
	}
	if n, err := s.ImageCount("train/Image"); err != nil || n != 1 {
		t.Errorf("expected 1 image but got %d (%v)", n, err)
	}
}

func TestDepthGrid(t *testing.T) {
	s := anyseg.Shape{X: 2, Y: 3, Z: 4}
	data := make([]float64, s.Voxels())
	for x := 0; x < s.X; x++ {
		for y := 0; y < s.Y; y++ {
			for z := 0; z < s.Z; z++ {
				data[s.Index(x, y, z)] = float64(z)
			}
		}
	}
	img := DepthGrid(data, s, 1, 0, 2)
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 2 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if img.GrayAt(0, 0).Y != 0 || img.GrayAt(3, 1).Y != 170 {
		t.Errorf("unexpected pixels %d, %d", img.GrayAt(0, 0).Y, img.GrayAt(3, 1).Y)
	}
}
