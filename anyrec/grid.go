package anyrec

import (
	"image"
	"image/color"
	"math"

	"github.com/unixpickle/anyseg"
)

const gridColumns = 5

// DepthGrid tiles XY slices of one channel of a volume,
// taken every step voxels along Z, into a gray image with
// up to five slices per row.
//
// Intensities are rescaled so that the smallest value is
// black and the largest is white.
func DepthGrid(data []float64, s anyseg.Shape, channels, channel, step int) *image.Gray {
	if step < 1 {
		step = 1
	}
	var depths []int
	for z := 0; z < s.Z; z += step {
		depths = append(depths, z)
	}
	cols := gridColumns
	if len(depths) < cols {
		cols = len(depths)
	}
	rows := (len(depths) + cols - 1) / cols
	img := image.NewGray(image.Rect(0, 0, cols*s.Y, rows*s.X))

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := channel; i < len(data); i += channels {
		lo = math.Min(lo, data[i])
		hi = math.Max(hi, data[i])
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	for i, z := range depths {
		ox, oy := (i%cols)*s.Y, (i/cols)*s.X
		for x := 0; x < s.X; x++ {
			for y := 0; y < s.Y; y++ {
				v := data[s.Index(x, y, z)*channels+channel]
				img.SetGray(ox+y, oy+x, color.Gray{Y: uint8(math.Round((v - lo) * scale))})
			}
		}
	}
	return img
}

// LabelVolume converts class indices to floats for use
// with DepthGrid.
func LabelVolume(labels []int) []float64 {
	res := make([]float64, len(labels))
	for i, l := range labels {
		res[i] = float64(l)
	}
	return res
}
