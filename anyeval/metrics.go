// Package anyeval scores segmentation networks on labeled
// volumes.
package anyeval

import (
	"math"
	"sort"

	"github.com/unixpickle/anyseg"
	"gonum.org/v1/gonum/stat"
)

// Metrics stores a (dice, HD95) pair for every foreground
// class, starting with class 1.
type Metrics [][2]float64

// MeanDice averages the dice scores over classes.
func (m Metrics) MeanDice() float64 {
	if len(m) == 0 {
		return 0
	}
	dice := make([]float64, len(m))
	for i, x := range m {
		dice[i] = x[0]
	}
	return stat.Mean(dice, nil)
}

// MeanHD95 averages the HD95 distances over classes.
func (m Metrics) MeanHD95() float64 {
	if len(m) == 0 {
		return 0
	}
	hd := make([]float64, len(m))
	for i, x := range m {
		hd[i] = x[1]
	}
	return stat.Mean(hd, nil)
}

// CaseMetrics scores a predicted label volume against the
// ground truth.
//
// A class the prediction never produces scores (0, 0).
func CaseMetrics(pred, truth []int, classes int, s anyseg.Shape) Metrics {
	res := make(Metrics, classes-1)
	for class := 1; class < classes; class++ {
		p := mask(pred, class)
		t := mask(truth, class)
		if count(p) == 0 {
			continue
		}
		res[class-1] = [2]float64{Dice(p, t), HD95(p, t, s)}
	}
	return res
}

// Dice computes 2|A&B|/(|A|+|B|).
func Dice(a, b []bool) float64 {
	var inter, total int
	for i, x := range a {
		if x {
			total++
		}
		if b[i] {
			total++
		}
		if x && b[i] {
			inter++
		}
	}
	if total == 0 {
		return 1
	}
	return 2 * float64(inter) / float64(total)
}

// HD95 computes the 95th percentile of the symmetric
// surface distances between two masks, in voxels.
//
// It returns 0 if either mask is empty.
func HD95(a, b []bool, s anyseg.Shape) float64 {
	sa, sb := surface(a, s), surface(b, s)
	if count(sa) == 0 || count(sb) == 0 {
		return 0
	}
	distA := squaredDistances(sa, s)
	distB := squaredDistances(sb, s)
	var dists []float64
	for i := range sa {
		if sa[i] {
			dists = append(dists, math.Sqrt(distB[i]))
		}
		if sb[i] {
			dists = append(dists, math.Sqrt(distA[i]))
		}
	}
	sort.Float64s(dists)
	return percentile(dists, 0.95)
}

// percentile interpolates linearly between the two ranks
// nearest to p*(n-1) in sorted data.
func percentile(sorted []float64, p float64) float64 {
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func mask(labels []int, class int) []bool {
	res := make([]bool, len(labels))
	for i, l := range labels {
		res[i] = l == class
	}
	return res
}

func count(m []bool) int {
	var res int
	for _, x := range m {
		if x {
			res++
		}
	}
	return res
}

// surface keeps the voxels of m with a 6-neighbor outside
// of m or outside of the volume.
func surface(m []bool, s anyseg.Shape) []bool {
	res := make([]bool, len(m))
	offsets := [][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}
	for x := 0; x < s.X; x++ {
		for y := 0; y < s.Y; y++ {
			for z := 0; z < s.Z; z++ {
				idx := s.Index(x, y, z)
				if !m[idx] {
					continue
				}
				for _, o := range offsets {
					nx, ny, nz := x+o[0], y+o[1], z+o[2]
					if !s.Contains(nx, ny, nz) || !m[s.Index(nx, ny, nz)] {
						res[idx] = true
						break
					}
				}
			}
		}
	}
	return res
}
