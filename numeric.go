package anyseg

import (
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Floats copies the contents of a vector into a float64
// slice.
// It panics for numeric types other than float32 and
// float64.
func Floats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return append([]float64{}, data...)
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", data))
	}
}

// Float converts a numeric to a float64.
func Float(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", n))
	}
}

// Scalar returns the single component of a result.
func Scalar(r anydiff.Res) float64 {
	return Float(anyvec.Sum(r.Output()))
}

// MakeVector creates a vector from float64 data.
func MakeVector(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}

// Zero returns a one-component constant holding 0.
func Zero(c anyvec.Creator) *anydiff.Const {
	return anydiff.NewConst(c.MakeVector(1))
}

// Softmax computes class probabilities for packed logits
// with the given number of classes per voxel.
func Softmax(logits []float64, classes int) []float64 {
	if len(logits)%classes != 0 {
		panic("class count must divide logit count")
	}
	res := make([]float64, len(logits))
	for i := 0; i < len(logits); i += classes {
		row := logits[i : i+classes]
		max := math.Inf(-1)
		for _, x := range row {
			max = math.Max(max, x)
		}
		var sum float64
		for j, x := range row {
			e := math.Exp(x - max)
			res[i+j] = e
			sum += e
		}
		for j := range row {
			res[i+j] /= sum
		}
	}
	return res
}

// ArgMax finds the most likely class of every voxel and
// its probability.
// Ties go to the lowest class index.
func ArgMax(probs []float64, classes int) (labels []int, conf []float64) {
	if len(probs)%classes != 0 {
		panic("class count must divide probability count")
	}
	n := len(probs) / classes
	labels = make([]int, n)
	conf = make([]float64, n)
	for i := 0; i < n; i++ {
		row := probs[i*classes : (i+1)*classes]
		best := 0
		for j, p := range row {
			if p > row[best] {
				best = j
			}
		}
		labels[i] = best
		conf[i] = row[best]
	}
	return
}

// OneHot packs integer labels into one-hot vectors.
func OneHot(labels []int, classes int) []float64 {
	res := make([]float64, len(labels)*classes)
	for i, l := range labels {
		if l < 0 || l >= classes {
			panic(fmt.Sprintf("label %d out of range [0, %d)", l, classes))
		}
		res[i*classes+l] = 1
	}
	return res
}
