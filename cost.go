package anyseg

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// DiceSmooth is added to both sides of the Dice ratio.
const DiceSmooth = 1e-5

// Probs turns packed logits into differentiable class
// probabilities.
func Probs(logits anydiff.Res, classes int) anydiff.Res {
	return anydiff.Exp(anydiff.LogSoftmax(logits, classes))
}

// CrossEntropy computes the mean voxel-wise cross-entropy
// between packed logits and integer labels.
//
// If weights is non-nil, it gives a weight per class and
// the result is the weighted mean, normalized by the total
// weight of the labels.
func CrossEntropy(logits anydiff.Res, labels []int, classes int,
	weights []float64) anydiff.Res {
	c := logits.Output().Creator()
	checkLabels(logits, labels, classes)
	if weights != nil && len(weights) != classes {
		panic(fmt.Sprintf("expected %d class weights but got %d", classes, len(weights)))
	}
	target := OneHot(labels, classes)
	var total float64
	for i, l := range labels {
		w := 1.0
		if weights != nil {
			w = weights[l]
		}
		target[i*classes+l] = w
		total += w
	}
	if total == 0 {
		return Zero(c)
	}
	logProbs := anydiff.LogSoftmax(logits, classes)
	dot := anydiff.Sum(anydiff.Mul(anydiff.NewConst(MakeVector(c, target)), logProbs))
	return anydiff.Scale(dot, c.MakeNumeric(-1/total))
}

// Dice computes the soft Dice loss between packed class
// probabilities and integer labels, averaged over every
// class.
//
// For class k, the loss is
//
//     1 - (2*sum(p_k*y_k) + s) / (sum(p_k^2) + sum(y_k^2) + s)
//
// If keep is non-nil, voxels where keep is false are left
// out of every sum.
func Dice(probs anydiff.Res, labels []int, classes int, keep []bool) anydiff.Res {
	c := probs.Output().Creator()
	checkLabels(probs, labels, classes)
	if keep != nil && len(keep) != len(labels) {
		panic(fmt.Sprintf("expected %d mask entries but got %d", len(labels), len(keep)))
	}

	target := make([]float64, len(labels)*classes)
	mask := make([]float64, len(labels)*classes)
	targetSums := make([]float64, classes)
	for i, l := range labels {
		if keep != nil && !keep[i] {
			continue
		}
		target[i*classes+l] = 1
		targetSums[l]++
		for j := 0; j < classes; j++ {
			mask[i*classes+j] = 1
		}
	}

	masked := probs
	if keep != nil {
		masked = anydiff.Mul(probs, anydiff.NewConst(MakeVector(c, mask)))
	}
	targetConst := anydiff.NewConst(MakeVector(c, target))
	ySum := anydiff.NewConst(MakeVector(c, targetSums))

	return anydiff.Pool(masked, func(masked anydiff.Res) anydiff.Res {
		intersect := sumClasses(anydiff.Mul(masked, targetConst), classes)
		zSum := sumClasses(anydiff.Square(masked), classes)
		num := anydiff.AddScalar(anydiff.Scale(intersect, c.MakeNumeric(2)),
			c.MakeNumeric(DiceSmooth))
		denom := anydiff.AddScalar(anydiff.Add(zSum, ySum), c.MakeNumeric(DiceSmooth))
		ratio := anydiff.Mul(num, anydiff.Pow(denom, c.MakeNumeric(-1)))
		mean := anydiff.Scale(anydiff.Sum(ratio), c.MakeNumeric(-1/float64(classes)))
		return anydiff.AddScalar(mean, c.MakeNumeric(1))
	})
}

// SquaredError computes the component-wise squared
// difference between actual and a fixed target.
func SquaredError(actual anydiff.Res, target anyvec.Vector) anydiff.Res {
	if actual.Output().Len() != target.Len() {
		panic(fmt.Sprintf("target length should be %d, but got %d",
			actual.Output().Len(), target.Len()))
	}
	return anydiff.Square(anydiff.Sub(actual, anydiff.NewConst(target)))
}

// Mean averages every component of x.
func Mean(x anydiff.Res) anydiff.Res {
	c := x.Output().Creator()
	if x.Output().Len() == 0 {
		return Zero(c)
	}
	return anydiff.Scale(anydiff.Sum(x), c.MakeNumeric(1/float64(x.Output().Len())))
}

// MaskedMean computes sum(mask*x) / (sum(mask) + eps).
func MaskedMean(x anydiff.Res, mask []float64, eps float64) anydiff.Res {
	c := x.Output().Creator()
	if len(mask) != x.Output().Len() {
		panic(fmt.Sprintf("mask length should be %d, but got %d",
			x.Output().Len(), len(mask)))
	}
	var count float64
	for _, m := range mask {
		count += m
	}
	sum := anydiff.Sum(anydiff.Mul(x, anydiff.NewConst(MakeVector(c, mask))))
	return anydiff.Scale(sum, c.MakeNumeric(1/(count+eps)))
}

func checkLabels(r anydiff.Res, labels []int, classes int) {
	if r.Output().Len() != len(labels)*classes {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			len(labels)*classes, r.Output().Len()))
	}
}
