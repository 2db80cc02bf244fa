// Package anyclean finds likely label errors with
// confident learning.
//
// The input is a set of samples, each with a given label
// and a predicted probability distribution. Samples whose
// label disagrees with a confident prediction, in numbers
// estimated from the confident joint of given and guessed
// labels, are flagged.
package anyclean

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const thresholdTolerance = 1e-6

var (
	ErrEmpty      = errors.New("no samples")
	ErrDegenerate = errors.New("fewer than two distinct labels")
	ErrEmptyClass = errors.New("class has no samples")
)

// Options configures Find.
type Options struct {
	Strategy Strategy

	// MinPerClass is the number of samples of every label
	// that are never flagged.
	// If it is 0, 1 is used.
	MinPerClass int

	// MaxSamples limits the number of samples.
	// If it is 0, there is no limit.
	MaxSamples int
}

// A Result is the outcome of Find.
//
// If Err is non-nil, the filter could not run and Flags
// is nil.
type Result struct {
	Flags []bool
	Err   error
}

// OK returns true if the filter ran.
func (r Result) OK() bool {
	return r.Err == nil
}

// Count returns the number of flagged samples.
func (r Result) Count() int {
	var res int
	for _, f := range r.Flags {
		if f {
			res++
		}
	}
	return res
}

// Find flags the samples whose labels are likely wrong.
//
// The probabilities are packed sample-major, with classes
// entries per sample.
// Flags are in sample order.
func Find(labels []int, probs []float64, classes int, opts Options) Result {
	p, err := newProblem(labels, probs, classes, opts)
	if err != nil {
		return Result{Err: err}
	}
	joint := p.calibrate(p.confidentJoint())

	var flags []bool
	switch opts.Strategy {
	case PruneByClass:
		flags = p.pruneByClass(joint)
	case PruneByNoiseRate:
		flags = p.pruneByNoiseRate(joint)
	case Both:
		flags = p.pruneByClass(joint)
		byRate := p.pruneByNoiseRate(joint)
		for i, f := range byRate {
			flags[i] = flags[i] && f
		}
	default:
		return Result{Err: fmt.Errorf("find label errors: unknown strategy %d", opts.Strategy)}
	}

	for i, label := range labels {
		if flags[i] && p.argmax(i) == label {
			flags[i] = false
		}
	}
	return Result{Flags: flags}
}

type problem struct {
	labels      []int
	probs       []float64
	classes     int
	counts      []int
	minPerClass int
}

func newProblem(labels []int, probs []float64, classes int, opts Options) (*problem, error) {
	if len(labels) == 0 {
		return nil, ErrEmpty
	}
	if classes < 2 {
		return nil, fmt.Errorf("find label errors: need at least 2 classes but got %d", classes)
	}
	if len(probs) != len(labels)*classes {
		return nil, fmt.Errorf("find label errors: %d probabilities for %d samples of %d classes",
			len(probs), len(labels), classes)
	}
	if opts.MaxSamples > 0 && len(labels) > opts.MaxSamples {
		return nil, fmt.Errorf("find label errors: %d samples exceeds limit %d",
			len(labels), opts.MaxSamples)
	}
	for i, x := range probs {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return nil, fmt.Errorf("find label errors: invalid probability %v at %d", x, i)
		}
	}
	counts := make([]int, classes)
	for i, label := range labels {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("find label errors: label %d of sample %d out of range",
				label, i)
		}
		counts[label]++
	}
	var distinct int
	for _, c := range counts {
		if c > 0 {
			distinct++
		}
	}
	if distinct < 2 {
		return nil, ErrDegenerate
	}
	for class, c := range counts {
		if c == 0 {
			return nil, fmt.Errorf("find label errors: class %d: %w", class, ErrEmptyClass)
		}
	}
	minPerClass := opts.MinPerClass
	if minPerClass == 0 {
		minPerClass = 1
	}
	return &problem{
		labels:      labels,
		probs:       probs,
		classes:     classes,
		counts:      counts,
		minPerClass: minPerClass,
	}, nil
}

func (p *problem) prob(sample, class int) float64 {
	return p.probs[sample*p.classes+class]
}

func (p *problem) argmax(sample int) int {
	var best int
	for class := 1; class < p.classes; class++ {
		if p.prob(sample, class) > p.prob(sample, best) {
			best = class
		}
	}
	return best
}

// thresholds computes the mean self-confidence of each
// class.
func (p *problem) thresholds() []float64 {
	perClass := make([][]float64, p.classes)
	for i, label := range p.labels {
		perClass[label] = append(perClass[label], p.prob(i, label))
	}
	res := make([]float64, p.classes)
	for class, values := range perClass {
		res[class] = stat.Mean(values, nil)
	}
	return res
}

// confidentJoint counts samples by given label and
// confident guess.
func (p *problem) confidentJoint() *mat.Dense {
	thresh := p.thresholds()
	joint := mat.NewDense(p.classes, p.classes, nil)
	for i, label := range p.labels {
		guess := -1
		for class := 0; class < p.classes; class++ {
			if p.prob(i, class) < thresh[class]-thresholdTolerance {
				continue
			}
			if guess < 0 || p.prob(i, class) > p.prob(i, guess) {
				guess = class
			}
		}
		if guess >= 0 {
			joint.Set(label, guess, joint.At(label, guess)+1)
		}
	}
	return joint
}

// calibrate rescales the rows of the joint to the label
// counts and the whole matrix to the number of samples,
// then rounds each row to integers with the row's total.
func (p *problem) calibrate(joint *mat.Dense) [][]int {
	for label := 0; label < p.classes; label++ {
		row := joint.RawRowView(label)
		var sum float64
		for _, x := range row {
			sum += x
		}
		if sum == 0 {
			row[label] = float64(p.counts[label])
			continue
		}
		scale := float64(p.counts[label]) / sum
		for j := range row {
			row[j] *= scale
		}
	}
	joint.Scale(float64(len(p.labels))/mat.Sum(joint), joint)

	res := make([][]int, p.classes)
	for label := range res {
		res[label] = roundRow(joint.RawRowView(label), p.counts[label])
	}
	return res
}

// roundRow rounds values to integers that sum to total,
// giving leftover units to the largest fractional parts.
func roundRow(values []float64, total int) []int {
	res := make([]int, len(values))
	fracs := make([]int, len(values))
	var sum int
	for i, x := range values {
		res[i] = int(math.Floor(x))
		sum += res[i]
		fracs[i] = i
	}
	sort.SliceStable(fracs, func(a, b int) bool {
		fa := values[fracs[a]] - math.Floor(values[fracs[a]])
		fb := values[fracs[b]] - math.Floor(values[fracs[b]])
		return fa > fb
	})
	for i := 0; sum < total; i = (i + 1) % len(fracs) {
		res[fracs[i]]++
		sum++
	}
	for i := len(fracs) - 1; sum > total; i-- {
		if res[fracs[i]] > 0 {
			res[fracs[i]]--
			sum--
		}
	}
	return res
}

func (p *problem) samplesOf(label int) []int {
	var res []int
	for i, l := range p.labels {
		if l == label {
			res = append(res, i)
		}
	}
	return res
}

func (p *problem) maxRemovals(label int) int {
	n := p.counts[label] - p.minPerClass
	if n < 0 {
		return 0
	}
	return n
}

func (p *problem) pruneByClass(joint [][]int) []bool {
	flags := make([]bool, len(p.labels))
	for label := 0; label < p.classes; label++ {
		num := p.counts[label] - joint[label][label]
		if limit := p.maxRemovals(label); num > limit {
			num = limit
		}
		if num <= 0 {
			continue
		}
		samples := p.samplesOf(label)
		sort.SliceStable(samples, func(a, b int) bool {
			return p.prob(samples[a], label) < p.prob(samples[b], label)
		})
		for _, i := range samples[:num] {
			flags[i] = true
		}
	}
	return flags
}

// pruneByNoiseRate ranks the samples of each label by
// margin once per other class and flags the union of the
// top entries of every ranking.
func (p *problem) pruneByNoiseRate(joint [][]int) []bool {
	flags := make([]bool, len(p.labels))
	for label := 0; label < p.classes; label++ {
		counts := p.noiseCounts(joint[label], label)
		samples := p.samplesOf(label)
		for other, num := range counts {
			if other == label || num <= 0 {
				continue
			}
			ranked := append([]int{}, samples...)
			sort.SliceStable(ranked, func(a, b int) bool {
				return p.margin(ranked[a], other, label) > p.margin(ranked[b], other, label)
			})
			if num > len(ranked) {
				num = len(ranked)
			}
			for _, i := range ranked[:num] {
				flags[i] = true
			}
		}
	}
	return flags
}

// noiseCounts raises the diagonal entry of a joint row to
// at least minPerClass, takes the same amount evenly from
// the nonzero off-diagonal entries, and rounds the result
// back to the row's total.
func (p *problem) noiseCounts(row []int, label int) []int {
	diag := float64(row[label])
	keep := math.Max(diag, float64(p.minPerClass))
	var nonzero int
	for other, x := range row {
		if other != label && x > 0 {
			nonzero++
		}
	}
	if nonzero == 0 {
		nonzero = 1
	}
	shift := (keep - diag) / float64(nonzero)
	values := make([]float64, len(row))
	var total float64
	for other, x := range row {
		if other == label {
			values[other] = keep
		} else {
			values[other] = math.Max(0, float64(x)-shift)
		}
		total += values[other]
	}
	return roundRow(values, int(math.Round(total)))
}

func (p *problem) margin(sample, other, label int) float64 {
	return p.prob(sample, other) - p.prob(sample, label)
}
