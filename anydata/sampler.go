package anydata

import "math/rand"

// A TwoStreamSampler produces batches of sample ids made
// of a labeled part followed by an unlabeled part.
//
// Each pool is drawn through random permutations of
// itself, and a new permutation starts once the current
// one can no longer fill its part of a batch.
// Thus no id repeats within a batch.
//
// A TwoStreamSampler is not safe for concurrent use.
type TwoStreamSampler struct {
	labeled     []int
	unlabeled   []int
	labeledBS   int
	unlabeledBS int
	rand        *rand.Rand

	labeledQueue   []int
	unlabeledQueue []int
}

// NewTwoStreamSampler creates a sampler for batches of
// batchSize ids, the last unlabeledBS of which come from
// the unlabeled pool.
//
// If r is nil, the global source is used.
func NewTwoStreamSampler(labeled, unlabeled []int, batchSize, unlabeledBS int,
	r *rand.Rand) (*TwoStreamSampler, error) {
	labeledBS := batchSize - unlabeledBS
	if unlabeledBS <= 0 {
		return nil, configErrorf("unlabeled batch size %d must be positive", unlabeledBS)
	}
	if labeledBS < 0 {
		return nil, configErrorf("unlabeled batch size %d exceeds batch size %d",
			unlabeledBS, batchSize)
	}
	if len(labeled) < labeledBS {
		return nil, configErrorf("%d labeled ids cannot fill %d per batch",
			len(labeled), labeledBS)
	}
	if len(unlabeled) < unlabeledBS {
		return nil, configErrorf("%d unlabeled ids cannot fill %d per batch",
			len(unlabeled), unlabeledBS)
	}
	seen := map[int]bool{}
	for _, pool := range [][]int{labeled, unlabeled} {
		for _, id := range pool {
			if id < 0 {
				return nil, configErrorf("negative id %d", id)
			}
			if seen[id] {
				return nil, configErrorf("id %d appears twice", id)
			}
			seen[id] = true
		}
	}
	return &TwoStreamSampler{
		labeled:     append([]int{}, labeled...),
		unlabeled:   append([]int{}, unlabeled...),
		labeledBS:   labeledBS,
		unlabeledBS: unlabeledBS,
		rand:        r,
	}, nil
}

// LabeledBS returns the number of labeled ids per batch.
func (t *TwoStreamSampler) LabeledBS() int {
	return t.labeledBS
}

// BatchSize returns the number of ids per batch.
func (t *TwoStreamSampler) BatchSize() int {
	return t.labeledBS + t.unlabeledBS
}

// EpochLen returns the number of batches in one pass over
// the pool that runs out first.
func (t *TwoStreamSampler) EpochLen() int {
	res := len(t.unlabeled) / t.unlabeledBS
	if t.labeledBS > 0 && len(t.labeled)/t.labeledBS < res {
		res = len(t.labeled) / t.labeledBS
	}
	return res
}

// Next returns the ids for the next batch.
func (t *TwoStreamSampler) Next() []int {
	res := make([]int, 0, t.BatchSize())
	var ids []int
	ids, t.labeledQueue = t.draw(t.labeled, t.labeledQueue, t.labeledBS)
	res = append(res, ids...)
	ids, t.unlabeledQueue = t.draw(t.unlabeled, t.unlabeledQueue, t.unlabeledBS)
	return append(res, ids...)
}

func (t *TwoStreamSampler) draw(pool, queue []int, n int) ([]int, []int) {
	if n == 0 {
		return nil, queue
	}
	if len(queue) < n {
		queue = t.permute(pool)
	}
	return queue[:n], queue[n:]
}

func (t *TwoStreamSampler) permute(pool []int) []int {
	var perm []int
	if t.rand != nil {
		perm = t.rand.Perm(len(pool))
	} else {
		perm = rand.Perm(len(pool))
	}
	res := make([]int, len(pool))
	for i, j := range perm {
		res[i] = pool[j]
	}
	return res
}

// Split returns the id pools [0, labeledNum) and
// [labeledNum, total).
func Split(labeledNum, total int) (labeled, unlabeled []int, err error) {
	if labeledNum < 0 || labeledNum > total {
		return nil, nil, configErrorf("labeled count %d not in [0, %d]", labeledNum, total)
	}
	for i := 0; i < total; i++ {
		if i < labeledNum {
			labeled = append(labeled, i)
		} else {
			unlabeled = append(unlabeled, i)
		}
	}
	return
}
