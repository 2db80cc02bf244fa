package anydata

import (
	"context"
	"errors"
	"math/rand"
	"sync"
)

const (
	defaultWorkers  = 4
	defaultPrefetch = 8
)

// ErrClosed is returned by Loader.Next after Close.
var ErrClosed = errors.New("loader closed")

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Workers is the number of fetching goroutines.
	// If it is 0, a default is used.
	Workers int

	// Prefetch is the number of batches that may wait in
	// the queue.
	// If it is 0, a default is used.
	Prefetch int

	// Seed seeds worker k with Seed+k.
	Seed int64

	// Transform is applied to every sample, or is nil.
	Transform Transform
}

type loaderResult struct {
	batch *Batch
	err   error
}

// A Loader fetches batches in the background, in the order
// the sampler produces them.
//
// Batch j is fetched by worker j%Workers, so a fixed seed
// gives the same batches on every run.
type Loader struct {
	sampler *TwoStreamSampler
	workers int

	results []chan loaderResult
	next    int

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewLoader starts the workers of a Loader.
// The sampler must not be used by anything else while the
// loader is open.
func NewLoader(d Dataset, s *TwoStreamSampler, opts LoaderOptions) *Loader {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	prefetch := opts.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	perWorker := (prefetch + workers - 1) / workers

	l := &Loader{
		sampler: s,
		workers: workers,
		results: make([]chan loaderResult, workers),
		done:    make(chan struct{}),
	}
	jobs := make([]chan []int, workers)
	for k := 0; k < workers; k++ {
		jobs[k] = make(chan []int)
		l.results[k] = make(chan loaderResult, perWorker)
		l.wg.Add(1)
		go l.work(d, opts.Transform, opts.Seed+int64(k), jobs[k], l.results[k])
	}
	l.wg.Add(1)
	go l.dispatch(jobs)
	return l
}

// EpochLen returns the sampler's epoch length.
func (l *Loader) EpochLen() int {
	return l.sampler.EpochLen()
}

// Next blocks until the next batch is ready.
func (l *Loader) Next(ctx context.Context) (*Batch, error) {
	select {
	case <-l.done:
		return nil, ErrClosed
	default:
	}
	select {
	case res := <-l.results[l.next%l.workers]:
		l.next++
		return res.batch, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrClosed
	}
}

// Close stops the workers and waits for them to exit.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
	return nil
}

func (l *Loader) dispatch(jobs []chan []int) {
	defer l.wg.Done()
	defer func() {
		for _, j := range jobs {
			close(j)
		}
	}()
	for j := 0; ; j++ {
		ids := l.sampler.Next()
		select {
		case jobs[j%l.workers] <- ids:
		case <-l.done:
			return
		}
	}
}

func (l *Loader) work(d Dataset, t Transform, seed int64, jobs <-chan []int,
	results chan<- loaderResult) {
	defer l.wg.Done()
	r := rand.New(rand.NewSource(seed))
	for ids := range jobs {
		batch, err := Fetch(d, ids, l.sampler.LabeledBS(), t, r)
		select {
		case results <- loaderResult{batch: batch, err: err}:
		case <-l.done:
			return
		}
	}
}
