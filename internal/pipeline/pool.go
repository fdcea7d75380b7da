package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Worker bounds
const (
	MinWorkers = 1
	MaxWorkers = 10
)

// Pool runs blocking operations on a bounded number of workers
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool creates a pool of workers goroutines, clamped to MinWorkers..MaxWorkers
func NewPool(workers int) *Pool {
	workers = min(max(workers, MinWorkers), MaxWorkers)
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Wait blocks until every submitted operation returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Future is the pending result of a submitted operation
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Wait blocks until the operation finished and returns its result
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Submit runs fn on a free worker without blocking the caller. If ctx ends
// before a worker frees up, fn is not run and the future holds ctx's error.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer close(f.done)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer p.sem.Release(1)

		f.val, f.err = fn(ctx)
	}()

	return f
}

// Run submits fn and waits for it
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	return Submit(ctx, p, fn).Wait()
}
