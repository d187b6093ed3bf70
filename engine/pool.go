package engine

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
)

// workerPool bounds concurrent file transfers at a capacity that the
// Performance Monitor can grow mid-flight (spec §4.12, REDESIGN FLAGS §9:
// "capacity can only grow safely mid-operation"). A hard ceiling of
// maxConcurrencyCap slots is reserved up front via golang.org/x/sync/semaphore
// (the same package kopia's upload pipeline uses for its parallel work
// queue); the soft, adjustable limit beneath that ceiling is a plain atomic
// counter workers additionally throttle against before starting real work.
type workerPool struct {
	sem     *semaphore.Weighted
	current atomic.Int64
	active  atomic.Int64
}

func newWorkerPool(initialCapacity int) *workerPool {
	p := &workerPool{sem: semaphore.NewWeighted(maxConcurrencyCap)}
	p.current.Store(int64(initialCapacity))

	return p
}

// grow raises the soft capacity, clamped to the hard ceiling. Shrinking is
// intentionally not exposed: the spec only allows capacity to increase
// mid-operation.
func (p *workerPool) grow(delta int) int {
	next := p.current.Add(int64(delta))
	if next > maxConcurrencyCap {
		next = maxConcurrencyCap
		p.current.Store(next)
	}

	return int(next)
}

func (p *workerPool) capacity() int { return int(p.current.Load()) }

// acquire reserves a hard slot then waits for the soft limit to allow this
// worker through. release must be called exactly once per successful acquire.
func (p *workerPool) acquire(ctx context.Context) (release func(), err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	const pollInterval = 10 * time.Millisecond

	for {
		if ctx.Err() != nil {
			p.sem.Release(1)
			return nil, ctx.Err()
		}

		if p.active.Load() < p.current.Load() {
			p.active.Add(1)
			break
		}

		if !clock.SleepInterruptibly(ctx, pollInterval) {
			p.sem.Release(1)
			return nil, ctx.Err()
		}
	}

	var released bool

	return func() {
		if released {
			return
		}

		released = true
		p.active.Add(-1)
		p.sem.Release(1)
	}, nil
}
