package findup

import (
	"context"
	"sync"
)

// Pool runs hashing work on a fixed number of goroutines fed by a
// bounded queue. Submit blocks once the queue is full, so a producer
// walking a large tree cannot buffer work without limit.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPool starts workers goroutines consuming a queue of queueSize.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{tasks: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for fn := range p.tasks {
				fn()
			}
		}()
	}
	return p
}

// Submit enqueues fn, blocking while the queue is full. It returns
// ctx.Err() if the context is cancelled before the task is accepted.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait closes the queue and blocks until every accepted task has run.
// Safe to call more than once; the pool cannot be reused afterwards.
func (p *Pool) Wait() {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
