package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one unit of work taken from a queue.
type Handler[T any] func(ctx context.Context, v T)

// Pool runs a fixed number of workers draining one queue. Workers exit
// when the queue is closed and empty, or when the context is cancelled.
type Pool[T any] struct {
	name    string
	size    int
	queue   *Queue[T]
	handler Handler[T]
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewPool creates a pool of size workers over q.
func NewPool[T any](name string, size int, q *Queue[T], handler Handler[T], logger *slog.Logger) *Pool[T] {
	if size < 1 {
		size = 1
	}
	return &Pool[T]{
		name:    name,
		size:    size,
		queue:   q,
		handler: handler,
		logger:  logger.With("pool", name),
	}
}

// Start launches the workers. It returns immediately.
func (p *Pool[T]) Start(ctx context.Context) {
	p.logger.Info("worker pool started", "workers", p.size)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool[T]) run(ctx context.Context, worker int) {
	defer p.wg.Done()
	logger := p.logger.With("worker", worker)
	for {
		v, ok := p.queue.Take(ctx)
		if !ok {
			logger.Debug("worker exiting")
			return
		}
		p.handler(ctx, v)
	}
}

// Drain waits for all workers to finish, up to timeout. It returns false
// if workers were still busy when the timeout expired; the caller then
// cancels their context to force the exit.
func (p *Pool[T]) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained")
		return true
	case <-time.After(timeout):
		p.logger.Warn("worker pool drain timed out", "timeout", timeout)
		return false
	}
}
