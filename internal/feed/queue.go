// Package feed hands watch session messages from the worker to the consumer's
// own goroutine. The worker never blocks on delivery; the consumer applies
// messages one at a time, in delivery order.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/listenupapp/dirwatch/internal/watcher"
)

// ApplyFunc applies one message on the consumer goroutine.
type ApplyFunc func(msg watcher.Message)

// item is either a message or a barrier closed once everything queued before it was applied.
type item struct {
	msg     watcher.Message
	barrier chan struct{}
}

// Queue is an unbounded FIFO implementing watcher.Sink.
type Queue struct {
	logger *slog.Logger
	signal chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	items   []item
	closed  bool
	running bool
}

// NewQueue creates an empty queue.
func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{
		logger: logger.With("component", "feed"),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Deliver appends msg. It never blocks. Messages delivered after Close are dropped.
func (q *Queue) Deliver(msg watcher.Message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("dropped message after close", "type", typeName(msg))
		return
	}
	q.items = append(q.items, item{msg: msg})
	q.mu.Unlock()

	q.notify()
}

// Len returns the number of messages waiting to be applied.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, it := range q.items {
		if it.msg != nil {
			n++
		}
	}
	return n
}

// Sync waits until every message delivered before the call has been applied.
func (q *Queue) Sync(ctx context.Context) error {
	barrier := make(chan struct{})

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		select {
		case <-q.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.items = append(q.items, item{barrier: barrier})
	q.mu.Unlock()

	q.notify()

	select {
	case <-barrier:
		return nil
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies messages until ctx is canceled or the queue is closed and drained.
// Only one Run may be active.
func (q *Queue) Run(ctx context.Context, apply ApplyFunc) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		q.logger.Error("feed consumer already running")
		return
	}
	q.running = true
	q.mu.Unlock()

	defer close(q.done)

	for {
		batch, closed := q.take()
		for _, it := range batch {
			if it.barrier != nil {
				close(it.barrier)
				continue
			}
			apply(it.msg)
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-q.signal:
		case <-ctx.Done():
			if n := q.Len(); n > 0 {
				q.logger.Warn("feed consumer stopped with pending messages", "pending", n)
			}
			return
		}
	}
}

// Close stops accepting messages. A running consumer drains what is queued and returns.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.notify()
}

// Shutdown closes the queue and waits for the consumer to drain it.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.Close()

	q.mu.Lock()
	running := q.running
	q.mu.Unlock()
	if !running {
		return nil
	}

	select {
	case <-q.done:
		q.logger.Info("feed drained")
		return nil
	case <-ctx.Done():
		q.logger.Warn("feed drain timeout, some messages may be lost")
		return ctx.Err()
	}
}

func (q *Queue) take() ([]item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.items
	q.items = nil
	return batch, q.closed
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func typeName(msg watcher.Message) string {
	switch msg.(type) {
	case watcher.Batch:
		return "batch"
	case watcher.EnteredWatching:
		return "entered_watching"
	case watcher.LeftWatching:
		return "left_watching"
	case watcher.FatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}
