package queue

import (
	"context"
	"sync"
	"time"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

const (
	DefaultOutboundCapacity = 10000
	DefaultLogCapacity      = 20000

	NameOutbound = "outbound"
	NameLog      = "send_log"
	NameWebhook  = "webhook"
)

// BoundedQueue is a FIFO channel with a fixed capacity that is safe for many
// producers and consumers. Enqueue blocks while the queue is full.
type BoundedQueue[T any] struct {
	name  string
	items chan T

	closeOnce sync.Once
	done      chan struct{}
}

// NewBoundedQueue creates a queue; name labels the depth gauge.
func NewBoundedQueue[T any](name string, capacity int) *BoundedQueue[T] {
	if capacity <= 0 {
		capacity = DefaultOutboundCapacity
	}
	return &BoundedQueue[T]{
		name:  name,
		items: make(chan T, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue waits for space. It fails only when ctx ends or the queue closes.
func (q *BoundedQueue[T]) Enqueue(ctx context.Context, item T) error {
	select {
	case <-q.done:
		return appErrors.ErrQueueClosed
	default:
	}

	select {
	case q.items <- item:
		q.observe()
		return nil
	case <-q.done:
		return appErrors.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueTimeout waits at most timeout for space, then gives up with
// ErrQueueFull.
func (q *BoundedQueue[T]) EnqueueTimeout(ctx context.Context, item T, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := q.Enqueue(tctx, item)
	if err == context.DeadlineExceeded && ctx.Err() == nil {
		return appErrors.ErrQueueFull
	}
	return err
}

// Dequeue blocks until an item is available. After Close it returns
// ErrQueueClosed; items still buffered at that point are left for Drain.
func (q *BoundedQueue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T

	select {
	case <-q.done:
		return zero, appErrors.ErrQueueClosed
	default:
	}

	select {
	case item := <-q.items:
		q.observe()
		return item, nil
	case <-q.done:
		return zero, appErrors.ErrQueueClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Drain removes and returns everything still buffered without blocking. It
// works after Close, so shutdown can account for abandoned items.
func (q *BoundedQueue[T]) Drain() []T {
	var out []T
	for {
		select {
		case item := <-q.items:
			out = append(out, item)
		default:
			q.observe()
			return out
		}
	}
}

// Close stops the queue. It is safe to call more than once.
func (q *BoundedQueue[T]) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func (q *BoundedQueue[T]) Len() int { return len(q.items) }

func (q *BoundedQueue[T]) Cap() int { return cap(q.items) }

func (q *BoundedQueue[T]) observe() {
	observability.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.items)))
}
