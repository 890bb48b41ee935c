package queue

import (
	"context"

	"github.com/unclebandit/wa-dispatch/internal/observability"
)

// DropOldestQueue never blocks producers: when full, the oldest buffered item
// is evicted to make room. Use it only for best-effort data.
type DropOldestQueue[T any] struct {
	name   string
	items  chan T
	onDrop func(T)
}

// NewDropOldestQueue creates the queue. onDrop, if set, sees every evicted
// item.
func NewDropOldestQueue[T any](name string, capacity int, onDrop func(T)) *DropOldestQueue[T] {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &DropOldestQueue[T]{
		name:   name,
		items:  make(chan T, capacity),
		onDrop: onDrop,
	}
}

// Push adds item, evicting the oldest entry if the queue is full. It reports
// whether something was evicted.
func (q *DropOldestQueue[T]) Push(item T) bool {
	dropped := false
	for {
		select {
		case q.items <- item:
			q.observe()
			return dropped
		default:
		}

		select {
		case old := <-q.items:
			dropped = true
			if q.onDrop != nil {
				q.onDrop(old)
			}
		default:
			// a consumer drained it meanwhile; retry the send
		}
	}
}

// Pop blocks until an item is available or ctx is done.
func (q *DropOldestQueue[T]) Pop(ctx context.Context) (T, error) {
	select {
	case item := <-q.items:
		q.observe()
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryPop returns an item only if one is buffered.
func (q *DropOldestQueue[T]) TryPop() (T, bool) {
	select {
	case item := <-q.items:
		q.observe()
		return item, true
	default:
		var zero T
		return zero, false
	}
}

func (q *DropOldestQueue[T]) Len() int { return len(q.items) }

func (q *DropOldestQueue[T]) observe() {
	observability.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.items)))
}
