package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common queue errors.
var (
	ErrClosed      = errors.New("queue: closed")
	ErrTimeout     = errors.New("queue: get timed out")
	ErrTooManyDone = errors.New("queue: TaskDone called more times than values were put")
)

// Queue is a bounded FIFO with blocking Put/Get and join accounting.
// It is safe for concurrent use by any number of producers and consumers.
type Queue[T any] struct {
	items     chan T
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	unfinished int
	idle       chan struct{} // closed while unfinished == 0
}

// New creates a queue holding at most capacity values. Capacities below one
// are raised to one.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue[T]{
		items:  make(chan T, capacity),
		closed: make(chan struct{}),
		idle:   idle,
	}
}

// Put enqueues v, blocking while the queue is full.
// The value counts as unfinished until a matching TaskDone.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	if q.Closed() {
		return ErrClosed
	}
	q.acquire()
	select {
	case q.items <- v:
		return nil
	case <-q.closed:
		q.release()
		return ErrClosed
	case <-ctx.Done():
		q.release()
		return ctx.Err()
	}
}

// Get dequeues the oldest value, blocking while the queue is empty.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	select {
	case v := <-q.items:
		return v, nil
	case <-q.closed:
		var zero T
		return zero, ErrClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet dequeues the oldest value if one is available without blocking.
func (q *Queue[T]) TryGet() (T, bool) {
	select {
	case v := <-q.items:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// GetTimeout is Get bounded by d. It returns ErrTimeout when d elapses first.
// A non-positive d waits without a deadline.
func (q *Queue[T]) GetTimeout(ctx context.Context, d time.Duration) (T, error) {
	if d <= 0 {
		return q.Get(ctx)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case v := <-q.items:
		return v, nil
	case <-q.closed:
		var zero T
		return zero, ErrClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// Recv exposes the receive side for use in select statements.
// A value received here is equivalent to a Get.
func (q *Queue[T]) Recv() <-chan T {
	return q.items
}

// TaskDone marks one previously dequeued value as processed.
func (q *Queue[T]) TaskDone() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		return ErrTooManyDone
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.idle)
	}
	return nil
}

// Join blocks until every value put into the queue has been marked done.
func (q *Queue[T]) Join(ctx context.Context) error {
	select {
	case <-q.Idle():
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Idle returns a channel that is closed once no values are unfinished.
// The channel reflects the state at call time; call Idle again after new puts.
func (q *Queue[T]) Idle() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// Close releases all blocked and future callers with ErrClosed.
// Values still buffered are dropped. Close is idempotent.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered values.
func (q *Queue[T]) Len() int { return len(q.items) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.items) }

// Unfinished returns the number of values put but not yet marked done.
func (q *Queue[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

func (q *Queue[T]) acquire() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished == 0 {
		q.idle = make(chan struct{})
	}
	q.unfinished++
}

// release undoes an acquire whose value never entered the queue.
func (q *Queue[T]) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unfinished--
	if q.unfinished == 0 {
		close(q.idle)
	}
}

// PutOrGet blocks until v is enqueued on dst or a value can be taken from src,
// whichever happens first. When a value is taken from src it is returned with
// true and v was not enqueued; the caller is expected to retry the put.
func PutOrGet[T, U any](ctx context.Context, dst *Queue[T], v T, src *Queue[U]) (U, bool, error) {
	var zero U
	if dst.Closed() || src.Closed() {
		return zero, false, ErrClosed
	}
	dst.acquire()
	select {
	case dst.items <- v:
		return zero, false, nil
	case u := <-src.items:
		dst.release()
		return u, true, nil
	case <-dst.closed:
		dst.release()
		return zero, false, ErrClosed
	case <-src.closed:
		dst.release()
		return zero, false, ErrClosed
	case <-ctx.Done():
		dst.release()
		return zero, false, ctx.Err()
	}
}
