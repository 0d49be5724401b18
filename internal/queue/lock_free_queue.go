package queue

import "sync/atomic"

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// lockFreeQueue is a Michael-Scott queue. Any number of goroutines may
// enqueue and dequeue concurrently.
type lockFreeQueue[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	length atomic.Int32
}

var _ Queue[int] = (*lockFreeQueue[int])(nil)

// NewLockFreeQueue creates a concurrent queue.
func NewLockFreeQueue[T any]() Queue[T] {
	q := &lockFreeQueue[T]{}
	q.Reset()
	return q
}

// Reset empties the queue. It must not race with other operations.
func (q *lockFreeQueue[T]) Reset() {
	n := &node[T]{}
	q.head.Store(n)
	q.tail.Store(n)
	q.length.Store(0)
}

func (q *lockFreeQueue[T]) Enqueue(item T) {
	n := &node[T]{value: item}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// tail is lagging, help it along
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.length.Add(1)
			return
		}
	}
}

func (q *lockFreeQueue[T]) Dequeue() (T, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nil {
				var zero T
				return zero, false
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		// read before CAS, another dequeue may advance past next
		value := next.value
		if q.head.CompareAndSwap(head, next) {
			q.length.Add(-1)
			return value, true
		}
	}
}

func (q *lockFreeQueue[T]) Peek() (T, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if head != tail {
			return next.value, true
		}
		if next == nil {
			var zero T
			return zero, false
		}
		q.tail.CompareAndSwap(tail, next)
	}
}

func (q *lockFreeQueue[T]) IsEmpty() bool {
	return q.length.Load() == 0
}

func (q *lockFreeQueue[T]) Length() int {
	return int(q.length.Load())
}
