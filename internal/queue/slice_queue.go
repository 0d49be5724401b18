package queue

// sliceQueue is a single-goroutine Queue backed by a slice.
type sliceQueue[T any] struct {
	items []T
	head  int
}

var _ Queue[int] = (*sliceQueue[int])(nil)

// NewSliceQueue creates a non-concurrent queue with room for prealloc items.
func NewSliceQueue[T any](prealloc int) Queue[T] {
	return &sliceQueue[T]{items: make([]T, 0, prealloc)}
}

func (q *sliceQueue[T]) Enqueue(item T) {
	// reclaim the consumed prefix before growing
	if q.head > 0 && len(q.items) == cap(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.items = append(q.items, item)
}

func (q *sliceQueue[T]) Dequeue() (T, bool) {
	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item, true
}

func (q *sliceQueue[T]) Peek() (T, bool) {
	if q.head >= len(q.items) {
		var zero T
		return zero, false
	}
	return q.items[q.head], true
}

func (q *sliceQueue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}

func (q *sliceQueue[T]) IsEmpty() bool {
	return q.head >= len(q.items)
}

func (q *sliceQueue[T]) Length() int {
	return len(q.items) - q.head
}
