// Package queue provides the small FIFO containers used by the wire lexer and
// the asynchronous packet trace writer.
package queue

// Queue is a FIFO container of T.
type Queue[T any] interface {
	// Enqueue appends item to the tail.
	Enqueue(item T)
	// Dequeue removes the head item. ok is false when the queue is empty.
	Dequeue() (item T, ok bool)
	// Peek returns the head item without removing it.
	Peek() (item T, ok bool)
	// Reset empties the queue.
	Reset()
	IsEmpty() bool
	Length() int
}
