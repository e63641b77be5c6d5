package prioqueue

import (
	"container/heap"
)

// LessFunc returns whether the first parameter is to be considered less than
// the second parameter.
type LessFunc[T any] func(T, T) bool

type heapAdapter[T any] struct {
	*PrioQueue[T]
}

var _ heap.Interface = (*heapAdapter[int])(nil)

func (s heapAdapter[T]) Len() int {
	return len(s.items)
}

func (s heapAdapter[T]) Less(i, j int) bool {
	return s.PrioQueue.Less(s.items[i], s.items[j])
}

func (s heapAdapter[T]) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
}

func (s heapAdapter[T]) Push(v any) {
	s.items = append(s.items, v.(T))
}

func (s heapAdapter[T]) Pop() any {
	var zero T

	n := len(s.items)
	item := s.items[n-1]

	// Avoid memory leak
	s.items[n-1] = zero

	s.items = s.items[0 : n-1]

	return item
}

// PrioQueue is a min-heap queue with items sorted using the Less function.
// The zero value with Less set is ready to use. Equal items are popped in
// unspecified order; callers needing a stable order include a sequence
// number in the comparison.
type PrioQueue[T any] struct {
	Less  LessFunc[T]
	items []T
}

// Len returns the number of items in the queue.
func (q *PrioQueue[T]) Len() int {
	return len(q.items)
}

// Push inserts a new value into the queue.
func (q *PrioQueue[T]) Push(value T) {
	heap.Push(heapAdapter[T]{q}, value)
}

// Pop removes and returns the minimum value from the queue. The second return
// value is false if the queue is empty.
func (q *PrioQueue[T]) Pop() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	return heap.Pop(heapAdapter[T]{q}).(T), true
}

// Peek returns the minimum value in the queue without removing it.
func (q *PrioQueue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	return q.items[0], true
}
