package ksync

import (
	"github.com/hansmi/kcoop/internal/kernel"
)

// waitQueue holds blocked threads in arrival order.
type waitQueue struct {
	threads []*kernel.Thread
}

func (q *waitQueue) len() int {
	return len(q.threads)
}

func (q *waitQueue) push(t *kernel.Thread) {
	q.threads = append(q.threads, t)
}

// pop removes and returns the longest-waiting thread or nil if the queue is
// empty.
func (q *waitQueue) pop() *kernel.Thread {
	if len(q.threads) == 0 {
		return nil
	}

	t := q.threads[0]
	q.threads[0] = nil
	q.threads = q.threads[1:]

	return t
}
