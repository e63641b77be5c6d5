package prioqueue

import "testing"

type sleeper struct {
	wakeTick uint64
	seq      int
}

func newSleeperQueue() *PrioQueue[*sleeper] {
	return &PrioQueue[*sleeper]{
		Less: func(a, b *sleeper) bool {
			if a.wakeTick != b.wakeTick {
				return a.wakeTick < b.wakeTick
			}

			return a.seq < b.seq
		},
	}
}

func TestEmpty(t *testing.T) {
	q := newSleeperQueue()

	if got := q.Len(); got != 0 {
		t.Errorf("Len() returned %d, want 0", got)
	}

	if got, ok := q.Pop(); ok || got != nil {
		t.Errorf("Pop() returned (%v, %t), want (nil, false)", got, ok)
	}

	if got, ok := q.Peek(); ok || got != nil {
		t.Errorf("Peek() returned (%v, %t), want (nil, false)", got, ok)
	}
}

func TestPushPop(t *testing.T) {
	q := newSleeperQueue()

	q.Push(&sleeper{wakeTick: 102})
	q.Push(&sleeper{wakeTick: 100})
	q.Push(&sleeper{wakeTick: 99})
	q.Push(&sleeper{wakeTick: 101})

	if got, want := q.Len(), 4; got != want {
		t.Errorf("Len() returned %v, want %d", got, want)
	}

	if got, ok := q.Peek(); !ok || got.wakeTick != 99 {
		t.Errorf("Peek() returned (%v, %t), want tick 99", got, ok)
	}

	for _, want := range []uint64{99, 100, 101, 102} {
		if got, _ := q.Pop(); got.wakeTick != want {
			t.Errorf("Pop() returned tick %d, want %d", got.wakeTick, want)
		}
	}

	if got := q.Len(); got != 0 {
		t.Errorf("Len() returned %d, want 0", got)
	}
}

func TestStableWithSequence(t *testing.T) {
	q := newSleeperQueue()

	for seq := 0; seq < 20; seq++ {
		q.Push(&sleeper{wakeTick: uint64(10 + seq%2), seq: seq})
	}

	var prev *sleeper

	for q.Len() > 0 {
		got, _ := q.Pop()

		if prev != nil && prev.wakeTick == got.wakeTick && prev.seq > got.seq {
			t.Errorf("Pop() returned seq %d after %d for tick %d", got.seq, prev.seq, got.wakeTick)
		}

		prev = got
	}
}

func TestPopReleasesValue(t *testing.T) {
	q := newSleeperQueue()

	q.Push(&sleeper{wakeTick: 1})
	q.Push(&sleeper{wakeTick: 2})

	q.Pop()

	if got := q.items[:cap(q.items)][1]; got != nil {
		t.Errorf("Pop() kept reference to %v", got)
	}
}
