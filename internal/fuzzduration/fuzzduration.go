// Package fuzzduration applies random jitter to intervals, be it wall time
// or timer ticks.
package fuzzduration

import (
	"math"
	"math/rand"
	"time"
)

func fuzz(r float32, factor float32) float32 {
	return -(factor / 2) + (factor * r)
}

// Random returns the duration modified by a random amount in the range
// ±factor/2.
func Random(d time.Duration, factor float32) time.Duration {
	return d + time.Duration(fuzz(rand.Float32(), factor)*float32(d))
}

func ticks(r float32, n uint64, factor float32) uint64 {
	delta := fuzz(r, factor) * float32(n)

	if delta < 0 {
		d := -delta

		if d >= float32(n) || uint64(d) >= n {
			return 1
		}

		return n - uint64(d)
	}

	if delta >= math.MaxUint64 {
		return math.MaxUint64
	}

	if d := uint64(delta); d <= math.MaxUint64-n {
		return max(1, n+d)
	}

	return math.MaxUint64
}

// Ticks returns the tick count modified by a random amount in the range
// ±factor/2. The result is never less than one tick.
func Ticks(n uint64, factor float32) uint64 {
	return ticks(rand.Float32(), n, factor)
}

// Source is a reproducible sequence of jitter values. Not safe for
// concurrent use.
type Source struct {
	rng *rand.Rand
}

func NewSource(seed int64) *Source {
	return &Source{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Ticks behaves like the package-level function of the same name.
func (s *Source) Ticks(n uint64, factor float32) uint64 {
	return ticks(s.rng.Float32(), n, factor)
}
