// Package clock supplies the time and randomness capabilities injected into the
// lifecycle services, so tests can pin the current time, skip settlement delays and
// force outcome draws.
package clock

import (
	"math/rand"
	"sync"
	"time"
)

// Clock reports the current time and produces timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Random draws pseudo-random values.
type Random interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

type systemClock struct{}

// System returns the wall clock.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRandom returns a goroutine-safe Random. A zero seed seeds from the current time.
func NewRandom(seed int64) Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *lockedRand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

// UniformDuration draws a duration uniformly from [min, max].
func UniformDuration(r Random, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(r.Float64()*float64(span+1))
}
