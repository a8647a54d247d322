package clock

import (
	"sync"
	"time"
)

// Manual is a Clock whose time only moves when told to. Its timers fire immediately,
// which turns every settlement delay into a no-op wait.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- m.Now()
	return ch
}

// Sequence replays fixed draws in order, wrapping around when exhausted.
type Sequence struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
	fi, ii int
}

func NewSequence(floats []float64, ints []int) *Sequence {
	return &Sequence{floats: floats, ints: ints}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[s.fi%len(s.floats)]
	s.fi++
	return v
}

func (s *Sequence) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 || n <= 0 {
		return 0
	}
	v := s.ints[s.ii%len(s.ints)] % n
	s.ii++
	return v
}
