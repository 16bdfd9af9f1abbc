// Package tick provides the monotonic millisecond counter used to gate
// polling and retry timing of cooperative drivers.
package tick

import (
	"sync"
	"time"
)

// Tick is a wrapping millisecond counter.
type Tick uint32

// Source returns the current tick.
type Source interface {
	Now() Tick
}

// Elapsed reports whether at least interval has passed between since and now.
// Unsigned subtraction keeps the comparison valid across counter wraparound
// as long as the real gap is shorter than the counter period (~49 days).
func Elapsed(since, now Tick, interval time.Duration) bool {
	return uint32(now-since) >= uint32(interval.Milliseconds())
}

// Since returns the time that has passed between since and now.
func Since(since, now Tick) time.Duration {
	return time.Duration(uint32(now-since)) * time.Millisecond
}

type monotonic struct {
	start time.Time
}

var system = &monotonic{start: time.Now()}

// System returns the process wide tick source, counting from process start.
func System() Source {
	return system
}

func (m *monotonic) Now() Tick {
	return Tick(uint32(time.Since(m.start).Milliseconds()))
}

// Manual is a Source advanced explicitly. Useful in tests and simulations.
type Manual struct {
	mx  sync.Mutex
	now Tick
}

func NewManual(start Tick) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() Tick {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.now
}

// Advance moves the counter forward by d, wrapping on overflow.
func (m *Manual) Advance(d time.Duration) Tick {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.now += Tick(uint32(d.Milliseconds()))
	return m.now
}

func (m *Manual) Set(t Tick) {
	m.mx.Lock()
	m.now = t
	m.mx.Unlock()
}
