package tick

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsed(t *testing.T) {
	tests := []struct {
		since    Tick
		now      Tick
		interval time.Duration
		expected bool
	}{
		{0, 0, 100 * time.Millisecond, false},
		{0, 99, 100 * time.Millisecond, false},
		{0, 100, 100 * time.Millisecond, true},
		{1000, 1250, 100 * time.Millisecond, true},
		{math.MaxUint32 - 49, 50, 100 * time.Millisecond, true},
		{math.MaxUint32 - 10, 20, 100 * time.Millisecond, false},
		{500, 500, 0, true},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d-%d-%s", test.since, test.now, test.interval), func(t *testing.T) {
			assert.Equal(t, test.expected, Elapsed(test.since, test.now, test.interval))
		})
	}
}

func TestSince(t *testing.T) {
	assert.Equal(t, 150*time.Millisecond, Since(math.MaxUint32-49, 100))
	assert.Equal(t, time.Duration(0), Since(7, 7))
}

func TestManual(t *testing.T) {
	m := NewManual(math.MaxUint32 - 9)
	assert.Equal(t, Tick(math.MaxUint32-9), m.Now())
	assert.Equal(t, Tick(10), m.Advance(20*time.Millisecond))
	m.Set(42)
	assert.Equal(t, Tick(42), m.Now())
}

func TestSystem_Monotonic(t *testing.T) {
	src := System()
	first := src.Now()
	time.Sleep(5 * time.Millisecond)
	assert.True(t, Elapsed(first, src.Now(), 5*time.Millisecond))
}
