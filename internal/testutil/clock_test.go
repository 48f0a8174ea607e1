package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC)

func TestFixedClock_DoesNotMoveOnItsOwn(t *testing.T) {
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestFixedClock_Advance(t *testing.T) {
	clock := NewFixedClock(start)

	clock.Advance(24 * time.Hour)
	assert.Equal(t, start.AddDate(0, 0, 1), clock.Now())
}

func TestFixedClock_Set(t *testing.T) {
	clock := NewFixedClock(start)

	earlier := start.AddDate(-1, 0, 0)
	clock.Set(earlier)
	assert.Equal(t, earlier, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(start)
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, start.Add(numGoroutines*time.Second), clock.Now())
}
