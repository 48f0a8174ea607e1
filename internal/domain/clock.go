package domain

import "time"

// Clock supplies wall-clock time. Entry-date defaults, audit timestamps and
// the archive target month are all derived from it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
