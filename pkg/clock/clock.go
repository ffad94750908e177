// Package clock abstracts wall-clock time so TTL expiry, undo windows and
// dedup aging are testable without sleeping.
package clock

import (
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// System returns the wall clock.
func System() Clock {
	return systemClock{}
}
