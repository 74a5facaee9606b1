// Time source for the moderation engine.
//
// Everything that reads the current time or schedules a callback takes a Clock, so tests can swap in a Fake clock and step time deterministically.
package clock

import (
	"time"
)

type Clock interface {
	Now() time.Time
	// Calls f once after d has elapsed. The returned Timer can cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Returns true if the call prevented the callback from firing.
	Stop() bool
}

type realClock struct{}

// Clock backed by the standard library.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
