// Package clock abstracts the current time so "today" can be pinned in tests.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type realClock struct{}

// New returns a clock backed by time.Now
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}
