package shared

import "time"

// Clock abstracts the time source so period rollover and trial expiry
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns a Clock backed by the wall clock (UTC).
func SystemClock() Clock {
	return systemClock{}
}
