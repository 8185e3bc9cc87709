package reminder

import "time"

// Clock abstracts time for deterministic tests of fire-time eligibility.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func SystemClock() Clock {
	return systemClock{}
}
