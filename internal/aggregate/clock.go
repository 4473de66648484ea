package aggregate

import "time"

// Clock abstracts the time source GenerateIncompleteEvents uses to compute
// actual_runtime for tasks left dangling by an ungraceful run termination.
type Clock interface {
	NowSeconds() float64
}

// SystemClock is the default Clock, backed by the wall clock.
type SystemClock struct{}

// NowSeconds returns seconds since the Unix epoch, as a float.
func (SystemClock) NowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
