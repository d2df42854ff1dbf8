package shared

import "time"

// Clock abstracts time for components with time-dependent behavior
// (lock expiry, proposal TTL sweeps) so tests can inject a fake.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}
