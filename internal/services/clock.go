package services

import "time"

// Clock is the single time source for expiration and bucketing decisions.
type Clock func() time.Time

// SystemClock returns UTC wall time at the precision Postgres stores.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FixedClock always returns t. Handy for tests and replays.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
