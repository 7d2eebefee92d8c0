package application

import "time"

// Clock supaya timestamp scan deterministik waktu test
type Clock interface {
	Now() time.Time
}

// SystemClock returns wall time in UTC; every stored timestamp is UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
