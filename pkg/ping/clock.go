package ping

import "time"

// Clock supplies monotonic timestamps for send/receive timing and
// deadline arithmetic. Injected so rounds can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
