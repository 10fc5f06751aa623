package trust

import (
	wbclock "github.com/WatchBeam/clock"
)

// Clock is the injected capability used to check metadata expiration on
// every top-level admission. It is github.com/WatchBeam/clock.Clock, so
// tests can substitute clock.NewMockClock and move time deliberately.
type Clock = wbclock.Clock

// systemClock is the default production Clock, backed by the real wall
// clock.
func systemClock() Clock {
	return wbclock.C
}
