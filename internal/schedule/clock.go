package schedule

import "time"

// Clock supplies the anchor instant for schedule computation. It is
// injected rather than read ambiently so a preview and the commit that
// follows it can be computed from the exact same now.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by the wall clock in UTC.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}
