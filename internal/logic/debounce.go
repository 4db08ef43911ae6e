package logic

import "time"

// Debounce collapses repeated invocations within a minimum interval into one.
// Dropped invocations are lost, not deferred.
type Debounce struct {
	wait     time.Duration
	fn       func(now time.Time)
	last     time.Time
	accepted bool
}

// NewDebounce wraps fn so that it runs at most once per wait.
func NewDebounce(wait time.Duration, fn func(now time.Time)) *Debounce {
	return &Debounce{wait: wait, fn: fn}
}

// Invoke calls the wrapped function if at least wait has passed since the
// last accepted invocation. It reports whether the call was accepted.
func (d *Debounce) Invoke(now time.Time) bool {
	if d.accepted && now.Sub(d.last) < d.wait {
		return false
	}
	d.last = now
	d.accepted = true
	d.fn(now)
	return true
}

// Wait returns the configured minimum interval.
func (d *Debounce) Wait() time.Duration {
	return d.wait
}
