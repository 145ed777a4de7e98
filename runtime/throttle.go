package runtime

import "time"

// DefaultDuplicateInterval is the minimum gap between two accepted messages of one session.
const DefaultDuplicateInterval = time.Second

// Throttle drops messages arriving too soon after the last accepted one.
// It is session-private and not safe for concurrent use.
type Throttle struct {
	interval     time.Duration
	lastAccepted time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// ShouldSuppress reports whether a message received at now must be dropped.
// Suppressed messages leave the last accepted timestamp untouched.
func (t *Throttle) ShouldSuppress(now time.Time) bool {
	if !t.lastAccepted.IsZero() && now.Sub(t.lastAccepted) < t.interval {
		return true
	}
	t.lastAccepted = now
	return false
}
