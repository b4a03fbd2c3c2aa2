// Package lifecycle holds the process lifecycle state shared across handlers.
package lifecycle

import "sync/atomic"

// Lifecycle tracks whether the server is draining. While draining, readiness
// reports unavailable and new interview connections are refused; established
// sessions keep running until the grace period ends.
type Lifecycle struct {
	draining atomic.Bool
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
