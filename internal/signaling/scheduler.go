package signaling

import "time"

// Scheduler runs f once after d. The host grace period is scheduled through it
// so tests can fire expiries on demand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// timerScheduler schedules with the runtime timer.
type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
