package watcher

import "time"

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

// Clock supplies time and timers so the retry and poll cadence can be
// driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
