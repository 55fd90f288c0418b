package core

import "time"

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func NewRealClock() Clock { return RealClock{} }

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Sleep(d time.Duration)                  { time.Sleep(d) }

// FixedClock always reports the same instant. Handy for cutoff queries and
// deterministic tests.
type FixedClock struct {
	FixedTime time.Time
}

func (c FixedClock) Now() time.Time                         { return c.FixedTime }
func (c FixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (c FixedClock) Sleep(d time.Duration)                  {}
