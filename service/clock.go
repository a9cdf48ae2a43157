package service

import "sync/atomic"

// Clock supplies the logical height of each mutating call.
type Clock interface {
	// Now returns the height for the call about to run. Implementations may
	// advance on every call.
	Now() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// StepClock advances by one on every call.
type StepClock struct {
	last atomic.Uint64
}

// NewStepClock returns a clock whose first height is after+1.
func NewStepClock(after uint64) *StepClock {
	c := &StepClock{}
	c.last.Store(after)
	return c
}

func (c *StepClock) Now() uint64 { return c.last.Add(1) }
