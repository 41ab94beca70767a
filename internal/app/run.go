package service

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultTickInterval is the host sampling cadence.
const DefaultTickInterval = 250 * time.Millisecond

// Sampler reports the host's in-combat flag.
type Sampler interface {
	InCombat() bool
}

// Signal is a Sampler set from outside, e.g. by the HTTP API or a key press.
type Signal struct {
	v atomic.Bool
}

// Set stores the in-combat flag.
func (s *Signal) Set(inCombat bool) { s.v.Store(inCombat) }

// Toggle flips the flag and returns the new value.
func (s *Signal) Toggle() bool {
	for {
		old := s.v.Load()
		if s.v.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// InCombat returns the stored flag.
func (s *Signal) InCombat() bool { return s.v.Load() }

// Run ticks every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration, sampler Sampler) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.RunLoop(ctx, ticker.C, sampler)
}

// RunLoop calls Tick with a fresh sample on every value from tick.
func (s *Service) RunLoop(ctx context.Context, tick <-chan time.Time, sampler Sampler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.Tick(ctx, sampler.InCombat())
		}
	}
}
