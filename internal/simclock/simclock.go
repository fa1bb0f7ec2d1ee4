// Package simclock runs a clock.Clock faster than wall time.
package simclock

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Scaled reports simulated time: every unit of elapsed base time counts as
// Factor units. Timers and tickers are shortened accordingly. Values sent on
// timer channels are base times; read Now for the simulated time.
type Scaled struct {
	clock.Clock
	factor float64
	start  time.Time
	epoch  time.Time
}

// New wraps base. A factor <= 1 returns base unchanged. A zero epoch starts
// the simulated time at the base time.
func New(base clock.Clock, factor float64, epoch time.Time) clock.Clock {
	if base == nil {
		base = clock.New()
	}
	if factor <= 1 && epoch.IsZero() {
		return base
	}
	if factor <= 0 {
		factor = 1
	}
	start := base.Now()
	if epoch.IsZero() {
		epoch = start
	}
	return &Scaled{Clock: base, factor: factor, start: start, epoch: epoch}
}

// Factor returns the time scale.
func (s *Scaled) Factor() float64 { return s.factor }

func (s *Scaled) real(d time.Duration) time.Duration {
	r := time.Duration(float64(d) / s.factor)
	if d > 0 && r <= 0 {
		r = 1
	}
	return r
}

func (s *Scaled) Now() time.Time {
	elapsed := s.Clock.Now().Sub(s.start)
	return s.epoch.Add(time.Duration(float64(elapsed) * s.factor))
}

func (s *Scaled) Since(t time.Time) time.Duration { return s.Now().Sub(t) }

func (s *Scaled) Until(t time.Time) time.Duration { return t.Sub(s.Now()) }

func (s *Scaled) After(d time.Duration) <-chan time.Time { return s.Clock.After(s.real(d)) }

func (s *Scaled) AfterFunc(d time.Duration, f func()) *clock.Timer {
	return s.Clock.AfterFunc(s.real(d), f)
}

func (s *Scaled) Sleep(d time.Duration) { s.Clock.Sleep(s.real(d)) }

func (s *Scaled) Tick(d time.Duration) <-chan time.Time { return s.Clock.Tick(s.real(d)) }

func (s *Scaled) Ticker(d time.Duration) *clock.Ticker { return s.Clock.Ticker(s.real(d)) }

func (s *Scaled) Timer(d time.Duration) *clock.Timer { return s.Clock.Timer(s.real(d)) }

func (s *Scaled) WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return s.Clock.WithTimeout(parent, s.real(d))
}

func (s *Scaled) WithDeadline(parent context.Context, t time.Time) (context.Context, context.CancelFunc) {
	return s.WithTimeout(parent, s.Until(t))
}
