// Package celebrate plays a short confetti effect through an injected
// particle launcher, for example when a customer subscribes.
package celebrate

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Effect defaults.
const (
	DefaultDuration = 3500 * time.Millisecond
	DefaultInterval = 250 * time.Millisecond

	maxParticles = 60
)

// DefaultColors is the palette every burst uses.
var DefaultColors = []string{
	"#E7FF52",
	"#41FF54",
	"rgb(245 158 11)",
	"rgb(22 163 74)",
	"rgb(37 99 235)",
	"rgb(67 56 202)",
	"rgb(219 39 119)",
	"rgb(225 29 72)",
	"rgb(217 70 239)",
}

// Origin is a launch point in viewport fractions. Y may be negative so
// particles start above the top edge.
type Origin struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Burst is one call to the particle launcher.
type Burst struct {
	ParticleCount int      `json:"particleCount"`
	Origin        Origin   `json:"origin"`
	StartVelocity int      `json:"startVelocity"`
	Spread        int      `json:"spread"`
	Ticks         int      `json:"ticks"`
	ZIndex        int      `json:"zIndex"`
	Colors        []string `json:"colors"`
}

// LaunchFunc renders a burst.
type LaunchFunc func(Burst)

// Effect is a configured confetti effect. It may be started many times.
type Effect struct {
	launch   LaunchFunc
	clock    clock.Clock
	random   func() float64
	duration time.Duration
	interval time.Duration
}

// Option configures an Effect.
type Option func(*Effect)

// WithClock sets the clock driving the ticker.
func WithClock(c clock.Clock) Option {
	return func(e *Effect) { e.clock = c }
}

// WithRand sets the source of launch positions.
func WithRand(r *rand.Rand) Option {
	return func(e *Effect) { e.random = r.Float64 }
}

// WithDuration sets how long bursts keep coming. Non-positive values keep
// DefaultDuration.
func WithDuration(d time.Duration) Option {
	return func(e *Effect) {
		if d > 0 {
			e.duration = d
		}
	}
}

// WithInterval sets the time between two pairs of bursts. Non-positive values
// keep DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(e *Effect) {
		if d > 0 {
			e.interval = d
		}
	}
}

// New creates an effect. A nil launch makes every Start a no-op.
func New(launch LaunchFunc, opts ...Option) *Effect {
	e := &Effect{
		launch:   launch,
		clock:    clock.New(),
		random:   rand.Float64,
		duration: DefaultDuration,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle controls one running effect.
type Handle struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Stop cancels the effect. It is safe to call more than once.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed once the effect has stopped and its ticker is released.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Start plays the effect in the background until the duration elapses,
// Stop is called or ctx is cancelled.
func (e *Effect) Start(ctx context.Context) *Handle {
	h := &Handle{stop: make(chan struct{}), done: make(chan struct{})}
	if e.launch == nil {
		close(h.done)
		return h
	}

	end := e.clock.Now().Add(e.duration)
	ticker := e.clock.Ticker(e.interval)

	go func() {
		defer close(h.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stop:
				return
			case <-ticker.C:
				timeLeft := end.Sub(e.clock.Now())
				if timeLeft <= 0 {
					return
				}
				count := int(maxParticles * float64(timeLeft) / float64(e.duration))
				e.launch(e.burst(count, 0.1, 0.4))
				e.launch(e.burst(count, 0.6, 0.9))
			}
		}
	}()

	return h
}

// burst builds a burst launched from a random x in [minX, maxX). Particles
// fall, so y starts a little above a random height.
func (e *Effect) burst(count int, minX, maxX float64) Burst {
	return Burst{
		ParticleCount: count,
		Origin: Origin{
			X: e.random()*(maxX-minX) + minX,
			Y: e.random() - 0.2,
		},
		StartVelocity: 30,
		Spread:        360,
		Ticks:         60,
		ZIndex:        0,
		Colors:        DefaultColors,
	}
}
