package resilience

import (
	"context"
	"math"
	"time"
)

// Config decides how often a course API call is tried and when an
// operation is shut off.
type Config struct {
	// Attempts counts every try of a call, the first one included.
	Attempts int
	Backoff  Backoff
	Breaker  BreakerConfig
}

// Backoff is the pause before each retry: Initial, then growing by Factor
// up to Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// BreakerConfig tunes the breaker kept for each API operation. An
// operation trips once it has seen MinRequests calls and at least
// FailureRatio of them failed. After Cooldown, HalfOpenCalls trial calls
// decide whether it closes again.
type BreakerConfig struct {
	Disabled      bool
	MinRequests   uint32
	FailureRatio  float64
	Cooldown      time.Duration
	HalfOpenCalls uint32
}

// Once runs every call a single time with no breaker.
var Once = Config{Attempts: 1, Breaker: BreakerConfig{Disabled: true}}

func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Backoff: Backoff{
			Initial: 200 * time.Millisecond,
			Max:     2 * time.Second,
			Factor:  2,
		},
		Breaker: BreakerConfig{
			MinRequests:   5,
			FailureRatio:  0.6,
			Cooldown:      20 * time.Second,
			HalfOpenCalls: 1,
		},
	}
}

// withDefaults fills unset or out of range fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Attempts <= 0 {
		c.Attempts = def.Attempts
	}

	b := &c.Backoff
	if b.Initial <= 0 {
		b.Initial = def.Backoff.Initial
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Factor < 1 || math.IsNaN(b.Factor) {
		b.Factor = def.Backoff.Factor
	}

	br := &c.Breaker
	if br.MinRequests == 0 {
		br.MinRequests = def.Breaker.MinRequests
	}
	if !(br.FailureRatio > 0 && br.FailureRatio <= 1) {
		br.FailureRatio = def.Breaker.FailureRatio
	}
	if br.Cooldown <= 0 {
		br.Cooldown = def.Breaker.Cooldown
	}
	if br.HalfOpenCalls == 0 {
		br.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	return c
}

// Delay returns the pause before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(b.Initial) * math.Pow(b.Factor, float64(n-1))
	if d >= float64(b.Max) || math.IsInf(d, 0) {
		return b.Max
	}
	return time.Duration(d)
}

// sleep pauses for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
