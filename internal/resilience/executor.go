// Package resilience runs course API calls with bounded retries and a
// circuit breaker per operation.
package resilience

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Verdict is what a failed attempt means for the call and for its breaker.
type Verdict int

const (
	// Permanent failures end the call and count against the breaker.
	Permanent Verdict = iota
	// Transient failures are retried and count against the breaker.
	Transient
	// ClientFault ends the call without blaming the API: rejected requests
	// and cancellations.
	ClientFault
)

func (v Verdict) String() string {
	switch v {
	case Transient:
		return "transient"
	case ClientFault:
		return "client fault"
	default:
		return "permanent"
	}
}

// Classifier maps a failed attempt to a Verdict.
type Classifier func(error) Verdict

// BreakerState is a snapshot of one operation's breaker.
type BreakerState struct {
	Operation string
	State     string
	Requests  uint32
	Failures  uint32
}

// Executor is safe for concurrent use. Breakers are created on first use
// of an operation name and live as long as the executor.
type Executor struct {
	cfg    Config
	logger zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger zerolog.Logger) *Executor {
	return &Executor{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do calls fn until it succeeds, classify rules the failure out of retry,
// or the attempts run out. A nil classify treats every failure as
// Permanent. With the operation's breaker open, fn is not called and the
// breaker error is returned.
func (e *Executor) Do(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("resilience: nil call")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = func(error) Verdict { return Permanent }
	}

	if e.cfg.Breaker.Disabled {
		return e.attempt(ctx, op, classify, fn)
	}
	_, err := e.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.attempt(ctx, op, classify, fn)
	})
	return err
}

func (e *Executor) attempt(ctx context.Context, op string, classify Classifier, fn func(context.Context) error) error {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if n >= e.cfg.Attempts || classify(err) != Transient {
			return err
		}

		delay := e.cfg.Backoff.Delay(n)
		e.logger.Warn().Err(err).
			Str("operation", op).
			Int("attempt", n).
			Int("attempts", e.cfg.Attempts).
			Dur("delay", delay).
			Msg("retrying course api call")
		if !sleep(ctx, delay) {
			return err
		}
	}
}

func (e *Executor) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[op]; ok {
		return cb
	}

	cfg := e.cfg.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: cfg.HalfOpenCalls,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinRequests &&
				float64(c.TotalFailures) >= cfg.FailureRatio*float64(c.Requests)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || classify(err) == ClientFault
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn().Str("operation", name).Stringer("from", from).Stringer("to", to).Msg("course api breaker changed state")
		},
	})
	e.breakers[op] = cb
	return cb
}

// States lists the breakers created so far, by operation name.
func (e *Executor) States() []BreakerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]BreakerState, 0, len(e.breakers))
	for op, cb := range e.breakers {
		counts := cb.Counts()
		out = append(out, BreakerState{
			Operation: op,
			State:     cb.State().String(),
			Requests:  counts.Requests,
			Failures:  counts.TotalFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// BreakerOpen reports whether err means the call was refused by a breaker.
func BreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
