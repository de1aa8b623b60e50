// Package retry reissues transient analysis and API calls with backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rediverio/reviewd/pkg/errors"
)

// Strategy defines how the wait grows between attempts.
type Strategy int

const (
	// StrategyExponential waits base * 2^attempt.
	StrategyExponential Strategy = iota

	// StrategyLinear waits base * attempt.
	StrategyLinear

	// StrategyConstant always waits base.
	StrategyConstant
)

// Config configures the retry behavior.
type Config struct {
	// MaxAttempts counts the first call too. Default is 3.
	MaxAttempts int

	// Strategy selects the backoff curve. Default is StrategyExponential.
	Strategy Strategy

	// BaseInterval is the first wait. Default is 1 second.
	BaseInterval time.Duration

	// MaxInterval caps the wait between attempts. Default is 30 seconds.
	MaxInterval time.Duration

	// Jitter adds randomness to prevent thundering herd.
	// Value between 0.0 (no jitter) and 1.0 (full jitter). Default is 0.1.
	Jitter float64

	// RetryOn decides whether an error is worth another attempt.
	// Defaults to Transient.
	RetryOn func(error) bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		Strategy:     StrategyExponential,
		BaseInterval: time.Second,
		MaxInterval:  30 * time.Second,
		Jitter:       0.1,
	}
}

func (c *Config) normalized() *Config {
	out := *c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.BaseInterval <= 0 {
		out.BaseInterval = time.Second
	}
	if out.MaxInterval <= 0 {
		out.MaxInterval = 30 * time.Second
	}
	if out.RetryOn == nil {
		out.RetryOn = Transient
	}
	return &out
}

// Transient reports whether an error is typically gone on the next attempt:
// rate limits, network failures and timeouts. Auth and validation errors are
// permanent and never retried.
func Transient(err error) bool {
	switch errors.GetKind(err) {
	case errors.KindRateLimit, errors.KindNetwork, errors.KindTimeout:
		return true
	default:
		return false
	}
}

// Interval returns the wait before the given attempt (1-based).
func (c *Config) Interval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var interval time.Duration
	switch c.Strategy {
	case StrategyLinear:
		interval = c.BaseInterval * time.Duration(attempt)
	case StrategyConstant:
		interval = c.BaseInterval
	default:
		// attempt 1 -> 1x, attempt 2 -> 2x, attempt 3 -> 4x, ...
		multiplier := math.Pow(2, float64(attempt-1))
		interval = time.Duration(float64(c.BaseInterval) * multiplier)
	}

	if c.MaxInterval > 0 && interval > c.MaxInterval {
		interval = c.MaxInterval
	}

	if c.Jitter > 0 {
		delta := float64(interval) * c.Jitter
		interval += time.Duration((rand.Float64()*2 - 1) * delta)
		if interval < 0 {
			interval = 0
		}
	}

	return interval
}

// Do runs fn until it succeeds, returns a permanent error, exhausts the
// attempt budget or the context ends. The last error is returned as-is so
// its kind survives for the caller.
func Do(ctx context.Context, cfg *Config, fn func(ctx context.Context) error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !cfg.RetryOn(lastErr) || attempt == cfg.MaxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Interval(attempt)):
		}
	}
	return lastErr
}
