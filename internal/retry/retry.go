// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Permanent marks an error that must not be retried on the same candidate.
// Wrapping an error in Permanent short-circuits the attempt loop; the caller
// advances to its next candidate instead of burning attempts.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so WithRetry returns immediately.
func Stop(err error) error {
	return &Permanent{Err: err}
}

// Config defines bounded retry behavior with exponential backoff.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// Retryable classifies errors; nil means every non-Permanent error is
	// retried. Callers parameterize this per failure class.
	Retryable func(error) bool
}

// DefaultConfig returns the navigation retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// WithRetry executes fn until it succeeds, a Permanent error is returned, the
// attempt budget is exhausted, or the context is cancelled.
func WithRetry(ctx context.Context, cfg Config, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Debug().Int("attempts", attempt).Msg("Retry succeeded")
			}
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			log.Debug().Err(perm.Err).Msg("Permanent failure, not retrying")
			return perm.Err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			log.Debug().Err(err).Msg("Error is not retryable")
			return err
		}

		lastErr = err
		if attempt >= cfg.MaxAttempts {
			break
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("backoff", backoff).
			Msg("Retrying after backoff")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, cfg)
	}

	log.Warn().Err(lastErr).Int("attempts", cfg.MaxAttempts).Msg("Max retry attempts exceeded")
	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// nextBackoff scales the current delay by the multiplier, capped at MaxBackoff.
func nextBackoff(cur time.Duration, cfg Config) time.Duration {
	next := time.Duration(float64(cur) * cfg.Multiplier)
	if next > cfg.MaxBackoff {
		next = cfg.MaxBackoff
	}
	if next < cur {
		// Multiplier below 1 or overflow; hold steady.
		next = cur
	}
	return next
}

// IsTimeout reports whether err is a timeout-shaped error. Timeouts are the
// canonical transient failure class.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Timeout()
	}
	return false
}
