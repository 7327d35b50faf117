package fetcher

import (
	"context"
	"errors"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/umputun/eventscope/pkg/domain"
)

// RetryPolicy defines how transient fetch failures are retried
type RetryPolicy struct {
	MaxAttempts  int           // total attempts, including the first one
	BaseDelay    time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap for the exponential part of a delay
	Multiplier   float64       // growth factor between attempts
	Jitter       float64       // +/- fraction applied to each delay, 0..1
	Cooldown     time.Duration // forced wait after 429 before any retry
	NonRetryable []int         // status codes attempted only once
}

// DefaultRetryPolicy returns policy used when nothing is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    20 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.3,
		Cooldown:    30 * time.Second,
		NonRetryable: []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusGone},
	}
}

// Retryable decides whether the error returned by the given attempt (1-based) should be retried
func (p RetryPolicy) Retryable(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	if fe.StatusCode != 0 && slices.Contains(p.NonRetryable, fe.StatusCode) {
		return false
	}
	return fe.Temporary()
}

// Delay returns wait before the next attempt, after the given failed attempt (1-based).
// rnd must return values in [0,1).
func (p RetryPolicy) Delay(attempt int, rnd func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 && rnd != nil {
		delay += delay * p.Jitter * (2*rnd() - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// CooldownFor returns forced wait for a 429 response, honoring Retry-After when it is longer
func (p RetryPolicy) CooldownFor(retryAfter time.Duration) time.Duration {
	if retryAfter > p.Cooldown {
		return retryAfter
	}
	return p.Cooldown
}
