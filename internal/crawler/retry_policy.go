package crawler

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// DefaultRetryDelay is the fixed wait between attempts when nothing else is configured.
const DefaultRetryDelay = 60 * time.Second

// FixedRetryPolicy retries transient failures after a constant delay.
// A zero maxAttempts retries forever.
type FixedRetryPolicy struct {
	delay       time.Duration
	maxAttempts int
	jitter      time.Duration
}

// NewFixedRetryPolicy builds a fixed-delay policy. Non-positive delay falls back to DefaultRetryDelay.
func NewFixedRetryPolicy(delay time.Duration, maxAttempts int, jitter time.Duration) *FixedRetryPolicy {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if jitter < 0 {
		jitter = 0
	}
	return &FixedRetryPolicy{delay: delay, maxAttempts: maxAttempts, jitter: jitter}
}

// ShouldRetry decides whether the error is retryable.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if !IsTransient(err) {
		return false
	}
	return p.maxAttempts == 0 || attempt < p.maxAttempts
}

// Backoff returns the wait duration before the next attempt.
func (p *FixedRetryPolicy) Backoff(_ int) time.Duration {
	return p.delay + randomJitter(p.jitter)
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a doubling policy capped at maxDelay.
// A zero maxAttempts retries forever.
func NewExponentialRetryPolicy(baseDelay, maxDelay time.Duration, maxAttempts int) *ExponentialRetryPolicy {
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay < baseDelay {
		maxDelay = DefaultRetryDelay
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// ShouldRetry decides whether the error is retryable.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if !IsTransient(err) {
		return false
	}
	return p.maxAttempts == 0 || attempt < p.maxAttempts
}

// Backoff returns the wait duration before the next attempt, between half and all of the capped delay.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	exp := attempt - 1
	if exp < 0 {
		exp = 0
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(exp))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
