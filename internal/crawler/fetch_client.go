package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-range-crawler/internal/metrics"
)

// RetryingFetcher turns an id into BASE_URL+id and fetches it, absorbing transient
// failures according to its RetryPolicy. Retries never skip an id: the call either
// returns the page, a fatal error, ErrRetryExhausted (bounded policies only), or the
// context error.
type RetryingFetcher struct {
	baseURL   string
	transport Transport
	policy    RetryPolicy
	limiter   Limiter
	sleep     Sleeper
	logger    *zap.Logger
}

// FetcherOption customises a RetryingFetcher.
type FetcherOption func(*RetryingFetcher)

// WithLimiter paces every attempt, retries included.
func WithLimiter(l Limiter) FetcherOption {
	return func(f *RetryingFetcher) {
		f.limiter = l
	}
}

// WithSleeper replaces the backoff sleep (tests count delays through it).
func WithSleeper(s Sleeper) FetcherOption {
	return func(f *RetryingFetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithFetchLogger sets the logger used for retry warnings.
func WithFetchLogger(logger *zap.Logger) FetcherOption {
	return func(f *RetryingFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewRetryingFetcher builds a fetcher for baseURL.
func NewRetryingFetcher(baseURL string, transport Transport, policy RetryPolicy, opts ...FetcherOption) (*RetryingFetcher, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base url is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if policy == nil {
		policy = NewFixedRetryPolicy(DefaultRetryDelay, 0, 0)
	}
	f := &RetryingFetcher{
		baseURL:   baseURL,
		transport: transport,
		policy:    policy,
		sleep:     SleepContext,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// URLFor returns the page URL for id.
func (f *RetryingFetcher) URLFor(id int64) string {
	return f.baseURL + strconv.FormatInt(id, 10)
}

// Fetch retrieves the page for id.
func (f *RetryingFetcher) Fetch(ctx context.Context, id int64) (Page, error) {
	url := f.URLFor(id)
	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return Page{}, fmt.Errorf("fetch %s: rate limit wait: %w", url, err)
			}
		}

		start := time.Now()
		page, err := f.transport.Get(ctx, url)
		if err == nil {
			metrics.ObserveFetch(time.Since(start))
			page.URL = url
			return page, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", url, ctxErr)
		}
		if !IsTransient(err) {
			metrics.ObserveFetchFailure("fatal")
			return Page{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		if !f.policy.ShouldRetry(err, attempt) {
			metrics.ObserveFetchFailure("exhausted")
			return Page{}, fmt.Errorf("fetch %s after %d attempts: %w: %w", url, attempt, ErrRetryExhausted, err)
		}

		delay := f.policy.Backoff(attempt)
		metrics.ObserveFetchRetry()
		f.logger.Warn("transient fetch failure, retrying",
			zap.Int64("id", id),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return Page{}, fmt.Errorf("fetch %s: backoff interrupted: %w", url, err)
		}
	}
}
