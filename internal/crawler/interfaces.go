package crawler

import (
	"context"
	"time"
)

// Store is the durable append target and the source of previously recorded ids.
// Append must be safe for concurrent callers.
type Store interface {
	KnownIDs(ctx context.Context) ([]int64, error)
	Append(ctx context.Context, record Record) error
}

// Transport performs a single GET with no retries.
type Transport interface {
	Get(ctx context.Context, url string) (Page, error)
}

// PageFetcher fetches the page for an id, retrying transient failures.
type PageFetcher interface {
	Fetch(ctx context.Context, id int64) (Page, error)
}

// Extractor pulls the structured field out of a page body.
type Extractor interface {
	Extract(body []byte) Extraction
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes record events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher digests page bodies for published events.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// RetryPolicy decides whether and how long to wait before another fetch attempt.
// attempt is the number of attempts already made.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Limiter paces outgoing requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
