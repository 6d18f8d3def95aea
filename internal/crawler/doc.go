// Package crawler enumerates a numeric id range against a single site.
//
// The orchestrator loads the ids already held by the Store once, splits
// [lower, upper) into one contiguous partition per worker, and runs the
// workers concurrently. Each worker fetches BASE_URL+id through a
// RetryingFetcher, extracts the title, and appends the record before moving
// on, so a crash loses at most the id in flight. Transient failures are
// retried in place; anything else stops only the worker that hit it.
package crawler
