// Package serial funnels appends for a single-writer backend through one goroutine.
package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("serial store closed")

// DefaultQueueDepth bounds pending appends when New is given a non-positive depth.
const DefaultQueueDepth = 64

type appendRequest struct {
	ctx    context.Context
	record crawler.Record
	reply  chan error
}

// Store wraps a crawler.Store so that Append calls reach it one at a time, in
// arrival order, from a single goroutine. Each caller blocks until its own
// append is acknowledged, so a returned nil still means the record is durable.
type Store struct {
	inner    crawler.Store
	requests chan appendRequest
	done     chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

var _ crawler.Store = (*Store)(nil)

// New starts the writer goroutine.
func New(inner crawler.Store, queueDepth int) (*Store, error) {
	if inner == nil {
		return nil, errors.New("inner store is required")
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	s := &Store{
		inner:    inner,
		requests: make(chan appendRequest, queueDepth),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Store) run() {
	defer close(s.done)
	for req := range s.requests {
		if err := req.ctx.Err(); err != nil {
			req.reply <- err
			continue
		}
		req.reply <- s.inner.Append(req.ctx, req.record)
	}
}

// KnownIDs reads through to the wrapped store.
func (s *Store) KnownIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.inner.KnownIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("serial store: %w", err)
	}
	return ids, nil
}

// Append queues rec and waits for the writer to apply it.
func (s *Store) Append(ctx context.Context, rec crawler.Record) error {
	req := appendRequest{ctx: ctx, record: rec, reply: make(chan error, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.requests <- req:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return fmt.Errorf("queue append %d: %w", rec.ID, ctx.Err())
	}

	// The writer replies to every queued request.
	return <-req.reply
}

// Close stops accepting appends, drains queued ones and waits for the writer.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.requests)
		s.mu.Unlock()
	})
	<-s.done
}
