package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

type fakeStore struct {
	mu        sync.Mutex
	known     []int64
	knownErr  error
	failAt    map[int64]error
	records   []Record
	loadCalls int
}

func newFakeStore(known ...int64) *fakeStore {
	return &fakeStore{known: known, failAt: map[int64]error{}}
}

func (s *fakeStore) KnownIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	if s.knownErr != nil {
		return nil, s.knownErr
	}
	return append([]int64(nil), s.known...), nil
}

func (s *fakeStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failAt[rec.ID]; ok {
		return err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) ids() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *fakeStore) record(id int64) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// fakeFetcher serves a page per id and can fail specific ids.
type fakeFetcher struct {
	mu      sync.Mutex
	failAt  map[int64]error
	block   map[int64]bool
	fetched []int64
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{failAt: map[int64]error{}, block: map[int64]bool{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, id int64) (Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	err, fail := f.failAt[id]
	block := f.block[id]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return Page{}, ctx.Err()
	}
	if fail {
		return Page{}, err
	}
	return Page{
		URL:        fmt.Sprintf("https://example.test/title/%d", id),
		StatusCode: 200,
		Body:       []byte(fmt.Sprintf("<title>%d</title>", id)),
	}, nil
}

func (f *fakeFetcher) fetchedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int64(nil), f.fetched...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type fakeExtractor struct {
	absent bool
}

func (e fakeExtractor) Extract(body []byte) Extraction {
	if e.absent {
		return NotFound()
	}
	return Found(string(body))
}

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

type fakeIDs struct {
	id  string
	err error
}

func (g fakeIDs) NewID() (string, error) {
	return g.id, g.err
}

// scriptedTransport returns errs in order, then success.
type scriptedTransport struct {
	mu    sync.Mutex
	errs  []error
	calls int
	urls  []string
}

func (t *scriptedTransport) Get(_ context.Context, url string) (Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.urls = append(t.urls, url)
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		return Page{}, err
	}
	return Page{StatusCode: 200, Body: []byte("ok"), FinalURL: url}, nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

type fakeBlobStore struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (b *fakeBlobStore) PutObject(_ context.Context, path string, _ string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.paths = append(b.paths, path)
	return "mem://" + path, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []RecordEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	evt, ok := payload.(RecordEvent)
	if !ok {
		return "", errors.New("unexpected payload")
	}
	p.events = append(p.events, evt)
	return evt.Key(), nil
}
