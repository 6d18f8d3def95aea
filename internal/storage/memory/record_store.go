package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// RecordStore is a concurrency-safe in-memory crawler.Store.
type RecordStore struct {
	mu      sync.RWMutex
	byID    map[int64]struct{}
	records []crawler.Record
}

var _ crawler.Store = (*RecordStore)(nil)

// NewRecordStore returns a store pre-populated with records.
func NewRecordStore(records ...crawler.Record) *RecordStore {
	s := &RecordStore{byID: make(map[int64]struct{})}
	for _, rec := range records {
		s.insert(rec)
	}
	return s
}

// KnownIDs returns every stored id in insertion order.
func (s *RecordStore) KnownIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.records))
	for _, rec := range s.records {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// Append stores rec unless its id is already present.
func (s *RecordStore) Append(_ context.Context, rec crawler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(rec)
	return nil
}

func (s *RecordStore) insert(rec crawler.Record) {
	if _, ok := s.byID[rec.ID]; ok {
		return
	}
	s.byID[rec.ID] = struct{}{}
	s.records = append(s.records, rec)
}

// Records returns a snapshot of stored records in insertion order.
func (s *RecordStore) Records() []crawler.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.Record(nil), s.records...)
}
