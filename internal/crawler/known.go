package crawler

import (
	"context"
	"fmt"
)

// KnownIDs is a read-only snapshot of ids already persisted by earlier runs.
// It is built once before any worker starts and shared without locking.
type KnownIDs struct {
	ids    map[int64]struct{}
	max    int64
	hasMax bool
}

// NewKnownIDs builds a snapshot from ids; duplicates are ignored.
func NewKnownIDs(ids []int64) KnownIDs {
	k := KnownIDs{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		k.ids[id] = struct{}{}
		if !k.hasMax || id > k.max {
			k.max = id
			k.hasMax = true
		}
	}
	return k
}

// LoadKnownIDs reads every recorded id from store exactly once.
func LoadKnownIDs(ctx context.Context, store Store) (KnownIDs, error) {
	ids, err := store.KnownIDs(ctx)
	if err != nil {
		return KnownIDs{}, fmt.Errorf("load known ids: %w", err)
	}
	return NewKnownIDs(ids), nil
}

// Contains reports whether id was recorded before this run.
func (k KnownIDs) Contains(id int64) bool {
	_, ok := k.ids[id]
	return ok
}

// Len returns the number of distinct known ids.
func (k KnownIDs) Len() int {
	return len(k.ids)
}

// Max returns the largest known id.
func (k KnownIDs) Max() (int64, bool) {
	return k.max, k.hasMax
}

// LowerBound is the automatic lower bound: the largest known id, or 1 when nothing is stored.
// The largest id itself is the start, not the one after it; it is skipped anyway
// because it is known.
func (k KnownIDs) LowerBound() int64 {
	if highest, ok := k.Max(); ok {
		return highest
	}
	return 1
}
