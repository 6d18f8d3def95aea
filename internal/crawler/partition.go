package crawler

import "fmt"

// Boundaries splits [lower, upper) into workers contiguous buckets and returns the
// workers+1 bucket edges. The last edge is always upper, so a span that does not
// divide evenly leaves its remainder in the final bucket.
func Boundaries(lower, upper int64, workers int) ([]int64, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: worker count must be > 0, got %d", ErrInvalidConfig, workers)
	}
	if upper <= lower {
		return nil, fmt.Errorf("%w: upper bound %d must be greater than lower bound %d", ErrInvalidConfig, upper, lower)
	}
	step := (upper - lower) / int64(workers)
	bounds := make([]int64, workers+1)
	bounds[0] = lower
	for i := 0; i < workers; i++ {
		bounds[i+1] = lower + step*int64(i+1)
	}
	bounds[workers] = upper
	return bounds, nil
}

// PartitionRange returns exactly workers ordered, non-overlapping partitions whose
// union is [lower, upper). When workers exceeds the span some partitions are empty.
func PartitionRange(lower, upper int64, workers int) ([]Partition, error) {
	bounds, err := Boundaries(lower, upper, workers)
	if err != nil {
		return nil, err
	}
	// n+1 edges make n ranges; stopping at len-1 keeps a phantom range off the end.
	out := make([]Partition, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		out = append(out, Partition{Start: bounds[i], End: bounds[i+1]})
	}
	return out, nil
}
