package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newTestOrchestrator(t *testing.T, store Store, fetcher PageFetcher) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Dependencies{
		Fetcher:   fetcher,
		Extractor: fakeExtractor{},
		Store:     store,
		Clock:     &fakeClock{now: time.Unix(0, 0), step: time.Second},
		IDs:       fakeIDs{id: "run-test"},
	}, OrchestratorConfig{ProgressInterval: 5 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	return o
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestOrchestrator_EndToEndExample(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := newFakeFetcher()
	o := newTestOrchestrator(t, store, fetcher)

	report, err := o.Run(context.Background(), RunConfig{Lower: int64Ptr(1), Upper: 7, Workers: 3})
	require.NoError(t, err)
	require.Equal(t, []Partition{{1, 3}, {3, 5}, {5, 7}}, report.Partitions)
	require.Len(t, report.Workers, 3)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, store.ids())
	require.Equal(t, int64(6), report.Appended())
	require.Equal(t, "run-test", report.RunID)
	require.Positive(t, report.Elapsed)
	for _, w := range report.Workers {
		require.Equal(t, WorkerDone, w.Status)
	}
}

func TestOrchestrator_IdempotentResume(t *testing.T) {
	t.Parallel()

	store := newFakeStore(1, 2, 3)
	fetcher := newFakeFetcher()
	o := newTestOrchestrator(t, store, fetcher)

	report, err := o.Run(context.Background(), RunConfig{Lower: int64Ptr(1), Upper: 10, Workers: 4})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 5, 6, 7, 8, 9}, store.ids())
	require.Equal(t, []int64{4, 5, 6, 7, 8, 9}, fetcher.fetchedIDs())
	require.Equal(t, 3, report.KnownIDs)
	require.Equal(t, 1, store.loadCalls)
}

func TestOrchestrator_AutoLowerBound(t *testing.T) {
	t.Parallel()

	store := newFakeStore(2, 9, 5)
	fetcher := newFakeFetcher()
	o := newTestOrchestrator(t, store, fetcher)

	report, err := o.Run(context.Background(), RunConfig{Upper: 13, Workers: 2})
	require.NoError(t, err)
	require.Equal(t, int64(9), report.Lower)
	require.Equal(t, []int64{10, 11, 12}, store.ids())
}

func TestOrchestrator_AutoLowerBoundEmptyStore(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	o := newTestOrchestrator(t, store, newFakeFetcher())

	report, err := o.Run(context.Background(), RunConfig{Upper: 4, Workers: 2})
	require.NoError(t, err)
	require.Equal(t, int64(1), report.Lower)
	require.Equal(t, []int64{1, 2, 3}, store.ids())
}

func TestOrchestrator_WorkerFailureIsIsolated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := newFakeFetcher()
	fetcher.failAt[2] = errors.New("fatal client error")
	store.failAt[8] = errors.New("constraint violation")
	o := newTestOrchestrator(t, store, fetcher)

	report, err := o.Run(context.Background(), RunConfig{Lower: int64Ptr(1), Upper: 13, Workers: 3})
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.ErrorIs(t, err, ErrStoreWrite)

	require.Equal(t, []int64{1, 5, 6, 7, 9, 10, 11, 12}, store.ids())
	require.Len(t, report.Failed(), 2)
	require.Equal(t, WorkerFailed, report.Workers[0].Status)
	require.Equal(t, WorkerFailed, report.Workers[1].Status)
	require.Equal(t, WorkerDone, report.Workers[2].Status)
	require.Positive(t, report.Elapsed)
}

func TestOrchestrator_MoreWorkersThanIDs(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	o := newTestOrchestrator(t, store, newFakeFetcher())

	report, err := o.Run(context.Background(), RunConfig{Lower: int64Ptr(1), Upper: 3, Workers: 5})
	require.NoError(t, err)
	require.Len(t, report.Workers, 5)
	require.Equal(t, []int64{1, 2}, store.ids())
}

func TestOrchestrator_InvalidConfigFailsBeforeWork(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := newFakeFetcher()
	o := newTestOrchestrator(t, store, fetcher)

	_, err := o.Run(context.Background(), RunConfig{Lower: int64Ptr(1), Upper: 10, Workers: 0})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Equal(t, 0, store.loadCalls)

	_, err = o.Run(context.Background(), RunConfig{Lower: int64Ptr(10), Upper: 10, Workers: 2})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Empty(t, fetcher.fetchedIDs())
}

func TestOrchestrator_KnownIDLoadFailureAborts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.knownErr = errors.New("no such table")
	fetcher := newFakeFetcher()
	o := newTestOrchestrator(t, store, fetcher)

	_, err := o.Run(context.Background(), RunConfig{Lower: int64Ptr(1), Upper: 5, Workers: 1})
	require.ErrorContains(t, err, "no such table")
	require.Empty(t, fetcher.fetchedIDs())
}

func TestOrchestrator_CancellationStopsAllWorkers(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := newFakeFetcher()
	fetcher.block[1] = true
	fetcher.block[51] = true
	o := newTestOrchestrator(t, store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, RunConfig{Lower: int64Ptr(1), Upper: 101, Workers: 2})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.Len(t, multierr.Errors(err), 2)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop after cancellation")
	}
	require.Empty(t, store.ids())
}

func TestNewOrchestratorValidation(t *testing.T) {
	t.Parallel()

	_, err := NewOrchestrator(Dependencies{}, OrchestratorConfig{}, nil)
	require.Error(t, err)
}

func TestOrchestrator_ProgressReflectsLastRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore(2)
	o := newTestOrchestrator(t, store, newFakeFetcher())
	require.Nil(t, o.Progress())

	_, err := o.Run(context.Background(), RunConfig{Lower: int64Ptr(1), Upper: 5, Workers: 2})
	require.NoError(t, err)

	p := o.Progress()
	require.NotNil(t, p)
	done, appended, total := p.Snapshot()
	require.Equal(t, int64(4), done)
	require.Equal(t, int64(3), appended)
	require.Equal(t, int64(4), total)
}
