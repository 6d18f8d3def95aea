package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Dependencies are the collaborators shared by every worker of a run.
type Dependencies struct {
	Fetcher   PageFetcher
	Extractor Extractor
	Store     Store
	Archive   BlobStore
	Publisher Publisher
	Hasher    Hasher
	Clock     Clock
	IDs       IDGenerator
}

// OrchestratorConfig controls run-level behaviour.
type OrchestratorConfig struct {
	ProgressInterval time.Duration
	ContentType      string
	ArchivePrefix    string
	Topic            string
}

// Orchestrator loads the known-id snapshot, partitions the range and runs one
// worker per partition concurrently.
type Orchestrator struct {
	deps   Dependencies
	cfg    OrchestratorConfig
	logger *zap.Logger
	active atomic.Pointer[Progress]
}

// NewOrchestrator validates deps and builds an Orchestrator.
func NewOrchestrator(deps Dependencies, cfg OrchestratorConfig, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run executes one crawl. Invalid parameters and snapshot load failures abort
// before any worker starts. Worker failures do not stop sibling workers; every
// one of them is folded into the returned error, and the report is always filled.
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (RunReport, error) {
	start := o.deps.Clock.Now()
	report := RunReport{Upper: rc.Upper}
	if rc.Workers <= 0 {
		return report, fmt.Errorf("%w: worker count must be > 0, got %d", ErrInvalidConfig, rc.Workers)
	}

	runID, err := o.newRunID()
	if err != nil {
		return report, err
	}
	report.RunID = runID
	logger := o.logger.With(zap.String("run_id", runID))

	known, err := LoadKnownIDs(ctx, o.deps.Store)
	if err != nil {
		return report, err
	}
	report.KnownIDs = known.Len()

	lower := known.LowerBound()
	if rc.Lower != nil {
		lower = *rc.Lower
	} else {
		logger.Info("lower bound set automatically", zap.Int64("lower", lower))
	}
	report.Lower = lower

	partitions, err := PartitionRange(lower, rc.Upper, rc.Workers)
	if err != nil {
		return report, err
	}
	report.Partitions = partitions
	report.Workers = make([]WorkerReport, len(partitions))

	logger.Info("starting crawl",
		zap.Int64("lower", lower),
		zap.Int64("upper", rc.Upper),
		zap.Int("workers", len(partitions)),
		zap.Int("known_ids", known.Len()),
	)

	progress := NewProgress(rc.Upper - lower)
	o.active.Store(progress)
	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go progress.reportEvery(progressCtx, o.cfg.ProgressInterval, time.Now(), logger)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		runErrs error
	)
	for i, p := range partitions {
		wg.Add(1)
		go func(i int, p Partition) {
			defer wg.Done()
			w := o.newWorker(i, runID, progress, logger)
			wr, werr := w.Run(ctx, p, known)
			report.Workers[i] = wr
			if werr != nil {
				mu.Lock()
				runErrs = multierr.Append(runErrs, werr)
				mu.Unlock()
			}
		}(i, p)
	}
	wg.Wait()
	stopProgress()

	report.Elapsed = o.deps.Clock.Now().Sub(start)
	fields := []zap.Field{
		zap.Int64("appended", report.Appended()),
		zap.Int("failed_workers", len(report.Failed())),
		zap.Duration("elapsed", report.Elapsed),
	}
	if runErrs != nil {
		logger.Warn("crawl finished with worker failures", append(fields, zap.Error(runErrs))...)
	} else {
		logger.Info("crawl finished", fields...)
	}
	return report, runErrs
}

// Progress returns the counters of the current or most recent run, or nil
// before the first run reaches its workers.
func (o *Orchestrator) Progress() *Progress {
	return o.active.Load()
}

func (o *Orchestrator) newRunID() (string, error) {
	if o.deps.IDs == nil {
		return fmt.Sprintf("run-%d", o.deps.Clock.Now().UnixNano()), nil
	}
	id, err := o.deps.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

func (o *Orchestrator) newWorker(index int, runID string, progress *Progress, logger *zap.Logger) *Worker {
	return NewWorker(
		index,
		o.deps.Fetcher,
		o.deps.Extractor,
		o.deps.Store,
		o.deps.Archive,
		o.deps.Publisher,
		o.deps.Hasher,
		o.deps.Clock,
		progress,
		WorkerConfig{
			RunID:         runID,
			ContentType:   o.cfg.ContentType,
			ArchivePrefix: o.cfg.ArchivePrefix,
			Topic:         o.cfg.Topic,
		},
		logger.Named("worker").With(zap.Int("index", index)),
	)
}
