package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-range-crawler/internal/metrics"
)

// WorkerConfig controls the optional side effects of a Worker.
type WorkerConfig struct {
	RunID         string
	ContentType   string
	ArchivePrefix string
	Topic         string
}

// Worker owns one partition and walks it in ascending order, one id at a time.
type Worker struct {
	index     int
	fetcher   PageFetcher
	extractor Extractor
	store     Store
	archive   BlobStore
	publisher Publisher
	hasher    Hasher
	clock     Clock
	progress  *Progress
	cfg       WorkerConfig
	logger    *zap.Logger
}

// NewWorker constructs a Worker. archive, publisher and hasher may be nil.
func NewWorker(
	index int,
	fetcher PageFetcher,
	extractor Extractor,
	store Store,
	archive BlobStore,
	publisher Publisher,
	hasher Hasher,
	clock Clock,
	progress *Progress,
	cfg WorkerConfig,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Worker{
		index:     index,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		archive:   archive,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		progress:  progress,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes every id in p that is not in known. It stops at the first fatal
// error; records appended before that stay durable.
func (w *Worker) Run(ctx context.Context, p Partition, known KnownIDs) (WorkerReport, error) {
	report := WorkerReport{
		Index:     w.index,
		Partition: p,
		Status:    WorkerPending,
		LastID:    p.Start - 1,
	}
	if p.Empty() {
		report.Status = WorkerDone
		w.logger.Debug("empty partition", zap.Stringer("partition", p))
		return report, nil
	}

	report.Status = WorkerRunning
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	w.logger.Debug("worker started", zap.Stringer("partition", p))

	for id := p.Start; id < p.End; id++ {
		if err := ctx.Err(); err != nil {
			return w.fail(report, fmt.Errorf("worker %d stopped before id %d: %w", w.index, id, err))
		}
		if known.Contains(id) {
			report.Skipped++
			report.LastID = id
			w.progress.addSkipped()
			metrics.ObserveSkipped()
			continue
		}
		report.Fetched++
		if err := w.processID(ctx, id); err != nil {
			return w.fail(report, fmt.Errorf("worker %d id %d: %w", w.index, id, err))
		}
		report.Appended++
		report.LastID = id
		w.progress.addAppended()
	}

	report.Status = WorkerDone
	w.logger.Info("worker finished",
		zap.Stringer("partition", p),
		zap.Int64("appended", report.Appended),
		zap.Int64("skipped", report.Skipped),
	)
	return report, nil
}

func (w *Worker) fail(report WorkerReport, err error) (WorkerReport, error) {
	report.Status = WorkerFailed
	report.Err = err.Error()
	if errors.Is(err, context.Canceled) {
		w.logger.Warn("worker canceled", zap.Int64("last_id", report.LastID))
	} else {
		w.logger.Error("worker failed", zap.Int64("last_id", report.LastID), zap.Error(err))
	}
	return report, err
}

func (w *Worker) processID(ctx context.Context, id int64) error {
	page, err := w.fetcher.Fetch(ctx, id)
	if err != nil {
		return err
	}

	extraction := w.extractor.Extract(page.Body)
	record := NewRecord(id, extraction, page.URL, w.clock.Now())
	if err := w.store.Append(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	metrics.ObserveAppended(extraction.Found)
	if !extraction.Found {
		w.logger.Debug("page has no title", zap.Int64("id", id), zap.Int("status", page.StatusCode))
	}

	uri := w.archivePage(ctx, id, page)
	w.publishRecord(ctx, record, uri, page)
	return nil
}

func (w *Worker) archivePath(id int64) string {
	prefix := strings.Trim(w.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%d.html", id)
	}
	return fmt.Sprintf("%s/%d.html", prefix, id)
}

func (w *Worker) archivePage(ctx context.Context, id int64, page Page) string {
	if w.archive == nil {
		return ""
	}
	uri, err := w.archive.PutObject(ctx, w.archivePath(id), w.cfg.ContentType, page.Body)
	if err != nil {
		metrics.ObserveSideEffectFailure("archive")
		w.logger.Warn("archive page failed", zap.Int64("id", id), zap.Error(err))
		return ""
	}
	return uri
}

func (w *Worker) publishRecord(ctx context.Context, record Record, uri string, page Page) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	event := RecordEvent{
		RunID:      w.cfg.RunID,
		Record:     record,
		ArchiveURI: uri,
		StatusCode: page.StatusCode,
	}
	if w.hasher != nil {
		sum, err := w.hasher.Hash(page.Body)
		if err != nil {
			w.logger.Warn("hash page body failed", zap.Int64("id", record.ID), zap.Error(err))
		} else {
			event.ContentSHA256 = sum
		}
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		metrics.ObserveSideEffectFailure("publish")
		w.logger.Warn("publish record failed", zap.Int64("id", record.ID), zap.Error(err))
	}
}
