package crawler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Progress aggregates per-id counters across all workers of a run.
type Progress struct {
	total    int64
	skipped  atomic.Int64
	appended atomic.Int64
}

// NewProgress tracks a run over total ids.
func NewProgress(total int64) *Progress {
	return &Progress{total: total}
}

func (p *Progress) addSkipped() {
	if p != nil {
		p.skipped.Add(1)
	}
}

func (p *Progress) addAppended() {
	if p != nil {
		p.appended.Add(1)
	}
}

// Snapshot returns done (skipped+appended), appended and total.
func (p *Progress) Snapshot() (done, appended, total int64) {
	skipped := p.skipped.Load()
	appended = p.appended.Load()
	return skipped + appended, appended, p.total
}

// reportEvery logs a progress line on every tick until ctx ends.
func (p *Progress) reportEvery(ctx context.Context, interval time.Duration, start time.Time, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			done, appended, total := p.Snapshot()
			pct := 0.0
			if total > 0 {
				pct = float64(done) / float64(total) * 100
			}
			logger.Info("crawl progress",
				zap.Int64("done", done),
				zap.Int64("appended", appended),
				zap.Int64("total", total),
				zap.Float64("percent", pct),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
	}
}
