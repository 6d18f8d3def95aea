// Package crawler defines core types shared across subsystems.
package crawler

import (
	"fmt"
	"strconv"
	"time"
)

// Record is the durable unit of output for one enumerated id.
// Title is nil when the page did not carry the expected structure.
type Record struct {
	ID        int64     `json:"id"`
	Title     *string   `json:"title"`
	SourceURL *string   `json:"source_url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewRecord builds the record for id from an extraction result and the URL it was fetched from.
func NewRecord(id int64, extraction Extraction, sourceURL string, fetchedAt time.Time) Record {
	rec := Record{ID: id, FetchedAt: fetchedAt}
	if extraction.Found {
		title := extraction.Title
		rec.Title = &title
	}
	if sourceURL != "" {
		u := sourceURL
		rec.SourceURL = &u
	}
	return rec
}

// Partition is a half-open id range [Start, End) owned by a single worker.
type Partition struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of ids covered by the partition.
func (p Partition) Len() int64 {
	if p.End <= p.Start {
		return 0
	}
	return p.End - p.Start
}

// Empty reports whether the partition covers no ids.
func (p Partition) Empty() bool {
	return p.Len() == 0
}

func (p Partition) String() string {
	return fmt.Sprintf("[%d,%d)", p.Start, p.End)
}

// RunConfig describes one crawl run. A nil Lower is derived from the store.
type RunConfig struct {
	Lower   *int64
	Upper   int64
	Workers int
}

// Page is the raw result of fetching one id.
type Page struct {
	// URL is the URL that was requested (base URL + id).
	URL string
	// FinalURL is the URL after redirects, when the transport reports one.
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Extraction is the outcome of field extraction: either Found with a title or not found.
type Extraction struct {
	Found bool
	Title string
}

// Found builds a successful extraction.
func Found(title string) Extraction {
	return Extraction{Found: true, Title: title}
}

// NotFound is the extraction for a page without the expected structure.
func NotFound() Extraction {
	return Extraction{}
}

// WorkerStatus is the lifecycle state of a worker.
type WorkerStatus string

// Worker lifecycle states.
const (
	WorkerPending WorkerStatus = "pending"
	WorkerRunning WorkerStatus = "running"
	WorkerDone    WorkerStatus = "done"
	WorkerFailed  WorkerStatus = "failed"
)

// WorkerReport summarises what one worker did with its partition.
type WorkerReport struct {
	Index     int          `json:"index"`
	Partition Partition    `json:"partition"`
	Status    WorkerStatus `json:"status"`
	Fetched   int64        `json:"fetched"`
	Skipped   int64        `json:"skipped"`
	Appended  int64        `json:"appended"`
	// LastID is the last id the worker finished (appended or skipped), or Start-1.
	LastID int64  `json:"last_id"`
	Err    string `json:"error,omitempty"`
}

// RunReport is returned by the orchestrator once every worker has stopped.
type RunReport struct {
	RunID      string         `json:"run_id"`
	Lower      int64          `json:"lower"`
	Upper      int64          `json:"upper"`
	KnownIDs   int            `json:"known_ids"`
	Partitions []Partition    `json:"partitions"`
	Workers    []WorkerReport `json:"workers"`
	Elapsed    time.Duration  `json:"elapsed"`
}

// Appended sums the records appended by all workers.
func (r RunReport) Appended() int64 {
	var total int64
	for _, w := range r.Workers {
		total += w.Appended
	}
	return total
}

// Failed returns the reports of workers that did not finish their partition.
func (r RunReport) Failed() []WorkerReport {
	var out []WorkerReport
	for _, w := range r.Workers {
		if w.Status == WorkerFailed {
			out = append(out, w)
		}
	}
	return out
}

// RecordEvent is the payload published after a record becomes durable.
type RecordEvent struct {
	RunID      string `json:"run_id"`
	Record     Record `json:"record"`
	ArchiveURI string `json:"archive_uri,omitempty"`
	StatusCode int    `json:"status_code"`
	// ContentSHA256 is the hex digest of the page body, when a hasher is configured.
	ContentSHA256 string `json:"content_sha256,omitempty"`
}

// Key returns the message key used by partitioned publishers.
func (e RecordEvent) Key() string {
	return strconv.FormatInt(e.Record.ID, 10)
}
