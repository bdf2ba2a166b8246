package gc

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressReporter receives sweep progress. Reporting is advisory: the
// collector never blocks on it and failures to render must not affect the
// sweep.
type ProgressReporter interface {
	Start()
	ReportScanned(store string, count int)
	ReportTagged(store string, assets []Asset)
	ReportDeleted(store string, assets []Asset)
	// Pause suppresses output while the confirmation prompt owns the
	// terminal; Resume restores it.
	Pause()
	Resume()
	Stop()
}

// ConsoleReporter prints periodic progress lines and a final summary.
type ConsoleReporter struct {
	out io.Writer

	mu        sync.Mutex
	paused    bool
	startedAt time.Time

	scanned   int
	tagged    int
	deleted   int
	reclaimed int64
}

func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

func (r *ConsoleReporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startedAt = time.Now()
}

func (r *ConsoleReporter) ReportScanned(store string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanned += count
	r.printf("[%s] scanned %d assets (%d total)\n", store, count, r.scanned)
}

func (r *ConsoleReporter) ReportTagged(store string, assets []Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tagged += len(assets)
	r.printf("[%s] isolated %d assets\n", store, len(assets))
}

func (r *ConsoleReporter) ReportDeleted(store string, assets []Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted += len(assets)
	for _, a := range assets {
		r.reclaimed += a.SizeBytes()
	}
	r.printf("[%s] deleted %d assets\n", store, len(assets))
}

func (r *ConsoleReporter) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

func (r *ConsoleReporter) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
}

func (r *ConsoleReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	elapsed := time.Since(r.startedAt).Round(time.Second)
	fmt.Fprintf(r.out, "scanned %d, isolated %d, deleted %d (%s reclaimed) in %s\n",
		r.scanned, r.tagged, r.deleted, humanBytes(r.reclaimed), elapsed)
}

func (r *ConsoleReporter) printf(format string, args ...any) {
	if r.paused {
		return
	}
	fmt.Fprintf(r.out, format, args...)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) Start()                        {}
func (NopReporter) ReportScanned(string, int)     {}
func (NopReporter) ReportTagged(string, []Asset)  {}
func (NopReporter) ReportDeleted(string, []Asset) {}
func (NopReporter) Pause()                        {}
func (NopReporter) Resume()                       {}
func (NopReporter) Stop()                         {}
