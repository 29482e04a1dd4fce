// Package progress derives structured run progress from the engine's log
// lines. The engine reports what it is doing in plain text; the service
// layer turns those lines into percentages and time estimates for clients.
package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ternarybob/harvest/internal/models"
)

var (
	processingPattern = regexp.MustCompile(`Processing candidate (\d+)/(\d+)`)
	downloadedPattern = regexp.MustCompile(`Successfully downloaded resume (\d+)/(\d+)`)
	totalPattern      = regexp.MustCompile(`Total Candidates Found: (\d+)`)
)

// Tracker accumulates progress for one run from its log lines. Not safe for
// concurrent use; callers serialize through the run's manager.
type Tracker struct {
	processed int
	total     int
	startedAt time.Time
}

// NewTracker creates a tracker anchored at the run's start time
func NewTracker(startedAt time.Time) *Tracker {
	return &Tracker{startedAt: startedAt}
}

// Observe updates the tracker from one log line and reports whether the line
// changed the progress state.
func (t *Tracker) Observe(line string) bool {
	if m := totalPattern.FindStringSubmatch(line); m != nil {
		t.total, _ = strconv.Atoi(m[1])
		return true
	}
	if m := processingPattern.FindStringSubmatch(line); m != nil {
		current, _ := strconv.Atoi(m[1])
		t.total, _ = strconv.Atoi(m[2])
		// "Processing i/n" means i-1 candidates are fully done
		t.processed = current - 1
		return true
	}
	if m := downloadedPattern.FindStringSubmatch(line); m != nil {
		t.processed, _ = strconv.Atoi(m[1])
		t.total, _ = strconv.Atoi(m[2])
		return true
	}
	return false
}

// Snapshot returns the current progress. The time estimate only appears once
// at least one candidate has finished, otherwise it would be a guess.
func (t *Tracker) Snapshot() models.DownloadProgress {
	p := models.DownloadProgress{
		Processed: t.processed,
		Total:     t.total,
	}
	if t.total > 0 {
		p.Percentage = float64(t.processed) / float64(t.total) * 100
	}
	if t.processed > 0 && t.total > t.processed {
		elapsed := time.Since(t.startedAt)
		perCandidate := elapsed / time.Duration(t.processed)
		remaining := perCandidate * time.Duration(t.total-t.processed)
		p.EstimatedRemaining = formatDuration(remaining)
	}
	return p
}

// formatDuration renders an estimate in a human-readable short form
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
