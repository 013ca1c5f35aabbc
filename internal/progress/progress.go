// Package progress derives a display percentage from a task's raw counters.
package progress

import (
	"math"

	"github.com/larksync/larksync-console/internal/larkapi"
)

// TaskProgress is what a progress bar needs. Progress is nil when there is
// nothing to measure against, in which case no bar is shown.
type TaskProgress struct {
	Progress       *int `json:"progress"`
	EffectiveTotal int  `json:"effective_total"`
	Total          int  `json:"total"`
	Completed      int  `json:"completed"`
	Failed         int  `json:"failed"`
	Skipped        int  `json:"skipped"`
}

// Compute returns the progress of status. It never panics; a nil status
// yields all-zero counters and a nil Progress.
func Compute(status *larkapi.SyncTaskStatus) TaskProgress {
	if status == nil {
		return TaskProgress{}
	}
	return fromCounters(status.TotalFiles, status.CompletedFiles, status.FailedFiles, status.SkippedFiles)
}

// Summarize adds up the counters of several tasks and applies the same rule
// to the sums.
func Summarize(items []TaskProgress) TaskProgress {
	var total, completed, failed, skipped int
	for _, p := range items {
		total += p.Total
		completed += p.Completed
		failed += p.Failed
		skipped += p.Skipped
	}
	return fromCounters(total, completed, failed, skipped)
}

func fromCounters(total, completed, failed, skipped int) TaskProgress {
	tp := TaskProgress{
		Total:     total,
		Completed: completed,
		Failed:    failed,
		Skipped:   skipped,
	}

	// skipped files were never going to complete
	effective := max(total-skipped, 0)
	if effective <= 0 {
		return tp
	}

	// a late counter update can transiently exceed the denominator
	safeCompleted := clamp(completed, 0, effective)
	pct := clamp(roundHalfUp(float64(safeCompleted)/float64(effective)*100), 0, 100)

	tp.EffectiveTotal = effective
	tp.Progress = &pct
	return tp
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
