// Package synclog turns the three log sources a console sees into one
// display-ready list, and filters and pages that list.
package synclog

import (
	"slices"
	"time"

	"github.com/larksync/larksync-console/internal/larkapi"
)

const (
	// DashboardLimit caps both the history fetch and the derived list on the dashboard.
	DashboardLimit = 200
	// LogCenterLimit caps both on the log center.
	LogCenterLimit = 500

	UnknownTaskName = "Unknown task"
)

// Source names which of the three inputs a displayed list came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceLive    Source = "live"
	SourceHistory Source = "history"
	SourceDerived Source = "derived"
)

// Select picks the first non-empty source in order live, history, derived and
// returns it unchanged. Sources are never interleaved: they share no stable
// identity key.
func Select(live, history, derived []larkapi.SyncLogEntry) ([]larkapi.SyncLogEntry, Source) {
	switch {
	case len(live) > 0:
		return live, SourceLive
	case len(history) > 0:
		return history, SourceHistory
	case len(derived) > 0:
		return derived, SourceDerived
	}
	return nil, SourceNone
}

// FromStatuses flattens every status's recent file events into log entries,
// newest first, keeping at most limit of them (limit <= 0 keeps all).
//
// An event without a timestamp takes the status's finished_at, then its
// started_at, then now. Entries with equal timestamps keep their input order.
func FromStatuses(statuses []larkapi.SyncTaskStatus, tasks []larkapi.SyncTask, limit int, now time.Time) []larkapi.SyncLogEntry {
	names := make(map[string]string, len(tasks))
	for i := range tasks {
		names[tasks[i].ID] = tasks[i].DisplayName()
	}

	nowSec := float64(now.UnixNano()) / 1e9

	var entries []larkapi.SyncLogEntry
	for _, st := range statuses {
		name, ok := names[st.TaskID]
		if !ok {
			name = UnknownTaskName
		}

		for _, ev := range st.LastFiles {
			entries = append(entries, larkapi.SyncLogEntry{
				TaskID:    st.TaskID,
				TaskName:  name,
				Timestamp: eventTime(ev, st, nowSec),
				Status:    ev.Status,
				Path:      ev.Path,
				Message:   ev.Message,
			})
		}
	}

	slices.SortStableFunc(entries, func(a, b larkapi.SyncLogEntry) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func eventTime(ev larkapi.SyncFileEvent, st larkapi.SyncTaskStatus, now float64) float64 {
	switch {
	case ev.Timestamp != nil:
		return *ev.Timestamp
	case st.FinishedAt != nil:
		return *st.FinishedAt
	case st.StartedAt != nil:
		return *st.StartedAt
	}
	return now
}
