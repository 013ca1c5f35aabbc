package synclog

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/larksync/larksync-console/internal/larkapi"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Filter narrows a log list. All set criteria must hold.
type Filter struct {
	// Status is matched exactly; "" and "all" match everything.
	Status string
	// Search is a case-insensitive substring of path, task name or message.
	Search string
	// PathGlob is a doublestar pattern matched against the entry path.
	PathGlob string
}

func (f Filter) IsZero() bool {
	return (f.Status == "" || f.Status == StatusAll) && f.Search == "" && f.PathGlob == ""
}

// Match reports whether e passes every criterion of f.
func (f Filter) Match(e *larkapi.SyncLogEntry) bool {
	if f.Status != "" && f.Status != StatusAll && e.Status != f.Status {
		return false
	}

	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Path), needle) &&
			!strings.Contains(strings.ToLower(e.TaskName), needle) &&
			!strings.Contains(strings.ToLower(e.Message), needle) {
			return false
		}
	}

	if f.PathGlob != "" {
		// a malformed pattern matches nothing
		ok, err := doublestar.Match(f.PathGlob, e.Path)
		if err != nil || !ok {
			return false
		}
	}

	return true
}

// Apply returns the entries that match, preserving order.
func (f Filter) Apply(entries []larkapi.SyncLogEntry) []larkapi.SyncLogEntry {
	if f.IsZero() {
		return entries
	}

	out := make([]larkapi.SyncLogEntry, 0, len(entries))
	for i := range entries {
		if f.Match(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}

// ValidGlob reports whether pattern is a usable PathGlob.
func ValidGlob(pattern string) bool {
	return pattern == "" || doublestar.ValidatePattern(pattern)
}

// StatusOptions returns the distinct statuses present in entries, sorted,
// for populating a status filter.
func StatusOptions(entries []larkapi.SyncLogEntry) []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for i := range entries {
		if entries[i].Status != "" {
			set.Add(entries[i].Status)
		}
	}

	opts := set.ToSlice()
	slices.Sort(opts)
	return opts
}
