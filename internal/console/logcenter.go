package console

import (
	"context"

	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/larksync/larksync-console/internal/synclog"
)

// LogCenterView is one page of the reconciled log list.
type LogCenterView struct {
	synclog.Page
	Source        synclog.Source `json:"source"`
	StatusOptions []string       `json:"status_options"`
	Error         string         `json:"error,omitempty"`
	LiveState     livelog.State  `json:"live_state,omitempty"`
}

// LogCenter reconciles up to LogCenterLimit entries and returns the page the
// pager points at. Status options come from the unfiltered list.
func (c *Console) LogCenter(ctx context.Context, pager *synclog.Pager) LogCenterView {
	if pager == nil {
		pager = synclog.NewPager(synclog.DefaultPageSize)
	}

	s := c.fetchSources(ctx, synclog.LogCenterLimit, false)
	logs, src, liveState := c.reconcile(s, synclog.LogCenterLimit)

	view := LogCenterView{
		Page:          pager.View(logs),
		Source:        src,
		StatusOptions: synclog.StatusOptions(logs),
		LiveState:     liveState,
	}
	if src != synclog.SourceLive {
		view.Error = s.history.Error
	}
	return view
}
