package console

import (
	"context"
	"time"

	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/larksync/larksync-console/internal/progress"
	"github.com/larksync/larksync-console/internal/resource"
	"github.com/larksync/larksync-console/internal/synclog"
	"golang.org/x/sync/errgroup"
)

// TaskRow is one line of the task panel.
type TaskRow struct {
	Task     larkapi.SyncTask        `json:"task"`
	Status   *larkapi.SyncTaskStatus `json:"status,omitempty"`
	Progress progress.TaskProgress   `json:"progress"`
}

// Dashboard is a point-in-time view of every panel. Each panel carries its
// own error so one failing fetch leaves the others intact.
type Dashboard struct {
	Tasks       []TaskRow             `json:"tasks"`
	TasksError  string                `json:"tasks_error,omitempty"`
	StatusError string                `json:"status_error,omitempty"`
	Summary     progress.TaskProgress `json:"summary"`

	Conflicts      []larkapi.ConflictItem `json:"conflicts"`
	OpenConflicts  int                    `json:"open_conflicts"`
	ConflictsError string                 `json:"conflicts_error,omitempty"`

	Logs      []larkapi.SyncLogEntry `json:"logs"`
	LogSource synclog.Source         `json:"log_source"`
	LogsError string                 `json:"logs_error,omitempty"`
	LiveState livelog.State          `json:"live_state,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// sources is what both the dashboard and the log center fetch.
type sources struct {
	tasks     resource.State[[]larkapi.SyncTask]
	statuses  resource.State[[]larkapi.SyncTaskStatus]
	history   resource.State[[]larkapi.SyncLogEntry]
	conflicts resource.State[[]larkapi.ConflictItem]
}

func (c *Console) fetchSources(ctx context.Context, historyLimit int, withConflicts bool) sources {
	var s sources

	// every fetch reports through its State, so the group never fails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.tasks = c.tasks.Get(gctx)
		return nil
	})
	g.Go(func() error {
		s.statuses = c.statuses.Get(gctx)
		return nil
	})
	g.Go(func() error {
		s.history = c.SyncLogHistory(gctx, historyLimit)
		return nil
	})
	if withConflicts {
		g.Go(func() error {
			s.conflicts = c.conflicts.Get(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return s
}

func (c *Console) liveEntries() ([]larkapi.SyncLogEntry, livelog.State) {
	if c.live == nil {
		return nil, ""
	}
	return c.live.Entries(), c.live.State()
}

// reconcile applies the live, history, derived waterfall.
func (c *Console) reconcile(s sources, limit int) ([]larkapi.SyncLogEntry, synclog.Source, livelog.State) {
	live, liveState := c.liveEntries()
	derived := synclog.FromStatuses(s.statuses.Data, s.tasks.Data, limit, c.now())
	logs, src := synclog.Select(live, s.history.Data, derived)
	return logs, src, liveState
}

// Dashboard fetches every panel concurrently and assembles the view.
func (c *Console) Dashboard(ctx context.Context) Dashboard {
	s := c.fetchSources(ctx, synclog.DashboardLimit, true)

	d := Dashboard{
		TasksError:     s.tasks.Error,
		StatusError:    s.statuses.Error,
		Conflicts:      s.conflicts.Data,
		ConflictsError: s.conflicts.Error,
		UpdatedAt:      c.now(),
	}

	byTask := make(map[string]*larkapi.SyncTaskStatus, len(s.statuses.Data))
	for i := range s.statuses.Data {
		byTask[s.statuses.Data[i].TaskID] = &s.statuses.Data[i]
	}

	all := make([]progress.TaskProgress, 0, len(s.tasks.Data))
	d.Tasks = make([]TaskRow, 0, len(s.tasks.Data))
	for _, task := range s.tasks.Data {
		st := byTask[task.ID]
		p := progress.Compute(st)
		all = append(all, p)
		d.Tasks = append(d.Tasks, TaskRow{Task: task, Status: st, Progress: p})
	}
	d.Summary = progress.Summarize(all)

	for _, item := range s.conflicts.Data {
		if !item.Resolved {
			d.OpenConflicts++
		}
	}

	d.Logs, d.LogSource, d.LiveState = c.reconcile(s, synclog.DashboardLimit)
	if d.LogSource != synclog.SourceLive {
		d.LogsError = s.history.Error
	}

	return d
}
