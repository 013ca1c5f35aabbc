// Package console is the data layer every surface reads through. It pairs the
// backend client with a shared resource store and owns the cache rules for
// each resource: how long it stays fresh and what a write invalidates.
package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/larksync/larksync-console/internal/resource"
)

const (
	TasksStaleTime     = 30 * time.Second
	StatusStaleTime    = 5 * time.Second
	ConflictsStaleTime = 10 * time.Second
	HistoryStaleTime   = 10 * time.Second
	AuthStaleTime      = 60 * time.Second
	ConfigStaleTime    = 60 * time.Second
	DriveStaleTime     = 60 * time.Second

	// StatusPollInterval is how often task status is refetched while any task exists.
	StatusPollInterval = 5 * time.Second
)

const (
	KeyTasks     = "tasks"
	KeyStatus    = "task-status"
	KeyConflicts = "conflicts"
	KeyAuth      = "auth"
	KeyConfig    = "config"

	keyHistoryPrefix = "sync-logs?limit="
	keyDrivePrefix   = "drive-tree?folder="
)

var ErrConflictResolved = errors.New("console: conflict already resolved")

// LiveSource is the part of the live log client the console reads.
type LiveSource interface {
	Entries() []larkapi.SyncLogEntry
	State() livelog.State
}

type Options struct {
	// Store is shared between consoles when set. A private store is created otherwise.
	Store *resource.Store
	Live  LiveSource
}

type Console struct {
	api   *larkapi.Client
	store *resource.Store
	live  LiveSource
	now   func() time.Time

	tasks     *resource.Query[[]larkapi.SyncTask]
	statuses  *resource.Query[[]larkapi.SyncTaskStatus]
	conflicts *resource.Query[[]larkapi.ConflictItem]
	auth      *resource.Query[*larkapi.AuthStatus]
	config    *resource.Query[*larkapi.ConsoleConfig]

	mu      sync.Mutex
	history map[int]*resource.Query[[]larkapi.SyncLogEntry]
	drive   map[string]*resource.Query[*larkapi.DriveNode]
}

func New(api *larkapi.Client, opts Options) *Console {
	store := opts.Store
	if store == nil {
		store = resource.NewStore(resource.DefaultCapacity)
	}

	c := &Console{
		api:     api,
		store:   store,
		live:    opts.Live,
		now:     time.Now,
		history: make(map[int]*resource.Query[[]larkapi.SyncLogEntry]),
		drive:   make(map[string]*resource.Query[*larkapi.DriveNode]),
	}

	c.tasks = resource.NewQuery(store, KeyTasks, TasksStaleTime, api.ListTasks)
	c.statuses = resource.NewQuery(store, KeyStatus, StatusStaleTime, api.ListTaskStatuses)
	c.conflicts = resource.NewQuery(store, KeyConflicts, ConflictsStaleTime, api.ListConflicts)
	c.auth = resource.NewQuery(store, KeyAuth, AuthStaleTime, api.AuthStatus)
	c.config = resource.NewQuery(store, KeyConfig, ConfigStaleTime, api.Config)

	return c
}

// API returns the underlying backend client.
func (c *Console) API() *larkapi.Client {
	return c.api
}

// Live returns the live source, which may be nil.
func (c *Console) Live() LiveSource {
	return c.live
}

// Invalidate drops the named resources from the cache.
func (c *Console) Invalidate(keys ...string) {
	c.store.Invalidate(keys...)
}

func (c *Console) Tasks(ctx context.Context) resource.State[[]larkapi.SyncTask] {
	return c.tasks.Get(ctx)
}

func (c *Console) TaskStatuses(ctx context.Context) resource.State[[]larkapi.SyncTaskStatus] {
	return c.statuses.Get(ctx)
}

func (c *Console) CreateTask(ctx context.Context, body *larkapi.CreateTaskRequest) (*larkapi.SyncTask, error) {
	task, err := c.api.CreateTask(ctx, body)
	if err != nil {
		return nil, err
	}
	c.store.Invalidate(KeyTasks, KeyStatus)
	return task, nil
}

// UpdateTask sends a partial update and rewrites only that task in the cached
// list. No refetch follows.
func (c *Console) UpdateTask(ctx context.Context, id string, body *larkapi.UpdateTaskRequest) (*larkapi.SyncTask, error) {
	task, err := c.api.UpdateTask(ctx, id, body)
	if err != nil {
		return nil, err
	}

	c.tasks.Patch(func(tasks []larkapi.SyncTask) []larkapi.SyncTask {
		out := make([]larkapi.SyncTask, len(tasks))
		copy(out, tasks)
		for i := range out {
			if out[i].ID != id {
				continue
			}
			if task != nil {
				out[i] = *task
			} else {
				body.Apply(&out[i])
			}
		}
		return out
	})
	return task, nil
}

func (c *Console) DeleteTask(ctx context.Context, id string) error {
	if err := c.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.store.Invalidate(KeyTasks, KeyStatus)
	return nil
}

func (c *Console) RunTask(ctx context.Context, id string) error {
	if err := c.api.RunTask(ctx, id); err != nil {
		return err
	}
	c.store.Invalidate(KeyStatus)
	return nil
}

func (c *Console) Conflicts(ctx context.Context) resource.State[[]larkapi.ConflictItem] {
	return c.conflicts.Get(ctx)
}

// ResolveConflict refuses, without a request, a conflict the cache already
// shows as resolved.
func (c *Console) ResolveConflict(ctx context.Context, id string, action larkapi.ResolveAction) error {
	for _, item := range c.conflicts.Peek().Data {
		if item.ID == id && item.Resolved {
			return fmt.Errorf("%w: %s", ErrConflictResolved, id)
		}
	}

	if err := c.api.ResolveConflict(ctx, id, action); err != nil {
		return err
	}
	c.store.Invalidate(KeyConflicts)
	return nil
}

// SyncLogHistory returns the newest limit entries of the backend's history.
func (c *Console) SyncLogHistory(ctx context.Context, limit int) resource.State[[]larkapi.SyncLogEntry] {
	c.mu.Lock()
	q, ok := c.history[limit]
	if !ok {
		q = resource.NewQuery(c.store, keyHistoryPrefix+strconv.Itoa(limit), HistoryStaleTime,
			func(ctx context.Context) ([]larkapi.SyncLogEntry, error) {
				return c.api.SyncLogs(ctx, larkapi.SyncLogQuery{Limit: limit})
			})
		c.history[limit] = q
	}
	c.mu.Unlock()

	return q.Get(ctx)
}

// FileLogs pages the backend's own log file. It is not cached.
func (c *Console) FileLogs(ctx context.Context, q larkapi.FileLogQuery) (*larkapi.FileLogPage, error) {
	return c.api.FileLogs(ctx, q)
}

func (c *Console) Auth(ctx context.Context) resource.State[*larkapi.AuthStatus] {
	return c.auth.Get(ctx)
}

func (c *Console) Config(ctx context.Context) resource.State[*larkapi.ConsoleConfig] {
	return c.config.Get(ctx)
}

// DriveTree reads one folder of the cloud drive. An empty token is the root.
func (c *Console) DriveTree(ctx context.Context, folderToken string) resource.State[*larkapi.DriveNode] {
	c.mu.Lock()
	q, ok := c.drive[folderToken]
	if !ok {
		q = resource.NewQuery(c.store, keyDrivePrefix+folderToken, DriveStaleTime,
			func(ctx context.Context) (*larkapi.DriveNode, error) {
				return c.api.DriveTree(ctx, folderToken)
			})
		c.drive[folderToken] = q
	}
	c.mu.Unlock()

	return q.Get(ctx)
}

// WatchStatuses refetches task status every interval and hands each result to
// fn. Ticks are skipped while the task list is empty; a task list that never
// loaded is retried on every tick. It returns when ctx is done.
func (c *Console) WatchStatuses(ctx context.Context, interval time.Duration, fn func(resource.State[[]larkapi.SyncTaskStatus])) {
	if interval <= 0 {
		interval = StatusPollInterval
	}

	hasTasks := func() bool {
		st := c.tasks.Get(ctx)
		if !st.Loaded {
			st = c.tasks.Refetch(ctx)
		}
		return len(st.Data) > 0
	}

	resource.Poll(ctx, interval, hasTasks, func(ctx context.Context) {
		st := c.statuses.Refetch(ctx)
		if fn != nil {
			fn(st)
		}
	})
}
