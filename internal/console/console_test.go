package console

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/larksync/larksync-console/internal/resource"
	"github.com/larksync/larksync-console/internal/synclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tasksJSON = `[
		{"id":"t1","name":"Team Wiki","local_path":"/docs/wiki","cloud_folder_token":"f1","sync_mode":"bidirectional","update_mode":"auto","enabled":true},
		{"id":"t2","local_path":"/docs/personal","cloud_folder_token":"f2","sync_mode":"download_only","update_mode":"partial","enabled":false}
	]`
	statusJSON = `[
		{"task_id":"t1","state":"running","started_at":100,"total_files":10,"completed_files":4,"failed_files":1,"skipped_files":2,
		 "last_files":[{"path":"a.md","status":"downloaded","timestamp":150},{"path":"b.md","status":"failed","message":"denied"}]},
		{"task_id":"ghost","state":"success","finished_at":200,"total_files":0,"completed_files":0,"failed_files":0,"skipped_files":0,
		 "last_files":[{"path":"c.md","status":"uploaded"}]}
	]`
	conflictsJSON = `[
		{"id":"c1","local_path":"/docs/wiki/x.md","cloud_token":"d1","local_hash":"h1","db_hash":"h0","cloud_version":3,"db_version":2,"created_at":1700000000,"resolved":false},
		{"id":"c2","local_path":"/docs/wiki/y.md","cloud_token":"d2","local_hash":"h2","db_hash":"h0","cloud_version":4,"db_version":2,"created_at":1700000000,"resolved":true,"resolved_action":"use_local"}
	]`
)

type fakeBackend struct {
	mu       sync.Mutex
	hits     map[string]int
	history  string
	failPath string
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *fakeBackend) set(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

func (b *fakeBackend) setHistory(body string) {
	b.set(func() { b.history = body })
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(pattern, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.hits[pattern]++
			fail := b.failPath == pattern
			if pattern == "GET /sync/logs/sync" {
				body = b.history
			}
			b.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			if fail {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"detail":"backend exploded"}`)
				return
			}
			_, _ = io.WriteString(w, body)
		})
	}

	reply("GET /sync/tasks", tasksJSON)
	reply("GET /sync/tasks/status", statusJSON)
	reply("GET /sync/logs/sync", "[]")
	reply("GET /conflicts", conflictsJSON)
	reply("POST /conflicts/{id}/resolve", `{"status":"ok"}`)
	reply("POST /sync/tasks", `{"id":"t3","local_path":"/docs/new","cloud_folder_token":"f3","sync_mode":"upload_only","update_mode":"auto","enabled":true}`)
	reply("PATCH /sync/tasks/{id}", `{"id":"t2","local_path":"/docs/personal","cloud_folder_token":"f2","sync_mode":"download_only","update_mode":"partial","enabled":true}`)
	reply("DELETE /sync/tasks/{id}", `{"status":"ok"}`)
	reply("POST /sync/tasks/{id}/run", `{"status":"ok"}`)
	reply("GET /auth/status", `{"connected":true,"account_name":"ops"}`)
	reply("GET /config", `{"sync_interval_seconds":60,"auto_start":true}`)
	reply("GET /drive/tree", `{"token":"root","name":"My Drive","type":"folder","children":[{"token":"f1","name":"Wiki","type":"folder"}]}`)
	return mux
}

type fakeLive struct {
	entries []larkapi.SyncLogEntry
	state   livelog.State
}

func (f *fakeLive) Entries() []larkapi.SyncLogEntry { return f.entries }
func (f *fakeLive) State() livelog.State            { return f.state }

func newTestConsole(t *testing.T, live LiveSource) (*Console, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{hits: make(map[string]int), history: "[]"}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	api, err := larkapi.New(larkapi.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	c := New(api, Options{Store: resource.NewStore(64), Live: live})
	c.now = func() time.Time { return time.Unix(1000, 0) }
	return c, b
}

func TestConsole_TasksCached(t *testing.T) {
	c, b := newTestConsole(t, nil)

	st := c.Tasks(t.Context())
	require.True(t, st.Loaded)
	require.Len(t, st.Data, 2)

	c.Tasks(t.Context())
	assert.Equal(t, 1, b.count("GET /sync/tasks"))
}

func TestConsole_CreateAndDeleteInvalidate(t *testing.T) {
	c, b := newTestConsole(t, nil)

	c.Tasks(t.Context())
	c.TaskStatuses(t.Context())

	task, err := c.CreateTask(t.Context(), &larkapi.CreateTaskRequest{LocalPath: "/docs/new", CloudFolderToken: "f3"})
	require.NoError(t, err)
	assert.Equal(t, "t3", task.ID)

	c.Tasks(t.Context())
	c.TaskStatuses(t.Context())
	assert.Equal(t, 2, b.count("GET /sync/tasks"))
	assert.Equal(t, 2, b.count("GET /sync/tasks/status"))

	require.NoError(t, c.DeleteTask(t.Context(), "t3"))
	c.Tasks(t.Context())
	assert.Equal(t, 3, b.count("GET /sync/tasks"))
}

func TestConsole_RunInvalidatesStatusOnly(t *testing.T) {
	c, b := newTestConsole(t, nil)

	c.Tasks(t.Context())
	c.TaskStatuses(t.Context())
	require.NoError(t, c.RunTask(t.Context(), "t1"))

	c.Tasks(t.Context())
	c.TaskStatuses(t.Context())
	assert.Equal(t, 1, b.count("GET /sync/tasks"))
	assert.Equal(t, 2, b.count("GET /sync/tasks/status"))
}

func TestConsole_UpdatePatchesInPlace(t *testing.T) {
	c, b := newTestConsole(t, nil)
	c.Tasks(t.Context())

	enabled := true
	_, err := c.UpdateTask(t.Context(), "t2", &larkapi.UpdateTaskRequest{Enabled: &enabled})
	require.NoError(t, err)

	st := c.Tasks(t.Context())
	require.Len(t, st.Data, 2)
	assert.True(t, st.Data[0].Enabled)
	assert.True(t, st.Data[1].Enabled, "patched from the response")
	assert.Equal(t, "Team Wiki", st.Data[0].Name)
	assert.Equal(t, 1, b.count("GET /sync/tasks"), "no refetch after update")
}

func TestConsole_UpdateRejectsEmpty(t *testing.T) {
	c, b := newTestConsole(t, nil)

	_, err := c.UpdateTask(t.Context(), "t2", &larkapi.UpdateTaskRequest{})
	require.ErrorIs(t, err, larkapi.ErrEmptyUpdate)
	assert.Zero(t, b.count("PATCH /sync/tasks/{id}"))
}

func TestConsole_ResolveConflict(t *testing.T) {
	c, b := newTestConsole(t, nil)
	c.Conflicts(t.Context())

	err := c.ResolveConflict(t.Context(), "c2", larkapi.ResolveUseCloud)
	require.ErrorIs(t, err, ErrConflictResolved)
	assert.Zero(t, b.count("POST /conflicts/{id}/resolve"), "refused without a request")

	require.NoError(t, c.ResolveConflict(t.Context(), "c1", larkapi.ResolveUseLocal))
	assert.Equal(t, 1, b.count("POST /conflicts/{id}/resolve"))

	c.Conflicts(t.Context())
	assert.Equal(t, 2, b.count("GET /conflicts"))
}

func TestConsole_AuthConfigDrive(t *testing.T) {
	c, b := newTestConsole(t, nil)

	auth := c.Auth(t.Context())
	require.True(t, auth.Loaded)
	assert.True(t, auth.Data.Connected)

	cfg := c.Config(t.Context())
	require.True(t, cfg.Loaded)
	assert.Equal(t, 60, cfg.Data.SyncIntervalSeconds)

	tree := c.DriveTree(t.Context(), "")
	require.True(t, tree.Loaded)
	require.Len(t, tree.Data.Children, 1)

	c.DriveTree(t.Context(), "")
	c.DriveTree(t.Context(), "f1")
	assert.Equal(t, 2, b.count("GET /drive/tree"), "cached per folder")
}

func TestDashboard_Panels(t *testing.T) {
	c, _ := newTestConsole(t, nil)

	d := c.Dashboard(t.Context())
	require.Len(t, d.Tasks, 2)

	wiki := d.Tasks[0]
	require.NotNil(t, wiki.Status)
	require.NotNil(t, wiki.Progress.Progress)
	assert.Equal(t, 50, *wiki.Progress.Progress)
	assert.Nil(t, d.Tasks[1].Progress.Progress, "no status, no bar")

	assert.Equal(t, 1, d.OpenConflicts)
	assert.Equal(t, synclog.SourceDerived, d.LogSource)
	require.Len(t, d.Logs, 3)
	assert.Equal(t, "c.md", d.Logs[0].Path)
	assert.Equal(t, synclog.UnknownTaskName, d.Logs[0].TaskName)
	assert.Equal(t, "a.md", d.Logs[1].Path)
	assert.Equal(t, "b.md", d.Logs[2].Path, "falls back to started_at")
}

func TestDashboard_PanelErrorsAreIndependent(t *testing.T) {
	c, b := newTestConsole(t, nil)
	b.set(func() { b.failPath = "GET /conflicts" })

	d := c.Dashboard(t.Context())
	assert.Equal(t, "backend exploded", d.ConflictsError)
	assert.Empty(t, d.TasksError)
	assert.Len(t, d.Tasks, 2)
	assert.NotEmpty(t, d.Logs)
}

func TestDashboard_HistoryBeatsDerived(t *testing.T) {
	c, b := newTestConsole(t, nil)
	b.setHistory(`[{"task_id":"t1","task_name":"Team Wiki","timestamp":50,"status":"uploaded","path":"h.md"}]`)

	d := c.Dashboard(t.Context())
	assert.Equal(t, synclog.SourceHistory, d.LogSource)
	require.Len(t, d.Logs, 1)
	assert.Equal(t, "h.md", d.Logs[0].Path)
	assert.Equal(t, 1, b.count("GET /sync/logs/sync"))
}

func TestDashboard_LiveBeatsEverything(t *testing.T) {
	live := &fakeLive{
		entries: []larkapi.SyncLogEntry{{TaskID: "t1", Path: "live.md", Status: "uploaded"}},
		state:   livelog.StateConnected,
	}
	c, b := newTestConsole(t, live)
	b.setHistory(`[{"task_id":"t1","timestamp":50,"status":"uploaded","path":"h.md"}]`)

	d := c.Dashboard(t.Context())
	assert.Equal(t, synclog.SourceLive, d.LogSource)
	assert.Equal(t, livelog.StateConnected, d.LiveState)
	require.Len(t, d.Logs, 1)
	assert.Equal(t, "live.md", d.Logs[0].Path)
}

func TestLogCenter_PagesAndOptions(t *testing.T) {
	c, _ := newTestConsole(t, nil)

	pager := synclog.NewPager(2)
	view := c.LogCenter(t.Context(), pager)
	assert.Equal(t, synclog.SourceDerived, view.Source)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 2, view.TotalPages)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, []string{"downloaded", "failed", "uploaded"}, view.StatusOptions)

	pager.SetFilter(synclog.Filter{Status: "failed"})
	view = c.LogCenter(t.Context(), pager)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "b.md", view.Items[0].Path)
	assert.Equal(t, []string{"downloaded", "failed", "uploaded"}, view.StatusOptions, "options ignore the filter")
}

func TestWatchStatuses_IdleWithoutTasks(t *testing.T) {
	mux := http.NewServeMux()
	var statusHits atomic.Int32
	mux.HandleFunc("GET /sync/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "[]")
	})
	mux.HandleFunc("GET /sync/tasks/status", func(w http.ResponseWriter, r *http.Request) {
		statusHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "[]")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	api, err := larkapi.New(larkapi.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	c := New(api, Options{})

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	c.WatchStatuses(ctx, 10*time.Millisecond, nil)

	assert.Zero(t, statusHits.Load())
}

func TestWatchStatuses_PollsWithTasks(t *testing.T) {
	c, b := newTestConsole(t, nil)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WatchStatuses(ctx, 10*time.Millisecond, func(st resource.State[[]larkapi.SyncTaskStatus]) {
			calls.Add(1)
		})
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.GreaterOrEqual(t, b.count("GET /sync/tasks/status"), 3)
}

func TestWatchStatuses_RecoversAfterTasksFailure(t *testing.T) {
	c, b := newTestConsole(t, nil)
	b.set(func() { b.failPath = "GET /sync/tasks" })

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WatchStatuses(ctx, 10*time.Millisecond, nil)
	}()

	require.Eventually(t, func() bool { return b.count("GET /sync/tasks") >= 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, b.count("GET /sync/tasks/status"))
	assert.Equal(t, "backend exploded", c.Tasks(t.Context()).Error)

	b.set(func() { b.failPath = "" })
	assert.Eventually(t, func() bool { return b.count("GET /sync/tasks/status") >= 1 }, 10*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.True(t, c.Tasks(t.Context()).Loaded)
}
