package gateway

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
)

const testToken = "gw-secret"

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(pattern string, status int, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		})
	}

	reply("GET /sync/tasks", 200, `[{"id":"t1","name":"Wiki","local_path":"/w","cloud_folder_token":"f1","sync_mode":"bidirectional","update_mode":"auto","enabled":true}]`)
	reply("GET /sync/tasks/status", 200, `[{"task_id":"t1","state":"running","total_files":4,"completed_files":1,"failed_files":0,"skipped_files":0,
		"last_files":[{"path":"a.md","status":"uploaded","timestamp":10},{"path":"b.md","status":"failed","timestamp":20}]}]`)
	reply("GET /sync/logs/sync", 200, `[]`)
	reply("GET /conflicts", 200, `[{"id":"c1","local_path":"/w/x","cloud_token":"d","local_hash":"a","db_hash":"b","cloud_version":2,"db_version":1,"created_at":1,"resolved":true}]`)
	reply("POST /sync/tasks/{id}/run", 200, `{"status":"ok"}`)
	reply("PATCH /sync/tasks/{id}", 200, `{"id":"t1","name":"Wiki","local_path":"/w","cloud_folder_token":"f1","sync_mode":"upload_only","update_mode":"auto","enabled":true}`)
	reply("POST /sync/tasks/missing/run", 404, `{"detail":"Task not found"}`)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, feed LiveFeed, rate limiter.Rate) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api, err := larkapi.New(larkapi.Options{BaseURL: backend(t).URL})
	require.NoError(t, err)

	var hub *LiveHub
	if feed != nil {
		hub = NewLiveHub(feed)
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go hub.Run(ctx)
	}

	return SetupRoutes(console.New(api, console.Options{}), hub, RouteConfig{Token: testToken, Rate: rate})
}

func do(t *testing.T, h http.Handler, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGateway_PublicRoutes(t *testing.T) {
	h := newTestRouter(t, nil, limiter.Rate{})

	w := do(t, h, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":"OK"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "LarkSync Console")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = do(t, h, http.MethodGet, "/nope", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	h := newTestRouter(t, nil, limiter.Rate{})

	w := do(t, h, http.MethodGet, "/v1/tasks", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), ErrCodeUnauthorized)

	w = do(t, h, http.MethodGet, "/v1/tasks?token="+testToken, "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateway_Dashboard(t *testing.T) {
	h := newTestRouter(t, nil, limiter.Rate{})

	w := do(t, h, http.MethodGet, "/v1/dashboard", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var d console.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	require.Len(t, d.Tasks, 1)
	require.NotNil(t, d.Tasks[0].Progress.Progress)
	assert.Equal(t, 25, *d.Tasks[0].Progress.Progress)
	assert.Equal(t, 0, d.OpenConflicts)
	assert.Len(t, d.Logs, 2)
	assert.EqualValues(t, "derived", d.LogSource)
}

func TestGateway_LogsFiltersAndPages(t *testing.T) {
	h := newTestRouter(t, nil, limiter.Rate{})

	w := do(t, h, http.MethodGet, "/v1/logs?status=failed&page_size=20", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var view console.LogCenterView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Total)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "b.md", view.Items[0].Path)
	assert.Equal(t, []string{"failed", "uploaded"}, view.StatusOptions)

	w = do(t, h, http.MethodGet, "/v1/logs?page_size=33", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/v1/logs?glob=%5Bbad", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGateway_TaskWrites(t *testing.T) {
	h := newTestRouter(t, nil, limiter.Rate{})

	w := do(t, h, http.MethodPost, "/v1/tasks/t1/run", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/v1/tasks/missing/run", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Task not found")
	assert.Contains(t, w.Body.String(), ErrCodeNotFound)

	w = do(t, h, http.MethodPatch, "/v1/tasks/t1", `{"sync_mode":"upload_only"}`, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"upload_only"`)

	w = do(t, h, http.MethodPatch, "/v1/tasks/t1", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPatch, "/v1/tasks/t1", `{"sync_mode":"sideways"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGateway_ResolveAlreadyResolved(t *testing.T) {
	h := newTestRouter(t, nil, limiter.Rate{})

	w := do(t, h, http.MethodGet, "/v1/conflicts", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/v1/conflicts/c1/resolve", `{"action":"use_local"}`, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), ErrCodeConflictResolved)

	w = do(t, h, http.MethodPost, "/v1/conflicts/c9/resolve", `{"action":"burn_it"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGateway_RateLimit(t *testing.T) {
	h := newTestRouter(t, nil, limiter.Rate{Period: time.Minute, Limit: 2})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", false).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", false).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/healthz", "", false).Code)
}

type fakeFeed struct {
	mu      sync.Mutex
	subs    []chan livelog.Event
	entries []larkapi.SyncLogEntry
}

func (f *fakeFeed) Subscribe() <-chan livelog.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan livelog.Event, 8)
	f.subs = append(f.subs, ch)
	return ch
}

func (f *fakeFeed) Unsubscribe(ch <-chan livelog.Event) {}

func (f *fakeFeed) Entries() []larkapi.SyncLogEntry { return f.entries }
func (f *fakeFeed) State() livelog.State            { return livelog.StateConnected }

func (f *fakeFeed) emit(ev livelog.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- ev
	}
}

func TestGateway_LiveRebroadcast(t *testing.T) {
	feed := &fakeFeed{entries: []larkapi.SyncLogEntry{{Path: "old.md", Status: "uploaded"}}}
	srv := httptest.NewServer(newTestRouter(t, feed, limiter.Rate{}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/logs/live?token=" + testToken
	conn, _, err := websocket.Dial(t.Context(), url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var snap LiveMessage
	require.NoError(t, wsjson.Read(t.Context(), conn, &snap))
	assert.Equal(t, MessageSnapshot, snap.Type)
	assert.Equal(t, livelog.StateConnected, snap.State)
	require.Len(t, snap.Entries, 1)

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.subs) == 1
	}, time.Second, 5*time.Millisecond)

	feed.emit(livelog.Event{State: livelog.StateConnected, Entry: &larkapi.SyncLogEntry{Path: "new.md"}})

	var msg LiveMessage
	require.NoError(t, wsjson.Read(t.Context(), conn, &msg))
	assert.Equal(t, MessageEntry, msg.Type)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, "new.md", msg.Entry.Path)
}

func TestServer_LockPreventsSecondGateway(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state", "gateway.lock")

	other := flock.New(lockPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0o755))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	api, err := larkapi.New(larkapi.Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	s := New(&Config{Addr: "127.0.0.1:0", LockPath: lockPath}, console.New(api, console.Options{}), nil)

	err = s.Start(t.Context())
	assert.ErrorIs(t, err, ErrGatewayRunning)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	api, err := larkapi.New(larkapi.Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	s := New(&Config{Addr: "127.0.0.1:0"}, console.New(api, console.Options{}), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
