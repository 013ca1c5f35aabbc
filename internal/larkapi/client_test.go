package larkapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Token: "tok"})
	require.NoError(t, err)
	return c
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoServerURL)

	_, err = New(Options{BaseURL: "ftp://example.com"})
	assert.ErrorIs(t, err, ErrInvalidServerURL)

	c, err := New(Options{BaseURL: "http://127.0.0.1:8000/api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000/api", c.BaseURL())
	assert.Equal(t, "ws://127.0.0.1:8000/api/ws/logs", c.LiveLogsURL())
}

func TestToWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://lark.example.com/ws/logs", ToWebsocketURL("https://lark.example.com/ws/logs"))
	assert.Equal(t, "ws://localhost:8000/ws/logs", ToWebsocketURL("http://localhost:8000/ws/logs"))
	assert.Equal(t, "ws://already", ToWebsocketURL("ws://already"))
}

func TestListTasks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sync/tasks", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))
		writeJSON(w, http.StatusOK, `[{"id":"t1","local_path":"/docs/notes","cloud_folder_token":"fld1","sync_mode":"bidirectional","update_mode":"auto","enabled":true,"created_at":1700000000,"updated_at":1700000100.5}]`)
	})

	tasks, err := c.ListTasks(t.Context())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, SyncModeBidirectional, tasks[0].SyncMode)
	assert.Equal(t, "notes", tasks[0].DisplayName())
	assert.InDelta(t, 1700000100.5, tasks[0].UpdatedAt, 0.001)
}

func TestUpdateTask_SendsOnlySetFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/sync/tasks/t1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"enabled": false}, body)

		writeJSON(w, http.StatusOK, `{"id":"t1","enabled":false,"sync_mode":"download_only","update_mode":"full"}`)
	})

	enabled := false
	task, err := c.UpdateTask(t.Context(), "t1", &UpdateTaskRequest{Enabled: &enabled})
	require.NoError(t, err)
	assert.False(t, task.Enabled)

	_, err = c.UpdateTask(t.Context(), "t1", &UpdateTaskRequest{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = c.UpdateTask(t.Context(), "", &UpdateTaskRequest{Enabled: &enabled})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestSyncLogs_QueryParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sync/logs/sync", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		writeJSON(w, http.StatusOK, `[{"task_id":"t1","task_name":"Notes","timestamp":1700000300,"status":"downloaded","path":"a.md"}]`)
	})

	entries, err := c.SyncLogs(t.Context(), SyncLogQuery{Limit: 200})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "downloaded", entries[0].Status)
}

func TestFileLogs_QueryParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "100", q.Get("offset"))
		assert.Equal(t, "ERROR", q.Get("level"))
		assert.Equal(t, "upload", q.Get("search"))
		writeJSON(w, http.StatusOK, `{"items":[{"timestamp":"2026-01-01T00:00:00Z","level":"ERROR","message":"upload failed"}],"total":101,"limit":50,"offset":100}`)
	})

	page, err := c.FileLogs(t.Context(), FileLogQuery{Limit: 50, Offset: 100, Level: "ERROR", Search: "upload"})
	require.NoError(t, err)
	assert.Equal(t, 101, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "upload failed", page.Items[0].Message)
}

func TestResolveConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conflicts/c9/resolve", r.URL.Path)
		var body resolveConflictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, ResolveKeepBoth, body.Action)
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})

	require.NoError(t, c.ResolveConflict(t.Context(), "c9", ResolveKeepBoth))
	assert.ErrorIs(t, c.ResolveConflict(t.Context(), "c9", "overwrite"), ErrInvalidAction)
}

func TestErrors(t *testing.T) {
	t.Run("detail string", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"detail":"task not found"}`)
		})
		err := c.DeleteTask(t.Context(), "nope")
		require.Error(t, err)
		assert.Equal(t, "task not found", ErrorMessage(err))
		assert.True(t, IsNotFound(err))
	})

	t.Run("validation detail list", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","local_path"],"msg":"field required"},{"msg":"bad mode"}]}`)
		})
		_, err := c.CreateTask(t.Context(), &CreateTaskRequest{})
		assert.Equal(t, "field required; bad mode", ErrorMessage(err))
	})

	t.Run("structured detail", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, `{"detail": {"reason":  "locked"}}`)
		})
		_, err := c.ListTasks(t.Context())
		assert.Equal(t, `{"reason":"locked"}`, ErrorMessage(err))
	})

	t.Run("empty detail", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"detail":null}`)
		})
		_, err := c.ListTasks(t.Context())
		assert.Equal(t, "request failed (400)", ErrorMessage(err))
	})

	t.Run("no body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.ListConflicts(t.Context())
		assert.Equal(t, "request failed (502)", ErrorMessage(err))
	})

	t.Run("non json body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "<html>oops</html>")
		})
		_, err := c.ListTasks(t.Context())
		assert.Equal(t, "request failed (500)", ErrorMessage(err))
	})

	t.Run("malformed success body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{not json`)
		})
		_, err := c.ListTaskStatuses(t.Context())
		assert.Equal(t, "request failed (200)", ErrorMessage(err))
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		c, err := New(Options{BaseURL: srv.URL})
		require.NoError(t, err)
		_, err = c.ListTasks(t.Context())
		require.Error(t, err)
		assert.Contains(t, ErrorMessage(err), "list tasks")
	})
}

func TestErrorMessage_Nil(t *testing.T) {
	assert.Empty(t, ErrorMessage(nil))
}
