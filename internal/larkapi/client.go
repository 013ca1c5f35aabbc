package larkapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/larksync/larksync-console/internal/version"
)

const (
	HeaderRequestID = "X-Request-Id"

	pathTasks       = "/sync/tasks"
	pathTask        = "/sync/tasks/{id}"
	pathTaskRun     = "/sync/tasks/{id}/run"
	pathTaskStatus  = "/sync/tasks/status"
	pathSyncLogs    = "/sync/logs/sync"
	pathFileLogs    = "/sync/logs/file"
	pathConflicts   = "/conflicts"
	pathResolve     = "/conflicts/{id}/resolve"
	pathAuthStatus  = "/auth/status"
	pathConfig      = "/config"
	pathDriveTree   = "/drive/tree"
	pathLiveLogs    = "/ws/logs"
	defaultTimeout  = 15 * time.Second
	retryInterval   = 500 * time.Millisecond
	defaultLogOrder = "desc"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RetryCount applies to idempotent reads only.
	RetryCount int
}

// Client talks to the LarkSync backend.
type Client struct {
	http    *req.Client
	baseURL string
	token   string
	retries int
}

// New creates a backend client
func New(opts Options) (*Client, error) {
	baseURL, err := NormalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := req.C().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			r.SetHeader(HeaderRequestID, uuid.NewString())
			return nil
		})

	if opts.Token != "" {
		httpClient.SetCommonBearerAuthToken(opts.Token)
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   opts.Token,
		retries: max(opts.RetryCount, 0),
	}, nil
}

// BaseURL returns the normalized backend url
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the bearer token, if any
func (c *Client) Token() string {
	return c.token
}

// LiveLogsURL is the WebSocket endpoint for live log pushes.
func (c *Client) LiveLogsURL() string {
	return ToWebsocketURL(c.baseURL + pathLiveLogs)
}

// read starts an idempotent request that may be retried
func (c *Client) read(ctx context.Context) *req.Request {
	r := c.http.R().SetContext(ctx)
	if c.retries > 0 {
		r.SetRetryCount(c.retries).SetRetryFixedInterval(retryInterval)
	}
	return r
}

func (c *Client) write(ctx context.Context) *req.Request {
	return c.http.R().SetContext(ctx)
}

// ListTasks returns every configured task.
func (c *Client) ListTasks(ctx context.Context) (tasks []SyncTask, err error) {
	resp, err := c.read(ctx).
		SetSuccessResult(&tasks).
		Get(pathTasks)

	if err := handleAPIError(resp, err, "list tasks"); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, body *CreateTaskRequest) (task *SyncTask, err error) {
	resp, err := c.write(ctx).
		SetBody(body).
		SetSuccessResult(&task).
		Post(pathTasks)

	if err := handleAPIError(resp, err, "create task"); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies a partial update and returns the task as stored.
func (c *Client) UpdateTask(ctx context.Context, id string, body *UpdateTaskRequest) (task *SyncTask, err error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if body == nil || body.Empty() {
		return nil, ErrEmptyUpdate
	}

	resp, err := c.write(ctx).
		SetPathParam("id", id).
		SetBody(body).
		SetSuccessResult(&task).
		Patch(pathTask)

	if err := handleAPIError(resp, err, "update task"); err != nil {
		return nil, err
	}
	return task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	resp, err := c.write(ctx).
		SetPathParam("id", id).
		Delete(pathTask)

	return handleAPIError(resp, err, "delete task")
}

// RunTask asks the scheduler to sync the task now.
func (c *Client) RunTask(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	resp, err := c.write(ctx).
		SetPathParam("id", id).
		Post(pathTaskRun)

	return handleAPIError(resp, err, "run task")
}

func (c *Client) ListTaskStatuses(ctx context.Context) (statuses []SyncTaskStatus, err error) {
	resp, err := c.read(ctx).
		SetSuccessResult(&statuses).
		Get(pathTaskStatus)

	if err := handleAPIError(resp, err, "list task status"); err != nil {
		return nil, err
	}
	return statuses, nil
}

// SyncLogs returns historical sync log entries, newest first unless q.Order says otherwise.
func (c *Client) SyncLogs(ctx context.Context, q SyncLogQuery) (entries []SyncLogEntry, err error) {
	order := q.Order
	if order == "" {
		order = defaultLogOrder
	}

	r := c.read(ctx).SetQueryParam("order", order)
	if q.Limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}

	resp, err := r.SetSuccessResult(&entries).Get(pathSyncLogs)
	if err := handleAPIError(resp, err, "sync logs"); err != nil {
		return nil, err
	}
	return entries, nil
}

// FileLogs pages through the backend's system log.
func (c *Client) FileLogs(ctx context.Context, q FileLogQuery) (page *FileLogPage, err error) {
	order := q.Order
	if order == "" {
		order = defaultLogOrder
	}

	r := c.read(ctx).
		SetQueryParam("order", order).
		SetQueryParam("offset", strconv.Itoa(max(q.Offset, 0)))
	if q.Limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}
	if q.Level != "" {
		r.SetQueryParam("level", q.Level)
	}
	if q.Search != "" {
		r.SetQueryParam("search", q.Search)
	}

	resp, err := r.SetSuccessResult(&page).Get(pathFileLogs)
	if err := handleAPIError(resp, err, "file logs"); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) ListConflicts(ctx context.Context) (conflicts []ConflictItem, err error) {
	resp, err := c.read(ctx).
		SetSuccessResult(&conflicts).
		Get(pathConflicts)

	if err := handleAPIError(resp, err, "list conflicts"); err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (c *Client) ResolveConflict(ctx context.Context, id string, action ResolveAction) error {
	if id == "" {
		return ErrMissingID
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	resp, err := c.write(ctx).
		SetPathParam("id", id).
		SetBody(&resolveConflictRequest{Action: action}).
		Post(pathResolve)

	return handleAPIError(resp, err, "resolve conflict")
}

func (c *Client) AuthStatus(ctx context.Context) (status *AuthStatus, err error) {
	resp, err := c.read(ctx).
		SetSuccessResult(&status).
		Get(pathAuthStatus)

	if err := handleAPIError(resp, err, "auth status"); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) Config(ctx context.Context) (cfg *ConsoleConfig, err error) {
	resp, err := c.read(ctx).
		SetSuccessResult(&cfg).
		Get(pathConfig)

	if err := handleAPIError(resp, err, "config"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DriveTree lists the children of a cloud folder; an empty token means the root.
func (c *Client) DriveTree(ctx context.Context, folderToken string) (node *DriveNode, err error) {
	r := c.read(ctx)
	if folderToken != "" {
		r.SetQueryParam("folder_token", folderToken)
	}

	resp, err := r.SetSuccessResult(&node).Get(pathDriveTree)
	if err := handleAPIError(resp, err, "drive tree"); err != nil {
		return nil, err
	}
	return node, nil
}

// NormalizeBaseURL validates an http(s) url and strips the trailing slash.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoServerURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidServerURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidServerURL
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// ToWebsocketURL converts an http(s) url to ws(s)
func ToWebsocketURL(u string) string {
	if strings.HasPrefix(u, "https://") {
		return "wss://" + u[len("https://"):]
	} else if strings.HasPrefix(u, "http://") {
		return "ws://" + u[len("http://"):]
	}
	return u
}
