package larkapi

import (
	"math"
	"path/filepath"
	"time"
)

// SyncMode is the directionality policy of a task.
type SyncMode string

const (
	SyncModeBidirectional SyncMode = "bidirectional"
	SyncModeDownloadOnly  SyncMode = "download_only"
	SyncModeUploadOnly    SyncMode = "upload_only"
)

func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeBidirectional, SyncModeDownloadOnly, SyncModeUploadOnly:
		return true
	}
	return false
}

// UpdateMode controls how a changed document is pushed back to the cloud.
type UpdateMode string

const (
	UpdateModeAuto    UpdateMode = "auto"
	UpdateModePartial UpdateMode = "partial"
	UpdateModeFull    UpdateMode = "full"
)

func (m UpdateMode) Valid() bool {
	switch m {
	case UpdateModeAuto, UpdateModePartial, UpdateModeFull:
		return true
	}
	return false
}

// TaskState is the scheduler state of a task's current or last run.
type TaskState string

const (
	TaskStateIdle      TaskState = "idle"
	TaskStateRunning   TaskState = "running"
	TaskStateSuccess   TaskState = "success"
	TaskStateFailed    TaskState = "failed"
	TaskStateCancelled TaskState = "cancelled"
)

// ResolveAction is the user's choice for a conflict.
type ResolveAction string

const (
	ResolveUseLocal ResolveAction = "use_local"
	ResolveUseCloud ResolveAction = "use_cloud"
	ResolveKeepBoth ResolveAction = "keep_both"
)

func (a ResolveAction) Valid() bool {
	switch a {
	case ResolveUseLocal, ResolveUseCloud, ResolveKeepBoth:
		return true
	}
	return false
}

// SyncTask pairs a local directory with a cloud folder.
type SyncTask struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	LocalPath        string     `json:"local_path"`
	CloudFolderToken string     `json:"cloud_folder_token"`
	CloudFolderName  string     `json:"cloud_folder_name,omitempty"`
	SyncMode         SyncMode   `json:"sync_mode"`
	UpdateMode       UpdateMode `json:"update_mode"`
	Enabled          bool       `json:"enabled"`
	CreatedAt        float64    `json:"created_at"`
	UpdatedAt        float64    `json:"updated_at"`
}

// DisplayName is what surfaces show for the task.
func (t *SyncTask) DisplayName() string {
	switch {
	case t.Name != "":
		return t.Name
	case t.CloudFolderName != "":
		return t.CloudFolderName
	case t.LocalPath != "":
		return filepath.Base(t.LocalPath)
	}
	return t.ID
}

// CreateTaskRequest is the body of POST /sync/tasks.
type CreateTaskRequest struct {
	Name             string     `json:"name,omitempty"`
	LocalPath        string     `json:"local_path"`
	CloudFolderToken string     `json:"cloud_folder_token"`
	CloudFolderName  string     `json:"cloud_folder_name,omitempty"`
	SyncMode         SyncMode   `json:"sync_mode"`
	UpdateMode       UpdateMode `json:"update_mode"`
	Enabled          bool       `json:"enabled"`
}

// UpdateTaskRequest is a partial update; nil fields are left untouched.
type UpdateTaskRequest struct {
	Enabled    *bool       `json:"enabled,omitempty"`
	SyncMode   *SyncMode   `json:"sync_mode,omitempty"`
	UpdateMode *UpdateMode `json:"update_mode,omitempty"`
}

func (r *UpdateTaskRequest) Empty() bool {
	return r.Enabled == nil && r.SyncMode == nil && r.UpdateMode == nil
}

// Apply copies the set fields onto task.
func (r *UpdateTaskRequest) Apply(task *SyncTask) {
	if r.Enabled != nil {
		task.Enabled = *r.Enabled
	}
	if r.SyncMode != nil {
		task.SyncMode = *r.SyncMode
	}
	if r.UpdateMode != nil {
		task.UpdateMode = *r.UpdateMode
	}
}

// SyncFileEvent is one recent per-file outcome inside a status snapshot.
type SyncFileEvent struct {
	Path      string   `json:"path"`
	Status    string   `json:"status"`
	Message   string   `json:"message,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// SyncTaskStatus is the scheduler's snapshot for one task.
type SyncTaskStatus struct {
	TaskID         string          `json:"task_id"`
	State          TaskState       `json:"state"`
	StartedAt      *float64        `json:"started_at"`
	FinishedAt     *float64        `json:"finished_at"`
	TotalFiles     int             `json:"total_files"`
	CompletedFiles int             `json:"completed_files"`
	FailedFiles    int             `json:"failed_files"`
	SkippedFiles   int             `json:"skipped_files"`
	LastError      *string         `json:"last_error"`
	LastFiles      []SyncFileEvent `json:"last_files"`
}

// SyncLogEntry is the display unit of every log surface.
type SyncLogEntry struct {
	TaskID    string  `json:"task_id"`
	TaskName  string  `json:"task_name"`
	Timestamp float64 `json:"timestamp"`
	Status    string  `json:"status"`
	Path      string  `json:"path"`
	Message   string  `json:"message,omitempty"`
}

func (e *SyncLogEntry) Time() time.Time {
	return EpochTime(e.Timestamp)
}

// ConflictItem is a divergence between local and cloud content.
type ConflictItem struct {
	ID             string        `json:"id"`
	LocalPath      string        `json:"local_path"`
	CloudToken     string        `json:"cloud_token"`
	LocalHash      string        `json:"local_hash"`
	DBHash         string        `json:"db_hash"`
	CloudVersion   int           `json:"cloud_version"`
	DBVersion      int           `json:"db_version"`
	LocalPreview   string        `json:"local_preview,omitempty"`
	CloudPreview   string        `json:"cloud_preview,omitempty"`
	CreatedAt      float64       `json:"created_at"`
	Resolved       bool          `json:"resolved"`
	ResolvedAction ResolveAction `json:"resolved_action,omitempty"`
}

func (c *ConflictItem) CreatedAtTime() time.Time {
	return EpochTime(c.CreatedAt)
}

type resolveConflictRequest struct {
	Action ResolveAction `json:"action"`
}

// SyncLogQuery selects historical sync log entries.
type SyncLogQuery struct {
	Limit int
	Order string // "desc" (default) or "asc"
}

// FileLogQuery pages through the backend's own log file.
type FileLogQuery struct {
	Limit  int
	Offset int
	Level  string
	Search string
	Order  string
}

// FileLogLine is one parsed line of the backend log file.
type FileLogLine struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

type FileLogPage struct {
	Items  []FileLogLine `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// AuthStatus reports whether the backend holds a usable cloud account token.
type AuthStatus struct {
	Connected   bool     `json:"connected"`
	AccountName string   `json:"account_name,omitempty"`
	ExpiresAt   *float64 `json:"expires_at,omitempty"`
}

// ConsoleConfig is the backend's effective settings as the console sees them.
type ConsoleConfig struct {
	SyncIntervalSeconds   int            `json:"sync_interval_seconds,omitempty"`
	UploadIntervalSeconds int            `json:"upload_interval_seconds,omitempty"`
	DownloadDailyTime     string         `json:"download_daily_time,omitempty"`
	AutoStart             bool           `json:"auto_start"`
	Extra                 map[string]any `json:"extra,omitempty"`
}

// DriveNode is one entry of the cloud folder picker.
type DriveNode struct {
	Token    string      `json:"token"`
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Children []DriveNode `json:"children,omitempty"`
}

func (n *DriveNode) IsFolder() bool {
	return n.Type == "folder"
}

// EpochTime converts fractional epoch seconds to a time.Time.
func EpochTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
