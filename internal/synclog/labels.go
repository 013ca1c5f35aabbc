package synclog

import "github.com/larksync/larksync-console/internal/larkapi"

// Tone is the colour family a surface uses for a status.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

type label struct {
	text string
	tone Tone
}

var taskStateLabels = map[larkapi.TaskState]label{
	larkapi.TaskStateIdle:      {"Idle", ToneNeutral},
	larkapi.TaskStateRunning:   {"Running", ToneInfo},
	larkapi.TaskStateSuccess:   {"Succeeded", ToneSuccess},
	larkapi.TaskStateFailed:    {"Failed", ToneDanger},
	larkapi.TaskStateCancelled: {"Cancelled", ToneWarning},
}

// file event statuses are free-form; unknown ones fall through to neutral
var eventStatusLabels = map[string]label{
	"downloaded": {"Downloaded", ToneSuccess},
	"uploaded":   {"Uploaded", ToneSuccess},
	"success":    {"Succeeded", ToneSuccess},
	"created":    {"Created", ToneSuccess},
	"updated":    {"Updated", ToneInfo},
	"deleted":    {"Deleted", ToneWarning},
	"skipped":    {"Skipped", ToneNeutral},
	"conflict":   {"Conflict", ToneWarning},
	"failed":     {"Failed", ToneDanger},
	"error":      {"Error", ToneDanger},
	"started":    {"Started", ToneInfo},
	"running":    {"Running", ToneInfo},
}

var syncModeLabels = map[larkapi.SyncMode]string{
	larkapi.SyncModeBidirectional: "Two-way",
	larkapi.SyncModeDownloadOnly:  "Download only",
	larkapi.SyncModeUploadOnly:    "Upload only",
}

var updateModeLabels = map[larkapi.UpdateMode]string{
	larkapi.UpdateModeAuto:    "Auto",
	larkapi.UpdateModePartial: "Partial",
	larkapi.UpdateModeFull:    "Full overwrite",
}

var resolveActionLabels = map[larkapi.ResolveAction]string{
	larkapi.ResolveUseLocal: "Keep local",
	larkapi.ResolveUseCloud: "Keep cloud",
	larkapi.ResolveKeepBoth: "Keep both",
}

func TaskStateLabel(s larkapi.TaskState) (string, Tone) {
	if l, ok := taskStateLabels[s]; ok {
		return l.text, l.tone
	}
	if s == "" {
		return "Not run", ToneNeutral
	}
	return string(s), ToneNeutral
}

func StatusLabel(status string) (string, Tone) {
	if l, ok := eventStatusLabels[status]; ok {
		return l.text, l.tone
	}
	return status, ToneNeutral
}

func SyncModeLabel(m larkapi.SyncMode) string {
	if l, ok := syncModeLabels[m]; ok {
		return l
	}
	return string(m)
}

func UpdateModeLabel(m larkapi.UpdateMode) string {
	if l, ok := updateModeLabels[m]; ok {
		return l
	}
	return string(m)
}

func ResolveActionLabel(a larkapi.ResolveAction) string {
	if l, ok := resolveActionLabels[a]; ok {
		return l
	}
	return string(a)
}
