package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/larksync/larksync-console/internal/config"
	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/larksync/larksync-console/internal/synclog"
	"github.com/spf13/cobra"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

func toneStyle(t synclog.Tone) lipgloss.Style {
	switch t {
	case synclog.ToneSuccess:
		return green
	case synclog.ToneInfo:
		return cyan
	case synclog.ToneWarning:
		return yellow
	case synclog.ToneDanger:
		return red
	}
	return lightGray
}

// newAPI builds a backend client from the resolved config.
func newAPI(cfg *config.Config) (*larkapi.Client, error) {
	return larkapi.New(larkapi.Options{
		BaseURL:    cfg.ServerURL,
		Token:      cfg.Token,
		RetryCount: 2,
	})
}

// newConsole builds a console with no live source attached.
func newConsole(cmd *cobra.Command) (*config.Config, *console.Console, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, console.New(api, console.Options{}), nil
}

// newLiveConsole attaches a live log client to the console. The caller runs
// it for as long as it wants pushed entries.
func newLiveConsole(cmd *cobra.Command) (*config.Config, *console.Console, *livelog.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	live := livelog.New(livelog.Options{
		URL:            api.LiveLogsURL(),
		Token:          cfg.Token,
		ReconnectDelay: cfg.ReconnectDelay,
	})
	return cfg, console.New(api, console.Options{Live: live}), live, nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", red.Bold(true).Render("ERROR"), larkapi.ErrorMessage(err))
}

func field(label string) string {
	return gray.Render(fmt.Sprintf("%-10s", label))
}

func relTime(t time.Time) string {
	if t.IsZero() || t.Unix() <= 0 {
		return "-"
	}
	return humanize.Time(t)
}

func epochRel(sec *float64) string {
	if sec == nil {
		return "-"
	}
	return relTime(larkapi.EpochTime(*sec))
}

func progressBar(p *int, width int) string {
	if p == nil {
		return gray.Render(strings.Repeat("·", width) + "    -")
	}
	filled := *p * width / 100
	return green.Render(strings.Repeat("█", filled)) +
		gray.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3d%%", *p)
}

func formatLogEntry(e *larkapi.SyncLogEntry) string {
	text, tone := synclog.StatusLabel(e.Status)
	line := fmt.Sprintf("%s  %s  %s  %s",
		gray.Render(e.Time().Format("2006-01-02 15:04:05")),
		toneStyle(tone).Render(fmt.Sprintf("%-10s", text)),
		cyan.Render(e.TaskName),
		e.Path,
	)
	if e.Message != "" {
		line += "  " + lightGray.Render(e.Message)
	}
	return line
}
