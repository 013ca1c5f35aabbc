package main

import (
	"fmt"
	"io"
	"time"

	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/progress"
	"github.com/larksync/larksync-console/internal/resource"
	"github.com/larksync/larksync-console/internal/synclog"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the progress of every sync task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			d := c.Dashboard(cmd.Context())
			if wantJSON(cmd) && !watch {
				return printJSON(w, d)
			}
			printStatus(w, d)
			if !watch {
				return nil
			}

			if interval <= 0 {
				interval = cfg.PollInterval
			}
			c.WatchStatuses(cmd.Context(), interval, func(st resource.State[[]larkapi.SyncTaskStatus]) {
				tasks := c.Tasks(cmd.Context()).Data
				if wantJSON(cmd) {
					_ = printJSON(w, st)
					return
				}
				fmt.Fprintln(w)
				printStatusLines(w, tasks, st)
			})
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling while tasks exist")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "poll interval (defaults to the configured poll interval)")
	return cmd
}

func printStatus(w io.Writer, d console.Dashboard) {
	if d.TasksError != "" {
		fmt.Fprintf(w, "%s%s\n", field("Tasks"), red.Render(d.TasksError))
	}
	if len(d.Tasks) == 0 {
		fmt.Fprintln(w, gray.Render("No sync tasks configured."))
		return
	}

	fmt.Fprintf(w, "%s%s  %s\n", field("Overall"), progressBar(d.Summary.Progress, 30), countsLabel(d.Summary))
	if d.StatusError != "" {
		fmt.Fprintf(w, "%s%s\n", field("Status"), red.Render(d.StatusError))
	}
	fmt.Fprintf(w, "%s%d open\n", field("Conflicts"), d.OpenConflicts)
	fmt.Fprintln(w)

	for _, row := range d.Tasks {
		fmt.Fprintln(w, statusLine(row.Task, row.Status, row.Progress))
	}
}

func printStatusLines(w io.Writer, tasks []larkapi.SyncTask, st resource.State[[]larkapi.SyncTaskStatus]) {
	fmt.Fprintln(w, gray.Render(time.Now().Format("15:04:05")))
	if st.Error != "" {
		fmt.Fprintf(w, "%s%s\n", field("Status"), red.Render(st.Error))
	}

	byID := make(map[string]*larkapi.SyncTaskStatus, len(st.Data))
	for i := range st.Data {
		byID[st.Data[i].TaskID] = &st.Data[i]
	}
	for _, t := range tasks {
		status := byID[t.ID]
		fmt.Fprintln(w, statusLine(t, status, progress.Compute(status)))
	}
}

func statusLine(t larkapi.SyncTask, status *larkapi.SyncTaskStatus, p progress.TaskProgress) string {
	var state larkapi.TaskState
	if status != nil {
		state = status.State
	}
	text, tone := synclog.TaskStateLabel(state)
	return fmt.Sprintf("%-24s %s %s  %s",
		t.DisplayName(),
		toneStyle(tone).Render(fmt.Sprintf("%-10s", text)),
		progressBar(p.Progress, 20),
		countsLabel(p),
	)
}
