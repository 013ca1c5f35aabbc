package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/larksync/larksync-console/internal/synclog"
	"github.com/spf13/cobra"
)

func init() {
	logsCmd := newLogsCmd()
	logsCmd.AddCommand(newLogsCmdFile())
	rootCmd.AddCommand(logsCmd)
}

func newLogsCmd() *cobra.Command {
	var (
		filter   synclog.Filter
		page     int
		pageSize int
		follow   bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the sync log",
		Long:  "Show the sync log from the best available source: live push, backend history, or task status snapshots.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.PathGlob != "" && !synclog.ValidGlob(filter.PathGlob) {
				return fmt.Errorf("invalid --glob %q", filter.PathGlob)
			}
			if cmd.Flags().Changed("page-size") && !slices.Contains(synclog.PageSizes, pageSize) {
				return fmt.Errorf("--page-size must be one of %v", synclog.PageSizes)
			}

			cmd.SilenceUsage = true
			if follow {
				return followLogs(cmd, filter)
			}

			cfg, c, err := newConsole(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("page-size") {
				pageSize = cfg.PageSize
			}

			pager := synclog.NewPager(pageSize)
			pager.SetFilter(filter)
			pager.SetPage(page)

			view := c.LogCenter(cmd.Context(), pager)
			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, view)
			}
			if view.Error != "" && len(view.Items) == 0 {
				return errors.New(view.Error)
			}

			for i := range view.Items {
				fmt.Fprintln(w, formatLogEntry(&view.Items[i]))
			}
			if view.Total == 0 {
				fmt.Fprintln(w, gray.Render("No log entries."))
			}
			fmt.Fprintln(w, gray.Render(fmt.Sprintf("source: %s · page %d/%d · %d entries",
				view.Source, view.Page.Page, view.TotalPages, view.Total)))
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVar(&filter.Status, "status", "", "only entries with this status")
	cmd.Flags().StringVarP(&filter.Search, "search", "q", "", "case-insensitive text in path, task or message")
	cmd.Flags().StringVarP(&filter.PathGlob, "glob", "g", "", "path glob, e.g. 'docs/**/*.md'")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", synclog.DefaultPageSize, "entries per page (20, 50 or 100)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream live entries as they arrive")
	return cmd
}

// followLogs prints every pushed entry that passes filter until ctx is done.
func followLogs(cmd *cobra.Command, filter synclog.Filter) error {
	_, _, live, err := newLiveConsole(cmd)
	if err != nil {
		return err
	}

	events := live.Subscribe()
	defer live.Unsubscribe(events)
	go live.Run(cmd.Context())

	w := cmd.OutOrStdout()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Entry == nil {
				if !wantJSON(cmd) {
					fmt.Fprintln(cmd.ErrOrStderr(), liveStateLabel(ev.State))
				}
				continue
			}
			if !filter.Match(ev.Entry) {
				continue
			}
			if wantJSON(cmd) {
				if err := printJSON(w, ev.Entry); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(w, formatLogEntry(ev.Entry))
		}
	}
}

func liveStateLabel(s livelog.State) string {
	switch s {
	case livelog.StateConnected:
		return green.Render("● live")
	case livelog.StateConnecting:
		return yellow.Render("● connecting")
	}
	return red.Render("● disconnected, retrying")
}

func newLogsCmdFile() *cobra.Command {
	var q larkapi.FileLogQuery

	cmd := &cobra.Command{
		Use:   "file",
		Short: "Page through the backend's own log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			res, err := c.FileLogs(cmd.Context(), q)
			if err != nil {
				return err
			}
			if res == nil {
				res = &larkapi.FileLogPage{}
			}
			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, res)
			}

			for _, line := range res.Items {
				fmt.Fprintf(w, "%s  %s  %s\n", gray.Render(line.Timestamp), levelStyle(line.Level), line.Message)
			}
			fmt.Fprintln(w, gray.Render(fmt.Sprintf("%d-%d of %d", res.Offset+min(1, len(res.Items)), res.Offset+len(res.Items), res.Total)))
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 100, "lines per page")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "lines to skip")
	cmd.Flags().StringVarP(&q.Level, "level", "l", "", "only lines at this level")
	cmd.Flags().StringVarP(&q.Search, "search", "q", "", "text to search for")
	cmd.Flags().StringVar(&q.Order, "order", "desc", "asc or desc")
	return cmd
}

func levelStyle(level string) string {
	s := fmt.Sprintf("%-7s", level)
	switch level {
	case "ERROR", "CRITICAL":
		return red.Render(s)
	case "WARNING", "WARN":
		return yellow.Render(s)
	case "DEBUG":
		return gray.Render(s)
	}
	return cyan.Render(s)
}
