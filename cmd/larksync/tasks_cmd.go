package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/progress"
	"github.com/larksync/larksync-console/internal/synclog"
	"github.com/spf13/cobra"
)

func init() {
	tasksCmd := newTasksCmd()
	tasksCmd.AddCommand(newTasksCmdList())
	tasksCmd.AddCommand(newTasksCmdCreate())
	tasksCmd.AddCommand(newTasksCmdUpdate())
	tasksCmd.AddCommand(newTasksCmdDelete())
	tasksCmd.AddCommand(newTasksCmdRun())
	rootCmd.AddCommand(tasksCmd)
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Manage sync tasks",
	}
}

func newTasksCmdList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sync tasks with their progress",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			d := c.Dashboard(cmd.Context())
			if d.TasksError != "" {
				return errors.New(d.TasksError)
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), d.Tasks)
			}
			printTasks(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func printTasks(w io.Writer, d console.Dashboard) {
	if len(d.Tasks) == 0 {
		fmt.Fprintln(w, gray.Render("No sync tasks configured."))
		return
	}

	var sb strings.Builder
	for idx, row := range d.Tasks {
		if idx > 0 {
			sb.WriteString("\n")
		}
		writeTaskRow(&sb, row)
	}
	if d.StatusError != "" {
		sb.WriteString("\n" + red.Render("status unavailable: "+d.StatusError) + "\n")
	}
	fmt.Fprint(w, sb.String())
}

func writeTaskRow(sb *strings.Builder, row console.TaskRow) {
	t := row.Task
	enabled := green.Render("enabled")
	if !t.Enabled {
		enabled = gray.Render("disabled")
	}

	var state larkapi.TaskState
	if row.Status != nil {
		state = row.Status.State
	}
	stateText, tone := synclog.TaskStateLabel(state)

	sb.WriteString(fmt.Sprintf("%s%s %s\n", field("Task"), cyan.Bold(true).Render(t.DisplayName()), gray.Render("("+t.ID+")")))
	sb.WriteString(fmt.Sprintf("%s%s\n", field("Local"), t.LocalPath))
	sb.WriteString(fmt.Sprintf("%s%s\n", field("Cloud"), cloudLabel(t)))
	sb.WriteString(fmt.Sprintf("%s%s · %s · %s\n", field("Mode"),
		synclog.SyncModeLabel(t.SyncMode), synclog.UpdateModeLabel(t.UpdateMode), enabled))
	sb.WriteString(fmt.Sprintf("%s%s\n", field("State"), toneStyle(tone).Render(stateText)))
	sb.WriteString(fmt.Sprintf("%s%s  %s\n", field("Progress"), progressBar(row.Progress.Progress, 30), countsLabel(row.Progress)))
	if row.Status != nil {
		sb.WriteString(fmt.Sprintf("%s%s\n", field("Last run"), epochRel(row.Status.FinishedAt)))
		if row.Status.LastError != nil && *row.Status.LastError != "" {
			sb.WriteString(fmt.Sprintf("%s%s\n", field("Error"), red.Render(*row.Status.LastError)))
		}
	}
}

func cloudLabel(t larkapi.SyncTask) string {
	if t.CloudFolderName != "" {
		return fmt.Sprintf("%s %s", t.CloudFolderName, gray.Render("("+t.CloudFolderToken+")"))
	}
	return t.CloudFolderToken
}

func countsLabel(p progress.TaskProgress) string {
	s := fmt.Sprintf("%d/%d done", p.Completed, p.EffectiveTotal)
	if p.Failed > 0 {
		s += ", " + red.Render(fmt.Sprintf("%d failed", p.Failed))
	}
	if p.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", p.Skipped)
	}
	return gray.Render(s)
}

func newTasksCmdCreate() *cobra.Command {
	var (
		name       string
		localPath  string
		folder     string
		folderName string
		syncMode   string
		updateMode string
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sync task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := &larkapi.CreateTaskRequest{
				Name:             name,
				LocalPath:        localPath,
				CloudFolderToken: folder,
				CloudFolderName:  folderName,
				SyncMode:         larkapi.SyncMode(syncMode),
				UpdateMode:       larkapi.UpdateMode(updateMode),
				Enabled:          !disabled,
			}
			if !body.SyncMode.Valid() {
				return fmt.Errorf("invalid --sync-mode %q", syncMode)
			}
			if !body.UpdateMode.Valid() {
				return fmt.Errorf("invalid --update-mode %q", updateMode)
			}

			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			task, err := c.CreateTask(cmd.Context(), body)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), task)
			}
			if task == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Created task")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task '%s' %s\n", cyan.Bold(true).Render(task.DisplayName()), gray.Render("("+task.ID+")"))
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&name, "name", "n", "", "task name")
	cmd.Flags().StringVarP(&localPath, "local", "l", "", "local directory")
	cmd.Flags().StringVarP(&folder, "folder", "f", "", "cloud folder token")
	cmd.Flags().StringVar(&folderName, "folder-name", "", "cloud folder display name")
	cmd.Flags().StringVar(&syncMode, "sync-mode", string(larkapi.SyncModeBidirectional), "bidirectional, download_only or upload_only")
	cmd.Flags().StringVar(&updateMode, "update-mode", string(larkapi.UpdateModeAuto), "auto, partial or full")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the task disabled")
	_ = cmd.MarkFlagRequired("local")
	_ = cmd.MarkFlagRequired("folder")
	return cmd
}

func newTasksCmdUpdate() *cobra.Command {
	var (
		enable     bool
		disable    bool
		syncMode   string
		updateMode string
	)

	cmd := &cobra.Command{
		Use:   "update [TASK_ID]",
		Short: "Change a task's enabled flag or modes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := &larkapi.UpdateTaskRequest{}
			switch {
			case enable && disable:
				return errors.New("--enable and --disable are mutually exclusive")
			case enable, disable:
				v := enable
				body.Enabled = &v
			}
			if syncMode != "" {
				m := larkapi.SyncMode(syncMode)
				if !m.Valid() {
					return fmt.Errorf("invalid --sync-mode %q", syncMode)
				}
				body.SyncMode = &m
			}
			if updateMode != "" {
				m := larkapi.UpdateMode(updateMode)
				if !m.Valid() {
					return fmt.Errorf("invalid --update-mode %q", updateMode)
				}
				body.UpdateMode = &m
			}
			if body.Empty() {
				return errors.New("nothing to update")
			}

			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			task, err := c.UpdateTask(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), task)
			}
			name := args[0]
			if task != nil {
				name = task.DisplayName()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task '%s'\n", cyan.Bold(true).Render(name))
			return nil
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "enable the task")
	cmd.Flags().BoolVar(&disable, "disable", false, "disable the task")
	cmd.Flags().StringVar(&syncMode, "sync-mode", "", "bidirectional, download_only or upload_only")
	cmd.Flags().StringVar(&updateMode, "update-mode", "", "auto, partial or full")
	return cmd
}

func newTasksCmdDelete() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete [TASK_ID]",
		Aliases: []string{"rm"},
		Short:   "Delete a sync task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if !yes && !confirm(cmd, fmt.Sprintf("Delete task %s? Local and cloud files are left in place.", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}

			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", green.Render(id))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newTasksCmdRun() *cobra.Command {
	return &cobra.Command{
		Use:   "run [TASK_ID]",
		Short: "Start a sync run now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}
			if err := c.RunTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sync started for %s\n", green.Render(args[0]))
			return nil
		},
	}
}

// confirm asks a yes/no question on the command's stdin. Anything but y/yes is no.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s ", yellow.Render(prompt), gray.Render("[y/N]"))
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
