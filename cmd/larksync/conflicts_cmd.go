package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/synclog"
	"github.com/spf13/cobra"
)

func init() {
	conflictsCmd := newConflictsCmd()
	conflictsCmd.AddCommand(newConflictsCmdList())
	conflictsCmd.AddCommand(newConflictsCmdResolve())
	rootCmd.AddCommand(conflictsCmd)
}

func newConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conflicts",
		Aliases: []string{"conflict"},
		Short:   "Review and resolve sync conflicts",
	}
}

func newConflictsCmdList() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conflicts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			st := c.Conflicts(cmd.Context())
			if st.Error != "" && !st.Loaded {
				return errors.New(st.Error)
			}

			items := make([]larkapi.ConflictItem, 0, len(st.Data))
			for _, item := range st.Data {
				if all || !item.Resolved {
					items = append(items, item)
				}
			}

			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(w, green.Render("No conflicts."))
				return nil
			}

			var sb strings.Builder
			for idx, item := range items {
				if idx > 0 {
					sb.WriteString("\n")
				}
				state := yellow.Render("open")
				if item.Resolved {
					state = green.Render("resolved: " + synclog.ResolveActionLabel(item.ResolvedAction))
				}
				sb.WriteString(fmt.Sprintf("%s%s\n", field("ID"), cyan.Render(item.ID)))
				sb.WriteString(fmt.Sprintf("%s%s\n", field("Path"), item.LocalPath))
				sb.WriteString(fmt.Sprintf("%s%s\n", field("State"), state))
				sb.WriteString(fmt.Sprintf("%scloud v%d · synced v%d\n", field("Versions"), item.CloudVersion, item.DBVersion))
				sb.WriteString(fmt.Sprintf("%s%s\n", field("Detected"), relTime(item.CreatedAtTime())))
				if item.LocalPreview != "" {
					sb.WriteString(fmt.Sprintf("%s%s\n", field("Local"), lightGray.Render(firstLine(item.LocalPreview))))
				}
				if item.CloudPreview != "" {
					sb.WriteString(fmt.Sprintf("%s%s\n", field("Cloud"), lightGray.Render(firstLine(item.CloudPreview))))
				}
			}
			fmt.Fprint(w, sb.String())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include resolved conflicts")
	return cmd
}

func newConflictsCmdResolve() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "resolve [CONFLICT_ID] [use_local|use_cloud|keep_both]",
		Short: "Resolve a conflict",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, action := args[0], larkapi.ResolveAction(args[1])
			if !action.Valid() {
				return fmt.Errorf("invalid action %q: want use_local, use_cloud or keep_both", args[1])
			}

			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			// load the list so an already resolved conflict is refused locally
			c.Conflicts(cmd.Context())

			label := synclog.ResolveActionLabel(action)
			if !yes && !confirm(cmd, fmt.Sprintf("%s for conflict %s?", label, id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}

			if err := c.ResolveConflict(cmd.Context(), id, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s: %s\n", green.Render(id), label)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return line
}
