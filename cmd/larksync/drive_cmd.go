package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/spf13/cobra"
)

func init() {
	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "Browse the cloud drive",
	}
	driveCmd.AddCommand(newDriveCmdTree())
	rootCmd.AddCommand(driveCmd)
}

func newDriveCmdTree() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "tree [FOLDER_TOKEN]",
		Short: "Show a cloud folder and its children",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var folder string
			if len(args) > 0 {
				folder = args[0]
			}

			cmd.SilenceUsage = true
			_, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			st := c.DriveTree(cmd.Context(), folder)
			if st.Error != "" && !st.Loaded {
				return errors.New(st.Error)
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), st.Data)
			}
			if st.Data == nil {
				fmt.Fprintln(cmd.OutOrStdout(), gray.Render("Empty folder."))
				return nil
			}
			printDriveNode(cmd.OutOrStdout(), st.Data, 0, depth)
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 3, "levels to print")
	return cmd
}

func printDriveNode(w io.Writer, n *larkapi.DriveNode, level, maxDepth int) {
	name := n.Name
	if n.IsFolder() {
		name = cyan.Bold(true).Render(name + "/")
	}
	fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", level), name, gray.Render(n.Token))

	if level+1 >= maxDepth {
		if len(n.Children) > 0 {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", level+1), gray.Render(fmt.Sprintf("… %d more", len(n.Children))))
		}
		return
	}
	for i := range n.Children {
		printDriveNode(w, &n.Children[i], level+1, maxDepth)
	}
}
