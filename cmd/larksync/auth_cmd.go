package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Cloud account connection",
	}
	authCmd.AddCommand(newAuthCmdStatus())
	rootCmd.AddCommand(authCmd)
}

func newAuthCmdStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the backend holds a usable cloud token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, c, err := newConsole(cmd)
			if err != nil {
				return err
			}

			st := c.Auth(cmd.Context())
			if st.Error != "" && !st.Loaded {
				return errors.New(st.Error)
			}
			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, st.Data)
			}

			fmt.Fprintf(w, "%s%s\n", field("Backend"), cfg.ServerURL)
			if st.Data == nil || !st.Data.Connected {
				fmt.Fprintf(w, "%s%s\n", field("Account"), red.Render("not connected"))
				return nil
			}
			account := st.Data.AccountName
			if account == "" {
				account = "connected"
			}
			fmt.Fprintf(w, "%s%s\n", field("Account"), green.Render(account))
			fmt.Fprintf(w, "%s%s\n", field("Expires"), epochRel(st.Data.ExpiresAt))
			return nil
		},
	}
}
