package main

import (
	"errors"
	"fmt"

	"github.com/larksync/larksync-console/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Console and backend settings",
	}
	configCmd.AddCommand(newConfigCmdShow())
	configCmd.AddCommand(newConfigCmdPath())
	configCmd.AddCommand(newConfigCmdInit())
	rootCmd.AddCommand(configCmd)
}

func newConfigCmdShow() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved console config, secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var v any = cfg.Redacted()
			if remote {
				_, c, err := newConsole(cmd)
				if err != nil {
					return err
				}
				st := c.Config(cmd.Context())
				if st.Error != "" && !st.Loaded {
					return errors.New(st.Error)
				}
				v = st.Data
			}

			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), v)
			}
			out, err := yaml.Marshal(v)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "show the backend's settings instead")
	return cmd
}

func newConfigCmdPath() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath(cmd))
			return err
		},
	}
}

func newConfigCmdInit() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the resolved config to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if utils.FileExists(cfg.Path) && !force {
				return fmt.Errorf("config '%s' already exists, use --force to overwrite", cfg.Path)
			}
			if err := cfg.Save(cfg.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to '%s'\n", green.Render(cfg.Path))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	return cmd
}
