package main

import (
	"context"
	"log/slog"

	"github.com/larksync/larksync-console/internal/tui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"ui"},
		Short:   "Open the interactive dashboard",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd)
		},
	})
}

func runDashboard(cmd *cobra.Command) error {
	cmd.SilenceUsage = true
	cfg, c, live, err := newLiveConsole(cmd)
	if err != nil {
		return err
	}

	// the alt screen owns the terminal
	if fileHandler != nil {
		prev := slog.Default()
		slog.SetDefault(slog.New(fileHandler))
		defer slog.SetDefault(prev)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	events := live.Subscribe()
	defer live.Unsubscribe(events)
	go live.Run(ctx)

	return tui.Run(ctx, tui.Options{
		Console:         c,
		Live:            events,
		RefreshInterval: cfg.PollInterval,
		PageSize:        cfg.PageSize,
	})
}
