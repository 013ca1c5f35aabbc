package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/larksync/larksync-console/internal/gateway"
	"github.com/larksync/larksync-console/internal/utils"
	"github.com/larksync/larksync-console/internal/version"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var addr string
	var gatewayToken string
	var rate string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the console views over local http",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r limiter.Rate
			if rate != "" {
				parsed, err := limiter.NewRateFromFormatted(rate)
				if err != nil {
					return fmt.Errorf("invalid --rate %q: %w", rate, err)
				}
				r = parsed
			}

			cmd.SilenceUsage = true
			slog.Info("larksync", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			cfg, c, live, err := newLiveConsole(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.GatewayAddr()
			}
			if gatewayToken == "" {
				gatewayToken = cfg.GatewayToken
			}
			slog.Info("gateway config", "backend", cfg.ServerURL, "token", utils.MaskSecret(gatewayToken))

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go live.Run(ctx)

			srv := gateway.New(&gateway.Config{
				Addr:     addr,
				Token:    gatewayToken,
				LockPath: cfg.LockPath(),
				Rate:     r,
			}, c, live)

			defer slog.Info("Bye!")
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("gateway start", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (defaults to gateway_host:gateway_port)")
	cmd.Flags().StringVarP(&gatewayToken, "gateway-token", "t", "", "bearer token clients must send")
	cmd.Flags().StringVar(&rate, "rate", "", "request rate limit per client, e.g. 20-S or 600-M")
	return cmd
}
