package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/larksync/larksync-console/internal/config"
	"github.com/larksync/larksync-console/internal/utils"
	"github.com/larksync/larksync-console/internal/version"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "LARKSYNC"

var (
	// logLevel is raised or lowered once the config is known.
	logLevel    = new(slog.LevelVar)
	logFile     = &logSink{}
	fileHandler slog.Handler
)

// logSink is the log file behind fileHandler. It starts at the default path
// and moves once the config names another state dir.
type logSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return len(p), nil
	}
	return s.file.Write(p)
}

// Open switches the sink to path. The old file stays open if path cannot be opened.
func (s *logSink) Open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil && s.path == path {
		return nil
	}
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	s.path, s.file = path, file
	return nil
}

func (s *logSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *logSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var rootCmd = &cobra.Command{
	Use:     "larksync",
	Short:   "LarkSync console",
	Long:    "Inspect and control a running LarkSync backend: tasks, progress, logs and conflicts.",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd)
	},
}

func init() {
	addPersistentFlags(rootCmd)
}

func addPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "console config file")
	flags.StringP("server", "s", config.DefaultServerURL, "LarkSync backend url")
	flags.String("token", "", "backend access token")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.Bool("json", false, "print machine readable json")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	if err := logFile.Open(config.DefaultLogFilePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logLevel.Set(slog.LevelInfo)
	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler = slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stderrHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, LARKSYNC_* env vars and flags,
// in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	path := resolveConfigPath(cmd)

	defaults := config.Default()
	v.SetDefault("server_url", defaults.ServerURL)
	v.SetDefault("token", defaults.Token)
	v.SetDefault("state_dir", defaults.StateDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("gateway_host", defaults.GatewayHost)
	v.SetDefault("gateway_port", defaults.GatewayPort)
	v.SetDefault("gateway_token", defaults.GatewayToken)
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("reconnect_delay", defaults.ReconnectDelay)
	v.SetDefault("page_size", defaults.PageSize)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server_url": "server",
		"token":      "token",
		"log_level":  "log-level",
	} {
		if f := cmd.Flag(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg := config.Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logLevel.Set(cfg.Level())
	if err := logFile.Open(cfg.LogFilePath()); err != nil {
		slog.Warn("log file unchanged", "path", cfg.LogFilePath(), "error", err)
	}
	return cfg, nil
}

// resolveConfigPath honors the --config flag, then LARKSYNC_CONFIG_PATH, then
// the default path.
func resolveConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath
}
