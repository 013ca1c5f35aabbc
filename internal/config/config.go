// Package config holds the console's own settings. The backend's settings are
// read over the API and never stored here.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultStateDir    = filepath.Join(home, ".larksync")
	DefaultConfigPath  = filepath.Join(DefaultStateDir, "console.json")
	DefaultLogFilePath = filepath.Join(DefaultStateDir, "logs", "console.log")
)

const (
	DefaultServerURL      = "http://127.0.0.1:8000"
	DefaultGatewayHost    = "127.0.0.1"
	DefaultGatewayPort    = 8765
	DefaultPollInterval   = 5 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultPageSize       = 50
	DefaultLogLevel       = "info"

	lockFileName = "gateway.lock"
)

var (
	ErrInvalidLogLevel = errors.New("log level must be debug, info, warn or error")
	ErrInvalidPort     = errors.New("gateway port must be between 1 and 65535")
	ErrInvalidPageSize = errors.New("page size must be 20, 50 or 100")
)

type Config struct {
	ServerURL      string        `json:"server_url" mapstructure:"server_url" yaml:"server_url"`
	Token          string        `json:"token,omitempty" mapstructure:"token" yaml:"token,omitempty"`
	StateDir       string        `json:"state_dir" mapstructure:"state_dir" yaml:"state_dir"`
	LogLevel       string        `json:"log_level" mapstructure:"log_level" yaml:"log_level"`
	GatewayHost    string        `json:"gateway_host" mapstructure:"gateway_host" yaml:"gateway_host"`
	GatewayPort    int           `json:"gateway_port" mapstructure:"gateway_port" yaml:"gateway_port"`
	GatewayToken   string        `json:"gateway_token,omitempty" mapstructure:"gateway_token" yaml:"gateway_token,omitempty"`
	PollInterval   time.Duration `json:"poll_interval" mapstructure:"poll_interval" yaml:"poll_interval"`
	ReconnectDelay time.Duration `json:"reconnect_delay" mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	PageSize       int           `json:"page_size" mapstructure:"page_size" yaml:"page_size"`
	Path           string        `json:"-" mapstructure:"-" yaml:"-"`
}

// Default returns a config with every field at its default.
func Default() *Config {
	return &Config{
		ServerURL:      DefaultServerURL,
		StateDir:       DefaultStateDir,
		LogLevel:       DefaultLogLevel,
		GatewayHost:    DefaultGatewayHost,
		GatewayPort:    DefaultGatewayPort,
		PollInterval:   DefaultPollInterval,
		ReconnectDelay: DefaultReconnectDelay,
		PageSize:       DefaultPageSize,
		Path:           DefaultConfigPath,
	}
}

// Validate fills zero fields with defaults, normalizes the server url and
// paths, and rejects values no surface can work with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	serverURL, err := larkapi.NormalizeBaseURL(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	c.ServerURL = serverURL

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.StateDir, err = utils.ResolvePath(c.StateDir); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.GatewayHost == "" {
		c.GatewayHost = DefaultGatewayHost
	}
	if c.GatewayPort == 0 {
		c.GatewayPort = DefaultGatewayPort
	}
	if c.GatewayPort < 0 || c.GatewayPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.GatewayPort)
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}

	switch c.PageSize {
	case 0:
		c.PageSize = DefaultPageSize
	case 20, 50, 100:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, c.PageSize)
	}

	return nil
}

// GatewayAddr is the listen address of the local gateway.
func (c *Config) GatewayAddr() string {
	return net.JoinHostPort(c.GatewayHost, strconv.Itoa(c.GatewayPort))
}

// LogFilePath is where the console writes its log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.StateDir, "logs", "console.log")
}

// LockPath is the lock file that keeps a second gateway off this state dir.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, lockFileName)
}

func (c *Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Token = utils.MaskSecret(c.Token)
	cp.GatewayToken = utils.MaskSecret(c.GatewayToken)
	return &cp
}

func (c *Config) Save(path string) error {
	if path == "" {
		path = c.Path
	}
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// tokens live in this file
	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
}
