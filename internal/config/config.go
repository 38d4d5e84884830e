// Package config provides configuration management for walletlink.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Home      string          `yaml:"home"`
	Network   NetworkConfig   `yaml:"network"`
	Session   SessionConfig   `yaml:"session"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Keystore  KeystoreConfig  `yaml:"keystore"`
	Watch     WatchConfig     `yaml:"watch"`
	Backend   BackendConfig   `yaml:"backend"`
	Selection SelectionConfig `yaml:"selection"`
	API       APIConfig       `yaml:"api"`
	Notify    NotifyConfig    `yaml:"notify"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NetworkConfig defines the endpoint adapters connect to.
type NetworkConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// SessionConfig defines session manager behavior.
type SessionConfig struct {
	AutoConnect      bool `yaml:"auto_connect"`
	RedactHead       int  `yaml:"redact_head"`
	RedactTail       int  `yaml:"redact_tail"`
	HostReadyDelayMS int  `yaml:"host_ready_delay_ms"`
}

// RefreshConfig defines the periodic refresh tasks.
type RefreshConfig struct {
	AccountsInterval time.Duration `yaml:"accounts_interval"`
	TradesInterval   time.Duration `yaml:"trades_interval"`
	Overlap          string        `yaml:"overlap"`
}

// KeystoreConfig defines the encrypted mnemonic keystore used by the
// keystore provider.
type KeystoreConfig struct {
	Path    string `yaml:"path"`
	Account uint32 `yaml:"account"`
	Index   uint32 `yaml:"index"`
}

// WatchConfig defines the watch-only provider.
type WatchConfig struct {
	Address string `yaml:"address"`
}

// BackendConfig defines the account data backend.
type BackendConfig struct {
	APIURL         string  `yaml:"api_url"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// SelectionConfig defines where the provider choice is persisted.
type SelectionConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// APIConfig defines the read-only status server.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// NotifyConfig defines optional push delivery of notifications.
type NotifyConfig struct {
	PushURL string `yaml:"push_url"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	JSON       bool   `yaml:"json"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads the config file at path, falling back to defaults when
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return nil, linkerr.WithDetails(
		linkerr.Wrap(fmt.Errorf("%w: %w", linkerr.ErrConfigInvalid, err), "loading %s", path),
		map[string]string{"path": path},
	)
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// LoadDotEnv loads KEY=VALUE pairs from <home>/.env into the process
// environment. Variables already set are not overridden. A missing file is
// not an error.
func LoadDotEnv(home string) error {
	path := filepath.Join(home, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Validate checks the configuration for values the runtime cannot use.
func (c *Config) Validate() error {
	var problems []string

	if c.Network.Endpoint == "" {
		problems = append(problems, "network.endpoint is required")
	} else if err := ValidateEndpoint(c.Network.Endpoint); err != nil {
		problems = append(problems, fmt.Sprintf("network.endpoint: %v", err))
	}
	if err := ValidateEndpoint(c.Backend.APIURL); err != nil {
		problems = append(problems, fmt.Sprintf("backend.api_url: %v", err))
	}

	if c.Session.RedactHead < 0 || c.Session.RedactTail < 0 {
		problems = append(problems, "session.redact_head and session.redact_tail must not be negative")
	}
	if c.Session.HostReadyDelayMS < 0 {
		problems = append(problems, "session.host_ready_delay_ms must not be negative")
	}

	if c.Refresh.AccountsInterval <= 0 {
		problems = append(problems, "refresh.accounts_interval must be positive")
	}
	if c.Refresh.TradesInterval <= 0 {
		problems = append(problems, "refresh.trades_interval must be positive")
	}
	switch c.Refresh.Overlap {
	case OverlapSkip, OverlapAllow:
	default:
		problems = append(problems, fmt.Sprintf("refresh.overlap %q must be %q or %q", c.Refresh.Overlap, OverlapSkip, OverlapAllow))
	}

	if c.Backend.RatePerSecond < 0 || c.Backend.Burst < 0 {
		problems = append(problems, "backend.rate_per_second and backend.burst must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}

	details := make(map[string]string, len(problems))
	for i, p := range problems {
		details[fmt.Sprintf("problem_%d", i+1)] = p
	}
	return linkerr.WithSuggestion(
		linkerr.WithDetails(linkerr.Wrap(linkerr.ErrConfigInvalid, "%s", problems[0]), details),
		"fix the value in config.yaml or run 'walletlink config init --force'",
	)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the walletlink home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetEndpoint returns the network endpoint.
func (c *Config) GetEndpoint() string {
	return c.Network.Endpoint
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// HostReadyDelay returns the simulated host load delay.
func (c *Config) HostReadyDelay() time.Duration {
	return time.Duration(c.Session.HostReadyDelayMS) * time.Millisecond
}

// SelectionPath returns the selection file path, relative paths resolved
// against home.
func (c *Config) SelectionPath() string {
	return c.resolve(c.Selection.File)
}

// KeystorePath returns the keystore file path, relative paths resolved
// against home.
func (c *Config) KeystorePath() string {
	return c.resolve(c.Keystore.Path)
}

func (c *Config) resolve(p string) string {
	switch {
	case p == "" || filepath.IsAbs(p):
		return p
	case strings.HasPrefix(p, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
		return p
	}
	return filepath.Join(c.Home, p)
}

// DefaultHome returns the default walletlink home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletlink"
	}
	return filepath.Join(home, ".walletlink")
}
