package cli

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify walletlink configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.walletlink/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.`,
	Example: `  walletlink config init
  walletlink config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the config file merged with
environment overrides and command-line flags.`,
	Example: `  walletlink config show
  walletlink config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree.`,
	Example: `  walletlink config get network.endpoint
  walletlink config get refresh.accounts_interval`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree. The value is
validated and the configuration file is updated immediately.`,
	Example: `  walletlink config set network.endpoint https://rpc.example.com
  walletlink config set refresh.overlap allow
  walletlink config set watch.address 0x52908400098527886E0F7030069857D2E4169EE7`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.GroupID = groupConfig
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

// configKey is one addressable configuration value.
type configKey struct {
	path string
	get  func(c *config.Config) string
	set  func(c *config.Config, v string) error
}

// configKeys lists every value reachable by config get and set.
//
//nolint:gochecknoglobals // static lookup table
var configKeys = []configKey{
	{"home", func(c *config.Config) string { return c.Home }, setString(func(c *config.Config) *string { return &c.Home })},
	{"network.endpoint", func(c *config.Config) string { return c.Network.Endpoint }, func(c *config.Config, v string) error {
		c.Network.Endpoint = config.SanitizeURL(v)
		return nil
	}},
	{"session.auto_connect", func(c *config.Config) string { return strconv.FormatBool(c.Session.AutoConnect) }, setBool(func(c *config.Config) *bool { return &c.Session.AutoConnect })},
	{"session.redact_head", func(c *config.Config) string { return strconv.Itoa(c.Session.RedactHead) }, setInt(func(c *config.Config) *int { return &c.Session.RedactHead })},
	{"session.redact_tail", func(c *config.Config) string { return strconv.Itoa(c.Session.RedactTail) }, setInt(func(c *config.Config) *int { return &c.Session.RedactTail })},
	{"session.host_ready_delay_ms", func(c *config.Config) string { return strconv.Itoa(c.Session.HostReadyDelayMS) }, setInt(func(c *config.Config) *int { return &c.Session.HostReadyDelayMS })},
	{"refresh.accounts_interval", func(c *config.Config) string { return c.Refresh.AccountsInterval.String() }, setDuration(func(c *config.Config) *time.Duration { return &c.Refresh.AccountsInterval })},
	{"refresh.trades_interval", func(c *config.Config) string { return c.Refresh.TradesInterval.String() }, setDuration(func(c *config.Config) *time.Duration { return &c.Refresh.TradesInterval })},
	{"refresh.overlap", func(c *config.Config) string { return c.Refresh.Overlap }, setString(func(c *config.Config) *string { return &c.Refresh.Overlap })},
	{"keystore.path", func(c *config.Config) string { return c.Keystore.Path }, setString(func(c *config.Config) *string { return &c.Keystore.Path })},
	{"keystore.account", func(c *config.Config) string { return strconv.FormatUint(uint64(c.Keystore.Account), 10) }, setUint32(func(c *config.Config) *uint32 { return &c.Keystore.Account })},
	{"keystore.index", func(c *config.Config) string { return strconv.FormatUint(uint64(c.Keystore.Index), 10) }, setUint32(func(c *config.Config) *uint32 { return &c.Keystore.Index })},
	{"watch.address", func(c *config.Config) string { return c.Watch.Address }, setString(func(c *config.Config) *string { return &c.Watch.Address })},
	{"backend.api_url", func(c *config.Config) string { return c.Backend.APIURL }, func(c *config.Config, v string) error {
		c.Backend.APIURL = config.SanitizeURL(v)
		return nil
	}},
	{"backend.rate_per_second", func(c *config.Config) string { return strconv.FormatFloat(c.Backend.RatePerSecond, 'f', -1, 64) }, func(c *config.Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return invalidValue(v, "a number")
		}
		c.Backend.RatePerSecond = f
		return nil
	}},
	{"backend.burst", func(c *config.Config) string { return strconv.Itoa(c.Backend.Burst) }, setInt(func(c *config.Config) *int { return &c.Backend.Burst })},
	{"backend.timeout_seconds", func(c *config.Config) string { return strconv.Itoa(c.Backend.TimeoutSeconds) }, setInt(func(c *config.Config) *int { return &c.Backend.TimeoutSeconds })},
	{"selection.file", func(c *config.Config) string { return c.Selection.File }, setString(func(c *config.Config) *string { return &c.Selection.File })},
	{"selection.watch", func(c *config.Config) string { return strconv.FormatBool(c.Selection.Watch) }, setBool(func(c *config.Config) *bool { return &c.Selection.Watch })},
	{"api.listen", func(c *config.Config) string { return c.API.Listen }, setString(func(c *config.Config) *string { return &c.API.Listen })},
	{"notify.push_url", func(c *config.Config) string { return c.Notify.PushURL }, func(c *config.Config, v string) error {
		c.Notify.PushURL = config.SanitizeURL(v)
		return nil
	}},
	{"output.default_format", func(c *config.Config) string { return c.Output.DefaultFormat }, func(c *config.Config, v string) error {
		v = strings.ToLower(strings.TrimSpace(v))
		if !slices.Contains([]string{"text", "json", "auto"}, v) {
			return invalidValue(v, "text, json, or auto")
		}
		c.Output.DefaultFormat = v
		return nil
	}},
	{"output.color", func(c *config.Config) string { return c.Output.Color }, setString(func(c *config.Config) *string { return &c.Output.Color })},
	{"output.verbose", func(c *config.Config) string { return strconv.FormatBool(c.Output.Verbose) }, setBool(func(c *config.Config) *bool { return &c.Output.Verbose })},
	{"logging.level", func(c *config.Config) string { return c.Logging.Level }, func(c *config.Config, v string) error {
		v = strings.ToLower(strings.TrimSpace(v))
		if !slices.Contains([]string{"off", "error", "info", "debug"}, v) {
			return invalidValue(v, "off, error, info, or debug")
		}
		c.Logging.Level = v
		return nil
	}},
	{"logging.file", func(c *config.Config) string { return c.Logging.File }, setString(func(c *config.Config) *string { return &c.Logging.File })},
	{"logging.max_size_mb", func(c *config.Config) string { return strconv.Itoa(c.Logging.MaxSizeMB) }, setInt(func(c *config.Config) *int { return &c.Logging.MaxSizeMB })},
	{"logging.max_backups", func(c *config.Config) string { return strconv.Itoa(c.Logging.MaxBackups) }, setInt(func(c *config.Config) *int { return &c.Logging.MaxBackups })},
	{"logging.json", func(c *config.Config) string { return strconv.FormatBool(c.Logging.JSON) }, setBool(func(c *config.Config) *bool { return &c.Logging.JSON })},
}

func setString(field func(*config.Config) *string) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		*field(c) = strings.TrimSpace(v)
		return nil
	}
}

func setBool(field func(*config.Config) *bool) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return invalidValue(v, "true or false")
		}
		*field(c) = b
		return nil
	}
}

func setInt(field func(*config.Config) *int) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return invalidValue(v, "an integer")
		}
		*field(c) = n
		return nil
	}
}

func setUint32(field func(*config.Config) *uint32) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return invalidValue(v, "a non-negative integer")
		}
		*field(c) = uint32(n)
		return nil
	}
}

func setDuration(field func(*config.Config) *time.Duration) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return invalidValue(v, "a duration such as 20s or 3m")
		}
		*field(c) = d
		return nil
	}
}

func invalidValue(value, valid string) error {
	return linkerr.WithDetails(
		linkerr.ErrInvalidInput,
		map[string]string{"value": value, "valid": valid},
	)
}

// lookupConfigKey finds the key registered under path.
func lookupConfigKey(path string) (configKey, error) {
	for _, k := range configKeys {
		if k.path == path {
			return k, nil
		}
	}
	return configKey{}, linkerr.WithSuggestion(
		linkerr.WithDetails(linkerr.ErrUnknownConfigKey, map[string]string{"path": path}),
		"run 'walletlink config show' to list configuration paths",
	)
}

// getConfigValue retrieves a value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	k, err := lookupConfigKey(path)
	if err != nil {
		return "", err
	}
	return k.get(c), nil
}

// setConfigValue sets a value in the config using dot notation.
func setConfigValue(c *config.Config, path, value string) error {
	k, err := lookupConfigKey(path)
	if err != nil {
		return err
	}
	return k.set(c, value)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return linkerr.WithSuggestion(
			linkerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home

	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - network.endpoint: Your Ethereum JSON-RPC endpoint")
	outln(w, "  - backend.api_url: Account API for margin accounts and trades (optional)")
	outln(w, "  - watch.address: Address for the Watch Only provider (optional)")
	outln(w, "  - api.listen: Address for the read-only status API (optional)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	if isJSON() {
		values := make(map[string]string, len(configKeys))
		for _, k := range configKeys {
			values[k.path] = k.get(cfg)
		}
		return writeJSON(w, values)
	}

	tbl := output.NewTable("PATH", "VALUE")
	for _, k := range configKeys {
		v := k.get(cfg)
		if v == "" {
			v = "(not configured)"
		}
		tbl.AddRow(k.path, v)
	}
	out(w, "%s", tbl.String())

	if err := cfg.Validate(); err != nil {
		outln(w)
		output.Warnf(w, "configuration has problems: %v", err)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}

	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]

	// Edit the file as written, without env and flag overrides
	configPath := config.Path(cfg.Home)
	current, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	current.Home = cfg.Home

	if err := setConfigValue(current, path, value); err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return err
	}

	if err := config.Save(current, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	logger.Info("config %s set to %s", path, value)

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, value)
	return nil
}
