package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome               = "WALLETLINK_HOME"
	EnvEndpoint           = "WALLETLINK_ENDPOINT"
	EnvProvider           = "WALLETLINK_PROVIDER"
	EnvOutputFormat       = "WALLETLINK_OUTPUT_FORMAT"
	EnvVerbose            = "WALLETLINK_VERBOSE"
	EnvLogLevel           = "WALLETLINK_LOG_LEVEL"
	EnvKeystorePassphrase = "WALLETLINK_KEYSTORE_PASSPHRASE" // #nosec G101 -- false positive, this is a const name not a credential
	EnvAPIListen          = "WALLETLINK_API_LISTEN"
	EnvAutoConnect        = "WALLETLINK_AUTO_CONNECT"
	EnvNoColor            = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
// WALLETLINK_PROVIDER and WALLETLINK_KEYSTORE_PASSPHRASE are read where they
// are used, not stored in the config.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvEndpoint); v != "" {
		cfg.Network.Endpoint = SanitizeURL(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvAPIListen); v != "" {
		cfg.API.Listen = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvAutoConnect); v != "" {
		cfg.Session.AutoConnect = parseBool(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// This is useful for cleaning user-provided endpoint URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}

var (
	// ErrInvalidEndpoint indicates an endpoint URL that cannot be dialed.
	ErrInvalidEndpoint = errors.New("invalid endpoint URL")

	// ErrInsecureEndpoint indicates plain http/ws to a non-loopback host.
	ErrInsecureEndpoint = errors.New("insecure endpoint URL: use https or wss for remote hosts")
)

// ValidateEndpoint checks that raw is an http(s) or ws(s) URL with a host.
// Plain http and ws are accepted only for loopback hosts. An empty value is
// accepted and means "not configured".
func ValidateEndpoint(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		return nil
	case "http", "ws":
		if isLoopback(u.Hostname()) {
			return nil
		}
		return ErrInsecureEndpoint
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
