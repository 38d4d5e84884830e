package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"1", "1", true},
		{"true", "true", true},
		{"TRUE", "TRUE", true},
		{"yes", "yes", true},
		{"on", "on", true},
		{"with spaces", "  true  ", true},
		{"0", "0", false},
		{"false", "false", false},
		{"no", "no", false},
		{"off", "off", false},
		{"empty", "", false},
		{"random", "random", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, parseBool(tc.input))
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean URL", "https://mainnet.infura.io/v3/abc123", "https://mainnet.infura.io/v3/abc123"},
		{"with leading/trailing spaces", "  https://mainnet.infura.io/v3/abc123  ", "https://mainnet.infura.io/v3/abc123"},
		{"localhost", "http://localhost:8545", "http://localhost:8545"},
		{"websocket", "wss://mainnet.infura.io/ws", "wss://mainnet.infura.io/ws"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeURL(tc.input))
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("valid URLs", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{
			"https://mainnet.infura.io/v3/abc123",
			"wss://mainnet.infura.io/ws",
			"http://localhost:8545",
			"http://127.0.0.1:8545",
			"http://[::1]:8545",
			"ws://localhost:8546",
			"",
		} {
			assert.NoError(t, ValidateEndpoint(raw), raw)
		}
	})

	t.Run("unsupported schemes", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{
			"javascript:alert(1)",
			"file:///etc/passwd",
			"ftp://example.com/rpc",
		} {
			err := ValidateEndpoint(raw)
			require.Error(t, err, raw)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		}
	})

	t.Run("insecure remote URLs", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{
			"http://example.com:8545",
			"ws://example.com/ws",
		} {
			assert.ErrorIs(t, ValidateEndpoint(raw), ErrInsecureEndpoint, raw)
		}
	})

	t.Run("missing host", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, ValidateEndpoint("example.com:8545"), ErrInvalidEndpoint)
	})
}

func TestApplyEnvironment_Endpoint(t *testing.T) {
	// Cannot run in parallel because we modify environment variables
	cfg := Defaults()

	t.Setenv(EnvEndpoint, "https://mainnet.infura.io/v3/test")
	ApplyEnvironment(cfg)

	assert.Equal(t, "https://mainnet.infura.io/v3/test", cfg.Network.Endpoint)
}

func TestApplyEnvironment_VerboseValues(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := Defaults()
			t.Setenv(EnvVerbose, tt.value)
			ApplyEnvironment(cfg)
			assert.Equal(t, tt.expected, cfg.Output.Verbose)
		})
	}
}
