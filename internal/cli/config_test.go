package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// newTestCmd returns a bare command whose output lands in the returned buffer.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func TestGetConfigValue(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Home = "/tmp/walletlink"
	c.Watch.Address = "0x52908400098527886E0F7030069857D2E4169EE7"

	tests := []struct {
		path string
		want string
	}{
		{"home", "/tmp/walletlink"},
		{"network.endpoint", config.DefaultEndpoint},
		{"session.auto_connect", "true"},
		{"session.redact_head", "5"},
		{"session.host_ready_delay_ms", "0"},
		{"refresh.accounts_interval", "20s"},
		{"refresh.trades_interval", "3m0s"},
		{"refresh.overlap", "skip"},
		{"keystore.path", "keystore.age"},
		{"keystore.account", "0"},
		{"watch.address", "0x52908400098527886E0F7030069857D2E4169EE7"},
		{"backend.rate_per_second", "5"},
		{"backend.burst", "10"},
		{"selection.watch", "true"},
		{"api.listen", ""},
		{"output.default_format", "auto"},
		{"logging.level", "error"},
		{"logging.json", "false"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, err := getConfigValue(c, tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetConfigValue_UnknownPath(t *testing.T) {
	t.Parallel()

	_, err := getConfigValue(config.Defaults(), "network.rpc")
	require.ErrorIs(t, err, linkerr.ErrUnknownConfigKey)
	assert.Equal(t, linkerr.ExitInput, linkerr.ExitCode(err))
	assert.Contains(t, linkerr.SuggestionOf(err), "config show")
}

func TestConfigKeys_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool, len(configKeys))
	for _, k := range configKeys {
		assert.False(t, seen[k.path], "duplicate config key %q", k.path)
		seen[k.path] = true
	}
}

func TestSetConfigValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		value string
		check func(t *testing.T, c *config.Config)
	}{
		{"endpoint is sanitized", "network.endpoint", " https://rpc.example.org/ ", func(t *testing.T, c *config.Config) {
			assert.Equal(t, "https://rpc.example.org/", c.Network.Endpoint)
		}},
		{"bool", "session.auto_connect", "false", func(t *testing.T, c *config.Config) {
			assert.False(t, c.Session.AutoConnect)
		}},
		{"int", "session.redact_tail", "4", func(t *testing.T, c *config.Config) {
			assert.Equal(t, 4, c.Session.RedactTail)
		}},
		{"uint32", "keystore.index", "7", func(t *testing.T, c *config.Config) {
			assert.Equal(t, uint32(7), c.Keystore.Index)
		}},
		{"duration", "refresh.accounts_interval", "45s", func(t *testing.T, c *config.Config) {
			assert.Equal(t, 45*time.Second, c.Refresh.AccountsInterval)
		}},
		{"float", "backend.rate_per_second", "2.5", func(t *testing.T, c *config.Config) {
			assert.InDelta(t, 2.5, c.Backend.RatePerSecond, 0.0001)
		}},
		{"format is normalized", "output.default_format", "JSON", func(t *testing.T, c *config.Config) {
			assert.Equal(t, "json", c.Output.DefaultFormat)
		}},
		{"log level", "logging.level", "debug", func(t *testing.T, c *config.Config) {
			assert.Equal(t, "debug", c.Logging.Level)
		}},
		{"string is trimmed", "api.listen", " 127.0.0.1:8645 ", func(t *testing.T, c *config.Config) {
			assert.Equal(t, "127.0.0.1:8645", c.API.Listen)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := config.Defaults()
			require.NoError(t, setConfigValue(c, tc.path, tc.value))
			tc.check(t, c)
		})
	}
}

func TestSetConfigValue_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path  string
		value string
	}{
		{"session.auto_connect", "maybe"},
		{"session.redact_head", "five"},
		{"keystore.account", "-1"},
		{"refresh.trades_interval", "soon"},
		{"backend.rate_per_second", "fast"},
		{"output.default_format", "yaml"},
		{"logging.level", "trace"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			err := setConfigValue(config.Defaults(), tc.path, tc.value)
			require.ErrorIs(t, err, linkerr.ErrInvalidInput)
		})
	}

	require.ErrorIs(t, setConfigValue(config.Defaults(), "nope", "1"), linkerr.ErrUnknownConfigKey)
}

func TestRunConfigInit_Success(t *testing.T) {
	c := withTestHome(t, output.FormatText)
	cmd, buf := newTestCmd()

	require.NoError(t, runConfigInit(cmd, nil))

	assert.FileExists(t, config.Path(c.Home))
	assert.Contains(t, buf.String(), "Configuration initialized")

	loaded, err := config.Load(config.Path(c.Home))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEndpoint, loaded.Network.Endpoint)
}

func TestRunConfigInit_AlreadyExists(t *testing.T) {
	c := withTestHome(t, output.FormatText)
	require.NoError(t, os.WriteFile(config.Path(c.Home), []byte("version: 1\n"), 0o600))
	cmd, _ := newTestCmd()

	err := runConfigInit(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, linkerr.SuggestionOf(err), "--force")

	configForce = true
	t.Cleanup(func() { configForce = false })
	require.NoError(t, runConfigInit(cmd, nil))
}

func TestRunConfigShow_TextFormat(t *testing.T) {
	withTestHome(t, output.FormatText)
	cmd, buf := newTestCmd()

	require.NoError(t, runConfigShow(cmd, nil))

	out := buf.String()
	assert.Contains(t, out, "PATH")
	assert.Contains(t, out, "network.endpoint")
	assert.Contains(t, out, "(not configured)")
	assert.NotContains(t, out, "configuration has problems")
}

func TestRunConfigShow_WarnsOnInvalid(t *testing.T) {
	c := withTestHome(t, output.FormatText)
	c.Refresh.Overlap = "sometimes"
	cmd, buf := newTestCmd()

	require.NoError(t, runConfigShow(cmd, nil))
	assert.Contains(t, buf.String(), "configuration has problems")
}

func TestRunConfigShow_JSONFormat(t *testing.T) {
	withTestHome(t, output.FormatJSON)
	cmd, buf := newTestCmd()

	require.NoError(t, runConfigShow(cmd, nil))

	var values map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &values))
	assert.Equal(t, "skip", values["refresh.overlap"])
	assert.Len(t, values, len(configKeys))
}

func TestRunConfigGet(t *testing.T) {
	withTestHome(t, output.FormatText)
	cmd, buf := newTestCmd()

	require.NoError(t, runConfigGet(cmd, []string{"refresh.overlap"}))
	assert.Equal(t, "skip\n", buf.String())

	require.ErrorIs(t, runConfigGet(cmd, []string{"refresh.nope"}), linkerr.ErrUnknownConfigKey)
}

func TestRunConfigSet_WritesFile(t *testing.T) {
	c := withTestHome(t, output.FormatText)
	cmd, buf := newTestCmd()

	require.NoError(t, runConfigSet(cmd, []string{"refresh.overlap", "allow"}))
	assert.Contains(t, buf.String(), "Set refresh.overlap = allow")

	loaded, err := config.Load(config.Path(c.Home))
	require.NoError(t, err)
	assert.Equal(t, config.OverlapAllow, loaded.Refresh.Overlap)
}

func TestRunConfigSet_ValidationFails(t *testing.T) {
	c := withTestHome(t, output.FormatText)
	cmd, _ := newTestCmd()

	err := runConfigSet(cmd, []string{"refresh.overlap", "sometimes"})
	require.ErrorIs(t, err, linkerr.ErrConfigInvalid)
	assert.NoFileExists(t, config.Path(c.Home))
}

func TestRunConfigSet_InvalidPath(t *testing.T) {
	withTestHome(t, output.FormatText)
	cmd, _ := newTestCmd()

	require.ErrorIs(t, runConfigSet(cmd, []string{"invalid.path", "x"}), linkerr.ErrUnknownConfigKey)
}
