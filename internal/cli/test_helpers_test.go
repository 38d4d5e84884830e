package cli

import (
	"testing"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
)

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, password []byte) {
	t.Helper()
	origPW := promptPasswordFn
	origNewPW := promptNewPasswordFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		promptNewPasswordFn = origNewPW
	})
	promptPasswordFn = func(_ string) ([]byte, error) {
		cp := make([]byte, len(password))
		copy(cp, password)
		return cp, nil
	}
	promptNewPasswordFn = func() ([]byte, error) {
		cp := make([]byte, len(password))
		copy(cp, password)
		return cp, nil
	}
}

// saveGlobals saves all package-level globals and returns a restore function.
func saveGlobals(t *testing.T) func() {
	t.Helper()
	origCfg := cfg
	origLogger := logger
	origFormatter := formatter
	origHomeDir := homeDir
	origOutputFormat := outputFormat
	origVerbose := verbose
	return func() {
		cfg = origCfg
		logger = origLogger
		formatter = origFormatter
		homeDir = origHomeDir
		outputFormat = origOutputFormat
		verbose = origVerbose
	}
}

// withTestHome points the CLI globals at a fresh home directory with default
// configuration, a silent logger and the given output format.
func withTestHome(t *testing.T, format output.Format) *config.Config {
	t.Helper()
	t.Cleanup(saveGlobals(t))

	c := config.Defaults()
	c.Home = t.TempDir()
	c.Logging.File = ""

	cfg = c
	logger = config.NullLogger()
	formatter = output.NewFormatter(format, nil)
	return c
}

// isolateUserHome points $HOME at a temp dir so the default log file lands
// there instead of the real home.
func isolateUserHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}
