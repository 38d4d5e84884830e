package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	versionpkg "github.com/mrz1836/walletlink/internal/version"
)

const (
	// devVersionString is the string used for development versions
	devVersionString = "dev"
	// releaseOwner and releaseRepo locate the GitHub releases.
	releaseOwner = "mrz1836"
	releaseRepo  = "walletlink"
	// versionCheckTimeout bounds the release lookup.
	versionCheckTimeout = 10 * time.Second
)

// BuildInfo is stamped into the binary by the linker.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

//nolint:gochecknoglobals // set once from main
var buildInfo BuildInfo

// SetBuildInfo records the build metadata reported by the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

// GetCurrentVersion returns the running version, or "dev".
func GetCurrentVersion() string {
	if buildInfo.Version == "" {
		return devVersionString
	}
	return buildInfo.Version
}

// formatVersion renders build info for display.
func formatVersion(info BuildInfo) string {
	v, commit, date := info.Version, info.Commit, info.Date
	if v == "" {
		v = devVersionString
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, commit, date)
}

// versionOutput is the JSON body of the version command.
type versionOutput struct {
	BuildInfo

	Latest  string `json:"latest,omitempty"`
	IsNewer bool   `json:"update_available,omitempty"`
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the walletlink version, commit and build date. With --check the
latest GitHub release is looked up as well.`,
	Example: `  walletlink version
  walletlink version --check -o json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.GroupID = groupConfig
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	body := versionOutput{BuildInfo: buildInfo}
	if body.Version == "" {
		body.Version = devVersionString
	}

	if versionCheck {
		ctx, cancel := contextWithTimeout(cmd, versionCheckTimeout)
		defer cancel()

		release, err := versionpkg.GetLatestRelease(ctx, releaseOwner, releaseRepo)
		if err != nil {
			return fmt.Errorf("checking latest release: %w", err)
		}
		body.Latest = release.Version()
		body.IsNewer = versionpkg.IsNewerVersion(GetCurrentVersion(), body.Latest)
	}

	w := cmd.OutOrStdout()
	if isJSON() {
		return writeJSON(w, body)
	}

	out(w, "walletlink %s\n", formatVersion(buildInfo))
	switch {
	case !versionCheck:
	case body.IsNewer:
		out(w, "A newer version is available: %s\n", body.Latest)
	default:
		out(w, "You are on the latest version (%s)\n", body.Latest)
	}
	return nil
}
