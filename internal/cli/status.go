package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/adapter/hdwallet"
	"github.com/mrz1836/walletlink/internal/api"
	"github.com/mrz1836/walletlink/internal/config"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// StatusOutput is the body of the status command.
type StatusOutput struct {
	Home       string               `json:"home"`
	ConfigFile string               `json:"config_file"`
	Provider   api.ProviderResponse `json:"provider"`
	Endpoint   string               `json:"endpoint"`
	Keystore   KeystoreStatus       `json:"keystore"`
	Watch      string               `json:"watch_address,omitempty"`
	Refresh    RefreshStatus        `json:"refresh"`
	API        string               `json:"api_listen,omitempty"`
}

// RefreshStatus is the refresh schedule.
type RefreshStatus struct {
	Accounts string `json:"accounts_interval"`
	Trades   string `json:"trades_interval"`
	Overlap  string `json:"overlap"`
}

// KeystoreStatus reports whether the keystore exists and whose it is.
type KeystoreStatus struct {
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Identity string `json:"identity,omitempty"`
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted selection and configuration summary",
	Long: `Show the persisted wallet provider, the network endpoint, the keystore
and the refresh schedule that 'walletlink run' would use.`,
	Example: `  walletlink status
  walletlink status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	statusCmd.GroupID = groupSession
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	st, err := buildStatus(cfg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if isJSON() {
		return writeJSON(w, st)
	}

	out(w, "Home:      %s\n", st.Home)
	out(w, "Config:    %s\n", st.ConfigFile)
	out(w, "Provider:  %s (%s)\n", st.Provider.Name, st.Provider.URL)
	out(w, "Endpoint:  %s\n", st.Endpoint)
	if st.Keystore.Exists {
		out(w, "Keystore:  %s (%s)\n", st.Keystore.Path, st.Keystore.Identity)
	} else {
		out(w, "Keystore:  not created (walletlink keystore init)\n")
	}
	if st.Watch != "" {
		out(w, "Watching:  %s\n", st.Watch)
	}
	out(w, "Refresh:   accounts every %s, trades every %s, overlap %s\n",
		st.Refresh.Accounts, st.Refresh.Trades, st.Refresh.Overlap)
	if st.API != "" {
		out(w, "API:       http://%s\n", st.API)
	}
	return nil
}

func buildStatus(c *config.Config) (*StatusOutput, error) {
	reg := newRegistry()
	store, err := openSelection(c, reg)
	if err != nil {
		return nil, err
	}

	url := store.Get()
	if _, ok := reg.Find(url); !ok {
		url = reg.Default().URL
	}

	st := &StatusOutput{
		Home:       c.Home,
		ConfigFile: config.Path(c.Home),
		Provider:   selectedView(reg, url),
		Endpoint:   c.Network.Endpoint,
		Keystore:   KeystoreStatus{Path: c.KeystorePath()},
		Watch:      c.Watch.Address,
		Refresh: RefreshStatus{
			Accounts: c.Refresh.AccountsInterval.String(),
			Trades:   c.Refresh.TradesInterval.String(),
			Overlap:  c.Refresh.Overlap,
		},
		API: c.API.Listen,
	}

	info, err := hdwallet.ReadKeystoreInfo(st.Keystore.Path)
	switch {
	case err == nil:
		st.Keystore.Exists = true
		st.Keystore.Identity = info.Identity
	case errors.Is(err, linkerr.ErrKeystoreNotFound):
	default:
		return nil, err
	}
	return st, nil
}
