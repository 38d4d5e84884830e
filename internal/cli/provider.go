package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/api"
	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/provider"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	providersCmd = &cobra.Command{
		Use:   "providers",
		Short: "List wallet providers",
		Long: `List the wallet providers walletlink can connect to, in display order.

The first provider is the default. The persisted selection is marked.`,
		Example: `  walletlink providers
  walletlink providers -o json`,
		Args: cobra.NoArgs,
		RunE: runProviders,
	}

	providerCmd = &cobra.Command{
		Use:   "provider",
		Short: "Manage the selected wallet provider",
		Long:  `Show or change the wallet provider that walletlink connects to.`,
	}

	providerSelectCmd = &cobra.Command{
		Use:   "select <name|url>",
		Short: "Select the wallet provider",
		Long: `Select the wallet provider by name (case-insensitive) or URL and persist
the choice. A running 'walletlink run' picks the change up from the
selection file and switches providers.`,
		Example: `  walletlink provider select Keystore
  walletlink provider select "watch only"
  walletlink provider select https://walletlink.dev/demo`,
		Args: cobra.ExactArgs(1),
		RunE: runProviderSelect,
	}

	providerShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the selected wallet provider",
		Long:  `Show the persisted wallet provider selection.`,
		Example: `  walletlink provider show
  walletlink provider show -o json`,
		Args: cobra.NoArgs,
		RunE: runProviderShow,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	providersCmd.GroupID = groupSession
	providerCmd.GroupID = groupSession

	providerCmd.AddCommand(providerSelectCmd, providerShowCmd)
	rootCmd.AddCommand(providersCmd, providerCmd)
}

// providerViews lists the registry with default and selected markers.
func providerViews(reg *provider.Registry, selected string) []api.ProviderResponse {
	def := reg.Default().URL
	list := reg.List()
	views := make([]api.ProviderResponse, 0, len(list))
	for _, d := range list {
		views = append(views, api.ProviderResponse{
			Name:     d.Name,
			URL:      d.URL,
			Icon:     d.Icon,
			Default:  d.URL == def,
			Selected: d.URL == selected,
		})
	}
	return views
}

func runProviders(cmd *cobra.Command, _ []string) error {
	reg := newRegistry()
	store, err := openSelection(cfg, reg)
	if err != nil {
		return err
	}

	views := providerViews(reg, store.Get())
	w := cmd.OutOrStdout()
	if isJSON() {
		return writeJSON(w, views)
	}

	tbl := output.NewTable("", "NAME", "URL")
	for _, v := range views {
		mark := ""
		if v.Selected {
			mark = "*"
		}
		name := v.Name
		if v.Default {
			name += " (default)"
		}
		tbl.AddRow(mark, name, v.URL)
	}
	out(w, "%s", tbl.String())
	return nil
}

func runProviderSelect(cmd *cobra.Command, args []string) error {
	reg := newRegistry()
	d, err := reg.Lookup(args[0])
	if err != nil {
		return err
	}

	store, err := openSelection(cfg, reg)
	if err != nil {
		return err
	}
	if err := store.Set(d.URL); err != nil {
		return err
	}
	logger.Info("provider selection set to %s", d.URL)

	w := cmd.OutOrStdout()
	if isJSON() {
		return writeJSON(w, selectedView(reg, d.URL))
	}
	output.Successf(w, "Selected wallet provider %s (%s)", d.Name, d.URL)
	warnProviderOverride(w, d)
	return nil
}

func runProviderShow(cmd *cobra.Command, _ []string) error {
	reg := newRegistry()
	store, err := openSelection(cfg, reg)
	if err != nil {
		return err
	}

	url := store.Get()
	d, ok := reg.Find(url)
	if !ok {
		d = reg.Default()
	}

	w := cmd.OutOrStdout()
	if isJSON() {
		return writeJSON(w, selectedView(reg, d.URL))
	}
	out(w, "Provider: %s\n", d.Name)
	out(w, "URL:      %s\n", d.URL)
	if d.URL != url {
		output.Warnf(w, "persisted provider %s is not registered; using the default", url)
	}
	warnProviderOverride(w, d)
	return nil
}

// warnProviderOverride notes that WALLETLINK_PROVIDER will win at run time.
func warnProviderOverride(w io.Writer, d provider.Descriptor) {
	v := os.Getenv(config.EnvProvider)
	if v == "" || v == d.Name || v == d.URL {
		return
	}
	output.Warnf(w, "%s=%s overrides this selection when running", config.EnvProvider, v)
}

// selectedView returns the view of the provider at url.
func selectedView(reg *provider.Registry, url string) api.ProviderResponse {
	for _, v := range providerViews(reg, url) {
		if v.Selected {
			return v
		}
	}
	return api.ProviderResponse{}
}
