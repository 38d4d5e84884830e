package cli

import (
	"errors"
	"net/http"
	"time"

	"github.com/mrz1836/walletlink/internal/account"
	"github.com/mrz1836/walletlink/internal/adapter/hdwallet"
	"github.com/mrz1836/walletlink/internal/adapter/mock"
	"github.com/mrz1836/walletlink/internal/adapter/watch"
	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/selection"
	"github.com/mrz1836/walletlink/internal/state"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Built-in provider names.
const (
	providerKeystore = "Keystore"
	providerWatch    = "Watch Only"
	providerDemo     = "Demo"
)

// newRegistry returns the built-in providers in display order. Keystore is
// the default.
func newRegistry() *provider.Registry {
	return provider.MustRegistry(
		provider.Descriptor{Name: providerKeystore, URL: provider.KeystoreURL, Icon: provider.IconURL("keystore.svg")},
		provider.Descriptor{Name: providerWatch, URL: provider.WatchURL, Icon: provider.IconURL("watch.svg")},
		provider.Descriptor{Name: providerDemo, URL: provider.DemoURL, Icon: provider.IconURL("demo.svg")},
	)
}

// newFactory binds the built-in providers to their adapters. Anything not
// registered falls back to the demo adapter.
func newFactory(c *config.Config) *provider.ConfigurableFactory {
	f := provider.NewConfigurableFactory(mock.Constructor(mock.DefaultIdentity))
	f.Register(provider.KeystoreURL, hdwallet.Constructor(hdwallet.Options{
		KeystorePath: c.KeystorePath(),
		Passphrase:   keystorePassphrase(),
	}))
	f.Register(provider.WatchURL, watch.Constructor(c.Watch.Address, nil))
	return f
}

// openSelection opens the persisted selection. A corrupt file has already
// been moved aside when ErrCorruptSelection is returned, so it only warrants
// a log line.
func openSelection(c *config.Config, reg *provider.Registry) (*selection.FileStore, error) {
	store, err := selection.OpenFileStore(c.SelectionPath(), reg.Default().URL)
	if errors.Is(err, selection.ErrCorruptSelection) {
		logger.Error("selection file %s was corrupt and has been reset", c.SelectionPath())
		return store, nil
	}
	if err != nil {
		return nil, linkerr.Wrap(linkerr.ErrGeneral, "opening selection file: %v", err)
	}
	return store, nil
}

// newBackend builds the account data source. The Demo provider always reads
// demo data; the others read the configured endpoint and API, if any.
func newBackend(c *config.Config, sink state.Sink, m *metrics.Metrics) (account.Backend, func()) {
	var live account.Backend
	closeFn := func() {}

	rpc, err := account.NewRPCBackend(account.RPCOptions{
		Endpoint:   c.Network.Endpoint,
		APIURL:     c.Backend.APIURL,
		HTTPClient: &http.Client{Timeout: time.Duration(c.Backend.TimeoutSeconds) * time.Second},
		Limiter:    account.NewRateLimiter(c.Backend.RatePerSecond, c.Backend.Burst),
		Metrics:    m,
	})
	if err != nil {
		logger.Info("account backend disabled: %v", err)
	} else {
		live = rpc
		closeFn = rpc.Close
	}

	sw := account.NewSwitch(sink, live)
	sw.Route(provider.DemoURL, account.DemoBackend())
	return sw, closeFn
}
