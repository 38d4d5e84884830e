package provider

import (
	"fmt"

	"github.com/mrz1836/walletlink/internal/adapter"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// ErrNoConstructor is returned when neither the descriptor nor the factory
// can build an adapter.
var ErrNoConstructor = &linkerr.LinkError{
	Code:     "NO_ADAPTER_CONSTRUCTOR",
	Message:  "no adapter constructor for provider",
	ExitCode: linkerr.ExitConnection,
}

// Factory creates adapters for providers.
type Factory interface {
	// NewAdapter builds an adapter for the provider bound to endpoint.
	NewAdapter(d Descriptor, endpoint string) (adapter.Adapter, error)
}

// ConfigurableFactory prefers the descriptor's own constructor and falls back
// to constructors registered by URL, then to the default constructor.
type ConfigurableFactory struct {
	fallback  adapter.Constructor
	overrides map[string]adapter.Constructor
}

// NewConfigurableFactory creates a factory whose default constructor is
// fallback. fallback may be nil.
func NewConfigurableFactory(fallback adapter.Constructor) *ConfigurableFactory {
	return &ConfigurableFactory{
		fallback:  fallback,
		overrides: make(map[string]adapter.Constructor),
	}
}

// Register installs a constructor for a provider URL. It only applies to
// descriptors without their own constructor.
func (f *ConfigurableFactory) Register(url string, ctor adapter.Constructor) {
	f.overrides[url] = ctor
}

// NewAdapter builds an adapter. Constructor panics and nil adapters are
// reported as ErrAdapterConstruction so callers never see a half-built value.
func (f *ConfigurableFactory) NewAdapter(d Descriptor, endpoint string) (a adapter.Adapter, err error) {
	ctor := d.NewAdapter
	if ctor == nil {
		ctor = f.overrides[d.URL]
	}
	if ctor == nil {
		ctor = f.fallback
	}
	if ctor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoConstructor, d.URL)
	}

	defer func() {
		if r := recover(); r != nil {
			a = nil
			err = linkerr.Wrap(fmt.Errorf("%w: panic: %v", linkerr.ErrAdapterConstruction, r), "building adapter for %s", d.Name)
		}
	}()

	a, err = ctor(d.URL, endpoint)
	if err != nil {
		return nil, linkerr.Wrap(fmt.Errorf("%w: %w", linkerr.ErrAdapterConstruction, err), "building adapter for %s", d.Name)
	}
	if a == nil {
		return nil, linkerr.Wrap(linkerr.ErrAdapterConstruction, "building adapter for %s: constructor returned nil", d.Name)
	}
	return a, nil
}

// Compile-time interface check
var _ Factory = (*ConfigurableFactory)(nil)
