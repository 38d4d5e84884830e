// Package provider holds the static registry of selectable wallet providers
// and the factory that turns a provider descriptor into a live adapter.
package provider

import (
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mrz1836/walletlink/internal/adapter"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// AssetURL is the base URL for provider icons.
const AssetURL = "https://cdn.jsdelivr.net/gh/mrz1836/walletlink@main/assets/wallets"

// Built-in provider URLs. The URL is the unique key persisted in the
// selection store.
const (
	KeystoreURL = "https://walletlink.dev/keystore"
	WatchURL    = "https://walletlink.dev/watch"
	DemoURL     = "https://walletlink.dev/demo"
)

// MaxTypoDistance is the largest edit distance for which Lookup suggests a
// provider name.
const MaxTypoDistance = 3

// Descriptor describes a selectable provider.
type Descriptor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon"`

	// NewAdapter builds adapters for this provider. Nil means the factory
	// default is used.
	NewAdapter adapter.Constructor `json:"-"`
}

// HasAdapter returns true if the descriptor carries its own constructor.
func (d Descriptor) HasAdapter() bool {
	return d.NewAdapter != nil
}

// Registry is an immutable, ordered set of provider descriptors. Order is the
// display order and the first entry is the default selection.
type Registry struct {
	providers []Descriptor
	byURL     map[string]int
}

// NewRegistry validates descriptors and builds a registry.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: registry needs at least one provider", linkerr.ErrInvalidInput)
	}

	r := &Registry{
		providers: make([]Descriptor, 0, len(descriptors)),
		byURL:     make(map[string]int, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Name == "" || d.URL == "" {
			return nil, fmt.Errorf("%w: provider name and url are required", linkerr.ErrInvalidInput)
		}
		if _, dup := r.byURL[d.URL]; dup {
			return nil, fmt.Errorf("%w: duplicate provider url %s", linkerr.ErrInvalidInput, d.URL)
		}
		r.byURL[d.URL] = len(r.providers)
		r.providers = append(r.providers, d)
	}

	return r, nil
}

// MustRegistry is NewRegistry for static provider lists; it panics on error.
func MustRegistry(descriptors ...Descriptor) *Registry {
	r, err := NewRegistry(descriptors...)
	if err != nil {
		panic(err)
	}
	return r
}

// List returns the providers in display order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.providers))
	copy(out, r.providers)
	return out
}

// Default returns the first registered provider.
func (r *Registry) Default() Descriptor {
	return r.providers[0]
}

// Find returns the provider registered under url.
func (r *Registry) Find(url string) (Descriptor, bool) {
	i, ok := r.byURL[url]
	if !ok {
		return Descriptor{}, false
	}
	return r.providers[i], true
}

// Lookup resolves a provider by exact URL or case-insensitive name. On a miss
// the error carries a suggestion for the closest provider name.
func (r *Registry) Lookup(nameOrURL string) (Descriptor, error) {
	query := strings.TrimSpace(nameOrURL)
	if d, ok := r.Find(query); ok {
		return d, nil
	}
	for _, d := range r.providers {
		if strings.EqualFold(d.Name, query) {
			return d, nil
		}
	}

	err := linkerr.WithDetails(linkerr.ErrProviderNotFound, map[string]string{"provider": query})
	if suggestion := r.Suggest(query); suggestion != "" {
		err = linkerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", suggestion))
	} else {
		err = linkerr.WithSuggestion(err, "run 'walletlink providers' to list available providers")
	}
	return Descriptor{}, err
}

// Suggest returns the provider name closest to input, or "" if nothing is
// within MaxTypoDistance.
func (r *Registry) Suggest(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}

	minDist := math.MaxInt
	var suggestion string
	for _, d := range r.providers {
		dist := levenshtein.ComputeDistance(input, strings.ToLower(d.Name))
		if dist < minDist {
			minDist = dist
			suggestion = d.Name
		}
		if dist == 0 {
			return d.Name
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

// IconURL builds the icon URL for an asset file name.
func IconURL(file string) string {
	return AssetURL + "/" + file
}
