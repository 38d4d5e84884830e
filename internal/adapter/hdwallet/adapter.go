// Package hdwallet implements the keystore-backed wallet adapter. Connecting
// unlocks an age-encrypted BIP39 mnemonic, derives the account address and
// checks the network endpoint is reachable.
package hdwallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mrz1836/walletlink/internal/adapter"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Compile-time interface check
var _ adapter.Adapter = (*Adapter)(nil)

// PassphraseFunc supplies the keystore passphrase at connect time. The
// returned slice is wiped after use.
type PassphraseFunc func(ctx context.Context) ([]byte, error)

// StaticPassphrase returns a PassphraseFunc that always yields passphrase.
func StaticPassphrase(passphrase string) PassphraseFunc {
	return func(context.Context) ([]byte, error) {
		return []byte(passphrase), nil
	}
}

// ChainIDReader is what the adapter needs from an endpoint client.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// DialFunc opens a client for the endpoint.
type DialFunc func(ctx context.Context, endpoint string) (ChainIDReader, error)

func dialEthClient(ctx context.Context, endpoint string) (ChainIDReader, error) {
	c, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options configures adapters built by Constructor.
type Options struct {
	KeystorePath string
	Passphrase   PassphraseFunc
	// Dial overrides the endpoint client. Defaults to ethclient.
	Dial DialFunc
}

// Adapter is a keystore-backed wallet connection.
type Adapter struct {
	adapter.Emitter

	providerURL string
	endpoint    string
	opts        Options

	mu        sync.Mutex
	connected bool
	identity  string
	chainID   *big.Int
	client    ChainIDReader
}

// New creates an adapter bound to providerURL and endpoint.
func New(providerURL, endpoint string, opts Options) *Adapter {
	if opts.Dial == nil {
		opts.Dial = dialEthClient
	}
	return &Adapter{providerURL: providerURL, endpoint: endpoint, opts: opts}
}

// Constructor returns an adapter.Constructor producing keystore adapters.
func Constructor(opts Options) adapter.Constructor {
	return func(providerURL, endpoint string) (adapter.Adapter, error) {
		if opts.KeystorePath == "" {
			return nil, linkerr.WithSuggestion(linkerr.ErrKeystoreNotFound, "set keystore.path in config.yaml")
		}
		return New(providerURL, endpoint, opts), nil
	}
}

// Connect unlocks the keystore, derives the identity and handshakes with the
// endpoint. The connect event is emitted on success.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	identity, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	var (
		client  ChainIDReader
		chainID *big.Int
	)
	if a.endpoint != "" {
		client, err = a.opts.Dial(ctx, a.endpoint)
		if err != nil {
			return linkerr.Wrap(linkerr.ErrNetworkError, "dialing %s: %v", a.endpoint, err)
		}
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return linkerr.Wrap(linkerr.ErrNetworkError, "reading chain id from %s: %v", a.endpoint, err)
		}
	}

	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		if client != nil {
			client.Close()
		}
		return nil
	}
	a.connected = true
	a.identity = identity
	a.chainID = chainID
	a.client = client
	a.mu.Unlock()

	a.Emit(adapter.EventConnect)
	return nil
}

func (a *Adapter) unlock(ctx context.Context) (string, error) {
	// No prompt for a keystore that does not exist.
	if _, err := readKeystore(a.opts.KeystorePath); err != nil {
		return "", err
	}
	if a.opts.Passphrase == nil {
		return "", linkerr.WithSuggestion(linkerr.ErrAuthentication,
			"set WALLETLINK_KEYSTORE_PASSPHRASE or run interactively")
	}
	passphrase, err := a.opts.Passphrase(ctx)
	if err != nil {
		return "", linkerr.Wrap(linkerr.ErrAuthentication, "reading passphrase: %v", err)
	}
	defer wipe(passphrase)

	seed, ks, err := unlockKeystore(a.opts.KeystorePath, passphrase)
	if err != nil {
		return "", err
	}
	defer seed.Destroy()

	return DeriveIdentity(seed.Bytes(), ks.Account, ks.Index)
}

// Disconnect closes the endpoint client and forgets the identity. The
// disconnect event is emitted only if the adapter was connected.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil
	}
	a.connected = false
	a.identity = ""
	a.chainID = nil
	client := a.client
	a.client = nil
	a.mu.Unlock()

	if client != nil {
		client.Close()
	}
	a.Emit(adapter.EventDisconnect)
	return nil
}

// Connected reports whether the adapter is connected.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Identity returns the derived address, or "" when disconnected.
func (a *Adapter) Identity() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identity
}

// ChainID returns the chain ID read during connect, or nil.
func (a *Adapter) ChainID() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chainID == nil {
		return nil
	}
	return new(big.Int).Set(a.chainID)
}

// ProviderURL returns the provider URL the adapter was built for.
func (a *Adapter) ProviderURL() string { return a.providerURL }
