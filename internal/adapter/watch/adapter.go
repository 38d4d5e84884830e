// Package watch implements a read-only adapter for a configured address. It
// never holds key material.
package watch

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mrz1836/walletlink/internal/adapter"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Compile-time interface check
var _ adapter.Adapter = (*Adapter)(nil)

// Pinger checks the endpoint during connect.
type Pinger interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// DialFunc opens a Pinger for the endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Pinger, error)

func dialEthClient(ctx context.Context, endpoint string) (Pinger, error) {
	c, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Adapter watches a single address.
type Adapter struct {
	adapter.Emitter

	address  string
	endpoint string
	dial     DialFunc

	mu        sync.Mutex
	connected bool
	client    Pinger
	head      uint64
}

// New creates a watch adapter. dial may be nil.
func New(address, endpoint string, dial DialFunc) *Adapter {
	if dial == nil {
		dial = dialEthClient
	}
	return &Adapter{address: address, endpoint: endpoint, dial: dial}
}

// Constructor returns an adapter.Constructor watching address.
func Constructor(address string, dial DialFunc) adapter.Constructor {
	return func(_, endpoint string) (adapter.Adapter, error) {
		if !common.IsHexAddress(address) {
			return nil, linkerr.WithSuggestion(
				linkerr.WithDetails(linkerr.ErrInvalidAddress, map[string]string{"address": address}),
				"set watch.address in config.yaml to a 0x-prefixed address",
			)
		}
		return New(common.HexToAddress(address).Hex(), endpoint, dial), nil
	}
}

// Connect reads the chain head from the endpoint, when one is set, and
// emits the connect event.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.Connected() {
		return nil
	}

	var (
		client Pinger
		head   uint64
		err    error
	)
	if a.endpoint != "" {
		if client, err = a.dial(ctx, a.endpoint); err != nil {
			return linkerr.Wrap(linkerr.ErrNetworkError, "dialing %s: %v", a.endpoint, err)
		}
		if head, err = client.BlockNumber(ctx); err != nil {
			client.Close()
			return linkerr.Wrap(linkerr.ErrNetworkError, "reading block number from %s: %v", a.endpoint, err)
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
	a.client = client
	a.head = head
	a.mu.Unlock()

	a.Emit(adapter.EventConnect)
	return nil
}

// Disconnect closes the endpoint client and emits the disconnect event if
// the adapter was connected.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil
	}
	a.connected = false
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

// Identity returns the watched address while connected.
func (a *Adapter) Identity() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return ""
	}
	return a.address
}

// Head returns the block number seen at connect.
func (a *Adapter) Head() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.head
}
