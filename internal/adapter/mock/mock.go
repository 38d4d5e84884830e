// Package mock provides a scripted wallet adapter. It backs the "Demo"
// provider and doubles as the adapter used in tests.
package mock

import (
	"context"
	"sync"

	"github.com/mrz1836/walletlink/internal/adapter"
)

// DefaultIdentity is the identity reported by demo adapters.
const DefaultIdentity = "DemoWa11etIdentity7xQ9pLmN3vR8sT2uY5"

// Compile-time interface check
var _ adapter.Adapter = (*Adapter)(nil)

// Adapter is an in-memory adapter whose handshake always succeeds unless an
// error has been scripted.
type Adapter struct {
	adapter.Emitter

	providerURL string
	endpoint    string

	mu              sync.Mutex
	identity        string
	connected       bool
	connectErr      error
	disconnectErr   error
	connectCalls    int
	disconnectCalls int
}

// New creates a mock adapter that reports identity once connected.
func New(providerURL, endpoint, identity string) *Adapter {
	return &Adapter{
		providerURL: providerURL,
		endpoint:    endpoint,
		identity:    identity,
	}
}

// Constructor returns an adapter.Constructor producing mock adapters with the
// given identity.
func Constructor(identity string) adapter.Constructor {
	return func(providerURL, endpoint string) (adapter.Adapter, error) {
		return New(providerURL, endpoint, identity), nil
	}
}

// ProviderURL returns the provider URL the adapter was built for.
func (a *Adapter) ProviderURL() string { return a.providerURL }

// Endpoint returns the endpoint the adapter was built for.
func (a *Adapter) Endpoint() string { return a.endpoint }

// Connect completes the handshake and emits the connect event.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	a.connectCalls++
	if err := a.connectErr; err != nil {
		a.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		a.mu.Unlock()
		return err
	}
	a.connected = true
	a.mu.Unlock()

	a.Emit(adapter.EventConnect)
	return nil
}

// Disconnect closes the connection. The disconnect event is emitted only when
// the adapter was connected.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	a.disconnectCalls++
	if err := a.disconnectErr; err != nil {
		a.mu.Unlock()
		return err
	}
	was := a.connected
	a.connected = false
	a.mu.Unlock()

	if was {
		a.Emit(adapter.EventDisconnect)
	}
	return nil
}

// Connected reports the handshake state.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Identity returns the configured identity while connected.
func (a *Adapter) Identity() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return ""
	}
	return a.identity
}

// SetConnectError scripts the error returned by the next Connect calls.
func (a *Adapter) SetConnectError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
}

// SetDisconnectError scripts the error returned by the next Disconnect calls.
func (a *Adapter) SetDisconnectError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnectErr = err
}

// SimulateConnect marks the adapter connected and emits the connect event, as
// a provider does when the user approves from outside the application.
func (a *Adapter) SimulateConnect() {
	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()
	a.Emit(adapter.EventConnect)
}

// SimulateDisconnect marks the adapter disconnected and emits the disconnect
// event, as a provider does when the user locks the wallet.
func (a *Adapter) SimulateDisconnect() {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	a.Emit(adapter.EventDisconnect)
}

// ConnectCalls returns the number of Connect invocations.
func (a *Adapter) ConnectCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectCalls
}

// DisconnectCalls returns the number of Disconnect invocations.
func (a *Adapter) DisconnectCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disconnectCalls
}
