package account

import (
	"context"
	"sync"

	"github.com/mrz1836/walletlink/internal/state"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

var _ Backend = (*Switch)(nil)

// Switch routes each call to the backend registered for the provider that is
// published in state at call time, or to the fallback.
type Switch struct {
	sink     state.Sink
	fallback Backend

	mu     sync.RWMutex
	routes map[string]Backend
}

// NewSwitch creates a switch reading the provider from sink. fallback may be
// nil, in which case unrouted providers get ErrBackendUnavailable.
func NewSwitch(sink state.Sink, fallback Backend) *Switch {
	return &Switch{sink: sink, fallback: fallback, routes: make(map[string]Backend)}
}

// Route sends calls made while providerURL is selected to b.
func (s *Switch) Route(providerURL string, b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[providerURL] = b
}

func (s *Switch) backend() (Backend, error) {
	url := s.sink.Read().Wallet.ProviderURL

	s.mu.RLock()
	b, ok := s.routes[url]
	s.mu.RUnlock()
	if ok {
		return b, nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return nil, linkerr.WithDetails(linkerr.ErrBackendUnavailable, map[string]string{"provider": url})
}

// Group implements Backend.
func (s *Switch) Group(ctx context.Context) (*state.Group, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	return b.Group(ctx)
}

// Balances implements Backend.
func (s *Switch) Balances(ctx context.Context, identity string) ([]state.Balance, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	return b.Balances(ctx, identity)
}

// AuxAccounts implements Backend.
func (s *Switch) AuxAccounts(ctx context.Context, identity string) ([]state.AuxAccount, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	return b.AuxAccounts(ctx, identity)
}

// MarginAccounts implements Backend.
func (s *Switch) MarginAccounts(ctx context.Context, identity string) ([]state.MarginAccount, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	return b.MarginAccounts(ctx, identity)
}

// TradeHistory implements Backend.
func (s *Switch) TradeHistory(ctx context.Context, marginAccount string) ([]state.Trade, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	return b.TradeHistory(ctx, marginAccount)
}
