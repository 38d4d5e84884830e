// Package account fetches the session data published after a wallet connects:
// market group, wallet balances, auxiliary accounts, margin accounts and
// trade history.
package account

import (
	"context"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/mrz1836/walletlink/internal/state"
)

// Backend is the data source the actions read from.
type Backend interface {
	Group(ctx context.Context) (*state.Group, error)
	Balances(ctx context.Context, identity string) ([]state.Balance, error)
	AuxAccounts(ctx context.Context, identity string) ([]state.AuxAccount, error)
	MarginAccounts(ctx context.Context, identity string) ([]state.MarginAccount, error)
	TradeHistory(ctx context.Context, marginAccount string) ([]state.Trade, error)
}

// Compile-time interface checks
var (
	_ Backend = (*StaticBackend)(nil)
	_ Backend = (*RPCBackend)(nil)
)

// StaticBackend serves fixed data. Err, when set, is returned by every call.
type StaticBackend struct {
	mu sync.Mutex

	GroupInfo *state.Group
	Balance   []state.Balance
	Aux       []state.AuxAccount
	Margin    []state.MarginAccount
	Trades    map[string][]state.Trade
	Err       error
}

// DemoBackend returns a StaticBackend populated for the demo provider. Margin
// accounts and balances are owned by whatever identity asks.
func DemoBackend() *StaticBackend {
	now := time.Now().UTC().Truncate(time.Second)
	return &StaticBackend{
		GroupInfo: &state.Group{
			Name:      "demo",
			ChainID:   1,
			Markets:   []string{"ETH-PERP", "BTC-PERP"},
			UpdatedAt: now,
		},
		Balance: []state.Balance{
			{Symbol: "ETH", Amount: big.NewInt(1_500_000_000_000_000_000), Decimals: 18},
			{Symbol: "USDC", Amount: big.NewInt(250_000_000), Decimals: 6},
		},
		Aux: []state.AuxAccount{
			{ID: "fee-1", Kind: "fee", Balance: "12.5"},
		},
		Margin: []state.MarginAccount{
			{ID: "margin-1", Equity: "1000.00"},
			{ID: "margin-2", Equity: "42.00"},
		},
		Trades: map[string][]state.Trade{
			"margin-1": {
				{ID: "t-1", MarginAccount: "margin-1", Market: "ETH-PERP", Side: "buy", Size: "0.5", Price: "3120.10", Time: now.Add(-time.Hour)},
				{ID: "t-2", MarginAccount: "margin-1", Market: "BTC-PERP", Side: "sell", Size: "0.01", Price: "64000", Time: now.Add(-10 * time.Minute)},
			},
		},
	}
}

// SetErr scripts the error every call returns. nil clears it.
func (b *StaticBackend) SetErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Err = err
}

func (b *StaticBackend) err(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Err
}

// Group returns a copy of GroupInfo.
func (b *StaticBackend) Group(ctx context.Context) (*state.Group, error) {
	if err := b.err(ctx); err != nil {
		return nil, err
	}
	if b.GroupInfo == nil {
		return nil, nil //nolint:nilnil // no group configured
	}
	g := *b.GroupInfo
	g.Markets = slices.Clone(g.Markets)
	return &g, nil
}

// Balances returns the fixed balances.
func (b *StaticBackend) Balances(ctx context.Context, _ string) ([]state.Balance, error) {
	if err := b.err(ctx); err != nil {
		return nil, err
	}
	out := make([]state.Balance, len(b.Balance))
	for i, bal := range b.Balance {
		out[i] = bal
		if bal.Amount != nil {
			out[i].Amount = new(big.Int).Set(bal.Amount)
		}
	}
	return out, nil
}

// AuxAccounts returns the fixed auxiliary accounts.
func (b *StaticBackend) AuxAccounts(ctx context.Context, _ string) ([]state.AuxAccount, error) {
	if err := b.err(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(b.Aux), nil
}

// MarginAccounts returns the fixed margin accounts owned by identity.
func (b *StaticBackend) MarginAccounts(ctx context.Context, identity string) ([]state.MarginAccount, error) {
	if err := b.err(ctx); err != nil {
		return nil, err
	}
	out := slices.Clone(b.Margin)
	for i := range out {
		if out[i].Owner == "" {
			out[i].Owner = identity
		}
	}
	return out, nil
}

// TradeHistory returns the fixed trades for marginAccount.
func (b *StaticBackend) TradeHistory(ctx context.Context, marginAccount string) ([]state.Trade, error) {
	if err := b.err(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(b.Trades[marginAccount]), nil
}
