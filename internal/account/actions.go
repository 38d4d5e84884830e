package account

import (
	"context"

	"github.com/mrz1836/walletlink/internal/state"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// ErrNoMarginAccount indicates trade history was requested with no margin
// account selected.
var ErrNoMarginAccount = &linkerr.LinkError{
	Code:       "NO_MARGIN_ACCOUNT",
	Message:    "no margin account selected",
	Suggestion: "wait for margin accounts to load after connecting",
	ExitCode:   linkerr.ExitNotFound,
}

// Logger is the logging surface Actions needs.
type Logger interface {
	Debug(format string, args ...any)
}

// Actions fetch session data from a Backend and publish it into a state sink.
// A result is dropped when the session that requested it is gone by the time
// it arrives.
type Actions struct {
	backend Backend
	sink    state.Sink
	logger  Logger
}

// NewActions binds backend to sink. logger may be nil.
func NewActions(backend Backend, sink state.Sink, logger Logger) *Actions {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Actions{backend: backend, sink: sink, logger: logger}
}

// identity returns the connected identity or ErrNotConnected.
func (a *Actions) identity() (string, error) {
	st := a.sink.Read()
	if !st.Wallet.Connected || st.Wallet.Current == nil {
		return "", linkerr.ErrNotConnected
	}
	id := st.Wallet.Current.Identity()
	if id == "" {
		return "", linkerr.ErrNotConnected
	}
	return id, nil
}

// publish applies fn only if ctx is live and identity is still the connected
// one.
func (a *Actions) publish(ctx context.Context, what, identity string, fn state.Mutator) {
	if ctx.Err() != nil {
		a.logger.Debug("dropping %s result: %v", what, ctx.Err())
		return
	}
	a.sink.Update(func(st *state.State) {
		if !st.Wallet.Connected || st.Wallet.Current == nil || st.Wallet.Current.Identity() != identity {
			a.logger.Debug("dropping %s result: session changed", what)
			return
		}
		fn(st)
	})
}

// FetchGroup loads market group metadata.
func (a *Actions) FetchGroup(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}
	g, err := a.backend.Group(ctx)
	if err != nil {
		return linkerr.Wrap(err, "fetching group")
	}
	a.publish(ctx, "group", id, func(st *state.State) { st.Group = g })
	return nil
}

// FetchBalances loads wallet balances for the connected identity.
func (a *Actions) FetchBalances(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}
	balances, err := a.backend.Balances(ctx, id)
	if err != nil {
		return linkerr.Wrap(err, "fetching balances")
	}
	a.publish(ctx, "balances", id, func(st *state.State) { st.Balances = balances })
	return nil
}

// FetchAuxAccounts loads auxiliary accounts for the connected identity.
func (a *Actions) FetchAuxAccounts(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}
	aux, err := a.backend.AuxAccounts(ctx, id)
	if err != nil {
		return linkerr.Wrap(err, "fetching auxiliary accounts")
	}
	a.publish(ctx, "auxiliary accounts", id, func(st *state.State) { st.AuxAccounts = aux })
	return nil
}

// FetchMarginAccounts loads margin accounts and keeps the selection: the
// previously selected account if it still exists, otherwise the first one.
func (a *Actions) FetchMarginAccounts(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}
	accounts, err := a.backend.MarginAccounts(ctx, id)
	if err != nil {
		return linkerr.Wrap(err, "fetching margin accounts")
	}
	a.publish(ctx, "margin accounts", id, func(st *state.State) {
		st.MarginAccounts = accounts
		st.SelectedMarginAccount = pickSelected(accounts, st.SelectedMarginAccount)
	})
	return nil
}

// FetchTradeHistory loads fills for the selected margin account.
func (a *Actions) FetchTradeHistory(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}
	st := a.sink.Read()
	if st.SelectedMarginAccount == nil {
		return ErrNoMarginAccount
	}
	accountID := st.SelectedMarginAccount.ID

	trades, err := a.backend.TradeHistory(ctx, accountID)
	if err != nil {
		return linkerr.Wrap(err, "fetching trade history")
	}
	a.publish(ctx, "trade history", id, func(st *state.State) {
		if st.SelectedMarginAccount == nil || st.SelectedMarginAccount.ID != accountID {
			return
		}
		st.TradeHistory = trades
	})
	return nil
}

func pickSelected(accounts []state.MarginAccount, current *state.MarginAccount) *state.MarginAccount {
	if len(accounts) == 0 {
		return nil
	}
	if current != nil {
		for i := range accounts {
			if accounts[i].ID == current.ID {
				sel := accounts[i]
				return &sel
			}
		}
	}
	sel := accounts[0]
	return &sel
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
