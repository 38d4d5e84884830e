package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mrz1836/walletlink/internal/state"
)

// Task names.
const (
	TaskAccounts = "accounts"
	TaskTrades   = "trades"
)

// Actions are the fetches the periodic tasks call.
type Actions interface {
	FetchMarginAccounts(ctx context.Context) error
	FetchBalances(ctx context.Context) error
	FetchTradeHistory(ctx context.Context) error
}

// SessionReady reports, at call time, whether the wallet is connected and a
// margin account is selected.
func SessionReady(sink state.Sink) func() bool {
	return func() bool {
		st := sink.Read()
		return st.Wallet.Connected && st.HasSelectedMarginAccount()
	}
}

// DefaultTasks returns the accounts task (margin accounts and balances) and
// the trades task (trade history).
func DefaultTasks(actions Actions, accountsEvery, tradesEvery time.Duration) []Task {
	return []Task{
		{
			Name:     TaskAccounts,
			Interval: accountsEvery,
			Action: func(ctx context.Context) error {
				return parallel(ctx, actions.FetchMarginAccounts, actions.FetchBalances)
			},
		},
		{
			Name:     TaskTrades,
			Interval: tradesEvery,
			Action:   actions.FetchTradeHistory,
		},
	}
}

// parallel runs fns concurrently and joins their errors.
func parallel(ctx context.Context, fns ...func(context.Context) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
