package account_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/account"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/state"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

type fakeChain struct {
	chainID *big.Int
	balance *big.Int
	closed  atomic.Bool
	asked   atomic.Value
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeChain) BalanceAt(_ context.Context, addr common.Address, _ *big.Int) (*big.Int, error) {
	f.asked.Store(addr)
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) Close() { f.closed.Store(true) }

func fastRetry() *account.RetryPolicy {
	return &account.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newAPI(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRPCBackend_RequiresSource(t *testing.T) {
	t.Parallel()

	_, err := account.NewRPCBackend(account.RPCOptions{})
	require.ErrorIs(t, err, linkerr.ErrBackendUnavailable)
}

func TestRPCBackend_ChainOnly(t *testing.T) {
	t.Parallel()

	chain := &fakeChain{chainID: big.NewInt(11155111), balance: big.NewInt(42)}
	var dials atomic.Int64
	m := metrics.New()
	b, err := account.NewRPCBackend(account.RPCOptions{
		Endpoint: "https://rpc.test",
		Metrics:  m,
		Retry:    fastRetry(),
		Dial: func(context.Context, string) (account.ChainReader, error) {
			dials.Add(1)
			return chain, nil
		},
	})
	require.NoError(t, err)
	ctx := context.Background()

	g, err := b.Group(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chain-11155111", g.Name)
	assert.Equal(t, uint64(11155111), g.ChainID)

	balances, err := b.Balances(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "ETH", balances[0].Symbol)
	assert.Equal(t, 18, balances[0].Decimals)
	assert.Equal(t, int64(42), balances[0].Amount.Int64())
	assert.Equal(t, common.HexToAddress(testIdentity), chain.asked.Load())

	aux, err := b.AuxAccounts(ctx, testIdentity)
	require.NoError(t, err)
	assert.Empty(t, aux)

	_, err = b.MarginAccounts(ctx, testIdentity)
	require.ErrorIs(t, err, linkerr.ErrBackendUnavailable)
	_, err = b.TradeHistory(ctx, "m1")
	require.ErrorIs(t, err, linkerr.ErrBackendUnavailable)

	assert.Equal(t, int64(1), dials.Load())
	assert.Equal(t, int64(2), m.Snapshot().BackendCalls)

	b.Close()
	assert.True(t, chain.closed.Load())
}

func TestRPCBackend_InvalidIdentity(t *testing.T) {
	t.Parallel()

	b, err := account.NewRPCBackend(account.RPCOptions{
		Endpoint: "https://rpc.test",
		Dial: func(context.Context, string) (account.ChainReader, error) {
			return &fakeChain{balance: big.NewInt(0)}, nil
		},
	})
	require.NoError(t, err)

	_, err = b.Balances(context.Background(), "not-an-address")
	require.ErrorIs(t, err, linkerr.ErrInvalidAddress)
}

func TestRPCBackend_API(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/group", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, state.Group{Name: "main", ChainID: 1, Markets: []string{"ETH-PERP"}})
	})
	mux.HandleFunc("/balances", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testIdentity, r.URL.Query().Get("owner"))
		writeJSON(w, []state.Balance{{Symbol: "USDC", Amount: big.NewInt(5), Decimals: 6}})
	})
	mux.HandleFunc("/accounts/aux", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []state.AuxAccount{{ID: "a1", Kind: "fee"}})
	})
	mux.HandleFunc("/accounts/margin", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []state.MarginAccount{{ID: "m1", Owner: testIdentity}})
	})
	mux.HandleFunc("/accounts/margin/m1/trades", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []state.Trade{{ID: "t1", MarginAccount: "m1"}})
	})
	srv := newAPI(t, mux)

	b, err := account.NewRPCBackend(account.RPCOptions{APIURL: srv.URL + "/", Retry: fastRetry()})
	require.NoError(t, err)
	ctx := context.Background()

	g, err := b.Group(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", g.Name)

	balances, err := b.Balances(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "USDC", balances[0].Symbol)

	aux, err := b.AuxAccounts(ctx, testIdentity)
	require.NoError(t, err)
	assert.Len(t, aux, 1)

	margin, err := b.MarginAccounts(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, margin, 1)
	assert.Equal(t, "m1", margin[0].ID)

	trades, err := b.TradeHistory(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t1", trades[0].ID)
}

func TestRPCBackend_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, []state.MarginAccount{{ID: "m1"}})
	}))

	b, err := account.NewRPCBackend(account.RPCOptions{APIURL: srv.URL, Retry: fastRetry()})
	require.NoError(t, err)

	margin, err := b.MarginAccounts(context.Background(), testIdentity)
	require.NoError(t, err)
	assert.Len(t, margin, 1)
	assert.Equal(t, int64(3), hits.Load())
}

func TestRPCBackend_RateLimitedExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	m := metrics.New()
	b, err := account.NewRPCBackend(account.RPCOptions{APIURL: srv.URL, Retry: fastRetry(), Metrics: m})
	require.NoError(t, err)

	_, err = b.AuxAccounts(context.Background(), testIdentity)
	require.ErrorIs(t, err, account.ErrRateLimited)
	assert.Equal(t, int64(3), hits.Load())
	assert.Equal(t, int64(1), m.Snapshot().BackendErrors)
}

func TestRPCBackend_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "no such owner", http.StatusNotFound)
	}))

	b, err := account.NewRPCBackend(account.RPCOptions{APIURL: srv.URL, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = b.MarginAccounts(context.Background(), testIdentity)
	require.ErrorIs(t, err, account.ErrAPIError)
	assert.Equal(t, int64(1), hits.Load())
}

func TestRPCBackend_BadJSON(t *testing.T) {
	t.Parallel()

	srv := newAPI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))

	b, err := account.NewRPCBackend(account.RPCOptions{APIURL: srv.URL, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = b.Group(context.Background())
	require.ErrorIs(t, err, account.ErrAPIError)
}
