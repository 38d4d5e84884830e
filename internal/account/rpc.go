package account

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/state"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

const (
	// nativeSymbol is the symbol reported for the endpoint's native balance.
	nativeSymbol = "ETH"

	// nativeDecimals is the number of decimals of the native asset.
	nativeDecimals = 18

	// defaultHTTPTimeout bounds a single API request.
	defaultHTTPTimeout = 30 * time.Second

	// maxResponseBody is the maximum API response size read (1 MB).
	maxResponseBody = 1 << 20
)

// ErrAPIError indicates the account API answered with a non-success status.
var ErrAPIError = &linkerr.LinkError{
	Code:     "ACCOUNT_API_ERROR",
	Message:  "account API returned an error",
	ExitCode: linkerr.ExitGeneral,
}

// ChainReader is the subset of ethclient.Client the backend uses.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// DialFunc opens a ChainReader for an endpoint.
type DialFunc func(ctx context.Context, endpoint string) (ChainReader, error)

// DialEthClient dials endpoint with go-ethereum's ethclient.
func DialEthClient(ctx context.Context, endpoint string) (ChainReader, error) {
	c, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RPCOptions configures an RPCBackend.
type RPCOptions struct {
	// Endpoint is the JSON-RPC endpoint used for native balances and the
	// chain ID.
	Endpoint string
	// APIURL is the account API base URL. Without it only the native balance
	// and a chain-derived group are available.
	APIURL string

	HTTPClient *http.Client
	Limiter    *RateLimiter
	Retry      *RetryPolicy
	Metrics    *metrics.Metrics
	Dial       DialFunc
}

// RPCBackend reads native balances from the network endpoint and account data
// from a JSON HTTP API.
type RPCBackend struct {
	endpoint   string
	apiURL     string
	httpClient *http.Client
	limiter    *RateLimiter
	retry      RetryPolicy
	metrics    *metrics.Metrics
	dial       DialFunc

	mu     sync.Mutex
	client ChainReader
}

// NewRPCBackend creates a backend. Nothing is dialed until first use.
func NewRPCBackend(opts RPCOptions) (*RPCBackend, error) {
	if opts.Endpoint == "" && opts.APIURL == "" {
		return nil, linkerr.WithSuggestion(linkerr.ErrBackendUnavailable,
			"set network.endpoint or backend.api_url in config.yaml")
	}

	b := &RPCBackend{
		endpoint:   opts.Endpoint,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		retry:      DefaultRetryPolicy(),
		metrics:    opts.Metrics,
		dial:       opts.Dial,
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if b.limiter == nil {
		b.limiter = DefaultRateLimiter()
	}
	if opts.Retry != nil {
		b.retry = *opts.Retry
	}
	if b.metrics == nil {
		b.metrics = metrics.Global
	}
	if b.dial == nil {
		b.dial = DialEthClient
	}
	return b, nil
}

// Close releases the RPC connection if one was opened.
func (b *RPCBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
}

func (b *RPCBackend) chain(ctx context.Context) (ChainReader, error) {
	if b.endpoint == "" {
		return nil, linkerr.WithDetails(linkerr.ErrBackendUnavailable, map[string]string{
			"missing": "network.endpoint",
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	c, err := b.dial(ctx, b.endpoint)
	if err != nil {
		return nil, linkerr.Wrap(linkerr.ErrNetworkError, "dialing %s: %v", b.endpoint, err)
	}
	b.client = c
	return c, nil
}

// Group returns the market group from the API, or one derived from the
// endpoint's chain ID when no API is configured.
func (b *RPCBackend) Group(ctx context.Context) (*state.Group, error) {
	if b.apiURL != "" {
		var g state.Group
		if err := b.getJSON(ctx, "/group", nil, &g); err != nil {
			return nil, err
		}
		return &g, nil
	}

	id, err := b.call(ctx, func(ctx context.Context) (*big.Int, error) {
		c, err := b.chain(ctx)
		if err != nil {
			return nil, err
		}
		return c.ChainID(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &state.Group{
		Name:      fmt.Sprintf("chain-%s", id),
		ChainID:   id.Uint64(),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Balances returns the native balance followed by any API-reported token
// balances.
func (b *RPCBackend) Balances(ctx context.Context, identity string) ([]state.Balance, error) {
	var out []state.Balance

	if b.endpoint != "" {
		if !common.IsHexAddress(identity) {
			return nil, linkerr.WithDetails(linkerr.ErrInvalidAddress, map[string]string{
				"identity": identity,
			})
		}
		addr := common.HexToAddress(identity)
		wei, err := b.call(ctx, func(ctx context.Context) (*big.Int, error) {
			c, err := b.chain(ctx)
			if err != nil {
				return nil, err
			}
			return c.BalanceAt(ctx, addr, nil)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, state.Balance{Symbol: nativeSymbol, Amount: wei, Decimals: nativeDecimals})
	}

	if b.apiURL != "" {
		var tokens []state.Balance
		if err := b.getJSON(ctx, "/balances", url.Values{"owner": {identity}}, &tokens); err != nil {
			return nil, err
		}
		out = append(out, tokens...)
	}
	return out, nil
}

// AuxAccounts lists auxiliary accounts owned by identity.
func (b *RPCBackend) AuxAccounts(ctx context.Context, identity string) ([]state.AuxAccount, error) {
	if b.apiURL == "" {
		return nil, nil
	}
	var out []state.AuxAccount
	err := b.getJSON(ctx, "/accounts/aux", url.Values{"owner": {identity}}, &out)
	return out, err
}

// MarginAccounts lists margin accounts owned by identity.
func (b *RPCBackend) MarginAccounts(ctx context.Context, identity string) ([]state.MarginAccount, error) {
	if b.apiURL == "" {
		return nil, linkerr.WithDetails(linkerr.ErrBackendUnavailable, map[string]string{
			"missing": "backend.api_url",
		})
	}
	var out []state.MarginAccount
	err := b.getJSON(ctx, "/accounts/margin", url.Values{"owner": {identity}}, &out)
	return out, err
}

// TradeHistory lists fills for marginAccount.
func (b *RPCBackend) TradeHistory(ctx context.Context, marginAccount string) ([]state.Trade, error) {
	if b.apiURL == "" {
		return nil, linkerr.WithDetails(linkerr.ErrBackendUnavailable, map[string]string{
			"missing": "backend.api_url",
		})
	}
	var out []state.Trade
	err := b.getJSON(ctx, "/accounts/margin/"+url.PathEscape(marginAccount)+"/trades", nil, &out)
	return out, err
}

// call runs a chain read with retry and records it.
func (b *RPCBackend) call(ctx context.Context, op func(context.Context) (*big.Int, error)) (*big.Int, error) {
	v, err := withRetry(ctx, b.retry, func(ctx context.Context) (*big.Int, error) {
		if err := b.limiter.Wait(ctx, b.endpoint); err != nil {
			return nil, err
		}
		return op(ctx)
	})
	b.metrics.RecordBackendCall(err)
	return v, err
}

func (b *RPCBackend) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	reqURL := b.apiURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	body, err := withRetry(ctx, b.retry, func(ctx context.Context) ([]byte, error) {
		return b.get(ctx, reqURL)
	})
	b.metrics.RecordBackendCall(err)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return linkerr.Wrap(ErrAPIError, "parsing %s: %v", path, err)
	}
	return nil
}

func (b *RPCBackend) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := b.limiter.Wait(ctx, b.apiURL); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req) //nolint:gosec // URL comes from validated config
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		details := map[string]string{"status": "429"}
		if wait := parseRetryAfter(resp.Header.Get("Retry-After")); wait > 0 {
			details["retry_after"] = wait.String()
		}
		return nil, linkerr.WithDetails(ErrRateLimited, details)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, linkerr.WithDetails(ErrRetryable, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
	case resp.StatusCode != http.StatusOK:
		return nil, linkerr.WithDetails(ErrAPIError, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
			"body":   truncate(string(body), 256),
		})
	}
	return body, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
