package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/api"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/session"
	"github.com/mrz1836/walletlink/internal/state"
)

type fakeSession struct {
	snap session.Snapshot
}

func (f fakeSession) Snapshot() session.Snapshot { return f.snap }

func testDeps() api.Deps {
	store := state.NewStore()
	store.Update(func(st *state.State) {
		st.Wallet.Connected = true
		st.Balances = []state.Balance{{Symbol: "ETH"}}
		st.MarginAccounts = []state.MarginAccount{{ID: "m1"}, {ID: "m2"}}
		st.SelectedMarginAccount = &state.MarginAccount{ID: "m1"}
	})

	m := metrics.New()
	m.RecordConnect()

	return api.Deps{
		Session: fakeSession{snap: session.Snapshot{
			Phase:        session.PhaseConnected,
			ProviderName: "Demo",
			ProviderURL:  provider.DemoURL,
			Connected:    true,
			Identity:     "DemoW...Y5",
			Generation:   2,
		}},
		State: store,
		Registry: provider.MustRegistry(
			provider.Descriptor{Name: "Keystore", URL: provider.KeystoreURL},
			provider.Descriptor{Name: "Demo", URL: provider.DemoURL},
		),
		Metrics: m,
	}
}

func get(t *testing.T, h http.Handler, path string, dst any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if dst != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
	}
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	var body map[string]string
	rec := get(t, api.NewServer(api.Deps{}), "/healthz", &body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
}

func TestState(t *testing.T) {
	t.Parallel()

	var body map[string]any
	rec := get(t, api.NewServer(testDeps()), "/state", &body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "connected", body["phase"])
	assert.Equal(t, "Demo", body["provider"])
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, "DemoW...Y5", body["identity"])
	assert.InDelta(t, 1, body["balances"], 0)
	assert.InDelta(t, 2, body["marginAccounts"], 0)
	assert.InDelta(t, 0, body["trades"], 0)
	selected, ok := body["selectedMarginAccount"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m1", selected["id"])
}

func TestState_NoSources(t *testing.T) {
	t.Parallel()

	var body map[string]any
	rec := get(t, api.NewServer(api.Deps{}), "/state", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", body["phase"])
	assert.Equal(t, false, body["connected"])
	assert.InDelta(t, 0, body["marginAccounts"], 0)
}

func TestProviders(t *testing.T) {
	t.Parallel()

	var body []api.ProviderResponse
	rec := get(t, api.NewServer(testDeps()), "/providers", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body, 2)

	assert.Equal(t, "Keystore", body[0].Name)
	assert.True(t, body[0].Default)
	assert.False(t, body[0].Selected)
	assert.Equal(t, "Demo", body[1].Name)
	assert.True(t, body[1].Selected)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	var body metrics.Snapshot
	rec := get(t, api.NewServer(testDeps()), "/metrics", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), body.Connects)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	rec := get(t, api.NewServer(testDeps()), "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Serve(ctx, "127.0.0.1:0", api.NewServer(testDeps()), func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr.String()+"/healthz", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func streamingDeps() (api.Deps, *state.Store) {
	deps := testDeps()
	store := deps.State.(*state.Store)
	deps.Updates = store
	return deps, store
}

func openStream(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/state/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp, bufio.NewReader(resp.Body)
}

type streamEvent struct {
	Phase          string `json:"phase"`
	Balances       int    `json:"balances"`
	MarginAccounts int    `json:"marginAccounts"`
	StateVersion   uint64 `json:"stateVersion"`
}

func readEvent(t *testing.T, r *bufio.Reader) streamEvent {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		var ev streamEvent
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		return ev
	}
}

func TestStateStream_SendsSnapshotThenUpdates(t *testing.T) {
	t.Parallel()

	deps, store := streamingDeps()
	srv := httptest.NewServer(api.NewServer(deps))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, body := openStream(t, ctx, srv.URL)
	defer func() { _ = resp.Body.Close() }()

	first := readEvent(t, body)
	assert.Equal(t, "connected", first.Phase)
	assert.Equal(t, 1, first.Balances)
	assert.Equal(t, 2, first.MarginAccounts)

	store.Update(func(st *state.State) {
		st.Balances = append(st.Balances, state.Balance{Symbol: "USDC"})
	})

	next := readEvent(t, body)
	assert.Equal(t, 2, next.Balances)
	assert.Greater(t, next.StateVersion, first.StateVersion)
}

func TestStateStream_Unavailable(t *testing.T) {
	t.Parallel()

	rec := get(t, api.NewServer(testDeps()), "/state/stream", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServe_ShutdownEndsOpenStreams(t *testing.T) {
	t.Parallel()

	deps, _ := streamingDeps()
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Serve(ctx, "127.0.0.1:0", api.NewServer(deps), func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	resp, body := openStream(t, reqCtx, "http://"+addr.String())
	defer func() { _ = resp.Body.Close() }()
	readEvent(t, body)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down with a stream open")
	}
}
