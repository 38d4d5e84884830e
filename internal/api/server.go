// Package api serves a read-only HTTP view of the running session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/session"
	"github.com/mrz1836/walletlink/internal/state"
)

// shutdownTimeout bounds graceful shutdown in Serve.
const shutdownTimeout = 5 * time.Second

// SessionView is the part of the session manager the API reads.
type SessionView interface {
	Snapshot() session.Snapshot
}

// Subscriber delivers a snapshot after every state update.
type Subscriber interface {
	Subscribe(l state.Listener) (unsubscribe func())
}

// Deps are the read sources behind the routes.
type Deps struct {
	Session  SessionView
	State    state.Sink
	Updates  Subscriber
	Registry *provider.Registry
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	session.Snapshot

	Group                 *state.Group         `json:"group,omitempty"`
	Balances              int                  `json:"balances"`
	AuxAccounts           int                  `json:"auxAccounts"`
	MarginAccounts        int                  `json:"marginAccounts"`
	SelectedMarginAccount *state.MarginAccount `json:"selectedMarginAccount,omitempty"`
	Trades                int                  `json:"trades"`
	StateVersion          uint64               `json:"stateVersion"`
}

// ProviderResponse is one entry of GET /providers.
type ProviderResponse struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Icon     string `json:"icon"`
	Default  bool   `json:"default"`
	Selected bool   `json:"selected"`
}

// NewServer builds the router.
func NewServer(deps Deps) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(deps.Logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, deps.Logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, deps.Logger, http.StatusOK, stateResponse(deps))
	})

	router.Get("/state/stream", streamState(deps))

	router.Get("/providers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, deps.Logger, http.StatusOK, providersResponse(deps))
	})

	router.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, deps.Logger, http.StatusOK, deps.Metrics.Snapshot())
	})

	return router
}

func stateResponse(deps Deps) StateResponse {
	var resp StateResponse
	if deps.Session != nil {
		resp.Snapshot = deps.Session.Snapshot()
	}
	if deps.State != nil {
		st := deps.State.Read()
		resp.Group = st.Group
		resp.Balances = len(st.Balances)
		resp.AuxAccounts = len(st.AuxAccounts)
		resp.MarginAccounts = len(st.MarginAccounts)
		resp.SelectedMarginAccount = st.SelectedMarginAccount
		resp.Trades = len(st.TradeHistory)
		resp.StateVersion = st.Version
	}
	return resp
}

// streamState sends the state view as a server-sent event on connect and
// again after every state update, until the client goes away. Updates that
// arrive while an event is being written are coalesced.
func streamState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok || deps.Updates == nil {
			writeJSON(w, deps.Logger, http.StatusNotImplemented, map[string]string{"error": "state streaming unavailable"})
			return
		}

		changed := make(chan struct{}, 1)
		unsubscribe := deps.Updates.Subscribe(func(state.State) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		for {
			if err := writeEvent(w, stateResponse(deps)); err != nil {
				deps.Logger.Debug("state stream write failed", "error", err)
				return
			}
			flusher.Flush()

			select {
			case <-r.Context().Done():
				return
			case <-changed:
			}
		}
	}
}

func writeEvent(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func providersResponse(deps Deps) []ProviderResponse {
	if deps.Registry == nil {
		return []ProviderResponse{}
	}
	selected := ""
	if deps.Session != nil {
		selected = deps.Session.Snapshot().ProviderURL
	}
	def := deps.Registry.Default().URL

	list := deps.Registry.List()
	out := make([]ProviderResponse, 0, len(list))
	for _, d := range list {
		out = append(out, ProviderResponse{
			Name:     d.Name,
			URL:      d.URL,
			Icon:     d.Icon,
			Default:  d.URL == def,
			Selected: d.URL == selected,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("response write failed", "error", err)
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully. Open
// state streams are ended when shutdown begins. ready, if non-nil, receives
// the bound address once listening.
func Serve(ctx context.Context, addr string, handler http.Handler, ready func(net.Addr)) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready(ln.Addr())
	}

	requestCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
