// Package session implements the wallet session lifecycle: it resolves the
// selected provider, builds and owns the single active adapter, reacts to the
// adapter's connect and disconnect events, and publishes connection state.
//
// Every transition runs on one event-loop goroutine. Adapter events, host
// ready signals and public calls are posted to that loop, and events from an
// adapter that has since been replaced are dropped by generation check.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrz1836/walletlink/internal/adapter"
	"github.com/mrz1836/walletlink/internal/hostready"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/notify"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/selection"
	"github.com/mrz1836/walletlink/internal/state"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Notification texts.
const (
	MsgConnected       = "Wallet connected"
	MsgConnectedPrefix = "Connected to wallet "
	MsgDisconnected    = "Disconnected from wallet"
)

// DefaultDisconnectTimeout bounds the best-effort disconnect during teardown.
const DefaultDisconnectTimeout = 5 * time.Second

// Logger is the logging surface the manager needs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Actions are the one-shot data refreshes triggered by a connect.
type Actions interface {
	FetchGroup(ctx context.Context) error
	FetchBalances(ctx context.Context) error
	FetchAuxAccounts(ctx context.Context) error
	FetchMarginAccounts(ctx context.Context) error
	FetchTradeHistory(ctx context.Context) error
}

// Config tunes manager behavior.
type Config struct {
	// Endpoint is the initial network endpoint.
	Endpoint string

	// AutoConnect requests Connect once after each successful construction.
	AutoConnect bool

	// RedactHead and RedactTail set how much of the identity is shown.
	RedactHead int
	RedactTail int

	// DisconnectTimeout bounds the disconnect call during teardown.
	DisconnectTimeout time.Duration
}

// Deps are the collaborators the manager is wired to.
type Deps struct {
	Registry  *provider.Registry
	Factory   provider.Factory
	Selection selection.Store
	State     state.Sink
	Gate      *hostready.Gate
	Notifier  notify.Notifier
	Actions   Actions
	Logger    Logger
	Metrics   *metrics.Metrics
}

// Snapshot is a read-only view of the manager.
type Snapshot struct {
	Phase        Phase  `json:"phase"`
	ProviderName string `json:"provider"`
	ProviderURL  string `json:"providerUrl"`
	Endpoint     string `json:"endpoint"`
	Connected    bool   `json:"connected"`
	Identity     string `json:"identity,omitempty"`
	Generation   uint64 `json:"generation"`
	LastError    string `json:"lastError,omitempty"`
}

// Manager owns the active adapter and drives the session state machine.
type Manager struct {
	cfg      Config
	registry *provider.Registry
	factory  provider.Factory
	store    selection.Store
	sink     state.Sink
	gate     *hostready.Gate
	notifier notify.Notifier
	actions  Actions
	logger   Logger
	metrics  *metrics.Metrics

	queue *eventQueue

	baseCtx    context.Context //nolint:containedctx // parent for background follow-ups
	baseCancel context.CancelFunc
	background sync.WaitGroup
	closeOnce  sync.Once

	// generation is bumped on every retirement and read by follow-up
	// goroutines; it is only written on the loop.
	generation atomic.Uint64
	snapshot   atomic.Pointer[Snapshot]

	// Loop-owned fields.
	phase         Phase
	descriptor    provider.Descriptor
	endpoint      string
	active        adapter.Adapter
	unsubscribe   []adapter.Unsubscribe
	cancelGate    func()
	sessionCancel context.CancelFunc
	identity      string
	lastErr       error
}

// New creates a manager. Nothing runs until Start.
func New(cfg Config, deps Deps) *Manager {
	if cfg.RedactHead == 0 && cfg.RedactTail == 0 {
		cfg.RedactHead = notify.DefaultRedactHead
		cfg.RedactTail = notify.DefaultRedactTail
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if deps.Factory == nil {
		deps.Factory = provider.NewConfigurableFactory(nil)
	}
	if deps.Selection == nil {
		deps.Selection = selection.NewMemoryStore(deps.Registry.Default().URL)
	}
	if deps.State == nil {
		deps.State = state.NewStore()
	}
	if deps.Gate == nil {
		deps.Gate = hostready.NewReady()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	m := &Manager{
		cfg:      cfg,
		registry: deps.Registry,
		factory:  deps.Factory,
		store:    deps.Selection,
		sink:     deps.State,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		actions:  deps.Actions,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		endpoint: cfg.Endpoint,
	}
	m.queue = newEventQueue(func(r any) {
		m.logger.Error("session callback panicked: %v", r)
	})
	m.publishSnapshot()
	return m
}

// Start launches the event loop, reads the persisted selection once and
// resolves the provider. An unknown persisted URL falls back to the registry
// default.
func (m *Manager) Start(ctx context.Context) error {
	if !m.queue.start() {
		return linkerr.Wrap(linkerr.ErrManagerClosed, "session manager already started")
	}
	m.baseCtx, m.baseCancel = context.WithCancel(ctx)

	m.queue.call(func() {
		url := m.store.Get()
		d, ok := m.registry.Find(url)
		if !ok {
			d = m.registry.Default()
			m.logger.Error("persisted provider %q is not registered, using %s", url, d.Name)
		}
		m.logger.Info("session starting with provider %s at %s", d.Name, m.endpoint)
		m.resolve(d, m.endpoint)
	})
	return nil
}

// SelectProvider switches to the provider identified by nameOrURL and
// persists the choice. Selecting the current provider is a no-op.
func (m *Manager) SelectProvider(nameOrURL string) error {
	d, err := m.registry.Lookup(nameOrURL)
	if err != nil {
		return err
	}

	var persistErr error
	ok := m.queue.call(func() {
		if m.phase != PhaseIdle && d.URL == m.descriptor.URL {
			return
		}
		if err := m.store.Set(d.URL); err != nil {
			persistErr = linkerr.Wrap(err, "persisting provider selection")
			m.logger.Error("persisting provider selection: %v", err)
		}
		m.logger.Info("provider changed to %s", d.Name)
		m.resolve(d, m.endpoint)
	})
	if !ok {
		return linkerr.ErrManagerClosed
	}
	return persistErr
}

// SetEndpoint rebinds the session to a new network endpoint. Setting the
// current endpoint is a no-op.
func (m *Manager) SetEndpoint(endpoint string) error {
	ok := m.queue.call(func() {
		if endpoint == m.endpoint {
			return
		}
		m.logger.Info("endpoint changed to %s", endpoint)
		m.resolve(m.descriptor, endpoint)
	})
	if !ok {
		return linkerr.ErrManagerClosed
	}
	return nil
}

// Connect asks the active adapter to connect and waits until the resulting
// event has been processed. If the adapter is retired while the handshake is
// in flight, it is disconnected and ErrNoAdapter is returned.
func (m *Manager) Connect(ctx context.Context) error {
	a, gen, name, err := m.currentAdapter()
	if err != nil {
		return err
	}
	err = a.Connect(ctx)
	if m.reapIfRetired(gen, a, name) {
		return linkerr.Wrap(linkerr.ErrNoAdapter, "%s adapter was retired while connecting", name)
	}
	if err != nil {
		return linkerr.Wrap(fmt.Errorf("%w: %w", linkerr.ErrConnectFailed, err), "connecting to %s", name)
	}
	m.Flush()
	return nil
}

// Disconnect asks the active adapter to disconnect and waits until the
// resulting event has been processed.
func (m *Manager) Disconnect(ctx context.Context) error {
	a, _, _, err := m.currentAdapter()
	if err != nil {
		return err
	}
	if !a.Connected() {
		return linkerr.ErrNotConnected
	}
	if err := a.Disconnect(ctx); err != nil {
		return linkerr.Wrap(err, "disconnecting from %s", m.Snapshot().ProviderName)
	}
	m.Flush()
	return nil
}

// Phase returns the current phase.
func (m *Manager) Phase() Phase {
	return m.snapshot.Load().Phase
}

// Snapshot returns the latest published view.
func (m *Manager) Snapshot() Snapshot {
	return *m.snapshot.Load()
}

// Flush waits until every callback queued before the call has run.
func (m *Manager) Flush() {
	m.queue.call(func() {})
}

// Close tears down the active adapter, stops the loop and waits for
// background work until ctx is done. It is safe to call more than once.
func (m *Manager) Close(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.queue.call(func() {
			m.teardown()
			m.setPhase(PhaseClosed)
		})
		m.queue.stop()
		if m.baseCancel != nil {
			m.baseCancel()
		}

		waited := make(chan struct{})
		go func() {
			m.background.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if m.Phase() != PhaseClosed {
			m.setPhase(PhaseClosed)
		}
		m.logger.Info("session closed")
	})
	return err
}

// currentAdapter returns the active adapter with its generation and provider
// name.
func (m *Manager) currentAdapter() (a adapter.Adapter, gen uint64, name string, err error) {
	if !m.queue.call(func() {
		a, gen, name = m.active, m.generation.Load(), m.descriptor.Name
	}) {
		return nil, 0, "", linkerr.ErrManagerClosed
	}
	if a == nil {
		return nil, 0, "", linkerr.ErrNoAdapter
	}
	return a, gen, name, nil
}

// reapIfRetired reports whether a was retired while its Connect ran, and
// disconnects it if the late handshake left it connected. Its subscriptions
// are already gone, so nothing else would. Must not be called on the loop.
func (m *Manager) reapIfRetired(gen uint64, a adapter.Adapter, name string) bool {
	retired := true
	m.queue.call(func() { retired = !m.isActive(gen, a) })
	if !retired {
		return false
	}
	if a.Connected() {
		m.logger.Debug("disconnecting %s adapter that connected after retirement", name)
		m.disconnectQuietly(a, name)
	}
	return true
}

// resolve retires the current adapter and starts a new construction cycle.
// Runs on the loop.
func (m *Manager) resolve(d provider.Descriptor, endpoint string) {
	m.teardown()

	m.descriptor = d
	m.endpoint = endpoint
	m.lastErr = nil
	m.sink.Update(func(s *state.State) {
		s.Wallet.ProviderURL = d.URL
		s.Connection.Endpoint = endpoint
	})

	if m.gate.Ready() {
		m.construct(false)
		return
	}

	gen := m.generation.Load()
	cancel, deferred := m.gate.Once(func() {
		m.queue.post(func() {
			if gen != m.generation.Load() {
				return
			}
			m.cancelGate = nil
			m.construct(true)
		})
	})
	if !deferred {
		m.construct(false)
		return
	}
	m.cancelGate = cancel
	m.logger.Debug("host not ready, deferring %s adapter", d.Name)
	m.setPhase(PhaseAwaitingHostReady)
}

// construct builds and subscribes the adapter for the current descriptor.
// Runs on the loop.
func (m *Manager) construct(deferred bool) {
	d, endpoint := m.descriptor, m.endpoint

	a, err := m.factory.NewAdapter(d, endpoint)
	m.metrics.RecordConstruction(deferred, err)
	if err != nil {
		m.lastErr = err
		m.logger.Error("constructing %s adapter: %v", d.Name, err)
		m.sink.Update(func(s *state.State) {
			s.Wallet.Current = nil
			s.Wallet.Connected = false
		})
		m.setPhase(PhaseDisconnected)
		return
	}

	gen := m.generation.Load()
	m.unsubscribe = []adapter.Unsubscribe{
		a.On(adapter.EventConnect, func() {
			m.queue.post(func() { m.onConnect(gen, a) })
		}),
		a.On(adapter.EventDisconnect, func() {
			m.queue.post(func() { m.onDisconnect(gen, a) })
		}),
	}
	m.active = a

	m.sink.Update(func(s *state.State) {
		s.Wallet.Current = a
		s.Wallet.Connected = false
	})
	m.setPhase(PhaseDisconnected)
	m.logger.Debug("constructed %s adapter for %s", d.Name, endpoint)

	if m.cfg.AutoConnect {
		m.background.Add(1)
		go func() {
			defer m.background.Done()
			err := a.Connect(m.baseCtx)
			if m.reapIfRetired(gen, a, d.Name) {
				return
			}
			if err != nil {
				m.logger.Error("auto-connecting %s: %v", d.Name, err)
			}
		}()
	}
}

// onConnect handles the connect event. Runs on the loop.
func (m *Manager) onConnect(gen uint64, a adapter.Adapter) {
	if !m.isActive(gen, a) {
		m.metrics.RecordStaleEvent()
		m.logger.Debug("ignoring connect from retired adapter (generation %d)", gen)
		return
	}
	if m.phase == PhaseConnected {
		m.logger.Debug("ignoring repeated connect event")
		return
	}

	m.identity = notify.Redact(a.Identity(), m.cfg.RedactHead, m.cfg.RedactTail)
	m.sink.Update(func(s *state.State) {
		s.Wallet.Connected = true
	})
	m.setPhase(PhaseConnected)
	m.metrics.RecordConnect()
	m.logger.Info("connected to %s as %s", m.descriptor.Name, m.identity)

	m.notifier.Notify(notify.Notification{
		Message:     MsgConnected,
		Description: MsgConnectedPrefix + m.identity,
		Type:        notify.TypeSuccess,
	})

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.sessionCancel = cancel
	m.runFollowUps(ctx, gen)
}

// onDisconnect handles the disconnect event. Runs on the loop.
func (m *Manager) onDisconnect(gen uint64, a adapter.Adapter) {
	if !m.isActive(gen, a) {
		m.metrics.RecordStaleEvent()
		m.logger.Debug("ignoring disconnect from retired adapter (generation %d)", gen)
		return
	}
	if m.phase != PhaseConnected {
		m.logger.Debug("ignoring disconnect while %s", m.phase)
		return
	}

	m.endSession()
	m.sink.Update(func(s *state.State) {
		s.Wallet.Connected = false
		s.ClearSession()
	})
	m.setPhase(PhaseDisconnected)
	m.metrics.RecordDisconnect()
	m.logger.Info("disconnected from %s", m.descriptor.Name)

	m.notifier.Notify(notify.Notification{
		Message: MsgDisconnected,
		Type:    notify.TypeInfo,
	})
}

// teardown retires the active adapter, if any. Runs on the loop.
func (m *Manager) teardown() {
	m.generation.Add(1)

	if m.cancelGate != nil {
		m.cancelGate()
		m.cancelGate = nil
	}

	a := m.active
	if a == nil {
		return
	}

	wasConnected := m.phase == PhaseConnected
	m.setPhase(PhaseRetiring)
	m.endSession()

	if a.Connected() {
		m.disconnectQuietly(a, m.descriptor.Name)
	}
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	m.active = nil

	m.sink.Update(func(s *state.State) {
		s.Wallet.Current = nil
		s.Wallet.Connected = false
		if wasConnected {
			s.ClearSession()
		}
	})

	if wasConnected {
		m.metrics.RecordDisconnect()
		m.notifier.Notify(notify.Notification{
			Message: MsgDisconnected,
			Type:    notify.TypeInfo,
		})
	}
	m.logger.Debug("retired %s adapter", m.descriptor.Name)
}

// disconnectQuietly calls Disconnect and swallows failures and panics.
func (m *Manager) disconnectQuietly(a adapter.Adapter, name string) {
	base := m.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(base), m.cfg.DisconnectTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
			}
		}()
		return a.Disconnect(ctx)
	}()
	if err != nil {
		m.metrics.RecordTeardownError()
		m.logger.Error("disconnecting retired %s adapter: %v", name, err)
	}
}

// endSession cancels follow-ups tied to the current connection.
func (m *Manager) endSession() {
	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCancel = nil
	}
	m.identity = ""
}

func (m *Manager) isActive(gen uint64, a adapter.Adapter) bool {
	return gen == m.generation.Load() && m.active != nil && m.active == a
}

// runFollowUps fetches group, balances and aux accounts concurrently, and
// trade history once margin accounts have been fetched.
func (m *Manager) runFollowUps(ctx context.Context, gen uint64) {
	if m.actions == nil {
		return
	}

	run := func(wg *sync.WaitGroup, name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.fetch(ctx, fn); err != nil {
				m.logger.Error("refreshing %s after connect: %v", name, err)
			}
		}()
	}

	m.background.Add(1)
	go func() {
		defer m.background.Done()

		var wg sync.WaitGroup
		run(&wg, "group", m.actions.FetchGroup)
		run(&wg, "balances", m.actions.FetchBalances)
		run(&wg, "aux accounts", m.actions.FetchAuxAccounts)

		if err := m.fetch(ctx, m.actions.FetchMarginAccounts); err != nil {
			m.logger.Error("refreshing margin accounts after connect: %v", err)
		} else if ctx.Err() == nil && gen == m.generation.Load() {
			if err := m.fetch(ctx, m.actions.FetchTradeHistory); err != nil {
				m.logger.Error("refreshing trade history after connect: %v", err)
			}
		}

		wg.Wait()
	}()
}

// fetch calls fn, converting a panic into an error, and records the run.
func (m *Manager) fetch(ctx context.Context, fn func(context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
		m.metrics.RecordRefresh(time.Since(start), err)
	}()
	return fn(ctx)
}

// setPhase records the phase and republishes the snapshot. Runs on the loop
// except for the final transition in Close.
func (m *Manager) setPhase(p Phase) {
	m.phase = p
	m.publishSnapshot()
}

func (m *Manager) publishSnapshot() {
	snap := &Snapshot{
		Phase:        m.phase,
		ProviderName: m.descriptor.Name,
		ProviderURL:  m.descriptor.URL,
		Endpoint:     m.endpoint,
		Connected:    m.phase == PhaseConnected,
		Identity:     m.identity,
		Generation:   m.generation.Load(),
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	m.snapshot.Store(snap)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
