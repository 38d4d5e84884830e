package cli

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/account"
	"github.com/mrz1836/walletlink/internal/api"
	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/hostready"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/notify"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/refresh"
	"github.com/mrz1836/walletlink/internal/selection"
	"github.com/mrz1836/walletlink/internal/session"
	"github.com/mrz1836/walletlink/internal/state"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// sessionCloseTimeout bounds the teardown of the session on shutdown.
const sessionCloseTimeout = 10 * time.Second

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	runEndpoint  string
	runProvider  string
	runListen    string
	runNoConnect bool
)

// runOptions are the effective settings of one run after flags and
// environment have been applied.
type runOptions struct {
	endpoint    string
	provider    string
	listen      string
	autoConnect bool

	// ready, if set, is called once the session is running.
	ready func(mgr *session.Manager, addr net.Addr)
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the wallet session until interrupted",
	Long: `Run the wallet session: resolve the persisted provider, construct its
adapter once the host is ready, connect, and keep account data fresh on the
refresh schedule.

With --api (or api.listen) a read-only HTTP API serves /state, /providers,
/metrics and /healthz. Connection notifications are printed to stderr and,
when notify.push_url is set, posted there.

WALLETLINK_PROVIDER or --provider switches to another provider at startup
and persists the choice. Stop with Ctrl+C.`,
	Example: `  walletlink run
  walletlink run --provider Demo --api 127.0.0.1:8645
  walletlink run --endpoint https://rpc.example.org --no-connect`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	runCmd.GroupID = groupSession
	runCmd.Flags().StringVar(&runEndpoint, "endpoint", "", "network endpoint (default: network.endpoint)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "provider name or URL to switch to at startup")
	runCmd.Flags().StringVar(&runListen, "api", "", "serve the HTTP API on this address (default: api.listen)")
	runCmd.Flags().BoolVar(&runNoConnect, "no-connect", false, "construct the adapter but do not connect")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSession(ctx, cfg, resolveRunOptions(cmd, cfg), cmd.ErrOrStderr())
}

// resolveRunOptions layers flags over environment over config.
func resolveRunOptions(cmd *cobra.Command, c *config.Config) runOptions {
	opts := runOptions{
		endpoint:    c.Network.Endpoint,
		provider:    os.Getenv(config.EnvProvider),
		listen:      c.API.Listen,
		autoConnect: c.Session.AutoConnect,
	}
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		opts.endpoint = runEndpoint
	}
	if flags.Changed("provider") {
		opts.provider = runProvider
	}
	if flags.Changed("api") {
		opts.listen = runListen
	}
	if runNoConnect {
		opts.autoConnect = false
	}
	return opts
}

// runSession wires the session, the refresh scheduler and the optional API,
// and blocks until ctx is done. Shutdown stops the scheduler first, then
// closes the session, then the backend.
func runSession(ctx context.Context, c *config.Config, opts runOptions, stderr io.Writer) error {
	overlap, err := refresh.ParseOverlap(c.Refresh.Overlap)
	if err != nil {
		return linkerr.Wrap(linkerr.ErrConfigInvalid, "refresh.overlap: %v", err)
	}

	reg := newRegistry()
	store, err := openSelection(c, reg)
	if err != nil {
		return err
	}
	sink := state.NewStore()
	m := metrics.New()

	gate := hostready.NewReady()
	if d := c.HostReadyDelay(); d > 0 {
		gate = hostready.New()
		stopGate := gate.MarkReadyAfter(d)
		defer stopGate()
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger), notify.NewWriterNotifier(stderr)}
	var push *notify.HTTPNotifier
	if c.Notify.PushURL != "" {
		push = notify.NewHTTPNotifier(nil, c.Notify.PushURL, logger)
		notifiers = append(notifiers, push)
	}

	backend, closeBackend := newBackend(c, sink, m)
	defer closeBackend()
	actions := account.NewActions(backend, sink, logger)

	mgr := session.New(session.Config{
		Endpoint:    opts.endpoint,
		AutoConnect: opts.autoConnect,
		RedactHead:  c.Session.RedactHead,
		RedactTail:  c.Session.RedactTail,
	}, session.Deps{
		Registry:  reg,
		Factory:   newFactory(c),
		Selection: store,
		State:     sink,
		Gate:      gate,
		Notifier:  notifiers,
		Actions:   actions,
		Logger:    logger,
		Metrics:   m,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
		defer cancel()
		if err := mgr.Close(closeCtx); err != nil {
			logger.Error("closing session: %v", err)
		}
		if push != nil {
			push.Wait()
		}
	}()

	if opts.provider != "" {
		if err := mgr.SelectProvider(opts.provider); err != nil {
			return err
		}
	}

	if c.Selection.Watch {
		err := selection.Watch(ctx, store, logger, func(url string) {
			if err := mgr.SelectProvider(url); err != nil {
				logger.Error("applying selection change %q: %v", url, err)
			}
		})
		if err != nil {
			logger.Error("selection watcher disabled: %v", err)
		}
	}

	sched := refresh.New(refresh.SessionReady(sink),
		refresh.WithOverlap(overlap),
		refresh.WithLogger(logger),
		refresh.WithMetrics(m),
	)
	for _, t := range refresh.DefaultTasks(actions, c.Refresh.AccountsInterval, c.Refresh.TradesInterval) {
		if err := sched.Add(t); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	if opts.listen == "" {
		output.Infof(stderr, "Session running with %s, press Ctrl+C to stop", mgr.Snapshot().ProviderName)
		if opts.ready != nil {
			opts.ready(mgr, nil)
		}
		<-ctx.Done()
		return nil
	}

	handler := api.NewServer(api.Deps{
		Session:  mgr,
		State:    sink,
		Updates:  sink,
		Registry: reg,
		Metrics:  m,
		Logger:   logger.Structured(),
	})
	return api.Serve(ctx, opts.listen, handler, func(addr net.Addr) {
		output.Infof(stderr, "Session running with %s, API on http://%s", mgr.Snapshot().ProviderName, addr)
		if opts.ready != nil {
			opts.ready(mgr, addr)
		}
	})
}
