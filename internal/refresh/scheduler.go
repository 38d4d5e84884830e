// Package refresh runs periodic data refresh tasks while a wallet session is
// usable. Each task has its own ticker; the gating condition is evaluated at
// every tick, never at schedule time.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrz1836/walletlink/internal/metrics"
)

// Overlap decides what a tick does when the previous run of the same task
// is still in flight.
type Overlap int

// Overlap policies.
const (
	// OverlapSkip skips the tick and leaves the in-flight run alone.
	OverlapSkip Overlap = iota

	// OverlapAllow starts another run concurrently.
	OverlapAllow
)

// String returns the policy name.
func (o Overlap) String() string {
	if o == OverlapAllow {
		return "allow"
	}
	return "skip"
}

// ErrInvalidOverlap is returned for an unknown overlap policy name.
var ErrInvalidOverlap = errors.New("invalid overlap policy")

// ParseOverlap parses "skip" or "allow".
func ParseOverlap(s string) (Overlap, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return OverlapSkip, nil
	case "allow":
		return OverlapAllow, nil
	default:
		return OverlapSkip, fmt.Errorf("%w: %q", ErrInvalidOverlap, s)
	}
}

// Scheduler errors.
var (
	ErrInvalidTask    = errors.New("invalid refresh task")
	ErrDuplicateTask  = errors.New("duplicate refresh task")
	ErrAlreadyStarted = errors.New("refresh scheduler already started")
)

// Task is one periodic refresh.
type Task struct {
	Name     string
	Interval time.Duration
	Action   func(ctx context.Context) error
}

// Logger is the logging surface the scheduler needs.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// TaskStats counts what happened to one task.
type TaskStats struct {
	Ticks    int64 `json:"ticks"`
	Runs     int64 `json:"runs"`
	Skipped  int64 `json:"skipped"`
	Errors   int64 `json:"errors"`
	InFlight int64 `json:"inFlight"`
}

type taskState struct {
	Task
	ticks    atomic.Int64
	runs     atomic.Int64
	skipped  atomic.Int64
	errors   atomic.Int64
	inFlight atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOverlap sets the overlap policy.
func WithOverlap(o Overlap) Option {
	return func(s *Scheduler) { s.overlap = o }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records runs and skips in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler runs registered tasks on independent tickers.
type Scheduler struct {
	cond    func() bool
	overlap Overlap
	logger  Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	tasks   []*taskState
	started bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	runs    sync.WaitGroup
}

// New creates a scheduler. cond is evaluated at every tick; a false result
// makes that tick a no-op. A nil cond always allows.
func New(cond func() bool, opts ...Option) *Scheduler {
	if cond == nil {
		cond = func() bool { return true }
	}
	s := &Scheduler{
		cond:    cond,
		overlap: OverlapSkip,
		logger:  nopLogger{},
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers t. Tasks must be added before Start.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Interval <= 0 || t.Action == nil {
		return fmt.Errorf("%w: name, positive interval and action are required", ErrInvalidTask)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	for _, existing := range s.tasks {
		if existing.Name == t.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
		}
	}
	s.tasks = append(s.tasks, &taskState{Task: t})
	return nil
}

// Start launches one ticker goroutine per task. The first run happens one
// interval after Start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, ts := range s.tasks {
		s.loops.Add(1)
		go s.loop(ctx, ts)
	}
	s.logger.Debug("refresh scheduler started with %d tasks (overlap=%s)", len(s.tasks), s.overlap)
	return nil
}

// Stop releases the tickers, cancels in-flight runs and waits for them to
// return. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.loops.Wait()
	s.runs.Wait()
	s.logger.Debug("refresh scheduler stopped")
}

// Stats returns counters for the named task.
func (s *Scheduler) Stats(name string) (TaskStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ts := range s.tasks {
		if ts.Name == name {
			return TaskStats{
				Ticks:    ts.ticks.Load(),
				Runs:     ts.runs.Load(),
				Skipped:  ts.skipped.Load(),
				Errors:   ts.errors.Load(),
				InFlight: ts.inFlight.Load(),
			}, true
		}
	}
	return TaskStats{}, false
}

// TaskNames returns registered task names in order.
func (s *Scheduler) TaskNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for _, ts := range s.tasks {
		names = append(names, ts.Name)
	}
	return names
}

func (s *Scheduler) loop(ctx context.Context, ts *taskState) {
	defer s.loops.Done()

	ticker := time.NewTicker(ts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, ts)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, ts *taskState) {
	ts.ticks.Add(1)

	if !s.cond() {
		ts.skipped.Add(1)
		s.metrics.RecordRefreshSkip()
		return
	}

	if s.overlap == OverlapSkip && ts.inFlight.Load() > 0 {
		ts.skipped.Add(1)
		s.metrics.RecordRefreshSkip()
		s.logger.Debug("refresh %s still running, skipping tick", ts.Name)
		return
	}

	ts.inFlight.Add(1)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer ts.inFlight.Add(-1)

		start := time.Now()
		err := runAction(ctx, ts.Action)
		s.metrics.RecordRefresh(time.Since(start), err)
		ts.runs.Add(1)

		if err != nil && !errors.Is(err, context.Canceled) {
			ts.errors.Add(1)
			s.logger.Error("refresh %s failed: %v", ts.Name, err)
		}
	}()
}

// runAction calls action and converts a panic into an error.
func runAction(ctx context.Context, action func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r) //nolint:err113 // recovered value
		}
	}()
	return action(ctx)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
