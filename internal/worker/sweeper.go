package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mailmart/internal/service"
)

var ErrSweepInProgress = errors.New("sweep already in progress")

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailmart_sweep_runs_total",
		Help: "Reconciliation sweeps, labeled by outcome",
	}, []string{"outcome"})

	sweepActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailmart_sweep_actions_total",
		Help: "Records handled by the sweep, labeled by pass and result",
	}, []string{"pass", "result"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailmart_sweep_duration_seconds",
		Help:    "Latency distribution of reconciliation sweeps",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	})
)

// SweepRunner is satisfied by *service.Sweeper.
type SweepRunner interface {
	Run(ctx context.Context, now time.Time) (service.SweepResult, error)
}

// SweepObserver is told about every finished sweep.
type SweepObserver interface {
	ObserveSweep(res service.SweepResult, err error)
}

type SchedulerConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
	RunTimeout   time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:     time.Hour,
		InitialDelay: 30 * time.Second,
		RunTimeout:   10 * time.Minute,
	}
}

type SweepStatus struct {
	LastRun    time.Time           `json:"last_run"`
	LastResult service.SweepResult `json:"last_result"`
	LastError  string              `json:"last_error,omitempty"`
	Runs       int                 `json:"runs"`
}

// SweepScheduler runs the reconciliation sweep once after InitialDelay and
// then every Interval until its context ends or Stop is called.
type SweepScheduler struct {
	runner    SweepRunner
	lease     Lease
	cfg       SchedulerConfig
	now       func() time.Time
	logger    *slog.Logger
	observers []SweepObserver

	mu      sync.Mutex
	running bool
	done    chan struct{}
	status  SweepStatus
}

type SchedulerOption func(*SweepScheduler)

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *SweepScheduler) { s.now = now }
}

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *SweepScheduler) { s.logger = l }
}

func WithObserver(o SweepObserver) SchedulerOption {
	return func(s *SweepScheduler) { s.observers = append(s.observers, o) }
}

func NewSweepScheduler(runner SweepRunner, lease Lease, cfg SchedulerConfig, opts ...SchedulerOption) *SweepScheduler {
	def := DefaultSchedulerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = def.RunTimeout
	}
	if lease == nil {
		lease = &LocalLease{}
	}
	s := &SweepScheduler{
		runner: runner,
		lease:  lease,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks until ctx is cancelled or Stop is called.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweep scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("sweep scheduler starting",
		"interval", s.cfg.Interval.String(),
		"initial_delay", s.cfg.InitialDelay.String(),
	)

	initial := time.NewTimer(s.cfg.InitialDelay)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-done:
		return nil
	case <-initial.C:
		s.execute(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep scheduler stopped (context cancelled)")
			return nil
		case <-done:
			s.logger.Info("sweep scheduler stopped (stop requested)")
			return nil
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

func (s *SweepScheduler) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	close(s.done)
	s.running = false
	return nil
}

// RunNow runs one sweep outside the schedule. It returns ErrSweepInProgress
// if the lease is held elsewhere.
func (s *SweepScheduler) RunNow(ctx context.Context) (service.SweepResult, error) {
	ok, err := s.lease.Acquire(ctx)
	if err != nil {
		return service.SweepResult{}, err
	}
	if !ok {
		sweepRunsTotal.WithLabelValues("skipped").Inc()
		return service.SweepResult{}, ErrSweepInProgress
	}
	defer func() {
		if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("sweep lease release failed", "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	res, err := s.runner.Run(runCtx, s.now())
	s.record(res, err)
	return res, err
}

func (s *SweepScheduler) Status() SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *SweepScheduler) execute(ctx context.Context) {
	res, err := s.RunNow(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Debug("sweep skipped, another replica holds the lease")
	case err != nil:
		s.logger.Error("sweep cycle failed", "error", err, "failures", len(res.Failures))
	case !res.Empty():
		s.logger.Info("sweep cycle completed",
			"transactions_found", res.TransactionsFound,
			"transactions_verified", res.TransactionsVerified,
			"disputes_found", res.DisputesFound,
			"disputes_accepted", res.DisputesAccepted,
			"failures", len(res.Failures),
			"duration_ms", res.Duration.Milliseconds(),
		)
	default:
		s.logger.Debug("sweep cycle completed (nothing due)")
	}
}

func (s *SweepScheduler) record(res service.SweepResult, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	sweepRunsTotal.WithLabelValues(outcome).Inc()
	sweepDuration.Observe(res.Duration.Seconds())
	sweepActionsTotal.WithLabelValues("verify", "settled").Add(float64(res.TransactionsVerified))
	sweepActionsTotal.WithLabelValues("verify", "skipped").Add(float64(res.TransactionsSkipped))
	sweepActionsTotal.WithLabelValues("accept", "settled").Add(float64(res.DisputesAccepted))
	sweepActionsTotal.WithLabelValues("accept", "skipped").Add(float64(res.DisputesSkipped))
	for _, f := range res.Failures {
		pass := "verify"
		if f.Kind == "dispute" {
			pass = "accept"
		}
		sweepActionsTotal.WithLabelValues(pass, "failed").Inc()
	}

	s.mu.Lock()
	s.status.LastRun = res.Now
	s.status.LastResult = res
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.status.Runs++
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.ObserveSweep(res, err)
	}
}
