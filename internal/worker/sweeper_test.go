package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmart/internal/service"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	ran   chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, now time.Time) (service.SweepResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, now)
	f.mu.Unlock()
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	return service.SweepResult{Now: now, TransactionsFound: 2, TransactionsVerified: 1, TransactionsSkipped: 1}, f.err
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type observerFunc func(service.SweepResult, error)

func (o observerFunc) ObserveSweep(res service.SweepResult, err error) { o(res, err) }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunNow_RecordsStatus(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	runner := &fakeRunner{}
	var observed []error
	s := NewSweepScheduler(runner, nil, SchedulerConfig{Interval: time.Hour},
		WithSchedulerClock(func() time.Time { return fixed }),
		WithSchedulerLogger(quiet),
		WithObserver(observerFunc(func(_ service.SweepResult, err error) { observed = append(observed, err) })),
	)

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TransactionsVerified)
	assert.Equal(t, []time.Time{fixed}, runner.calls)

	runner.err = errors.New("scan failed")
	_, err = s.RunNow(context.Background())
	assert.Error(t, err)

	st := s.Status()
	assert.Equal(t, 2, st.Runs)
	assert.Equal(t, "scan failed", st.LastError)
	assert.Equal(t, fixed, st.LastRun)
	require.Len(t, observed, 2)
	assert.NoError(t, observed[0])
	assert.Error(t, observed[1])
}

func TestRunNow_LeaseHeld(t *testing.T) {
	lease := &LocalLease{}
	ok, err := lease.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	runner := &fakeRunner{}
	s := NewSweepScheduler(runner, lease, SchedulerConfig{}, WithSchedulerLogger(quiet))

	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
	assert.Zero(t, runner.count())

	require.NoError(t, lease.Release(context.Background()))
	_, err = s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.count())

	// Released again after the run.
	ok, _ = lease.Acquire(context.Background())
	assert.True(t, ok)
}

func TestStart_RunsAfterInitialDelayUntilStopped(t *testing.T) {
	runner := &fakeRunner{ran: make(chan struct{}, 8)}
	s := NewSweepScheduler(runner, nil, SchedulerConfig{
		Interval:     20 * time.Millisecond,
		InitialDelay: time.Millisecond,
	}, WithSchedulerLogger(quiet))

	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-runner.ran:
		case <-time.After(2 * time.Second):
			t.Fatal("sweep did not run")
		}
	}

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStart_ContextCancelledBeforeFirstRun(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSweepScheduler(runner, nil, SchedulerConfig{InitialDelay: time.Hour}, WithSchedulerLogger(quiet))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx))
	assert.Zero(t, runner.count())
}
