package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingRunner struct {
	mu    sync.Mutex
	runs  []JobKind
	fails int
	done  chan JobKind
}

func newRecordingRunner(fails int) *recordingRunner {
	return &recordingRunner{fails: fails, done: make(chan JobKind, 8)}
}

func (r *recordingRunner) Run(_ context.Context, kind JobKind) error {
	r.mu.Lock()
	r.runs = append(r.runs, kind)
	fail := r.fails > 0
	if fail {
		r.fails--
	}
	r.mu.Unlock()
	r.done <- kind
	if fail {
		return errors.New("database unavailable")
	}
	return nil
}

func waitRun(t *testing.T, r *recordingRunner) JobKind {
	t.Helper()
	select {
	case kind := <-r.done:
		return kind
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
		return ""
	}
}

func TestScheduler_RunsSubmittedJob(t *testing.T) {
	runner := newRecordingRunner(0)
	s := NewScheduler(Config{}, runner, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	job, err := s.Submit(JobOverdueSweep)
	require.NoError(t, err)
	assert.Equal(t, JobOverdueSweep, waitRun(t, runner))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, job.Wait(ctx))
	assert.Equal(t, JobStatusSuccess, job.Status)
}

func TestScheduler_WaitReportsFinalFailure(t *testing.T) {
	runner := newRecordingRunner(2)
	s := NewScheduler(Config{RetryAttempts: 1, RetryDelay: 10 * time.Millisecond}, runner, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	job, err := s.Submit(JobLedgerReplay)
	require.NoError(t, err)
	waitRun(t, runner)
	waitRun(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = job.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Equal(t, 1, job.RetryCount)
}

func TestScheduler_RetriesFailedJob(t *testing.T) {
	runner := newRecordingRunner(1)
	core, logs := observer.New(zap.InfoLevel)
	s := NewScheduler(Config{RetryAttempts: 1, RetryDelay: 10 * time.Millisecond}, runner, zap.New(core))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	_, err := s.Submit(JobCreditReconcile)
	require.NoError(t, err)
	waitRun(t, runner)
	waitRun(t, runner)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Maintenance job completed").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("Maintenance job failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Maintenance job scheduled for retry").Len())
}

func TestScheduler_SubmitRejections(t *testing.T) {
	s := NewScheduler(Config{}, newRecordingRunner(0), nil)

	_, err := s.Submit(JobLedgerReplay)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()
	_, err = s.Submit(JobKind("DEFRAG"))
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestJob_RetryLifecycle(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 30, 0, 0, time.UTC)
	job := NewJob(JobOverdueSweep, 1)

	job.Start(now)
	job.Fail(now, errors.New("boom"))
	assert.Equal(t, "boom", job.Error)
	require.True(t, job.ShouldRetry())

	job.ScheduleRetry(now, time.Minute)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.False(t, job.Due(now))
	assert.True(t, job.Due(now.Add(time.Minute)))

	job.Start(now)
	job.Fail(now, errors.New("again"))
	assert.False(t, job.ShouldRetry())
}

func TestParseJobKinds(t *testing.T) {
	kinds, err := ParseJobKinds([]string{" overdue_sweep", "LEDGER_REPLAY"})
	require.NoError(t, err)
	assert.Equal(t, []JobKind{JobOverdueSweep, JobLedgerReplay}, kinds)

	_, err = ParseJobKinds([]string{"VACUUM"})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

type stubSweeper struct {
	n   int64
	err error
}

func (s stubSweeper) SweepOverdue(context.Context) (int64, error) { return s.n, s.err }

type stubReconciler struct{}

func (stubReconciler) ReconcileAll(context.Context) (*financeapp.ReconcileCreditSummary, error) {
	return &financeapp.ReconcileCreditSummary{Checked: 4, Corrected: 1}, nil
}

type stubReplayer struct{}

func (stubReplayer) RecomputeAll(context.Context) ([]financeapp.RecomputeResult, error) {
	return []financeapp.RecomputeResult{{Corrections: 2, BalanceCorrected: true}, {}}, nil
}

func TestLedgerMaintenance_Run(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := &LedgerMaintenance{
		Receivables: stubSweeper{n: 3},
		Boletos:     stubSweeper{n: 1},
		Credit:      stubReconciler{},
		Ledger:      stubReplayer{},
		Logger:      zap.New(core),
	}
	ctx := context.Background()

	require.NoError(t, m.Run(ctx, JobOverdueSweep))
	sweep := logs.FilterMessage("Overdue sweep finished").All()
	require.Len(t, sweep, 1)
	assert.Equal(t, int64(3), sweep[0].ContextMap()["receivables"])

	require.NoError(t, m.Run(ctx, JobCreditReconcile))
	require.NoError(t, m.Run(ctx, JobLedgerReplay))
	replay := logs.FilterMessage("Ledgers replayed").All()
	require.Len(t, replay, 1)
	assert.Equal(t, int64(2), replay[0].ContextMap()["corrections"])

	assert.ErrorIs(t, m.Run(ctx, JobKind("X")), ErrUnknownJob)
}

func TestLedgerMaintenance_SweepRunsBoth(t *testing.T) {
	failing := errors.New("lock timeout")
	boletos := &countingSweeper{}
	m := &LedgerMaintenance{Receivables: stubSweeper{err: failing}, Boletos: boletos}

	err := m.Run(context.Background(), JobOverdueSweep)
	assert.ErrorIs(t, err, failing)
	assert.Equal(t, 1, boletos.calls)
}

type countingSweeper struct{ calls int }

func (c *countingSweeper) SweepOverdue(context.Context) (int64, error) {
	c.calls++
	return 0, nil
}
