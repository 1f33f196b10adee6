package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a maintenance job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind names a ledger maintenance task
type JobKind string

const (
	// JobOverdueSweep flags receivables and boletos past their due date
	JobOverdueSweep JobKind = "OVERDUE_SWEEP"
	// JobCreditReconcile recomputes every customer's available credit
	JobCreditReconcile JobKind = "CREDIT_RECONCILE"
	// JobLedgerReplay replays every account and repairs drifted snapshots
	JobLedgerReplay JobKind = "LEDGER_REPLAY"
)

// AllJobKinds returns every known job kind
func AllJobKinds() []JobKind {
	return []JobKind{JobOverdueSweep, JobCreditReconcile, JobLedgerReplay}
}

// ParseJobKinds validates configured job names
func ParseJobKinds(names []string) ([]JobKind, error) {
	kinds := make([]JobKind, 0, len(names))
	for _, name := range names {
		kind := JobKind(strings.ToUpper(strings.TrimSpace(name)))
		if !kind.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// IsValid reports whether k is a known job kind
func (k JobKind) IsValid() bool {
	for _, known := range AllJobKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Job is one run of a maintenance task
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	done chan struct{}
}

// NewJob creates a pending job
func NewJob(kind JobKind, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
		done:       make(chan struct{}),
	}
}

// Wait blocks until the job succeeds or gives up, and returns its last error
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if j.Status == JobStatusFailed {
		return fmt.Errorf("%s: %s", j.Kind, j.Error)
	}
	return nil
}

// finish releases waiters; the job's fields no longer change afterwards
func (j *Job) finish() {
	close(j.done)
}

// Start marks the job as running
func (j *Job) Start(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(now time.Time) {
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(now time.Time, err error) {
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err.Error()
}

// ShouldRetry returns true if a failed job has retries left
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts the job back to pending, due after delay
func (j *Job) ScheduleRetry(now time.Time, delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	next := now.Add(delay)
	j.NextRetryAt = &next
	j.Error = ""
}

// Due reports whether a pending retry may run at now
func (j *Job) Due(now time.Time) bool {
	return j.NextRetryAt == nil || !now.Before(*j.NextRetryAt)
}
