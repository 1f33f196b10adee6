package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery status of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// Retry defaults for outbox delivery
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
)

// OutboxEntry is a domain event persisted in the same transaction as the
// state change that produced it, waiting for delivery.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event for delivery
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now().UTC()
	return &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      event.TenantID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ErrOutboxTransition is returned for a delivery state change the entry's
// current status does not allow
var ErrOutboxTransition = NewDomainError("INVALID_STATE", "Outbox entry cannot change to that status")

// claimable lists the statuses the processor may pick up
var claimable = map[OutboxStatus]bool{
	OutboxStatusPending: true,
	OutboxStatusFailed:  true,
}

func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

func (e *OutboxEntry) IsDead() bool { return e.Status == OutboxStatusDead }

func (e *OutboxEntry) moveTo(status OutboxStatus) time.Time {
	now := time.Now().UTC()
	e.Status = status
	e.UpdatedAt = now
	return now
}

// MarkProcessing claims a PENDING or FAILED entry for delivery
func (e *OutboxEntry) MarkProcessing() error {
	if !claimable[e.Status] {
		return ErrOutboxTransition
	}
	e.moveTo(OutboxStatusProcessing)
	return nil
}

func (e *OutboxEntry) MarkSent() {
	now := e.moveTo(OutboxStatusSent)
	e.ProcessedAt = &now
}

// MarkFailed counts a failed attempt. The next attempt waits
// DefaultBaseBackoff doubled per earlier failure; the entry is DEAD once
// MaxRetries attempts have failed.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	e.RetryCount++
	e.LastError = errMsg
	if e.RetryCount >= e.MaxRetries {
		e.moveTo(OutboxStatusDead)
		e.NextRetryAt = nil
		return
	}
	now := e.moveTo(OutboxStatusFailed)
	next := now.Add(DefaultBaseBackoff << (e.RetryCount - 1))
	e.NextRetryAt = &next
}

// ResetForRetry requeues a DEAD entry with a fresh set of attempts
func (e *OutboxEntry) ResetForRetry() error {
	if !e.IsDead() {
		return ErrOutboxTransition
	}
	e.moveTo(OutboxStatusPending)
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	return nil
}

// OutboxRepository persists outbox entries
type OutboxRepository interface {
	// Save persists one or more entries
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindPending returns pending entries oldest first
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries due before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	// MarkProcessing atomically claims entries and returns the ones claimed
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	// Update persists an entry's delivery state
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteOlderThan removes sent entries processed before the cutoff
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
