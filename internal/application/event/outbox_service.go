// Package event exposes the delivery state of ledger events waiting in
// the outbox, so operators can inspect and replay abandoned deliveries.
package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const retryAllPageSize = 100

// DeadLetterRepository is the part of the outbox store the service needs
type DeadLetterRepository interface {
	FindDead(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]*shared.OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error)
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[shared.OutboxStatus]int64, error)
	Update(ctx context.Context, entry *shared.OutboxEntry) error
}

var errNotDead = shared.NewDomainError("INVALID_STATE", "Only abandoned deliveries can be retried")

// OutboxService lists and replays a tenant's abandoned event deliveries
type OutboxService struct {
	repo   DeadLetterRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo DeadLetterRepository, logger *zap.Logger) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxService{repo: repo, logger: logger}
}

// OutboxEntryResponse is an outbox entry without its payload
type OutboxEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OutboxStats counts a tenant's entries by delivery status
type OutboxStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// ListDead pages through abandoned deliveries
func (s *OutboxService) ListDead(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]OutboxEntryResponse, int64, error) {
	entries, total, err := s.repo.FindDead(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("find dead entries: %w", err)
	}
	out := make([]OutboxEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	return out, total, nil
}

// Get returns one of the tenant's entries
func (s *OutboxService) Get(ctx context.Context, tenantID, id uuid.UUID) (*OutboxEntryResponse, error) {
	entry, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := toEntryResponse(entry)
	return &resp, nil
}

// Retry puts an abandoned delivery back in the queue with fresh attempts
func (s *OutboxService) Retry(ctx context.Context, tenantID, id uuid.UUID) (*OutboxEntryResponse, error) {
	entry, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, errNotDead
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("update outbox entry: %w", err)
	}
	s.logger.Info("Dead event delivery requeued",
		zap.String("entry_id", id.String()),
		zap.String("event_type", entry.EventType),
		zap.String("tenant_id", tenantID.String()),
	)
	resp := toEntryResponse(entry)
	return &resp, nil
}

// RetryAll requeues every abandoned delivery of the tenant
func (s *OutboxService) RetryAll(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var requeued int64
	for {
		// Requeued entries leave the DEAD set, so the first page is always the next one
		entries, _, err := s.repo.FindDead(ctx, tenantID, 1, retryAllPageSize)
		if err != nil {
			return requeued, fmt.Errorf("find dead entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				return requeued, fmt.Errorf("update outbox entry %s: %w", entry.ID, err)
			}
			requeued++
		}
		if len(entries) < retryAllPageSize {
			break
		}
	}
	s.logger.Info("Dead event deliveries requeued",
		zap.Int64("count", requeued),
		zap.String("tenant_id", tenantID.String()),
	)
	return requeued, nil
}

// Stats counts the tenant's entries by status
func (s *OutboxService) Stats(ctx context.Context, tenantID uuid.UUID) (*OutboxStats, error) {
	counts, err := s.repo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}
	stats := &OutboxStats{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// find hides other tenants' entries behind NOT_FOUND
func (s *OutboxService) find(ctx context.Context, tenantID, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && entry.TenantID != tenantID) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find outbox entry: %w", err)
	}
	return entry, nil
}

func toEntryResponse(e *shared.OutboxEntry) OutboxEntryResponse {
	return OutboxEntryResponse{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
