package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReceivableRepository implements finance.ReceivableRepository using GORM
type GormReceivableRepository struct {
	db *gorm.DB
}

// NewGormReceivableRepository creates a new GormReceivableRepository
func NewGormReceivableRepository(db *gorm.DB) *GormReceivableRepository {
	return &GormReceivableRepository{db: db}
}

// FindByID finds a receivable by ID within a tenant
func (r *GormReceivableRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Receivable, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds a receivable and locks its row
func (r *GormReceivableRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Receivable, error) {
	return r.first(r.locked(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDsForUpdate locks the listed receivables in id order so concurrent
// batches touching overlapping sets cannot deadlock
func (r *GormReceivableRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*finance.Receivable, error) {
	if len(ids) == 0 {
		return []*finance.Receivable{}, nil
	}
	var rows []models.ReceivableModel
	if err := r.locked(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return receivablesToDomain(rows), nil
}

// FindByExternalIDForUpdate locks the receivable carrying a gateway payment id
func (r *GormReceivableRepository) FindByExternalIDForUpdate(ctx context.Context, tenantID uuid.UUID, externalID string) (*finance.Receivable, error) {
	return r.first(r.locked(ctx).Where("tenant_id = ? AND external_id = ?", tenantID, externalID))
}

// FindShadowForUpdate locks the receivable backed by the given boleto
func (r *GormReceivableRepository) FindShadowForUpdate(ctx context.Context, tenantID, boletoID uuid.UUID) (*finance.Receivable, error) {
	return r.first(r.locked(ctx).Where("tenant_id = ? AND boleto_id = ?", tenantID, boletoID))
}

// FindAll lists receivables by due date
func (r *GormReceivableRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.ReceivableFilter) ([]*finance.Receivable, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReceivableModel{}).Where("tenant_id = ?", tenantID)
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", filter.DueBefore.UTC())
	}
	if filter.SettlementBatchID != nil {
		query = query.Where("settlement_batch_id = ?", *filter.SettlementBatchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ReceivableModel
	if err := query.Order("due_date ASC, id ASC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return receivablesToDomain(rows), total, nil
}

// FindOutstandingByCustomer returns the customer's PENDING, OVERDUE and PARTIAL receivables
func (r *GormReceivableRepository) FindOutstandingByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]*finance.Receivable, error) {
	var rows []models.ReceivableModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND status IN ?", tenantID, customerID, finance.OutstandingReceivableStatuses()).
		Order("due_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return receivablesToDomain(rows), nil
}

// Create inserts a receivable
func (r *GormReceivableRepository) Create(ctx context.Context, receivable *finance.Receivable) error {
	return r.db.WithContext(ctx).Create(models.ReceivableModelFromDomain(receivable)).Error
}

// Save writes the full receivable row, clearing nil columns
func (r *GormReceivableRepository) Save(ctx context.Context, receivable *finance.Receivable) error {
	return r.db.WithContext(ctx).Save(models.ReceivableModelFromDomain(receivable)).Error
}

// MarkOverdueBefore flips PENDING receivables due before cutoff to OVERDUE
func (r *GormReceivableRepository) MarkOverdueBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.ReceivableModel{}).
		Where("status = ? AND due_date < ?", finance.ReceivableStatusPending, cutoff.UTC()).
		Updates(map[string]any{
			"status":     finance.ReceivableStatusOverdue,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *GormReceivableRepository) locked(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *GormReceivableRepository) first(query *gorm.DB) (*finance.Receivable, error) {
	var model models.ReceivableModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func receivablesToDomain(rows []models.ReceivableModel) []*finance.Receivable {
	out := make([]*finance.Receivable, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// Ensure GormReceivableRepository implements finance.ReceivableRepository
var _ finance.ReceivableRepository = (*GormReceivableRepository)(nil)
