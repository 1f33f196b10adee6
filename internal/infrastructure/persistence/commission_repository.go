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

// GormCommissionRepository implements finance.CommissionRepository using GORM
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewGormCommissionRepository creates a new GormCommissionRepository
func NewGormCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// Create inserts a commission
func (r *GormCommissionRepository) Create(ctx context.Context, c *finance.Commission) error {
	return r.db.WithContext(ctx).Create(models.CommissionModelFromDomain(c)).Error
}

// FindUnlinkedInWindow returns PENDING commissions earned in [start, next)
// that no closure covers yet, grouped by seller
func (r *GormCommissionRepository) FindUnlinkedInWindow(ctx context.Context, tenantID uuid.UUID, sellerID *uuid.UUID, start, next time.Time) ([]*finance.Commission, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND closure_id IS NULL AND status = ?", tenantID, finance.CommissionStatusPending).
		Where("created_at >= ? AND created_at < ?", start.UTC(), next.UTC())
	if sellerID != nil {
		query = query.Where("seller_id = ?", *sellerID)
	}

	var rows []models.CommissionModel
	if err := query.Order("seller_id ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return commissionsToDomain(rows), nil
}

// FindByClosure lists the commissions linked to a closure
func (r *GormCommissionRepository) FindByClosure(ctx context.Context, tenantID, closureID uuid.UUID) ([]*finance.Commission, error) {
	var rows []models.CommissionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND closure_id = ?", tenantID, closureID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return commissionsToDomain(rows), nil
}

// LinkToClosure claims the listed commissions that are still unlinked
func (r *GormCommissionRepository) LinkToClosure(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, closureID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.CommissionModel{}).
		Where("tenant_id = ? AND id IN ? AND closure_id IS NULL", tenantID, ids).
		Updates(map[string]any{
			"closure_id": closureID,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// MarkPaidByClosure pays out every commission of a closure
func (r *GormCommissionRepository) MarkPaidByClosure(ctx context.Context, tenantID, closureID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.CommissionModel{}).
		Where("tenant_id = ? AND closure_id = ?", tenantID, closureID).
		Updates(map[string]any{
			"status":     finance.CommissionStatusPaid,
			"updated_at": time.Now().UTC(),
		}).Error
}

// UnlinkClosure releases the unpaid commissions of a cancelled closure
func (r *GormCommissionRepository) UnlinkClosure(ctx context.Context, tenantID, closureID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.CommissionModel{}).
		Where("tenant_id = ? AND closure_id = ? AND status = ?", tenantID, closureID, finance.CommissionStatusPending).
		Updates(map[string]any{
			"closure_id": nil,
			"updated_at": time.Now().UTC(),
		}).Error
}

func commissionsToDomain(rows []models.CommissionModel) []*finance.Commission {
	out := make([]*finance.Commission, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// GormCommissionClosureRepository implements finance.CommissionClosureRepository using GORM
type GormCommissionClosureRepository struct {
	db *gorm.DB
}

// NewGormCommissionClosureRepository creates a new GormCommissionClosureRepository
func NewGormCommissionClosureRepository(db *gorm.DB) *GormCommissionClosureRepository {
	return &GormCommissionClosureRepository{db: db}
}

// FindByID finds a closure by ID within a tenant
func (r *GormCommissionClosureRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.CommissionClosure, error) {
	return r.first(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a closure and locks its row
func (r *GormCommissionClosureRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.CommissionClosure, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormCommissionClosureRepository) first(db *gorm.DB, tenantID, id uuid.UUID) (*finance.CommissionClosure, error) {
	var model models.CommissionClosureModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists closures, most recent month first
func (r *GormCommissionClosureRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.ClosureFilter) ([]*finance.CommissionClosure, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionClosureModel{}).Where("tenant_id = ?", tenantID)
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.ReferenceMonth != "" {
		query = query.Where("reference_month = ?", filter.ReferenceMonth)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CommissionClosureModel
	if err := query.Order("reference_month DESC, created_at DESC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	closures := make([]*finance.CommissionClosure, len(rows))
	for i := range rows {
		closures[i] = rows[i].ToDomain()
	}
	return closures, total, nil
}

// ExistsActive reports whether a non-cancelled closure covers seller and month
func (r *GormCommissionClosureRepository) ExistsActive(ctx context.Context, tenantID, sellerID uuid.UUID, referenceMonth string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommissionClosureModel{}).
		Where("tenant_id = ? AND seller_id = ? AND reference_month = ? AND status <> ?",
			tenantID, sellerID, referenceMonth, finance.ClosureStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a closure. The partial unique index on (seller_id,
// reference_month) turns a concurrent duplicate into ErrClosureAlreadyExists.
func (r *GormCommissionClosureRepository) Create(ctx context.Context, c *finance.CommissionClosure) error {
	if err := r.db.WithContext(ctx).Create(models.CommissionClosureModelFromDomain(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return finance.ErrClosureAlreadyExists
		}
		return err
	}
	return nil
}

// Save writes the full closure row
func (r *GormCommissionClosureRepository) Save(ctx context.Context, c *finance.CommissionClosure) error {
	return r.db.WithContext(ctx).Save(models.CommissionClosureModelFromDomain(c)).Error
}

// Ensure the repositories implement their domain interfaces
var (
	_ finance.CommissionRepository        = (*GormCommissionRepository)(nil)
	_ finance.CommissionClosureRepository = (*GormCommissionClosureRepository)(nil)
)
