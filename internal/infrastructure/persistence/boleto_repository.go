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

// GormBoletoRepository implements finance.BoletoRepository using GORM
type GormBoletoRepository struct {
	db *gorm.DB
}

// NewGormBoletoRepository creates a new GormBoletoRepository
func NewGormBoletoRepository(db *gorm.DB) *GormBoletoRepository {
	return &GormBoletoRepository{db: db}
}

// FindByID finds a boleto by ID within a tenant
func (r *GormBoletoRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Boleto, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds a boleto and locks its row
func (r *GormBoletoRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Boleto, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByExternalIDForUpdate locks the boleto registered under a gateway id
func (r *GormBoletoRepository) FindByExternalIDForUpdate(ctx context.Context, tenantID uuid.UUID, externalID string) (*finance.Boleto, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID))
}

// FindAll lists boletos by due date
func (r *GormBoletoRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.BoletoFilter) ([]*finance.Boleto, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BoletoModel{}).Where("tenant_id = ?", tenantID)
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BoletoModel
	if err := query.Order("due_date ASC, id ASC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	boletos := make([]*finance.Boleto, len(rows))
	for i := range rows {
		boletos[i] = rows[i].ToDomain()
	}
	return boletos, total, nil
}

// Create inserts a boleto
func (r *GormBoletoRepository) Create(ctx context.Context, b *finance.Boleto) error {
	return r.db.WithContext(ctx).Create(models.BoletoModelFromDomain(b)).Error
}

// Save writes the full boleto row
func (r *GormBoletoRepository) Save(ctx context.Context, b *finance.Boleto) error {
	return r.db.WithContext(ctx).Save(models.BoletoModelFromDomain(b)).Error
}

// FindPendingDueBeforeForUpdate locks every PENDING boleto of every tenant
// due before cutoff, ordered by id
func (r *GormBoletoRepository) FindPendingDueBeforeForUpdate(ctx context.Context, cutoff time.Time) ([]*finance.Boleto, error) {
	var rows []models.BoletoModel
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND due_date < ?", finance.BoletoStatusPending, cutoff.UTC()).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	boletos := make([]*finance.Boleto, len(rows))
	for i := range rows {
		boletos[i] = rows[i].ToDomain()
	}
	return boletos, nil
}

func (r *GormBoletoRepository) first(query *gorm.DB) (*finance.Boleto, error) {
	var model models.BoletoModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormBoletoRepository implements finance.BoletoRepository
var _ finance.BoletoRepository = (*GormBoletoRepository)(nil)
