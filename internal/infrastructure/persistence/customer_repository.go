package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/partner"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Credit clamps are written as CASE expressions so the same statement runs
// on postgres and sqlite.
const (
	consumeCreditExpr = "CASE WHEN available_credit - ? < 0 THEN 0 ELSE available_credit - ? END"
	restoreCreditExpr = "CASE WHEN available_credit + ? > credit_limit THEN credit_limit ELSE available_credit + ? END"
	setCreditExpr     = "CASE WHEN CAST(? AS DECIMAL(18,2)) < 0 THEN 0 WHEN CAST(? AS DECIMAL(18,2)) > credit_limit THEN credit_limit ELSE CAST(? AS DECIMAL(18,2)) END"
)

// GormCustomerRepository implements partner.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID within a tenant
func (r *GormCustomerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Customer, error) {
	return r.first(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a customer and locks its row
func (r *GormCustomerRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*partner.Customer, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormCustomerRepository) first(db *gorm.DB, tenantID, id uuid.UUID) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists a tenant's customers by name
func (r *GormCustomerRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*partner.Customer, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CustomerModel
	if err := query.Order("name ASC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	customers := make([]*partner.Customer, len(rows))
	for i := range rows {
		customers[i] = rows[i].ToDomain()
	}
	return customers, total, nil
}

// FindAllKeys lists every customer across tenants
func (r *GormCustomerRepository) FindAllKeys(ctx context.Context) ([]partner.CustomerKey, error) {
	var rows []struct {
		TenantID uuid.UUID
		ID       uuid.UUID
	}
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		Select("tenant_id, id").Order("tenant_id, id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]partner.CustomerKey, len(rows))
	for i, row := range rows {
		keys[i] = partner.CustomerKey{TenantID: row.TenantID, CustomerID: row.ID}
	}
	return keys, nil
}

// Create inserts a customer
func (r *GormCustomerRepository) Create(ctx context.Context, c *partner.Customer) error {
	return r.db.WithContext(ctx).Create(models.CustomerModelFromDomain(c)).Error
}

// SaveCreditLimit stores the limit and the already re-clamped available credit
func (r *GormCustomerRepository) SaveCreditLimit(ctx context.Context, c *partner.Customer) error {
	return r.update(ctx, c.TenantID, c.ID, map[string]any{
		"credit_limit":     c.CreditLimit,
		"available_credit": c.AvailableCredit,
		"version":          gorm.Expr("version + 1"),
	})
}

// ConsumeCredit lowers available credit, never below zero
func (r *GormCustomerRepository) ConsumeCredit(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error {
	amount = shared.RoundMoney(amount)
	return r.update(ctx, tenantID, id, map[string]any{
		"available_credit": gorm.Expr(consumeCreditExpr, amount, amount),
	})
}

// RestoreCredit raises available credit, never above the limit
func (r *GormCustomerRepository) RestoreCredit(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error {
	amount = shared.RoundMoney(amount)
	return r.update(ctx, tenantID, id, map[string]any{
		"available_credit": gorm.Expr(restoreCreditExpr, amount, amount),
	})
}

// SetAvailableCredit overwrites available credit, clamped to [0, credit_limit]
func (r *GormCustomerRepository) SetAvailableCredit(ctx context.Context, tenantID, id uuid.UUID, available decimal.Decimal) error {
	available = shared.RoundMoney(available)
	return r.update(ctx, tenantID, id, map[string]any{
		"available_credit": gorm.Expr(setCreditExpr, available, available, available),
	})
}

func (r *GormCustomerRepository) update(ctx context.Context, tenantID, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates)
	return rowsOrNotFound(result)
}

// Ensure GormCustomerRepository implements partner.CustomerRepository
var _ partner.CustomerRepository = (*GormCustomerRepository)(nil)
