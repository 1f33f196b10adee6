package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// notInvoicedCondition holds when no receivable and no boleto references the order
const notInvoicedCondition = "NOT EXISTS (SELECT 1 FROM receivables r WHERE r.order_id = orders.id) " +
	"AND NOT EXISTS (SELECT 1 FROM boletos b WHERE b.order_id = orders.id)"

// GormOrderRepository implements trade.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID within a tenant
func (r *GormOrderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*trade.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds an order and locks its row
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*trade.Order, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByExternalPaymentIDForUpdate locks the order paid through a gateway id
func (r *GormOrderRepository) FindByExternalPaymentIDForUpdate(ctx context.Context, tenantID uuid.UUID, externalID string) (*trade.Order, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND external_payment_id = ?", tenantID, externalID))
}

// IsUninvoiced reports whether an UNPAID order still carries its own credit
// consumption because nothing invoices it yet
func (r *GormOrderRepository) IsUninvoiced(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("orders.tenant_id = ? AND orders.id = ? AND orders.payment_status = ?", tenantID, id, trade.PaymentStatusUnpaid).
		Where(notInvoicedCondition).
		Count(&count).Error
	return count > 0, err
}

// Create inserts an order
func (r *GormOrderRepository) Create(ctx context.Context, o *trade.Order) error {
	return r.db.WithContext(ctx).Create(models.OrderModelFromDomain(o)).Error
}

// Save writes the full order row
func (r *GormOrderRepository) Save(ctx context.Context, o *trade.Order) error {
	return r.db.WithContext(ctx).Save(models.OrderModelFromDomain(o)).Error
}

func (r *GormOrderRepository) first(query *gorm.DB) (*trade.Order, error) {
	var model models.OrderModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormOrderRepository implements trade.OrderRepository
var _ trade.OrderRepository = (*GormOrderRepository)(nil)
