package persistence

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCreditExposureReader sums what a customer owes across the three
// credit-consuming sources
type GormCreditExposureReader struct {
	db *gorm.DB
}

// NewGormCreditExposureReader creates a new GormCreditExposureReader
func NewGormCreditExposureReader(db *gorm.DB) *GormCreditExposureReader {
	return &GormCreditExposureReader{db: db}
}

// ExposureFor aggregates:
//   - outstanding receivables with boleto_id IS NULL, at their full amount
//     since partial payments do not release credit
//   - open boletos
//   - UNPAID orders referenced by no receivable and no boleto
func (r *GormCreditExposureReader) ExposureFor(ctx context.Context, tenantID, customerID uuid.UUID) (finance.CreditExposure, error) {
	db := r.db.WithContext(ctx)
	var exposure finance.CreditExposure

	receivables, err := sumColumn(db.Model(&models.ReceivableModel{}).
		Where("tenant_id = ? AND customer_id = ? AND boleto_id IS NULL AND status IN ?",
			tenantID, customerID, finance.OutstandingReceivableStatuses()), "amount")
	if err != nil {
		return exposure, fmt.Errorf("sum receivables: %w", err)
	}

	boletos, err := sumColumn(db.Model(&models.BoletoModel{}).
		Where("tenant_id = ? AND customer_id = ? AND status IN ?",
			tenantID, customerID, finance.OpenBoletoStatuses()), "amount")
	if err != nil {
		return exposure, fmt.Errorf("sum boletos: %w", err)
	}

	orders, err := sumColumn(db.Model(&models.OrderModel{}).
		Where("orders.tenant_id = ? AND orders.customer_id = ? AND orders.payment_status = ?",
			tenantID, customerID, trade.PaymentStatusUnpaid).
		Where(notInvoicedCondition), "orders.total")
	if err != nil {
		return exposure, fmt.Errorf("sum uninvoiced orders: %w", err)
	}

	exposure.ReceivableTotal = receivables
	exposure.BoletoTotal = boletos
	exposure.UninvoicedOrderTotal = orders
	return exposure, nil
}

func sumColumn(query *gorm.DB, column string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := query.Select("COALESCE(SUM(" + column + "), 0)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return shared.RoundMoney(total.Decimal), nil
}

// Ensure GormCreditExposureReader implements finance.CreditExposureReader
var _ finance.CreditExposureReader = (*GormCreditExposureReader)(nil)
