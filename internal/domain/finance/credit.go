package finance

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CreditExposure is what a customer currently owes across the three sources
// that consume credit. Receivables backed by a boleto are excluded from
// ReceivableTotal so the same debt is never counted twice.
type CreditExposure struct {
	ReceivableTotal      decimal.Decimal
	BoletoTotal          decimal.Decimal
	UninvoicedOrderTotal decimal.Decimal
}

// Consumed returns the total credit in use
func (e CreditExposure) Consumed() decimal.Decimal {
	return shared.RoundMoney(e.ReceivableTotal.Add(e.BoletoTotal).Add(e.UninvoicedOrderTotal))
}

// AvailableCredit returns limit minus consumed, clamped to [0, limit]
func (e CreditExposure) AvailableCredit(limit decimal.Decimal) decimal.Decimal {
	return shared.ClampMoney(limit.Sub(e.Consumed()), decimal.Zero, limit)
}
