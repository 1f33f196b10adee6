package models

import (
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the settlement view of an order.
type OrderModel struct {
	TenantAggregateModel
	CustomerID        uuid.UUID           `gorm:"type:uuid;not null;index"`
	Total             decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	PaidAmount        decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	PaymentStatus     trade.PaymentStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	Origin            trade.OrderOrigin   `gorm:"type:varchar(20);not null;default:'STANDARD'"`
	ExternalPaymentID *string             `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *trade.Order {
	return &trade.Order{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		Total:               m.Total,
		PaidAmount:          m.PaidAmount,
		PaymentStatus:       m.PaymentStatus,
		Origin:              m.Origin,
		ExternalPaymentID:   m.ExternalPaymentID,
	}
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.FromDomainTenantAggregateRoot(o.TenantAggregateRoot)
	m.CustomerID = o.CustomerID
	m.Total = o.Total
	m.PaidAmount = o.PaidAmount
	m.PaymentStatus = o.PaymentStatus
	m.Origin = o.Origin
	m.ExternalPaymentID = o.ExternalPaymentID
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}
