package models

import (
	"github.com/erp/ledger/internal/domain/partner"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer aggregate root.
// The check constraint backs the credit clamp the repository applies in SQL.
type CustomerModel struct {
	TenantAggregateModel
	Name            string          `gorm:"type:varchar(200);not null"`
	CreditLimit     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	AvailableCredit decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0;check:chk_customer_available_credit,available_credit >= 0"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *partner.Customer {
	return &partner.Customer{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		CreditLimit:         m.CreditLimit,
		AvailableCredit:     m.AvailableCredit,
	}
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *partner.Customer) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.Name = c.Name
	m.CreditLimit = c.CreditLimit
	m.AvailableCredit = c.AvailableCredit
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer
func CustomerModelFromDomain(c *partner.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}
