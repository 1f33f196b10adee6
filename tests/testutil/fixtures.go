package testutil

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/partner"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Dec parses a decimal literal, panicking on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SeedAccount inserts an active bank account with an opening balance
func SeedAccount(t *testing.T, db *gorm.DB, tenantID uuid.UUID, opening string) *finance.Account {
	t.Helper()
	account, err := finance.NewAccount(tenantID, "Conta Corrente", finance.AccountKindBank, Dec(opening))
	require.NoError(t, err)
	require.NoError(t, db.Create(models.AccountModelFromDomain(account)).Error)
	return account
}

// SeedCustomer inserts a customer whose credit line is fully available
func SeedCustomer(t *testing.T, db *gorm.DB, tenantID uuid.UUID, limit string) *partner.Customer {
	t.Helper()
	customer, err := partner.NewCustomer(tenantID, "Mercado Boa Vista", Dec(limit))
	require.NoError(t, err)
	require.NoError(t, db.Create(models.CustomerModelFromDomain(customer)).Error)
	return customer
}

// SeedOrder inserts an UNPAID order
func SeedOrder(t *testing.T, db *gorm.DB, tenantID, customerID uuid.UUID, total string) *trade.Order {
	t.Helper()
	order, err := trade.NewOrder(tenantID, customerID, Dec(total))
	require.NoError(t, err)
	require.NoError(t, db.Create(models.OrderModelFromDomain(order)).Error)
	return order
}

// SeedReceivable inserts a PENDING receivable without touching credit
func SeedReceivable(t *testing.T, db *gorm.DB, tenantID, customerID uuid.UUID, amount string, due time.Time, origin finance.ReceivableOrigin) *finance.Receivable {
	t.Helper()
	r, err := finance.NewReceivable(tenantID, customerID, Dec(amount), due, origin)
	require.NoError(t, err)
	require.NoError(t, db.Create(models.ReceivableModelFromDomain(r)).Error)
	return r
}

// SeedBoleto inserts a PENDING boleto without touching credit
func SeedBoleto(t *testing.T, db *gorm.DB, tenantID, customerID uuid.UUID, orderID *uuid.UUID, amount string, due time.Time, externalID string) *finance.Boleto {
	t.Helper()
	b, err := finance.NewBoleto(tenantID, customerID, orderID, Dec(amount), due)
	require.NoError(t, err)
	if externalID != "" {
		b.AttachCharge(externalID, "", "")
	}
	require.NoError(t, db.Create(models.BoletoModelFromDomain(b)).Error)
	return b
}

// AvailableCredit reads a customer's available credit straight from the table
func AvailableCredit(t *testing.T, db *gorm.DB, customerID uuid.UUID) decimal.Decimal {
	t.Helper()
	var m models.CustomerModel
	require.NoError(t, db.Where("id = ?", customerID).First(&m).Error)
	return m.AvailableCredit
}

// StoredBalance reads an account's stored balance straight from the table
func StoredBalance(t *testing.T, db *gorm.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()
	var m models.AccountModel
	require.NoError(t, db.Where("id = ?", accountID).First(&m).Error)
	return m.Balance
}
