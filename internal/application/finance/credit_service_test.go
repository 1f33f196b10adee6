package finance_test

import (
	"context"
	"testing"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditService_ConsumeAndRestoreAreClamped(t *testing.T) {
	f := newFixture(t)
	svc := f.credit()
	ctx := context.Background()

	customer, err := svc.CreateCustomer(ctx, f.tenantID, appfinance.CreateCustomerRequest{
		Name:        "Padaria Central",
		CreditLimit: testutil.Dec("1000"),
	})
	require.NoError(t, err)
	assertMoney(t, "1000", customer.AvailableCredit)

	got, err := svc.Consume(ctx, f.tenantID, customer.CustomerID, testutil.Dec("1200"))
	require.NoError(t, err)
	assertMoney(t, "0", got.AvailableCredit)

	got, err = svc.Restore(ctx, f.tenantID, customer.CustomerID, testutil.Dec("300"))
	require.NoError(t, err)
	assertMoney(t, "300", got.AvailableCredit)

	got, err = svc.Restore(ctx, f.tenantID, customer.CustomerID, testutil.Dec("5000"))
	require.NoError(t, err)
	assertMoney(t, "1000", got.AvailableCredit)

	_, err = svc.Consume(ctx, f.tenantID, customer.CustomerID, testutil.Dec("0"))
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)
}

func TestCreditService_SetCreditLimitKeepsConsumption(t *testing.T) {
	f := newFixture(t)
	svc := f.credit()
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")

	_, err := svc.Consume(ctx, f.tenantID, customer.ID, testutil.Dec("400"))
	require.NoError(t, err)

	got, err := svc.SetCreditLimit(ctx, f.tenantID, customer.ID, testutil.Dec("1500"))
	require.NoError(t, err)
	assertMoney(t, "1500", got.CreditLimit)
	assertMoney(t, "1100", got.AvailableCredit)
}

func TestCreditService_CancelOrder(t *testing.T) {
	f := newFixture(t)
	svc := f.credit()
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")

	order, err := svc.RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("350"))
	require.NoError(t, err)
	assertMoney(t, "650", testutil.AvailableCredit(t, f.db, customer.ID))

	cancelled, err := svc.CancelOrder(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(trade.PaymentStatusCancelled), cancelled.PaymentStatus)
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))

	_, err = svc.CancelOrder(ctx, f.tenantID, order.ID)
	require.Error(t, err)
}

func TestCreditService_RecalculateRepairsDrift(t *testing.T) {
	f := newFixture(t)
	svc := f.credit()
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	healthy := testutil.SeedCustomer(t, f.db, f.tenantID, "500")

	_, err := f.receivables().Create(ctx, f.tenantID, appfinance.CreateReceivableRequest{
		CustomerID: customer.ID,
		Amount:     testutil.Dec("300"),
		DueDate:    f.due(10),
	})
	require.NoError(t, err)
	_, err = svc.RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("150"))
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.CustomerModel{}).
		Where("id = ?", customer.ID).
		Update("available_credit", testutil.Dec("990")).Error)

	before, err := svc.Exposure(ctx, f.tenantID, customer.ID)
	require.NoError(t, err)
	assert.False(t, before.InSync)
	assertMoney(t, "550", before.ExpectedAvailable)

	summary, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Corrected)

	after, err := svc.Exposure(ctx, f.tenantID, customer.ID)
	require.NoError(t, err)
	assert.True(t, after.InSync)
	assertMoney(t, "550", testutil.AvailableCredit(t, f.db, customer.ID))
	assertMoney(t, "500", testutil.AvailableCredit(t, f.db, healthy.ID))
}
