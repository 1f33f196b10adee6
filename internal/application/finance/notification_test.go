package finance_test

import (
	"context"
	"testing"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSettleFromExternalNotification_BoletoRedelivery(t *testing.T) {
	tests := []struct {
		name        string
		idempotency shared.IdempotencyStore
	}{
		{name: "database claim only"},
		{name: "with cache fast path", idempotency: newMemoryIdempotencyStore()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
			customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")

			order, err := f.credit().RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("300"))
			require.NoError(t, err)
			boleto := testutil.SeedBoleto(t, f.db, f.tenantID, customer.ID, &order.ID, "300", f.due(10), "ch_100")
			shadow := testutil.SeedReceivable(t, f.db, f.tenantID, customer.ID, "300", f.due(10), finance.FromBoleto(boleto.ID, order.ID))

			tracker := new(MockInvoiceTracker)
			tracker.On("MarkInvoiceStatus", mock.Anything, f.tenantID, order.ID, finance.InvoiceStatusPaid).Return(nil).Once()
			svc := f.settlement(appfinance.SettlementServiceConfig{
				DefaultAccountID: &account.ID,
				Idempotency:      tt.idempotency,
				Tracker:          tracker,
			})
			n := finance.PaymentNotification{
				TenantID:   f.tenantID,
				ExternalID: "ch_100",
				Status:     finance.NotificationPaid,
				Amount:     testutil.Dec("300"),
				NetAmount:  testutil.Dec("297.50"),
			}

			first, err := svc.SettleFromExternalNotification(ctx, n)
			require.NoError(t, err)
			assert.Equal(t, appfinance.OutcomeSettled, first.Outcome)
			assert.Equal(t, appfinance.RecordTypeBoleto, first.RecordType)
			require.NotNil(t, first.Transaction)
			assertMoney(t, "297.50", first.Transaction.Amount)

			second, err := svc.SettleFromExternalNotification(ctx, n)
			require.NoError(t, err)
			assert.Equal(t, appfinance.OutcomeDuplicate, second.Outcome)

			assertMoney(t, "297.50", testutil.StoredBalance(t, f.db, account.ID))
			assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))

			var storedShadow models.ReceivableModel
			require.NoError(t, f.db.Where("id = ?", shadow.ID).First(&storedShadow).Error)
			assert.Equal(t, finance.ReceivableStatusPaid, storedShadow.Status)

			paidOrder, err := f.credit().GetOrder(ctx, f.tenantID, order.ID)
			require.NoError(t, err)
			assert.Equal(t, string(trade.PaymentStatusPaid), paidOrder.PaymentStatus)
			tracker.AssertExpectations(t)
		})
	}
}

func TestSettleFromExternalNotification_Receivable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")

	receivable, err := f.receivables().Create(ctx, f.tenantID, appfinance.CreateReceivableRequest{
		CustomerID: customer.ID,
		Amount:     testutil.Dec("120"),
		DueDate:    f.due(3),
		ExternalID: "pix_7",
	})
	require.NoError(t, err)
	assertMoney(t, "880", testutil.AvailableCredit(t, f.db, customer.ID))

	svc := f.settlement(appfinance.SettlementServiceConfig{DefaultAccountID: &account.ID})
	result, err := svc.SettleFromExternalNotification(ctx, finance.PaymentNotification{
		TenantID:   f.tenantID,
		ExternalID: " pix_7 ",
		Status:     finance.NotificationPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, appfinance.OutcomeSettled, result.Outcome)
	assert.Equal(t, appfinance.RecordTypeReceivable, result.RecordType)
	assert.Equal(t, receivable.ID, *result.RecordID)
	assertMoney(t, "120", result.Transaction.Amount)
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))
}

func TestSettleFromExternalNotification_DirectOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")

	order, err := f.credit().RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("500"))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.OrderModel{}).
		Where("id = ?", order.ID).
		Update("external_payment_id", "card_42").Error)
	assertMoney(t, "500", testutil.AvailableCredit(t, f.db, customer.ID))

	svc := f.settlement(appfinance.SettlementServiceConfig{DefaultAccountID: &account.ID})
	result, err := svc.SettleFromExternalNotification(ctx, finance.PaymentNotification{
		TenantID:   f.tenantID,
		ExternalID: "card_42",
		Status:     finance.NotificationPaid,
		NetAmount:  testutil.Dec("485"),
	})
	require.NoError(t, err)
	assert.Equal(t, appfinance.OutcomeSettled, result.Outcome)
	assert.Equal(t, appfinance.RecordTypeOrder, result.RecordType)
	assertMoney(t, "485", testutil.StoredBalance(t, f.db, account.ID))
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))
}

func TestSettleFromExternalNotification_InvoicedOrderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")

	order, err := f.credit().RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("400"))
	require.NoError(t, err)
	receivable, err := f.receivables().Create(ctx, f.tenantID, appfinance.CreateReceivableRequest{
		CustomerID: customer.ID,
		Amount:     testutil.Dec("400"),
		DueDate:    f.due(7),
		OrderID:    &order.ID,
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.OrderModel{}).
		Where("id = ?", order.ID).
		Update("external_payment_id", "card_77").Error)

	svc := f.settlement(appfinance.SettlementServiceConfig{DefaultAccountID: &account.ID})
	_, err = svc.SettleFromExternalNotification(ctx, finance.PaymentNotification{
		TenantID:   f.tenantID,
		ExternalID: "card_77",
		Status:     finance.NotificationPaid,
		Amount:     testutil.Dec("400"),
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)

	stillOpen, err := f.credit().GetOrder(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	assert.NotEqual(t, string(trade.PaymentStatusPaid), stillOpen.PaymentStatus)
	outstanding, err := f.receivables().Get(ctx, f.tenantID, receivable.ID)
	require.NoError(t, err)
	assert.Equal(t, string(finance.ReceivableStatusPending), outstanding.Status)
	assertMoney(t, "0", testutil.StoredBalance(t, f.db, account.ID))
	assertMoney(t, "600", testutil.AvailableCredit(t, f.db, customer.ID))
}

func TestSettleFromExternalNotification_OrphanPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	store := newMemoryIdempotencyStore()
	svc := f.settlement(appfinance.SettlementServiceConfig{DefaultAccountID: &account.ID, Idempotency: store})

	n := finance.PaymentNotification{
		TenantID:   f.tenantID,
		ExternalID: "lost_1",
		Status:     finance.NotificationPaid,
		Amount:     testutil.Dec("75"),
	}
	_, err := svc.SettleFromExternalNotification(ctx, n)
	assert.ErrorIs(t, err, finance.ErrUnmatchedPayment)

	processed, err := store.IsProcessed(ctx, "payment:"+f.tenantID.String()+":lost_1")
	require.NoError(t, err)
	assert.False(t, processed, "a failed delivery releases its key")

	n.CustomerID = &customer.ID
	result, err := svc.SettleFromExternalNotification(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, appfinance.OutcomeRecovered, result.Outcome)
	require.NotNil(t, result.RecordID)
	assertMoney(t, "75", testutil.StoredBalance(t, f.db, account.ID))
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))
	assert.True(t, f.hasEvent(finance.EventTypePaymentRecovered))

	recovered, err := f.credit().GetOrder(ctx, f.tenantID, *result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, string(trade.OrderOriginRecovery), recovered.Origin)
	assert.Equal(t, string(trade.PaymentStatusPaid), recovered.PaymentStatus)
}

func TestSettleFromExternalNotification_OverdueThenPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	testutil.SeedBoleto(t, f.db, f.tenantID, customer.ID, nil, "90", f.due(-3), "ch_late")
	svc := f.settlement(appfinance.SettlementServiceConfig{DefaultAccountID: &account.ID})

	notify := func(status finance.NotificationStatus) *appfinance.NotificationResult {
		result, err := svc.SettleFromExternalNotification(ctx, finance.PaymentNotification{
			TenantID:   f.tenantID,
			ExternalID: "ch_late",
			Status:     status,
		})
		require.NoError(t, err)
		return result
	}

	assert.Equal(t, appfinance.OutcomeMarkedLate, notify(finance.NotificationOverdue).Outcome)
	assert.Equal(t, appfinance.OutcomeAcknowledged, notify(finance.NotificationOverdue).Outcome)
	assert.Equal(t, appfinance.OutcomeAcknowledged, notify(finance.NotificationExpired).Outcome)
	assert.Equal(t, appfinance.OutcomeSettled, notify(finance.NotificationPaid).Outcome)
	assertMoney(t, "90", testutil.StoredBalance(t, f.db, account.ID))
}

func TestSettleFromExternalNotification_Validation(t *testing.T) {
	f := newFixture(t)
	svc := f.settlement(appfinance.SettlementServiceConfig{})
	ctx := context.Background()

	_, err := svc.SettleFromExternalNotification(ctx, finance.PaymentNotification{
		TenantID: f.tenantID,
		Status:   finance.NotificationPaid,
	})
	require.Error(t, err)

	_, err = svc.SettleFromExternalNotification(ctx, finance.PaymentNotification{
		TenantID:   f.tenantID,
		ExternalID: "x",
		Status:     "REFUNDED",
	})
	require.Error(t, err)

	_, err = svc.SettleFromExternalNotification(ctx, finance.PaymentNotification{
		TenantID:   f.tenantID,
		ExternalID: "x",
		Status:     finance.NotificationPaid,
		CustomerID: func() *uuid.UUID { id := uuid.New(); return &id }(),
	})
	assert.ErrorIs(t, err, finance.ErrMissingBankAccount)
}
