package finance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (f *fixture) boletos(issuer finance.ChargeIssuer, tracker finance.FiscalInvoiceTracker) *appfinance.BoletoService {
	return appfinance.NewBoletoService(appfinance.BoletoServiceConfig{
		Scope:   f.scope,
		Issuer:  issuer,
		Tracker: tracker,
		Now:     f.clock,
	})
}

func TestBoletoService_CreateForOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	credit := f.credit()

	order, err := credit.RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("300"))
	require.NoError(t, err)

	issuer := new(MockChargeIssuer)
	issuer.On("IssueCharge", mock.Anything, mock.MatchedBy(func(req finance.ChargeRequest) bool {
		return req.CustomerID == customer.ID && req.Amount.Equal(testutil.Dec("300"))
	})).Return(&finance.ChargeResult{ExternalID: "ch_9", Barcode: "23790.00000"}, nil).Once()

	boleto, err := f.boletos(issuer, nil).Create(ctx, f.tenantID, appfinance.CreateBoletoRequest{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		Amount:     testutil.Dec("300"),
		DueDate:    f.due(15),
	})
	require.NoError(t, err)
	require.NotNil(t, boleto.ExternalID)
	assert.Equal(t, "ch_9", *boleto.ExternalID)
	assert.Equal(t, "23790.00000", boleto.Barcode)
	issuer.AssertExpectations(t)

	// the boleto takes over the order's consumption
	assertMoney(t, "700", testutil.AvailableCredit(t, f.db, customer.ID))

	receivables, total, err := f.receivables().List(ctx, f.tenantID, appfinance.ReceivableListFilter{CustomerID: &customer.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, receivables, 1)
	assert.Equal(t, boleto.ID, *receivables[0].BoletoID)

	exposure, err := credit.Exposure(ctx, f.tenantID, customer.ID)
	require.NoError(t, err)
	assert.True(t, exposure.InSync)
	assertMoney(t, "300", exposure.BoletoTotal)
	assertMoney(t, "0", exposure.ReceivableTotal)
}

func TestBoletoService_CreateIssuerFailure(t *testing.T) {
	f := newFixture(t)
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	issuer := new(MockChargeIssuer)
	issuer.On("IssueCharge", mock.Anything, mock.Anything).Return(nil, errors.New("gateway down"))

	_, err := f.boletos(issuer, nil).Create(context.Background(), f.tenantID, appfinance.CreateBoletoRequest{
		CustomerID: customer.ID,
		Amount:     testutil.Dec("50"),
		DueDate:    f.due(1),
	})
	require.Error(t, err)
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))
}

func TestBoletoService_CreateRejectsBeforeIssuing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	other := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	credit := f.credit()

	cancelled, err := credit.RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("100"))
	require.NoError(t, err)
	_, err = credit.CancelOrder(ctx, f.tenantID, cancelled.ID)
	require.NoError(t, err)
	foreign, err := credit.RegisterOrder(ctx, f.tenantID, other.ID, testutil.Dec("100"))
	require.NoError(t, err)
	missingOrder := uuid.New()

	tests := []struct {
		name       string
		customerID uuid.UUID
		orderID    *uuid.UUID
		code       string
	}{
		{name: "unknown customer", customerID: uuid.New(), code: "NOT_FOUND"},
		{name: "cancelled order", customerID: customer.ID, orderID: &cancelled.ID, code: "INVALID_STATE"},
		{name: "order of another customer", customerID: customer.ID, orderID: &foreign.ID, code: "INVALID_INPUT"},
		{name: "unknown order", customerID: customer.ID, orderID: &missingOrder, code: "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := new(MockChargeIssuer)
			_, err := f.boletos(issuer, nil).Create(ctx, f.tenantID, appfinance.CreateBoletoRequest{
				CustomerID: tt.customerID,
				OrderID:    tt.orderID,
				Amount:     testutil.Dec("100"),
				DueDate:    f.due(5),
			})
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.code, domainErr.Code)
			issuer.AssertNotCalled(t, "IssueCharge", mock.Anything, mock.Anything)
		})
	}

	_, total, err := f.boletos(nil, nil).List(ctx, f.tenantID, appfinance.BoletoListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))
}

func TestBoletoService_MarkPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "100")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	credit := f.credit()

	order, err := credit.RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("250"))
	require.NoError(t, err)
	tracker := new(MockInvoiceTracker)
	tracker.On("MarkInvoiceStatus", mock.Anything, f.tenantID, order.ID, finance.InvoiceStatusPaid).
		Return(errors.New("fiscal service unavailable")).Once()
	svc := f.boletos(nil, tracker)

	boleto, err := svc.Create(ctx, f.tenantID, appfinance.CreateBoletoRequest{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		Amount:     testutil.Dec("250"),
		DueDate:    f.due(5),
	})
	require.NoError(t, err)
	assertMoney(t, "750", testutil.AvailableCredit(t, f.db, customer.ID))

	result, err := svc.MarkPaid(ctx, f.tenantID, boleto.ID, appfinance.MarkBoletoPaidRequest{
		NetAmount:     testutil.Dec("247.10"),
		BankAccountID: &account.ID,
	})
	require.NoError(t, err, "tracker failures never undo a settlement")
	assert.Equal(t, string(finance.BoletoStatusPaid), result.Boleto.Status)
	require.NotNil(t, result.Transaction)
	assertMoney(t, "247.10", result.Transaction.Amount)
	assertMoney(t, "250", result.CreditRestored)
	assertMoney(t, "347.10", testutil.StoredBalance(t, f.db, account.ID))
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))

	paidOrder, err := credit.GetOrder(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(trade.PaymentStatusPaid), paidOrder.PaymentStatus)

	_, err = svc.MarkPaid(ctx, f.tenantID, boleto.ID, appfinance.MarkBoletoPaidRequest{})
	assert.ErrorIs(t, err, finance.ErrAlreadyPaid)
	tracker.AssertExpectations(t)
}

// 1000 limit, a 300 receivable and a 200 boleto: 500 available, 700 once
// the boleto is paid, and the boleto's shadow receivable never counts.
func TestBoletoService_PayingBoletoRestoresOnlyItsCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	credit := f.credit()
	svc := f.boletos(nil, nil)

	_, err := f.receivables().Create(ctx, f.tenantID, appfinance.CreateReceivableRequest{
		CustomerID: customer.ID,
		Amount:     testutil.Dec("300"),
		DueDate:    f.due(10),
	})
	require.NoError(t, err)
	order, err := credit.RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("200"))
	require.NoError(t, err)
	boleto, err := svc.Create(ctx, f.tenantID, appfinance.CreateBoletoRequest{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		Amount:     testutil.Dec("200"),
		DueDate:    f.due(10),
	})
	require.NoError(t, err)
	assertMoney(t, "500", testutil.AvailableCredit(t, f.db, customer.ID))

	_, err = svc.MarkPaid(ctx, f.tenantID, boleto.ID, appfinance.MarkBoletoPaidRequest{BankAccountID: &account.ID})
	require.NoError(t, err)
	assertMoney(t, "700", testutil.AvailableCredit(t, f.db, customer.ID))

	exposure, err := credit.Exposure(ctx, f.tenantID, customer.ID)
	require.NoError(t, err)
	assert.True(t, exposure.InSync)
	assertMoney(t, "300", exposure.ReceivableTotal)
	assertMoney(t, "0", exposure.BoletoTotal)
}

func TestBoletoService_CancelKeepsShadowDebt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	credit := f.credit()
	svc := f.boletos(nil, nil)

	order, err := credit.RegisterOrder(ctx, f.tenantID, customer.ID, testutil.Dec("300"))
	require.NoError(t, err)
	boleto, err := svc.Create(ctx, f.tenantID, appfinance.CreateBoletoRequest{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		Amount:     testutil.Dec("300"),
		DueDate:    f.due(5),
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, f.tenantID, boleto.ID)
	require.NoError(t, err)
	assert.Equal(t, string(finance.BoletoStatusCancelled), cancelled.Status)
	assertMoney(t, "700", testutil.AvailableCredit(t, f.db, customer.ID))

	outstanding, err := f.receivables().ListOutstanding(ctx, f.tenantID, customer.ID)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Nil(t, outstanding[0].BoletoID)
	assert.Equal(t, order.ID, *outstanding[0].OrderID)

	exposure, err := credit.Exposure(ctx, f.tenantID, customer.ID)
	require.NoError(t, err)
	assert.True(t, exposure.InSync)
	assertMoney(t, "300", exposure.ReceivableTotal)

	_, err = svc.Cancel(ctx, f.tenantID, boleto.ID)
	require.Error(t, err)
}

func TestBoletoService_CancelStandaloneRestoresCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	svc := f.boletos(nil, nil)

	boleto, err := svc.Create(ctx, f.tenantID, appfinance.CreateBoletoRequest{
		CustomerID: customer.ID,
		Amount:     testutil.Dec("400"),
		DueDate:    f.due(5),
	})
	require.NoError(t, err)
	assertMoney(t, "600", testutil.AvailableCredit(t, f.db, customer.ID))

	_, err = svc.Cancel(ctx, f.tenantID, boleto.ID)
	require.NoError(t, err)
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))
	assert.True(t, f.hasEvent(finance.EventTypeBoletoCancelled))
}

func TestBoletoService_SweepOverdueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	testutil.SeedBoleto(t, f.db, f.tenantID, customer.ID, nil, "10", f.due(-2), "")
	testutil.SeedBoleto(t, f.db, f.tenantID, customer.ID, nil, "20", f.due(3), "")
	svc := f.boletos(nil, nil)

	overdueEvents := func() int {
		n := 0
		for _, et := range f.outbox.Types() {
			if et == finance.EventTypeBoletoOverdue {
				n++
			}
		}
		return n
	}

	marked, err := svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
	assert.Equal(t, 1, overdueEvents())

	marked, err = svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)
	assert.Equal(t, 1, overdueEvents())

	overdue, total, err := svc.List(ctx, f.tenantID, appfinance.BoletoListFilter{Status: string(finance.BoletoStatusOverdue)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, overdue, 1)
	assertMoney(t, "10", overdue[0].Amount)

	_, _, err = svc.List(ctx, f.tenantID, appfinance.BoletoListFilter{Status: "LOST"})
	require.Error(t, err)
}

func TestBoletoService_Penalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	boleto := testutil.SeedBoleto(t, f.db, f.tenantID, customer.ID, nil, "1000", f.due(-10), "")
	svc := f.boletos(nil, nil)

	onTime, err := svc.Penalty(ctx, f.tenantID, boleto.ID, f.due(-10))
	require.NoError(t, err)
	assert.Equal(t, 0, onTime.DaysOverdue)
	assertMoney(t, "0", onTime.Total)
	assertMoney(t, "1000", onTime.AmountDue)

	late, err := svc.Penalty(ctx, f.tenantID, boleto.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 10, late.DaysOverdue)
	assert.True(t, late.Total.IsPositive())
	assert.True(t, late.AmountDue.Equal(testutil.Dec("1000").Add(late.Total)))
}
