package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// engine holds the unit-of-work steps the services share: ledger appends,
// replays and credit movements. Every method runs inside a caller's scope.
type engine struct {
	logger  *zap.Logger
	metrics *telemetry.SettlementMetrics
	now     func() time.Time
}

func newEngine(logger *zap.Logger, metrics *telemetry.SettlementMetrics, now func() time.Time) *engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &engine{logger: logger, metrics: metrics, now: now}
}

// appendTransaction sequences tx after the account's last entry, moves the
// stored balance and replays the tail past the checkpoint.
func (e *engine) appendTransaction(ctx context.Context, repos TransactionalRepositories, tx *finance.Transaction) error {
	account, err := repos.Accounts().FindByIDForUpdate(ctx, tx.TenantID, tx.AccountID)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	if err := account.EnsureActive(); err != nil {
		return err
	}

	tx.Sequence = account.LastSequence + 1
	newBalance := shared.RoundMoney(account.Balance.Add(tx.SignedAmount()))
	tx.BalanceAfter = newBalance

	if err := repos.Transactions().Create(ctx, tx); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if err := repos.Accounts().RecordAppend(ctx, tx.TenantID, tx.AccountID, tx.SignedAmount(), tx.Sequence); err != nil {
		return fmt.Errorf("advance balance: %w", err)
	}

	after := int64(0)
	if account.HasCheckpoint() {
		after = account.CheckpointSequence
	}
	account.Balance = newBalance
	account.LastSequence = tx.Sequence
	if _, err := e.replay(ctx, repos, account, after); err != nil {
		return err
	}

	e.metrics.RecordAppend(ctx, tx.TenantID, string(tx.Type))
	return repos.RecordEvents(ctx, finance.NewTransactionAppendedEvent(tx))
}

// replay walks the transactions after the given sequence starting from the
// opening implied by the stored balance, rewrites drifted snapshots and moves
// the checkpoint. account must be locked and carry the current stored balance.
func (e *engine) replay(ctx context.Context, repos TransactionalRepositories, account *finance.Account, after int64) (finance.ReplayResult, error) {
	started := time.Now()
	txns, err := repos.Transactions().FindAfterSequence(ctx, account.TenantID, account.ID, after)
	if err != nil {
		return finance.ReplayResult{}, fmt.Errorf("load ledger tail: %w", err)
	}
	finance.SortBySequence(txns)

	opening := finance.ImplicitOpeningBalance(account.Balance, txns)
	result := finance.Replay(opening, after, txns)

	for _, c := range result.Corrections {
		e.logger.Warn("Correcting drifted balance snapshot",
			zap.String("account_id", account.ID.String()),
			zap.String("transaction_id", c.TransactionID.String()),
			zap.Int64("sequence", c.Sequence),
			zap.String("stored", c.Stored.String()),
			zap.String("expected", c.Expected.String()))
		if err := repos.Transactions().UpdateBalanceAfter(ctx, c.TransactionID, c.Expected); err != nil {
			return result, fmt.Errorf("rewrite snapshot %d: %w", c.Sequence, err)
		}
	}

	// compared at cent precision: some drivers hand money back as floats
	storedDrift := finance.Drifted(account.Balance, result.Final)
	if storedDrift {
		e.logger.Warn("Correcting stored account balance",
			zap.String("account_id", account.ID.String()),
			zap.String("stored", account.Balance.String()),
			zap.String("expected", result.Final.String()))
		if err := repos.Accounts().CorrectBalance(ctx, account.TenantID, account.ID, result.Final); err != nil {
			return result, fmt.Errorf("correct balance: %w", err)
		}
	}

	if err := repos.Accounts().SaveCheckpoint(ctx, account.TenantID, account.ID, result.LastSeq, result.Final); err != nil {
		return result, fmt.Errorf("save checkpoint: %w", err)
	}

	e.metrics.RecordReplay(ctx, account.TenantID, time.Since(started), len(result.Corrections))
	if result.HasDrift() || storedDrift {
		if err := repos.RecordEvents(ctx, finance.NewBalanceDriftCorrectedEvent(account, account.Balance, result)); err != nil {
			return result, err
		}
	}
	account.Balance = result.Final
	account.CheckpointSequence = result.LastSeq
	account.CheckpointBalance = result.Final
	return result, nil
}

// lockAccount loads the posting account first so every unit of work takes
// locks in the same order
func (e *engine) lockAccount(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, accountID *uuid.UUID) (*finance.Account, error) {
	if accountID == nil || *accountID == uuid.Nil {
		return nil, finance.ErrMissingBankAccount
	}
	account, err := repos.Accounts().FindByIDForUpdate(ctx, tenantID, *accountID)
	if err != nil {
		return nil, err
	}
	if err := account.EnsureActive(); err != nil {
		return nil, err
	}
	return account, nil
}

// postIncome appends an INCOME entry for money received on accountID
func (e *engine) postIncome(ctx context.Context, repos TransactionalRepositories, tenantID, accountID uuid.UUID, amount decimal.Decimal, at time.Time, ref finance.Reference, description string) (*finance.Transaction, error) {
	return e.post(ctx, repos, tenantID, accountID, finance.TransactionTypeIncome, amount, at, ref, description)
}

func (e *engine) post(ctx context.Context, repos TransactionalRepositories, tenantID, accountID uuid.UUID, txType finance.TransactionType, amount decimal.Decimal, at time.Time, ref finance.Reference, description string) (*finance.Transaction, error) {
	if at.IsZero() {
		at = e.now()
	}
	tx, err := finance.NewTransaction(tenantID, accountID, txType, amount, at, ref, description)
	if err != nil {
		return nil, err
	}
	if err := e.appendTransaction(ctx, repos, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// consumeFor reserves credit for a new receivable or boleto. When the record
// invoices an order that was still consuming credit on its own, only the
// difference between the record and the order total moves.
func (e *engine) consumeFor(ctx context.Context, repos TransactionalRepositories, tenantID, customerID uuid.UUID, amount decimal.Decimal, order *trade.Order, orderUninvoiced bool) error {
	if order == nil || !orderUninvoiced {
		return e.consume(ctx, repos, tenantID, customerID, amount)
	}
	diff := shared.RoundMoney(amount.Sub(order.Total))
	switch {
	case diff.IsPositive():
		return e.consume(ctx, repos, tenantID, customerID, diff)
	case diff.IsNegative():
		return e.restore(ctx, repos, tenantID, customerID, diff.Neg())
	}
	return nil
}

func (e *engine) consume(ctx context.Context, repos TransactionalRepositories, tenantID, customerID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := repos.Customers().ConsumeCredit(ctx, tenantID, customerID, amount); err != nil {
		return fmt.Errorf("consume credit: %w", err)
	}
	e.metrics.RecordCreditAdjustment(ctx, tenantID, telemetry.CreditConsume, amount)
	return nil
}

func (e *engine) restore(ctx context.Context, repos TransactionalRepositories, tenantID, customerID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := repos.Customers().RestoreCredit(ctx, tenantID, customerID, amount); err != nil {
		return fmt.Errorf("restore credit: %w", err)
	}
	e.metrics.RecordCreditAdjustment(ctx, tenantID, telemetry.CreditRestore, amount)
	return nil
}

// invoicedOrder loads the order a new record invoices and reports whether the
// order was consuming credit on its own until now. It must run before the
// record is inserted.
func (e *engine) invoicedOrder(ctx context.Context, repos TransactionalRepositories, tenantID, customerID uuid.UUID, orderID *uuid.UUID) (*trade.Order, bool, error) {
	if orderID == nil {
		return nil, false, nil
	}
	order, err := repos.Orders().FindByIDForUpdate(ctx, tenantID, *orderID)
	if err != nil {
		return nil, false, fmt.Errorf("load order: %w", err)
	}
	if err := invoiceableBy(order, customerID); err != nil {
		return nil, false, err
	}
	uninvoiced, err := repos.Orders().IsUninvoiced(ctx, tenantID, order.ID)
	if err != nil {
		return nil, false, fmt.Errorf("check order invoices: %w", err)
	}
	return order, uninvoiced, nil
}

// invoiceableBy checks that customerID may invoice order
func invoiceableBy(order *trade.Order, customerID uuid.UUID) error {
	if order.CustomerID != customerID {
		return shared.NewDomainError("INVALID_INPUT", "Order belongs to another customer")
	}
	if order.PaymentStatus == trade.PaymentStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Order is cancelled")
	}
	return nil
}

// applyToOrder mirrors a settled increment onto the order it invoices and
// reports whether the order became fully paid
func (e *engine) applyToOrder(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, orderID *uuid.UUID, amount decimal.Decimal) (bool, error) {
	if orderID == nil {
		return false, nil
	}
	order, err := repos.Orders().FindByIDForUpdate(ctx, tenantID, *orderID)
	if errors.Is(err, shared.ErrNotFound) {
		e.logger.Warn("Settled record references a missing order", zap.String("order_id", orderID.String()))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if order.PaymentStatus == trade.PaymentStatusCancelled {
		return false, nil
	}
	completed, err := order.ApplyPayment(amount)
	if err != nil {
		return false, err
	}
	if err := repos.Orders().Save(ctx, order); err != nil {
		return false, fmt.Errorf("save order: %w", err)
	}
	return completed, nil
}

// errSettleThroughBoleto rejects direct settlement of a boleto shadow
var errSettleThroughBoleto = shared.NewDomainError("INVALID_TRANSITION", "Receivable is settled through its boleto")

// errSettleThroughInvoices rejects direct settlement of an invoiced order
var errSettleThroughInvoices = shared.NewDomainError("INVALID_TRANSITION", "Order is settled through its receivables or boleto")

// settleReceivable applies one payment increment, mirrors it onto the
// invoiced order and restores the receivable's credit once it is fully paid.
// A partial increment never restores credit. It reports whether the
// receivable and its order were completed by this increment.
func (e *engine) settleReceivable(ctx context.Context, repos TransactionalRepositories, r *finance.Receivable, p finance.Payment) (completed, orderPaid bool, err error) {
	amount := shared.RoundMoney(p.Amount)
	completed, err = r.ApplyPayment(p)
	if err != nil {
		return false, false, err
	}
	if err := repos.Receivables().Save(ctx, r); err != nil {
		return false, false, fmt.Errorf("save receivable: %w", err)
	}
	orderPaid, err = e.applyToOrder(ctx, repos, r.TenantID, r.Origin.OrderID(), amount)
	if err != nil {
		return false, false, err
	}
	if completed && r.Origin.CountsTowardCredit() {
		if err := e.restore(ctx, repos, r.TenantID, r.CustomerID, r.Amount); err != nil {
			return false, false, err
		}
	}
	return completed, orderPaid, recordEvents(ctx, repos, r)
}

// settleBoleto marks the boleto paid together with its shadow receivable and
// order, restores its credit and, when accountID is set, posts the amount
// credited by the bank. It reports whether the order became fully paid.
func (e *engine) settleBoleto(ctx context.Context, repos TransactionalRepositories, b *finance.Boleto, paidAt time.Time, net decimal.Decimal, accountID *uuid.UUID) (*finance.Transaction, bool, error) {
	paidAt = timeOrNow(paidAt, e.now)
	if err := b.MarkPaid(paidAt, net); err != nil {
		return nil, false, err
	}
	if err := repos.Boletos().Save(ctx, b); err != nil {
		return nil, false, fmt.Errorf("save boleto: %w", err)
	}

	shadow, err := repos.Receivables().FindShadowForUpdate(ctx, b.TenantID, b.ID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		shadow = nil
	case err != nil:
		return nil, false, err
	}
	if shadow != nil && !shadow.IsPaid() {
		payment := finance.Payment{
			NetAmount:     *b.NetAmount,
			Method:        "BOLETO",
			BankAccountID: accountID,
			PaidAt:        paidAt,
		}
		if err := shadow.MarkPaid(payment); err != nil {
			return nil, false, err
		}
		if err := repos.Receivables().Save(ctx, shadow); err != nil {
			return nil, false, fmt.Errorf("save shadow receivable: %w", err)
		}
		if err := recordEvents(ctx, repos, shadow); err != nil {
			return nil, false, err
		}
	}

	orderPaid, err := e.applyToOrder(ctx, repos, b.TenantID, b.OrderID, b.Amount)
	if err != nil {
		return nil, false, err
	}
	if err := e.restore(ctx, repos, b.TenantID, b.CustomerID, b.Amount); err != nil {
		return nil, false, err
	}

	var tx *finance.Transaction
	if accountID != nil {
		tx, err = e.postIncome(ctx, repos, b.TenantID, *accountID, *b.NetAmount, paidAt,
			finance.NewReference(finance.ReferenceBoleto, b.ID), "Boleto payment")
		if err != nil {
			return nil, false, err
		}
	}
	return tx, orderPaid, recordEvents(ctx, repos, b)
}

// notifyInvoicesPaid tells the fiscal tracker about orders that became PAID.
// It runs after commit; failures are logged and never undo the settlement.
func notifyInvoicesPaid(ctx context.Context, tracker finance.FiscalInvoiceTracker, logger *zap.Logger, tenantID uuid.UUID, orderIDs []uuid.UUID) {
	if tracker == nil {
		return
	}
	for _, orderID := range orderIDs {
		if err := tracker.MarkInvoiceStatus(ctx, tenantID, orderID, finance.InvoiceStatusPaid); err != nil {
			logger.Warn("Fiscal invoice status update failed",
				zap.String("order_id", orderID.String()),
				zap.Error(err))
		}
	}
}

// timeOrNow returns t in UTC, or now when t is zero
func timeOrNow(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now().UTC()
	}
	return t.UTC()
}

type eventCarrier interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// recordEvents drains the aggregates' queued events into the outbox
func recordEvents(ctx context.Context, repos TransactionalRepositories, carriers ...eventCarrier) error {
	var events []shared.DomainEvent
	for _, c := range carriers {
		events = append(events, c.GetDomainEvents()...)
		c.ClearDomainEvents()
	}
	if len(events) == 0 {
		return nil
	}
	return repos.RecordEvents(ctx, events...)
}

func pageFilter(page, pageSize int) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	return f
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
