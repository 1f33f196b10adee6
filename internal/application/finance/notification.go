package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	paymentMethodGateway = "GATEWAY"
	webhookOutcomeFailed = "FAILED"
)

// Record types named in webhook results
const (
	RecordTypeBoleto     = "BOLETO"
	RecordTypeReceivable = "RECEIVABLE"
	RecordTypeOrder      = "ORDER"
)

func notificationKey(n finance.PaymentNotification) string {
	return fmt.Sprintf("payment:%s:%s", n.TenantID, n.ExternalID)
}

// SettleFromExternalNotification applies a payment gateway webhook. PAID
// settles the boleto, receivable or order carrying the external id, or
// synthesizes a recovery order when nothing matches. Redelivered and already
// settled payments succeed without changing anything. OVERDUE moves a PENDING
// boleto to OVERDUE and EXPIRED is only acknowledged.
func (s *SettlementService) SettleFromExternalNotification(ctx context.Context, n finance.PaymentNotification) (*NotificationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "external_notification")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, n.TenantID.String(),
		telemetry.SpanAttrExternalID, n.ExternalID,
		telemetry.SpanAttrStatus, string(n.Status),
	)

	n.ExternalID = strings.TrimSpace(n.ExternalID)
	if n.ExternalID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "External payment id is required")
	}
	if !n.Status.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_INPUT", "Unknown notification status %q", n.Status)
	}

	var (
		result *NotificationResult
		err    error
	)
	switch n.Status {
	case finance.NotificationPaid:
		result, err = s.settleNotification(ctx, n)
	case finance.NotificationOverdue:
		result, err = s.markNotificationOverdue(ctx, n)
	default:
		result = &NotificationResult{Outcome: OutcomeAcknowledged}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordWebhook(ctx, n.TenantID, webhookOutcomeFailed)
		return nil, err
	}

	telemetry.SetAttributes(span, "outcome", result.Outcome)
	s.metrics.RecordWebhook(ctx, n.TenantID, result.Outcome)
	return result, nil
}

func (s *SettlementService) settleNotification(ctx context.Context, n finance.PaymentNotification) (*NotificationResult, error) {
	key := notificationKey(n)
	if s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
		switch {
		case err != nil:
			s.logger.Warn("Idempotency cache unavailable, relying on database claim",
				zap.String("external_id", n.ExternalID),
				zap.Error(err))
		case !fresh:
			s.logger.Info("Duplicate payment notification ignored",
				zap.String("external_id", n.ExternalID),
				zap.String("source", "cache"))
			return &NotificationResult{Outcome: OutcomeDuplicate}, nil
		}
	}

	result, paidOrders, err := s.applyPaidNotification(ctx, n)
	if err != nil {
		if s.idempotency != nil {
			if ferr := s.idempotency.Forget(ctx, key); ferr != nil {
				s.logger.Warn("Failed to release idempotency key",
					zap.String("key", key),
					zap.Error(ferr))
			}
		}
		return nil, err
	}

	if result.Outcome == OutcomeDuplicate {
		s.logger.Info("Duplicate payment notification ignored",
			zap.String("external_id", n.ExternalID),
			zap.String("source", "claim"))
		return result, nil
	}
	if result.Transaction != nil {
		s.metrics.RecordSettlement(ctx, n.TenantID, telemetry.SettlementKindWebhook, result.Transaction.Amount)
	}
	notifyInvoicesPaid(ctx, s.tracker, s.logger, n.TenantID, paidOrders)
	return result, nil
}

// applyPaidNotification claims the external id and settles whatever carries
// it, all in one unit of work. The claim's unique key makes a concurrent
// delivery wait for this one and then see the claim taken.
func (s *SettlementService) applyPaidNotification(ctx context.Context, n finance.PaymentNotification) (*NotificationResult, []uuid.UUID, error) {
	paidAt := timeOrNow(n.PaidAt, s.engine.now)
	var (
		result     *NotificationResult
		paidOrders []uuid.UUID
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		result, paidOrders = nil, nil

		claimed, err := repos.Notifications().Claim(ctx, finance.NewNotificationClaim(n, s.engine.now()))
		if err != nil {
			return fmt.Errorf("claim notification: %w", err)
		}
		if !claimed {
			result = &NotificationResult{Outcome: OutcomeDuplicate}
			return nil
		}

		accountID := s.accountOrDefault(n.AccountID)
		if _, err := s.engine.lockAccount(ctx, repos, n.TenantID, accountID); err != nil {
			return err
		}

		boleto, err := repos.Boletos().FindByExternalIDForUpdate(ctx, n.TenantID, n.ExternalID)
		switch {
		case err == nil:
			result, paidOrders, err = s.settleBoletoNotification(ctx, repos, n, boleto, accountID, paidAt)
			return err
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}

		receivable, err := repos.Receivables().FindByExternalIDForUpdate(ctx, n.TenantID, n.ExternalID)
		switch {
		case err == nil:
			result, paidOrders, err = s.settleReceivableNotification(ctx, repos, n, receivable, accountID, paidAt)
			return err
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}

		order, err := repos.Orders().FindByExternalPaymentIDForUpdate(ctx, n.TenantID, n.ExternalID)
		switch {
		case err == nil:
			result, paidOrders, err = s.settleOrderNotification(ctx, repos, n, order, accountID, paidAt)
			return err
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}

		result, err = s.recoverOrphanPayment(ctx, repos, n, accountID, paidAt)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return result, paidOrders, nil
}

func (s *SettlementService) settleBoletoNotification(ctx context.Context, repos TransactionalRepositories, n finance.PaymentNotification, b *finance.Boleto, accountID *uuid.UUID, paidAt time.Time) (*NotificationResult, []uuid.UUID, error) {
	id := b.ID
	if b.Status == finance.BoletoStatusPaid {
		return &NotificationResult{Outcome: OutcomeAlreadyPaid, RecordType: RecordTypeBoleto, RecordID: &id}, nil, nil
	}
	tx, orderPaid, err := s.engine.settleBoleto(ctx, repos, b, paidAt, n.NetAmount, accountID)
	if err != nil {
		return nil, nil, err
	}
	var paidOrders []uuid.UUID
	if orderPaid {
		paidOrders = append(paidOrders, *b.OrderID)
	}
	return &NotificationResult{
		Outcome:     OutcomeSettled,
		RecordType:  RecordTypeBoleto,
		RecordID:    &id,
		Transaction: toTransactionResponse(tx),
	}, paidOrders, nil
}

func (s *SettlementService) settleReceivableNotification(ctx context.Context, repos TransactionalRepositories, n finance.PaymentNotification, r *finance.Receivable, accountID *uuid.UUID, paidAt time.Time) (*NotificationResult, []uuid.UUID, error) {
	id := r.ID
	if r.IsPaid() {
		return &NotificationResult{Outcome: OutcomeAlreadyPaid, RecordType: RecordTypeReceivable, RecordID: &id}, nil, nil
	}
	if !r.Origin.CountsTowardCredit() {
		return nil, nil, errSettleThroughBoleto
	}
	amount := r.Outstanding()
	payment := finance.Payment{
		Amount:        amount,
		NetAmount:     n.NetAmount,
		Method:        paymentMethodGateway,
		BankAccountID: accountID,
		PaidAt:        paidAt,
	}
	_, orderPaid, err := s.engine.settleReceivable(ctx, repos, r, payment)
	if err != nil {
		return nil, nil, err
	}
	tx, err := s.engine.postIncome(ctx, repos, n.TenantID, *accountID, n.LedgerAmount(amount), paidAt,
		finance.NewReference(finance.ReferenceReceivable, r.ID), "Gateway payment")
	if err != nil {
		return nil, nil, err
	}
	var paidOrders []uuid.UUID
	if orderPaid {
		paidOrders = append(paidOrders, *r.Origin.OrderID())
	}
	return &NotificationResult{
		Outcome:     OutcomeSettled,
		RecordType:  RecordTypeReceivable,
		RecordID:    &id,
		Transaction: toTransactionResponse(tx),
	}, paidOrders, nil
}

// settleOrderNotification pays the rest of an order charged directly through
// the gateway and gives back the credit it was consuming on its own. Invoiced
// orders are paid through their receivables or boleto only.
func (s *SettlementService) settleOrderNotification(ctx context.Context, repos TransactionalRepositories, n finance.PaymentNotification, o *trade.Order, accountID *uuid.UUID, paidAt time.Time) (*NotificationResult, []uuid.UUID, error) {
	id := o.ID
	if o.IsFullyPaid() {
		return &NotificationResult{Outcome: OutcomeAlreadyPaid, RecordType: RecordTypeOrder, RecordID: &id}, nil, nil
	}
	uninvoiced, err := repos.Orders().IsUninvoiced(ctx, n.TenantID, o.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("check order invoices: %w", err)
	}
	if !uninvoiced {
		return nil, nil, errSettleThroughInvoices
	}
	remaining := shared.RoundMoney(o.Total.Sub(o.PaidAmount))
	paid, err := o.ApplyPayment(remaining)
	if err != nil {
		return nil, nil, err
	}
	if err := repos.Orders().Save(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("save order: %w", err)
	}
	if err := s.engine.restore(ctx, repos, n.TenantID, o.CustomerID, o.Total); err != nil {
		return nil, nil, err
	}
	tx, err := s.engine.postIncome(ctx, repos, n.TenantID, *accountID, n.LedgerAmount(remaining), paidAt,
		finance.NewReference(finance.ReferenceOrder, o.ID), "Gateway payment")
	if err != nil {
		return nil, nil, err
	}
	var paidOrders []uuid.UUID
	if paid {
		paidOrders = append(paidOrders, o.ID)
	}
	return &NotificationResult{
		Outcome:     OutcomeSettled,
		RecordType:  RecordTypeOrder,
		RecordID:    &id,
		Transaction: toTransactionResponse(tx),
	}, paidOrders, nil
}

// recoverOrphanPayment books a payment no record claims as a PAID recovery
// order of the customer named in the notification
func (s *SettlementService) recoverOrphanPayment(ctx context.Context, repos TransactionalRepositories, n finance.PaymentNotification, accountID *uuid.UUID, paidAt time.Time) (*NotificationResult, error) {
	if n.CustomerID == nil || *n.CustomerID == uuid.Nil {
		return nil, finance.ErrUnmatchedPayment
	}
	gross := n.Amount
	if !gross.IsPositive() {
		gross = n.NetAmount
	}
	if _, err := repos.Customers().FindByID(ctx, n.TenantID, *n.CustomerID); err != nil {
		return nil, err
	}
	order, err := trade.NewRecoveryOrder(n.TenantID, *n.CustomerID, gross, n.ExternalID)
	if err != nil {
		return nil, err
	}
	if err := repos.Orders().Create(ctx, order); err != nil {
		return nil, err
	}
	tx, err := s.engine.postIncome(ctx, repos, n.TenantID, *accountID, n.LedgerAmount(order.Total), paidAt,
		finance.NewReference(finance.ReferenceOrder, order.ID), "Recovered gateway payment")
	if err != nil {
		return nil, err
	}
	if err := repos.RecordEvents(ctx, finance.NewPaymentRecoveredEvent(n.TenantID, order.ID, order.CustomerID, n.ExternalID, order.Total)); err != nil {
		return nil, err
	}

	s.logger.Warn("Orphan payment booked as recovery order",
		zap.String("external_id", n.ExternalID),
		zap.String("order_id", order.ID.String()),
		zap.String("amount", order.Total.StringFixed(2)))
	id := order.ID
	return &NotificationResult{
		Outcome:     OutcomeRecovered,
		RecordType:  RecordTypeOrder,
		RecordID:    &id,
		Transaction: toTransactionResponse(tx),
	}, nil
}

func (s *SettlementService) markNotificationOverdue(ctx context.Context, n finance.PaymentNotification) (*NotificationResult, error) {
	result := &NotificationResult{Outcome: OutcomeAcknowledged}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		boleto, err := repos.Boletos().FindByExternalIDForUpdate(ctx, n.TenantID, n.ExternalID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id := boleto.ID
		result.RecordType = RecordTypeBoleto
		result.RecordID = &id
		if !boleto.MarkOverdue() {
			return nil
		}
		if err := repos.Boletos().Save(ctx, boleto); err != nil {
			return err
		}
		result.Outcome = OutcomeMarkedLate
		return recordEvents(ctx, repos, boleto)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
