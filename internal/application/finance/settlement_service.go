package finance

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reasons reported for batch members that were not settled
const (
	SkipNotFound        = "NOT_FOUND"
	SkipAlreadyPaid     = "ALREADY_PAID"
	SkipSettledByBoleto = "SETTLED_THROUGH_BOLETO"
)

// SettlementService moves money into accounts while keeping receivables,
// orders and credit consistent. Every operation is one unit of work that
// locks the account first.
type SettlementService struct {
	scope            TransactionScope
	idempotency      shared.IdempotencyStore
	idempotencyTTL   time.Duration
	tracker          finance.FiscalInvoiceTracker
	defaultAccountID *uuid.UUID
	strictBatch      bool
	engine           *engine
	metrics          *telemetry.SettlementMetrics
	logger           *zap.Logger
}

// SettlementServiceConfig holds the dependencies of SettlementService.
// Idempotency, Tracker and DefaultAccountID are optional.
type SettlementServiceConfig struct {
	Scope            TransactionScope
	Idempotency      shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	Tracker          finance.FiscalInvoiceTracker
	DefaultAccountID *uuid.UUID
	StrictBatch      bool
	Logger           *zap.Logger
	Metrics          *telemetry.SettlementMetrics
	Now              func() time.Time
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(cfg SettlementServiceConfig) *SettlementService {
	logger := orNop(cfg.Logger)
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyTTL
	}
	return &SettlementService{
		scope:            cfg.Scope,
		idempotency:      cfg.Idempotency,
		idempotencyTTL:   ttl,
		tracker:          cfg.Tracker,
		defaultAccountID: cfg.DefaultAccountID,
		strictBatch:      cfg.StrictBatch,
		engine:           newEngine(logger, cfg.Metrics, cfg.Now),
		metrics:          cfg.Metrics,
		logger:           logger,
	}
}

func (s *SettlementService) accountOrDefault(accountID *uuid.UUID) *uuid.UUID {
	if accountID != nil && *accountID != uuid.Nil {
		return accountID
	}
	return s.defaultAccountID
}

// SettleSingle applies one payment increment to a receivable and posts it as
// income. A zero amount settles whatever is outstanding. Credit is restored
// only by the increment that completes the receivable.
func (s *SettlementService) SettleSingle(ctx context.Context, tenantID uuid.UUID, req SettleSingleRequest) (*SettleSingleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle_single")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrReceivableID, req.ReceivableID.String(),
	)

	if req.Amount.IsNegative() {
		return nil, finance.ErrInvalidAmount
	}
	accountID := s.accountOrDefault(req.BankAccountID)
	paidAt := timeOrNow(req.PaidAt, s.engine.now)

	var (
		receivable *finance.Receivable
		tx         *finance.Transaction
		amount     decimal.Decimal
		completed  bool
		orderPaid  bool
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := s.engine.lockAccount(ctx, repos, tenantID, accountID); err != nil {
			return err
		}
		var err error
		receivable, err = repos.Receivables().FindByIDForUpdate(ctx, tenantID, req.ReceivableID)
		if err != nil {
			return err
		}
		if receivable.IsPaid() {
			return finance.ErrAlreadyPaid
		}
		if !receivable.Origin.CountsTowardCredit() {
			return errSettleThroughBoleto
		}

		amount = shared.RoundMoney(req.Amount)
		if amount.IsZero() {
			amount = receivable.Outstanding()
		}
		payment := finance.Payment{
			Amount:        amount,
			Method:        req.Method,
			BankAccountID: accountID,
			PaidBy:        req.PaidBy,
			PaidAt:        paidAt,
		}
		completed, orderPaid, err = s.engine.settleReceivable(ctx, repos, receivable, payment)
		if err != nil {
			return err
		}
		tx, err = s.engine.postIncome(ctx, repos, tenantID, *accountID, amount, paidAt,
			finance.NewReference(finance.ReferenceReceivable, receivable.ID), "Receivable settlement")
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, tenantID, telemetry.SettlementKindSingle, amount)
	if orderPaid {
		notifyInvoicesPaid(ctx, s.tracker, s.logger, tenantID, []uuid.UUID{*receivable.Origin.OrderID()})
	}
	restored := decimal.Zero
	if completed {
		restored = receivable.Amount
	}
	return &SettleSingleResult{
		Receivable:     toReceivableResponse(receivable),
		Transaction:    toTransactionResponse(tx),
		CreditRestored: restored,
	}, nil
}

// SettleBatch settles several receivables with one deposit: each eligible
// receivable is paid in full, credit is restored once per customer and a
// single INCOME entry carries the total. In strict mode any ineligible id
// fails the whole batch before anything changes.
func (s *SettlementService) SettleBatch(ctx context.Context, tenantID uuid.UUID, req SettleBatchRequest) (*SettleBatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle_batch")
	defer span.End()

	ids := dedupeIDs(req.ReceivableIDs)
	if len(ids) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one receivable is required")
	}
	strict := s.strictBatch
	if req.Strict != nil {
		strict = *req.Strict
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCount, len(ids),
		"strict", strict,
	)

	accountID := s.accountOrDefault(req.BankAccountID)
	paidAt := timeOrNow(req.PaidAt, s.engine.now)
	batchID := uuid.New()

	var (
		result     *SettleBatchResult
		paidOrders []uuid.UUID
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		result = &SettleBatchResult{BatchID: batchID, Total: decimal.Zero}
		paidOrders = nil

		if _, err := s.engine.lockAccount(ctx, repos, tenantID, accountID); err != nil {
			return err
		}
		found, err := repos.Receivables().FindByIDsForUpdate(ctx, tenantID, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*finance.Receivable, len(found))
		for _, r := range found {
			byID[r.ID] = r
		}
		for _, id := range ids {
			r, ok := byID[id]
			reason := ""
			switch {
			case !ok:
				reason = SkipNotFound
			case r.IsPaid():
				reason = SkipAlreadyPaid
			case !r.Origin.CountsTowardCredit():
				reason = SkipSettledByBoleto
			}
			if reason != "" {
				result.Skipped = append(result.Skipped, SkippedReceivable{ReceivableID: id, Reason: reason})
			}
		}

		// found is ordered by id, which keeps order locks in a stable order
		var eligible []*finance.Receivable
		for _, r := range found {
			if !r.IsPaid() && r.Origin.CountsTowardCredit() {
				eligible = append(eligible, r)
			}
		}
		if strict && len(result.Skipped) > 0 {
			return shared.NewDomainErrorf("BATCH_CONFLICT", "%d of %d receivables cannot be settled", len(result.Skipped), len(ids))
		}
		if len(eligible) == 0 {
			return finance.ErrNoEligibleReceivables
		}

		subtotals := make(map[uuid.UUID]decimal.Decimal)
		for _, r := range eligible {
			amount := r.Outstanding()
			payment := finance.Payment{
				Amount:        amount,
				Method:        req.Method,
				BankAccountID: accountID,
				PaidBy:        req.PaidBy,
				PaidAt:        paidAt,
				BatchID:       &batchID,
			}
			if _, err := r.ApplyPayment(payment); err != nil {
				return err
			}
			if err := repos.Receivables().Save(ctx, r); err != nil {
				return fmt.Errorf("save receivable %s: %w", r.ID, err)
			}
			paid, err := s.engine.applyToOrder(ctx, repos, tenantID, r.Origin.OrderID(), amount)
			if err != nil {
				return err
			}
			if paid {
				paidOrders = append(paidOrders, *r.Origin.OrderID())
			}
			subtotals[r.CustomerID] = subtotals[r.CustomerID].Add(r.Amount)
			result.Total = result.Total.Add(amount)
			result.Settled = append(result.Settled, r.ID)
			if err := recordEvents(ctx, repos, r); err != nil {
				return err
			}
		}

		for _, customerID := range sortedKeys(subtotals) {
			if err := s.engine.restore(ctx, repos, tenantID, customerID, subtotals[customerID]); err != nil {
				return err
			}
		}

		tx, err := s.engine.postIncome(ctx, repos, tenantID, *accountID, result.Total, paidAt,
			finance.NewReference(finance.ReferenceBatchSettlement, batchID),
			fmt.Sprintf("Batch settlement of %d receivables", len(result.Settled)))
		if err != nil {
			return err
		}
		result.Transaction = toTransactionResponse(tx)
		return repos.RecordEvents(ctx, finance.NewBatchSettledEvent(tenantID, batchID, tx, result.Settled))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, tenantID, telemetry.SettlementKindBatch, result.Total)
	notifyInvoicesPaid(ctx, s.tracker, s.logger, tenantID, paidOrders)
	s.logger.Info("Batch settled",
		zap.String("batch_id", batchID.String()),
		zap.Int("settled", len(result.Settled)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("total", result.Total.StringFixed(2)))
	return result, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sortedKeys(m map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	return keys
}
