package finance

import (
	"context"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatementReconciliationService matches imported bank statement lines with
// ledger entries and stamps the matched entries
type StatementReconciliationService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewStatementReconciliationService creates a new StatementReconciliationService
func NewStatementReconciliationService(scope TransactionScope, logger *zap.Logger) *StatementReconciliationService {
	return &StatementReconciliationService{scope: scope, logger: orNop(logger)}
}

// Reconcile matches the lines against the account's entries dated within the
// match window of any line. Matched entries get the line's external id as
// their statement reference and are skipped by later imports.
func (s *StatementReconciliationService) Reconcile(ctx context.Context, tenantID, accountID uuid.UUID, lines []StatementLineRequest) (*ReconciliationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statement", "reconcile")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAccountID, accountID.String(),
		telemetry.SpanAttrCount, len(lines),
	)

	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Statement has no lines")
	}
	statement := make([]finance.StatementLine, 0, len(lines))
	var first, last time.Time
	for i, l := range lines {
		externalID := strings.TrimSpace(l.ExternalID)
		if externalID == "" {
			return nil, shared.NewDomainErrorf("INVALID_INPUT", "Statement line %d has no external id", i+1)
		}
		if l.Date.IsZero() {
			return nil, shared.NewDomainErrorf("INVALID_INPUT", "Statement line %s has no date", externalID)
		}
		lineType := l.Type
		if lineType == "" {
			lineType = finance.TransactionTypeIncome
			if l.Amount.IsNegative() {
				lineType = finance.TransactionTypeExpense
			}
		}
		if !lineType.IsValid() {
			return nil, shared.NewDomainErrorf("INVALID_INPUT", "Unknown transaction type %q", lineType)
		}
		date := l.Date.UTC()
		if first.IsZero() || date.Before(first) {
			first = date
		}
		if last.IsZero() || date.After(last) {
			last = date
		}
		statement = append(statement, finance.StatementLine{
			ExternalID: externalID,
			Amount:     l.Amount,
			Date:       date,
			Type:       lineType,
		})
	}

	window := time.Duration(finance.StatementMatchWindowDays) * 24 * time.Hour
	from := shared.StartOfLocalDay(first.Add(-window))
	to := shared.NextLocalDayStart(last.Add(window))

	var match finance.StatementMatchResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Accounts().FindByID(ctx, tenantID, accountID); err != nil {
			return err
		}
		txns, err := repos.Transactions().FindByDateRange(ctx, tenantID, accountID, from, to)
		if err != nil {
			return err
		}
		match = finance.MatchStatement(statement, txns)
		for _, m := range match.Matched {
			if err := repos.Transactions().SetStatementRef(ctx, tenantID, m.Transaction.ID, m.Line.ExternalID); err != nil {
				return err
			}
			ref := m.Line.ExternalID
			m.Transaction.StatementRef = &ref
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ReconciliationResult{
		AccountID:           accountID,
		Matched:             make([]StatementMatchResponse, 0, len(match.Matched)),
		UnmatchedLines:      make([]StatementLineResponse, 0, len(match.UnmatchedLines)),
		UnmatchedLedgerTxns: toTransactionResponses(match.UnmatchedLedgerTxns),
	}
	for _, m := range match.Matched {
		result.Matched = append(result.Matched, StatementMatchResponse{
			ExternalID:    m.Line.ExternalID,
			TransactionID: m.Transaction.ID,
		})
	}
	for _, l := range match.UnmatchedLines {
		result.UnmatchedLines = append(result.UnmatchedLines, StatementLineResponse{
			ExternalID: l.ExternalID,
			Amount:     l.Amount,
			Date:       l.Date,
			Type:       string(l.Type),
		})
	}

	s.logger.Info("Bank statement reconciled",
		zap.String("account_id", accountID.String()),
		zap.Int("matched", len(result.Matched)),
		zap.Int("unmatched_lines", len(result.UnmatchedLines)),
		zap.Int("unmatched_transactions", len(result.UnmatchedLedgerTxns)))
	return result, nil
}
