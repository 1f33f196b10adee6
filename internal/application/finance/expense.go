package finance

import (
	"context"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateExpense records a PENDING bill
func (s *SettlementService) CreateExpense(ctx context.Context, tenantID uuid.UUID, req CreateExpenseRequest) (*ExpenseResponse, error) {
	expense, err := finance.NewExpense(tenantID, req.Description, req.Amount, req.DueDate)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Expenses().Create(ctx, expense)
	})
	if err != nil {
		return nil, err
	}
	return toExpenseResponse(expense), nil
}

// GetExpense returns one expense
func (s *SettlementService) GetExpense(ctx context.Context, tenantID, id uuid.UUID) (*ExpenseResponse, error) {
	var expense *finance.Expense
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		expense, err = repos.Expenses().FindByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toExpenseResponse(expense), nil
}

// ListExpenses lists expenses, earliest due first
func (s *SettlementService) ListExpenses(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]ExpenseResponse, int64, error) {
	var (
		list  []*finance.Expense
		total int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		list, total, err = repos.Expenses().FindAll(ctx, tenantID, pageFilter(page, pageSize))
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]ExpenseResponse, 0, len(list))
	for _, e := range list {
		out = append(out, *toExpenseResponse(e))
	}
	return out, total, nil
}

// PayExpense posts an EXPENSE entry on the paying account and marks the
// expense PAID. The default receiving account is never used for payouts.
func (s *SettlementService) PayExpense(ctx context.Context, tenantID, id uuid.UUID, req PayExpenseRequest) (*ExpenseResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "pay_expense")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	paidAt := timeOrNow(req.PaidAt, s.engine.now)
	var expense *finance.Expense
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := s.engine.lockAccount(ctx, repos, tenantID, req.AccountID); err != nil {
			return err
		}
		var err error
		expense, err = repos.Expenses().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if expense.Status == finance.ExpenseStatusPaid {
			return finance.ErrAlreadyPaid
		}
		tx, err := s.engine.post(ctx, repos, tenantID, *req.AccountID, finance.TransactionTypeExpense, expense.Amount, paidAt,
			finance.NewReference(finance.ReferenceExpense, expense.ID), expense.Description)
		if err != nil {
			return err
		}
		if err := expense.MarkPaid(*req.AccountID, tx.ID, paidAt); err != nil {
			return err
		}
		return repos.Expenses().Save(ctx, expense)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, tenantID, telemetry.SettlementKindExpense, expense.Amount)
	s.logger.Info("Expense paid",
		zap.String("expense_id", expense.ID.String()),
		zap.String("account_id", req.AccountID.String()),
		zap.String("amount", expense.Amount.StringFixed(2)))
	return toExpenseResponse(expense), nil
}
