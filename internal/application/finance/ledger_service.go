package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService owns bank and cash accounts and their append-only ledgers
type LedgerService struct {
	scope  TransactionScope
	engine *engine
	logger *zap.Logger
}

// LedgerServiceConfig holds the dependencies of LedgerService
type LedgerServiceConfig struct {
	Scope   TransactionScope
	Logger  *zap.Logger
	Metrics *telemetry.SettlementMetrics
	Now     func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(cfg LedgerServiceConfig) *LedgerService {
	logger := orNop(cfg.Logger)
	return &LedgerService{
		scope:  cfg.Scope,
		engine: newEngine(logger, cfg.Metrics, cfg.Now),
		logger: logger,
	}
}

// CreateAccount opens an account with its opening balance as checkpoint 0
func (s *LedgerService) CreateAccount(ctx context.Context, tenantID uuid.UUID, req CreateAccountRequest) (*AccountResponse, error) {
	account, err := finance.NewAccount(tenantID, req.Name, req.Kind, req.OpeningBalance)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return toAccountResponse(account), nil
}

// GetAccount returns one account
func (s *LedgerService) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	var account *finance.Account
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		account, err = repos.Accounts().FindByID(ctx, tenantID, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toAccountResponse(account), nil
}

// ListAccounts lists a tenant's accounts
func (s *LedgerService) ListAccounts(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]AccountResponse, int64, error) {
	var (
		accounts []*finance.Account
		total    int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		accounts, total, err = repos.Accounts().FindAll(ctx, tenantID, pageFilter(page, pageSize))
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		out[i] = *toAccountResponse(a)
	}
	return out, total, nil
}

// AppendTransaction posts one entry and replays the account tail
func (s *LedgerService) AppendTransaction(ctx context.Context, tenantID uuid.UUID, req AppendTransactionRequest) (*TransactionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "append_transaction")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAccountID, req.AccountID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	ref := finance.ManualReference()
	if req.ReferenceType != "" && req.ReferenceType != finance.ReferenceManual {
		if req.ReferenceID == nil {
			return nil, shared.NewDomainError("INVALID_INPUT", "Reference id is required for non-manual references")
		}
		ref = finance.NewReference(req.ReferenceType, *req.ReferenceID)
	}
	date := req.Date
	if date.IsZero() {
		date = s.engine.now()
	}
	tx, err := finance.NewTransaction(tenantID, req.AccountID, req.Type, req.Amount, date, ref, req.Description)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return s.engine.appendTransaction(ctx, repos, tx)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return toTransactionResponse(tx), nil
}

// RecomputeBalances replays the whole ledger of an account under its row
// lock, rewriting every drifted snapshot. Drift is repaired, never reported
// as a failure.
func (s *LedgerService) RecomputeBalances(ctx context.Context, tenantID, accountID uuid.UUID) (*RecomputeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "recompute_balances")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrAccountID, accountID.String())

	var out *RecomputeResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		account, err := repos.Accounts().FindByIDForUpdate(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		stored := account.Balance
		result, err := s.engine.replay(ctx, repos, account, 0)
		if err != nil {
			return err
		}
		out = &RecomputeResult{
			AccountID:        accountID,
			OpeningBalance:   result.Opening,
			Balance:          result.Final,
			Replayed:         result.Replayed,
			Corrections:      len(result.Corrections),
			BalanceCorrected: finance.Drifted(stored, result.Final),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if out.Corrections > 0 {
		s.logger.Warn("Recompute repaired drifted snapshots",
			zap.String("account_id", accountID.String()),
			zap.Int("corrections", out.Corrections))
	}
	return out, nil
}

// RecomputeAll replays every account of every tenant. Accounts that fail are
// logged and skipped so one bad ledger does not block the rest.
func (s *LedgerService) RecomputeAll(ctx context.Context) ([]RecomputeResult, error) {
	var keys []finance.AccountKey
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		keys, err = repos.Accounts().FindAllIDs(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]RecomputeResult, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := s.RecomputeBalances(ctx, key.TenantID, key.AccountID)
		if err != nil {
			s.logger.Error("Recompute failed",
				zap.String("tenant_id", key.TenantID.String()),
				zap.String("account_id", key.AccountID.String()),
				zap.Error(err))
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// IncrementAtomically adds amount to the stored balance in one statement
func (s *LedgerService) IncrementAtomically(ctx context.Context, tenantID, accountID uuid.UUID, amount decimal.Decimal) (*AccountResponse, error) {
	return s.adjust(ctx, tenantID, accountID, amount, func(repos TransactionalRepositories, amount decimal.Decimal) error {
		return repos.Accounts().IncrementBalance(ctx, tenantID, accountID, amount)
	})
}

// DecrementAtomically subtracts amount from the stored balance in one
// statement, so concurrent decrements never lose an update
func (s *LedgerService) DecrementAtomically(ctx context.Context, tenantID, accountID uuid.UUID, amount decimal.Decimal) (*AccountResponse, error) {
	return s.adjust(ctx, tenantID, accountID, amount, func(repos TransactionalRepositories, amount decimal.Decimal) error {
		return repos.Accounts().DecrementBalance(ctx, tenantID, accountID, amount)
	})
}

func (s *LedgerService) adjust(ctx context.Context, tenantID, accountID uuid.UUID, amount decimal.Decimal, apply func(TransactionalRepositories, decimal.Decimal) error) (*AccountResponse, error) {
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, finance.ErrInvalidAmount
	}
	var account *finance.Account
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := apply(repos, amount); err != nil {
			return err
		}
		var err error
		account, err = repos.Accounts().FindByID(ctx, tenantID, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toAccountResponse(account), nil
}

// ReverseTransaction deletes an entry and applies its inverse to the stored
// balance, then replays the full ledger. Entries that settled a receivable,
// order, boleto or batch cannot be reversed while the settled record is PAID.
func (s *LedgerService) ReverseTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) (*ReversalResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reverse_transaction")
	defer span.End()

	var out *ReversalResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		tx, err := repos.Transactions().FindByID(ctx, tenantID, transactionID)
		if err != nil {
			return err
		}
		account, err := repos.Accounts().FindByIDForUpdate(ctx, tenantID, tx.AccountID)
		if err != nil {
			return err
		}
		if err := s.guardSettledReference(ctx, repos, tenantID, tx.Reference); err != nil {
			return err
		}

		delta := tx.ReversalDelta()
		if err := repos.Transactions().Delete(ctx, tenantID, tx.ID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if err := repos.Accounts().IncrementBalance(ctx, tenantID, account.ID, delta); err != nil {
			return fmt.Errorf("apply reversal: %w", err)
		}
		account.Balance = shared.RoundMoney(account.Balance.Add(delta))
		result, err := s.engine.replay(ctx, repos, account, 0)
		if err != nil {
			return err
		}
		out = &ReversalResult{
			TransactionID: tx.ID,
			AccountID:     account.ID,
			Delta:         delta,
			Balance:       result.Final,
		}
		return repos.RecordEvents(ctx, finance.NewTransactionReversedEvent(tx, result.Final))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Transaction reversed",
		zap.String("transaction_id", transactionID.String()),
		zap.String("delta", out.Delta.String()))
	return out, nil
}

func (s *LedgerService) guardSettledReference(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, ref finance.Reference) error {
	if !ref.GuardsSettledRecord() {
		return nil
	}
	switch ref.Type {
	case finance.ReferenceReceivable:
		r, err := repos.Receivables().FindByID(ctx, tenantID, *ref.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.IsPaid() {
			return finance.ErrReversalForbidden
		}
	case finance.ReferenceOrder:
		o, err := repos.Orders().FindByID(ctx, tenantID, *ref.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if o.IsFullyPaid() {
			return finance.ErrReversalForbidden
		}
	case finance.ReferenceBoleto:
		b, err := repos.Boletos().FindByID(ctx, tenantID, *ref.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if b.Status == finance.BoletoStatusPaid {
			return finance.ErrReversalForbidden
		}
	case finance.ReferenceBatchSettlement:
		_, paid, err := repos.Receivables().FindAll(ctx, tenantID, finance.ReceivableFilter{
			Filter:            shared.Filter{Page: 1, PageSize: 1},
			Statuses:          []finance.ReceivableStatus{finance.ReceivableStatusPaid},
			SettlementBatchID: ref.ID,
		})
		if err != nil {
			return err
		}
		if paid > 0 {
			return finance.ErrReversalForbidden
		}
	}
	return nil
}

// ListTransactions lists an account's ledger, newest first
func (s *LedgerService) ListTransactions(ctx context.Context, tenantID, accountID uuid.UUID, filter TransactionListFilter) ([]TransactionResponse, int64, error) {
	query := finance.TransactionFilter{
		Filter: pageFilter(filter.Page, filter.PageSize),
		From:   filter.From,
		To:     filter.To,
	}
	if filter.Type != "" {
		txType := finance.TransactionType(filter.Type)
		if !txType.IsValid() {
			return nil, 0, shared.NewDomainErrorf("INVALID_INPUT", "Unknown transaction type %q", filter.Type)
		}
		query.Type = &txType
	}

	var (
		txns  []*finance.Transaction
		total int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Accounts().FindByID(ctx, tenantID, accountID); err != nil {
			return err
		}
		var err error
		txns, total, err = repos.Transactions().FindByAccount(ctx, tenantID, accountID, query)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return toTransactionResponses(txns), total, nil
}
