package finance

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceivableService manages money customers owe
type ReceivableService struct {
	scope   TransactionScope
	engine  *engine
	metrics *telemetry.SettlementMetrics
	logger  *zap.Logger
}

// ReceivableServiceConfig holds the dependencies of ReceivableService
type ReceivableServiceConfig struct {
	Scope   TransactionScope
	Logger  *zap.Logger
	Metrics *telemetry.SettlementMetrics
	Now     func() time.Time
}

// NewReceivableService creates a new ReceivableService
func NewReceivableService(cfg ReceivableServiceConfig) *ReceivableService {
	logger := orNop(cfg.Logger)
	return &ReceivableService{
		scope:   cfg.Scope,
		engine:  newEngine(logger, cfg.Metrics, cfg.Now),
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Create records a PENDING receivable and consumes the customer's credit,
// except for boleto shadows whose debt is counted through the boleto
func (s *ReceivableService) Create(ctx context.Context, tenantID uuid.UUID, req CreateReceivableRequest) (*ReceivableResponse, error) {
	origin := finance.Standalone()
	switch {
	case req.BoletoID != nil && req.OrderID != nil:
		origin = finance.FromBoleto(*req.BoletoID, *req.OrderID)
	case req.BoletoID != nil:
		return nil, shared.NewDomainError("INVALID_INPUT", "A boleto-backed receivable needs its order")
	case req.OrderID != nil:
		origin = finance.FromOrder(*req.OrderID)
	}
	receivable, err := finance.NewReceivable(tenantID, req.CustomerID, req.Amount, req.DueDate, origin)
	if err != nil {
		return nil, err
	}
	if req.ExternalID != "" {
		externalID := req.ExternalID
		receivable.ExternalID = &externalID
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Customers().FindByID(ctx, tenantID, req.CustomerID); err != nil {
			return err
		}
		if origin.CountsTowardCredit() {
			order, uninvoiced, err := s.engine.invoicedOrder(ctx, repos, tenantID, req.CustomerID, origin.OrderID())
			if err != nil {
				return err
			}
			if err := s.engine.consumeFor(ctx, repos, tenantID, req.CustomerID, receivable.Amount, order, uninvoiced); err != nil {
				return err
			}
		}
		if err := repos.Receivables().Create(ctx, receivable); err != nil {
			return err
		}
		return recordEvents(ctx, repos, receivable)
	})
	if err != nil {
		return nil, err
	}
	return toReceivableResponse(receivable), nil
}

// Get returns one receivable
func (s *ReceivableService) Get(ctx context.Context, tenantID, id uuid.UUID) (*ReceivableResponse, error) {
	var receivable *finance.Receivable
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		receivable, err = repos.Receivables().FindByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toReceivableResponse(receivable), nil
}

// List lists receivables, earliest due first
func (s *ReceivableService) List(ctx context.Context, tenantID uuid.UUID, filter ReceivableListFilter) ([]ReceivableResponse, int64, error) {
	query := finance.ReceivableFilter{
		Filter:     pageFilter(filter.Page, filter.PageSize),
		CustomerID: filter.CustomerID,
		DueBefore:  filter.DueBefore,
	}
	if filter.Status != "" {
		status := finance.ReceivableStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainErrorf("INVALID_INPUT", "Unknown receivable status %q", filter.Status)
		}
		query.Statuses = []finance.ReceivableStatus{status}
	}

	var (
		list  []*finance.Receivable
		total int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		list, total, err = repos.Receivables().FindAll(ctx, tenantID, query)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return toReceivableResponses(list), total, nil
}

// ListOutstanding returns a customer's PENDING, OVERDUE and PARTIAL receivables
func (s *ReceivableService) ListOutstanding(ctx context.Context, tenantID, customerID uuid.UUID) ([]ReceivableResponse, error) {
	var list []*finance.Receivable
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		list, err = repos.Receivables().FindOutstandingByCustomer(ctx, tenantID, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toReceivableResponses(list), nil
}

// MarkPaid settles whatever is outstanding without posting to a ledger.
// Use SettlementService to move money into an account.
func (s *ReceivableService) MarkPaid(ctx context.Context, tenantID, id uuid.UUID, req MarkReceivablePaidRequest) (*ReceivableResponse, error) {
	var receivable *finance.Receivable
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		receivable, err = repos.Receivables().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if receivable.IsPaid() {
			return finance.ErrAlreadyPaid
		}
		if !receivable.Origin.CountsTowardCredit() {
			return errSettleThroughBoleto
		}
		payment := finance.Payment{
			Amount:        receivable.Outstanding(),
			Method:        req.Method,
			BankAccountID: req.BankAccountID,
			PaidBy:        req.PaidBy,
			PaidAt:        timeOrNow(req.PaidAt, s.engine.now),
		}
		_, _, err = s.engine.settleReceivable(ctx, repos, receivable, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toReceivableResponse(receivable), nil
}

// SweepOverdue moves PENDING receivables due before today's local midnight
// to OVERDUE. Running it twice on the same day changes nothing.
func (s *ReceivableService) SweepOverdue(ctx context.Context) (int64, error) {
	cutoff := shared.StartOfLocalDay(s.engine.now())
	var marked int64
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		marked, err = repos.Receivables().MarkOverdueBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.RecordOverdueSweep(ctx, "receivable", marked)
	s.logger.Info("Receivable overdue sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("marked", marked))
	return marked, nil
}
