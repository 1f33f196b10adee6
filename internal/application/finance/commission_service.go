package finance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommissionClosureService groups sellers' commissions into monthly closures
// and pays them out
type CommissionClosureService struct {
	scope   TransactionScope
	engine  *engine
	metrics *telemetry.SettlementMetrics
	logger  *zap.Logger
}

// CommissionClosureServiceConfig holds the dependencies of CommissionClosureService
type CommissionClosureServiceConfig struct {
	Scope   TransactionScope
	Logger  *zap.Logger
	Metrics *telemetry.SettlementMetrics
	Now     func() time.Time
}

// NewCommissionClosureService creates a new CommissionClosureService
func NewCommissionClosureService(cfg CommissionClosureServiceConfig) *CommissionClosureService {
	logger := orNop(cfg.Logger)
	return &CommissionClosureService{
		scope:   cfg.Scope,
		engine:  newEngine(logger, cfg.Metrics, cfg.Now),
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// RecordCommission stores a seller's commission for a later closure
func (s *CommissionClosureService) RecordCommission(ctx context.Context, tenantID uuid.UUID, req RecordCommissionRequest) (*CommissionResponse, error) {
	if req.SellerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Seller is required")
	}
	commission, err := finance.NewCommission(tenantID, req.SellerID, req.OrderID, req.Amount, req.EarnedAt)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Commissions().Create(ctx, commission)
	})
	if err != nil {
		return nil, err
	}
	return toCommissionResponse(commission), nil
}

// CloseCommissions creates one closure per seller for the unlinked
// commissions earned in the local reference month. Sellers are closed in
// separate units of work; domain failures of one seller are reported beside
// the closures of the others.
func (s *CommissionClosureService) CloseCommissions(ctx context.Context, tenantID uuid.UUID, referenceMonth string, sellerID *uuid.UUID) (*CloseCommissionsResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commission", "close")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		"reference_month", referenceMonth,
	)

	if err := finance.ValidateReferenceMonth(referenceMonth); err != nil {
		return nil, err
	}
	start, next, err := shared.LocalMonthWindow(referenceMonth)
	if err != nil {
		return nil, err
	}

	var candidates []*finance.Commission
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		candidates, err = repos.Commissions().FindUnlinkedInWindow(ctx, tenantID, sellerID, start, next)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &CloseCommissionsResult{ReferenceMonth: referenceMonth}
	sellers := sellersOf(candidates)
	if len(sellers) == 0 {
		if sellerID == nil {
			return nil, finance.ErrNoCommissionsInPeriod
		}
		sellers = []uuid.UUID{*sellerID}
	}

	for _, seller := range sellers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		closure, err := s.closeSeller(ctx, tenantID, seller, referenceMonth, start, next)
		var domainErr *shared.DomainError
		switch {
		case errors.As(err, &domainErr):
			s.logger.Warn("Commission closure skipped",
				zap.String("seller_id", seller.String()),
				zap.String("reference_month", referenceMonth),
				zap.String("code", domainErr.Code))
			result.Failures = append(result.Failures, SellerFailure{
				SellerID: seller,
				Code:     domainErr.Code,
				Message:  domainErr.Message,
			})
		case err != nil:
			telemetry.RecordError(span, err)
			return result, err
		default:
			result.Closures = append(result.Closures, *toClosureResponse(closure))
		}
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrCount, len(result.Closures))
	s.logger.Info("Commission closures created",
		zap.String("reference_month", referenceMonth),
		zap.Int("closures", len(result.Closures)),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}

func (s *CommissionClosureService) closeSeller(ctx context.Context, tenantID, sellerID uuid.UUID, referenceMonth string, start, next time.Time) (*finance.CommissionClosure, error) {
	var closure *finance.CommissionClosure
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Closures().ExistsActive(ctx, tenantID, sellerID, referenceMonth)
		if err != nil {
			return err
		}
		if exists {
			return finance.ErrClosureAlreadyExists
		}
		commissions, err := repos.Commissions().FindUnlinkedInWindow(ctx, tenantID, &sellerID, start, next)
		if err != nil {
			return err
		}
		closure, err = finance.NewCommissionClosure(tenantID, sellerID, referenceMonth, commissions)
		if err != nil {
			return err
		}
		if err := repos.Closures().Create(ctx, closure); err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(commissions))
		for i, c := range commissions {
			ids[i] = c.ID
		}
		linked, err := repos.Commissions().LinkToClosure(ctx, tenantID, ids, closure.ID)
		if err != nil {
			return err
		}
		if linked != int64(len(ids)) {
			return shared.ErrConcurrencyConflict
		}
		return recordEvents(ctx, repos, closure)
	})
	if err != nil {
		return nil, err
	}
	return closure, nil
}

func sellersOf(commissions []*finance.Commission) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var sellers []uuid.UUID
	for _, c := range commissions {
		if !seen[c.SellerID] {
			seen[c.SellerID] = true
			sellers = append(sellers, c.SellerID)
		}
	}
	sort.Slice(sellers, func(i, j int) bool {
		return bytes.Compare(sellers[i][:], sellers[j][:]) < 0
	})
	return sellers
}

// GetClosure returns one closure
func (s *CommissionClosureService) GetClosure(ctx context.Context, tenantID, id uuid.UUID) (*ClosureResponse, error) {
	var closure *finance.CommissionClosure
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		closure, err = repos.Closures().FindByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toClosureResponse(closure), nil
}

// ListClosures lists closures, newest month first
func (s *CommissionClosureService) ListClosures(ctx context.Context, tenantID uuid.UUID, filter ClosureListFilter) ([]ClosureResponse, int64, error) {
	query := finance.ClosureFilter{
		Filter:         pageFilter(filter.Page, filter.PageSize),
		SellerID:       filter.SellerID,
		ReferenceMonth: filter.ReferenceMonth,
	}
	if filter.Status != "" {
		status := finance.ClosureStatus(filter.Status)
		switch status {
		case finance.ClosureStatusPending, finance.ClosureStatusPaid, finance.ClosureStatusCancelled:
			query.Status = &status
		default:
			return nil, 0, shared.NewDomainErrorf("INVALID_INPUT", "Unknown closure status %q", filter.Status)
		}
	}

	var (
		list  []*finance.CommissionClosure
		total int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		list, total, err = repos.Closures().FindAll(ctx, tenantID, query)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]ClosureResponse, 0, len(list))
	for _, c := range list {
		out = append(out, *toClosureResponse(c))
	}
	return out, total, nil
}

// ListClosureCommissions returns the commissions a closure covers
func (s *CommissionClosureService) ListClosureCommissions(ctx context.Context, tenantID, closureID uuid.UUID) ([]CommissionResponse, error) {
	var list []*finance.Commission
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Closures().FindByID(ctx, tenantID, closureID); err != nil {
			return err
		}
		var err error
		list, err = repos.Commissions().FindByClosure(ctx, tenantID, closureID)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]CommissionResponse, 0, len(list))
	for _, c := range list {
		out = append(out, *toCommissionResponse(c))
	}
	return out, nil
}

// PayClosure moves a PENDING closure and its commissions to PAID. With an
// account the payout is posted as an EXPENSE entry referencing the closure.
func (s *CommissionClosureService) PayClosure(ctx context.Context, tenantID, id uuid.UUID, req PayClosureRequest) (*ClosureResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commission", "pay_closure")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrClosureID, id.String(),
	)

	paidAt := timeOrNow(req.PaidAt, s.engine.now)
	var closure *finance.CommissionClosure
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if req.AccountID != nil {
			if _, err := s.engine.lockAccount(ctx, repos, tenantID, req.AccountID); err != nil {
				return err
			}
		}
		var err error
		closure, err = repos.Closures().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}

		var (
			tx   *finance.Transaction
			txID *uuid.UUID
		)
		if req.AccountID != nil {
			tx, err = finance.NewTransaction(tenantID, *req.AccountID, finance.TransactionTypeExpense, closure.TotalAmount, paidAt,
				finance.NewReference(finance.ReferenceCommissionClosure, closure.ID),
				fmt.Sprintf("Commission closure %s", closure.ReferenceMonth))
			if err != nil {
				return err
			}
			txID = &tx.ID
		}
		if err := closure.Pay(txID, paidAt); err != nil {
			return err
		}
		if tx != nil {
			if err := s.engine.appendTransaction(ctx, repos, tx); err != nil {
				return err
			}
		}
		if err := repos.Commissions().MarkPaidByClosure(ctx, tenantID, closure.ID); err != nil {
			return err
		}
		if err := repos.Closures().Save(ctx, closure); err != nil {
			return err
		}
		return recordEvents(ctx, repos, closure)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, tenantID, telemetry.SettlementKindClosure, closure.TotalAmount)
	return toClosureResponse(closure), nil
}

// CancelClosure voids a PENDING closure and frees its commissions. A PAID
// closure is never cancelled.
func (s *CommissionClosureService) CancelClosure(ctx context.Context, tenantID, id uuid.UUID) (*ClosureResponse, error) {
	var closure *finance.CommissionClosure
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		closure, err = repos.Closures().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := closure.Cancel(); err != nil {
			return err
		}
		if err := repos.Closures().Save(ctx, closure); err != nil {
			return err
		}
		if err := repos.Commissions().UnlinkClosure(ctx, tenantID, closure.ID); err != nil {
			return err
		}
		return recordEvents(ctx, repos, closure)
	})
	if err != nil {
		return nil, err
	}
	return toClosureResponse(closure), nil
}
