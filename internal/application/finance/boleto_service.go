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
	"go.uber.org/zap"
)

// BoletoService issues and settles boletos. A boleto issued for an order gets
// a shadow receivable that follows the boleto and is never settled directly.
type BoletoService struct {
	scope   TransactionScope
	issuer  finance.ChargeIssuer
	tracker finance.FiscalInvoiceTracker
	engine  *engine
	metrics *telemetry.SettlementMetrics
	logger  *zap.Logger
}

// BoletoServiceConfig holds the dependencies of BoletoService.
// Issuer and Tracker are optional.
type BoletoServiceConfig struct {
	Scope   TransactionScope
	Issuer  finance.ChargeIssuer
	Tracker finance.FiscalInvoiceTracker
	Logger  *zap.Logger
	Metrics *telemetry.SettlementMetrics
	Now     func() time.Time
}

// NewBoletoService creates a new BoletoService
func NewBoletoService(cfg BoletoServiceConfig) *BoletoService {
	logger := orNop(cfg.Logger)
	return &BoletoService{
		scope:   cfg.Scope,
		issuer:  cfg.Issuer,
		tracker: cfg.Tracker,
		engine:  newEngine(logger, cfg.Metrics, cfg.Now),
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Create issues a PENDING boleto, registers it with the charge issuer when one
// is configured, and consumes the customer's credit
func (s *BoletoService) Create(ctx context.Context, tenantID uuid.UUID, req CreateBoletoRequest) (*BoletoResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "boleto", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	boleto, err := finance.NewBoleto(tenantID, req.CustomerID, req.OrderID, req.Amount, req.DueDate)
	if err != nil {
		return nil, err
	}

	if s.issuer != nil {
		// nothing reaches the provider for a request Create would reject
		if err := s.validateCreate(ctx, tenantID, req); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		charge, err := s.issuer.IssueCharge(ctx, finance.ChargeRequest{
			TenantID:   tenantID,
			CustomerID: boleto.CustomerID,
			OrderID:    boleto.OrderID,
			Amount:     boleto.Amount,
			DueDate:    boleto.DueDate,
			Reference:  boleto.ID.String(),
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("issue charge: %w", err)
		}
		boleto.AttachCharge(charge.ExternalID, charge.Barcode, charge.QRCode)
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Customers().FindByID(ctx, tenantID, req.CustomerID); err != nil {
			return err
		}
		order, uninvoiced, err := s.engine.invoicedOrder(ctx, repos, tenantID, req.CustomerID, req.OrderID)
		if err != nil {
			return err
		}
		if err := s.engine.consumeFor(ctx, repos, tenantID, req.CustomerID, boleto.Amount, order, uninvoiced); err != nil {
			return err
		}
		if err := repos.Boletos().Create(ctx, boleto); err != nil {
			return err
		}
		if order == nil {
			return recordEvents(ctx, repos, boleto)
		}

		shadow, err := finance.NewReceivable(tenantID, req.CustomerID, boleto.Amount, boleto.DueDate,
			finance.FromBoleto(boleto.ID, order.ID))
		if err != nil {
			return err
		}
		if err := repos.Receivables().Create(ctx, shadow); err != nil {
			return err
		}
		return recordEvents(ctx, repos, boleto, shadow)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrBoletoID, boleto.ID.String())
	s.logger.Info("Boleto issued",
		zap.String("boleto_id", boleto.ID.String()),
		zap.String("customer_id", boleto.CustomerID.String()),
		zap.String("amount", boleto.Amount.StringFixed(2)))
	return toBoletoResponse(boleto), nil
}

// validateCreate runs the customer and order checks of Create without taking
// any locks. Create repeats them under lock once the charge is registered.
func (s *BoletoService) validateCreate(ctx context.Context, tenantID uuid.UUID, req CreateBoletoRequest) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Customers().FindByID(ctx, tenantID, req.CustomerID); err != nil {
			return err
		}
		if req.OrderID == nil {
			return nil
		}
		order, err := repos.Orders().FindByID(ctx, tenantID, *req.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		return invoiceableBy(order, req.CustomerID)
	})
}

// Get returns one boleto
func (s *BoletoService) Get(ctx context.Context, tenantID, id uuid.UUID) (*BoletoResponse, error) {
	boleto, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return toBoletoResponse(boleto), nil
}

// List lists boletos, earliest due first
func (s *BoletoService) List(ctx context.Context, tenantID uuid.UUID, filter BoletoListFilter) ([]BoletoResponse, int64, error) {
	query := finance.BoletoFilter{
		Filter:     pageFilter(filter.Page, filter.PageSize),
		CustomerID: filter.CustomerID,
	}
	if filter.Status != "" {
		status := finance.BoletoStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainErrorf("INVALID_INPUT", "Unknown boleto status %q", filter.Status)
		}
		query.Statuses = []finance.BoletoStatus{status}
	}

	var (
		list  []*finance.Boleto
		total int64
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		list, total, err = repos.Boletos().FindAll(ctx, tenantID, query)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]BoletoResponse, 0, len(list))
	for _, b := range list {
		out = append(out, *toBoletoResponse(b))
	}
	return out, total, nil
}

// MarkPaid settles a boleto by hand. With a bank account the net amount is
// posted as income.
func (s *BoletoService) MarkPaid(ctx context.Context, tenantID, id uuid.UUID, req MarkBoletoPaidRequest) (*BoletoSettlementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "boleto", "mark_paid")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBoletoID, id.String())

	var (
		boleto    *finance.Boleto
		tx        *finance.Transaction
		orderPaid bool
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if req.BankAccountID != nil {
			if _, err := s.engine.lockAccount(ctx, repos, tenantID, req.BankAccountID); err != nil {
				return err
			}
		}
		var err error
		boleto, err = repos.Boletos().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		tx, orderPaid, err = s.engine.settleBoleto(ctx, repos, boleto, req.PaidAt, req.NetAmount, req.BankAccountID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, tenantID, telemetry.SettlementKindBoleto, boleto.Amount)
	if orderPaid {
		notifyInvoicesPaid(ctx, s.tracker, s.logger, tenantID, []uuid.UUID{*boleto.OrderID})
	}
	return &BoletoSettlementResult{
		Boleto:         toBoletoResponse(boleto),
		Transaction:    toTransactionResponse(tx),
		CreditRestored: boleto.Amount,
	}, nil
}

// Cancel voids an unpaid boleto. An unpaid shadow receivable survives as a
// plain receivable of the order and keeps the credit consumed; otherwise the
// boleto's credit is restored.
func (s *BoletoService) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*BoletoResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "boleto", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBoletoID, id.String())

	var boleto *finance.Boleto
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		boleto, err = repos.Boletos().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := boleto.Cancel(); err != nil {
			return err
		}
		if err := repos.Boletos().Save(ctx, boleto); err != nil {
			return err
		}

		shadow, err := repos.Receivables().FindShadowForUpdate(ctx, tenantID, boleto.ID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			shadow = nil
		case err != nil:
			return err
		}
		if shadow == nil || shadow.IsPaid() {
			if err := s.engine.restore(ctx, repos, tenantID, boleto.CustomerID, boleto.Amount); err != nil {
				return err
			}
			return recordEvents(ctx, repos, boleto)
		}

		if err := shadow.UnlinkBoleto(); err != nil {
			return err
		}
		if err := repos.Receivables().Save(ctx, shadow); err != nil {
			return err
		}
		s.logger.Info("Boleto shadow kept as order receivable",
			zap.String("boleto_id", boleto.ID.String()),
			zap.String("receivable_id", shadow.ID.String()))
		return recordEvents(ctx, repos, boleto)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return toBoletoResponse(boleto), nil
}

// SweepOverdue moves PENDING boletos due before today's local midnight to
// OVERDUE and records a BoletoOverdue event for each. Running it twice on the
// same day changes nothing.
func (s *BoletoService) SweepOverdue(ctx context.Context) (int64, error) {
	cutoff := shared.StartOfLocalDay(s.engine.now())
	var marked int64
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		due, err := repos.Boletos().FindPendingDueBeforeForUpdate(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, b := range due {
			if !b.MarkOverdue() {
				continue
			}
			if err := repos.Boletos().Save(ctx, b); err != nil {
				return fmt.Errorf("save boleto %s: %w", b.ID, err)
			}
			if err := recordEvents(ctx, repos, b); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.RecordOverdueSweep(ctx, "boleto", marked)
	s.logger.Info("Boleto overdue sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("marked", marked))
	return marked, nil
}

// Penalty computes the late charge for paying the boleto on asOf
func (s *BoletoService) Penalty(ctx context.Context, tenantID, id uuid.UUID, asOf time.Time) (*PenaltyResponse, error) {
	boleto, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	asOf = timeOrNow(asOf, s.engine.now)
	penalty := finance.CalculatePenalty(boleto, asOf)
	total := penalty.Total()
	due := shared.RoundMoney(boleto.Amount.Add(total))
	if boleto.Status == finance.BoletoStatusPaid || boleto.Status == finance.BoletoStatusCancelled {
		due = total
	}
	return &PenaltyResponse{
		BoletoID:    boleto.ID,
		AsOf:        shared.FormatLocalDate(asOf),
		DaysOverdue: penalty.DaysOverdue,
		Fine:        penalty.Fine,
		Interest:    penalty.Interest,
		Total:       total,
		AmountDue:   due,
	}, nil
}

func (s *BoletoService) find(ctx context.Context, tenantID, id uuid.UUID) (*finance.Boleto, error) {
	var boleto *finance.Boleto
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		boleto, err = repos.Boletos().FindByID(ctx, tenantID, id)
		return err
	})
	return boleto, err
}
