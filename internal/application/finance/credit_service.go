package finance

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/partner"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreditService keeps each customer's available credit in step with what the
// customer owes. Consumption and restoration are clamped to [0, limit] in SQL.
type CreditService struct {
	scope  TransactionScope
	engine *engine
	logger *zap.Logger
}

// CreditServiceConfig holds the dependencies of CreditService
type CreditServiceConfig struct {
	Scope   TransactionScope
	Logger  *zap.Logger
	Metrics *telemetry.SettlementMetrics
}

// NewCreditService creates a new CreditService
func NewCreditService(cfg CreditServiceConfig) *CreditService {
	logger := orNop(cfg.Logger)
	return &CreditService{
		scope:  cfg.Scope,
		engine: newEngine(logger, cfg.Metrics, nil),
		logger: logger,
	}
}

// CreateCustomer registers a customer with its whole line available
func (s *CreditService) CreateCustomer(ctx context.Context, tenantID uuid.UUID, req CreateCustomerRequest) (*CustomerCreditResponse, error) {
	customer, err := partner.NewCustomer(tenantID, req.Name, req.CreditLimit)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Customers().Create(ctx, customer)
	})
	if err != nil {
		return nil, err
	}
	return toCustomerCreditResponse(customer), nil
}

// GetCredit returns the stored credit line
func (s *CreditService) GetCredit(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerCreditResponse, error) {
	var customer *partner.Customer
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		customer, err = repos.Customers().FindByID(ctx, tenantID, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toCustomerCreditResponse(customer), nil
}

// Consume reserves credit, never going below zero
func (s *CreditService) Consume(ctx context.Context, tenantID, customerID uuid.UUID, amount decimal.Decimal) (*CustomerCreditResponse, error) {
	return s.move(ctx, tenantID, customerID, amount, s.engine.consume)
}

// Restore releases credit, never exceeding the limit
func (s *CreditService) Restore(ctx context.Context, tenantID, customerID uuid.UUID, amount decimal.Decimal) (*CustomerCreditResponse, error) {
	return s.move(ctx, tenantID, customerID, amount, s.engine.restore)
}

type creditMove func(ctx context.Context, repos TransactionalRepositories, tenantID, customerID uuid.UUID, amount decimal.Decimal) error

func (s *CreditService) move(ctx context.Context, tenantID, customerID uuid.UUID, amount decimal.Decimal, apply creditMove) (*CustomerCreditResponse, error) {
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, finance.ErrInvalidAmount
	}
	var customer *partner.Customer
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := apply(ctx, repos, tenantID, customerID, amount); err != nil {
			return err
		}
		var err error
		customer, err = repos.Customers().FindByID(ctx, tenantID, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toCustomerCreditResponse(customer), nil
}

// Exposure compares the stored available credit with the one derived from
// receivables, boletos and uninvoiced orders
func (s *CreditService) Exposure(ctx context.Context, tenantID, customerID uuid.UUID) (*CreditExposureResponse, error) {
	var out *CreditExposureResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		customer, err := repos.Customers().FindByID(ctx, tenantID, customerID)
		if err != nil {
			return err
		}
		exposure, err := repos.Exposure().ExposureFor(ctx, tenantID, customerID)
		if err != nil {
			return fmt.Errorf("aggregate exposure: %w", err)
		}
		out = toExposureResponse(customer, exposure)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Recalculate sets available credit from the customer's exposure
func (s *CreditService) Recalculate(ctx context.Context, tenantID, customerID uuid.UUID) (*CreditExposureResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "recalculate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID.String())

	var out *CreditExposureResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		customer, err := repos.Customers().FindByIDForUpdate(ctx, tenantID, customerID)
		if err != nil {
			return err
		}
		exposure, err := repos.Exposure().ExposureFor(ctx, tenantID, customerID)
		if err != nil {
			return fmt.Errorf("aggregate exposure: %w", err)
		}
		before := customer.AvailableCredit
		customer.Recalculate(exposure.Consumed())
		if !before.Equal(customer.AvailableCredit) {
			s.logger.Warn("Available credit out of step with exposure",
				zap.String("customer_id", customerID.String()),
				zap.String("stored", before.String()),
				zap.String("expected", customer.AvailableCredit.String()))
			if err := repos.Customers().SetAvailableCredit(ctx, tenantID, customerID, customer.AvailableCredit); err != nil {
				return err
			}
		}
		out = toExposureResponse(customer, exposure)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return out, nil
}

// ReconcileAll recalculates every customer of every tenant
func (s *CreditService) ReconcileAll(ctx context.Context) (*ReconcileCreditSummary, error) {
	var keys []partner.CustomerKey
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		keys, err = repos.Customers().FindAllKeys(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	summary := &ReconcileCreditSummary{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		before, err := s.GetCredit(ctx, key.TenantID, key.CustomerID)
		if err != nil {
			return summary, err
		}
		after, err := s.Recalculate(ctx, key.TenantID, key.CustomerID)
		if err != nil {
			s.logger.Error("Credit reconciliation failed",
				zap.String("customer_id", key.CustomerID.String()),
				zap.Error(err))
			continue
		}
		summary.Checked++
		if !before.AvailableCredit.Equal(after.AvailableCredit) {
			summary.Corrected++
		}
	}
	return summary, nil
}

// SetCreditLimit changes the ceiling, keeping the consumed part unchanged
func (s *CreditService) SetCreditLimit(ctx context.Context, tenantID, customerID uuid.UUID, limit decimal.Decimal) (*CustomerCreditResponse, error) {
	var customer *partner.Customer
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		customer, err = repos.Customers().FindByIDForUpdate(ctx, tenantID, customerID)
		if err != nil {
			return err
		}
		if err := customer.SetCreditLimit(limit); err != nil {
			return err
		}
		return repos.Customers().SaveCreditLimit(ctx, customer)
	})
	if err != nil {
		return nil, err
	}
	return toCustomerCreditResponse(customer), nil
}

// RegisterOrder records a sale. Until it is invoiced the order itself
// consumes its total.
func (s *CreditService) RegisterOrder(ctx context.Context, tenantID, customerID uuid.UUID, total decimal.Decimal) (*OrderResponse, error) {
	order, err := trade.NewOrder(tenantID, customerID, total)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Customers().FindByID(ctx, tenantID, customerID); err != nil {
			return err
		}
		if err := repos.Orders().Create(ctx, order); err != nil {
			return err
		}
		return s.engine.consume(ctx, repos, tenantID, customerID, order.Total)
	})
	if err != nil {
		return nil, err
	}
	return toOrderResponse(order), nil
}

// GetOrder returns one order
func (s *CreditService) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	var order *trade.Order
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		order, err = repos.Orders().FindByID(ctx, tenantID, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toOrderResponse(order), nil
}

// CancelOrder voids an unpaid order. An order that was still consuming credit
// on its own gives it back; invoiced orders leave that to their records.
func (s *CreditService) CancelOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	var order *trade.Order
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		order, err = repos.Orders().FindByIDForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		uninvoiced, err := repos.Orders().IsUninvoiced(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if err := order.Cancel(); err != nil {
			return err
		}
		if err := repos.Orders().Save(ctx, order); err != nil {
			return err
		}
		if uninvoiced {
			return s.engine.restore(ctx, repos, tenantID, order.CustomerID, order.Total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toOrderResponse(order), nil
}

func toExposureResponse(customer *partner.Customer, exposure finance.CreditExposure) *CreditExposureResponse {
	expected := exposure.AvailableCredit(customer.CreditLimit)
	return &CreditExposureResponse{
		CustomerCreditResponse: *toCustomerCreditResponse(customer),
		ReceivableTotal:        exposure.ReceivableTotal,
		BoletoTotal:            exposure.BoletoTotal,
		UninvoicedOrderTotal:   exposure.UninvoicedOrderTotal,
		ExpectedAvailable:      expected,
		InSync:                 expected.Equal(customer.AvailableCredit),
	}
}
