package handler

import (
	"context"
	"time"

	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type balanceAdjuster func(ctx context.Context, tenantID, accountID uuid.UUID, amount decimal.Decimal) (*financeapp.AccountResponse, error)

type creditAdjuster func(ctx context.Context, tenantID, customerID uuid.UUID, amount decimal.Decimal) (*financeapp.CustomerCreditResponse, error)

// valueOrZero lets the services pick their clock when a time is omitted
func valueOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
