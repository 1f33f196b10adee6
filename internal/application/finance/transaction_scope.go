package finance

import (
	"context"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/partner"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
)

// TransactionScope runs a unit of work in one database transaction.
// Every repository handed to fn shares that transaction, so row locks taken
// through FindByIDForUpdate hold until fn returns.
type TransactionScope interface {
	// Execute commits when fn returns nil and rolls back otherwise
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories of one transaction.
//
// Lock order inside a unit of work is account, then boleto, then receivables
// by id, then order, then customer. Credit updates on customers are
// single-statement and clamp in SQL, so they do not need the row lock.
type TransactionalRepositories interface {
	Accounts() finance.AccountRepository
	Transactions() finance.TransactionRepository
	Receivables() finance.ReceivableRepository
	Boletos() finance.BoletoRepository
	Expenses() finance.ExpenseRepository
	Commissions() finance.CommissionRepository
	Closures() finance.CommissionClosureRepository
	Notifications() finance.NotificationRepository
	Customers() partner.CustomerRepository
	Orders() trade.OrderRepository
	Exposure() finance.CreditExposureReader

	// RecordEvents writes events to the outbox inside the transaction
	RecordEvents(ctx context.Context, events ...shared.DomainEvent) error
}
