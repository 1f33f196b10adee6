package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amounts decode from JSON numbers or strings; the domain rejects non-positive values.

// CreateAccountRequest opens an account
type CreateAccountRequest struct {
	Name           string          `json:"name" binding:"required,max=120"`
	Kind           string          `json:"kind" binding:"omitempty,oneof=BANK CASH"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// AppendTransactionRequest posts a manual ledger entry
type AppendTransactionRequest struct {
	Type          string          `json:"type" binding:"required,oneof=INCOME EXPENSE ADJUSTMENT"`
	Amount        decimal.Decimal `json:"amount"`
	Date          *time.Time      `json:"date"`
	ReferenceType string          `json:"reference_type" binding:"omitempty,oneof=MANUAL RECEIVABLE ORDER BOLETO BATCH_SETTLEMENT EXPENSE COMMISSION_CLOSURE"`
	ReferenceID   *uuid.UUID      `json:"reference_id"`
	Description   string          `json:"description" binding:"max=255"`
}

// AdjustBalanceRequest moves a balance without writing a ledger entry
type AdjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TransactionListQuery filters a ledger listing
type TransactionListQuery struct {
	ListRequest
	From *time.Time `form:"from" time_format:"2006-01-02"`
	To   *time.Time `form:"to" time_format:"2006-01-02"`
	Type string     `form:"type" binding:"omitempty,oneof=INCOME EXPENSE ADJUSTMENT"`
}

// CreateReceivableRequest creates a receivable
type CreateReceivableRequest struct {
	CustomerID uuid.UUID       `json:"customer_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"due_date" binding:"required"`
	OrderID    *uuid.UUID      `json:"order_id"`
	BoletoID   *uuid.UUID      `json:"boleto_id" binding:"omitempty,excluded_without=OrderID"`
	ExternalID string          `json:"external_id" binding:"max=100"`
}

// MarkReceivablePaidRequest settles a receivable in full
type MarkReceivablePaidRequest struct {
	Method        string     `json:"method" binding:"required,max=30"`
	BankAccountID *uuid.UUID `json:"bank_account_id"`
	PaidBy        string     `json:"paid_by" binding:"max=100"`
	PaidAt        *time.Time `json:"paid_at"`
}

// ReceivableListQuery filters a receivable listing
type ReceivableListQuery struct {
	ListRequest
	CustomerID string     `form:"customer_id" binding:"omitempty,uuid"`
	Status     string     `form:"status" binding:"omitempty,oneof=PENDING OVERDUE PARTIAL PAID"`
	DueBefore  *time.Time `form:"due_before" time_format:"2006-01-02"`
}

// CreateBoletoRequest issues a boleto
type CreateBoletoRequest struct {
	CustomerID uuid.UUID       `json:"customer_id" binding:"required"`
	OrderID    *uuid.UUID      `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"due_date" binding:"required"`
}

// MarkBoletoPaidRequest settles a boleto
type MarkBoletoPaidRequest struct {
	PaidAt        *time.Time      `json:"paid_at"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	BankAccountID *uuid.UUID      `json:"bank_account_id"`
}

// BoletoListQuery filters a boleto listing
type BoletoListQuery struct {
	ListRequest
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=PENDING OVERDUE PAID CANCELLED"`
}

// PenaltyQuery picks the day a penalty is computed for
type PenaltyQuery struct {
	AsOf *time.Time `form:"as_of" time_format:"2006-01-02"`
}

// CreateCustomerRequest registers a customer with a credit line
type CreateCustomerRequest struct {
	Name        string          `json:"name" binding:"required,max=200"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// CreditAmountRequest consumes or restores credit, or sets the limit
type CreditAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RegisterOrderRequest records an order against a customer's credit
type RegisterOrderRequest struct {
	CustomerID uuid.UUID       `json:"customer_id" binding:"required"`
	Total      decimal.Decimal `json:"total"`
}

// SettleSingleRequest applies one payment to a receivable
type SettleSingleRequest struct {
	ReceivableID  uuid.UUID       `json:"receivable_id" binding:"required"`
	BankAccountID *uuid.UUID      `json:"bank_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" binding:"required,max=30"`
	PaidBy        string          `json:"paid_by" binding:"max=100"`
	PaidAt        *time.Time      `json:"paid_at"`
}

// SettleBatchRequest settles several receivables with one ledger entry
type SettleBatchRequest struct {
	ReceivableIDs []uuid.UUID `json:"receivable_ids" binding:"required,min=1,max=500"`
	BankAccountID *uuid.UUID  `json:"bank_account_id"`
	Method        string      `json:"method" binding:"required,max=30"`
	PaidBy        string      `json:"paid_by" binding:"max=100"`
	PaidAt        *time.Time  `json:"paid_at"`
	Strict        *bool       `json:"strict"`
}

// PaymentWebhookRequest is the payment gateway's notification body
type PaymentWebhookRequest struct {
	ExternalID string          `json:"externalId" binding:"required,max=100"`
	Status     string          `json:"status" binding:"required,oneof=PAID OVERDUE EXPIRED"`
	PaidAt     *time.Time      `json:"paidAt"`
	Amount     decimal.Decimal `json:"amount"`
	NetAmount  decimal.Decimal `json:"netAmount"`
	CustomerID *uuid.UUID      `json:"customerId"`
	AccountID  *uuid.UUID      `json:"accountId"`
}

// CreateExpenseRequest records a bill
type CreateExpenseRequest struct {
	Description string          `json:"description" binding:"required,max=255"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date" binding:"required"`
}

// PayRequest pays an expense or closure, from an account when one is given
type PayRequest struct {
	AccountID *uuid.UUID `json:"account_id"`
	PaidAt    *time.Time `json:"paid_at"`
}

// RecordCommissionRequest records a seller's commission
type RecordCommissionRequest struct {
	SellerID uuid.UUID       `json:"seller_id" binding:"required"`
	OrderID  *uuid.UUID      `json:"order_id"`
	Amount   decimal.Decimal `json:"amount"`
	EarnedAt *time.Time      `json:"earned_at"`
}

// CloseCommissionsRequest closes a month for one seller or all of them
type CloseCommissionsRequest struct {
	ReferenceMonth string     `json:"reference_month" binding:"required,reference_month"`
	SellerID       *uuid.UUID `json:"seller_id"`
}

// ClosureListQuery filters a closure listing
type ClosureListQuery struct {
	ListRequest
	SellerID       string `form:"seller_id" binding:"omitempty,uuid"`
	ReferenceMonth string `form:"reference_month" binding:"omitempty,reference_month"`
	Status         string `form:"status" binding:"omitempty,oneof=PENDING PAID CANCELLED"`
}

// StatementLine is one imported bank statement record
type StatementLine struct {
	ExternalID string          `json:"externalId" binding:"required,max=100"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date" binding:"required"`
	Type       string          `json:"type" binding:"required,oneof=INCOME EXPENSE ADJUSTMENT"`
}

// ReconcileStatementRequest matches a statement against an account's ledger
type ReconcileStatementRequest struct {
	Lines []StatementLine `json:"lines" binding:"required,min=1,max=5000,dive"`
}
