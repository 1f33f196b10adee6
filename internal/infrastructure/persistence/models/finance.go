package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountModel is the persistence model for the Account aggregate root.
type AccountModel struct {
	TenantAggregateModel
	Name               string              `gorm:"type:varchar(200);not null"`
	Kind               finance.AccountKind `gorm:"type:varchar(10);not null"`
	Balance            decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	IsActive           bool                `gorm:"not null;default:true"`
	LastSequence       int64               `gorm:"not null;default:0"`
	CheckpointSequence int64               `gorm:"not null;default:0"`
	CheckpointBalance  decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account
func (m *AccountModel) ToDomain() *finance.Account {
	return &finance.Account{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Kind:                m.Kind,
		Balance:             m.Balance,
		IsActive:            m.IsActive,
		LastSequence:        m.LastSequence,
		CheckpointSequence:  m.CheckpointSequence,
		CheckpointBalance:   m.CheckpointBalance,
	}
}

// FromDomain populates the persistence model from a domain Account
func (m *AccountModel) FromDomain(a *finance.Account) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.Name = a.Name
	m.Kind = a.Kind
	m.Balance = a.Balance
	m.IsActive = a.IsActive
	m.LastSequence = a.LastSequence
	m.CheckpointSequence = a.CheckpointSequence
	m.CheckpointBalance = a.CheckpointBalance
}

// AccountModelFromDomain creates a new persistence model from a domain Account
func AccountModelFromDomain(a *finance.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// TransactionModel is the persistence model for ledger entries.
type TransactionModel struct {
	BaseModel
	TenantID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	AccountID     uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_transaction_account_seq,priority:1"`
	Sequence      int64                   `gorm:"not null;uniqueIndex:idx_transaction_account_seq,priority:2"`
	Type          finance.TransactionType `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	BalanceAfter  decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	ReferenceType finance.ReferenceType   `gorm:"type:varchar(30);not null;index:idx_transaction_reference,priority:1"`
	ReferenceID   *uuid.UUID              `gorm:"type:uuid;index:idx_transaction_reference,priority:2"`
	Description   string                  `gorm:"type:varchar(500)"`
	Date          time.Time               `gorm:"not null;index"`
	StatementRef  *string                 `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "transactions"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *TransactionModel) ToDomain() *finance.Transaction {
	return &finance.Transaction{
		BaseEntity:   m.BaseModel.ToDomain(),
		TenantID:     m.TenantID,
		AccountID:    m.AccountID,
		Sequence:     m.Sequence,
		Type:         m.Type,
		Amount:       m.Amount,
		BalanceAfter: m.BalanceAfter,
		Reference:    finance.Reference{Type: m.ReferenceType, ID: m.ReferenceID},
		Description:  m.Description,
		Date:         m.Date,
		StatementRef: m.StatementRef,
	}
}

// TransactionModelFromDomain creates a new persistence model from a domain Transaction
func TransactionModelFromDomain(t *finance.Transaction) *TransactionModel {
	m := &TransactionModel{
		TenantID:      t.TenantID,
		AccountID:     t.AccountID,
		Sequence:      t.Sequence,
		Type:          t.Type,
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		ReferenceType: t.Reference.Type,
		ReferenceID:   t.Reference.ID,
		Description:   t.Description,
		Date:          t.Date,
		StatementRef:  t.StatementRef,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// ReceivableModel is the persistence model for the Receivable aggregate root.
// The origin union is stored as two nullable foreign keys.
type ReceivableModel struct {
	TenantAggregateModel
	CustomerID    uuid.UUID                `gorm:"type:uuid;not null;index"`
	OrderID       *uuid.UUID               `gorm:"type:uuid;index"`
	BoletoID      *uuid.UUID               `gorm:"type:uuid;index"`
	Amount        decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	PaidAmount    decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	Status        finance.ReceivableStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	DueDate       time.Time                `gorm:"not null;index"`
	PaymentDate   *time.Time
	NetAmount     *decimal.Decimal `gorm:"type:decimal(18,2)"`
	PaymentMethod string           `gorm:"type:varchar(30)"`
	BankAccountID *uuid.UUID       `gorm:"type:uuid"`
	PaidBy        string           `gorm:"type:varchar(100)"`
	ExternalID    *string          `gorm:"type:varchar(100);index"`

	SettlementBatchID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (ReceivableModel) TableName() string {
	return "receivables"
}

// ToDomain converts the persistence model to a domain Receivable
func (m *ReceivableModel) ToDomain() *finance.Receivable {
	return &finance.Receivable{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		Origin:              finance.OriginFromColumns(m.OrderID, m.BoletoID),
		Amount:              m.Amount,
		PaidAmount:          m.PaidAmount,
		Status:              m.Status,
		DueDate:             m.DueDate,
		PaymentDate:         m.PaymentDate,
		NetAmount:           m.NetAmount,
		PaymentMethod:       m.PaymentMethod,
		BankAccountID:       m.BankAccountID,
		PaidBy:              m.PaidBy,
		ExternalID:          m.ExternalID,
		SettlementBatchID:   m.SettlementBatchID,
	}
}

// FromDomain populates the persistence model from a domain Receivable
func (m *ReceivableModel) FromDomain(r *finance.Receivable) {
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.CustomerID = r.CustomerID
	m.OrderID = r.Origin.OrderID()
	m.BoletoID = r.Origin.BoletoID()
	m.Amount = r.Amount
	m.PaidAmount = r.PaidAmount
	m.Status = r.Status
	m.DueDate = r.DueDate
	m.PaymentDate = r.PaymentDate
	m.NetAmount = r.NetAmount
	m.PaymentMethod = r.PaymentMethod
	m.BankAccountID = r.BankAccountID
	m.PaidBy = r.PaidBy
	m.ExternalID = r.ExternalID
	m.SettlementBatchID = r.SettlementBatchID
}

// ReceivableModelFromDomain creates a new persistence model from a domain Receivable
func ReceivableModelFromDomain(r *finance.Receivable) *ReceivableModel {
	m := &ReceivableModel{}
	m.FromDomain(r)
	return m
}

// BoletoModel is the persistence model for the Boleto aggregate root.
type BoletoModel struct {
	TenantAggregateModel
	CustomerID uuid.UUID            `gorm:"type:uuid;not null;index"`
	OrderID    *uuid.UUID           `gorm:"type:uuid;index"`
	Amount     decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	DueDate    time.Time            `gorm:"not null;index"`
	Status     finance.BoletoStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ExternalID *string              `gorm:"type:varchar(100);index"`
	Barcode    string               `gorm:"type:varchar(100)"`
	QRCode     string               `gorm:"type:text"`
	PaidAt     *time.Time
	NetAmount  *decimal.Decimal `gorm:"type:decimal(18,2)"`
}

// TableName returns the table name for GORM
func (BoletoModel) TableName() string {
	return "boletos"
}

// ToDomain converts the persistence model to a domain Boleto
func (m *BoletoModel) ToDomain() *finance.Boleto {
	return &finance.Boleto{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		OrderID:             m.OrderID,
		Amount:              m.Amount,
		DueDate:             m.DueDate,
		Status:              m.Status,
		ExternalID:          m.ExternalID,
		Barcode:             m.Barcode,
		QRCode:              m.QRCode,
		PaidAt:              m.PaidAt,
		NetAmount:           m.NetAmount,
	}
}

// FromDomain populates the persistence model from a domain Boleto
func (m *BoletoModel) FromDomain(b *finance.Boleto) {
	m.FromDomainTenantAggregateRoot(b.TenantAggregateRoot)
	m.CustomerID = b.CustomerID
	m.OrderID = b.OrderID
	m.Amount = b.Amount
	m.DueDate = b.DueDate
	m.Status = b.Status
	m.ExternalID = b.ExternalID
	m.Barcode = b.Barcode
	m.QRCode = b.QRCode
	m.PaidAt = b.PaidAt
	m.NetAmount = b.NetAmount
}

// BoletoModelFromDomain creates a new persistence model from a domain Boleto
func BoletoModelFromDomain(b *finance.Boleto) *BoletoModel {
	m := &BoletoModel{}
	m.FromDomain(b)
	return m
}

// ExpenseModel is the persistence model for the Expense aggregate root.
type ExpenseModel struct {
	TenantAggregateModel
	Description   string                `gorm:"type:varchar(500);not null"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	DueDate       time.Time             `gorm:"not null;index"`
	Status        finance.ExpenseStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AccountID     *uuid.UUID            `gorm:"type:uuid"`
	PaidAt        *time.Time
	TransactionID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ExpenseModel) TableName() string {
	return "expenses"
}

// ToDomain converts the persistence model to a domain Expense
func (m *ExpenseModel) ToDomain() *finance.Expense {
	return &finance.Expense{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Description:         m.Description,
		Amount:              m.Amount,
		DueDate:             m.DueDate,
		Status:              m.Status,
		AccountID:           m.AccountID,
		PaidAt:              m.PaidAt,
		TransactionID:       m.TransactionID,
	}
}

// ExpenseModelFromDomain creates a new persistence model from a domain Expense
func ExpenseModelFromDomain(e *finance.Expense) *ExpenseModel {
	m := &ExpenseModel{
		Description:   e.Description,
		Amount:        e.Amount,
		DueDate:       e.DueDate,
		Status:        e.Status,
		AccountID:     e.AccountID,
		PaidAt:        e.PaidAt,
		TransactionID: e.TransactionID,
	}
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	return m
}

// CommissionModel is the persistence model for seller commissions.
type CommissionModel struct {
	BaseModel
	TenantID  uuid.UUID                `gorm:"type:uuid;not null;index:idx_commission_tenant_seller,priority:1"`
	SellerID  uuid.UUID                `gorm:"type:uuid;not null;index:idx_commission_tenant_seller,priority:2"`
	OrderID   *uuid.UUID               `gorm:"type:uuid"`
	Amount    decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	Status    finance.CommissionStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	ClosureID *uuid.UUID               `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (CommissionModel) TableName() string {
	return "commissions"
}

// ToDomain converts the persistence model to a domain Commission
func (m *CommissionModel) ToDomain() *finance.Commission {
	return &finance.Commission{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		SellerID:   m.SellerID,
		OrderID:    m.OrderID,
		Amount:     m.Amount,
		Status:     m.Status,
		ClosureID:  m.ClosureID,
	}
}

// CommissionModelFromDomain creates a new persistence model from a domain Commission
func CommissionModelFromDomain(c *finance.Commission) *CommissionModel {
	m := &CommissionModel{
		TenantID:  c.TenantID,
		SellerID:  c.SellerID,
		OrderID:   c.OrderID,
		Amount:    c.Amount,
		Status:    c.Status,
		ClosureID: c.ClosureID,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// CommissionClosureModel is the persistence model for commission closures.
// The partial unique index lets a month be closed again once cancelled.
type CommissionClosureModel struct {
	TenantAggregateModel
	SellerID        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_closure_seller_month,priority:1,where:status <> 'CANCELLED'"`
	ReferenceMonth  string                `gorm:"type:varchar(7);not null;uniqueIndex:idx_closure_seller_month,priority:2"`
	TotalAmount     decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	CommissionCount int                   `gorm:"not null;default:0"`
	Status          finance.ClosureStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	PaidAt          *time.Time
	TransactionID   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (CommissionClosureModel) TableName() string {
	return "commission_closures"
}

// ToDomain converts the persistence model to a domain CommissionClosure
func (m *CommissionClosureModel) ToDomain() *finance.CommissionClosure {
	return &finance.CommissionClosure{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		SellerID:            m.SellerID,
		ReferenceMonth:      m.ReferenceMonth,
		TotalAmount:         m.TotalAmount,
		CommissionCount:     m.CommissionCount,
		Status:              m.Status,
		PaidAt:              m.PaidAt,
		TransactionID:       m.TransactionID,
	}
}

// CommissionClosureModelFromDomain creates a new persistence model from a domain CommissionClosure
func CommissionClosureModelFromDomain(c *finance.CommissionClosure) *CommissionClosureModel {
	m := &CommissionClosureModel{
		SellerID:        c.SellerID,
		ReferenceMonth:  c.ReferenceMonth,
		TotalAmount:     c.TotalAmount,
		CommissionCount: c.CommissionCount,
		Status:          c.Status,
		PaidAt:          c.PaidAt,
		TransactionID:   c.TransactionID,
	}
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	return m
}

// ProcessedNotificationModel is the unique claim on a webhook external id.
type ProcessedNotificationModel struct {
	ID          uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_processed_notification,priority:1"`
	ExternalID  string                     `gorm:"type:varchar(100);not null;uniqueIndex:idx_processed_notification,priority:2"`
	Status      finance.NotificationStatus `gorm:"type:varchar(20);not null"`
	ProcessedAt time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProcessedNotificationModel) TableName() string {
	return "processed_notifications"
}

// ToDomain converts the persistence model to a domain NotificationClaim
func (m *ProcessedNotificationModel) ToDomain() *finance.NotificationClaim {
	return &finance.NotificationClaim{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ExternalID:  m.ExternalID,
		Status:      m.Status,
		ProcessedAt: m.ProcessedAt,
	}
}

// ProcessedNotificationModelFromDomain creates a new persistence model from a claim
func ProcessedNotificationModelFromDomain(c *finance.NotificationClaim) *ProcessedNotificationModel {
	return &ProcessedNotificationModel{
		ID:          c.ID,
		TenantID:    c.TenantID,
		ExternalID:  c.ExternalID,
		Status:      c.Status,
		ProcessedAt: c.ProcessedAt,
	}
}
