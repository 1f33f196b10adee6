package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeRequest asks the payment-instrument issuer to register a boleto
type ChargeRequest struct {
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	OrderID    *uuid.UUID
	Amount     decimal.Decimal
	DueDate    time.Time
	Reference  string
}

// ChargeResult is what the issuer hands back for a registered charge
type ChargeResult struct {
	ExternalID string
	Barcode    string
	QRCode     string
}

// ChargeIssuer registers payment instruments with a bank or gateway
type ChargeIssuer interface {
	IssueCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// InvoiceStatus is the lifecycle state reported to the fiscal-document issuer
type InvoiceStatus string

const (
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// FiscalInvoiceTracker keeps fiscal documents in step with settlements.
// No financial state depends on it.
type FiscalInvoiceTracker interface {
	MarkInvoiceStatus(ctx context.Context, tenantID, orderID uuid.UUID, status InvoiceStatus) error
}

// NotificationStatus is the state a payment webhook reports
type NotificationStatus string

const (
	NotificationPaid    NotificationStatus = "PAID"
	NotificationOverdue NotificationStatus = "OVERDUE"
	NotificationExpired NotificationStatus = "EXPIRED"
)

// IsValid checks if the status is known
func (s NotificationStatus) IsValid() bool {
	return s == NotificationPaid || s == NotificationOverdue || s == NotificationExpired
}

// PaymentNotification is a webhook delivery from the payment gateway.
// CustomerID and Amount are only used when the payment matches no record.
type PaymentNotification struct {
	TenantID   uuid.UUID
	ExternalID string
	Status     NotificationStatus
	PaidAt     time.Time
	Amount     decimal.Decimal
	NetAmount  decimal.Decimal
	CustomerID *uuid.UUID
	AccountID  *uuid.UUID
}

// LedgerAmount is the amount credited to the bank: the net amount when the
// gateway reports one, else the gross amount of the settled record.
func (n PaymentNotification) LedgerAmount(gross decimal.Decimal) decimal.Decimal {
	if n.NetAmount.IsPositive() {
		return n.NetAmount
	}
	return gross
}

// NotificationClaim marks an external payment id as processed for a tenant.
// Its unique key serializes concurrent deliveries of the same notification.
type NotificationClaim struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ExternalID  string
	Status      NotificationStatus
	ProcessedAt time.Time
}

// NewNotificationClaim creates a claim for the given delivery
func NewNotificationClaim(n PaymentNotification, at time.Time) *NotificationClaim {
	return &NotificationClaim{
		ID:          uuid.New(),
		TenantID:    n.TenantID,
		ExternalID:  n.ExternalID,
		Status:      n.Status,
		ProcessedAt: at.UTC(),
	}
}
