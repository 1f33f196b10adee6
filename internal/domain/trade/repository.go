package trade

import (
	"context"

	"github.com/google/uuid"
)

// OrderRepository persists orders
type OrderRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)
	FindByExternalPaymentIDForUpdate(ctx context.Context, tenantID uuid.UUID, externalID string) (*Order, error)

	// IsUninvoiced reports whether an UNPAID order has no receivable and no
	// boleto referencing it, which is when the order itself consumes credit
	IsUninvoiced(ctx context.Context, tenantID, id uuid.UUID) (bool, error)

	Create(ctx context.Context, o *Order) error
	Save(ctx context.Context, o *Order) error
}
