package partner

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerRepository persists customers. Credit moves only through the
// atomic methods, which clamp in SQL so concurrent adjustments never lose
// an update or escape [0, credit_limit].
type CustomerRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*Customer, int64, error)

	// FindAllKeys lists every customer across tenants, for repair jobs
	FindAllKeys(ctx context.Context) ([]CustomerKey, error)

	Create(ctx context.Context, c *Customer) error

	// SaveCreditLimit stores a new limit together with the re-clamped available credit
	SaveCreditLimit(ctx context.Context, c *Customer) error

	ConsumeCredit(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error
	RestoreCredit(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error
	SetAvailableCredit(ctx context.Context, tenantID, id uuid.UUID, available decimal.Decimal) error
}

// CustomerKey identifies a customer across tenants
type CustomerKey struct {
	TenantID   uuid.UUID
	CustomerID uuid.UUID
}
