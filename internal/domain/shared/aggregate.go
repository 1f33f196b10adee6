package shared

import "github.com/google/uuid"

// BaseAggregateRoot adds optimistic versioning and the events an aggregate
// raised since it was loaded. Services hand the events to the unit of work,
// which writes them to the outbox in the same transaction as the state.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	pending []DomainEvent
}

// IncrementVersion is called once per state transition
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the events not yet recorded
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.pending }

// ClearDomainEvents forgets recorded events so they are written only once
func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }

// NewBaseAggregateRoot starts a new aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// TenantAggregateRoot is the root of every ledger aggregate; all reads and
// writes are scoped by TenantID
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID uuid.UUID
}

func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{BaseAggregateRoot: NewBaseAggregateRoot(), TenantID: tenantID}
}
