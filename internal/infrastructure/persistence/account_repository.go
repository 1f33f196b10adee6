package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAccountRepository implements finance.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID finds an account by ID within a tenant
func (r *GormAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Account, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds an account and locks its row (SELECT ... FOR UPDATE)
func (r *GormAccountRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Account, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormAccountRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*finance.Account, error) {
	var model models.AccountModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists a tenant's accounts by name
func (r *GormAccountRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*finance.Account, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AccountModel{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AccountModel
	if err := query.Order("name ASC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	accounts := make([]*finance.Account, len(rows))
	for i := range rows {
		accounts[i] = rows[i].ToDomain()
	}
	return accounts, total, nil
}

// FindAllIDs lists every account across tenants
func (r *GormAccountRepository) FindAllIDs(ctx context.Context) ([]finance.AccountKey, error) {
	var rows []struct {
		TenantID uuid.UUID
		ID       uuid.UUID
	}
	if err := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Select("tenant_id, id").Order("tenant_id, id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]finance.AccountKey, len(rows))
	for i, row := range rows {
		keys[i] = finance.AccountKey{TenantID: row.TenantID, AccountID: row.ID}
	}
	return keys, nil
}

// Create inserts a new account
func (r *GormAccountRepository) Create(ctx context.Context, account *finance.Account) error {
	return r.db.WithContext(ctx).Create(models.AccountModelFromDomain(account)).Error
}

// Save updates the descriptive columns. Balance and sequence columns are
// only moved by the atomic methods.
func (r *GormAccountRepository) Save(ctx context.Context, account *finance.Account) error {
	result := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Where("tenant_id = ? AND id = ?", account.TenantID, account.ID).
		Updates(map[string]any{
			"name":       account.Name,
			"kind":       account.Kind,
			"is_active":  account.IsActive,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	return rowsOrNotFound(result)
}

// IncrementBalance applies balance = balance + delta without reading the row
func (r *GormAccountRepository) IncrementBalance(ctx context.Context, tenantID, id uuid.UUID, delta decimal.Decimal) error {
	return r.adjust(ctx, tenantID, id, map[string]any{
		"balance": gorm.Expr("balance + ?", shared.RoundMoney(delta)),
	})
}

// DecrementBalance applies balance = balance - amount without reading the row
func (r *GormAccountRepository) DecrementBalance(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error {
	return r.adjust(ctx, tenantID, id, map[string]any{
		"balance": gorm.Expr("balance - ?", shared.RoundMoney(amount)),
	})
}

// RecordAppend adds delta and advances last_sequence in one statement
func (r *GormAccountRepository) RecordAppend(ctx context.Context, tenantID, id uuid.UUID, delta decimal.Decimal, sequence int64) error {
	return r.adjust(ctx, tenantID, id, map[string]any{
		"balance":       gorm.Expr("balance + ?", shared.RoundMoney(delta)),
		"last_sequence": sequence,
	})
}

// SaveCheckpoint records the last sequence whose snapshot is verified
func (r *GormAccountRepository) SaveCheckpoint(ctx context.Context, tenantID, id uuid.UUID, sequence int64, balance decimal.Decimal) error {
	return r.adjust(ctx, tenantID, id, map[string]any{
		"checkpoint_sequence": sequence,
		"checkpoint_balance":  shared.RoundMoney(balance),
	})
}

// CorrectBalance overwrites the stored balance
func (r *GormAccountRepository) CorrectBalance(ctx context.Context, tenantID, id uuid.UUID, balance decimal.Decimal) error {
	return r.adjust(ctx, tenantID, id, map[string]any{
		"balance": shared.RoundMoney(balance),
	})
}

func (r *GormAccountRepository) adjust(ctx context.Context, tenantID, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates)
	return rowsOrNotFound(result)
}

// rowsOrNotFound maps an update that touched nothing to ErrNotFound
func rowsOrNotFound(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormAccountRepository implements finance.AccountRepository
var _ finance.AccountRepository = (*GormAccountRepository)(nil)
