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
)

// GormTransactionRepository implements finance.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Create inserts a ledger entry. The (account_id, sequence) unique index
// rejects a second entry claiming the same position.
func (r *GormTransactionRepository) Create(ctx context.Context, tx *finance.Transaction) error {
	if err := r.db.WithContext(ctx).Create(models.TransactionModelFromDomain(tx)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// FindByID finds a ledger entry by ID within a tenant
func (r *GormTransactionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Transaction, error) {
	var model models.TransactionModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAccount lists an account's entries, newest first
func (r *GormTransactionRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID, filter finance.TransactionFilter) ([]*finance.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TransactionModel{}).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID)
	if filter.From != nil {
		query = query.Where("date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("date < ?", filter.To.UTC())
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.TransactionModel
	if err := query.Order("sequence DESC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return transactionsToDomain(rows), total, nil
}

// FindAfterSequence returns entries after the given sequence in insertion order
func (r *GormTransactionRepository) FindAfterSequence(ctx context.Context, tenantID, accountID uuid.UUID, after int64) ([]*finance.Transaction, error) {
	var rows []models.TransactionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND sequence > ?", tenantID, accountID, after).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return transactionsToDomain(rows), nil
}

// FindByDateRange returns entries dated in [from, to) in insertion order
func (r *GormTransactionRepository) FindByDateRange(ctx context.Context, tenantID, accountID uuid.UUID, from, to time.Time) ([]*finance.Transaction, error) {
	var rows []models.TransactionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND date >= ? AND date < ?", tenantID, accountID, from.UTC(), to.UTC()).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return transactionsToDomain(rows), nil
}

// UpdateBalanceAfter rewrites one snapshot during a replay
func (r *GormTransactionRepository) UpdateBalanceAfter(ctx context.Context, id uuid.UUID, balanceAfter decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.TransactionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance_after": shared.RoundMoney(balanceAfter),
			"updated_at":    time.Now().UTC(),
		})
	return rowsOrNotFound(result)
}

// SetStatementRef marks an entry as confirmed by a bank statement line
func (r *GormTransactionRepository) SetStatementRef(ctx context.Context, tenantID, id uuid.UUID, ref string) error {
	result := r.db.WithContext(ctx).Model(&models.TransactionModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"statement_ref": ref,
			"updated_at":    time.Now().UTC(),
		})
	return rowsOrNotFound(result)
}

// Delete removes a ledger entry
func (r *GormTransactionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.TransactionModel{})
	return rowsOrNotFound(result)
}

func transactionsToDomain(rows []models.TransactionModel) []*finance.Transaction {
	txns := make([]*finance.Transaction, len(rows))
	for i := range rows {
		txns[i] = rows[i].ToDomain()
	}
	return txns
}

// Ensure GormTransactionRepository implements finance.TransactionRepository
var _ finance.TransactionRepository = (*GormTransactionRepository)(nil)
