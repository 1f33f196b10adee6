package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormNotificationRepository implements finance.NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Claim inserts the claim with ON CONFLICT DO NOTHING. Inside a transaction a
// concurrent claimant blocks on the unique index until the first one commits
// or rolls back, so exactly one delivery sees claimed == true.
func (r *GormNotificationRepository) Claim(ctx context.Context, claim *finance.NotificationClaim) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(models.ProcessedNotificationModelFromDomain(claim))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Exists reports whether the external id was already claimed
func (r *GormNotificationRepository) Exists(ctx context.Context, tenantID uuid.UUID, externalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedNotificationModel{}).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Count(&count).Error
	return count > 0, err
}

// Ensure GormNotificationRepository implements finance.NotificationRepository
var _ finance.NotificationRepository = (*GormNotificationRepository)(nil)
