package repository

import (
	"context"
	"time"

	"companion-api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditUsageRepository is the append-only usage ledger. Rows are created
// once per successful debit and never mutated.
type CreditUsageRepository interface {
	Append(ctx context.Context, entry *models.CreditUsage) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.CreditUsage, int64, error)
	ListSince(ctx context.Context, since time.Time, page, pageSize int) ([]models.CreditUsage, int64, error)
}

type creditUsageRepository struct {
	db *gorm.DB
}

func NewCreditUsageRepository(db *gorm.DB) CreditUsageRepository {
	return &creditUsageRepository{db: db}
}

func (r *creditUsageRepository) Append(ctx context.Context, entry *models.CreditUsage) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *creditUsageRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CreditUsage{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *creditUsageRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.CreditUsage, int64, error) {
	var entries []models.CreditUsage
	var total int64

	err := r.db.WithContext(ctx).Model(&models.CreditUsage{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

func (r *creditUsageRepository) ListSince(ctx context.Context, since time.Time, page, pageSize int) ([]models.CreditUsage, int64, error) {
	var entries []models.CreditUsage
	var total int64

	err := r.db.WithContext(ctx).Model(&models.CreditUsage{}).
		Where("created_at >= ?", since).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}
