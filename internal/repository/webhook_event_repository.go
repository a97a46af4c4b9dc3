package repository

import (
	"context"

	"companion-api/internal/models"

	"gorm.io/gorm"
)

type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	List(ctx context.Context, provider string, page, pageSize int) ([]models.WebhookEvent, int64, error)
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *webhookEventRepository) List(ctx context.Context, provider string, page, pageSize int) ([]models.WebhookEvent, int64, error) {
	var events []models.WebhookEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WebhookEvent{})
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("received_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error

	return events, total, err
}
