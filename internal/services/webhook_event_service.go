package services

import (
	"context"
	"time"

	"companion-api/internal/models"
	"companion-api/internal/repository"
)

type WebhookEventService interface {
	RecordEvent(ctx context.Context, provider, eventType, externalID, userID, details string) error
	ListEvents(ctx context.Context, provider string, page, pageSize int) ([]models.WebhookEvent, int64, error)
}

type webhookEventService struct {
	repo repository.WebhookEventRepository
}

func NewWebhookEventService(repo repository.WebhookEventRepository) WebhookEventService {
	return &webhookEventService{repo: repo}
}

func (s *webhookEventService) RecordEvent(ctx context.Context, provider, eventType, externalID, userID, details string) error {
	event := &models.WebhookEvent{
		Provider:   provider,
		EventType:  eventType,
		ExternalID: externalID,
		UserID:     userID,
		Details:    details,
		ReceivedAt: time.Now(),
	}
	return s.repo.Create(ctx, event)
}

func (s *webhookEventService) ListEvents(ctx context.Context, provider string, page, pageSize int) ([]models.WebhookEvent, int64, error) {
	return s.repo.List(ctx, provider, page, pageSize)
}
