package repository

import (
	"context"
	stderrors "errors"

	"companion-api/internal/models"
	"companion-api/internal/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	Delete(ctx context.Context, id uuid.UUID) error

	AppendMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	AddFavorite(ctx context.Context, userID, conversationID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID, conversationID uuid.UUID) error
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.FavoriteConversation, error)
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return errors.Wrap(err, "failed to create conversation")
	}
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).First(&conversation, "id = ?", id).Error

	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get conversation")
	}

	return &conversation, nil
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	return conversations, err
}

func (r *conversationRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("title", title)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update conversation")
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *conversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Conversation{}, "id = ?", id)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete conversation")
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *conversationRepository) AppendMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return errors.Wrap(err, "failed to create message")
		}
		// Bump the conversation so list ordering tracks activity.
		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("updated_at", message.CreatedAt).Error
	})
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *conversationRepository) AddFavorite(ctx context.Context, userID, conversationID uuid.UUID) error {
	favorite := &models.FavoriteConversation{
		UserID:         userID,
		ConversationID: conversationID,
	}
	err := r.db.WithContext(ctx).Create(favorite).Error
	if err != nil && stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.ErrAlreadyExists
	}
	return err
}

func (r *conversationRepository) RemoveFavorite(ctx context.Context, userID, conversationID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Delete(&models.FavoriteConversation{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *conversationRepository) ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.FavoriteConversation, error) {
	var favorites []models.FavoriteConversation
	err := r.db.WithContext(ctx).
		Preload("Conversation").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	return favorites, err
}
