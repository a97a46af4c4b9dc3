package services

import (
	"context"
	"encoding/json"

	"companion-api/internal/models"
	"companion-api/internal/pkg/errors"
	"companion-api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChatService owns conversations and messages and is the main consumer of
// the credit meter: one debit per successful provider call, never more.
type ChatService interface {
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error)
	RenameConversation(ctx context.Context, userID, conversationID uuid.UUID, title string) error
	DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Message, error)
	SendMessage(ctx context.Context, userID, conversationID uuid.UUID, input AnalysisInput) (*models.Message, error)
	Analyze(ctx context.Context, userID, conversationID uuid.UUID, input AnalysisInput) (*models.Message, error)
	FavoriteConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	UnfavoriteConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.FavoriteConversation, error)
}

type chatService struct {
	conversations repository.ConversationRepository
	credits       CreditService
	provider      AnalysisService
	cache         CacheService
}

func NewChatService(
	conversations repository.ConversationRepository,
	credits CreditService,
	provider AnalysisService,
	cache CacheService,
) ChatService {
	return &chatService{
		conversations: conversations,
		credits:       credits,
		provider:      provider,
		cache:         cache,
	}
}

func (s *chatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	key := conversationListCacheKey(userID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var conversations []models.Conversation
			if err := json.Unmarshal([]byte(cached), &conversations); err == nil {
				return conversations, nil
			}
		}
	}

	conversations, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.SetDefault(ctx, key, conversations)
	}
	return conversations, nil
}

func (s *chatService) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error) {
	if title == "" {
		return nil, errors.ErrInvalidInput
	}
	conversation := &models.Conversation{
		UserID: userID,
		Title:  title,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	s.invalidateConversationCache(ctx, userID)
	return conversation, nil
}

func (s *chatService) RenameConversation(ctx context.Context, userID, conversationID uuid.UUID, title string) error {
	if title == "" {
		return errors.ErrInvalidInput
	}
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.conversations.UpdateTitle(ctx, conversationID, title); err != nil {
		return err
	}
	s.invalidateConversationCache(ctx, userID)
	return nil
}

func (s *chatService) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return err
	}
	s.invalidateConversationCache(ctx, userID)
	return nil
}

func (s *chatService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Message, error) {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.conversations.ListMessages(ctx, conversationID)
}

// SendMessage stores the user message, spends one credit, and calls the
// provider. The debit happens before the provider call; a provider failure
// after a successful debit is surfaced to the caller with the user message
// already persisted.
func (s *chatService) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, input AnalysisInput) (*models.Message, error) {
	return s.gatedProviderCall(ctx, userID, conversationID, input, string(models.EventTypeMessage))
}

// Analyze is the analysis endpoint variant: same gating, analysis payload
// attached to the assistant message.
func (s *chatService) Analyze(ctx context.Context, userID, conversationID uuid.UUID, input AnalysisInput) (*models.Message, error) {
	eventType := string(models.EventTypeAnalysis)
	if input.ImageURL != "" {
		eventType = string(models.EventTypeImageAnalysis)
	}
	return s.gatedProviderCall(ctx, userID, conversationID, input, eventType)
}

func (s *chatService) gatedProviderCall(ctx context.Context, userID, conversationID uuid.UUID, input AnalysisInput, eventType string) (*models.Message, error) {
	conversation, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	res, err := s.credits.TryDebit(ctx, userID, eventType, decimal.NewFromInt(1), string(models.KindMonthlyCredits), s.provider.ModelName())
	if err != nil {
		return nil, err
	}
	if !res.OK {
		if res.ThreadLocked {
			return nil, errors.ErrThreadDepthLocked
		}
		return nil, errors.ErrInsufficientCredits
	}

	inputType := models.InputTypeText
	if input.ImageURL != "" {
		inputType = models.InputTypeImageUpload
	}
	userMessage := &models.Message{
		ConversationID: conversation.ID,
		Sender:         models.SenderUser,
		InputType:      inputType,
		TextContent:    input.Text,
		ImageURL:       input.ImageURL,
	}
	if err := s.conversations.AppendMessage(ctx, userMessage); err != nil {
		return nil, err
	}

	result, err := s.provider.Analyze(ctx, input)
	if err != nil {
		return nil, err
	}

	assistantMessage := &models.Message{
		ConversationID: conversation.ID,
		Sender:         models.SenderAssistant,
		InputType:      models.InputTypeText,
		TextContent:    result.Reply,
		AnalysisData:   models.JSON(result.Analysis),
	}
	if err := s.conversations.AppendMessage(ctx, assistantMessage); err != nil {
		return nil, err
	}

	s.invalidateConversationCache(ctx, userID)
	return assistantMessage, nil
}

func (s *chatService) FavoriteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.conversations.AddFavorite(ctx, userID, conversationID)
}

func (s *chatService) UnfavoriteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return s.conversations.RemoveFavorite(ctx, userID, conversationID)
}

func (s *chatService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.FavoriteConversation, error) {
	return s.conversations.ListFavorites(ctx, userID)
}

func (s *chatService) ownedConversation(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, errors.ErrNotFound
	}
	return conversation, nil
}

func (s *chatService) invalidateConversationCache(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, conversationListCacheKey(userID))
}

func conversationListCacheKey(userID uuid.UUID) string {
	return "conversations:" + userID.String()
}
