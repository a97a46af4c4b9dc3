package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"companion-api/internal/credit"
	"companion-api/internal/models"
	"companion-api/internal/pkg/errors"
	"companion-api/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatService struct {
	sendErr error
	message *models.Message
}

func (s *stubChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	return nil, nil
}

func (s *stubChatService) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error) {
	return nil, nil
}

func (s *stubChatService) RenameConversation(ctx context.Context, userID, conversationID uuid.UUID, title string) error {
	return nil
}

func (s *stubChatService) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return nil
}

func (s *stubChatService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Message, error) {
	return nil, nil
}

func (s *stubChatService) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, input services.AnalysisInput) (*models.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return s.message, nil
}

func (s *stubChatService) Analyze(ctx context.Context, userID, conversationID uuid.UUID, input services.AnalysisInput) (*models.Message, error) {
	return s.SendMessage(ctx, userID, conversationID, input)
}

func (s *stubChatService) FavoriteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return nil
}

func (s *stubChatService) UnfavoriteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return nil
}

func (s *stubChatService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.FavoriteConversation, error) {
	return nil, nil
}

type stubCreditService struct {
	snapshot credit.StatusSnapshot
}

func (s *stubCreditService) TryDebit(ctx context.Context, userID uuid.UUID, eventType string, cost decimal.Decimal, kind string, modelName string) (credit.DebitResult, error) {
	return credit.DebitResult{}, nil
}

func (s *stubCreditService) Status(ctx context.Context, userID uuid.UUID) (*credit.StatusSnapshot, error) {
	snap := s.snapshot
	return &snap, nil
}

func sendMessageRecorder(t *testing.T, sendErr error, snapshot credit.StatusSnapshot) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewChatHandler(&stubChatService{sendErr: sendErr}, &stubCreditService{snapshot: snapshot})

	user := &models.User{ID: uuid.New(), Membership: models.FreeMembership}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/x/messages", strings.NewReader(`{"text":"hi"}`))
	req = req.WithContext(services.WithUserContext(req.Context(), user))
	req = mux.SetURLVars(req, map[string]string{"id": uuid.New().String()})

	rec := httptest.NewRecorder()
	handler.SendMessage(rec, req)
	return rec
}

func TestSendMessageDepletedReturns402(t *testing.T) {
	refillAt := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	rec := sendMessageRecorder(t, errors.ErrInsufficientCredits, credit.StatusSnapshot{
		IsOutOfCredits: true,
		NextRefillAt:   &refillAt,
	})

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Insufficient credits", body["error"])
	assert.Equal(t, refillAt.Format(time.RFC3339), body["next_refill_at"])
}

func TestSendMessageLockedReturns429(t *testing.T) {
	refillAt := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)
	rec := sendMessageRecorder(t, errors.ErrThreadDepthLocked, credit.StatusSnapshot{
		IsOutOfCredits:    true,
		ThreadDepthLocked: true,
		NextRefillAt:      &refillAt,
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Account temporarily rate limited", body["error"])
	assert.Equal(t, refillAt.Format(time.RFC3339), body["next_refill_at"])
}

func TestSendMessageProviderDownReturns502(t *testing.T) {
	rec := sendMessageRecorder(t, errors.ErrAnalysisProviderDown, credit.StatusSnapshot{})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSendMessageSuccessReturnsAssistantReply(t *testing.T) {
	handler := NewChatHandler(&stubChatService{
		message: &models.Message{Sender: models.SenderAssistant, TextContent: "hello there"},
	}, &stubCreditService{})

	user := &models.User{ID: uuid.New()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/x/messages", strings.NewReader(`{"text":"hi"}`))
	req = req.WithContext(services.WithUserContext(req.Context(), user))
	req = mux.SetURLVars(req, map[string]string{"id": uuid.New().String()})

	rec := httptest.NewRecorder()
	handler.SendMessage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, models.SenderAssistant, msg.Sender)
	assert.Equal(t, "hello there", msg.TextContent)
}
