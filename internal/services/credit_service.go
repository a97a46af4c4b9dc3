package services

import (
	"context"

	"companion-api/internal/credit"
	"companion-api/internal/logger"
	"companion-api/internal/models"
	"companion-api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreditService wraps the pure metering engine with persistence. Every
// mutation runs under a FOR UPDATE lock on the user row, so two concurrent
// debits against one account serialize instead of double-spending.
type CreditService interface {
	TryDebit(ctx context.Context, userID uuid.UUID, eventType string, cost decimal.Decimal, kind string, modelName string) (credit.DebitResult, error)
	Status(ctx context.Context, userID uuid.UUID) (*credit.StatusSnapshot, error)
}

type creditService struct {
	userRepo repository.UserRepository
	ledger   repository.CreditUsageRepository
	engine   *credit.Engine
	clock    credit.Clock
	emails   EmailService
}

func NewCreditService(
	userRepo repository.UserRepository,
	ledger repository.CreditUsageRepository,
	engine *credit.Engine,
	clock credit.Clock,
	emails EmailService,
) CreditService {
	if clock == nil {
		clock = credit.SystemClock{}
	}
	return &creditService{
		userRepo: userRepo,
		ledger:   ledger,
		engine:   engine,
		clock:    clock,
		emails:   emails,
	}
}

func (s *creditService) TryDebit(ctx context.Context, userID uuid.UUID, eventType string, cost decimal.Decimal, kind string, modelName string) (credit.DebitResult, error) {
	var res credit.DebitResult
	var snapshot models.User

	err := s.userRepo.WithLockedUser(ctx, userID, func(user *models.User) (bool, error) {
		res = s.engine.TryDebit(user)
		snapshot = *user
		return res.OK || res.Refilled, nil
	})
	if err != nil {
		return credit.DebitResult{}, err
	}

	if res.OK {
		entry := &models.CreditUsage{
			UserID:    userID,
			EventType: models.ParseEventType(eventType),
			Cost:      cost,
			Kind:      models.ParseUsageKind(kind),
			Model:     modelName,
			CreatedAt: s.clock.Now(),
		}
		// The ledger is best-effort audit. The debit is already committed
		// and stands even if this append fails.
		if err := s.ledger.Append(ctx, entry); err != nil {
			logger.Logger.WithFields(logrus.Fields{
				"error":      err,
				"user_id":    userID,
				"event_type": eventType,
			}).Error("Failed to append credit usage entry")
		}
	}

	if res.LockTripped && s.emails != nil {
		go s.emails.SendThreadLockNotice(&snapshot, s.engine.NextRefillAt(&snapshot))
	}

	return res, nil
}

func (s *creditService) Status(ctx context.Context, userID uuid.UUID) (*credit.StatusSnapshot, error) {
	var snap credit.StatusSnapshot

	err := s.userRepo.WithLockedUser(ctx, userID, func(user *models.User) (bool, error) {
		refilled := s.engine.ReconcileRefill(user)
		snap = s.engine.Snapshot(user)
		return refilled, nil
	})
	if err != nil {
		return nil, err
	}

	return &snap, nil
}
