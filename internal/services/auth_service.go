package services

import (
	"context"
	"errors"

	"companion-api/internal/models"
	pkgerrors "companion-api/internal/pkg/errors"
	"companion-api/internal/repository"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

type contextKey string

const UserContextKey contextKey = "user"

var ErrInvalidToken = errors.New("invalid token")

// AuthService resolves bearer tokens issued by the identity provider into
// local account rows, and keeps those rows in sync with provider webhooks.
type AuthService interface {
	VerifyToken(token string) (*models.User, error)
	VerifyTokenAdmin(token string) (*models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	SyncClerkUser(ctx context.Context, clerkUserID, email, username, firstName, lastName string) (*models.User, bool, error)
	DeleteClerkUser(ctx context.Context, clerkUserID string) error
}

type authService struct {
	userRepo       repository.UserRepository
	jwtSecret      string
	initialCredits int
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, initialCredits int) AuthService {
	return &authService{
		userRepo:       userRepo,
		jwtSecret:      jwtSecret,
		initialCredits: initialCredits,
	}
}

func (s *authService) VerifyToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	// Clerk session tokens carry the user id in the standard subject claim.
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByClerkID(context.Background(), sub)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	return user, nil
}

func (s *authService) VerifyTokenAdmin(tokenString string) (*models.User, error) {
	user, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func (s *authService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *authService) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	return s.userRepo.GetByStripeCustomerID(ctx, customerID)
}

// SyncClerkUser upserts an account from a Clerk user.created/user.updated
// event. New accounts start on the free tier with the full allotment; the
// reported bool is true when a row was created.
func (s *authService) SyncClerkUser(ctx context.Context, clerkUserID, email, username, firstName, lastName string) (*models.User, bool, error) {
	user, err := s.userRepo.GetByClerkID(ctx, clerkUserID)
	if err == nil {
		user.Email = email
		user.Username = username
		user.FirstName = firstName
		user.LastName = lastName
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, false, err
	}

	user = &models.User{
		ClerkUserID: clerkUserID,
		Email:       email,
		Username:    username,
		FirstName:   firstName,
		LastName:    lastName,
		IsActive:    true,
		Membership:  models.FreeMembership,
		Credits:     s.initialCredits,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *authService) DeleteClerkUser(ctx context.Context, clerkUserID string) error {
	return s.userRepo.Delete(ctx, clerkUserID)
}

func WithUserContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}
