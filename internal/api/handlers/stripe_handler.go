package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	"companion-api/internal/logger"
	"companion-api/internal/models"
	"companion-api/internal/repository"
	"companion-api/internal/services"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"
)

// StripeHandler mirrors billing state into local accounts: the webhook
// flips membership between FREE and PREMIUM, and checkout creation starts
// an upgrade. The metering policy only ever reads the mirrored tier.
type StripeHandler struct {
	authService   services.AuthService
	userRepo      repository.UserRepository
	webhookEvents services.WebhookEventService
}

func NewStripeHandler(authService services.AuthService, userRepo repository.UserRepository, webhookEvents services.WebhookEventService) *StripeHandler {
	return &StripeHandler{
		authService:   authService,
		userRepo:      userRepo,
		webhookEvents: webhookEvents,
	}
}

const (
	ErrNoStripeID     = "user doesn't have a Stripe ID"
	ErrCreateCheckout = "error creating checkout session"
)

func (h *StripeHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if user.StripeCustomerID == "" {
		http.Error(w, ErrNoStripeID, http.StatusBadRequest)
		return
	}

	priceID := os.Getenv("STRIPE_PREMIUM_PRICE_ID")
	if priceID == "" {
		http.Error(w, ErrCreateCheckout, http.StatusInternalServerError)
		return
	}

	sessionID, err := h.createStripeCheckoutSession(user.StripeCustomerID, priceID)
	if err != nil {
		http.Error(w, ErrCreateCheckout, http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

func (h *StripeHandler) createStripeCheckoutSession(customerID, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(os.Getenv("STRIPE_SUCCESS_URL")),
		CancelURL:  stripe.String(os.Getenv("STRIPE_CANCEL_URL")),
	}

	s, err := session.New(params)
	if err != nil {
		return "", err
	}

	return s.ID, nil
}

func (h *StripeHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), os.Getenv("STRIPE_WEBHOOK_SECRET"))
	if err != nil {
		logger.Logger.WithFields(logrus.Fields{"error": err}).Error("Stripe webhook signature verification failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var subscription stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		membership := models.FreeMembership
		if subscription.Status == stripe.SubscriptionStatusActive {
			membership = models.PremiumMembership
		}
		h.setMembership(r.Context(), event.Type, subscription.ID, subscription.Customer.ID, membership)

	case "customer.subscription.deleted":
		var subscription stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.setMembership(r.Context(), event.Type, subscription.ID, subscription.Customer.ID, models.FreeMembership)

	case "customer.updated":
		var customer stripe.Customer
		if err := json.Unmarshal(event.Data.Raw, &customer); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.syncCustomerEmail(r.Context(), customer.ID, customer.Email)

	default:
		logger.Logger.WithFields(logrus.Fields{"type": event.Type}).Info("Unhandled Stripe event type")
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeHandler) setMembership(ctx context.Context, eventType string, subscriptionID, customerID string, membership models.Membership) {
	user, err := h.authService.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"error":    err,
			"customer": customerID,
			"event":    eventType,
		}).Warn("Stripe event for unknown customer")
		return
	}

	if user.Membership != membership {
		if err := h.userRepo.UpdateMembership(ctx, user.ClerkUserID, membership); err != nil {
			logger.Logger.WithFields(logrus.Fields{"error": err, "user": user.ID}).Error("Failed to update membership")
			return
		}
	}

	if h.webhookEvents != nil {
		_ = h.webhookEvents.RecordEvent(ctx, "stripe", eventType, subscriptionID, user.ClerkUserID, string(membership))
	}
}

func (h *StripeHandler) syncCustomerEmail(ctx context.Context, customerID, email string) {
	user, err := h.authService.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return
	}

	if email != "" && user.Email != email {
		user.Email = email
		_ = h.userRepo.Update(ctx, user)
	}
}
