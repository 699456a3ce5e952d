package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
)

// PaymentEvent is the normalized shape of a payment provider confirmation.
type PaymentEvent struct {
	SessionID   string
	PaymentID   *string
	PayerEmail  string
	AmountCents int

	// UserID comes from checkout metadata when the buyer was logged in.
	// Nil means the account must be resolved (or created) from PayerEmail.
	UserID    *uuid.UUID
	CourseID  uuid.UUID
	Finalized bool
	Metadata  datatypes.JSON
}

type PaymentOutcome struct {
	UserID        uuid.UUID
	UserEmail     string
	PurchaseID    uuid.UUID
	IsNewPurchase bool

	// IsNewUser and TempPassword feed the welcome-email sender (out of
	// scope here). TempPassword is never persisted or logged.
	IsNewUser    bool
	TempPassword string
}

// CheckoutService glues account provisioning to purchase reconciliation for
// webhook deliveries. Each sub-step is idempotent, so a redelivered event
// replays harmlessly: the user lookup finds the existing row and the
// reconciler returns the recorded purchase.
type CheckoutService interface {
	OnPaymentConfirmed(ctx context.Context, event PaymentEvent) (*PaymentOutcome, error)
}

type checkoutService struct {
	log       *logger.Logger
	accounts  AccountService
	purchases PurchaseService
}

func NewCheckoutService(log *logger.Logger, accounts AccountService, purchases PurchaseService) CheckoutService {
	return &checkoutService{
		log:       log.With("service", "CheckoutService"),
		accounts:  accounts,
		purchases: purchases,
	}
}

func (s *checkoutService) OnPaymentConfirmed(ctx context.Context, event PaymentEvent) (*PaymentOutcome, error) {
	if event.SessionID == "" {
		return nil, apierr.Invalid(errors.New("payment event missing session reference"))
	}
	if event.CourseID == uuid.Nil {
		return nil, apierr.Invalid(errors.New("payment event missing course id"))
	}

	outcome := &PaymentOutcome{}

	if event.UserID != nil && *event.UserID != uuid.Nil {
		outcome.UserID = *event.UserID
	} else {
		if event.PayerEmail == "" {
			return nil, apierr.Invalid(errors.New("payment event has neither user id nor payer email"))
		}
		provisioned, err := s.accounts.FindOrCreateUser(ctx, FindOrCreateInput{
			Email:                 event.PayerEmail,
			ProvisionedViaPayment: true,
		})
		if err != nil {
			return nil, err
		}
		outcome.UserID = provisioned.UserID
		outcome.IsNewUser = provisioned.IsNewUser
		outcome.TempPassword = provisioned.TempPassword
	}

	reconciled, err := s.purchases.ReconcilePurchase(ctx, ReconcileInput{
		UserID:           outcome.UserID,
		CourseID:         event.CourseID,
		SessionID:        event.SessionID,
		PaymentID:        event.PaymentID,
		AmountCents:      event.AmountCents,
		PaymentFinalized: event.Finalized,
		Metadata:         event.Metadata,
	})
	if err != nil {
		return nil, err
	}
	outcome.UserEmail = reconciled.UserEmail
	outcome.PurchaseID = reconciled.PurchaseID
	outcome.IsNewPurchase = reconciled.IsNewPurchase

	s.log.Info("Payment confirmation processed",
		"course_id", event.CourseID,
		"purchase_id", outcome.PurchaseID,
		"new_purchase", outcome.IsNewPurchase,
		"new_user", outcome.IsNewUser,
	)
	return outcome, nil
}
