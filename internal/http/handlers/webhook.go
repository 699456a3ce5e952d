package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/http/response"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/services"
)

type WebhookHandler struct {
	log           *logger.Logger
	checkout      services.CheckoutService
	webhookSecret string
}

func NewWebhookHandler(log *logger.Logger, checkout services.CheckoutService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		log:           log.With("handler", "WebhookHandler"),
		checkout:      checkout,
		webhookSecret: webhookSecret,
	}
}

type paymentWebhookBody struct {
	SessionID   string         `json:"session_id" binding:"required"`
	PaymentID   *string        `json:"payment_id"`
	PayerEmail  string         `json:"payer_email"`
	AmountCents int            `json:"amount_cents"`
	Finalized   bool           `json:"finalized"`
	Metadata    paymentMeta    `json:"metadata"`
	Raw         datatypes.JSON `json:"raw"`
}

type paymentMeta struct {
	UserID   *uuid.UUID `json:"user_id"`
	CourseID uuid.UUID  `json:"course_id" binding:"required"`
}

// POST /api/webhooks/payment
//
// Delivered at-least-once by the payment provider. Any non-2xx answer makes
// the sender redeliver, so partial failures must never return 200.
func (h *WebhookHandler) PaymentConfirmed(c *gin.Context) {
	if h.webhookSecret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("bad webhook secret"))
			return
		}
	}

	var body paymentWebhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalid, err)
		return
	}

	outcome, err := h.checkout.OnPaymentConfirmed(c.Request.Context(), services.PaymentEvent{
		SessionID:   body.SessionID,
		PaymentID:   body.PaymentID,
		PayerEmail:  body.PayerEmail,
		AmountCents: body.AmountCents,
		UserID:      body.Metadata.UserID,
		CourseID:    body.Metadata.CourseID,
		Finalized:   body.Finalized,
		Metadata:    body.Raw,
	})
	if err != nil {
		h.log.Warn("Payment webhook processing failed", "session_id", body.SessionID, "error", err)
		if apierr.CodeOf(err) == apierr.CodeInvalid {
			response.RespondFromError(c, err)
			return
		}
		// Anything but a malformed event answers 503: missing users or
		// courses can be creation races, and the sender's redelivery is
		// the retry mechanism.
		response.RespondError(c, http.StatusServiceUnavailable, apierr.CodeTransient, err)
		return
	}

	// The temporary credential is handed to the welcome-email dispatcher,
	// never echoed back to the payment provider.
	response.RespondOK(c, gin.H{
		"purchase_id":  outcome.PurchaseID,
		"user_id":      outcome.UserID,
		"new_purchase": outcome.IsNewPurchase,
		"new_user":     outcome.IsNewUser,
	})
}
