package ginserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staysettle/internal/app/commands"
	paymentapp "staysettle/internal/app/handlers/payments"
	"staysettle/internal/app/services/payments"
	"staysettle/internal/infra/gateway"
)

const maxWebhookBody = 1 << 20

// WebhookProcessor applies a signed gateway callback.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (payments.WebhookResult, error)
}

type PaymentHandler struct {
	Commands commands.Bus
	Webhooks WebhookProcessor
	Logger   *slog.Logger
}

type initializePaymentRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Method    string `json:"method"`
}

func (h PaymentHandler) Initialize(c *gin.Context) {
	guest, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req initializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := paymentapp.InitializePaymentCommand{
		BookingID: strings.TrimSpace(req.BookingID),
		GuestID:   guest.ID,
		Email:     strings.TrimSpace(req.Email),
		Method:    strings.TrimSpace(req.Method),
	}
	result, err := commands.Dispatch[paymentapp.InitializePaymentCommand, payments.InitializeResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Verify is the browser callback after checkout; it needs no principal
// because it only re-reads the charge state from the gateway.
func (h PaymentHandler) Verify(c *gin.Context) {
	cmd := paymentapp.VerifyPaymentCommand{Reference: strings.TrimSpace(c.Param("reference"))}
	result, err := commands.Dispatch[paymentapp.VerifyPaymentCommand, payments.VerifyResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Webhook answers 200 once the delivery is applied or known to be a no-op;
// any 5xx makes the gateway redeliver.
func (h PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.Webhooks.HandleWebhook(c.Request.Context(), body, c.GetHeader(gateway.SignatureHeader))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": result.Event, "outcome": result.Outcome})
}
