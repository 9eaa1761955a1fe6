// Package payments exposes charge initialization and verification on the command bus.
package payments

import (
	"context"

	"staysettle/internal/app/commands"
	"staysettle/internal/app/services/payments"
	"staysettle/internal/domain/auth"
)

const (
	initializePaymentKey = "payment.initialize"
	verifyPaymentKey     = "payment.verify"
)

type InitializePaymentCommand struct {
	BookingID string `validate:"required"`
	GuestID   string `validate:"required"`
	Email     string `validate:"required,email"`
	Method    string `validate:"omitempty,oneof=card bank_transfer ussd"`
}

func (c InitializePaymentCommand) Key() string { return initializePaymentKey }

func (c InitializePaymentCommand) RequiredRole() auth.Role { return auth.RoleGuest }

type InitializePaymentHandler struct {
	Service *payments.Service
}

func (h *InitializePaymentHandler) Handle(ctx context.Context, cmd InitializePaymentCommand) (payments.InitializeResult, error) {
	return h.Service.Initialize(ctx, payments.InitializeInput{
		BookingID: cmd.BookingID,
		GuestID:   cmd.GuestID,
		Email:     cmd.Email,
		Method:    cmd.Method,
	})
}

// VerifyPaymentCommand asks the gateway for the charge outcome and applies it.
type VerifyPaymentCommand struct {
	Reference string `validate:"required"`
}

func (c VerifyPaymentCommand) Key() string { return verifyPaymentKey }

type VerifyPaymentHandler struct {
	Service *payments.Service
}

func (h *VerifyPaymentHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (payments.VerifyResult, error) {
	return h.Service.Verify(ctx, cmd.Reference)
}

func Register(bus *commands.InMemoryBus, svc *payments.Service) {
	commands.RegisterHandler[InitializePaymentCommand, payments.InitializeResult](bus, initializePaymentKey, &InitializePaymentHandler{Service: svc})
	commands.RegisterHandler[VerifyPaymentCommand, payments.VerifyResult](bus, verifyPaymentKey, &VerifyPaymentHandler{Service: svc})
}
