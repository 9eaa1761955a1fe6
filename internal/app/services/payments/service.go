// Package payments orchestrates charges with the payment gateway and turns
// gateway callbacks into booking, refund and payout transitions.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/payouts"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/shared/fault"
)

type Service struct {
	UoW         uow.UoWFactory
	Gateway     policies.PaymentGateway
	Verifier    policies.WebhookVerifier
	Inbox       policies.Inbox
	Bookings    *bookings.Service
	Payouts     *payouts.Service
	CallbackURL string
	Encoder     outbox.EventEncoder
	Metrics     policies.Metrics
	Logger      *slog.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type InitializeInput struct {
	BookingID string
	GuestID   string
	Email     string
	Method    string
}

type InitializeResult struct {
	BookingID        string `json:"booking_id"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// Initialize opens a hosted checkout for a PENDING booking whose payment has
// not been attempted yet.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (InitializeResult, error) {
	if strings.TrimSpace(in.Email) == "" {
		return InitializeResult{}, fault.Validation("email_required", "payer email is required")
	}
	var b *booking.Booking
	var p *payment.Payment
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		if b, err = unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID)); err != nil {
			return err
		}
		p, err = unit.Payments().ByBooking(ctx, in.BookingID)
		return err
	})
	if err != nil {
		return InitializeResult{}, err
	}
	if err := checkInitializable(b, p, in.GuestID); err != nil {
		return InitializeResult{}, err
	}
	method := in.Method
	if method == "" {
		method = "card"
	}
	reference := "bk_" + string(b.ID) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	charge, err := s.Gateway.InitializeCharge(ctx, policies.ChargeRequest{
		Reference:   reference,
		Email:       in.Email,
		Amount:      p.Amount,
		CallbackURL: s.CallbackURL,
		Metadata: map[string]string{
			"booking_id":  string(b.ID),
			"payment_id":  string(p.ID),
			"property_id": string(b.PropertyID),
		},
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("charge initialization failed", "booking_id", b.ID, "error", err)
		}
		return InitializeResult{}, fault.Gateway("initialize", err)
	}
	if charge.Reference != "" {
		reference = charge.Reference
	}
	now := s.now()
	err = uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID))
		if err != nil {
			return err
		}
		p, err := unit.Payments().ByBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if err := checkInitializable(b, p, in.GuestID); err != nil {
			return err
		}
		if err := p.StartProcessing(reference, method, now); err != nil {
			return err
		}
		b.NotePaymentInitialized(reference, now)
		if err := unit.Payments().Save(ctx, p); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p)
	})
	if err != nil {
		return InitializeResult{}, err
	}
	if s.Metrics != nil {
		s.Metrics.PaymentTransition(string(payment.StatusProcessing))
	}
	if s.Logger != nil {
		s.Logger.Info("payment initialized", "booking_id", in.BookingID, "reference", reference)
	}
	return InitializeResult{
		BookingID:        in.BookingID,
		Reference:        reference,
		AuthorizationURL: charge.AuthorizationURL,
		AccessCode:       charge.AccessCode,
	}, nil
}

func checkInitializable(b *booking.Booking, p *payment.Payment, guestID string) error {
	if b.GuestID != guestID {
		return &booking.TransitionError{BookingID: b.ID, Action: "initialize_payment", From: b.Status, Actor: guestID}
	}
	if b.Status != booking.StatusPending {
		return &booking.TransitionError{BookingID: b.ID, Action: "initialize_payment", From: b.Status}
	}
	if p.Status != payment.StatusPending {
		return &fault.Error{Kind: fault.ErrInvalidTransition, Code: "payment_not_pending", Message: "payment is " + string(p.Status)}
	}
	return nil
}

type VerifyResult struct {
	Reference     string         `json:"reference"`
	BookingID     string         `json:"booking_id"`
	ChargeStatus  string         `json:"charge_status"`
	PaymentStatus payment.Status `json:"payment_status"`
	BookingStatus booking.Status `json:"booking_status"`
}

// Verify polls the gateway for a charge's final state and applies it the same
// way the webhook would.
func (s *Service) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if strings.TrimSpace(reference) == "" {
		return VerifyResult{}, fault.Validation("reference_required", "payment reference is required")
	}
	p, err := s.paymentByReference(ctx, reference)
	if err != nil {
		return VerifyResult{}, err
	}
	v, err := s.Gateway.VerifyCharge(ctx, reference)
	if err != nil {
		return VerifyResult{}, fault.Gateway("verify", err)
	}
	res := VerifyResult{Reference: reference, BookingID: p.BookingID, ChargeStatus: string(v.Status)}
	switch v.Status {
	case policies.ChargeSuccess:
		if !coversTotal(p, v.Amount.Amount, v.Amount.Currency) {
			return res, fault.Validation("amount_mismatch", "charged amount does not cover the booking total")
		}
		confirmed, err := s.Bookings.ConfirmPayment(ctx, bookings.ConfirmInput{BookingID: p.BookingID, Reference: reference, Raw: v.Raw})
		if err != nil {
			return res, err
		}
		res.BookingStatus = confirmed.Booking.Status
	case policies.ChargeFailed, policies.ChargeAbandoned:
		failed, err := s.Bookings.FailPayment(ctx, bookings.FailInput{BookingID: p.BookingID, Reason: failureReason(v.Message, string(v.Status)), Raw: v.Raw})
		if err != nil && !errors.Is(err, fault.ErrInvalidTransition) {
			return res, err
		}
		if failed != nil {
			res.BookingStatus = failed.Status
		}
	}
	latest, err := s.paymentByReference(ctx, reference)
	if err != nil {
		return res, err
	}
	res.PaymentStatus = latest.Status
	return res, nil
}

// coversTotal reports whether a captured charge pays for p. The gateway may
// omit the amount or currency; only what it reports is compared.
func coversTotal(p *payment.Payment, amount int64, currency string) bool {
	if currency != "" && !strings.EqualFold(currency, p.Amount.Currency) {
		return false
	}
	return amount <= 0 || amount >= p.Amount.Amount
}

func (s *Service) paymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	var p *payment.Payment
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		p, err = unit.Payments().ByReference(ctx, reference)
		return err
	})
	return p, err
}

func failureReason(message, fallback string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return "charge " + fallback
}
