package payments_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/app/policies"
	"staysettle/internal/app/services/payments"
	"staysettle/internal/app/services/servicetest"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

func initialize(t *testing.T, h *servicetest.Harness, b *booking.Booking) string {
	t.Helper()
	res, err := h.Payments.Initialize(context.Background(), payments.InitializeInput{BookingID: string(b.ID), GuestID: b.GuestID, Email: "guest@example.com"})
	require.NoError(t, err)
	return res.Reference
}

func chargeSuccess(reference string, amount int64) string {
	return fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":%d,"currency":"NGN","status":"success"}}`, reference, amount)
}

func TestInitializeStartsProcessing(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)

	res, err := h.Payments.Initialize(context.Background(), payments.InitializeInput{BookingID: string(b.ID), GuestID: "guest-1", Email: "guest@example.com"})
	require.NoError(t, err)
	assert.Contains(t, res.Reference, "bk_"+string(b.ID)+"_")
	assert.NotEmpty(t, res.AuthorizationURL)

	require.Len(t, h.Gateway.Charges, 1)
	assert.Equal(t, money.Must(33000, "NGN"), h.Gateway.Charges[0].Amount)
	assert.Equal(t, string(b.ID), h.Gateway.Charges[0].Metadata["booking_id"])

	p := h.Payment(t, b.ID)
	assert.Equal(t, payment.StatusProcessing, p.Status)
	assert.Equal(t, res.Reference, p.Reference)

	_, err = h.Payments.Initialize(context.Background(), payments.InitializeInput{BookingID: string(b.ID), GuestID: "guest-1", Email: "guest@example.com"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}

func TestInitializeGuards(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ctx := context.Background()

	_, err := h.Payments.Initialize(ctx, payments.InitializeInput{BookingID: string(b.ID), GuestID: "guest-1"})
	assert.ErrorIs(t, err, fault.ErrValidation)

	_, err = h.Payments.Initialize(ctx, payments.InitializeInput{BookingID: string(b.ID), GuestID: "someone-else", Email: "x@example.com"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	h.Gateway.Fail(errors.New("connection reset"))
	_, err = h.Payments.Initialize(ctx, payments.InitializeInput{BookingID: string(b.ID), GuestID: "guest-1", Email: "x@example.com"})
	assert.ErrorIs(t, err, fault.ErrGateway)
	assert.Equal(t, payment.StatusPending, h.Payment(t, b.ID).Status)
}

func TestWebhookChargeSuccessConfirmsOnce(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)

	body := chargeSuccess(ref, 33000)
	first, err := h.Webhook(body)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeProcessed, first.Outcome)

	second, err := h.Webhook(body)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeDuplicate, second.Outcome)

	// A redelivery with a different body bypasses the inbox but still changes nothing.
	third, err := h.Webhook(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":33000,"status":"success","paid_at":"later"}}`, ref))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeNoop, third.Outcome)

	p := h.Payment(t, b.ID)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.NotEmpty(t, p.GatewayResponse)
	assert.Equal(t, booking.StatusConfirmed, h.Booking(t, b.ID).Status)
	list := h.HostEarnings(t, "host-1")
	require.Len(t, list, 1)
	assert.Equal(t, earning.StatusPending, list[0].Status)
	assert.Equal(t, int64(30000), list[0].Net.Amount)
	assert.Equal(t, 2, countTemplate(h, policies.TemplateBookingConfirmed))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := servicetest.New(t)
	body := []byte(chargeSuccess("ref", 1))
	_, err := h.Payments.HandleWebhook(context.Background(), body, "deadbeef")
	assert.ErrorIs(t, err, fault.ErrInvalidSignature)
	_, err = h.Payments.HandleWebhook(context.Background(), body, "")
	assert.ErrorIs(t, err, fault.ErrInvalidSignature)
}

func TestWebhookMalformedAndUnknown(t *testing.T) {
	h := servicetest.New(t)
	_, err := h.Webhook("not json")
	assert.ErrorIs(t, err, fault.ErrValidation)

	res, err := h.Webhook(`{"event":"subscription.create","data":{}}`)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeIgnored, res.Outcome)

	res, err = h.Webhook(chargeSuccess("unknown-ref", 100))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeNoop, res.Outcome)
}

func TestWebhookUnderpaidChargeIsIgnored(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)

	res, err := h.Webhook(chargeSuccess(ref, 100))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeIgnored, res.Outcome)
	assert.Equal(t, payment.StatusProcessing, h.Payment(t, b.ID).Status)
}

func TestWebhookChargeInOtherCurrencyIsIgnored(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)

	res, err := h.Webhook(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":33000,"currency":"USD","status":"success"}}`, ref))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeIgnored, res.Outcome)
	assert.Equal(t, payment.StatusProcessing, h.Payment(t, b.ID).Status)
	assert.Equal(t, booking.StatusPending, h.Booking(t, b.ID).Status)

	res, err = h.Webhook(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":33000,"currency":"ngn","status":"success"}}`, ref))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeProcessed, res.Outcome)
	assert.Equal(t, payment.StatusPaid, h.Payment(t, b.ID).Status)
}

func TestWebhookChargeFailedCancelsBooking(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)

	_, err := h.Webhook(fmt.Sprintf(`{"event":"charge.failed","data":{"reference":%q,"gateway_response":"Declined"}}`, ref))
	require.NoError(t, err)

	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, "Declined", got.Cancellation.Reason)
	assert.Equal(t, payment.StatusFailed, h.Payment(t, b.ID).Status)
	assert.True(t, h.Property(t, "prop-1").IsAvailable(b.Range))
	assert.Contains(t, h.Notifier.Templates("guest-1"), policies.TemplatePaymentFailed)
}

func TestWebhookRefundProcessed(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := h.Pay(t, b)

	// A refund issued from the gateway dashboard cancels the active booking.
	_, err := h.Webhook(fmt.Sprintf(`{"event":"refund.processed","data":{"transaction_reference":%q,"refund_reference":"rf-dash","amount":33000}}`, ref))
	require.NoError(t, err)

	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.RefundProcessed, got.Cancellation.RefundStatus)
	assert.Equal(t, "rf-dash", got.Cancellation.RefundRef)
	assert.Equal(t, payment.StatusRefunded, h.Payment(t, b.ID).Status)
	assert.Equal(t, earning.StatusCancelled, h.Earning(t, b.ID).Status)
	assert.True(t, h.Property(t, "prop-1").IsAvailable(b.Range))
}

func TestVerifyAppliesGatewayState(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)
	ctx := context.Background()

	res, err := h.Payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, string(policies.ChargePending), res.ChargeStatus)
	assert.Equal(t, payment.StatusProcessing, res.PaymentStatus)

	h.Gateway.Verifications[ref] = policies.Verification{Reference: ref, Status: policies.ChargeSuccess, Amount: money.Must(33000, "NGN"), Raw: []byte(`{}`)}
	res, err = h.Payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, res.PaymentStatus)
	assert.Equal(t, booking.StatusConfirmed, res.BookingStatus)

	_, err = h.Payments.Verify(ctx, "")
	assert.ErrorIs(t, err, fault.ErrValidation)
	_, err = h.Payments.Verify(ctx, "missing")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestVerifyRejectsUnderpayment(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)
	h.Gateway.Verifications[ref] = policies.Verification{Reference: ref, Status: policies.ChargeSuccess, Amount: money.Must(1000, "NGN")}

	_, err := h.Payments.Verify(context.Background(), ref)
	assert.ErrorIs(t, err, fault.ErrValidation)
	assert.Equal(t, payment.StatusProcessing, h.Payment(t, b.ID).Status)
}

func TestVerifyRejectsChargeInOtherCurrency(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)
	h.Gateway.Verifications[ref] = policies.Verification{Reference: ref, Status: policies.ChargeSuccess, Amount: money.Must(33000, "USD")}

	_, err := h.Payments.Verify(context.Background(), ref)
	assert.ErrorIs(t, err, fault.ErrValidation)
	assert.Equal(t, "amount_mismatch", fault.Code(err))
	assert.Equal(t, payment.StatusProcessing, h.Payment(t, b.ID).Status)
}

func TestChargeSettledAfterFailureIsRefundedInFull(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)

	_, err := h.Webhook(fmt.Sprintf(`{"event":"charge.failed","data":{"reference":%q,"gateway_response":"Declined"}}`, ref))
	require.NoError(t, err)
	require.Equal(t, payment.StatusFailed, h.Payment(t, b.ID).Status)

	res, err := h.Webhook(chargeSuccess(ref, 33000))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeProcessed, res.Outcome)

	require.Equal(t, 1, h.Gateway.RefundCount())
	assert.Equal(t, int64(33000), h.Gateway.Refunds[0].Amount.Amount)
	assert.Equal(t, ref, h.Gateway.Refunds[0].TransactionReference)
	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.RefundInitiated, got.Cancellation.RefundStatus)
	assert.Equal(t, int64(33000), got.Cancellation.RefundAmount)
	p := h.Payment(t, b.ID)
	assert.Equal(t, payment.StatusRefunded, p.Status)
	assert.NotEmpty(t, p.GatewayResponse)
	assert.Empty(t, h.HostEarnings(t, "host-1"))

	// Redelivery of the same capture changes nothing.
	res, err = h.Webhook(chargeSuccess(ref, 33000) + " ")
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeNoop, res.Outcome)
	assert.Equal(t, 1, h.Gateway.RefundCount())
}

func TestLateChargeIsRefundedInFull(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "strict", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := initialize(t, h, b)

	_, err := h.Bookings.Cancel(context.Background(), bookingsCancel(b))
	require.NoError(t, err)

	res, err := h.Webhook(chargeSuccess(ref, 33000))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeProcessed, res.Outcome)

	require.Len(t, h.Gateway.Refunds, 1)
	assert.Equal(t, int64(33000), h.Gateway.Refunds[0].Amount.Amount)
	assert.Equal(t, ref, h.Gateway.Refunds[0].TransactionReference)
	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.RefundInitiated, got.Cancellation.RefundStatus)
	assert.Equal(t, payment.StatusRefunded, h.Payment(t, b.ID).Status)
	assert.Empty(t, h.HostEarnings(t, "host-1"))
}

func countTemplate(h *servicetest.Harness, template string) int {
	n := 0
	for _, s := range h.Notifier.Sent {
		if s.Template == template {
			n++
		}
	}
	return n
}
