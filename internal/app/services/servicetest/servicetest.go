// Package servicetest wires the settlement services over the in-memory store
// with a scripted payment gateway, for use in tests.
package servicetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/earnings"
	"staysettle/internal/app/services/payments"
	"staysettle/internal/app/services/payouts"
	"staysettle/internal/app/services/promoter"
	"staysettle/internal/app/services/refunds"
	"staysettle/internal/app/services/reminders"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/pricing"
	"staysettle/internal/domain/property"
	"staysettle/internal/domain/shared/money"
	"staysettle/internal/infra/gateway"
	"staysettle/internal/infra/jobs"
	"staysettle/internal/infra/storage/memory"
)

const WebhookSecret = "whsec_test"

// Start is the default clock origin for every harness.
var Start = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Gateway is a scripted policies.PaymentGateway recording every call.
type Gateway struct {
	mu sync.Mutex

	ChargeErr   error
	VerifyErr   error
	RefundErr   error
	TransferErr error
	// Verifications answers VerifyCharge by reference.
	Verifications map[string]policies.Verification
	RefundStatus  string
	// BeforeRefund runs ahead of every refund request, outside the lock.
	BeforeRefund func(policies.RefundRequest)

	Charges    []policies.ChargeRequest
	Refunds    []policies.RefundRequest
	Transfers  []policies.TransferRequest
	Recipients []payout.BankDetails
}

func (g *Gateway) InitializeCharge(ctx context.Context, req policies.ChargeRequest) (policies.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ChargeErr != nil {
		return policies.Charge{}, g.ChargeErr
	}
	g.Charges = append(g.Charges, req)
	return policies.Charge{Reference: req.Reference, AuthorizationURL: "https://checkout.test/" + req.Reference, AccessCode: "ac_" + req.Reference}, nil
}

func (g *Gateway) VerifyCharge(ctx context.Context, reference string) (policies.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.VerifyErr != nil {
		return policies.Verification{}, g.VerifyErr
	}
	v, ok := g.Verifications[reference]
	if !ok {
		return policies.Verification{Reference: reference, Status: policies.ChargePending}, nil
	}
	return v, nil
}

func (g *Gateway) InitiateRefund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	g.mu.Lock()
	hook := g.BeforeRefund
	g.mu.Unlock()
	if hook != nil {
		hook(req)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return policies.RefundResult{}, g.RefundErr
	}
	g.Refunds = append(g.Refunds, req)
	status := g.RefundStatus
	if status == "" {
		status = "pending"
	}
	return policies.RefundResult{Reference: fmt.Sprintf("rf-%d", len(g.Refunds)), Status: status}, nil
}

func (g *Gateway) CreateTransferRecipient(ctx context.Context, details payout.BankDetails) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Recipients = append(g.Recipients, details)
	return fmt.Sprintf("RCP_%d", len(g.Recipients)), nil
}

func (g *Gateway) InitiateTransfer(ctx context.Context, req policies.TransferRequest) (policies.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.TransferErr != nil {
		return policies.Transfer{}, g.TransferErr
	}
	g.Transfers = append(g.Transfers, req)
	return policies.Transfer{Reference: req.Reference, TransferCode: "TRF_" + req.Reference, Status: "pending"}, nil
}

// Fail sets every gateway call to fail with err, or clears failures for nil.
func (g *Gateway) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ChargeErr, g.VerifyErr, g.RefundErr, g.TransferErr = err, err, err, err
}

func (g *Gateway) RefundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Refunds)
}

type Notification struct {
	To       string
	Template string
}

type Notifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func (n *Notifier) Send(ctx context.Context, to string, template string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{To: to, Template: template})
	return nil
}

// Templates lists what was sent to recipient, in order.
func (n *Notifier) Templates(to string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.Sent {
		if s.To == to {
			out = append(out, s.Template)
		}
	}
	return out
}

type Harness struct {
	Store    *memory.Store
	Gateway  *Gateway
	Notifier *Notifier
	Queue    *jobs.MemoryQueue
	Clock    *Clock
	Verifier gateway.HMACVerifier

	Bookings  *bookings.Service
	Payments  *payments.Service
	Payouts   *payouts.Service
	Earnings  *earnings.Service
	Promoter  *promoter.Promoter
	Reminders *reminders.Handlers
}

func New(t testing.TB) *Harness {
	t.Helper()
	clock := &Clock{now: Start}
	var seq int
	var seqMu sync.Mutex
	newID := func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	h := &Harness{
		Store:    memory.NewStore(),
		Gateway:  &Gateway{Verifications: map[string]policies.Verification{}},
		Notifier: &Notifier{},
		Clock:    clock,
		Verifier: gateway.NewHMACVerifier(WebhookSecret),
	}
	h.Queue = jobs.NewMemoryQueue(time.Minute).WithClock(clock.Now)
	encoder := outbox.JSONEventEncoder{IDGenerator: newID}
	engine := &earnings.Engine{Hold: earning.DefaultHold, Encoder: encoder, NewID: newID}
	h.Bookings = &bookings.Service{
		UoW:       h.Store,
		Pricing:   pricing.NewCalculator(10),
		Refunds:   &refunds.Executor{Gateway: h.Gateway},
		Earnings:  engine,
		Jobs:      h.Queue,
		Notifier:  h.Notifier,
		Encoder:   encoder,
		StayTimes: bookings.DefaultStayTimes(),
		Now:       clock.Now,
		NewID:     newID,
	}
	h.Payouts = &payouts.Service{UoW: h.Store, Gateway: h.Gateway, Notifier: h.Notifier, Encoder: encoder, Now: clock.Now, NewID: newID}
	h.Payments = &payments.Service{
		UoW:         h.Store,
		Gateway:     h.Gateway,
		Verifier:    h.Verifier,
		Inbox:       memory.NewInbox(),
		Bookings:    h.Bookings,
		Payouts:     h.Payouts,
		CallbackURL: "https://app.test/payments/callback",
		Encoder:     encoder,
		Now:         clock.Now,
	}
	h.Earnings = &earnings.Service{UoW: h.Store, Engine: engine, Notifier: h.Notifier, Encoder: encoder, Now: clock.Now}
	h.Promoter = &promoter.Promoter{UoW: h.Store, Earnings: h.Earnings, Bookings: h.Bookings, Now: clock.Now}
	h.Reminders = &reminders.Handlers{UoW: h.Store, Bookings: h.Bookings, Notifier: h.Notifier}
	return h
}

// SeedProperty stores a property charging nightly NGN per night with no
// extra fees under the given cancellation policy.
func (h *Harness) SeedProperty(t testing.TB, id, host, policy string, nightly int64) *property.Property {
	t.Helper()
	p, err := property.New(property.CreateParams{
		ID:                 property.PropertyID(id),
		Host:               property.HostID(host),
		Title:              id,
		CancellationPolicy: policy,
		Pricing:            property.Pricing{Nightly: money.Must(nightly, "NGN"), MaxGuests: 4},
		Now:                h.Clock.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, uow.Run(context.Background(), h.Store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Properties().Save(ctx, p)
	}))
	return p
}

// Day returns midnight UTC days after the harness start.
func Day(days int) time.Time {
	d := Start.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Book creates a booking for guest checking in after the given number of days.
func (h *Harness) Book(t testing.TB, propertyID, guest string, checkInDay, nights int) *booking.Booking {
	t.Helper()
	b, err := h.Bookings.Create(context.Background(), bookings.CreateInput{
		GuestID:    guest,
		PropertyID: propertyID,
		CheckIn:    Day(checkInDay),
		CheckOut:   Day(checkInDay + nights),
		Guests:     booking.Guests{Adults: 1},
	})
	require.NoError(t, err)
	return b
}

// Pay initializes the booking's charge and confirms it directly, returning
// the charge reference.
func (h *Harness) Pay(t testing.TB, b *booking.Booking) string {
	t.Helper()
	ctx := context.Background()
	res, err := h.Payments.Initialize(ctx, payments.InitializeInput{BookingID: string(b.ID), GuestID: b.GuestID, Email: b.GuestID + "@example.com"})
	require.NoError(t, err)
	_, err = h.Bookings.ConfirmPayment(ctx, bookings.ConfirmInput{BookingID: string(b.ID), Reference: res.Reference})
	require.NoError(t, err)
	return res.Reference
}

// Webhook signs body the way the gateway does and delivers it.
func (h *Harness) Webhook(body string) (payments.WebhookResult, error) {
	return h.Payments.HandleWebhook(context.Background(), []byte(body), h.Verifier.Sign([]byte(body)))
}

func (h *Harness) Booking(t testing.TB, id booking.BookingID) *booking.Booking {
	t.Helper()
	var b *booking.Booking
	require.NoError(t, h.read(func(ctx context.Context, unit uow.UnitOfWork) (err error) {
		b, err = unit.Bookings().ByID(ctx, id)
		return err
	}))
	return b
}

func (h *Harness) Payment(t testing.TB, bookingID booking.BookingID) *payment.Payment {
	t.Helper()
	var p *payment.Payment
	require.NoError(t, h.read(func(ctx context.Context, unit uow.UnitOfWork) (err error) {
		p, err = unit.Payments().ByBooking(ctx, string(bookingID))
		return err
	}))
	return p
}

func (h *Harness) Earning(t testing.TB, bookingID booking.BookingID) *earning.Earning {
	t.Helper()
	var e *earning.Earning
	require.NoError(t, h.read(func(ctx context.Context, unit uow.UnitOfWork) (err error) {
		e, err = unit.Earnings().ByBooking(ctx, string(bookingID))
		return err
	}))
	return e
}

func (h *Harness) HostEarnings(t testing.TB, hostID string) []*earning.Earning {
	t.Helper()
	list, err := h.Earnings.List(context.Background(), earning.Filter{HostID: hostID})
	require.NoError(t, err)
	return list
}

func (h *Harness) Property(t testing.TB, id string) *property.Property {
	t.Helper()
	var p *property.Property
	require.NoError(t, h.read(func(ctx context.Context, unit uow.UnitOfWork) (err error) {
		p, err = unit.Properties().ByID(ctx, property.PropertyID(id))
		return err
	}))
	return p
}

func (h *Harness) read(fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	return uow.Run(context.Background(), h.Store, uow.TxOptions{ReadOnly: true}, fn)
}
