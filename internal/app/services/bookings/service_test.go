package bookings_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/app/policies"
	"staysettle/internal/app/schedule"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/servicetest"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/fault"
)

func TestCreateReservesDatesAndOpensPayment(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)

	b := h.Book(t, "prop-1", "guest-1", 10, 3)

	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, "host-1", b.HostID)
	assert.Equal(t, int64(33000), b.Price.Total.Amount)
	assert.NotEmpty(t, b.ConversationID)
	assert.False(t, h.Property(t, "prop-1").IsAvailable(b.Range))

	p := h.Payment(t, b.ID)
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Equal(t, b.Price.Total, p.Amount)
	assert.Equal(t, []string{policies.TemplateBookingRequested}, h.Notifier.Templates("host-1"))
}

func TestCreateRejectsInvalidRequests(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	ctx := context.Background()

	_, err := h.Bookings.Create(ctx, bookings.CreateInput{GuestID: "host-1", PropertyID: "prop-1", CheckIn: servicetest.Day(1), CheckOut: servicetest.Day(2), Guests: booking.Guests{Adults: 1}})
	assert.ErrorIs(t, err, fault.ErrValidation)
	assert.Equal(t, "own_property", fault.Code(err))

	_, err = h.Bookings.Create(ctx, bookings.CreateInput{GuestID: "guest-1", PropertyID: "prop-1", CheckIn: servicetest.Day(3), CheckOut: servicetest.Day(3), Guests: booking.Guests{Adults: 1}})
	assert.ErrorIs(t, err, fault.ErrValidation)

	_, err = h.Bookings.Create(ctx, bookings.CreateInput{GuestID: "guest-1", PropertyID: "missing", CheckIn: servicetest.Day(1), CheckOut: servicetest.Day(2), Guests: booking.Guests{Adults: 1}})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = h.Bookings.Create(ctx, bookings.CreateInput{PropertyID: "prop-1", CheckIn: servicetest.Day(1), CheckOut: servicetest.Day(2)})
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestCreateDetectsOverlaps(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	h.Book(t, "prop-1", "guest-1", 10, 3)
	ctx := context.Background()

	_, err := h.Bookings.Create(ctx, bookings.CreateInput{GuestID: "guest-1", PropertyID: "prop-1", CheckIn: servicetest.Day(11), CheckOut: servicetest.Day(12), Guests: booking.Guests{Adults: 1}})
	assert.ErrorIs(t, err, booking.ErrDuplicate)
	assert.ErrorIs(t, err, fault.ErrUnavailable)

	_, err = h.Bookings.Create(ctx, bookings.CreateInput{GuestID: "guest-2", PropertyID: "prop-1", CheckIn: servicetest.Day(12), CheckOut: servicetest.Day(14), Guests: booking.Guests{Adults: 1}})
	assert.ErrorIs(t, err, fault.ErrUnavailable)
	assert.Equal(t, "dates_unavailable", fault.Code(err))

	// Checkout day is free for the next arrival.
	next, err := h.Bookings.Create(ctx, bookings.CreateInput{GuestID: "guest-2", PropertyID: "prop-1", CheckIn: servicetest.Day(13), CheckOut: servicetest.Day(15), Guests: booking.Guests{Adults: 1}})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, next.Status)
}

func TestConcurrentCreatesForSameDatesAdmitOne(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)

	const guests = 8
	var wg sync.WaitGroup
	errs := make([]error, guests)
	for i := 0; i < guests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.Bookings.Create(context.Background(), bookings.CreateInput{
				GuestID:    "guest-" + string(rune('a'+i)),
				PropertyID: "prop-1",
				CheckIn:    servicetest.Day(10),
				CheckOut:   servicetest.Day(13),
				Guests:     booking.Guests{Adults: 1},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, fault.ErrUnavailable)
	}
	assert.Equal(t, 1, succeeded)
}

func TestCancelByGuestRefundsUnderFlexiblePolicy(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	h.Clock.Advance(48 * time.Hour)

	res, err := h.Bookings.Cancel(context.Background(), bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1", Reason: "plans changed"})
	require.NoError(t, err)

	assert.Equal(t, 100, res.Refund.Quote.Percent)
	assert.Equal(t, booking.RefundInitiated, res.Refund.Status)
	require.Len(t, h.Gateway.Refunds, 1)
	assert.Equal(t, int64(33000), h.Gateway.Refunds[0].Amount.Amount)
	assert.Equal(t, "refund:"+string(h.Payment(t, b.ID).ID), h.Gateway.Refunds[0].IdempotencyKey)

	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, "guest-1", got.Cancellation.By)
	assert.Equal(t, booking.RefundInitiated, got.Cancellation.RefundStatus)
	assert.Equal(t, 100, got.Cancellation.RefundPercent)
	assert.Equal(t, int64(33000), got.Cancellation.RefundAmount)
	assert.Equal(t, "rf-1", got.Cancellation.RefundRef)

	assert.Equal(t, payment.StatusRefunded, h.Payment(t, b.ID).Status)
	assert.Equal(t, earning.StatusCancelled, h.Earning(t, b.ID).Status)
	assert.True(t, h.Property(t, "prop-1").IsAvailable(b.Range))
	assert.Empty(t, h.Queue.Pending())
	assert.Contains(t, h.Notifier.Templates("guest-1"), policies.TemplateRefundIssued)
	assert.Contains(t, h.Notifier.Templates("host-1"), policies.TemplateBookingCancelled)
}

func TestCancelRefundTiers(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		checkIn int
		percent int
		amount  int64
	}{
		{name: "moderate inside five days", policy: "moderate", checkIn: 3, percent: 50, amount: 16500},
		{name: "moderate early", policy: "moderate", checkIn: 20, percent: 100, amount: 33000},
		{name: "strict inside a week", policy: "strict", checkIn: 5, percent: 0, amount: 0},
		{name: "strict inside two weeks", policy: "strict", checkIn: 10, percent: 50, amount: 16500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := servicetest.New(t)
			h.SeedProperty(t, "prop-1", "host-1", tt.policy, 10000)
			b := h.Book(t, "prop-1", "guest-1", tt.checkIn, 3)
			h.Pay(t, b)

			res, err := h.Bookings.Cancel(context.Background(), bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
			require.NoError(t, err)
			assert.Equal(t, tt.percent, res.Refund.Quote.Percent)
			assert.Equal(t, tt.amount, res.Refund.Quote.Amount.Amount)

			if tt.amount == 0 {
				assert.Empty(t, h.Gateway.Refunds)
				assert.Equal(t, booking.RefundNone, h.Booking(t, b.ID).Cancellation.RefundStatus)
				assert.Equal(t, payment.StatusPaid, h.Payment(t, b.ID).Status)
				return
			}
			require.Len(t, h.Gateway.Refunds, 1)
			assert.Equal(t, tt.amount, h.Gateway.Refunds[0].Amount.Amount)
			assert.Equal(t, tt.amount, h.Payment(t, b.ID).RefundedAmount)
		})
	}
}

func TestCancelUnpaidBookingNeedsNoRefund(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)

	res, err := h.Bookings.Cancel(context.Background(), bookings.CancelInput{BookingID: string(b.ID), Actor: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, booking.RefundNone, res.Refund.Status)
	assert.Empty(t, h.Gateway.Refunds)
	assert.Equal(t, booking.StatusCancelled, h.Booking(t, b.ID).Status)
	assert.Equal(t, payment.StatusPending, h.Payment(t, b.ID).Status)
}

func TestCancelRefusesStrangersAndTerminalBookings(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ctx := context.Background()

	_, err := h.Bookings.Cancel(ctx, bookings.CancelInput{BookingID: string(b.ID), Actor: "stranger"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	_, err = h.Bookings.Cancel(ctx, bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
	require.NoError(t, err)
	_, err = h.Bookings.Cancel(ctx, bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
	var te *booking.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, booking.StatusCancelled, te.From)
}

func TestGatewayRefundFailureStillCancelsAndIsRetried(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	h.Gateway.RefundErr = errors.New("gateway timeout")

	res, err := h.Bookings.Cancel(context.Background(), bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, booking.RefundFailed, res.Refund.Status)

	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.RefundFailed, got.Cancellation.RefundStatus)
	assert.Equal(t, payment.StatusPaid, h.Payment(t, b.ID).Status)
	assert.True(t, h.Property(t, "prop-1").IsAvailable(b.Range))

	h.Gateway.RefundErr = nil
	report, err := h.Promoter.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.RefundsRetried)

	got = h.Booking(t, b.ID)
	assert.Equal(t, booking.RefundInitiated, got.Cancellation.RefundStatus)
	assert.Equal(t, payment.StatusRefunded, h.Payment(t, b.ID).Status)
	assert.Equal(t, 1, h.Gateway.RefundCount())

	report, err = h.Promoter.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.RefundsRetried)
	assert.Equal(t, 1, h.Gateway.RefundCount())
}

// holdRefunds parks every refund request until release is closed and reports
// each arrival.
func holdRefunds(h *servicetest.Harness) (arrived chan policies.RefundRequest, release chan struct{}) {
	arrived = make(chan policies.RefundRequest, 4)
	release = make(chan struct{})
	h.Gateway.BeforeRefund = func(req policies.RefundRequest) {
		arrived <- req
		<-release
	}
	return arrived, release
}

func TestConcurrentCancellationsRefundOnce(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	arrived, release := holdRefunds(h)
	released := false
	defer func() {
		if !released {
			close(release)
		}
	}()

	errs := make(chan error, 2)
	for _, actor := range []string{"guest-1", "host-1"} {
		go func(actor string) {
			_, err := h.Bookings.Cancel(context.Background(), bookings.CancelInput{BookingID: string(b.ID), Actor: actor})
			errs <- err
		}(actor)
	}

	select {
	case <-arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("no refund reached the gateway")
	}
	// The winner is parked inside the gateway call, so the other cancellation
	// has to finish on its own.
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, fault.ErrInvalidTransition)
	case <-arrived:
		t.Fatal("both cancellations requested a refund")
	case <-time.After(2 * time.Second):
		t.Fatal("second cancellation did not finish")
	}
	assert.Equal(t, booking.RefundRequested, h.Booking(t, b.ID).Cancellation.RefundStatus)

	close(release)
	released = true
	require.NoError(t, <-errs)

	assert.Equal(t, 1, h.Gateway.RefundCount())
	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.RefundInitiated, got.Cancellation.RefundStatus)
	assert.Equal(t, payment.StatusRefunded, h.Payment(t, b.ID).Status)
}

func TestOverlappingRefundSweepsRefundOnce(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	h.Gateway.RefundErr = errors.New("gateway timeout")
	_, err := h.Bookings.Cancel(context.Background(), bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
	require.NoError(t, err)
	require.Equal(t, booking.RefundFailed, h.Booking(t, b.ID).Cancellation.RefundStatus)

	h.Gateway.RefundErr = nil
	arrived, release := holdRefunds(h)
	released := false
	defer func() {
		if !released {
			close(release)
		}
	}()

	type sweep struct {
		n   int
		err error
	}
	results := make(chan sweep, 2)
	run := func() {
		n, err := h.Bookings.RetryFailedRefunds(context.Background())
		results <- sweep{n: n, err: err}
	}
	go run()
	select {
	case <-arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never reached the gateway")
	}
	go run()
	select {
	case res := <-results:
		require.NoError(t, res.err)
		assert.Zero(t, res.n)
	case <-arrived:
		t.Fatal("both sweeps requested the refund")
	case <-time.After(2 * time.Second):
		t.Fatal("second sweep did not finish")
	}

	close(release)
	released = true
	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.n)
	assert.Equal(t, 1, h.Gateway.RefundCount())
	assert.Equal(t, booking.RefundInitiated, h.Booking(t, b.ID).Cancellation.RefundStatus)
}

func TestExpiredRefundClaimIsRetried(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	h.Gateway.RefundErr = errors.New("gateway timeout")
	_, err := h.Bookings.Cancel(context.Background(), bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
	require.NoError(t, err)
	h.Gateway.RefundErr = nil

	// A process that claimed the refund and died before recording the outcome.
	require.NoError(t, uow.Run(context.Background(), h.Store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		got, err := unit.Bookings().ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		require.True(t, got.ClaimRefund(h.Clock.Now()))
		return unit.Bookings().Save(ctx, got)
	}))

	n, err := h.Bookings.RetryFailedRefunds(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.Gateway.RefundCount())

	h.Clock.Advance(booking.RefundClaimTTL)
	n, err = h.Bookings.RetryFailedRefunds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 1, h.Gateway.RefundCount())
	assert.Equal(t, int64(33000), h.Gateway.Refunds[0].Amount.Amount)
	assert.Equal(t, booking.RefundInitiated, h.Booking(t, b.ID).Cancellation.RefundStatus)
}

func TestRejectPendingBooking(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "strict", 10000)
	b := h.Book(t, "prop-1", "guest-1", 3, 3)
	ctx := context.Background()

	_, err := h.Bookings.Reject(ctx, string(b.ID), "guest-1", "no")
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	res, err := h.Bookings.Reject(ctx, string(b.ID), "host-1", "maintenance")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusRejected, res.Booking.Status)
	assert.Empty(t, h.Gateway.Refunds)
	assert.True(t, h.Property(t, "prop-1").IsAvailable(b.Range))
	assert.Contains(t, h.Notifier.Templates("guest-1"), policies.TemplateBookingRejected)
}

func TestRejectRefundsSettledPaymentInFull(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "strict", 10000)
	b := h.Book(t, "prop-1", "guest-1", 3, 3)

	// The charge settled but its confirmation has not been applied yet.
	require.NoError(t, uow.Run(context.Background(), h.Store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		p, err := unit.Payments().ByBooking(ctx, string(b.ID))
		if err != nil {
			return err
		}
		require.NoError(t, p.StartProcessing("ref-1", "card", h.Clock.Now()))
		if _, err := p.MarkPaid("ref-1", nil, h.Clock.Now()); err != nil {
			return err
		}
		return unit.Payments().Save(ctx, p)
	}))

	res, err := h.Bookings.Reject(context.Background(), string(b.ID), "host-1", "")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Refund.Quote.Percent)
	require.Len(t, h.Gateway.Refunds, 1)
	assert.Equal(t, int64(33000), h.Gateway.Refunds[0].Amount.Amount)
	assert.Equal(t, "ref-1", h.Gateway.Refunds[0].TransactionReference)

	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusRejected, got.Status)
	assert.Equal(t, booking.RefundInitiated, got.Cancellation.RefundStatus)
	assert.Equal(t, payment.StatusRefunded, h.Payment(t, b.ID).Status)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ref := h.Pay(t, b)

	res, err := h.Bookings.ConfirmPayment(context.Background(), bookings.ConfirmInput{BookingID: string(b.ID), Reference: ref})
	require.NoError(t, err)
	assert.True(t, res.AlreadyConfirmed)

	list := h.HostEarnings(t, "host-1")
	require.Len(t, list, 1)
	e := list[0]
	assert.Equal(t, int64(33000), e.Gross.Amount)
	assert.Equal(t, int64(3000), e.ServiceFee.Amount)
	assert.Equal(t, int64(30000), e.Net.Amount)
	assert.Equal(t, servicetest.Day(13).Add(earning.DefaultHold), e.AvailableAt)
	assert.Equal(t, ref, e.PaymentReference)

	got := h.Booking(t, b.ID)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
	assert.Len(t, h.Queue.Pending(), 4)
}

func TestStayLifecycle(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	ctx := context.Background()

	_, err := h.Bookings.Complete(ctx, bookings.StayInput{BookingID: string(b.ID), Actor: "guest-1"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
	_, err = h.Bookings.CheckIn(ctx, bookings.StayInput{BookingID: string(b.ID), Actor: "guest-1"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	h.Clock.Set(servicetest.Day(10).Add(16 * time.Hour))
	checked, err := h.Bookings.CheckIn(ctx, bookings.StayInput{BookingID: string(b.ID), Actor: "host-1", Notes: "keys handed over", Photos: []string{"door.jpg"}})
	require.NoError(t, err)
	assert.True(t, checked.HasCheckedIn)
	assert.Equal(t, booking.StatusConfirmed, checked.Status)
	_, err = h.Bookings.CheckIn(ctx, bookings.StayInput{BookingID: string(b.ID), Actor: "host-1"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	// An early departure pulls the hold forward.
	completedAt := servicetest.Day(12).Add(10 * time.Hour)
	h.Clock.Set(completedAt)
	res, err := h.Bookings.Complete(ctx, bookings.StayInput{BookingID: string(b.ID), Actor: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, res.Booking.Status)
	assert.True(t, res.Booking.HasCheckedOut)
	require.NotNil(t, res.Earning)
	assert.Equal(t, earning.StatusPending, res.Earning.Status)
	assert.Equal(t, completedAt.Add(earning.DefaultHold), res.Earning.AvailableAt)
	assert.Empty(t, h.Queue.Pending())
	assert.Contains(t, h.Notifier.Templates("host-1"), policies.TemplateStayCompleted)

	_, err = h.Bookings.Cancel(ctx, bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}

func TestAcceptAndGet(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ctx := context.Background()

	_, err := h.Bookings.Accept(ctx, string(b.ID), "guest-1")
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	accepted, err := h.Bookings.Accept(ctx, string(b.ID), "host-1")
	require.NoError(t, err)
	assert.NotNil(t, accepted.AcceptedAt)
	assert.Contains(t, h.Notifier.Templates("guest-1"), policies.TemplateBookingAccepted)

	got, p, err := h.Bookings.Get(ctx, string(b.ID), "guest-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	require.NotNil(t, p)
	assert.Equal(t, payment.StatusPending, p.Status)

	_, _, err = h.Bookings.Get(ctx, string(b.ID), "stranger")
	assert.ErrorIs(t, err, fault.ErrNotFound)

	list, err := h.Bookings.ListForHost(ctx, "host-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = h.Bookings.ListForGuest(ctx, "guest-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteUnpaidBooking(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	unpaid := h.Book(t, "prop-1", "guest-1", 10, 3)
	paid := h.Book(t, "prop-1", "guest-2", 20, 2)
	h.Pay(t, paid)
	ctx := context.Background()

	assert.ErrorIs(t, h.Bookings.Delete(ctx, string(unpaid.ID), "host-1"), fault.ErrInvalidTransition)
	assert.ErrorIs(t, h.Bookings.Delete(ctx, string(paid.ID), "guest-2"), fault.ErrInvalidTransition)

	require.NoError(t, h.Bookings.Delete(ctx, string(unpaid.ID), "guest-1"))
	_, _, err := h.Bookings.Get(ctx, string(unpaid.ID), "guest-1")
	assert.ErrorIs(t, err, fault.ErrNotFound)
	assert.True(t, h.Property(t, "prop-1").IsAvailable(unpaid.Range))
	assert.False(t, h.Property(t, "prop-1").IsAvailable(paid.Range))
}

func TestStayTimesPlan(t *testing.T) {
	dr, err := daterange.New(servicetest.Day(10), servicetest.Day(13))
	require.NoError(t, err)
	b := &booking.Booking{ID: "bk-1", Range: dr}
	times := bookings.DefaultStayTimes()

	plan := times.Plan(b, servicetest.Start)
	require.Len(t, plan, 4)
	byType := map[string]time.Time{}
	for _, req := range plan {
		assert.Equal(t, "bk-1", req.BookingID)
		byType[req.Type] = req.RunAt
	}
	assert.Equal(t, servicetest.Day(9).Add(15*time.Hour), byType[schedule.TypeCheckInReminder])
	assert.Equal(t, servicetest.Day(10).Add(15*time.Hour), byType[schedule.TypeAutoCheckIn])
	assert.Equal(t, servicetest.Day(13).Add(8*time.Hour), byType[schedule.TypeCheckOutReminder])
	assert.Equal(t, servicetest.Day(13).Add(13*time.Hour), byType[schedule.TypeAutoComplete])

	late := servicetest.Day(12)
	plan = times.Plan(b, late)
	require.Len(t, plan, 3)
	for _, req := range plan {
		assert.NotEqual(t, schedule.TypeCheckInReminder, req.Type)
		if req.Type == schedule.TypeAutoCheckIn {
			assert.Equal(t, late, req.RunAt)
		}
	}
}
