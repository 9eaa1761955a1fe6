package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/domain/pricing"
	"staysettle/internal/domain/refund"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func newBooking(t *testing.T) *Booking {
	t.Helper()
	r, err := daterange.New(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	b, err := New(CreateParams{
		ID:         "b-1",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		HostID:     "host-1",
		Range:      r,
		Guests:     Guests{Adults: 2},
		Price:      pricing.PriceBreakdown{Nights: 3, Nightly: money.Must(10000, "NGN")},
		Policy:     refund.PolicyModerate,
		CreatedAt:  now,
	})
	require.NoError(t, err)
	return b
}

func eventNames(b *Booking) []string {
	var names []string
	for _, ev := range b.Drain() {
		names = append(names, ev.EventName())
	}
	return names
}

func TestNewBookingIsPending(t *testing.T) {
	b := newBooking(t)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, int64(30000), b.Price.Total.Amount)
	assert.True(t, b.Active())
	assert.Equal(t, []string{"booking.created"}, eventNames(b))
	require.Len(t, b.Timeline, 1)
	assert.Equal(t, EventCreated, b.Timeline[0].Status)
}

func TestNewBookingValidation(t *testing.T) {
	_, err := New(CreateParams{GuestID: "g"})
	assert.ErrorIs(t, err, fault.ErrValidation)

	r, _ := daterange.New(now, now.AddDate(0, 0, 1))
	_, err = New(CreateParams{GuestID: "g", Range: r, Guests: Guests{Children: 1}})
	assert.ErrorIs(t, err, ErrInvalidGuests)
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestAcceptThenConfirmPayment(t *testing.T) {
	b := newBooking(t)
	b.Drain()

	err := b.Accept("guest-1", now)
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "guest-1", te.Actor)

	require.NoError(t, b.Accept("host-1", now))
	assert.Equal(t, StatusConfirmed, b.Status)
	require.NotNil(t, b.AcceptedAt)
	assert.ErrorIs(t, b.Accept("host-1", now), fault.ErrInvalidTransition)

	require.NoError(t, b.ConfirmPayment("ref-1", now))
	assert.Equal(t, StatusConfirmed, b.Status)
	require.NotNil(t, b.ConfirmedAt)
	assert.Equal(t, []string{"booking.accepted", "booking.confirmed"}, eventNames(b))
}

func TestRejectOnlyWhilePending(t *testing.T) {
	b := newBooking(t)
	assert.ErrorIs(t, b.Reject("stranger", "", now), fault.ErrInvalidTransition)
	require.NoError(t, b.Reject("host-1", "renovation", now))
	assert.Equal(t, StatusRejected, b.Status)
	assert.True(t, b.Status.Terminal())
	assert.Contains(t, b.Timeline[len(b.Timeline)-1].Message, "renovation")
	assert.ErrorIs(t, b.Reject("host-1", "", now), fault.ErrInvalidTransition)
}

func TestCancelRecordsRefundDecision(t *testing.T) {
	b := newBooking(t)
	require.NoError(t, b.Accept("host-1", now))
	assert.ErrorIs(t, b.CanCancel("stranger"), fault.ErrInvalidTransition)

	require.NoError(t, b.Cancel(CancelParams{Actor: "guest-1", Reason: "plans changed", RefundPercent: 50, RefundAmount: 15000, RefundStatus: RefundInitiated, RefundRef: "rf-1", Now: now}))
	assert.Equal(t, StatusCancelled, b.Status)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, 50, b.Cancellation.RefundPercent)
	assert.Equal(t, RefundInitiated, b.Cancellation.RefundStatus)
	assert.ErrorIs(t, b.Cancel(CancelParams{Actor: "guest-1", Now: now}), fault.ErrInvalidTransition)
}

func TestCancelDefaultsRefundStatusToNone(t *testing.T) {
	b := newBooking(t)
	require.NoError(t, b.Cancel(CancelParams{Actor: SystemActor, Now: now}))
	assert.Equal(t, RefundNone, b.Cancellation.RefundStatus)
}

func TestRecordRefundNeverDowngradesProcessed(t *testing.T) {
	b := newBooking(t)
	require.NoError(t, b.Reject("host-1", "", now))
	b.RecordRefund(RefundProcessed, 30000, "rf-1", now)
	b.RecordRefund(RefundFailed, 0, "", now)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, RefundProcessed, b.Cancellation.RefundStatus)
	assert.Equal(t, int64(30000), b.Cancellation.RefundAmount)
	assert.Equal(t, SystemActor, b.Cancellation.By)
}

func TestClaimRefund(t *testing.T) {
	b := newBooking(t)
	assert.False(t, b.ClaimRefund(now), "active bookings have nothing to refund")

	require.NoError(t, b.Cancel(CancelParams{Actor: "guest-1", RefundPercent: 100, RefundAmount: 30000, RefundStatus: RefundRequested, Now: now}))
	require.NotNil(t, b.Cancellation.RefundRequestedAt)
	assert.False(t, b.ClaimRefund(now.Add(time.Minute)), "a fresh claim belongs to its holder")

	b.RecordRefund(RefundFailed, 0, "", now)
	assert.True(t, b.ClaimRefund(now))
	assert.Equal(t, RefundRequested, b.Cancellation.RefundStatus)
	assert.False(t, b.ClaimRefund(now))
	assert.True(t, b.ClaimRefund(now.Add(RefundClaimTTL)))

	b.RecordRefund(RefundInitiated, 30000, "rf-1", now)
	assert.False(t, b.ClaimRefund(now.Add(time.Hour)))
}

func TestMarkRefundedCancelsActiveBooking(t *testing.T) {
	b := newBooking(t)
	require.NoError(t, b.ConfirmPayment("ref-1", now))
	b.Drain()
	b.MarkRefunded(30000, "rf-9", now)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, RefundProcessed, b.Cancellation.RefundStatus)
	assert.Equal(t, "rf-9", b.Cancellation.RefundRef)
	assert.Equal(t, []string{"booking.cancelled"}, eventNames(b))
}

func TestFailPayment(t *testing.T) {
	b := newBooking(t)
	require.NoError(t, b.FailPayment("card declined", now))
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, SystemActor, b.Cancellation.By)
	assert.ErrorIs(t, b.FailPayment("again", now), fault.ErrInvalidTransition)
}

func TestStayLifecycle(t *testing.T) {
	b := newBooking(t)
	assert.ErrorIs(t, b.CheckInGuest("host-1", StayDetails{}, now), fault.ErrInvalidTransition)
	require.NoError(t, b.ConfirmPayment("ref-1", now))

	assert.ErrorIs(t, b.Complete("host-1", StayDetails{}, now), fault.ErrInvalidTransition)
	assert.ErrorIs(t, b.CheckInGuest("guest-1", StayDetails{}, now), fault.ErrInvalidTransition)

	photos := []string{"door.jpg"}
	require.NoError(t, b.CheckInGuest("host-1", StayDetails{Notes: "keys handed over", Photos: photos}, now))
	photos[0] = "changed.jpg"
	assert.Equal(t, "door.jpg", b.CheckIn.Photos[0])
	assert.Equal(t, now, b.CheckIn.At)

	err := b.CheckInGuest("host-1", StayDetails{}, now)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, Status(EventCheckedIn), te.From)

	require.NoError(t, b.Complete(SystemActor, StayDetails{}, now))
	assert.Equal(t, StatusCompleted, b.Status)
	assert.True(t, b.HasCheckedOut)
	assert.Equal(t, SystemActor, b.CheckOut.By)
}

func TestCanDelete(t *testing.T) {
	b := newBooking(t)
	assert.ErrorIs(t, b.CanDelete("host-1", false), fault.ErrInvalidTransition)
	assert.ErrorIs(t, b.CanDelete("guest-1", true), fault.ErrInvalidTransition)
	assert.NoError(t, b.CanDelete("guest-1", false))
}

func TestAttachConversationKeepsFirst(t *testing.T) {
	b := newBooking(t)
	b.AttachConversation("c-1")
	b.AttachConversation("c-2")
	assert.Equal(t, "c-1", b.ConversationID)
}
