package promoter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/app/policies"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/earnings"
	"staysettle/internal/app/services/servicetest"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
)

func TestSweepPromotesEarningsOnlyAfterHold(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	availableAt := servicetest.Day(13).Add(earning.DefaultHold)
	require.Equal(t, availableAt, h.Earning(t, b.ID).AvailableAt)

	h.Clock.Set(availableAt.Add(-time.Minute))
	report, err := h.Promoter.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.EarningsPromoted)
	assert.Equal(t, earning.StatusPending, h.Earning(t, b.ID).Status)

	h.Clock.Set(availableAt)
	report, err = h.Promoter.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.EarningsPromoted)
	assert.Equal(t, earning.StatusAvailable, h.Earning(t, b.ID).Status)
	assert.Contains(t, h.Notifier.Templates("host-1"), policies.TemplateEarningAvailable)

	report, err = h.Promoter.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.EarningsPromoted)
}

func TestSweepCompletesCheckedInStays(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	h.SeedProperty(t, "prop-2", "host-2", "moderate", 10000)
	stayed := h.Book(t, "prop-1", "guest-1", 10, 3)
	noShow := h.Book(t, "prop-2", "guest-2", 10, 3)
	h.Pay(t, stayed)
	h.Pay(t, noShow)
	ctx := context.Background()

	h.Clock.Set(servicetest.Day(10).Add(15 * time.Hour))
	_, err := h.Bookings.CheckIn(ctx, bookings.StayInput{BookingID: string(stayed.ID), Actor: "host-1"})
	require.NoError(t, err)

	h.Clock.Set(servicetest.Day(13).Add(12 * time.Hour))
	report, err := h.Promoter.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.BookingsCompleted)
	assert.Equal(t, 1, report.BookingsSkipped)

	assert.Equal(t, booking.StatusCompleted, h.Booking(t, stayed.ID).Status)
	assert.Equal(t, booking.SystemActor, h.Booking(t, stayed.ID).CheckOut.By)
	assert.Equal(t, booking.StatusConfirmed, h.Booking(t, noShow.ID).Status)
}

func TestEarningsSummary(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "flexible", 10000)
	kept := h.Book(t, "prop-1", "guest-1", 5, 3)
	cancelled := h.Book(t, "prop-1", "guest-2", 10, 2)
	h.Pay(t, kept)
	h.Pay(t, cancelled)
	ctx := context.Background()
	_, err := h.Bookings.Cancel(ctx, bookings.CancelInput{BookingID: string(cancelled.ID), Actor: "guest-2"})
	require.NoError(t, err)

	h.Clock.Set(servicetest.Day(9))
	_, err = h.Promoter.SweepOnce(ctx)
	require.NoError(t, err)

	summary, err := h.Earnings.Summary(ctx, earnings.SummaryQuery{HostID: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, "NGN", summary.Currency)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, int64(30000), summary.Total.Amount)
	assert.Equal(t, int64(30000), summary.Available.Amount)
	assert.Equal(t, int64(20000), summary.Cancelled.Amount)
	assert.Equal(t, int64(30000), summary.ThisMonth.Amount)

	_, err = h.Earnings.Summary(ctx, earnings.SummaryQuery{})
	require.Error(t, err)

	list, err := h.Earnings.List(ctx, earning.Filter{HostID: "host-1", Statuses: []earning.Status{earning.StatusCancelled}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, string(cancelled.ID), list[0].BookingID)
}
