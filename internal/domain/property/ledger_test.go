package property

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func stay(from, to int) daterange.DateRange {
	r, err := daterange.New(time.Date(2026, 8, from, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, to, 0, 0, 0, 0, time.UTC))
	if err != nil {
		panic(err)
	}
	return r
}

func newProperty(t *testing.T) *Property {
	t.Helper()
	p, err := New(CreateParams{ID: "prop-1", Host: "host-1", Pricing: Pricing{Nightly: money.Must(10000, "NGN")}, Now: now})
	require.NoError(t, err)
	return p
}

func TestNewValidatesRates(t *testing.T) {
	_, err := New(CreateParams{Host: "h", Pricing: Pricing{Nightly: money.Must(0, "NGN")}})
	assert.ErrorIs(t, err, ErrNightlyRate)
	_, err = New(CreateParams{Pricing: Pricing{Nightly: money.Must(1, "NGN")}})
	assert.ErrorIs(t, err, ErrHostRequired)
	_, err = New(CreateParams{Host: "h", Pricing: Pricing{Nightly: money.Must(1, "NGN"), MinNights: 5, MaxNights: 2}})
	assert.ErrorIs(t, err, ErrNightsRange)
}

func TestReserveBlocksOverlaps(t *testing.T) {
	p := newProperty(t)
	require.NoError(t, p.Reserve("b-1", stay(10, 13), now))
	assert.Len(t, p.Ledger.BookedDates, 3)
	require.Len(t, p.PendingEvents(), 1)

	err := p.Reserve("b-2", stay(12, 14), now)
	assert.ErrorIs(t, err, fault.ErrUnavailable)
	assert.NoError(t, p.Reserve("b-3", stay(13, 15), now))

	// A repeated reserve for the same booking is a no-op.
	assert.NoError(t, p.Reserve("b-1", stay(10, 13), now))
	assert.Len(t, p.Ledger.Booked, 2)
}

func TestReleaseRemovesEveryTrace(t *testing.T) {
	p := newProperty(t)
	require.NoError(t, p.Reserve("b-1", stay(10, 13), now))
	require.NoError(t, p.ConfirmReservation("b-1", now))
	p.SetDay(CalendarDay{Date: stay(10, 11).CheckIn, BookingID: "b-1"}, now)

	assert.True(t, p.Release("b-1", now))
	assert.Empty(t, p.Ledger.Booked)
	assert.Empty(t, p.Ledger.BookedDates)
	assert.Empty(t, p.Ledger.Calendar[0].BookingID)
	assert.True(t, p.IsAvailable(stay(10, 13)))

	assert.False(t, p.Release("b-1", now))
}

func TestReserveStampsCalendarDays(t *testing.T) {
	p := newProperty(t)
	custom := money.Must(25000, "NGN")
	p.SetDay(CalendarDay{Date: stay(11, 12).CheckIn, CustomPrice: &custom}, now)
	p.SetDay(CalendarDay{Date: stay(14, 15).CheckIn, Notes: "after checkout"}, now)

	require.NoError(t, p.Reserve("b-1", stay(10, 13), now))
	require.Len(t, p.Ledger.Calendar, 2)
	assert.Equal(t, "b-1", p.Ledger.Calendar[0].BookingID)
	assert.Empty(t, p.Ledger.Calendar[1].BookingID)

	// Editing a reserved night keeps its booking.
	p.SetDay(CalendarDay{Date: stay(11, 12).CheckIn, Notes: "late arrival"}, now)
	assert.Equal(t, "b-1", p.Ledger.Calendar[0].BookingID)
	p.SetDay(CalendarDay{Date: stay(12, 13).CheckIn, Notes: "new entry"}, now)
	assert.Equal(t, "b-1", p.Ledger.Calendar[2].BookingID)

	p.Release("b-1", now)
	for _, d := range p.Ledger.Calendar {
		assert.Empty(t, d.BookingID)
	}
}

func TestConfirmReservationRequiresReservation(t *testing.T) {
	p := newProperty(t)
	assert.ErrorIs(t, p.ConfirmReservation("missing", now), fault.ErrNotFound)
}

func TestBlockedDaysAndRanges(t *testing.T) {
	p := newProperty(t)
	require.NoError(t, p.BlockRange(stay(1, 3), "maintenance", now))
	assert.False(t, p.IsAvailable(stay(2, 4)))

	p.SetDay(CalendarDay{Date: stay(20, 21).CheckIn, Blocked: true}, now)
	assert.False(t, p.IsAvailable(stay(19, 22)))
	assert.True(t, p.IsAvailable(stay(21, 23)))
}

func TestPriceForUsesCustomCalendarPrice(t *testing.T) {
	p := newProperty(t)
	custom := money.Must(25000, "NGN")
	p.SetDay(CalendarDay{Date: stay(5, 6).CheckIn.Add(8 * time.Hour), CustomPrice: &custom}, now)

	price, ok := p.Ledger.PriceFor(stay(5, 6).CheckIn)
	require.True(t, ok)
	assert.Equal(t, custom, price)
	_, ok = p.Ledger.PriceFor(stay(6, 7).CheckIn)
	assert.False(t, ok)
}
