package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/domain/property"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func nights(from, n int) daterange.DateRange {
	in := time.Date(2026, 8, from, 0, 0, 0, 0, time.UTC)
	r, err := daterange.New(in, in.AddDate(0, 0, n))
	if err != nil {
		panic(err)
	}
	return r
}

func testProperty(rates property.Pricing) *property.Property {
	if rates.Nightly.Currency == "" {
		rates.Nightly = money.Must(10000, "NGN")
	}
	p, err := property.New(property.CreateParams{ID: "prop-1", Host: "host-1", Pricing: rates, Now: now})
	if err != nil {
		panic(err)
	}
	return p
}

func TestQuoteAppliesFeesOnSubtotal(t *testing.T) {
	p := testProperty(property.Pricing{CleaningFee: money.Must(5000, "NGN")})
	quote, err := NewCalculator(10).Quote(QuoteInput{Property: p, Range: nights(10, 3), Guests: 2, Now: now})
	require.NoError(t, err)

	assert.Equal(t, 3, quote.Nights)
	assert.Equal(t, int64(30000), quote.Subtotal.Amount)
	assert.Equal(t, int64(5000), quote.Fee(FeeCleaning).Amount)
	assert.Equal(t, int64(3000), quote.ServiceFee().Amount)
	assert.Equal(t, int64(38000), quote.Total.Amount)
	assert.Empty(t, quote.Discounts)
}

func TestQuotePropertyServiceFeeOverridesDefault(t *testing.T) {
	p := testProperty(property.Pricing{ServiceFeePercent: 5})
	quote, err := NewCalculator(10).Quote(QuoteInput{Property: p, Range: nights(10, 2), Guests: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), quote.ServiceFee().Amount)
	assert.Equal(t, int64(21000), quote.Total.Amount)
}

func TestQuoteWeeklyAndMonthlyDiscounts(t *testing.T) {
	p := testProperty(property.Pricing{WeeklyDiscountPercent: 10, MonthlyDiscountPercent: 20})
	calc := NewCalculator(0)

	weekly, err := calc.Quote(QuoteInput{Property: p, Range: nights(1, 7), Guests: 1})
	require.NoError(t, err)
	require.Len(t, weekly.Discounts, 1)
	assert.Equal(t, DiscountWeekly, weekly.Discounts[0].Name)
	assert.Equal(t, int64(63000), weekly.Total.Amount)

	monthly, err := calc.Quote(QuoteInput{Property: p, Range: nights(1, 28), Guests: 1})
	require.NoError(t, err)
	require.Len(t, monthly.Discounts, 1)
	assert.Equal(t, DiscountMonthly, monthly.Discounts[0].Name)
	assert.Equal(t, int64(224000), monthly.Total.Amount)
}

func TestQuoteServiceFeeFollowsDiscount(t *testing.T) {
	p := testProperty(property.Pricing{WeeklyDiscountPercent: 10})
	quote, err := NewCalculator(10).Quote(QuoteInput{Property: p, Range: nights(1, 7), Guests: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(6300), quote.ServiceFee().Amount)
	assert.Equal(t, int64(69300), quote.Total.Amount)
}

func TestQuoteUsesCustomNightPrices(t *testing.T) {
	p := testProperty(property.Pricing{})
	custom := money.Must(15000, "NGN")
	p.SetDay(property.CalendarDay{Date: nights(11, 1).CheckIn, CustomPrice: &custom}, now)

	quote, err := NewCalculator(0).Quote(QuoteInput{Property: p, Range: nights(10, 3), Guests: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(35000), quote.Subtotal.Amount)
}

func TestQuoteValidation(t *testing.T) {
	p := testProperty(property.Pricing{MinNights: 2, MaxNights: 5, MaxGuests: 3})
	calc := NewCalculator(0)
	cases := map[string]QuoteInput{
		"stay_too_short":  {Property: p, Range: nights(10, 1), Guests: 1},
		"stay_too_long":   {Property: p, Range: nights(10, 6), Guests: 1},
		"too_many_guests": {Property: p, Range: nights(10, 2), Guests: 4},
		"invalid_guests":  {Property: p, Range: nights(10, 2), Guests: 0},
		"checkin_in_past": {Property: p, Range: nights(10, 2), Guests: 1, Now: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		"invalid_dates":   {Property: p, Guests: 1},
	}
	for code, input := range cases {
		_, err := calc.Quote(input)
		require.Error(t, err, code)
		assert.ErrorIs(t, err, fault.ErrValidation, code)
		assert.Equal(t, code, fault.Code(err))
	}
}

func TestRecalculateTotalClampsAtZero(t *testing.T) {
	p := PriceBreakdown{
		Nights:    1,
		Nightly:   money.Must(1000, "NGN"),
		Discounts: []Discount{{Name: "promo", Amount: money.Must(5000, "NGN")}},
	}
	require.NoError(t, p.RecalculateTotal())
	assert.True(t, p.Total.IsZero())

	bad := PriceBreakdown{Nights: 1, Nightly: money.Must(1000, "NGN"), Fees: []Fee{{Name: "x", Amount: money.Must(-1, "NGN")}}}
	assert.ErrorIs(t, bad.RecalculateTotal(), ErrNegativeComponent)
}
