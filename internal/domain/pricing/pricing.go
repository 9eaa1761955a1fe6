package pricing

import (
	"errors"
	"time"

	"staysettle/internal/domain/property"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var (
	ErrNegativeComponent = errors.New("pricing: components cannot be negative unless modeled as discount")
	ErrCurrencyUnset     = errors.New("pricing: currency must be defined")
	ErrNoNights          = errors.New("pricing: nights must be positive")
)

const (
	FeeCleaning = "cleaning"
	FeeService  = "service"

	DiscountWeekly  = "weekly"
	DiscountMonthly = "monthly"

	weeklyNights  = 7
	monthlyNights = 28
)

type Fee struct {
	Name   string
	Amount money.Money
}

type Discount struct {
	Name   string
	Amount money.Money
}

// PriceBreakdown is the pricing snapshot stored on a booking.
type PriceBreakdown struct {
	Nights    int
	Nightly   money.Money
	Subtotal  money.Money
	Fees      []Fee
	Discounts []Discount
	Total     money.Money
}

func (p *PriceBreakdown) Validate() error {
	if p.Nightly.Currency == "" {
		return ErrCurrencyUnset
	}
	if p.Nights <= 0 {
		return ErrNoNights
	}
	return nil
}

// RecalculateTotal derives Total from the components, clamping at zero.
func (p *PriceBreakdown) RecalculateTotal() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Subtotal.Currency == "" {
		p.Subtotal = p.Nightly.Multiply(int64(p.Nights))
	}
	total := p.Subtotal
	for _, fee := range p.Fees {
		if fee.Amount.Amount < 0 {
			return ErrNegativeComponent
		}
		next, err := total.Add(fee.Amount)
		if err != nil {
			return err
		}
		total = next
	}
	for _, discount := range p.Discounts {
		amount := discount.Amount
		if amount.Amount > 0 {
			amount = amount.Neg()
		}
		next, err := total.Add(amount)
		if err != nil {
			return err
		}
		total = next
	}
	if total.Amount < 0 {
		total = money.Zero(total.Currency)
	}
	p.Total = total
	return nil
}

// Fee returns the named fee, or zero when it was not charged.
func (p PriceBreakdown) Fee(name string) money.Money {
	for _, fee := range p.Fees {
		if fee.Name == name {
			return fee.Amount
		}
	}
	return money.Zero(p.Total.Currency)
}

// ServiceFee is the platform's share withheld from the host's earning.
func (p PriceBreakdown) ServiceFee() money.Money {
	return p.Fee(FeeService)
}

// DiscountTotal sums all discounts as a positive amount.
func (p PriceBreakdown) DiscountTotal() money.Money {
	total := money.Zero(p.Total.Currency)
	for _, d := range p.Discounts {
		amount := d.Amount.Amount
		if amount < 0 {
			amount = -amount
		}
		total.Amount += amount
	}
	return total
}

func (p PriceBreakdown) Copy() PriceBreakdown {
	clone := p
	clone.Fees = append([]Fee(nil), p.Fees...)
	clone.Discounts = append([]Discount(nil), p.Discounts...)
	return clone
}

type QuoteInput struct {
	Property *property.Property
	Range    daterange.DateRange
	Guests   int
	Now      time.Time
}

// Calculator prices a candidate stay. It holds no state besides the platform
// service fee applied when a property does not override it.
type Calculator struct {
	DefaultServiceFeePercent int
}

func NewCalculator(defaultServiceFeePercent int) Calculator {
	return Calculator{DefaultServiceFeePercent: defaultServiceFeePercent}
}

func (c Calculator) Quote(input QuoteInput) (PriceBreakdown, error) {
	p := input.Property
	if p == nil {
		return PriceBreakdown{}, fault.Validation("property_required", "property is required")
	}
	if err := input.Range.Validate(); err != nil {
		return PriceBreakdown{}, fault.Validation("invalid_dates", "check-out must be after check-in")
	}
	if !input.Now.IsZero() && input.Range.CheckIn.Before(daterange.Midnight(input.Now)) {
		return PriceBreakdown{}, fault.Validation("checkin_in_past", "check-in date is in the past")
	}
	rates := p.Pricing
	nights := input.Range.Nights()
	if input.Guests <= 0 {
		return PriceBreakdown{}, fault.Validation("invalid_guests", "at least one guest is required")
	}
	if rates.MaxGuests > 0 && input.Guests > rates.MaxGuests {
		return PriceBreakdown{}, fault.Validation("too_many_guests", "guest count exceeds property limit")
	}
	if rates.MinNights > 0 && nights < rates.MinNights {
		return PriceBreakdown{}, fault.Validation("stay_too_short", "stay is shorter than the minimum nights")
	}
	if rates.MaxNights > 0 && nights > rates.MaxNights {
		return PriceBreakdown{}, fault.Validation("stay_too_long", "stay is longer than the maximum nights")
	}

	currency := p.Currency()
	subtotal := money.Zero(currency)
	for _, night := range input.Range.Days() {
		price := rates.Nightly
		if custom, ok := p.Ledger.PriceFor(night); ok && custom.Currency == currency {
			price = custom
		}
		next, err := subtotal.Add(price)
		if err != nil {
			return PriceBreakdown{}, err
		}
		subtotal = next
	}

	breakdown := PriceBreakdown{
		Nights:   nights,
		Nightly:  rates.Nightly,
		Subtotal: subtotal,
	}
	switch {
	case nights >= monthlyNights && rates.MonthlyDiscountPercent > 0:
		breakdown.Discounts = append(breakdown.Discounts, Discount{Name: DiscountMonthly, Amount: subtotal.Percent(rates.MonthlyDiscountPercent)})
	case nights >= weeklyNights && rates.WeeklyDiscountPercent > 0:
		breakdown.Discounts = append(breakdown.Discounts, Discount{Name: DiscountWeekly, Amount: subtotal.Percent(rates.WeeklyDiscountPercent)})
	}
	if rates.CleaningFee.Amount > 0 {
		breakdown.Fees = append(breakdown.Fees, Fee{Name: FeeCleaning, Amount: rates.CleaningFee})
	}
	servicePct := rates.ServiceFeePercent
	if servicePct == 0 {
		servicePct = c.DefaultServiceFeePercent
	}
	if servicePct > 0 {
		discounted := subtotal
		if len(breakdown.Discounts) > 0 {
			discounted.Amount -= breakdown.DiscountTotal().Amount
		}
		breakdown.Fees = append(breakdown.Fees, Fee{Name: FeeService, Amount: discounted.Percent(servicePct)})
	}
	if err := breakdown.RecalculateTotal(); err != nil {
		return PriceBreakdown{}, err
	}
	return breakdown, nil
}
