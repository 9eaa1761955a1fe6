package property

import (
	"context"
	"errors"
	"strings"
	"time"

	"staysettle/internal/domain/shared/events"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var (
	ErrPropertyNotFound = fault.NotFound("property_not_found", "property not found")
	ErrHostRequired     = errors.New("property: host id required")
	ErrNightlyRate      = errors.New("property: nightly rate must be positive")
	ErrNightsRange      = errors.New("property: min nights must be <= max nights")
)

type PropertyID string
type HostID string

// Pricing carries the host's rate card used by the quote calculator.
type Pricing struct {
	Nightly                money.Money
	CleaningFee            money.Money
	ServiceFeePercent      int
	WeeklyDiscountPercent  int
	MonthlyDiscountPercent int
	MinNights              int
	MaxNights              int
	MaxGuests              int
}

type Property struct {
	ID                 PropertyID
	Host               HostID
	Title              string
	CancellationPolicy string
	Pricing            Pricing
	Ledger             Ledger
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
	Save(ctx context.Context, p *Property) error
}

type CreateParams struct {
	ID                 PropertyID
	Host               HostID
	Title              string
	CancellationPolicy string
	Pricing            Pricing
	Now                time.Time
}

func New(params CreateParams) (*Property, error) {
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if params.Pricing.Nightly.Amount <= 0 || params.Pricing.Nightly.Currency == "" {
		return nil, ErrNightlyRate
	}
	if params.Pricing.MaxNights > 0 && params.Pricing.MinNights > params.Pricing.MaxNights {
		return nil, ErrNightsRange
	}
	now := params.Now.UTC()
	return &Property{
		ID:                 params.ID,
		Host:               params.Host,
		Title:              params.Title,
		CancellationPolicy: strings.ToLower(strings.TrimSpace(params.CancellationPolicy)),
		Pricing:            params.Pricing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Currency reports the currency every amount on this property is quoted in.
func (p *Property) Currency() string {
	return p.Pricing.Nightly.Currency
}
