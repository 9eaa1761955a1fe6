// Package fixtures seeds the property catalog from a JSON file.
package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"staysettle/internal/app/uow"
	"staysettle/internal/domain/property"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

type propertyFixture struct {
	ID                 string           `json:"id"`
	Host               string           `json:"host"`
	Title              string           `json:"title"`
	CancellationPolicy string           `json:"cancellation_policy"`
	Currency           string           `json:"currency"`
	NightlyRate        int64            `json:"nightly_rate"`
	CleaningFee        int64            `json:"cleaning_fee"`
	ServiceFeePercent  int              `json:"service_fee_percent"`
	WeeklyDiscount     int              `json:"weekly_discount_percent"`
	MonthlyDiscount    int              `json:"monthly_discount_percent"`
	MinNights          int              `json:"min_nights"`
	MaxNights          int              `json:"max_nights"`
	MaxGuests          int              `json:"max_guests"`
	Blocked            []blockedFixture `json:"blocked"`
	CustomPrices       []priceFixture   `json:"custom_prices"`
}

type blockedFixture struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type priceFixture struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// LoadProperties imports every fixture whose id is not stored yet. A missing
// file is not an error; a malformed entry is logged and skipped.
func LoadProperties(ctx context.Context, path string, factory uow.UoWFactory, logger *slog.Logger, now time.Time) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("property fixtures file empty", "path", path)
		return 0, nil
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}

	imported := 0
	for _, fx := range fixtures {
		p, err := fx.build(now)
		if err != nil {
			logger.Error("fixture invalid", "property_id", fx.ID, "error", err)
			continue
		}
		created := false
		err = uow.Run(ctx, factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			created = false
			if _, err := unit.Properties().ByID(ctx, p.ID); err == nil {
				return nil
			} else if !errors.Is(err, fault.ErrNotFound) {
				return err
			}
			created = true
			return unit.Properties().Save(ctx, p)
		})
		if err != nil {
			logger.Error("cannot store fixture property", "property_id", fx.ID, "error", err)
			continue
		}
		if created {
			imported++
			logger.Info("property fixture imported", "property_id", p.ID)
		}
	}
	return imported, nil
}

func (fx propertyFixture) build(now time.Time) (*property.Property, error) {
	nightly, err := money.New(fx.NightlyRate, fx.Currency)
	if err != nil {
		return nil, err
	}
	p, err := property.New(property.CreateParams{
		ID:                 property.PropertyID(fx.ID),
		Host:               property.HostID(fx.Host),
		Title:              fx.Title,
		CancellationPolicy: fx.CancellationPolicy,
		Pricing: property.Pricing{
			Nightly:                nightly,
			CleaningFee:            money.Money{Amount: fx.CleaningFee, Currency: nightly.Currency},
			ServiceFeePercent:      fx.ServiceFeePercent,
			WeeklyDiscountPercent:  fx.WeeklyDiscount,
			MonthlyDiscountPercent: fx.MonthlyDiscount,
			MinNights:              fx.MinNights,
			MaxNights:              fx.MaxNights,
			MaxGuests:              fx.MaxGuests,
		},
		Now: now,
	})
	if err != nil {
		return nil, err
	}
	for _, b := range fx.Blocked {
		from, err := time.Parse(time.DateOnly, b.From)
		if err != nil {
			return nil, fmt.Errorf("blocked from: %w", err)
		}
		to, err := time.Parse(time.DateOnly, b.To)
		if err != nil {
			return nil, fmt.Errorf("blocked to: %w", err)
		}
		if err := p.BlockRange(daterange.DateRange{CheckIn: from, CheckOut: to}, b.Reason, now); err != nil {
			return nil, err
		}
	}
	for _, cp := range fx.CustomPrices {
		day, err := time.Parse(time.DateOnly, cp.Date)
		if err != nil {
			return nil, fmt.Errorf("custom price date: %w", err)
		}
		price := money.Money{Amount: cp.Amount, Currency: nightly.Currency}
		p.SetDay(property.CalendarDay{Date: day, CustomPrice: &price}, now)
	}
	return p, nil
}
