package earning

import (
	"time"

	"staysettle/internal/domain/shared/money"
)

type Summary struct {
	Currency  string
	Total     money.Money
	ThisMonth money.Money
	Pending   money.Money
	Reserved  money.Money
	Available money.Money
	Paid      money.Money
	Cancelled money.Money
	Count     int
}

// Summarize aggregates net amounts per status. Cancelled earnings are reported
// separately and excluded from Total.
func Summarize(list []*Earning, currency string, now time.Time) Summary {
	s := Summary{
		Currency:  currency,
		Total:     money.Zero(currency),
		ThisMonth: money.Zero(currency),
		Pending:   money.Zero(currency),
		Reserved:  money.Zero(currency),
		Available: money.Zero(currency),
		Paid:      money.Zero(currency),
		Cancelled: money.Zero(currency),
	}
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for _, e := range list {
		if e.Net.Currency != s.Total.Currency {
			continue
		}
		amount := e.Net.Amount
		s.Count++
		switch e.Status {
		case StatusCancelled:
			s.Cancelled.Amount += amount
			continue
		case StatusPending:
			if e.Reserved() {
				s.Reserved.Amount += amount
			} else {
				s.Pending.Amount += amount
			}
		case StatusAvailable:
			s.Available.Amount += amount
		case StatusPaid:
			s.Paid.Amount += amount
		}
		s.Total.Amount += amount
		if !e.CreatedAt.Before(monthStart) {
			s.ThisMonth.Amount += amount
		}
	}
	return s
}
