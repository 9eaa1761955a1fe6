// Package refund prices guest cancellations against the property's policy.
package refund

import (
	"math"
	"strings"
	"time"

	"staysettle/internal/domain/shared/money"
)

type Policy string

const (
	PolicyFlexible Policy = "flexible"
	PolicyModerate Policy = "moderate"
	PolicyStrict   Policy = "strict"
)

// tier grants Percent when at least MinDays remain before check-in.
type tier struct {
	MinDays int
	Percent int
}

// Tiers are ordered from the most generous down; the first match wins.
var tiers = map[Policy][]tier{
	PolicyFlexible: {{MinDays: 1, Percent: 100}},
	PolicyModerate: {{MinDays: 5, Percent: 100}, {MinDays: math.MinInt, Percent: 50}},
	PolicyStrict:   {{MinDays: 14, Percent: 100}, {MinDays: 7, Percent: 50}},
}

// ParsePolicy normalises a stored policy name. An empty name falls back to moderate.
func ParsePolicy(raw string) Policy {
	p := Policy(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return PolicyModerate
	}
	return p
}

func (p Policy) Known() bool {
	_, ok := tiers[p]
	return ok
}

// Percent returns the refundable share for a cancellation daysUntil days ahead
// of check-in. Unknown policies refund nothing.
func Percent(p Policy, daysUntil int) int {
	for _, t := range tiers[p] {
		if daysUntil >= t.MinDays {
			return t.Percent
		}
	}
	return 0
}

// DaysUntil counts whole days between now and check-in, rounding down.
// Cancellations after check-in yield negative values.
func DaysUntil(checkIn, now time.Time) int {
	return int(math.Floor(checkIn.Sub(now).Hours() / 24))
}

type Quote struct {
	Policy    Policy
	DaysUntil int
	Percent   int
	Amount    money.Money
}

func (q Quote) IsZero() bool {
	return q.Amount.Amount <= 0
}

// Calculate derives the refund for a booking total.
func Calculate(p Policy, total money.Money, checkIn, now time.Time) Quote {
	days := DaysUntil(checkIn, now)
	pct := Percent(p, days)
	return Quote{Policy: p, DaysUntil: days, Percent: pct, Amount: total.Percent(pct)}
}

// Full refunds the whole total regardless of policy.
func Full(total money.Money) Quote {
	return Quote{Percent: 100, Amount: total}
}
