package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

const day = 24 * time.Hour

// DateRange represents a half-open interval [checkIn, checkOut) of whole days.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New truncates both ends to UTC midnight and validates the range.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Midnight(checkIn), CheckOut: Midnight(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Sub(dr.CheckIn) / day)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

// Days lists every night in the range, starting at CheckIn.
func (dr DateRange) Days() []time.Time {
	nights := dr.Nights()
	out := make([]time.Time, 0, nights)
	for i := 0; i < nights; i++ {
		out = append(out, dr.CheckIn.Add(time.Duration(i)*day))
	}
	return out
}

// Midnight returns t truncated to 00:00 UTC of the same calendar day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
