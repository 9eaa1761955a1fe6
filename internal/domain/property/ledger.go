package property

import (
	"time"

	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var (
	ErrRangeUnavailable   = fault.Unavailable("dates_unavailable", "property is not available for the requested dates")
	ErrReservationMissing = fault.NotFound("reservation_not_found", "no ledger reservation for booking")
)

type RangeStatus string

const (
	RangePending   RangeStatus = "PENDING"
	RangeConfirmed RangeStatus = "CONFIRMED"
)

type BookedRange struct {
	BookingID string
	Range     daterange.DateRange
	Status    RangeStatus
}

type BlockedRange struct {
	Range  daterange.DateRange
	Reason string
}

type BookedDate struct {
	Date      time.Time
	BookingID string
}

// CalendarDay is one host-managed day; a nil CustomPrice means the base rate applies.
type CalendarDay struct {
	Date        time.Time
	Blocked     bool
	CustomPrice *money.Money
	Notes       string
	BookingID   string
}

// Ledger is the property's record of reserved and blocked nights.
type Ledger struct {
	Booked      []BookedRange
	Blocked     []BlockedRange
	BookedDates []BookedDate
	Calendar    []CalendarDay
}

func dayKey(t time.Time) string {
	return daterange.Midnight(t).Format(time.DateOnly)
}

// IsAvailable applies every ledger check: reserved ranges, host blocks,
// individually booked nights, and blocked calendar days.
func (l *Ledger) IsAvailable(r daterange.DateRange) bool {
	for _, b := range l.Booked {
		if (b.Status == RangePending || b.Status == RangeConfirmed) && b.Range.Overlaps(r) {
			return false
		}
	}
	for _, b := range l.Blocked {
		if b.Range.Overlaps(r) {
			return false
		}
	}
	for _, d := range l.BookedDates {
		if r.ContainsDate(d.Date) {
			return false
		}
	}
	for _, d := range l.Calendar {
		if d.Blocked && r.ContainsDate(d.Date) {
			return false
		}
	}
	return true
}

// PriceFor returns the custom calendar price for the night, if the host set one.
func (l *Ledger) PriceFor(night time.Time) (money.Money, bool) {
	key := dayKey(night)
	for _, d := range l.Calendar {
		if d.CustomPrice != nil && dayKey(d.Date) == key {
			return *d.CustomPrice, true
		}
	}
	return money.Money{}, false
}

func (l *Ledger) reservation(bookingID string) int {
	for i, b := range l.Booked {
		if b.BookingID == bookingID {
			return i
		}
	}
	return -1
}

func (l *Ledger) bookedBy(key string) string {
	for _, d := range l.BookedDates {
		if dayKey(d.Date) == key {
			return d.BookingID
		}
	}
	return ""
}

// IsAvailable reports whether the range can be reserved.
func (p *Property) IsAvailable(r daterange.DateRange) bool {
	return p.Ledger.IsAvailable(r)
}

// Reserve holds the range for a booking in PENDING state.
func (p *Property) Reserve(bookingID string, r daterange.DateRange, now time.Time) error {
	if p.Ledger.reservation(bookingID) >= 0 {
		return nil
	}
	if !p.Ledger.IsAvailable(r) {
		return ErrRangeUnavailable
	}
	p.Ledger.Booked = append(p.Ledger.Booked, BookedRange{BookingID: bookingID, Range: r, Status: RangePending})
	nights := make(map[string]struct{})
	for _, night := range r.Days() {
		p.Ledger.BookedDates = append(p.Ledger.BookedDates, BookedDate{Date: night, BookingID: bookingID})
		nights[dayKey(night)] = struct{}{}
	}
	for i := range p.Ledger.Calendar {
		if _, ok := nights[dayKey(p.Ledger.Calendar[i].Date)]; ok {
			p.Ledger.Calendar[i].BookingID = bookingID
		}
	}
	p.touch(now)
	p.Record(DatesReserved{PropertyID: p.ID, BookingID: bookingID, Range: r, At: p.UpdatedAt})
	return nil
}

// ConfirmReservation flips the booking's ledger entry to CONFIRMED.
func (p *Property) ConfirmReservation(bookingID string, now time.Time) error {
	idx := p.Ledger.reservation(bookingID)
	if idx < 0 {
		return ErrReservationMissing
	}
	if p.Ledger.Booked[idx].Status == RangeConfirmed {
		return nil
	}
	p.Ledger.Booked[idx].Status = RangeConfirmed
	p.touch(now)
	return nil
}

// Release drops every ledger trace of the booking. Releasing an unknown
// booking is a no-op so retried cancellations stay safe.
func (p *Property) Release(bookingID string, now time.Time) bool {
	idx := p.Ledger.reservation(bookingID)
	released := idx >= 0
	if released {
		r := p.Ledger.Booked[idx].Range
		p.Ledger.Booked = append(p.Ledger.Booked[:idx], p.Ledger.Booked[idx+1:]...)
		p.Record(DatesReleased{PropertyID: p.ID, BookingID: bookingID, Range: r, At: now.UTC()})
	}
	dates := p.Ledger.BookedDates[:0]
	for _, d := range p.Ledger.BookedDates {
		if d.BookingID != bookingID {
			dates = append(dates, d)
		}
	}
	p.Ledger.BookedDates = dates
	for i := range p.Ledger.Calendar {
		if p.Ledger.Calendar[i].BookingID == bookingID {
			p.Ledger.Calendar[i].BookingID = ""
		}
	}
	if released {
		p.touch(now)
	}
	return released
}

// BlockRange lets the host close dates for reasons other than bookings.
func (p *Property) BlockRange(r daterange.DateRange, reason string, now time.Time) error {
	if !p.Ledger.IsAvailable(r) {
		return ErrRangeUnavailable
	}
	p.Ledger.Blocked = append(p.Ledger.Blocked, BlockedRange{Range: r, Reason: reason})
	p.touch(now)
	return nil
}

// SetDay upserts a calendar entry for a single night. The entry's booking
// always follows the ledger's reservations.
func (p *Property) SetDay(day CalendarDay, now time.Time) {
	day.Date = daterange.Midnight(day.Date)
	key := dayKey(day.Date)
	day.BookingID = p.Ledger.bookedBy(key)
	for i := range p.Ledger.Calendar {
		if dayKey(p.Ledger.Calendar[i].Date) == key {
			p.Ledger.Calendar[i] = day
			p.touch(now)
			return
		}
	}
	p.Ledger.Calendar = append(p.Ledger.Calendar, day)
	p.touch(now)
}

func (p *Property) touch(now time.Time) {
	p.UpdatedAt = now.UTC()
}
