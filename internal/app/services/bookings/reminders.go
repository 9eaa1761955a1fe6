package bookings

import (
	"time"

	"staysettle/internal/app/schedule"
	"staysettle/internal/domain/booking"
)

// StayTimes positions the booking-scoped jobs relative to the stay's dates.
type StayTimes struct {
	CheckInHour       int
	CheckOutHour      int
	ReminderLead      time.Duration
	AutoCompleteGrace time.Duration
}

func DefaultStayTimes() StayTimes {
	return StayTimes{CheckInHour: 15, CheckOutHour: 11, ReminderLead: 24 * time.Hour, AutoCompleteGrace: 2 * time.Hour}
}

// Plan lists the jobs for a confirmed booking. Jobs whose time has already
// passed are dropped except the automatic transitions, which run immediately.
func (t StayTimes) Plan(b *booking.Booking, now time.Time) []schedule.Request {
	checkIn := b.Range.CheckIn.Add(time.Duration(t.CheckInHour) * time.Hour)
	checkOut := b.Range.CheckOut.Add(time.Duration(t.CheckOutHour) * time.Hour)
	plan := []schedule.Request{
		{Type: schedule.TypeCheckInReminder, RunAt: checkIn.Add(-t.ReminderLead)},
		{Type: schedule.TypeAutoCheckIn, RunAt: checkIn},
		{Type: schedule.TypeCheckOutReminder, RunAt: b.Range.CheckOut.Add(8 * time.Hour)},
		{Type: schedule.TypeAutoComplete, RunAt: checkOut.Add(t.AutoCompleteGrace)},
	}
	out := plan[:0]
	for _, req := range plan {
		if req.RunAt.Before(now) {
			if req.Type == schedule.TypeCheckInReminder || req.Type == schedule.TypeCheckOutReminder {
				continue
			}
			req.RunAt = now
		}
		req.BookingID = string(b.ID)
		out = append(out, req)
	}
	return out
}
