package payments_test

import (
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/domain/booking"
)

func bookingsCancel(b *booking.Booking) bookings.CancelInput {
	return bookings.CancelInput{BookingID: string(b.ID), Actor: b.GuestID, Reason: "changed plans"}
}
