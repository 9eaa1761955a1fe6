package booking

import (
	"time"

	"staysettle/internal/domain/property"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID  BookingID
	PropertyID property.PropertyID
	GuestID    string
	HostID     string
	Range      daterange.DateRange
	Total      money.Money
	At         time.Time
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingAccepted struct {
	BookingID BookingID
	GuestID   string
	At        time.Time
}

func (e BookingAccepted) EventName() string     { return "booking.accepted" }
func (e BookingAccepted) AggregateID() string   { return string(e.BookingID) }
func (e BookingAccepted) OccurredAt() time.Time { return e.At }

type BookingRejected struct {
	BookingID BookingID
	GuestID   string
	Reason    string
	At        time.Time
}

func (e BookingRejected) EventName() string     { return "booking.rejected" }
func (e BookingRejected) AggregateID() string   { return string(e.BookingID) }
func (e BookingRejected) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID  BookingID
	PropertyID property.PropertyID
	GuestID    string
	HostID     string
	Range      daterange.DateRange
	Total      money.Money
	At         time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID    BookingID
	PropertyID   property.PropertyID
	GuestID      string
	HostID       string
	By           string
	Reason       string
	RefundAmount int64
	At           time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type GuestCheckedIn struct {
	BookingID BookingID
	At        time.Time
}

func (e GuestCheckedIn) EventName() string     { return "booking.checked_in" }
func (e GuestCheckedIn) AggregateID() string   { return string(e.BookingID) }
func (e GuestCheckedIn) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID  BookingID
	PropertyID property.PropertyID
	HostID     string
	GuestID    string
	At         time.Time
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }
