package property

import (
	"time"

	"staysettle/internal/domain/shared/daterange"
)

type DatesReserved struct {
	PropertyID PropertyID
	BookingID  string
	Range      daterange.DateRange
	At         time.Time
}

func (e DatesReserved) EventName() string     { return "property.dates_reserved" }
func (e DatesReserved) AggregateID() string   { return string(e.PropertyID) }
func (e DatesReserved) OccurredAt() time.Time { return e.At }

type DatesReleased struct {
	PropertyID PropertyID
	BookingID  string
	Range      daterange.DateRange
	At         time.Time
}

func (e DatesReleased) EventName() string     { return "property.dates_released" }
func (e DatesReleased) AggregateID() string   { return string(e.PropertyID) }
func (e DatesReleased) OccurredAt() time.Time { return e.At }
