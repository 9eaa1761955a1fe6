package booking

import (
	"fmt"

	"staysettle/internal/domain/shared/fault"
)

// TransitionError names the refused transition and the state it was attempted from.
type TransitionError struct {
	BookingID BookingID
	Action    string
	From      Status
	Actor     string
}

func (e *TransitionError) Error() string {
	if e.Actor != "" {
		return fmt.Sprintf("booking %s: actor %s may not %s", e.BookingID, e.Actor, e.Action)
	}
	return fmt.Sprintf("booking %s: cannot %s from %s", e.BookingID, e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == fault.ErrInvalidTransition
}

func (b *Booking) transitionErr(action string) error {
	from := b.Status
	if action == "check_in" && b.HasCheckedIn {
		from = Status(EventCheckedIn)
	}
	return &TransitionError{BookingID: b.ID, Action: action, From: from}
}

func (b *Booking) forbidden(action, actor string) error {
	return &TransitionError{BookingID: b.ID, Action: action, From: b.Status, Actor: actor}
}
