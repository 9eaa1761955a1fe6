package booking

import (
	"context"
	"errors"
	"time"

	"staysettle/internal/domain/pricing"
	"staysettle/internal/domain/property"
	"staysettle/internal/domain/refund"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/events"
	"staysettle/internal/domain/shared/fault"
)

var (
	ErrBookingNotFound = fault.NotFound("booking_not_found", "booking not found")
	ErrDuplicate       = fault.Unavailable("duplicate_booking", "guest already has an active booking for these dates")
	ErrInvalidGuests   = errors.New("booking: guests count must be positive")
	ErrNegativeTotal   = errors.New("booking: total must not be negative")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// SystemActor identifies scheduled jobs and gateway callbacks acting on a booking.
const SystemActor = "system"

type Guests struct {
	Adults   int
	Children int
	Infants  int
}

func (g Guests) Total() int {
	return g.Adults + g.Children + g.Infants
}

type RefundStatus string

const (
	RefundNone RefundStatus = "none"
	// RefundRequested claims the refund for one caller while the gateway
	// request is in flight.
	RefundRequested RefundStatus = "requested"
	RefundInitiated RefundStatus = "initiated"
	RefundProcessed RefundStatus = "processed"
	RefundFailed    RefundStatus = "failed"
)

// RefundClaimTTL is how long a requested refund stays claimed before a retry
// sweep may take it over.
const RefundClaimTTL = 15 * time.Minute

type Cancellation struct {
	By                string
	At                time.Time
	Reason            string
	RefundPercent     int
	RefundAmount      int64
	RefundStatus      RefundStatus
	RefundRef         string
	RefundRequestedAt *time.Time
}

type StayDetails struct {
	At     time.Time
	Notes  string
	Photos []string
	By     string
}

type TimelineEntry struct {
	Status  string
	Message string
	At      time.Time
}

// Timeline markers beyond the Status values.
const (
	EventCreated            = "CREATED"
	EventAccepted           = "ACCEPTED"
	EventPaymentInitialized = "PAYMENT_INITIALIZED"
	EventPaymentConfirmed   = "PAYMENT_CONFIRMED"
	EventPaymentFailed      = "PAYMENT_FAILED"
	EventCheckedIn          = "CHECKED_IN"
	EventRefund             = "REFUND"
)

type Booking struct {
	ID             BookingID
	PropertyID     property.PropertyID
	GuestID        string
	HostID         string
	Range          daterange.DateRange
	Guests         Guests
	Price          pricing.PriceBreakdown
	Policy         refund.Policy
	Status         Status
	Cancellation   *Cancellation
	CheckIn        *StayDetails
	CheckOut       *StayDetails
	HasCheckedIn   bool
	HasCheckedOut  bool
	ConversationID string
	Timeline       []TimelineEntry
	AcceptedAt     *time.Time
	ConfirmedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id BookingID) error
	// ActiveByProperty lists PENDING and CONFIRMED bookings on a property.
	ActiveByProperty(ctx context.Context, propertyID property.PropertyID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListByHost(ctx context.Context, hostID string) ([]*Booking, error)
	// DueForCompletion lists CONFIRMED bookings whose checkout is at or before the cutoff.
	DueForCompletion(ctx context.Context, cutoff time.Time) ([]*Booking, error)
	// FailedRefunds lists terminated bookings whose refund failed or is still
	// claimed as requested.
	FailedRefunds(ctx context.Context) ([]*Booking, error)
}

type CreateParams struct {
	ID         BookingID
	PropertyID property.PropertyID
	GuestID    string
	HostID     string
	Range      daterange.DateRange
	Guests     Guests
	Price      pricing.PriceBreakdown
	Policy     refund.Policy
	CreatedAt  time.Time
}

func New(params CreateParams) (*Booking, error) {
	if params.GuestID == "" {
		return nil, fault.Validation("guest_required", "guest id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, fault.Wrap(fault.ErrValidation, "invalid_dates", err)
	}
	if params.Guests.Adults <= 0 {
		return nil, fault.Wrap(fault.ErrValidation, "invalid_guests", ErrInvalidGuests)
	}
	price := params.Price.Copy()
	if err := price.RecalculateTotal(); err != nil {
		return nil, fault.Wrap(fault.ErrValidation, "invalid_price", err)
	}
	if price.Total.Amount < 0 {
		return nil, fault.Wrap(fault.ErrValidation, "invalid_price", ErrNegativeTotal)
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		PropertyID: params.PropertyID,
		GuestID:    params.GuestID,
		HostID:     params.HostID,
		Range:      params.Range,
		Guests:     params.Guests,
		Price:      price,
		Policy:     params.Policy,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.appendTimeline(EventCreated, "booking requested", now)
	b.Record(BookingCreated{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, HostID: b.HostID, Range: b.Range, Total: b.Price.Total, At: now})
	return b, nil
}

// Active bookings hold dates on the ledger.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

func (b *Booking) Accept(hostID string, now time.Time) error {
	if b.Status != StatusPending {
		return b.transitionErr("accept")
	}
	if hostID != b.HostID {
		return b.forbidden("accept", hostID)
	}
	now = now.UTC()
	b.Status = StatusConfirmed
	b.AcceptedAt = &now
	b.touch(now)
	b.appendTimeline(EventAccepted, "host accepted the booking", now)
	b.Record(BookingAccepted{BookingID: b.ID, GuestID: b.GuestID, At: now})
	return nil
}

// CanReject validates a host rejection without applying it.
func (b *Booking) CanReject(hostID string) error {
	if b.Status != StatusPending {
		return b.transitionErr("reject")
	}
	if hostID != b.HostID {
		return b.forbidden("reject", hostID)
	}
	return nil
}

func (b *Booking) Reject(hostID, reason string, now time.Time) error {
	if err := b.CanReject(hostID); err != nil {
		return err
	}
	now = now.UTC()
	b.Status = StatusRejected
	b.touch(now)
	b.appendTimeline(string(StatusRejected), withReason("host rejected the booking", reason), now)
	b.Record(BookingRejected{BookingID: b.ID, GuestID: b.GuestID, Reason: reason, At: now})
	return nil
}

// ConfirmPayment moves a paid booking to CONFIRMED. A booking the host already
// accepted only gains the timeline entry.
func (b *Booking) ConfirmPayment(reference string, now time.Time) error {
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return b.transitionErr("confirm_payment")
	}
	now = now.UTC()
	b.Status = StatusConfirmed
	b.ConfirmedAt = &now
	b.touch(now)
	b.appendTimeline(EventPaymentConfirmed, "payment received, ref "+reference, now)
	b.Record(BookingConfirmed{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, HostID: b.HostID, Range: b.Range, Total: b.Price.Total, At: now})
	return nil
}

func (b *Booking) NotePaymentInitialized(reference string, now time.Time) {
	now = now.UTC()
	b.touch(now)
	b.appendTimeline(EventPaymentInitialized, "payment initialized, ref "+reference, now)
}

// CancelParams carries the refund decision computed before the transition.
type CancelParams struct {
	Actor         string
	Reason        string
	RefundPercent int
	RefundAmount  int64
	RefundStatus  RefundStatus
	RefundRef     string
	Now           time.Time
}

// CanCancel validates a cancellation by actor without applying it.
func (b *Booking) CanCancel(actor string) error {
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return b.transitionErr("cancel")
	}
	if actor != b.GuestID && actor != b.HostID && actor != SystemActor {
		return b.forbidden("cancel", actor)
	}
	return nil
}

func (b *Booking) Cancel(params CancelParams) error {
	if err := b.CanCancel(params.Actor); err != nil {
		return err
	}
	now := params.Now.UTC()
	status := params.RefundStatus
	if status == "" {
		status = RefundNone
	}
	b.Status = StatusCancelled
	b.Cancellation = &Cancellation{
		By:            params.Actor,
		At:            now,
		Reason:        params.Reason,
		RefundPercent: params.RefundPercent,
		RefundAmount:  params.RefundAmount,
		RefundStatus:  status,
		RefundRef:     params.RefundRef,
	}
	if status == RefundRequested {
		b.Cancellation.RefundRequestedAt = &now
	}
	b.touch(now)
	b.appendTimeline(string(StatusCancelled), withReason("booking cancelled", params.Reason), now)
	b.Record(BookingCancelled{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, HostID: b.HostID, By: params.Actor, Reason: params.Reason, RefundAmount: params.RefundAmount, At: now})
	return nil
}

// FailPayment cancels the booking after the gateway reported a failed charge.
func (b *Booking) FailPayment(reason string, now time.Time) error {
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return b.transitionErr("fail_payment")
	}
	now = now.UTC()
	b.Status = StatusCancelled
	b.Cancellation = &Cancellation{By: SystemActor, At: now, Reason: reason, RefundStatus: RefundNone}
	b.touch(now)
	b.appendTimeline(EventPaymentFailed, withReason("payment failed", reason), now)
	b.Record(BookingCancelled{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, HostID: b.HostID, By: SystemActor, Reason: reason, At: now})
	return nil
}

// RecordRefund updates the refund block on a cancelled or rejected booking.
// A booking cancelled without a cancellation record (rejection, late charge)
// gains one authored by the system.
func (b *Booking) RecordRefund(status RefundStatus, amount int64, reference string, now time.Time) {
	now = now.UTC()
	if b.Cancellation == nil {
		b.Cancellation = &Cancellation{By: SystemActor, At: now}
	}
	if b.Cancellation.RefundStatus == RefundProcessed && status != RefundProcessed {
		return
	}
	b.Cancellation.RefundStatus = status
	if status == RefundRequested {
		b.Cancellation.RefundRequestedAt = &now
	}
	if amount > 0 {
		b.Cancellation.RefundAmount = amount
	}
	if reference != "" {
		b.Cancellation.RefundRef = reference
	}
	b.touch(now)
	b.appendTimeline(EventRefund, "refund "+string(status), now)
}

// RefundRetryable reports whether a retry sweep may claim the refund: it
// failed, or its claim outlived RefundClaimTTL without an outcome.
func (b *Booking) RefundRetryable(now time.Time) bool {
	c := b.Cancellation
	if c == nil || c.RefundAmount <= 0 || !b.Status.Terminal() {
		return false
	}
	switch c.RefundStatus {
	case RefundFailed:
		return true
	case RefundRequested:
		return c.RefundRequestedAt == nil || !now.Before(c.RefundRequestedAt.Add(RefundClaimTTL))
	}
	return false
}

// ClaimRefund marks a retryable refund as requested. It returns false when
// another caller holds the claim or the refund needs nothing further.
func (b *Booking) ClaimRefund(now time.Time) bool {
	if !b.RefundRetryable(now) {
		return false
	}
	b.RecordRefund(RefundRequested, 0, "", now)
	return true
}

// MarkRefunded settles the refund from the gateway's confirmation, cancelling
// the booking if the refund arrived while it was still active.
func (b *Booking) MarkRefunded(amount int64, reference string, now time.Time) {
	if b.Active() {
		now = now.UTC()
		b.Status = StatusCancelled
		b.Cancellation = &Cancellation{By: SystemActor, At: now, Reason: "refunded by payment gateway", RefundPercent: 100}
		b.appendTimeline(string(StatusCancelled), "booking cancelled after refund", now)
		b.Record(BookingCancelled{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, HostID: b.HostID, By: SystemActor, Reason: "refunded", RefundAmount: amount, At: now})
	}
	b.RecordRefund(RefundProcessed, amount, reference, now)
}

func (b *Booking) CheckInGuest(actor string, details StayDetails, now time.Time) error {
	if b.Status != StatusConfirmed || b.HasCheckedIn {
		return b.transitionErr("check_in")
	}
	if actor != b.HostID && actor != SystemActor {
		return b.forbidden("check_in", actor)
	}
	now = now.UTC()
	if details.At.IsZero() {
		details.At = now
	}
	details.By = actor
	details.Photos = append([]string(nil), details.Photos...)
	b.CheckIn = &details
	b.HasCheckedIn = true
	b.touch(now)
	b.appendTimeline(EventCheckedIn, withReason("guest checked in", details.Notes), now)
	b.Record(GuestCheckedIn{BookingID: b.ID, At: now})
	return nil
}

// Complete closes a stay. It requires a prior check-in so the sweep cannot
// complete a stay the guest never started.
func (b *Booking) Complete(actor string, details StayDetails, now time.Time) error {
	if b.Status != StatusConfirmed || !b.HasCheckedIn {
		return b.transitionErr("complete")
	}
	if actor != b.HostID && actor != b.GuestID && actor != SystemActor {
		return b.forbidden("complete", actor)
	}
	now = now.UTC()
	if details.At.IsZero() {
		details.At = now
	}
	details.By = actor
	details.Photos = append([]string(nil), details.Photos...)
	b.CheckOut = &details
	b.HasCheckedOut = true
	b.Status = StatusCompleted
	b.touch(now)
	b.appendTimeline(string(StatusCompleted), withReason("stay completed", details.Notes), now)
	b.Record(BookingCompleted{BookingID: b.ID, PropertyID: b.PropertyID, HostID: b.HostID, GuestID: b.GuestID, At: now})
	return nil
}

// CanDelete allows the guest to discard a booking that was never paid.
func (b *Booking) CanDelete(actor string, paymentSettled bool) error {
	if actor != b.GuestID {
		return b.forbidden("delete", actor)
	}
	if paymentSettled || b.Status == StatusCompleted {
		return b.transitionErr("delete")
	}
	return nil
}

// AttachConversation stores the conversation id issued for guest and host.
func (b *Booking) AttachConversation(id string) {
	if b.ConversationID == "" {
		b.ConversationID = id
	}
}

// Overlaps reports whether the booking is active and holds any night of r.
func (b *Booking) Overlaps(r daterange.DateRange) bool {
	return b.Active() && b.Range.Overlaps(r)
}

func (b *Booking) appendTimeline(status, message string, at time.Time) {
	b.Timeline = append(b.Timeline, TimelineEntry{Status: status, Message: message, At: at})
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now
}

func withReason(message, reason string) string {
	if reason == "" {
		return message
	}
	return message + ": " + reason
}
