// Package bookings drives the booking state machine together with the
// payment record, the property ledger and the host's earning.
package bookings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staysettle/internal/app/effects"
	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/schedule"
	"staysettle/internal/app/services/earnings"
	"staysettle/internal/app/services/refunds"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/pricing"
	"staysettle/internal/domain/property"
	"staysettle/internal/domain/refund"
	"staysettle/internal/domain/shared/daterange"
	"staysettle/internal/domain/shared/events"
	"staysettle/internal/domain/shared/fault"
)

const conversationRequested = "conversation.requested"

type Service struct {
	UoW       uow.UoWFactory
	Pricing   pricing.Calculator
	Refunds   *refunds.Executor
	Earnings  *earnings.Engine
	Jobs      schedule.Scheduler
	Notifier  policies.Notifier
	Metrics   policies.Metrics
	Encoder   outbox.EventEncoder
	StayTimes StayTimes
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) effects() effects.Runner {
	return effects.Runner{Logger: s.Logger, Metrics: s.Metrics}
}

func (s *Service) stayTimes() StayTimes {
	if s.StayTimes == (StayTimes{}) {
		return DefaultStayTimes()
	}
	return s.StayTimes
}

type CreateInput struct {
	GuestID    string
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     booking.Guests
}

// Create reserves the dates and opens the booking with its pending payment.
// Availability is checked inside the unit so a conflicting writer forces a
// retry that sees the competing reservation.
func (s *Service) Create(ctx context.Context, in CreateInput) (*booking.Booking, error) {
	if strings.TrimSpace(in.GuestID) == "" {
		return nil, fault.Validation("guest_required", "guest id is required")
	}
	dr, err := daterange.New(in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, fault.Wrap(fault.ErrValidation, "invalid_dates", err)
	}
	now := s.now()
	var created *booking.Booking
	var hostID string
	err = uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		created = nil
		prop, err := unit.Properties().ByID(ctx, property.PropertyID(in.PropertyID))
		if err != nil {
			return err
		}
		if string(prop.Host) == in.GuestID {
			return fault.Validation("own_property", "hosts cannot book their own property")
		}
		if err := s.ensureAvailable(ctx, unit, prop, in.GuestID, dr); err != nil {
			return err
		}
		quote, err := s.Pricing.Quote(pricing.QuoteInput{Property: prop, Range: dr, Guests: in.Guests.Total(), Now: now})
		if err != nil {
			return err
		}
		b, err := booking.New(booking.CreateParams{
			ID:         booking.BookingID(s.newID()),
			PropertyID: prop.ID,
			GuestID:    in.GuestID,
			HostID:     string(prop.Host),
			Range:      dr,
			Guests:     in.Guests,
			Price:      quote,
			Policy:     refundPolicy(prop),
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		if err := prop.Reserve(string(b.ID), dr, now); err != nil {
			return err
		}
		pay := payment.New(payment.PaymentID(s.newID()), string(b.ID), b.GuestID, b.Price.Total, now)
		if err := s.openConversation(ctx, unit, b, now); err != nil {
			return err
		}
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := unit.Payments().Save(ctx, pay); err != nil {
			return err
		}
		if err := outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, prop, pay); err != nil {
			return err
		}
		created = b
		hostID = string(prop.Host)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("booking created", "booking_id", created.ID, "property_id", created.PropertyID, "guest_id", created.GuestID, "total", created.Price.Total.Amount)
	}
	s.effects().Run(ctx,
		effects.Notify(s.Notifier, hostID, policies.TemplateBookingRequested, bookingData(created)),
	)
	return created, nil
}

// ensureAvailable rejects a duplicate request from the same guest before the
// general conflict checks so the caller learns which one applied.
func (s *Service) ensureAvailable(ctx context.Context, unit uow.UnitOfWork, prop *property.Property, guestID string, dr daterange.DateRange) error {
	active, err := unit.Bookings().ActiveByProperty(ctx, prop.ID)
	if err != nil {
		return err
	}
	conflict := false
	for _, other := range active {
		if !other.Overlaps(dr) {
			continue
		}
		if other.GuestID == guestID {
			return booking.ErrDuplicate
		}
		conflict = true
	}
	if conflict || !prop.IsAvailable(dr) {
		return property.ErrRangeUnavailable
	}
	return nil
}

// openConversation assigns a conversation id and asks the messaging service,
// through the outbox, to open it between guest and host.
func (s *Service) openConversation(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
	if b.ConversationID != "" {
		return nil
	}
	b.AttachConversation(s.newID())
	return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.Encoder, []events.DomainEvent{conversationRequest{
		ConversationID: b.ConversationID,
		BookingID:      string(b.ID),
		GuestID:        b.GuestID,
		HostID:         b.HostID,
		At:             now,
	}})
}

func (s *Service) Accept(ctx context.Context, bookingID, hostID string) (*booking.Booking, error) {
	now := s.now()
	var accepted *booking.Booking
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(bookingID))
		if err != nil {
			return err
		}
		if err := b.Accept(hostID, now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		accepted = b
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b)
	})
	if err != nil {
		return nil, err
	}
	s.effects().Run(ctx, effects.Notify(s.Notifier, accepted.GuestID, policies.TemplateBookingAccepted, bookingData(accepted)))
	return accepted, nil
}

// Get returns the booking to its guest or host.
func (s *Service) Get(ctx context.Context, bookingID, actor string) (*booking.Booking, *payment.Payment, error) {
	var b *booking.Booking
	var p *payment.Payment
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		b, err = unit.Bookings().ByID(ctx, booking.BookingID(bookingID))
		if err != nil {
			return err
		}
		p, err = optionalPayment(ctx, unit, bookingID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if actor != b.GuestID && actor != b.HostID {
		return nil, nil, booking.ErrBookingNotFound
	}
	return b, p, nil
}

func (s *Service) ListForGuest(ctx context.Context, guestID string) ([]*booking.Booking, error) {
	var list []*booking.Booking
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		list, err = unit.Bookings().ListByGuest(ctx, guestID)
		return err
	})
	return list, err
}

func (s *Service) ListForHost(ctx context.Context, hostID string) ([]*booking.Booking, error) {
	var list []*booking.Booking
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		list, err = unit.Bookings().ListByHost(ctx, hostID)
		return err
	})
	return list, err
}

func optionalPayment(ctx context.Context, unit uow.UnitOfWork, bookingID string) (*payment.Payment, error) {
	p, err := unit.Payments().ByBooking(ctx, bookingID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		return nil, nil
	}
	return p, err
}

func refundPolicy(p *property.Property) refund.Policy {
	return refund.ParsePolicy(p.CancellationPolicy)
}

func bookingData(b *booking.Booking) map[string]any {
	return map[string]any{
		"booking_id":  string(b.ID),
		"property_id": string(b.PropertyID),
		"status":      string(b.Status),
		"check_in":    b.Range.CheckIn.Format(time.DateOnly),
		"check_out":   b.Range.CheckOut.Format(time.DateOnly),
		"total":       b.Price.Total.Amount,
		"currency":    b.Price.Total.Currency,
	}
}

type conversationRequest struct {
	ConversationID string    `json:"conversation_id"`
	BookingID      string    `json:"booking_id"`
	GuestID        string    `json:"guest_id"`
	HostID         string    `json:"host_id"`
	At             time.Time `json:"at"`
}

func (e conversationRequest) EventName() string     { return conversationRequested }
func (e conversationRequest) AggregateID() string   { return e.ConversationID }
func (e conversationRequest) OccurredAt() time.Time { return e.At }
