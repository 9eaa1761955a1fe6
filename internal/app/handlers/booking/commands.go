// Package booking exposes booking lifecycle operations on the command and query buses.
package booking

import (
	"context"
	"time"

	"staysettle/internal/app/commands"
	"staysettle/internal/app/dto"
	"staysettle/internal/app/middleware"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/domain/auth"
	domainbooking "staysettle/internal/domain/booking"
)

const (
	requestBookingKey  = "booking.request"
	acceptBookingKey   = "booking.accept"
	rejectBookingKey   = "booking.reject"
	cancelBookingKey   = "booking.cancel"
	checkInBookingKey  = "booking.check_in"
	completeBookingKey = "booking.complete"
	deleteBookingKey   = "booking.delete"
)

type RequestBookingCommand struct {
	GuestID         string    `validate:"required"`
	PropertyID      string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required,gtfield=CheckIn"`
	Adults          int       `validate:"gte=1"`
	Children        int       `validate:"gte=0"`
	Infants         int       `validate:"gte=0"`
	IdempotencyKeyV string
}

func (c RequestBookingCommand) Key() string { return requestBookingKey }

func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c RequestBookingCommand) RequiredRole() auth.Role { return auth.RoleGuest }

type RequestBookingHandler struct {
	Service *bookings.Service
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (*dto.Booking, error) {
	b, err := h.Service.Create(ctx, bookings.CreateInput{
		GuestID:    cmd.GuestID,
		PropertyID: cmd.PropertyID,
		CheckIn:    cmd.CheckIn,
		CheckOut:   cmd.CheckOut,
		Guests: domainbooking.Guests{
			Adults:   cmd.Adults,
			Children: cmd.Children,
			Infants:  cmd.Infants,
		},
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b, nil)
	return &out, nil
}

// HostDecisionCommand accepts or rejects a pending booking.
type HostDecisionCommand struct {
	BookingID string `validate:"required"`
	HostID    string `validate:"required"`
	Reject    bool
	Reason    string `validate:"max=500"`
}

func (c HostDecisionCommand) Key() string {
	if c.Reject {
		return rejectBookingKey
	}
	return acceptBookingKey
}

func (c HostDecisionCommand) RequiredRole() auth.Role { return auth.RoleHost }

type HostDecisionHandler struct {
	Service *bookings.Service
}

func (h *HostDecisionHandler) Handle(ctx context.Context, cmd HostDecisionCommand) (*dto.Booking, error) {
	if cmd.Reject {
		res, err := h.Service.Reject(ctx, cmd.BookingID, cmd.HostID, cmd.Reason)
		if err != nil {
			return nil, err
		}
		out := dto.MapBooking(res.Booking, nil)
		return &out, nil
	}
	b, err := h.Service.Accept(ctx, cmd.BookingID, cmd.HostID)
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b, nil)
	return &out, nil
}

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Reason    string `validate:"max=500"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

type CancelBookingResult struct {
	Booking      dto.Booking  `json:"booking"`
	RefundAmount dto.MoneyDTO `json:"refund_amount"`
	RefundStatus string       `json:"refund_status"`
}

type CancelBookingHandler struct {
	Service *bookings.Service
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*CancelBookingResult, error) {
	res, err := h.Service.Cancel(ctx, bookings.CancelInput{BookingID: cmd.BookingID, Actor: cmd.ActorID, Reason: cmd.Reason})
	if err != nil {
		return nil, err
	}
	return &CancelBookingResult{
		Booking:      dto.MapBooking(res.Booking, nil),
		RefundAmount: dto.MapMoney(res.Refund.Quote.Amount),
		RefundStatus: string(res.Refund.Status),
	}, nil
}

// StayCommand records a check-in or a checkout for a booking.
type StayCommand struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Checkout  bool
	Notes     string   `validate:"max=2000"`
	Photos    []string `validate:"max=20,dive,url"`
}

func (c StayCommand) Key() string {
	if c.Checkout {
		return completeBookingKey
	}
	return checkInBookingKey
}

type StayHandler struct {
	Service *bookings.Service
}

func (h *StayHandler) Handle(ctx context.Context, cmd StayCommand) (*dto.Booking, error) {
	in := bookings.StayInput{BookingID: cmd.BookingID, Actor: cmd.ActorID, Notes: cmd.Notes, Photos: cmd.Photos}
	var b *domainbooking.Booking
	if cmd.Checkout {
		res, err := h.Service.Complete(ctx, in)
		if err != nil {
			return nil, err
		}
		b = res.Booking
	} else {
		var err error
		if b, err = h.Service.CheckIn(ctx, in); err != nil {
			return nil, err
		}
	}
	out := dto.MapBooking(b, nil)
	return &out, nil
}

type DeleteBookingCommand struct {
	BookingID string `validate:"required"`
	GuestID   string `validate:"required"`
}

func (c DeleteBookingCommand) Key() string { return deleteBookingKey }

type DeleteBookingHandler struct {
	Service *bookings.Service
}

func (h *DeleteBookingHandler) Handle(ctx context.Context, cmd DeleteBookingCommand) (struct{}, error) {
	return struct{}{}, h.Service.Delete(ctx, cmd.BookingID, cmd.GuestID)
}

// Register attaches every booking command handler to the bus.
func Register(bus *commands.InMemoryBus, svc *bookings.Service) {
	commands.RegisterHandler[RequestBookingCommand, *dto.Booking](bus, requestBookingKey, &RequestBookingHandler{Service: svc})
	decisions := &HostDecisionHandler{Service: svc}
	commands.RegisterHandler[HostDecisionCommand, *dto.Booking](bus, acceptBookingKey, decisions)
	commands.RegisterHandler[HostDecisionCommand, *dto.Booking](bus, rejectBookingKey, decisions)
	commands.RegisterHandler[CancelBookingCommand, *CancelBookingResult](bus, cancelBookingKey, &CancelBookingHandler{Service: svc})
	stays := &StayHandler{Service: svc}
	commands.RegisterHandler[StayCommand, *dto.Booking](bus, checkInBookingKey, stays)
	commands.RegisterHandler[StayCommand, *dto.Booking](bus, completeBookingKey, stays)
	commands.RegisterHandler[DeleteBookingCommand, struct{}](bus, deleteBookingKey, &DeleteBookingHandler{Service: svc})
}

var _ middleware.IdempotentCommand = RequestBookingCommand{}
var _ middleware.RoleRestricted = RequestBookingCommand{}
