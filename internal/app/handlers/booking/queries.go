package booking

import (
	"context"
	"sort"

	"staysettle/internal/app/dto"
	"staysettle/internal/app/queries"
	"staysettle/internal/app/services/bookings"
	domainbooking "staysettle/internal/domain/booking"
)

const (
	getBookingKey        = "booking.get"
	listGuestBookingsKey = "guest.bookings.list"
	listHostBookingsKey  = "host.bookings.list"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	Service *bookings.Service
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	b, p, err := h.Service.Get(ctx, q.BookingID, q.ActorID)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b, p), nil
}

// ListBookingsQuery lists the bookings of a guest, or of a host when AsHost is set.
// Status filters on one booking status; empty means all.
type ListBookingsQuery struct {
	ActorID string `validate:"required"`
	AsHost  bool
	Status  string `validate:"omitempty,oneof=PENDING CONFIRMED COMPLETED CANCELLED REJECTED"`
}

func (q ListBookingsQuery) Key() string {
	if q.AsHost {
		return listHostBookingsKey
	}
	return listGuestBookingsKey
}

type ListBookingsHandler struct {
	Service *bookings.Service
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	var (
		list []*domainbooking.Booking
		err  error
	)
	if q.AsHost {
		list, err = h.Service.ListForHost(ctx, q.ActorID)
	} else {
		list, err = h.Service.ListForGuest(ctx, q.ActorID)
	}
	if err != nil {
		return dto.BookingCollection{}, err
	}
	filtered := list[:0]
	for _, b := range list {
		if q.Status == "" || string(b.Status) == q.Status {
			filtered = append(filtered, b)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	return dto.MapBookings(filtered), nil
}

func RegisterQueries(bus *queries.InMemoryBus, svc *bookings.Service) {
	queries.RegisterHandler[GetBookingQuery, dto.Booking](bus, getBookingKey, &GetBookingHandler{Service: svc})
	lists := &ListBookingsHandler{Service: svc}
	queries.RegisterHandler[ListBookingsQuery, dto.BookingCollection](bus, listGuestBookingsKey, lists)
	queries.RegisterHandler[ListBookingsQuery, dto.BookingCollection](bus, listHostBookingsKey, lists)
}
