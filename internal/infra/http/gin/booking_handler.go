package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staysettle/internal/app/commands"
	"staysettle/internal/app/dto"
	bookingapp "staysettle/internal/app/handlers/booking"
	"staysettle/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	CheckIn    string `json:"check_in" binding:"required"`
	CheckOut   string `json:"check_out" binding:"required"`
	Adults     int    `json:"adults"`
	Children   int    `json:"children"`
	Infants    int    `json:"infants"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type stayRequest struct {
	Notes  string   `json:"notes"`
	Photos []string `json:"photos"`
}

func (h BookingHandler) Create(c *gin.Context) {
	guest, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	checkIn, err := parseDay(req.CheckIn)
	if err != nil {
		badRequest(c, err)
		return
	}
	checkOut, err := parseDay(req.CheckOut)
	if err != nil {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.RequestBookingCommand{
		GuestID:         guest.ID,
		PropertyID:      strings.TrimSpace(req.PropertyID),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Adults:          req.Adults,
		Children:        req.Children,
		Infants:         req.Infants,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.RequestBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Accept(c *gin.Context) {
	h.decide(c, false)
}

func (h BookingHandler) Reject(c *gin.Context) {
	h.decide(c, true)
}

func (h BookingHandler) decide(c *gin.Context, reject bool) {
	host, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.HostDecisionCommand{
		BookingID: strings.TrimSpace(c.Param("id")),
		HostID:    host.ID,
		Reject:    reject,
		Reason:    strings.TrimSpace(req.Reason),
	}
	result, err := commands.Dispatch[bookingapp.HostDecisionCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.CancelBookingCommand{
		BookingID: strings.TrimSpace(c.Param("id")),
		ActorID:   actor.ID,
		Reason:    strings.TrimSpace(req.Reason),
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.CancelBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CheckIn(c *gin.Context) {
	h.stay(c, false)
}

func (h BookingHandler) Complete(c *gin.Context) {
	h.stay(c, true)
}

func (h BookingHandler) stay(c *gin.Context, checkout bool) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req stayRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.StayCommand{
		BookingID: strings.TrimSpace(c.Param("id")),
		ActorID:   actor.ID,
		Checkout:  checkout,
		Notes:     strings.TrimSpace(req.Notes),
		Photos:    req.Photos,
	}
	result, err := commands.Dispatch[bookingapp.StayCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Delete(c *gin.Context) {
	guest, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := bookingapp.DeleteBookingCommand{BookingID: strings.TrimSpace(c.Param("id")), GuestID: guest.ID}
	if _, err := commands.Dispatch[bookingapp.DeleteBookingCommand, struct{}](c.Request.Context(), h.Commands, cmd); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h BookingHandler) Get(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{BookingID: strings.TrimSpace(c.Param("id")), ActorID: actor.ID}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List returns the caller's bookings as a guest, or as a host with ?as=host.
func (h BookingHandler) List(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.ListBookingsQuery{
		ActorID: actor.ID,
		AsHost:  c.Query("as") == "host",
		Status:  strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

// parseDay accepts calendar dates and RFC 3339 timestamps.
func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", value)
	}
	return t.UTC(), nil
}
