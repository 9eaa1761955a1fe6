package dto

import (
	"time"

	domainbooking "staysettle/internal/domain/booking"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type GuestsDTO struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

type CancellationDTO struct {
	By            string    `json:"by"`
	At            time.Time `json:"at"`
	Reason        string    `json:"reason,omitempty"`
	RefundPercent int       `json:"refund_percent"`
	RefundAmount  MoneyDTO  `json:"refund_amount"`
	RefundStatus  string    `json:"refund_status"`
}

type PaymentDTO struct {
	Status         string     `json:"status"`
	Amount         MoneyDTO   `json:"amount"`
	Reference      string     `json:"reference,omitempty"`
	RefundedAmount MoneyDTO   `json:"refunded_amount"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

type TimelineEntryDTO struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type Booking struct {
	ID             string             `json:"id"`
	PropertyID     string             `json:"property_id"`
	GuestID        string             `json:"guest_id"`
	HostID         string             `json:"host_id"`
	CheckIn        time.Time          `json:"check_in"`
	CheckOut       time.Time          `json:"check_out"`
	Nights         int                `json:"nights"`
	Guests         GuestsDTO          `json:"guests"`
	Status         string             `json:"status"`
	Policy         string             `json:"cancellation_policy"`
	Price          PriceBreakdown     `json:"price"`
	HasCheckedIn   bool               `json:"has_checked_in"`
	HasCheckedOut  bool               `json:"has_checked_out"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Cancellation   *CancellationDTO   `json:"cancellation,omitempty"`
	Payment        *PaymentDTO        `json:"payment,omitempty"`
	Timeline       []TimelineEntryDTO `json:"timeline,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

// MapBooking renders a booking; p may be nil when the payment is not loaded.
func MapBooking(b *domainbooking.Booking, p *payment.Payment) Booking {
	out := Booking{
		ID:         string(b.ID),
		PropertyID: string(b.PropertyID),
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		CheckIn:    b.Range.CheckIn,
		CheckOut:   b.Range.CheckOut,
		Nights:     b.Range.Nights(),
		Guests: GuestsDTO{
			Adults:   b.Guests.Adults,
			Children: b.Guests.Children,
			Infants:  b.Guests.Infants,
		},
		Status:         string(b.Status),
		Policy:         string(b.Policy),
		Price:          MapPriceBreakdown(b.Price),
		HasCheckedIn:   b.HasCheckedIn,
		HasCheckedOut:  b.HasCheckedOut,
		ConversationID: b.ConversationID,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if c := b.Cancellation; c != nil {
		out.Cancellation = &CancellationDTO{
			By:            c.By,
			At:            c.At,
			Reason:        c.Reason,
			RefundPercent: c.RefundPercent,
			RefundAmount:  MoneyDTO{Amount: c.RefundAmount, Currency: b.Price.Total.Currency},
			RefundStatus:  string(c.RefundStatus),
		}
	}
	if p != nil {
		out.Payment = &PaymentDTO{
			Status:         string(p.Status),
			Amount:         MapMoney(p.Amount),
			Reference:      p.Reference,
			RefundedAmount: MoneyDTO{Amount: p.RefundedAmount, Currency: p.Amount.Currency},
			PaidAt:         p.PaidAt,
		}
	}
	for _, entry := range b.Timeline {
		out.Timeline = append(out.Timeline, TimelineEntryDTO{Status: entry.Status, Message: entry.Message, At: entry.At})
	}
	return out
}

func MapBookings(list []*domainbooking.Booking) BookingCollection {
	items := make([]Booking, 0, len(list))
	for _, b := range list {
		items = append(items, MapBooking(b, nil))
	}
	return BookingCollection{Items: items}
}
