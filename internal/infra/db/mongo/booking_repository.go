package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staysettle/internal/domain/booking"
	domainpricing "staysettle/internal/domain/pricing"
	"staysettle/internal/domain/property"
	"staysettle/internal/domain/refund"
	domainrange "staysettle/internal/domain/shared/daterange"
)

var activeStatuses = []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	doc, err := findOne[bookingDocument](ctx, r.col, bson.M{"_id": string(id)}, domainbooking.ErrBookingNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, b.Version, doc); err != nil {
		return err
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id domainbooking.BookingID) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	return classify(err)
}

func (r *BookingRepository) ActiveByProperty(ctx context.Context, propertyID property.PropertyID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"property_id": string(propertyID), "status": bson.M{"$in": activeStatuses}})
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"guest_id": guestID})
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"host_id": hostID})
}

func (r *BookingRepository) DueForCompletion(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"status": string(domainbooking.StatusConfirmed), "check_out": bson.M{"$lte": cutoff}})
}

func (r *BookingRepository) FailedRefunds(ctx context.Context) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{
		"status":                     bson.M{"$in": []string{string(domainbooking.StatusCancelled), string(domainbooking.StatusRejected)}},
		"cancellation.refund_status": bson.M{"$in": []string{string(domainbooking.RefundFailed), string(domainbooking.RefundRequested)}},
	})
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	docs, err := findMany[bookingDocument](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type cancellationDocument struct {
	By                string     `bson:"by"`
	At                time.Time  `bson:"at"`
	Reason            string     `bson:"reason"`
	RefundPercent     int        `bson:"refund_percent"`
	RefundAmount      int64      `bson:"refund_amount"`
	RefundStatus      string     `bson:"refund_status"`
	RefundRef         string     `bson:"refund_ref"`
	RefundRequestedAt *time.Time `bson:"refund_requested_at,omitempty"`
}

type bookingDocument struct {
	ID             string                        `bson:"_id"`
	PropertyID     string                        `bson:"property_id"`
	GuestID        string                        `bson:"guest_id"`
	HostID         string                        `bson:"host_id"`
	CheckIn        time.Time                     `bson:"check_in"`
	CheckOut       time.Time                     `bson:"check_out"`
	Guests         domainbooking.Guests          `bson:"guests"`
	Price          domainpricing.PriceBreakdown  `bson:"price"`
	Policy         string                        `bson:"policy"`
	Status         string                        `bson:"status"`
	Cancellation   *cancellationDocument         `bson:"cancellation,omitempty"`
	CheckInStay    *domainbooking.StayDetails    `bson:"check_in_details,omitempty"`
	CheckOutStay   *domainbooking.StayDetails    `bson:"check_out_details,omitempty"`
	HasCheckedIn   bool                          `bson:"has_checked_in"`
	HasCheckedOut  bool                          `bson:"has_checked_out"`
	ConversationID string                        `bson:"conversation_id"`
	Timeline       []domainbooking.TimelineEntry `bson:"timeline"`
	AcceptedAt     *time.Time                    `bson:"accepted_at,omitempty"`
	ConfirmedAt    *time.Time                    `bson:"confirmed_at,omitempty"`
	CreatedAt      time.Time                     `bson:"created_at"`
	UpdatedAt      time.Time                     `bson:"updated_at"`
	Version        int64                         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:             string(b.ID),
		PropertyID:     string(b.PropertyID),
		GuestID:        b.GuestID,
		HostID:         b.HostID,
		CheckIn:        b.Range.CheckIn,
		CheckOut:       b.Range.CheckOut,
		Guests:         b.Guests,
		Price:          b.Price,
		Policy:         string(b.Policy),
		Status:         string(b.Status),
		CheckInStay:    b.CheckIn,
		CheckOutStay:   b.CheckOut,
		HasCheckedIn:   b.HasCheckedIn,
		HasCheckedOut:  b.HasCheckedOut,
		ConversationID: b.ConversationID,
		Timeline:       b.Timeline,
		AcceptedAt:     b.AcceptedAt,
		ConfirmedAt:    b.ConfirmedAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
		Version:        b.Version,
	}
	if c := b.Cancellation; c != nil {
		doc.Cancellation = &cancellationDocument{
			By:                c.By,
			At:                c.At,
			Reason:            c.Reason,
			RefundPercent:     c.RefundPercent,
			RefundAmount:      c.RefundAmount,
			RefundStatus:      string(c.RefundStatus),
			RefundRef:         c.RefundRef,
			RefundRequestedAt: c.RefundRequestedAt,
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	agg := &domainbooking.Booking{
		ID:             domainbooking.BookingID(d.ID),
		PropertyID:     property.PropertyID(d.PropertyID),
		GuestID:        d.GuestID,
		HostID:         d.HostID,
		Range:          domainrange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Guests:         d.Guests,
		Price:          d.Price,
		Policy:         refund.Policy(d.Policy),
		Status:         domainbooking.Status(d.Status),
		CheckIn:        d.CheckInStay,
		CheckOut:       d.CheckOutStay,
		HasCheckedIn:   d.HasCheckedIn,
		HasCheckedOut:  d.HasCheckedOut,
		ConversationID: d.ConversationID,
		Timeline:       d.Timeline,
		AcceptedAt:     d.AcceptedAt,
		ConfirmedAt:    d.ConfirmedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Version:        d.Version,
	}
	if c := d.Cancellation; c != nil {
		agg.Cancellation = &domainbooking.Cancellation{
			By:                c.By,
			At:                c.At,
			Reason:            c.Reason,
			RefundPercent:     c.RefundPercent,
			RefundAmount:      c.RefundAmount,
			RefundStatus:      domainbooking.RefundStatus(c.RefundStatus),
			RefundRef:         c.RefundRef,
			RefundRequestedAt: c.RefundRequestedAt,
		}
	}
	return agg
}
