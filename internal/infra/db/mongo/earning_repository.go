package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/shared/money"
)

type EarningRepository struct {
	col *mongo.Collection
}

func NewEarningRepository(db *mongo.Database) *EarningRepository {
	return &EarningRepository{col: db.Collection(earningsCollection)}
}

func (r *EarningRepository) ByID(ctx context.Context, id earning.EarningID) (*earning.Earning, error) {
	return r.one(ctx, bson.M{"_id": string(id)})
}

func (r *EarningRepository) ByBooking(ctx context.Context, bookingID string) (*earning.Earning, error) {
	return r.one(ctx, bson.M{"booking_id": bookingID})
}

func (r *EarningRepository) Save(ctx context.Context, e *earning.Earning) error {
	doc := newEarningDocument(e)
	doc.Version = e.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, e.Version, doc); err != nil {
		return err
	}
	e.Version = doc.Version
	return nil
}

func (r *EarningRepository) List(ctx context.Context, f earning.Filter) ([]*earning.Earning, error) {
	filter := bson.M{}
	if f.HostID != "" {
		filter["host_id"] = f.HostID
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lt"] = f.To
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	return r.list(ctx, filter)
}

func (r *EarningRepository) ListByPayout(ctx context.Context, payoutID string) ([]*earning.Earning, error) {
	if payoutID == "" {
		return []*earning.Earning{}, nil
	}
	return r.list(ctx, bson.M{"payout_id": payoutID})
}

func (r *EarningRepository) DuePending(ctx context.Context, cutoff time.Time) ([]*earning.Earning, error) {
	return r.list(ctx, bson.M{
		"status":       string(earning.StatusPending),
		"payout_id":    "",
		"available_at": bson.M{"$lte": cutoff},
	})
}

func (r *EarningRepository) one(ctx context.Context, filter bson.M) (*earning.Earning, error) {
	doc, err := findOne[earningDocument](ctx, r.col, filter, earning.ErrEarningNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *EarningRepository) list(ctx context.Context, filter bson.M) ([]*earning.Earning, error) {
	docs, err := findMany[earningDocument](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*earning.Earning, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type earningDocument struct {
	ID               string      `bson:"_id"`
	HostID           string      `bson:"host_id"`
	PropertyID       string      `bson:"property_id"`
	BookingID        string      `bson:"booking_id"`
	Gross            money.Money `bson:"gross"`
	ServiceFee       money.Money `bson:"service_fee"`
	Net              money.Money `bson:"net"`
	Status           string      `bson:"status"`
	AvailableAt      time.Time   `bson:"available_at"`
	PayoutID         string      `bson:"payout_id"`
	PaymentReference string      `bson:"payment_reference"`
	CancelReason     string      `bson:"cancel_reason,omitempty"`
	PaidAt           *time.Time  `bson:"paid_at,omitempty"`
	CancelledAt      *time.Time  `bson:"cancelled_at,omitempty"`
	CreatedAt        time.Time   `bson:"created_at"`
	UpdatedAt        time.Time   `bson:"updated_at"`
	Version          int64       `bson:"version"`
}

func newEarningDocument(e *earning.Earning) earningDocument {
	return earningDocument{
		ID:               string(e.ID),
		HostID:           e.HostID,
		PropertyID:       e.PropertyID,
		BookingID:        e.BookingID,
		Gross:            e.Gross,
		ServiceFee:       e.ServiceFee,
		Net:              e.Net,
		Status:           string(e.Status),
		AvailableAt:      e.AvailableAt,
		PayoutID:         e.PayoutID,
		PaymentReference: e.PaymentReference,
		CancelReason:     e.CancelReason,
		PaidAt:           e.PaidAt,
		CancelledAt:      e.CancelledAt,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		Version:          e.Version,
	}
}

func (d earningDocument) toAggregate() *earning.Earning {
	return &earning.Earning{
		ID:               earning.EarningID(d.ID),
		HostID:           d.HostID,
		PropertyID:       d.PropertyID,
		BookingID:        d.BookingID,
		Gross:            d.Gross,
		ServiceFee:       d.ServiceFee,
		Net:              d.Net,
		Status:           earning.Status(d.Status),
		AvailableAt:      d.AvailableAt.UTC(),
		PayoutID:         d.PayoutID,
		PaymentReference: d.PaymentReference,
		CancelReason:     d.CancelReason,
		PaidAt:           d.PaidAt,
		CancelledAt:      d.CancelledAt,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
		Version:          d.Version,
	}
}
