package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/shared/money"
)

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection(paymentsCollection)}
}

func (r *PaymentRepository) ByID(ctx context.Context, id payment.PaymentID) (*payment.Payment, error) {
	return r.one(ctx, bson.M{"_id": string(id)})
}

func (r *PaymentRepository) ByBooking(ctx context.Context, bookingID string) (*payment.Payment, error) {
	return r.one(ctx, bson.M{"booking_id": bookingID})
}

func (r *PaymentRepository) ByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	if reference == "" {
		return nil, payment.ErrPaymentNotFound
	}
	return r.one(ctx, bson.M{"reference": reference})
}

func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	doc := newPaymentDocument(p)
	doc.Version = p.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, p.Version, doc); err != nil {
		return err
	}
	p.Version = doc.Version
	return nil
}

func (r *PaymentRepository) Delete(ctx context.Context, id payment.PaymentID) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	return classify(err)
}

func (r *PaymentRepository) one(ctx context.Context, filter bson.M) (*payment.Payment, error) {
	doc, err := findOne[paymentDocument](ctx, r.col, filter, payment.ErrPaymentNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

type paymentDocument struct {
	ID              string      `bson:"_id"`
	BookingID       string      `bson:"booking_id"`
	GuestID         string      `bson:"guest_id"`
	Amount          money.Money `bson:"amount"`
	Status          string      `bson:"status"`
	Method          string      `bson:"method"`
	Reference       string      `bson:"reference,omitempty"`
	GatewayResponse []byte      `bson:"gateway_response,omitempty"`
	FailureReason   string      `bson:"failure_reason,omitempty"`
	RefundedAmount  int64       `bson:"refunded_amount"`
	PaidAt          *time.Time  `bson:"paid_at,omitempty"`
	RefundedAt      *time.Time  `bson:"refunded_at,omitempty"`
	CreatedAt       time.Time   `bson:"created_at"`
	UpdatedAt       time.Time   `bson:"updated_at"`
	Version         int64       `bson:"version"`
}

func newPaymentDocument(p *payment.Payment) paymentDocument {
	return paymentDocument{
		ID:              string(p.ID),
		BookingID:       p.BookingID,
		GuestID:         p.GuestID,
		Amount:          p.Amount,
		Status:          string(p.Status),
		Method:          p.Method,
		Reference:       p.Reference,
		GatewayResponse: p.GatewayResponse,
		FailureReason:   p.FailureReason,
		RefundedAmount:  p.RefundedAmount,
		PaidAt:          p.PaidAt,
		RefundedAt:      p.RefundedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}

func (d paymentDocument) toAggregate() *payment.Payment {
	return &payment.Payment{
		ID:              payment.PaymentID(d.ID),
		BookingID:       d.BookingID,
		GuestID:         d.GuestID,
		Amount:          d.Amount,
		Status:          payment.Status(d.Status),
		Method:          d.Method,
		Reference:       d.Reference,
		GatewayResponse: d.GatewayResponse,
		FailureReason:   d.FailureReason,
		RefundedAmount:  d.RefundedAmount,
		PaidAt:          d.PaidAt,
		RefundedAt:      d.RefundedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		Version:         d.Version,
	}
}
