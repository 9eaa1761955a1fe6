package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/shared/money"
)

type PayoutRepository struct {
	col *mongo.Collection
}

func NewPayoutRepository(db *mongo.Database) *PayoutRepository {
	return &PayoutRepository{col: db.Collection(payoutsCollection)}
}

func (r *PayoutRepository) ByID(ctx context.Context, id payout.PayoutID) (*payout.Payout, error) {
	return r.one(ctx, bson.M{"_id": string(id)})
}

func (r *PayoutRepository) ByTransferReference(ctx context.Context, reference string) (*payout.Payout, error) {
	if reference == "" {
		return nil, payout.ErrPayoutNotFound
	}
	return r.one(ctx, bson.M{"transfer_reference": reference})
}

func (r *PayoutRepository) Save(ctx context.Context, p *payout.Payout) error {
	doc := newPayoutDocument(p)
	doc.Version = p.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, p.Version, doc); err != nil {
		return err
	}
	p.Version = doc.Version
	return nil
}

func (r *PayoutRepository) ListByHost(ctx context.Context, hostID string) ([]*payout.Payout, error) {
	docs, err := findMany[payoutDocument](ctx, r.col, bson.M{"host_id": hostID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*payout.Payout, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *PayoutRepository) one(ctx context.Context, filter bson.M) (*payout.Payout, error) {
	doc, err := findOne[payoutDocument](ctx, r.col, filter, payout.ErrPayoutNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

type bankDocument struct {
	BankCode      string `bson:"bank_code"`
	BankName      string `bson:"bank_name"`
	AccountNumber string `bson:"account_number"`
	AccountName   string `bson:"account_name"`
	RecipientCode string `bson:"recipient_code,omitempty"`
}

func newBankDocument(d payout.BankDetails) bankDocument {
	return bankDocument(d)
}

func (d bankDocument) details() payout.BankDetails {
	return payout.BankDetails(d)
}

type payoutDocument struct {
	ID                string       `bson:"_id"`
	HostID            string       `bson:"host_id"`
	Amount            money.Money  `bson:"amount"`
	Status            string       `bson:"status"`
	Method            string       `bson:"method"`
	Bank              bankDocument `bson:"bank"`
	TransferReference string       `bson:"transfer_reference,omitempty"`
	TransferCode      string       `bson:"transfer_code,omitempty"`
	EarningIDs        []string     `bson:"earning_ids"`
	FailureReason     string       `bson:"failure_reason,omitempty"`
	ProcessingAt      time.Time    `bson:"processing_at"`
	CompletedAt       *time.Time   `bson:"completed_at,omitempty"`
	FailedAt          *time.Time   `bson:"failed_at,omitempty"`
	CreatedAt         time.Time    `bson:"created_at"`
	UpdatedAt         time.Time    `bson:"updated_at"`
	Version           int64        `bson:"version"`
}

func newPayoutDocument(p *payout.Payout) payoutDocument {
	return payoutDocument{
		ID:                string(p.ID),
		HostID:            p.HostID,
		Amount:            p.Amount,
		Status:            string(p.Status),
		Method:            p.Method,
		Bank:              newBankDocument(p.Bank),
		TransferReference: p.TransferReference,
		TransferCode:      p.TransferCode,
		EarningIDs:        p.EarningIDs,
		FailureReason:     p.FailureReason,
		ProcessingAt:      p.ProcessingAt,
		CompletedAt:       p.CompletedAt,
		FailedAt:          p.FailedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
}

func (d payoutDocument) toAggregate() *payout.Payout {
	return &payout.Payout{
		ID:                payout.PayoutID(d.ID),
		HostID:            d.HostID,
		Amount:            d.Amount,
		Status:            payout.Status(d.Status),
		Method:            d.Method,
		Bank:              d.Bank.details(),
		TransferReference: d.TransferReference,
		TransferCode:      d.TransferCode,
		EarningIDs:        d.EarningIDs,
		FailureReason:     d.FailureReason,
		ProcessingAt:      d.ProcessingAt.UTC(),
		CompletedAt:       d.CompletedAt,
		FailedAt:          d.FailedAt,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
		Version:           d.Version,
	}
}

// BankAccountRepository keeps saved transfer destinations. Accounts are not
// versioned; the last save wins.
type BankAccountRepository struct {
	col *mongo.Collection
}

func NewBankAccountRepository(db *mongo.Database) *BankAccountRepository {
	return &BankAccountRepository{col: db.Collection(bankAccountsCollection)}
}

func (r *BankAccountRepository) ByID(ctx context.Context, id payout.BankAccountID) (*payout.BankAccount, error) {
	doc, err := findOne[bankAccountDocument](ctx, r.col, bson.M{"_id": string(id)}, payout.ErrBankAccountNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BankAccountRepository) ListByHost(ctx context.Context, hostID string) ([]*payout.BankAccount, error) {
	docs, err := findMany[bankAccountDocument](ctx, r.col, bson.M{"host_id": hostID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*payout.BankAccount, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *BankAccountRepository) Save(ctx context.Context, a *payout.BankAccount) error {
	doc := bankAccountDocument{
		ID:        string(a.ID),
		HostID:    a.HostID,
		Details:   newBankDocument(a.Details),
		Verified:  a.Verified,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify(err)
}

type bankAccountDocument struct {
	ID        string       `bson:"_id"`
	HostID    string       `bson:"host_id"`
	Details   bankDocument `bson:"details"`
	Verified  bool         `bson:"verified"`
	IsDefault bool         `bson:"is_default"`
	CreatedAt time.Time    `bson:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

func (d bankAccountDocument) toAggregate() *payout.BankAccount {
	return &payout.BankAccount{
		ID:        payout.BankAccountID(d.ID),
		HostID:    d.HostID,
		Details:   d.Details.details(),
		Verified:  d.Verified,
		IsDefault: d.IsDefault,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
