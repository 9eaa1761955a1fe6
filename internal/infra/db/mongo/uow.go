package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "staysettle/internal/app/outbox"
	"staysettle/internal/app/uow"
	domainbooking "staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/property"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	PropertiesRepo   property.Repository
	BookingsRepo     domainbooking.Repository
	PaymentsRepo     payment.Repository
	EarningsRepo     earning.Repository
	PayoutsRepo      payout.Repository
	BankAccountsRepo payout.BankAccountRepository
	OutboxStore      appoutbox.Outbox
}

// NewFactory builds the repositories for db.
func NewFactory(db *mongo.Database, box appoutbox.Outbox) Factory {
	return Factory{
		DB:               db,
		PropertiesRepo:   NewPropertyRepository(db),
		BookingsRepo:     NewBookingRepository(db),
		PaymentsRepo:     NewPaymentRepository(db),
		EarningsRepo:     NewEarningRepository(db),
		PayoutsRepo:      NewPayoutRepository(db),
		BankAccountsRepo: NewBankAccountRepository(db),
		OutboxStore:      box,
	}
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction. Writes use majority write
// concern and snapshot reads so re-validation inside a unit sees a
// consistent view.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{factory: f, session: session}, nil
}

type Unit struct {
	factory Factory
	session mongo.Session
}

func (u *Unit) Properties() property.Repository            { return u.factory.PropertiesRepo }
func (u *Unit) Bookings() domainbooking.Repository         { return u.factory.BookingsRepo }
func (u *Unit) Payments() payment.Repository               { return u.factory.PaymentsRepo }
func (u *Unit) Earnings() earning.Repository               { return u.factory.EarningsRepo }
func (u *Unit) Payouts() payout.Repository                 { return u.factory.PayoutsRepo }
func (u *Unit) BankAccounts() payout.BankAccountRepository { return u.factory.BankAccountsRepo }
func (u *Unit) Outbox() appoutbox.Outbox                   { return u.factory.OutboxStore }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return classify(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
