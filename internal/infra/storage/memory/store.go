// Package memory is a transactional in-process store. Units of work are
// serialised on one lock and roll back through an undo log, so services see
// the same atomicity they get from Mongo transactions.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	appoutbox "staysettle/internal/app/outbox"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/property"
)

var (
	ErrReadOnly     = errors.New("memory: write attempted in read-only unit")
	ErrUnitFinished = errors.New("memory: unit already committed or rolled back")
)

type outboxRow struct {
	record      appoutbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	lastError   string
}

// Store holds every collection. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	properties   map[property.PropertyID]*property.Property
	bookings     map[booking.BookingID]*booking.Booking
	payments     map[payment.PaymentID]*payment.Payment
	earnings     map[earning.EarningID]*earning.Earning
	payouts      map[payout.PayoutID]*payout.Payout
	bankAccounts map[payout.BankAccountID]*payout.BankAccount
	outbox       map[string]*outboxRow
	outboxOrder  []string

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		properties:   make(map[property.PropertyID]*property.Property),
		bookings:     make(map[booking.BookingID]*booking.Booking),
		payments:     make(map[payment.PaymentID]*payment.Payment),
		earnings:     make(map[earning.EarningID]*earning.Earning),
		payouts:      make(map[payout.PayoutID]*payout.Payout),
		bankAccounts: make(map[payout.BankAccountID]*payout.BankAccount),
		outbox:       make(map[string]*outboxRow),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Begin blocks until no other unit is open.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &Unit{store: s, readOnly: opts.ReadOnly}, nil
}

// Unit is a uow.UnitOfWork holding the store lock until it finishes.
type Unit struct {
	store    *Store
	readOnly bool
	undo     []func()
	done     bool
}

func (u *Unit) Properties() property.Repository            { return propertyRepo{u} }
func (u *Unit) Bookings() booking.Repository               { return bookingRepo{u} }
func (u *Unit) Payments() payment.Repository               { return paymentRepo{u} }
func (u *Unit) Earnings() earning.Repository               { return earningRepo{u} }
func (u *Unit) Payouts() payout.Repository                 { return payoutRepo{u} }
func (u *Unit) BankAccounts() payout.BankAccountRepository { return bankAccountRepo{u} }
func (u *Unit) Outbox() appoutbox.Outbox                   { return outboxWriter{u} }

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitFinished
	}
	u.undo = nil
	u.finish()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
	u.finish()
	return nil
}

func (u *Unit) finish() {
	u.done = true
	u.store.mu.Unlock()
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitFinished
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

// put stores a copy of v under k and remembers how to undo the write.
func put[K comparable, V any](u *Unit, rows map[K]*V, k K, v *V) error {
	if err := u.writable(); err != nil {
		return err
	}
	prev, had := rows[k]
	u.undo = append(u.undo, func() {
		if had {
			rows[k] = prev
		} else {
			delete(rows, k)
		}
	})
	rows[k] = clone(v)
	return nil
}

func remove[K comparable, V any](u *Unit, rows map[K]*V, k K) error {
	if err := u.writable(); err != nil {
		return err
	}
	prev, had := rows[k]
	if !had {
		return nil
	}
	u.undo = append(u.undo, func() { rows[k] = prev })
	delete(rows, k)
	return nil
}

// clone deep-copies an aggregate through its JSON form. Pending domain
// events are unexported and therefore never copied into the store.
func clone[V any](v *V) *V {
	data, err := json.Marshal(v)
	if err != nil {
		panic("memory: clone: " + err.Error())
	}
	out := new(V)
	if err := json.Unmarshal(data, out); err != nil {
		panic("memory: clone: " + err.Error())
	}
	return out
}

// checkVersion applies optimistic concurrency: the caller must have read the
// stored version. Accepted saves bump the caller's version.
func checkVersion(stored, incoming *int64, exists bool) error {
	if exists && *stored != *incoming {
		return uow.ErrTransient
	}
	if !exists && *incoming != 0 {
		return uow.ErrTransient
	}
	*incoming++
	return nil
}

var _ uow.UoWFactory = (*Store)(nil)
