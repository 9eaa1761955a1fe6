package uow

import (
	"context"
	"errors"

	"staysettle/internal/app/outbox"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/property"
)

// ErrTransient marks a transaction that lost a write conflict and may be retried.
var ErrTransient = errors.New("uow: transient transaction conflict")

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Properties() property.Repository
	Bookings() booking.Repository
	Payments() payment.Repository
	Earnings() earning.Repository
	Payouts() payout.Repository
	BankAccounts() payout.BankAccountRepository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// DefaultAttempts bounds how often Run re-executes a conflicting unit.
const DefaultAttempts = 5

// Run executes fn inside a unit of work and commits it. A unit already present
// in ctx is reused and left for its owner to commit. Units failing with
// ErrTransient are re-run from scratch so every read inside fn is repeated.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	var err error
	for attempt := 0; attempt < DefaultAttempts; attempt++ {
		err = runOnce(ctx, factory, opts, fn)
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}

func runOnce(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = ContextWithUnitOfWork(execCtx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if opts.ReadOnly {
		return nil
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}
