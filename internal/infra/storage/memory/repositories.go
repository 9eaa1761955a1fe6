package memory

import (
	"context"
	"sort"
	"time"

	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/property"
)

type propertyRepo struct{ u *Unit }

func (r propertyRepo) ByID(ctx context.Context, id property.PropertyID) (*property.Property, error) {
	p, ok := r.u.store.properties[id]
	if !ok {
		return nil, property.ErrPropertyNotFound
	}
	return clone(p), nil
}

func (r propertyRepo) Save(ctx context.Context, p *property.Property) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stored, ok := r.u.store.properties[p.ID]
	var version int64
	if ok {
		version = stored.Version
	}
	if err := checkVersion(&version, &p.Version, ok); err != nil {
		return err
	}
	return put(r.u, r.u.store.properties, p.ID, p)
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	b, ok := r.u.store.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return clone(b), nil
}

func (r bookingRepo) Save(ctx context.Context, b *booking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stored, ok := r.u.store.bookings[b.ID]
	var version int64
	if ok {
		version = stored.Version
	}
	if err := checkVersion(&version, &b.Version, ok); err != nil {
		return err
	}
	return put(r.u, r.u.store.bookings, b.ID, b)
}

func (r bookingRepo) Delete(ctx context.Context, id booking.BookingID) error {
	return remove(r.u, r.u.store.bookings, id)
}

func (r bookingRepo) ActiveByProperty(ctx context.Context, propertyID property.PropertyID) ([]*booking.Booking, error) {
	return r.filter(func(b *booking.Booking) bool { return b.PropertyID == propertyID && b.Active() }), nil
}

func (r bookingRepo) ListByGuest(ctx context.Context, guestID string) ([]*booking.Booking, error) {
	return r.filter(func(b *booking.Booking) bool { return b.GuestID == guestID }), nil
}

func (r bookingRepo) ListByHost(ctx context.Context, hostID string) ([]*booking.Booking, error) {
	return r.filter(func(b *booking.Booking) bool { return b.HostID == hostID }), nil
}

func (r bookingRepo) DueForCompletion(ctx context.Context, cutoff time.Time) ([]*booking.Booking, error) {
	return r.filter(func(b *booking.Booking) bool {
		return b.Status == booking.StatusConfirmed && !b.Range.CheckOut.After(cutoff)
	}), nil
}

func (r bookingRepo) FailedRefunds(ctx context.Context) ([]*booking.Booking, error) {
	return r.filter(func(b *booking.Booking) bool {
		if !b.Status.Terminal() || b.Cancellation == nil {
			return false
		}
		return b.Cancellation.RefundStatus == booking.RefundFailed || b.Cancellation.RefundStatus == booking.RefundRequested
	}), nil
}

func (r bookingRepo) filter(keep func(*booking.Booking) bool) []*booking.Booking {
	out := make([]*booking.Booking, 0)
	for _, b := range r.u.store.bookings {
		if keep(b) {
			out = append(out, clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type paymentRepo struct{ u *Unit }

func (r paymentRepo) ByID(ctx context.Context, id payment.PaymentID) (*payment.Payment, error) {
	p, ok := r.u.store.payments[id]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return clone(p), nil
}

func (r paymentRepo) ByBooking(ctx context.Context, bookingID string) (*payment.Payment, error) {
	return r.find(func(p *payment.Payment) bool { return p.BookingID == bookingID })
}

func (r paymentRepo) ByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	if reference == "" {
		return nil, payment.ErrPaymentNotFound
	}
	return r.find(func(p *payment.Payment) bool { return p.Reference == reference })
}

func (r paymentRepo) find(match func(*payment.Payment) bool) (*payment.Payment, error) {
	for _, p := range r.u.store.payments {
		if match(p) {
			return clone(p), nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (r paymentRepo) Save(ctx context.Context, p *payment.Payment) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stored, ok := r.u.store.payments[p.ID]
	var version int64
	if ok {
		version = stored.Version
	}
	if err := checkVersion(&version, &p.Version, ok); err != nil {
		return err
	}
	return put(r.u, r.u.store.payments, p.ID, p)
}

func (r paymentRepo) Delete(ctx context.Context, id payment.PaymentID) error {
	return remove(r.u, r.u.store.payments, id)
}

type earningRepo struct{ u *Unit }

func (r earningRepo) ByID(ctx context.Context, id earning.EarningID) (*earning.Earning, error) {
	e, ok := r.u.store.earnings[id]
	if !ok {
		return nil, earning.ErrEarningNotFound
	}
	return clone(e), nil
}

func (r earningRepo) ByBooking(ctx context.Context, bookingID string) (*earning.Earning, error) {
	for _, e := range r.u.store.earnings {
		if e.BookingID == bookingID {
			return clone(e), nil
		}
	}
	return nil, earning.ErrEarningNotFound
}

func (r earningRepo) Save(ctx context.Context, e *earning.Earning) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stored, ok := r.u.store.earnings[e.ID]
	var version int64
	if ok {
		version = stored.Version
	}
	if err := checkVersion(&version, &e.Version, ok); err != nil {
		return err
	}
	return put(r.u, r.u.store.earnings, e.ID, e)
}

func (r earningRepo) List(ctx context.Context, f earning.Filter) ([]*earning.Earning, error) {
	return r.filter(func(e *earning.Earning) bool {
		if f.HostID != "" && e.HostID != f.HostID {
			return false
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, e.Status) {
			return false
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
			return false
		}
		return true
	}), nil
}

func (r earningRepo) ListByPayout(ctx context.Context, payoutID string) ([]*earning.Earning, error) {
	return r.filter(func(e *earning.Earning) bool { return payoutID != "" && e.PayoutID == payoutID }), nil
}

func (r earningRepo) DuePending(ctx context.Context, cutoff time.Time) ([]*earning.Earning, error) {
	return r.filter(func(e *earning.Earning) bool {
		return e.Status == earning.StatusPending && e.PayoutID == "" && !e.AvailableAt.After(cutoff)
	}), nil
}

func (r earningRepo) filter(keep func(*earning.Earning) bool) []*earning.Earning {
	out := make([]*earning.Earning, 0)
	for _, e := range r.u.store.earnings {
		if keep(e) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func hasStatus(list []earning.Status, s earning.Status) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

type payoutRepo struct{ u *Unit }

func (r payoutRepo) ByID(ctx context.Context, id payout.PayoutID) (*payout.Payout, error) {
	p, ok := r.u.store.payouts[id]
	if !ok {
		return nil, payout.ErrPayoutNotFound
	}
	return clone(p), nil
}

func (r payoutRepo) ByTransferReference(ctx context.Context, reference string) (*payout.Payout, error) {
	if reference != "" {
		for _, p := range r.u.store.payouts {
			if p.TransferReference == reference {
				return clone(p), nil
			}
		}
	}
	return nil, payout.ErrPayoutNotFound
}

func (r payoutRepo) Save(ctx context.Context, p *payout.Payout) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stored, ok := r.u.store.payouts[p.ID]
	var version int64
	if ok {
		version = stored.Version
	}
	if err := checkVersion(&version, &p.Version, ok); err != nil {
		return err
	}
	return put(r.u, r.u.store.payouts, p.ID, p)
}

func (r payoutRepo) ListByHost(ctx context.Context, hostID string) ([]*payout.Payout, error) {
	out := make([]*payout.Payout, 0)
	for _, p := range r.u.store.payouts {
		if p.HostID == hostID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type bankAccountRepo struct{ u *Unit }

func (r bankAccountRepo) ByID(ctx context.Context, id payout.BankAccountID) (*payout.BankAccount, error) {
	a, ok := r.u.store.bankAccounts[id]
	if !ok {
		return nil, payout.ErrBankAccountNotFound
	}
	return clone(a), nil
}

func (r bankAccountRepo) ListByHost(ctx context.Context, hostID string) ([]*payout.BankAccount, error) {
	out := make([]*payout.BankAccount, 0)
	for _, a := range r.u.store.bankAccounts {
		if a.HostID == hostID {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r bankAccountRepo) Save(ctx context.Context, a *payout.BankAccount) error {
	return put(r.u, r.u.store.bankAccounts, a.ID, a)
}
