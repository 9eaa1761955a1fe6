// Package payouts batches a host's available earnings into bank transfers
// and reconciles them from transfer callbacks.
package payouts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staysettle/internal/app/effects"
	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/shared/fault"
)

type Service struct {
	UoW      uow.UoWFactory
	Gateway  policies.PaymentGateway
	Notifier policies.Notifier
	Metrics  policies.Metrics
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) effects() effects.Runner {
	return effects.Runner{Logger: s.Logger, Metrics: s.Metrics}
}

type RequestInput struct {
	HostID    string
	AccountID string
	Bank      *payout.BankDetails
	SaveBank  bool
}

// Request batches every available earning of the host into one transfer.
//
// The payout and the reservation of its earnings commit together before the
// transfer is requested. If the gateway refuses the transfer a compensating
// unit fails the payout and returns the earnings to available.
func (s *Service) Request(ctx context.Context, in RequestInput) (*payout.Payout, error) {
	if strings.TrimSpace(in.HostID) == "" {
		return nil, fault.Validation("host_required", "host id is required")
	}
	account, err := s.resolveAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var created *payout.Payout
	err = uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		created = nil
		available, err := unit.Earnings().List(ctx, earning.Filter{HostID: in.HostID, Statuses: []earning.Status{earning.StatusAvailable}})
		if err != nil {
			return err
		}
		batch := batchable(available)
		lines := make([]payout.Line, 0, len(batch))
		for _, ern := range batch {
			lines = append(lines, payout.Line{EarningID: string(ern.ID), Net: ern.Net})
		}
		p, err := payout.New(payout.CreateParams{
			ID:     payout.PayoutID(s.newID()),
			HostID: in.HostID,
			Bank:   account.Details,
			Lines:  lines,
			Now:    now,
		})
		if err != nil {
			return err
		}
		for _, ern := range batch {
			if err := ern.Reserve(string(p.ID), now); err != nil {
				return err
			}
			if err := unit.Earnings().Save(ctx, ern); err != nil {
				return err
			}
		}
		if err := unit.Payouts().Save(ctx, p); err != nil {
			return err
		}
		created = p
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, p)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("payout created", "payout_id", created.ID, "host_id", in.HostID, "amount", created.Amount.Amount, "earnings", len(created.EarningIDs))
	}

	transfer, transferErr := s.Gateway.InitiateTransfer(ctx, policies.TransferRequest{
		Reference:     string(created.ID),
		RecipientCode: account.Details.RecipientCode,
		Amount:        created.Amount,
		Reason:        "host payout " + string(created.ID),
	})
	if transferErr != nil {
		if s.Logger != nil {
			s.Logger.Error("transfer request failed, releasing earnings", "payout_id", created.ID, "error", transferErr)
		}
		if _, err := s.settle(ctx, created.ID, false, "transfer request failed: "+transferErr.Error()); err != nil {
			return nil, errors.Join(fault.Gateway("transfer", transferErr), err)
		}
		return nil, fault.Gateway("transfer", transferErr)
	}

	err = uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		p, err := unit.Payouts().ByID(ctx, created.ID)
		if err != nil {
			return err
		}
		reference := transfer.Reference
		if reference == "" {
			reference = string(p.ID)
		}
		p.AttachTransfer(reference, transfer.TransferCode, s.now())
		if err := unit.Payouts().Save(ctx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.PayoutTransition(string(payout.StatusProcessing))
	}
	s.effects().Run(ctx, effects.Notify(s.Notifier, in.HostID, policies.TemplatePayoutRequested, payoutData(created)))
	return created, nil
}

// resolveAccount returns a verified bank account for the transfer, creating
// the gateway recipient for new details.
func (s *Service) resolveAccount(ctx context.Context, in RequestInput) (*payout.BankAccount, error) {
	var accounts []*payout.BankAccount
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		accounts, err = unit.BankAccounts().ListByHost(ctx, in.HostID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if in.AccountID != "" {
		for _, acc := range accounts {
			if string(acc.ID) == in.AccountID {
				if !acc.Verified {
					return nil, fault.Validation("bank_account_unverified", "bank account has not been verified")
				}
				return acc, nil
			}
		}
		return nil, payout.ErrBankAccountNotFound
	}
	if in.Bank == nil {
		for _, acc := range accounts {
			if acc.IsDefault && acc.Verified {
				return acc, nil
			}
		}
		return nil, fault.Validation("bank_details_required", "bank details or a saved account are required")
	}
	if err := in.Bank.Validate(); err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if acc.Matches(*in.Bank) && acc.Verified {
			return acc, nil
		}
	}
	code, err := s.Gateway.CreateTransferRecipient(ctx, *in.Bank)
	if err != nil {
		return nil, fault.Gateway("recipient", err)
	}
	details := *in.Bank
	details.RecipientCode = code
	account, err := payout.NewBankAccount(payout.BankAccountID(s.newID()), in.HostID, details, s.now())
	if err != nil {
		return nil, err
	}
	account.IsDefault = len(accounts) == 0
	if !in.SaveBank && len(accounts) > 0 {
		return account, nil
	}
	err = uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.BankAccounts().Save(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

type TransferEvent struct {
	Type         string
	Reference    string
	TransferCode string
	Reason       string
}

// batchable keeps unreserved earnings in the currency of the first one.
func batchable(available []*earning.Earning) []*earning.Earning {
	var out []*earning.Earning
	for _, ern := range available {
		if ern.PayoutID != "" {
			continue
		}
		if len(out) > 0 && ern.Net.Currency != out[0].Net.Currency {
			continue
		}
		out = append(out, ern)
	}
	return out
}

// HandleTransferEvent settles a payout from the gateway's transfer outcome.
// Failed and reversed transfers return every included earning to available.
func (s *Service) HandleTransferEvent(ctx context.Context, ev TransferEvent) (*payout.Payout, error) {
	var id payout.PayoutID
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		p, err := unit.Payouts().ByTransferReference(ctx, ev.Reference)
		if errors.Is(err, payout.ErrPayoutNotFound) {
			p, err = unit.Payouts().ByID(ctx, payout.PayoutID(ev.Reference))
		}
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch ev.Type {
	case "transfer.success":
		return s.settle(ctx, id, true, "")
	case "transfer.failed", "transfer.reversed":
		reason := ev.Reason
		if reason == "" {
			reason = strings.TrimPrefix(ev.Type, "transfer.")
		}
		return s.settle(ctx, id, false, reason)
	}
	return nil, fault.Validation("unknown_transfer_event", "unsupported transfer event "+ev.Type)
}

func (s *Service) settle(ctx context.Context, id payout.PayoutID, success bool, reason string) (*payout.Payout, error) {
	now := s.now()
	var settled *payout.Payout
	var changed bool
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		p, err := unit.Payouts().ByID(ctx, id)
		if err != nil {
			return err
		}
		settled = p
		if success {
			changed, err = p.Complete(now)
			if err != nil {
				return err
			}
		} else {
			changed = p.Fail(reason, now)
		}
		if !changed {
			return nil
		}
		list, err := unit.Earnings().ListByPayout(ctx, string(p.ID))
		if err != nil {
			return err
		}
		for _, ern := range list {
			var moved bool
			if success {
				moved = ern.MarkPaid(string(p.ID), now)
			} else {
				moved = ern.Revert(string(p.ID), now)
			}
			if !moved {
				continue
			}
			if err := unit.Earnings().Save(ctx, ern); err != nil {
				return err
			}
			if err := outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, ern); err != nil {
				return err
			}
		}
		if err := unit.Payouts().Save(ctx, p); err != nil {
			return err
		}
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, p)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return settled, nil
	}
	if s.Metrics != nil {
		s.Metrics.PayoutTransition(string(settled.Status))
	}
	template := policies.TemplatePayoutCompleted
	if !success {
		template = policies.TemplatePayoutFailed
	}
	if s.Logger != nil {
		s.Logger.Info("payout settled", "payout_id", settled.ID, "status", settled.Status, "reason", reason)
	}
	s.effects().Run(ctx, effects.Notify(s.Notifier, settled.HostID, template, payoutData(settled)))
	return settled, nil
}

func (s *Service) List(ctx context.Context, hostID string) ([]*payout.Payout, error) {
	var list []*payout.Payout
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		list, err = unit.Payouts().ListByHost(ctx, hostID)
		return err
	})
	return list, err
}

func (s *Service) BankAccounts(ctx context.Context, hostID string) ([]*payout.BankAccount, error) {
	var list []*payout.BankAccount
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		list, err = unit.BankAccounts().ListByHost(ctx, hostID)
		return err
	})
	return list, err
}

func payoutData(p *payout.Payout) map[string]any {
	return map[string]any{
		"payout_id": string(p.ID),
		"status":    string(p.Status),
		"amount":    p.Amount.Amount,
		"currency":  p.Amount.Currency,
		"earnings":  len(p.EarningIDs),
		"reason":    p.FailureReason,
	}
}
