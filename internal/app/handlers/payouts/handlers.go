// Package payouts exposes payout requests and payout history on the buses.
package payouts

import (
	"context"

	"staysettle/internal/app/commands"
	"staysettle/internal/app/dto"
	"staysettle/internal/app/middleware"
	"staysettle/internal/app/queries"
	"staysettle/internal/app/services/payouts"
	"staysettle/internal/domain/auth"
	"staysettle/internal/domain/payout"
)

const (
	requestPayoutKey    = "payout.request"
	listPayoutsKey      = "payout.list"
	listBankAccountsKey = "payout.bank_accounts"
)

type BankInput struct {
	BankCode      string `validate:"required"`
	BankName      string
	AccountNumber string `validate:"required,numeric,min=6,max=20"`
	AccountName   string `validate:"required"`
}

// RequestPayoutCommand withdraws every available earning. Exactly one of
// AccountID and Bank names the destination.
type RequestPayoutCommand struct {
	HostID          string     `validate:"required"`
	AccountID       string     `validate:"required_without=Bank"`
	Bank            *BankInput `validate:"required_without=AccountID,omitempty"`
	SaveBank        bool
	IdempotencyKeyV string
}

func (c RequestPayoutCommand) Key() string { return requestPayoutKey }

func (c RequestPayoutCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestPayoutCommand) ResultPrototype() any { return &dto.Payout{} }

func (c RequestPayoutCommand) RequiredRole() auth.Role { return auth.RoleHost }

type RequestPayoutHandler struct {
	Service *payouts.Service
}

func (h *RequestPayoutHandler) Handle(ctx context.Context, cmd RequestPayoutCommand) (*dto.Payout, error) {
	in := payouts.RequestInput{HostID: cmd.HostID, AccountID: cmd.AccountID, SaveBank: cmd.SaveBank}
	if cmd.Bank != nil {
		in.Bank = &payout.BankDetails{
			BankCode:      cmd.Bank.BankCode,
			BankName:      cmd.Bank.BankName,
			AccountNumber: cmd.Bank.AccountNumber,
			AccountName:   cmd.Bank.AccountName,
		}
	}
	p, err := h.Service.Request(ctx, in)
	if err != nil {
		return nil, err
	}
	out := dto.MapPayout(p)
	return &out, nil
}

type ListPayoutsQuery struct {
	HostID string `validate:"required"`
}

func (q ListPayoutsQuery) Key() string { return listPayoutsKey }

func (q ListPayoutsQuery) RequiredRole() auth.Role { return auth.RoleHost }

type ListBankAccountsQuery struct {
	HostID string `validate:"required"`
}

func (q ListBankAccountsQuery) Key() string { return listBankAccountsKey }

func (q ListBankAccountsQuery) RequiredRole() auth.Role { return auth.RoleHost }

type ListHandler struct {
	Service *payouts.Service
}

func (h *ListHandler) Payouts(ctx context.Context, q ListPayoutsQuery) (dto.PayoutCollection, error) {
	list, err := h.Service.List(ctx, q.HostID)
	if err != nil {
		return dto.PayoutCollection{}, err
	}
	return dto.MapPayouts(list), nil
}

func (h *ListHandler) BankAccounts(ctx context.Context, q ListBankAccountsQuery) (dto.BankAccountCollection, error) {
	list, err := h.Service.BankAccounts(ctx, q.HostID)
	if err != nil {
		return dto.BankAccountCollection{}, err
	}
	return dto.MapBankAccounts(list), nil
}

func Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus, svc *payouts.Service) {
	commands.RegisterHandler[RequestPayoutCommand, *dto.Payout](cmds, requestPayoutKey, &RequestPayoutHandler{Service: svc})
	lists := &ListHandler{Service: svc}
	queries.RegisterHandler[ListPayoutsQuery, dto.PayoutCollection](qs, listPayoutsKey, queries.HandlerFunc[ListPayoutsQuery, dto.PayoutCollection](lists.Payouts))
	queries.RegisterHandler[ListBankAccountsQuery, dto.BankAccountCollection](qs, listBankAccountsKey, queries.HandlerFunc[ListBankAccountsQuery, dto.BankAccountCollection](lists.BankAccounts))
}

var _ middleware.IdempotentCommand = RequestPayoutCommand{}
