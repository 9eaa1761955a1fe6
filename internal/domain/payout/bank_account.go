package payout

import (
	"context"
	"strings"
	"time"

	"staysettle/internal/domain/shared/fault"
)

var ErrBankAccountNotFound = fault.NotFound("bank_account_not_found", "bank account not found")

type BankAccountID string

type BankDetails struct {
	BankCode      string
	BankName      string
	AccountNumber string
	AccountName   string
	RecipientCode string
}

func (d BankDetails) Validate() error {
	if strings.TrimSpace(d.BankCode) == "" || strings.TrimSpace(d.AccountNumber) == "" || strings.TrimSpace(d.AccountName) == "" {
		return fault.Validation("bank_details_incomplete", "bank code, account number and account name are required")
	}
	return nil
}

// Masked keeps only the last four digits of the account number.
func (d BankDetails) Masked() BankDetails {
	n := len(d.AccountNumber)
	if n > 4 {
		d.AccountNumber = strings.Repeat("*", n-4) + d.AccountNumber[n-4:]
	}
	return d
}

// BankAccount is a host's saved transfer destination, verified once the
// gateway has issued a recipient code for it.
type BankAccount struct {
	ID        BankAccountID
	HostID    string
	Details   BankDetails
	Verified  bool
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BankAccountRepository interface {
	ByID(ctx context.Context, id BankAccountID) (*BankAccount, error)
	ListByHost(ctx context.Context, hostID string) ([]*BankAccount, error)
	Save(ctx context.Context, account *BankAccount) error
}

func NewBankAccount(id BankAccountID, hostID string, details BankDetails, now time.Time) (*BankAccount, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &BankAccount{
		ID:        id,
		HostID:    hostID,
		Details:   details,
		Verified:  details.RecipientCode != "",
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Matches reports whether details point at the same bank account.
func (a *BankAccount) Matches(details BankDetails) bool {
	return a.Details.BankCode == details.BankCode && a.Details.AccountNumber == details.AccountNumber
}
