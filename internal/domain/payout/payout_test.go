package payout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var now = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

var bank = BankDetails{BankCode: "058", BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Ada Host"}

func TestNewSumsLinesAndMasksAccount(t *testing.T) {
	p, err := New(CreateParams{ID: "po-1", HostID: "host-1", Bank: bank, Now: now, Lines: []Line{
		{EarningID: "e-1", Net: money.Must(30000, "NGN")},
		{EarningID: "e-2", Net: money.Must(12000, "NGN")},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(42000), p.Amount.Amount)
	assert.Equal(t, StatusProcessing, p.Status)
	assert.Equal(t, []string{"e-1", "e-2"}, p.EarningIDs)
	assert.Equal(t, "******6789", p.Bank.AccountNumber)
}

func TestNewRejectsEmptyBatches(t *testing.T) {
	_, err := New(CreateParams{HostID: "host-1"})
	assert.ErrorIs(t, err, fault.ErrNoAvailableEarnings)

	_, err = New(CreateParams{HostID: "host-1", Lines: []Line{{EarningID: "e-1", Net: money.Zero("NGN")}}})
	assert.ErrorIs(t, err, fault.ErrInsufficientFunds)
}

func TestCompleteThenReverse(t *testing.T) {
	p, err := New(CreateParams{ID: "po-1", HostID: "host-1", Lines: []Line{{EarningID: "e-1", Net: money.Must(1, "NGN")}}, Now: now})
	require.NoError(t, err)

	changed, err := p.Complete(now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = p.Complete(now)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.True(t, p.Fail("transfer reversed", now))
	assert.False(t, p.Fail("again", now))
	_, err = p.Complete(now)
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}

func TestBankAccount(t *testing.T) {
	_, err := NewBankAccount("ba-1", "host-1", BankDetails{BankCode: "058"}, now)
	assert.ErrorIs(t, err, fault.ErrValidation)

	acct, err := NewBankAccount("ba-1", "host-1", bank, now)
	require.NoError(t, err)
	assert.False(t, acct.Verified)
	assert.True(t, acct.Matches(BankDetails{BankCode: "058", AccountNumber: "0123456789"}))
}
