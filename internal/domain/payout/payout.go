package payout

import (
	"context"
	"fmt"
	"time"

	"staysettle/internal/domain/shared/events"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var (
	ErrPayoutNotFound      = fault.NotFound("payout_not_found", "payout not found")
	ErrNoAvailableEarnings = &fault.Error{Kind: fault.ErrNoAvailableEarnings, Code: "no_available_earnings", Message: "host has no available earnings"}
	ErrInsufficientFunds   = &fault.Error{Kind: fault.ErrInsufficientFunds, Code: "insufficient_funds", Message: "available balance is below the payout minimum"}
)

type PayoutID string

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const MethodBankTransfer = "bank_transfer"

type Payout struct {
	ID                PayoutID
	HostID            string
	Amount            money.Money
	Status            Status
	Method            string
	Bank              BankDetails
	TransferReference string
	TransferCode      string
	EarningIDs        []string
	FailureReason     string
	ProcessingAt      time.Time
	CompletedAt       *time.Time
	FailedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id PayoutID) (*Payout, error)
	ByTransferReference(ctx context.Context, reference string) (*Payout, error)
	Save(ctx context.Context, p *Payout) error
	ListByHost(ctx context.Context, hostID string) ([]*Payout, error)
}

// Line is one earning contributing to a payout.
type Line struct {
	EarningID string
	Net       money.Money
}

type CreateParams struct {
	ID     PayoutID
	HostID string
	Bank   BankDetails
	Lines  []Line
	Now    time.Time
}

// New sums the included earnings; the payout amount equals their net total.
func New(params CreateParams) (*Payout, error) {
	if len(params.Lines) == 0 {
		return nil, ErrNoAvailableEarnings
	}
	total := money.Zero(params.Lines[0].Net.Currency)
	ids := make([]string, 0, len(params.Lines))
	for _, line := range params.Lines {
		next, err := total.Add(line.Net)
		if err != nil {
			return nil, err
		}
		total = next
		ids = append(ids, line.EarningID)
	}
	if total.Amount <= 0 {
		return nil, ErrInsufficientFunds
	}
	now := params.Now.UTC()
	p := &Payout{
		ID:           params.ID,
		HostID:       params.HostID,
		Amount:       total,
		Status:       StatusProcessing,
		Method:       MethodBankTransfer,
		Bank:         params.Bank.Masked(),
		EarningIDs:   ids,
		ProcessingAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.Record(PayoutRequested{PayoutID: p.ID, HostID: p.HostID, Amount: p.Amount, Earnings: len(ids), At: now})
	return p, nil
}

// AttachTransfer stores the gateway's transfer identifiers.
func (p *Payout) AttachTransfer(reference, code string, now time.Time) {
	if reference != "" {
		p.TransferReference = reference
	}
	if code != "" {
		p.TransferCode = code
	}
	p.UpdatedAt = now.UTC()
}

// Complete returns false when the payout was already completed.
func (p *Payout) Complete(now time.Time) (bool, error) {
	switch p.Status {
	case StatusCompleted:
		return false, nil
	case StatusProcessing:
	default:
		return false, p.invalid("complete")
	}
	now = now.UTC()
	p.Status = StatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now
	p.Record(PayoutCompleted{PayoutID: p.ID, HostID: p.HostID, Amount: p.Amount, At: now})
	return true, nil
}

// Fail marks the payout failed. A completed payout may still fail when the
// gateway reverses the transfer.
func (p *Payout) Fail(reason string, now time.Time) bool {
	if p.Status == StatusFailed {
		return false
	}
	now = now.UTC()
	p.Status = StatusFailed
	p.FailureReason = reason
	p.FailedAt = &now
	p.UpdatedAt = now
	p.Record(PayoutFailed{PayoutID: p.ID, HostID: p.HostID, Amount: p.Amount, Reason: reason, At: now})
	return true
}

func (p *Payout) invalid(action string) error {
	return &fault.Error{
		Kind:    fault.ErrInvalidTransition,
		Code:    "payout_invalid_transition",
		Message: fmt.Sprintf("payout %s: cannot %s from %s", p.ID, action, p.Status),
	}
}
