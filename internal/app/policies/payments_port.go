package policies

import (
	"context"
	"time"

	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/shared/money"
)

type ChargeRequest struct {
	Reference   string
	Email       string
	Amount      money.Money
	CallbackURL string
	Metadata    map[string]string
}

type Charge struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

type ChargeStatus string

const (
	ChargeSuccess   ChargeStatus = "success"
	ChargeFailed    ChargeStatus = "failed"
	ChargeAbandoned ChargeStatus = "abandoned"
	ChargePending   ChargeStatus = "pending"
)

type Verification struct {
	Reference string
	Status    ChargeStatus
	Amount    money.Money
	PaidAt    time.Time
	Message   string
	Raw       []byte
}

type RefundRequest struct {
	TransactionReference string
	Amount               money.Money
	Reason               string
	// IdempotencyKey is stable per payment so a repeated request cannot
	// refund twice.
	IdempotencyKey string
}

type RefundResult struct {
	Reference string
	Status    string
}

type TransferRequest struct {
	Reference     string
	RecipientCode string
	Amount        money.Money
	Reason        string
}

type Transfer struct {
	Reference    string
	TransferCode string
	Status       string
}

// PaymentGateway is the external processor. Every call is a network round
// trip and must never run inside an open store transaction.
type PaymentGateway interface {
	InitializeCharge(ctx context.Context, req ChargeRequest) (Charge, error)
	VerifyCharge(ctx context.Context, reference string) (Verification, error)
	InitiateRefund(ctx context.Context, req RefundRequest) (RefundResult, error)
	CreateTransferRecipient(ctx context.Context, details payout.BankDetails) (string, error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (Transfer, error)
}

// WebhookVerifier authenticates a raw webhook body against its signature header.
type WebhookVerifier interface {
	Verify(body []byte, signature string) error
}

// Inbox remembers processed webhook deliveries.
type Inbox interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string) error
}
