package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/payouts"
	"staysettle/internal/domain/shared/fault"
)

// Gateway webhook event types.
const (
	EventChargeSuccess    = "charge.success"
	EventChargeFailed     = "charge.failed"
	EventRefundProcessed  = "refund.processed"
	EventRefundFailed     = "refund.failed"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Reference            string            `json:"reference"`
	TransactionReference string            `json:"transaction_reference"`
	RefundReference      string            `json:"refund_reference"`
	TransferCode         string            `json:"transfer_code"`
	Amount               int64             `json:"amount"`
	Currency             string            `json:"currency"`
	Status               string            `json:"status"`
	GatewayResponse      string            `json:"gateway_response"`
	Reason               string            `json:"reason"`
	Metadata             map[string]any    `json:"metadata"`
	Transaction          *TransactionField `json:"transaction"`
}

type TransactionField struct {
	Reference string `json:"reference"`
}

// chargeReference resolves the original charge reference across event shapes.
func (d WebhookData) chargeReference() string {
	switch {
	case d.TransactionReference != "":
		return d.TransactionReference
	case d.Transaction != nil && d.Transaction.Reference != "":
		return d.Transaction.Reference
	}
	return d.Reference
}

type WebhookOutcome string

const (
	OutcomeProcessed WebhookOutcome = "processed"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeNoop      WebhookOutcome = "noop"
)

type WebhookResult struct {
	Event   string
	Outcome WebhookOutcome
}

// HandleWebhook authenticates and applies one gateway callback. A nil error
// means the delivery may be acknowledged: its effects are durable or it was a
// no-op. Any other error asks the gateway to redeliver.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if s.Verifier == nil {
		return WebhookResult{}, fault.ErrInvalidSignature
	}
	if err := s.Verifier.Verify(body, signature); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("webhook signature rejected", "security_event", true, "error", err)
		}
		return WebhookResult{}, err
	}
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookResult{}, fault.Validation("malformed_webhook", "webhook body is not valid JSON")
	}
	res := WebhookResult{Event: ev.Event}
	fingerprint := Fingerprint(body)
	if s.Inbox != nil {
		seen, err := s.Inbox.Contains(ctx, fingerprint)
		if err != nil {
			return res, err
		}
		if seen {
			res.Outcome = OutcomeDuplicate
			return res, nil
		}
	}
	outcome, err := s.dispatch(ctx, ev)
	if err != nil {
		if errors.Is(err, fault.ErrInvalidTransition) || errors.Is(err, fault.ErrNotFound) {
			if s.Logger != nil {
				s.Logger.Warn("webhook acknowledged without effect", "event", ev.Event, "reference", ev.Data.Reference, "error", err)
			}
			outcome, err = OutcomeNoop, nil
		} else {
			if s.Logger != nil {
				s.Logger.Error("webhook processing failed", "event", ev.Event, "reference", ev.Data.Reference, "error", err)
			}
			return res, err
		}
	}
	res.Outcome = outcome
	if s.Inbox != nil {
		if err := s.Inbox.Record(ctx, fingerprint); err != nil && s.Logger != nil {
			s.Logger.Warn("webhook inbox record failed", "event", ev.Event, "error", err)
		}
	}
	return res, nil
}

func (s *Service) dispatch(ctx context.Context, ev WebhookEvent) (WebhookOutcome, error) {
	switch ev.Event {
	case EventChargeSuccess:
		p, err := s.paymentByReference(ctx, ev.Data.Reference)
		if err != nil {
			return "", err
		}
		if !coversTotal(p, ev.Data.Amount, ev.Data.Currency) {
			if s.Logger != nil {
				s.Logger.Warn("charge does not cover booking total", "booking_id", p.BookingID, "charged", ev.Data.Amount, "charged_currency", ev.Data.Currency, "expected", p.Amount.Amount, "currency", p.Amount.Currency)
			}
			return OutcomeIgnored, nil
		}
		res, err := s.Bookings.ConfirmPayment(ctx, bookings.ConfirmInput{BookingID: p.BookingID, Reference: ev.Data.Reference, Raw: rawData(ev)})
		if err != nil {
			return "", err
		}
		if res.AlreadyConfirmed {
			return OutcomeNoop, nil
		}
		return OutcomeProcessed, nil
	case EventChargeFailed:
		p, err := s.paymentByReference(ctx, ev.Data.Reference)
		if err != nil {
			return "", err
		}
		_, err = s.Bookings.FailPayment(ctx, bookings.FailInput{BookingID: p.BookingID, Reason: failureReason(ev.Data.GatewayResponse, "failed"), Raw: rawData(ev)})
		return OutcomeProcessed, err
	case EventRefundProcessed, EventRefundFailed:
		p, err := s.paymentByReference(ctx, ev.Data.chargeReference())
		if err != nil {
			return "", err
		}
		_, err = s.Bookings.RecordRefund(ctx, bookings.RefundInput{
			BookingID: p.BookingID,
			Amount:    ev.Data.Amount,
			Reference: ev.Data.RefundReference,
			Failed:    ev.Event == EventRefundFailed,
			Reason:    ev.Data.Reason,
		})
		return OutcomeProcessed, err
	case EventTransferSuccess, EventTransferFailed, EventTransferReversed:
		if s.Payouts == nil {
			return OutcomeIgnored, nil
		}
		_, err := s.Payouts.HandleTransferEvent(ctx, payouts.TransferEvent{
			Type:         ev.Event,
			Reference:    ev.Data.Reference,
			TransferCode: ev.Data.TransferCode,
			Reason:       firstNonEmpty(ev.Data.Reason, ev.Data.GatewayResponse, strings.TrimPrefix(ev.Event, "transfer.")),
		})
		return OutcomeProcessed, err
	}
	if s.Logger != nil {
		s.Logger.Debug("webhook event ignored", "event", ev.Event)
	}
	return OutcomeIgnored, nil
}

// Fingerprint identifies a delivery by its exact body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func rawData(ev WebhookEvent) []byte {
	raw, _ := json.Marshal(ev.Data)
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
