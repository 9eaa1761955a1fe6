package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"

	"staysettle/internal/app/services/payments"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/infra/gateway"
)

// SignatureHeader carries the gateway signature when an ingress proxy relays
// webhooks through Kafka instead of calling the HTTP endpoint.
const SignatureHeader = gateway.SignatureHeader

// WebhookRelay feeds relayed gateway webhooks into the payment service.
type WebhookRelay struct {
	Payments *payments.Service
}

func (r WebhookRelay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	signature := ""
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == SignatureHeader {
			signature = string(h.Value)
		}
	}
	_, err := r.Payments.HandleWebhook(ctx, msg.Value, signature)
	if errors.Is(err, fault.ErrInvalidSignature) || errors.Is(err, fault.ErrValidation) {
		return nil
	}
	return err
}
