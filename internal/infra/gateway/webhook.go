package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"staysettle/internal/app/policies"
	"staysettle/internal/domain/shared/fault"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-gateway-signature"

type HMACVerifier struct {
	Secret []byte
}

func NewHMACVerifier(secret string) HMACVerifier {
	return HMACVerifier{Secret: []byte(secret)}
}

func (v HMACVerifier) Verify(body []byte, signature string) error {
	if len(v.Secret) == 0 || signature == "" {
		return fault.ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fault.ErrInvalidSignature
	}
	if !hmac.Equal(got, v.sum(body)) {
		return fault.ErrInvalidSignature
	}
	return nil
}

// Sign computes the signature the processor would send for body.
func (v HMACVerifier) Sign(body []byte) string {
	return hex.EncodeToString(v.sum(body))
}

func (v HMACVerifier) sum(body []byte) []byte {
	mac := hmac.New(sha512.New, v.Secret)
	mac.Write(body)
	return mac.Sum(nil)
}

var _ policies.WebhookVerifier = HMACVerifier{}
