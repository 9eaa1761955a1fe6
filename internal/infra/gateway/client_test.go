package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/app/policies"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, SecretKey: "sk_test", Timeout: time.Second, Retries: 2}, nil)
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "message": "ok", "data": data})
}

func TestInitializeChargeSendsMinorUnits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		var body initializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(125000), body.Amount)
		assert.Equal(t, "NGN", body.Currency)
		writeEnvelope(w, map[string]string{"authorization_url": "https://pay/abc", "access_code": "abc", "reference": body.Reference})
	})

	charge, err := client.InitializeCharge(context.Background(), policies.ChargeRequest{
		Reference: "ref-1",
		Email:     "guest@example.com",
		Amount:    money.Must(125000, "NGN"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ref-1", charge.Reference)
	assert.Equal(t, "https://pay/abc", charge.AuthorizationURL)
}

func TestVerifyChargeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, map[string]any{"status": "success", "reference": "ref-2", "amount": 5000, "currency": "ngn", "paid_at": "2026-03-01T10:00:00Z"})
	})

	v, err := client.VerifyCharge(context.Background(), "ref-2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, policies.ChargeSuccess, v.Status)
	assert.Equal(t, money.Must(5000, "NGN"), v.Amount)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), v.PaidAt)
	assert.NotEmpty(t, v.Raw)
}

func TestInitiateRefundSendsIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refund", r.URL.Path)
		assert.Equal(t, "refund:pay-1", r.Header.Get(IdempotencyHeader))
		var body refundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref-1", body.Transaction)
		assert.Equal(t, int64(16500), body.Amount)
		writeEnvelope(w, map[string]any{"id": 42, "status": "pending"})
	})

	res, err := client.InitiateRefund(context.Background(), policies.RefundRequest{
		TransactionReference: "ref-1",
		Amount:               money.Must(16500, "NGN"),
		IdempotencyKey:       "refund:pay-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Reference)
	assert.Equal(t, "pending", res.Status)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	})

	_, err := client.VerifyCharge(context.Background(), "missing")
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFailedEnvelopeIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid bank code"}`))
	})

	_, err := client.CreateTransferRecipient(context.Background(), bankDetails())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid bank code")
}

func TestUnconfiguredClient(t *testing.T) {
	client := New(Config{}, nil)
	_, err := client.InitiateTransfer(context.Background(), policies.TransferRequest{Reference: "t-1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("whsec")
	body := []byte(`{"event":"charge.success"}`)

	assert.NoError(t, v.Verify(body, v.Sign(body)))
	assert.ErrorIs(t, v.Verify(body, "deadbeef"), fault.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(body, "not-hex"), fault.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(body, ""), fault.ErrInvalidSignature)
	assert.ErrorIs(t, NewHMACVerifier("").Verify(body, v.Sign(body)), fault.ErrInvalidSignature)
}

func bankDetails() payout.BankDetails {
	return payout.BankDetails{BankCode: "058", AccountNumber: "0123456789", AccountName: "Ada Host"}
}
