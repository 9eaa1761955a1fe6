// Package gateway talks to the card payment processor over its REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/eapache/go-resiliency/retrier"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"staysettle/internal/app/policies"
	"staysettle/internal/domain/payout"
	"staysettle/internal/domain/shared/money"
)

var ErrNotConfigured = errors.New("gateway: client not configured")

// StatusError is a non-2xx reply. Only 5xx and 429 replies are worth retrying.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	// Retries bounds extra attempts for read-only calls.
	Retries int
}

// Client implements policies.PaymentGateway. Calls share a circuit breaker so
// an unreachable processor fails fast instead of holding request goroutines.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *breaker.Breaker
	retrier *retrier.Retrier
	tracer  trace.Tracer
	Logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New(5, 1, 30*time.Second),
		retrier: retrier.New(retrier.ExponentialBackoff(cfg.Retries, 200*time.Millisecond), transientClassifier{}),
		tracer:  otel.Tracer("staysettle/gateway"),
		Logger:  logger,
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

func (c *Client) InitializeCharge(ctx context.Context, req policies.ChargeRequest) (policies.Charge, error) {
	var data initializeData
	err := c.call(ctx, "initialize_charge", req.Reference, http.MethodPost, "/transaction/initialize", initializeRequest{
		Email:       req.Email,
		Amount:      req.Amount.Amount,
		Currency:    req.Amount.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}, &data, false)
	if err != nil {
		return policies.Charge{}, err
	}
	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return policies.Charge{Reference: ref, AuthorizationURL: data.AuthorizationURL, AccessCode: data.AccessCode}, nil
}

type verifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaidAt          string `json:"paid_at"`
	GatewayResponse string `json:"gateway_response"`
}

func (c *Client) VerifyCharge(ctx context.Context, reference string) (policies.Verification, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "verify_charge", reference, http.MethodGet, "/transaction/verify/"+reference, nil, &raw, true); err != nil {
		return policies.Verification{}, err
	}
	var data verifyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return policies.Verification{}, fmt.Errorf("gateway: decode verification: %w", err)
	}
	v := policies.Verification{
		Reference: data.Reference,
		Status:    chargeStatus(data.Status),
		Amount:    money.Money{Amount: data.Amount, Currency: strings.ToUpper(data.Currency)},
		Message:   data.GatewayResponse,
		Raw:       raw,
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	if data.PaidAt != "" {
		if at, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			v.PaidAt = at.UTC()
		}
	}
	return v, nil
}

func chargeStatus(s string) policies.ChargeStatus {
	switch strings.ToLower(s) {
	case "success":
		return policies.ChargeSuccess
	case "failed", "reversed":
		return policies.ChargeFailed
	case "abandoned":
		return policies.ChargeAbandoned
	}
	return policies.ChargePending
}

type refundRequest struct {
	Transaction  string `json:"transaction"`
	Amount       int64  `json:"amount"`
	MerchantNote string `json:"merchant_note,omitempty"`
}

type refundData struct {
	ID          json.Number `json:"id"`
	Status      string      `json:"status"`
	Transaction struct {
		Reference string `json:"reference"`
	} `json:"transaction"`
}

func (c *Client) InitiateRefund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	var data refundData
	ctx = withIdempotencyKey(ctx, req.IdempotencyKey)
	err := c.call(ctx, "initiate_refund", req.TransactionReference, http.MethodPost, "/refund", refundRequest{
		Transaction:  req.TransactionReference,
		Amount:       req.Amount.Amount,
		MerchantNote: req.Reason,
	}, &data, false)
	if err != nil {
		return policies.RefundResult{}, err
	}
	return policies.RefundResult{Reference: data.ID.String(), Status: data.Status}, nil
}

type recipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

func (c *Client) CreateTransferRecipient(ctx context.Context, details payout.BankDetails) (string, error) {
	var data recipientData
	err := c.call(ctx, "create_recipient", details.BankCode, http.MethodPost, "/transferrecipient", recipientRequest{
		Type:          "nuban",
		Name:          details.AccountName,
		AccountNumber: details.AccountNumber,
		BankCode:      details.BankCode,
	}, &data, false)
	if err != nil {
		return "", err
	}
	if data.RecipientCode == "" {
		return "", errors.New("gateway: recipient code missing in response")
	}
	return data.RecipientCode, nil
}

type transferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

type transferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

func (c *Client) InitiateTransfer(ctx context.Context, req policies.TransferRequest) (policies.Transfer, error) {
	var data transferData
	err := c.call(ctx, "initiate_transfer", req.Reference, http.MethodPost, "/transfer", transferRequest{
		Source:    "balance",
		Amount:    req.Amount.Amount,
		Recipient: req.RecipientCode,
		Reference: req.Reference,
		Reason:    req.Reason,
	}, &data, false)
	if err != nil {
		return policies.Transfer{}, err
	}
	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return policies.Transfer{Reference: ref, TransferCode: data.TransferCode, Status: data.Status}, nil
}

// call runs one API request inside a span. Retries are limited to idempotent
// reads; client errors never trip the breaker.
func (c *Client) call(ctx context.Context, op, reference, method, path string, in, out any, retry bool) error {
	if c == nil || c.cfg.BaseURL == "" {
		return ErrNotConfigured
	}
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.operation", op),
		attribute.String("gateway.reference", reference),
		attribute.String("http.method", method),
	)

	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = encoded
	}

	attempt := func(ctx context.Context) error {
		var clientErr error
		err := c.breaker.Run(func() error {
			err := c.do(ctx, method, path, body, out)
			var status *StatusError
			if errors.As(err, &status) && !status.Temporary() {
				clientErr = err
				return nil
			}
			return err
		})
		if clientErr != nil {
			return clientErr
		}
		return err
	}

	var err error
	if retry {
		err = c.retrier.RunCtx(ctx, attempt)
	} else {
		err = attempt(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if c.Logger != nil {
			c.Logger.Error("gateway call failed", "operation", op, "reference", reference, "error", err)
		}
		return err
	}
	return nil
}

// IdempotencyHeader lets the gateway collapse repeated mutating requests.
const IdempotencyHeader = "Idempotency-Key"

type idempotencyKeyCtx struct{}

func withIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key, ok := ctx.Value(idempotencyKeyCtx{}).(string); ok {
		req.Header.Set(IdempotencyHeader, key)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("gateway: timeout calling %s: %w", path, err)
		}
		return fmt.Errorf("gateway: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	if !env.Status {
		return &StatusError{Code: resp.StatusCode, Body: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], env.Data...)
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

type transientClassifier struct{}

func (transientClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	var status *StatusError
	if errors.As(err, &status) && !status.Temporary() {
		return retrier.Fail
	}
	if errors.Is(err, context.Canceled) {
		return retrier.Fail
	}
	return retrier.Retry
}

var _ policies.PaymentGateway = (*Client)(nil)
