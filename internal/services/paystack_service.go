package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/bluelagoon/travel-booking-backend/internal/metrics"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentGateway is the outbound side of the payment provider
type PaymentGateway interface {
	Initialize(ctx context.Context, req *GatewayInitializeRequest) (*GatewayInitializeResult, error)
	Verify(ctx context.Context, reference string) (*GatewayVerification, error)
}

// SignatureVerifier authenticates webhook payloads
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) error
}

// GatewayInitializeRequest describes a checkout to open with the gateway
type GatewayInitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Reference   string
	Currency    string
	CallbackURL string
	Metadata    map[string]interface{}
}

// GatewayInitializeResult is the gateway's answer to an initialization
type GatewayInitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Raw              models.JSONB
}

// GatewayVerification is what the gateway reports about a charge
type GatewayVerification struct {
	Status               string // success, failed, abandoned, ongoing, pending, reversed
	Reference            string
	GatewayTransactionID string
	Amount               decimal.Decimal
	Currency             string
	Channel              string
	CardType             string
	CardLast4            string
	Bank                 string
	GatewayResponse      string
	PaidAt               *time.Time
	Raw                  models.JSONB
}

// SettlementDetails converts the verification into ledger settlement metadata
func (v *GatewayVerification) SettlementDetails() models.SettlementDetails {
	amount := v.Amount
	return models.SettlementDetails{
		GatewayTransactionID: v.GatewayTransactionID,
		Channel:              v.Channel,
		CardType:             v.CardType,
		CardLast4:            v.CardLast4,
		Bank:                 v.Bank,
		ReportedAmount:       &amount,
		Currency:             v.Currency,
		PaidAt:               v.PaidAt,
		GatewayResponse:      v.Raw,
	}
}

// ToKobo converts a major-unit amount to the gateway's minor unit
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromKobo converts a minor-unit amount back to major units
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// PaystackService handles payment gateway integration with Paystack
type PaystackService struct {
	config *config.PaystackConfig
	logger *logrus.Logger
	client *http.Client
}

// NewPaystackService creates a new Paystack gateway client
func NewPaystackService(cfg *config.PaystackConfig, logger *logrus.Logger) *PaystackService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PaystackService{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// paystackEnvelope is the common response wrapper
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// PaystackCharge is the charge object returned by verify and carried by webhooks
type PaystackCharge struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Channel         string `json:"channel"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
	Authorization   struct {
		Last4    string `json:"last4"`
		CardType string `json:"card_type"`
		Bank     string `json:"bank"`
	} `json:"authorization"`
}

// Verification converts a charge into the gateway-neutral verification shape
func (c *PaystackCharge) Verification(raw models.JSONB) *GatewayVerification {
	v := &GatewayVerification{
		Status:          strings.ToLower(c.Status),
		Reference:       c.Reference,
		Amount:          FromKobo(c.Amount),
		Currency:        c.Currency,
		Channel:         c.Channel,
		CardType:        strings.TrimSpace(c.Authorization.CardType),
		CardLast4:       c.Authorization.Last4,
		Bank:            c.Authorization.Bank,
		GatewayResponse: c.GatewayResponse,
		Raw:             raw,
	}
	if c.ID != 0 {
		v.GatewayTransactionID = fmt.Sprintf("%d", c.ID)
	}
	if c.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, c.PaidAt); err == nil {
			v.PaidAt = &paidAt
		}
	}
	return v
}

// Initialize opens a checkout with Paystack
func (s *PaystackService) Initialize(ctx context.Context, req *GatewayInitializeRequest) (result *GatewayInitializeResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayCall("initialize", start, err) }()

	payload := map[string]interface{}{
		"email":        req.Email,
		"amount":       ToKobo(req.Amount),
		"reference":    req.Reference,
		"currency":     req.Currency,
		"callback_url": req.CallbackURL,
		"metadata":     req.Metadata,
	}

	s.logger.WithFields(logrus.Fields{
		"reference": req.Reference,
		"amount":    req.Amount.StringFixed(2),
		"currency":  req.Currency,
	}).Info("Initializing Paystack transaction")

	envelope, raw, err := s.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var data paystackInitializeData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &models.GatewayError{Operation: "initialize", Message: "malformed response data", Err: err}
	}
	if data.AuthorizationURL == "" {
		return nil, &models.GatewayError{Operation: "initialize", Message: "no authorization URL returned"}
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}

	return &GatewayInitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
		Raw:              raw,
	}, nil
}

// Verify fetches the current state of a charge
func (s *PaystackService) Verify(ctx context.Context, reference string) (result *GatewayVerification, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayCall("verify", start, err) }()

	envelope, raw, err := s.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var charge PaystackCharge
	if err := json.Unmarshal(envelope.Data, &charge); err != nil {
		return nil, &models.GatewayError{Operation: "verify", Message: "malformed response data", Err: err}
	}
	return charge.Verification(raw), nil
}

// VerifySignature checks the X-Paystack-Signature header: hex HMAC-SHA512 of the raw
// body keyed by the secret key, compared in constant time
func (s *PaystackService) VerifySignature(body []byte, signature string) error {
	if s.config.SecretKey == "" || signature == "" {
		return models.ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(s.config.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return models.ErrInvalidSignature
	}
	return nil
}

func (s *PaystackService) do(ctx context.Context, operation, method, path string, payload interface{}) (*paystackEnvelope, models.JSONB, error) {
	if s.config.SecretKey == "" {
		return nil, nil, &models.GatewayError{Operation: operation, Message: "payment gateway not configured: missing secret key"}
	}

	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Error("Failed to call Paystack")
		return nil, nil, &models.GatewayError{Operation: operation, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &models.GatewayError{Operation: operation, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"operation":   operation,
		"status_code": resp.StatusCode,
	}).Debug("Paystack response received")

	var envelope paystackEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, nil, &models.GatewayError{Operation: operation, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}

	if resp.StatusCode != http.StatusOK || !envelope.Status {
		message := envelope.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, nil, &models.GatewayError{Operation: operation, StatusCode: resp.StatusCode, Message: message}
	}

	// the envelope already parsed, so this cannot fail
	var raw models.JSONB
	_ = json.Unmarshal(respBody, &raw)
	return &envelope, raw, nil
}
