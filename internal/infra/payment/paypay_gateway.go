package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobmatch-payments/internal/config"
	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/ports/adapter"
)

// PayPayGateway implements adapter.ProviderClient against the PayPay OPA API
// (JSON over HTTP, per-call HMAC-SHA256 signatures).
type PayPayGateway struct {
	apiKey     string
	apiSecret  string
	merchantID string
	baseURL    string
	client     *http.Client
}

func NewPayPayGateway(cfg config.PayPayConfig) (*PayPayGateway, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.MerchantID == "" {
		return nil, fmt.Errorf("paypay: %w", domain.ErrNotConfigured)
	}
	baseURL := "https://stg-api.sandbox.paypay.ne.jp"
	if cfg.Environment == "production" {
		baseURL = "https://api.paypay.ne.jp"
	}
	return &PayPayGateway{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		merchantID: cfg.MerchantID,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *PayPayGateway) Name() string { return "paypay" }

// SetBaseURL points the client at a different host. Used by tests.
func (g *PayPayGateway) SetBaseURL(u string) { g.baseURL = strings.TrimSuffix(u, "/") }

type paypayEnvelope struct {
	ResultInfo struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"resultInfo"`
	Data json.RawMessage `json:"data"`
}

type paypayCodeData struct {
	URL        string `json:"url"`
	ExpiryDate int64  `json:"expiryDate"`
}

type paypayPaymentData struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
	Amount    struct {
		Amount int64 `json:"amount"`
	} `json:"amount"`
	AcceptedAt int64 `json:"acceptedAt"` // unix seconds
}

func (g *PayPayGateway) CreatePayment(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	payload := map[string]any{
		"merchantPaymentId": req.PaymentID,
		"amount": map[string]any{
			"amount":   req.Amount,
			"currency": req.Currency,
		},
		"codeType":         "ORDER_QR",
		"orderDescription": req.Description,
		"isAuthorization":  false,
		"redirectUrl":      req.CallbackURL,
		"redirectType":     "WEB_LINK",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("paypay: marshal request: %w", err)
	}

	env, err := g.call(ctx, http.MethodPost, "/v2/codes", body)
	if err != nil {
		return nil, err
	}
	if env.ResultInfo.Code != "SUCCESS" {
		return nil, &domain.ProviderError{Provider: g.Name(), Code: env.ResultInfo.Code, Message: env.ResultInfo.Message}
	}

	var data paypayCodeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("paypay: parse response data: %w", err)
	}
	return &adapter.PaymentResponse{
		QRCodeData: data.URL,
		PaymentURL: data.URL,
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}, nil
}

func (g *PayPayGateway) QueryPayment(ctx context.Context, paymentID string) *adapter.PaymentVerificationResult {
	env, err := g.call(ctx, http.MethodGet, "/v2/codes/payments/"+paymentID, nil)
	if err != nil {
		return &adapter.PaymentVerificationResult{Err: err.Error()}
	}
	if env.ResultInfo.Code != "SUCCESS" {
		return &adapter.PaymentVerificationResult{Err: env.ResultInfo.Message}
	}

	var data paypayPaymentData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return &adapter.PaymentVerificationResult{Err: fmt.Sprintf("paypay: parse response data: %v", err)}
	}
	if data.Status != "COMPLETED" {
		return &adapter.PaymentVerificationResult{}
	}

	res := &adapter.PaymentVerificationResult{
		IsPaid:        true,
		TransactionID: data.PaymentID,
		PaidAmount:    data.Amount.Amount,
	}
	if data.AcceptedAt > 0 {
		t := time.Unix(data.AcceptedAt, 0)
		res.PaidAt = &t
	}
	return res
}

func (g *PayPayGateway) call(ctx context.Context, method, resourcePath string, body []byte) (*paypayEnvelope, error) {
	nonce := NewNonce(32)
	timestamp := time.Now().Unix()

	contentType := ""
	var reader io.Reader
	if len(body) > 0 {
		contentType = "application/json"
		reader = bytes.NewReader(body)
	}
	signature := PayPaySign(resourcePath, method, nonce, timestamp, contentType, string(body), g.apiSecret)

	httpReq, err := http.NewRequestWithContext(ctx, method, g.baseURL+resourcePath, reader)
	if err != nil {
		return nil, fmt.Errorf("paypay: create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("X-ASSUME-MERCHANT", g.merchantID)
	httpReq.Header.Set("Authorization", "hmac OPA-Auth:"+g.apiKey+":"+signature)
	httpReq.Header.Set("X-PAYPAY-NONCE", nonce)
	httpReq.Header.Set("X-PAYPAY-TIMESTAMP", strconv.FormatInt(timestamp, 10))

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paypay: send request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("paypay: read response: %w", err)
	}
	var env paypayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("paypay: parse response: %w, body: %s", err, string(raw))
	}
	return &env, nil
}
