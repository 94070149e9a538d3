package payment

import (
	"context"
	"crypto/rsa"
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

const alipayTimeLayout = "2006-01-02 15:04:05"

// AlipayGateway implements adapter.ProviderClient against the Alipay open
// gateway (RSA2-signed query string in, JSON out).
type AlipayGateway struct {
	appID      string
	privateKey *rsa.PrivateKey
	notifyURL  string
	gatewayURL string
	client     *http.Client
}

func NewAlipayGateway(cfg config.AlipayConfig, notifyURL string) (*AlipayGateway, error) {
	if cfg.AppID == "" || cfg.PrivateKey == "" || cfg.PublicKey == "" {
		return nil, fmt.Errorf("alipay: %w", domain.ErrNotConfigured)
	}
	key, err := ParseRSAPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("alipay: %w", err)
	}
	return &AlipayGateway{
		appID:      cfg.AppID,
		privateKey: key,
		notifyURL:  notifyURL,
		gatewayURL: "https://openapi.alipay.com/gateway.do",
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *AlipayGateway) Name() string { return "alipay" }

// SetGatewayURL points the client at a different gateway. Used by tests.
func (g *AlipayGateway) SetGatewayURL(u string) { g.gatewayURL = u }

type alipayPrecreateResponse struct {
	Response struct {
		Code   string `json:"code"`
		Msg    string `json:"msg"`
		SubMsg string `json:"sub_msg"`
		QRCode string `json:"qr_code"`
	} `json:"alipay_trade_precreate_response"`
}

type alipayQueryResponse struct {
	Response struct {
		Code        string `json:"code"`
		Msg         string `json:"msg"`
		SubMsg      string `json:"sub_msg"`
		TradeStatus string `json:"trade_status"`
		TradeNo     string `json:"trade_no"`
		TotalAmount string `json:"total_amount"`
		SendPayDate string `json:"send_pay_date"`
	} `json:"alipay_trade_query_response"`
}

func (g *AlipayGateway) CreatePayment(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	bizContent, _ := json.Marshal(map[string]string{
		"out_trade_no": req.PaymentID,
		"total_amount": fmt.Sprintf("%.2f", float64(req.Amount)),
		"subject":      req.Description,
	})
	params := g.commonParams("alipay.trade.precreate", string(bizContent))
	params["notify_url"] = g.notifyURL

	sign, err := AlipaySign(params, g.privateKey)
	if err != nil {
		return nil, err
	}
	params["sign"] = sign

	body, err := g.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var parsed alipayPrecreateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("alipay: parse response: %w", err)
	}
	if parsed.Response.Code != "10000" {
		msg := parsed.Response.SubMsg
		if msg == "" {
			msg = parsed.Response.Msg
		}
		return nil, &domain.ProviderError{Provider: g.Name(), Code: parsed.Response.Code, Message: msg}
	}

	return &adapter.PaymentResponse{
		QRCodeData: parsed.Response.QRCode,
		ExpiresAt:  time.Now().Add(2 * time.Hour),
	}, nil
}

func (g *AlipayGateway) QueryPayment(ctx context.Context, paymentID string) *adapter.PaymentVerificationResult {
	bizContent, _ := json.Marshal(map[string]string{"out_trade_no": paymentID})
	params := g.commonParams("alipay.trade.query", string(bizContent))

	sign, err := AlipaySign(params, g.privateKey)
	if err != nil {
		return &adapter.PaymentVerificationResult{Err: err.Error()}
	}
	params["sign"] = sign

	body, err := g.get(ctx, params)
	if err != nil {
		return &adapter.PaymentVerificationResult{Err: err.Error()}
	}

	var parsed alipayQueryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &adapter.PaymentVerificationResult{Err: fmt.Sprintf("alipay: parse response: %v", err)}
	}
	r := parsed.Response
	if r.Code != "10000" {
		msg := r.SubMsg
		if msg == "" {
			msg = r.Msg
		}
		return &adapter.PaymentVerificationResult{Err: msg}
	}
	if r.TradeStatus != "TRADE_SUCCESS" && r.TradeStatus != "TRADE_FINISHED" {
		return &adapter.PaymentVerificationResult{}
	}

	amount, _ := strconv.ParseFloat(r.TotalAmount, 64)
	res := &adapter.PaymentVerificationResult{
		IsPaid:        true,
		TransactionID: r.TradeNo,
		PaidAmount:    int64(amount),
	}
	if t, err := time.ParseInLocation(alipayTimeLayout, r.SendPayDate, time.Local); err == nil {
		res.PaidAt = &t
	}
	return res
}

func (g *AlipayGateway) commonParams(method, bizContent string) map[string]string {
	return map[string]string{
		"app_id":      g.appID,
		"method":      method,
		"charset":     "utf-8",
		"sign_type":   "RSA2",
		"timestamp":   time.Now().Format(alipayTimeLayout),
		"version":     "1.0",
		"biz_content": bizContent,
	}
}

func (g *AlipayGateway) get(ctx context.Context, params map[string]string) ([]byte, error) {
	// Signing and transport must agree on parameter ordering, so the query
	// string is built by the canonical codec rather than url.Values.
	sep := "?"
	if strings.Contains(g.gatewayURL, "?") {
		sep = "&"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.gatewayURL+sep+CanonicalQuery(params), nil)
	if err != nil {
		return nil, fmt.Errorf("alipay: create request: %w", err)
	}
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("alipay: send request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("alipay: read response: %w", err)
	}
	return body, nil
}
