package payment

import (
	"context"
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

const wechatTimeLayout = "20060102150405"

// WeChatGateway implements adapter.ProviderClient against the WeChat Pay
// merchant API (XML over HTTP, keyed-MD5 signatures).
type WeChatGateway struct {
	appID     string
	mchID     string
	apiKey    string
	notifyURL string
	baseURL   string
	client    *http.Client
}

func NewWeChatGateway(cfg config.WeChatConfig, notifyURL string) (*WeChatGateway, error) {
	if cfg.AppID == "" || cfg.MchID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("wechat: %w", domain.ErrNotConfigured)
	}
	return &WeChatGateway{
		appID:     cfg.AppID,
		mchID:     cfg.MchID,
		apiKey:    cfg.APIKey,
		notifyURL: notifyURL,
		baseURL:   "https://api.mch.weixin.qq.com",
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *WeChatGateway) Name() string { return "wechat" }

// SetBaseURL points the client at a different host. Used by tests.
func (g *WeChatGateway) SetBaseURL(u string) { g.baseURL = strings.TrimSuffix(u, "/") }

func (g *WeChatGateway) CreatePayment(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	params := map[string]string{
		"appid":            g.appID,
		"mch_id":           g.mchID,
		"nonce_str":        NewNonce(32),
		"body":             req.Description,
		"out_trade_no":     req.PaymentID,
		"total_fee":        strconv.FormatInt(req.Amount*100, 10), // yuan -> fen
		"spbill_create_ip": "127.0.0.1",
		"notify_url":       g.notifyURL,
		"trade_type":       "NATIVE",
	}
	params["sign"] = WeChatSign(params, g.apiKey)

	resp, err := g.post(ctx, "/pay/unifiedorder", params)
	if err != nil {
		return nil, err
	}

	if resp["return_code"] != "SUCCESS" || resp["result_code"] != "SUCCESS" {
		msg := resp["return_msg"]
		if msg == "" {
			msg = resp["err_code_des"]
		}
		return nil, &domain.ProviderError{Provider: g.Name(), Code: resp["err_code"], Message: msg}
	}

	return &adapter.PaymentResponse{
		QRCodeData: resp["code_url"],
		ExpiresAt:  time.Now().Add(2 * time.Hour),
	}, nil
}

func (g *WeChatGateway) QueryPayment(ctx context.Context, paymentID string) *adapter.PaymentVerificationResult {
	params := map[string]string{
		"appid":        g.appID,
		"mch_id":       g.mchID,
		"out_trade_no": paymentID,
		"nonce_str":    NewNonce(32),
	}
	params["sign"] = WeChatSign(params, g.apiKey)

	resp, err := g.post(ctx, "/pay/orderquery", params)
	if err != nil {
		return &adapter.PaymentVerificationResult{Err: err.Error()}
	}

	if resp["return_code"] != "SUCCESS" {
		return &adapter.PaymentVerificationResult{Err: resp["return_msg"]}
	}
	if resp["result_code"] != "SUCCESS" {
		return &adapter.PaymentVerificationResult{Err: resp["err_code_des"]}
	}
	if resp["trade_state"] != "SUCCESS" {
		return &adapter.PaymentVerificationResult{}
	}

	fee, _ := strconv.ParseInt(resp["total_fee"], 10, 64)
	res := &adapter.PaymentVerificationResult{
		IsPaid:        true,
		TransactionID: resp["transaction_id"],
		PaidAmount:    fee / 100, // fen -> yuan
	}
	if t, err := time.ParseInLocation(wechatTimeLayout, resp["time_end"], time.Local); err == nil {
		res.PaidAt = &t
	}
	return res
}

// VerifyNotification checks the keyed-MD5 signature on a provider-pushed
// notice and reports whether it announces a successful payment. The payment
// id (out_trade_no) is returned either way so callers can cross-check state.
func (g *WeChatGateway) VerifyNotification(body string) (paymentID string, ok bool, err error) {
	fields, err := DecodeXML(body)
	if err != nil {
		return "", false, fmt.Errorf("wechat notify: %w", err)
	}
	sig := fields["sign"]
	delete(fields, "sign")
	if sig == "" || WeChatSign(fields, g.apiKey) != sig {
		return "", false, fmt.Errorf("wechat notify: bad signature")
	}
	paid := fields["return_code"] == "SUCCESS" && fields["result_code"] == "SUCCESS"
	return fields["out_trade_no"], paid, nil
}

func (g *WeChatGateway) post(ctx context.Context, path string, params map[string]string) (map[string]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(EncodeXML(params)))
	if err != nil {
		return nil, fmt.Errorf("wechat: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/xml")

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("wechat: send request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("wechat: read response: %w", err)
	}
	fields, err := DecodeXML(string(body))
	if err != nil {
		return nil, fmt.Errorf("wechat: parse response: %w", err)
	}
	return fields, nil
}
