//go:build !integration

package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobmatch-payments/internal/config"
	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/ports/adapter"
)

func newTestWeChatGateway(t *testing.T, handler http.HandlerFunc) *WeChatGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewWeChatGateway(config.WeChatConfig{AppID: "wx-app", MchID: "mch-1", APIKey: "test-key"}, "https://pay.example.com/api/webhooks/payment")
	if err != nil {
		t.Fatalf("NewWeChatGateway failed: %v", err)
	}
	g.SetBaseURL(srv.URL)
	return g
}

func TestNewWeChatGateway(t *testing.T) {
	_, err := NewWeChatGateway(config.WeChatConfig{AppID: "wx-app"}, "")
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for partial config, got %v", err)
	}
}

func TestWeChatGateway_CreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the code_url and convert yuan to fen on the wire", func(t *testing.T) {
		var sent map[string]string
		g := newTestWeChatGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/pay/unifiedorder" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			sent, _ = DecodeXML(string(body))
			_, _ = w.Write([]byte(EncodeXML(map[string]string{
				"return_code": "SUCCESS",
				"result_code": "SUCCESS",
				"code_url":    "weixin://wxpay/bizpayurl?pr=abc123",
			})))
		})

		resp, err := g.CreatePayment(ctx, &adapter.PaymentRequest{PaymentID: "pay-1", Amount: 150, Currency: "CNY", Description: "Basic plan"})
		if err != nil {
			t.Fatalf("CreatePayment failed: %v", err)
		}
		if resp.QRCodeData != "weixin://wxpay/bizpayurl?pr=abc123" {
			t.Errorf("unexpected QR payload %q", resp.QRCodeData)
		}
		if sent["total_fee"] != "15000" {
			t.Errorf("expected total_fee in fen (15000), got %q", sent["total_fee"])
		}
		if sent["trade_type"] != "NATIVE" {
			t.Errorf("expected NATIVE trade type, got %q", sent["trade_type"])
		}
		if sent["out_trade_no"] != "pay-1" {
			t.Errorf("expected out_trade_no pay-1, got %q", sent["out_trade_no"])
		}
		if sig := sent["sign"]; sig == "" {
			t.Error("expected the request to be signed")
		} else {
			delete(sent, "sign")
			if WeChatSign(sent, "test-key") != sig {
				t.Error("request signature does not verify")
			}
		}
	})

	t.Run("should surface provider rejection as a ProviderError", func(t *testing.T) {
		g := newTestWeChatGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(EncodeXML(map[string]string{
				"return_code":  "SUCCESS",
				"result_code":  "FAIL",
				"err_code":     "ORDERPAID",
				"err_code_des": "order already paid",
			})))
		})

		_, err := g.CreatePayment(ctx, &adapter.PaymentRequest{PaymentID: "pay-1", Amount: 150})
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		if pe.Code != "ORDERPAID" {
			t.Errorf("expected code ORDERPAID, got %q", pe.Code)
		}
	})
}

func TestWeChatGateway_QueryPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should report paid for trade_state SUCCESS", func(t *testing.T) {
		g := newTestWeChatGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/pay/orderquery" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_, _ = w.Write([]byte(EncodeXML(map[string]string{
				"return_code":    "SUCCESS",
				"result_code":    "SUCCESS",
				"trade_state":    "SUCCESS",
				"transaction_id": "4200000001",
				"total_fee":      "15000",
				"time_end":       "20260830153045",
			})))
		})

		v := g.QueryPayment(ctx, "pay-1")
		if !v.IsPaid {
			t.Fatalf("expected IsPaid, got %+v", v)
		}
		if v.TransactionID != "4200000001" {
			t.Errorf("expected provider transaction id, got %q", v.TransactionID)
		}
		if v.PaidAmount != 150 {
			t.Errorf("expected amount converted back to yuan (150), got %d", v.PaidAmount)
		}
		if v.PaidAt == nil {
			t.Error("expected paid time to be parsed")
		}
	})

	t.Run("should report unpaid for NOTPAY without an error", func(t *testing.T) {
		g := newTestWeChatGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(EncodeXML(map[string]string{
				"return_code": "SUCCESS",
				"result_code": "SUCCESS",
				"trade_state": "NOTPAY",
			})))
		})

		v := g.QueryPayment(ctx, "pay-1")
		if v.IsPaid || v.Err != "" {
			t.Errorf("expected clean unpaid verdict, got %+v", v)
		}
	})

	t.Run("should report an outage as unpaid with the error recorded", func(t *testing.T) {
		srv := httptest.NewServer(nil)
		srv.Close() // unreachable on purpose
		g, err := NewWeChatGateway(config.WeChatConfig{AppID: "wx-app", MchID: "mch-1", APIKey: "test-key"}, "")
		if err != nil {
			t.Fatal(err)
		}
		g.SetBaseURL(srv.URL)

		v := g.QueryPayment(ctx, "pay-1")
		if v.IsPaid {
			t.Error("an unreachable provider must never read as paid")
		}
		if v.Err == "" {
			t.Error("expected the transport error to be recorded")
		}
	})
}

func TestWeChatGateway_VerifyNotification(t *testing.T) {
	g, err := NewWeChatGateway(config.WeChatConfig{AppID: "wx-app", MchID: "mch-1", APIKey: "test-key"}, "")
	if err != nil {
		t.Fatal(err)
	}

	signedNotice := func(fields map[string]string) string {
		fields["sign"] = WeChatSign(fields, "test-key")
		return EncodeXML(fields)
	}

	t.Run("accepts a correctly signed success notice", func(t *testing.T) {
		body := signedNotice(map[string]string{
			"return_code":  "SUCCESS",
			"result_code":  "SUCCESS",
			"out_trade_no": "pay-1",
		})
		id, paid, err := g.VerifyNotification(body)
		if err != nil {
			t.Fatalf("VerifyNotification failed: %v", err)
		}
		if id != "pay-1" || !paid {
			t.Errorf("expected (pay-1, paid), got (%s, %v)", id, paid)
		}
	})

	t.Run("rejects a tampered notice", func(t *testing.T) {
		body := signedNotice(map[string]string{
			"return_code":  "SUCCESS",
			"result_code":  "SUCCESS",
			"out_trade_no": "pay-1",
		})
		tampered := strings.Replace(body, "pay-1", "pay-2", 1)
		if _, _, err := g.VerifyNotification(tampered); err == nil {
			t.Error("expected a signature error for a tampered notice")
		}
	})

	t.Run("rejects an unsigned notice", func(t *testing.T) {
		body := EncodeXML(map[string]string{"return_code": "SUCCESS", "out_trade_no": "pay-1"})
		if _, _, err := g.VerifyNotification(body); err == nil {
			t.Error("expected a signature error for an unsigned notice")
		}
	})

	t.Run("signed failure notice is not paid", func(t *testing.T) {
		body := signedNotice(map[string]string{
			"return_code":  "SUCCESS",
			"result_code":  "FAIL",
			"out_trade_no": "pay-1",
		})
		id, paid, err := g.VerifyNotification(body)
		if err != nil {
			t.Fatalf("VerifyNotification failed: %v", err)
		}
		if paid {
			t.Error("a failure notice must not read as paid")
		}
		if id != "pay-1" {
			t.Errorf("expected the payment id either way, got %q", id)
		}
	})
}
