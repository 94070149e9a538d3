//go:build !integration

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobmatch-payments/internal/config"
	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/ports/adapter"
)

func newTestPayPayGateway(t *testing.T, handler http.HandlerFunc) *PayPayGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewPayPayGateway(config.PayPayConfig{APIKey: "k", APISecret: "s", MerchantID: "m-1", Environment: "sandbox"})
	if err != nil {
		t.Fatalf("NewPayPayGateway failed: %v", err)
	}
	g.SetBaseURL(srv.URL)
	return g
}

func TestNewPayPayGateway(t *testing.T) {
	_, err := NewPayPayGateway(config.PayPayConfig{APIKey: "k"})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for partial config, got %v", err)
	}
}

func TestPayPayGateway_CreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a dynamic QR code with auth headers", func(t *testing.T) {
		var gotHeaders http.Header
		var payload map[string]any
		g := newTestPayPayGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v2/codes" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			gotHeaders = r.Header.Clone()
			_ = json.NewDecoder(r.Body).Decode(&payload)
			_, _ = w.Write([]byte(`{"resultInfo":{"code":"SUCCESS","message":"Success"},"data":{"url":"https://qr-stg.sandbox.paypay.ne.jp/28180447","expiryDate":1790000000}}`))
		})

		resp, err := g.CreatePayment(ctx, &adapter.PaymentRequest{PaymentID: "pay-1", Amount: 3000, Currency: "JPY", Description: "Scout access"})
		if err != nil {
			t.Fatalf("CreatePayment failed: %v", err)
		}
		if resp.QRCodeData != "https://qr-stg.sandbox.paypay.ne.jp/28180447" {
			t.Errorf("unexpected QR payload %q", resp.QRCodeData)
		}
		if gotHeaders.Get("X-ASSUME-MERCHANT") != "m-1" {
			t.Error("expected merchant header")
		}
		if auth := gotHeaders.Get("Authorization"); !strings.HasPrefix(auth, "hmac OPA-Auth:k:") {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if gotHeaders.Get("X-PAYPAY-NONCE") == "" || gotHeaders.Get("X-PAYPAY-TIMESTAMP") == "" {
			t.Error("expected nonce and timestamp headers")
		}
		if payload["merchantPaymentId"] != "pay-1" {
			t.Errorf("expected merchantPaymentId pay-1, got %v", payload["merchantPaymentId"])
		}
		amount, _ := payload["amount"].(map[string]any)
		if amount["currency"] != "JPY" {
			t.Errorf("expected JPY amount, got %v", amount)
		}
	})

	t.Run("should surface rejection as a ProviderError", func(t *testing.T) {
		g := newTestPayPayGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"resultInfo":{"code":"DUPLICATE_DYNAMIC_QR_REQUEST","message":"duplicate"}}`))
		})
		_, err := g.CreatePayment(ctx, &adapter.PaymentRequest{PaymentID: "pay-1", Amount: 3000, Currency: "JPY"})
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		if pe.Code != "DUPLICATE_DYNAMIC_QR_REQUEST" {
			t.Errorf("unexpected code %q", pe.Code)
		}
	})
}

func TestPayPayGateway_QueryPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("COMPLETED reads as paid", func(t *testing.T) {
		g := newTestPayPayGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/v2/codes/payments/pay-1" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"resultInfo":{"code":"SUCCESS"},"data":{"status":"COMPLETED","paymentId":"pp-123","amount":{"amount":3000},"acceptedAt":1790000000}}`))
		})

		v := g.QueryPayment(ctx, "pay-1")
		if !v.IsPaid {
			t.Fatalf("expected IsPaid, got %+v", v)
		}
		if v.TransactionID != "pp-123" || v.PaidAmount != 3000 {
			t.Errorf("unexpected verdict %+v", v)
		}
		if v.PaidAt == nil || v.PaidAt.Unix() != 1790000000 {
			t.Error("expected acceptedAt to be parsed as unix seconds")
		}
	})

	t.Run("CREATED reads as unpaid without an error", func(t *testing.T) {
		g := newTestPayPayGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"resultInfo":{"code":"SUCCESS"},"data":{"status":"CREATED"}}`))
		})
		v := g.QueryPayment(ctx, "pay-1")
		if v.IsPaid || v.Err != "" {
			t.Errorf("expected clean unpaid verdict, got %+v", v)
		}
	})

	t.Run("a rejected lookup reads as unpaid with the reason recorded", func(t *testing.T) {
		g := newTestPayPayGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"resultInfo":{"code":"DYNAMIC_QR_PAYMENT_NOT_FOUND","message":"payment not found"}}`))
		})
		v := g.QueryPayment(ctx, "pay-1")
		if v.IsPaid {
			t.Error("a missing payment must never read as paid")
		}
		if v.Err != "payment not found" {
			t.Errorf("expected the reason to be recorded, got %q", v.Err)
		}
	})
}
