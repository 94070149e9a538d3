package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/infra/metrics"
	"jobmatch-payments/internal/usecase"
)

// WeChatNotificationVerifier checks the signature on a WeChat-pushed notice.
// Satisfied by the WeChat provider client; nil when WeChat is not configured.
type WeChatNotificationVerifier interface {
	VerifyNotification(body string) (paymentID string, paid bool, err error)
}

// Server exposes the payment surface the platform frontend talks to. The
// platform authenticates companies upstream and forwards the acting company
// in X-Company-ID; this service never sees credentials.
type Server struct {
	payUC       usecase.PaymentUseCase
	wechat      WeChatNotificationVerifier
	webhookPath string
	log         *zerolog.Logger
}

func NewServer(payUC usecase.PaymentUseCase, wechat WeChatNotificationVerifier, webhookPath string, logger *zerolog.Logger) *Server {
	if webhookPath == "" {
		webhookPath = "/api/webhooks/payment"
	}
	return &Server{payUC: payUC, wechat: wechat, webhookPath: webhookPath, log: logger}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/payments", s.handleInitiate)
	r.Get("/api/payments/{id}", s.handleGet)
	r.Get("/api/payments/{id}/status", s.handleStatus)
	r.Post("/api/payments/confirm", s.handleConfirm)
	r.Post("/api/payments/{id}/complete", s.handleManualComplete)
	r.Post(s.webhookPath, s.handleWebhook)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

type initiateRequest struct {
	Plan        string `json:"plan"`
	Method      string `json:"paymentMethod"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	companyID := r.Header.Get("X-Company-ID")
	if companyID == "" {
		writeError(w, http.StatusUnauthorized, "missing company identity")
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, resp, err := s.payUC.Initiate(r.Context(), companyID, req.Plan, model.PaymentMethod(req.Method), req.Amount, req.Currency, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnsupportedMethod):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "payment provider not configured")
		case domain.IsProviderError(err):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			s.log.Error().Err(err).Msg("initiate failed")
			writeError(w, http.StatusInternalServerError, "failed to create payment")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":            p.ID,
		"status":        p.Status,
		"amount":        p.Amount,
		"currency":      p.Currency,
		"paymentMethod": p.Method,
		"qrCodeData":    resp.QRCodeData,
		"paymentUrl":    resp.PaymentURL,
		"expiresAt":     resp.ExpiresAt,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.payUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch payment")
		return
	}

	// The stored transaction id doubles as the QR payload until a provider
	// transaction id overwrites it; only echo it while it is scannable.
	var qr any
	if payload := p.QRPayload(); payload != "" {
		qr = payload
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            p.ID,
		"companyId":     p.CompanyID,
		"status":        p.Status,
		"amount":        p.Amount,
		"currency":      p.Currency,
		"plan":          p.Plan,
		"paymentMethod": p.Method,
		"createdAt":     p.CreatedAt,
		"qrCodeData":    qr,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.payUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch payment status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            p.ID,
		"status":        p.Status,
		"amount":        p.Amount,
		"paymentMethod": p.Method,
		"createdAt":     p.CreatedAt,
	})
}

type confirmRequest struct {
	PaymentID string `json:"paymentId"`
}

// handleConfirm is the client-driven poll path. The usecase re-queries the
// provider; a request body can never assert success.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	companyID := r.Header.Get("X-Company-ID")
	if companyID == "" {
		writeError(w, http.StatusUnauthorized, "missing company identity")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentID == "" {
		metrics.PaymentVerifyRequests.WithLabelValues("fail", "bad_json").Inc()
		writeError(w, http.StatusBadRequest, "paymentId is required")
		return
	}

	res, err := s.payUC.Confirm(r.Context(), companyID, req.PaymentID)
	if err != nil {
		s.observeConfirmError(w, start, err)
		return
	}

	metrics.PaymentVerifyRequests.WithLabelValues("ok", "").Inc()
	metrics.PaymentVerifyDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "payment confirmed",
		"id":          res.Payment.ID,
		"status":      res.Payment.Status,
		"entitlement": res.Track,
		"expiry":      res.Expiry,
	})
}

// handleManualComplete is permanently disabled: payments complete only via
// provider corroboration, never by request.
func (s *Server) handleManualComplete(w http.ResponseWriter, r *http.Request) {
	metrics.PaymentVerifyRequests.WithLabelValues("fail", "rejected").Inc()
	writeJSON(w, http.StatusForbidden, map[string]any{
		"error":   "Manual payment completion is not allowed. Payments are automatically verified via payment provider webhooks.",
		"message": "手動での支払い完了はできません。決済プロバイダーによる自動検証が必要です。",
	})
}

type webhookNotice struct {
	PaymentID         string `json:"paymentId"`
	MerchantPaymentID string `json:"merchantPaymentId"`
	OutTradeNo        string `json:"out_trade_no"`
}

// handleWebhook accepts provider-pushed completion notices. WeChat pushes
// signed XML which is verified directly; other notices are treated as hints
// and corroborated by querying the provider before anything transitions.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read notification body")
		return
	}

	isXML := strings.Contains(r.Header.Get("Content-Type"), "xml") || strings.HasPrefix(strings.TrimSpace(string(body)), "<xml")
	var paymentID string
	if isXML {
		if s.wechat == nil {
			writeError(w, http.StatusBadRequest, "wechat notifications not supported")
			return
		}
		id, paid, err := s.wechat.VerifyNotification(string(body))
		if err != nil {
			s.log.Warn().Err(err).Msg("webhook signature rejected")
			metrics.PaymentVerifyRequests.WithLabelValues("fail", "bad_signature").Inc()
			writeWeChatAck(w, "FAIL", "signature verification failed")
			return
		}
		if !paid {
			writeWeChatAck(w, "SUCCESS", "OK")
			return
		}
		paymentID = id
	} else {
		var notice webhookNotice
		if err := json.Unmarshal(body, &notice); err != nil {
			metrics.PaymentVerifyRequests.WithLabelValues("fail", "bad_json").Inc()
			writeError(w, http.StatusBadRequest, "invalid notification body")
			return
		}
		paymentID = notice.PaymentID
		if paymentID == "" {
			paymentID = notice.MerchantPaymentID
		}
		if paymentID == "" {
			paymentID = notice.OutTradeNo
		}
		if paymentID == "" {
			metrics.PaymentVerifyRequests.WithLabelValues("fail", "bad_json").Inc()
			writeError(w, http.StatusBadRequest, "notification carries no payment id")
			return
		}
	}

	_, err = s.payUC.HandleProviderNotice(ctx, paymentID)
	switch {
	case err == nil, errors.Is(err, domain.ErrAlreadyCompleted):
		// AlreadyCompleted means the other confirmation channel won the race;
		// acknowledge so the provider stops re-pushing.
		metrics.PaymentVerifyRequests.WithLabelValues("ok", "").Inc()
		metrics.PaymentVerifyDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		if isXML {
			writeWeChatAck(w, "SUCCESS", "OK")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	case errors.Is(err, domain.ErrNotFound):
		metrics.PaymentVerifyRequests.WithLabelValues("fail", "not_found").Inc()
		writeError(w, http.StatusNotFound, "payment not found")
	case errors.Is(err, domain.ErrNotPaid):
		metrics.PaymentVerifyRequests.WithLabelValues("fail", "not_paid").Inc()
		writeError(w, http.StatusConflict, "provider has no record of payment")
	default:
		s.log.Error().Err(err).Str("payment_id", paymentID).Msg("webhook confirm failed")
		metrics.PaymentVerifyRequests.WithLabelValues("fail", "error").Inc()
		metrics.PaymentVerifyDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
		writeError(w, http.StatusInternalServerError, "failed to process notification")
	}
}

func (s *Server) observeConfirmError(w http.ResponseWriter, start time.Time, err error) {
	reason := "error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		reason = "not_found"
		writeError(w, http.StatusNotFound, "payment not found")
	case errors.Is(err, domain.ErrForbidden):
		reason = "forbidden"
		writeError(w, http.StatusForbidden, "payment belongs to another company")
	case errors.Is(err, domain.ErrAlreadyCompleted):
		// Idempotency guard: the transition already happened. Success-no-op.
		metrics.PaymentVerifyRequests.WithLabelValues("ok", "already_completed").Inc()
		metrics.PaymentVerifyDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, map[string]string{"message": "payment already completed"})
		return
	case errors.Is(err, domain.ErrNotPaid):
		reason = "not_paid"
		writeError(w, http.StatusConflict, "payment not confirmed by provider yet")
	default:
		s.log.Error().Err(err).Msg("confirm failed")
		writeError(w, http.StatusInternalServerError, "failed to confirm payment")
	}
	metrics.PaymentVerifyRequests.WithLabelValues("fail", reason).Inc()
	metrics.PaymentVerifyDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeWeChatAck(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<xml><return_code>" + code + "</return_code><return_msg>" + msg + "</return_msg></xml>"))
}
