package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/usecase"
)

// Server is the operator-facing admin API. Login exchanges the static API key
// for a short-lived session token; everything else requires that session.
type Server struct {
	payUC  usecase.PaymentUseCase
	auth   *AuthManager
	apiKey string
	log    *zerolog.Logger
}

func NewServer(payUC usecase.PaymentUseCase, auth *AuthManager, apiKey string, logger *zerolog.Logger) *Server {
	return &Server{
		payUC:  payUC,
		auth:   auth,
		apiKey: apiKey,
		log:    logger,
	}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/login", s.loginHandler)
	mux.HandleFunc("/api/v1/logout", s.logoutHandler)

	statsHandler := s.authMiddleware(http.HandlerFunc(s.statsHandler))
	mux.Handle("/api/v1/stats", statsHandler)

	paymentsRouter := s.authMiddleware(s.paymentsRouter())
	mux.Handle("/api/v1/payments", paymentsRouter)
	mux.Handle("/api/v1/payments/", paymentsRouter)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.apiKey == "" {
		s.log.Error().Msg("Admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var body struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.APIKey != s.apiKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to mint admin session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// authMiddleware requires a valid admin session minted by loginHandler.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil || claims.Role != "admin" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := make(map[string]int64, 3)
	for _, period := range []string{"week", "month", "year"} {
		sum, err := s.payUC.SumByPeriod(r.Context(), period)
		if err != nil {
			s.log.Error().Err(err).Str("period", period).Msg("failed to load revenue stats")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		stats[period] = sum
	}
	writeJSON(w, http.StatusOK, map[string]any{"revenue": stats})
}

func (s *Server) paymentsRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/v1/payments")
		id = strings.Trim(id, "/")
		if id == "" {
			http.Error(w, "payment id required", http.StatusBadRequest)
			return
		}

		p, err := s.payUC.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}
			s.log.Error().Err(err).Str("payment_id", id).Msg("failed to load payment")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
