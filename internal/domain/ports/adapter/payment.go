package adapter

import (
	"context"
	"time"

	"jobmatch-payments/internal/domain/model"
)

// PaymentRequest is the normalized create-payment input fed to a provider
// client. Ephemeral; never persisted.
type PaymentRequest struct {
	PaymentID   string
	Amount      int64 // major units
	Currency    string
	Description string
	CallbackURL string // optional; redirect target for providers that support one
}

// PaymentResponse is the normalized create-payment output.
type PaymentResponse struct {
	QRCodeData string // scannable payload
	PaymentURL string // optional redirect URL (PayPay)
	ExpiresAt  time.Time
}

// PaymentVerificationResult is the only input the state machine trusts for
// confirmation. A query that cannot prove payment yields IsPaid=false with
// Err populated; it never fails the caller.
type PaymentVerificationResult struct {
	IsPaid        bool
	TransactionID string
	PaidAmount    int64
	PaidAt        *time.Time
	Err           string
}

// Gateway is the facade port in front of the provider clients, dispatching by
// the payment's recorded method.
type Gateway interface {
	CreatePayment(ctx context.Context, method model.PaymentMethod, req *PaymentRequest) (*PaymentResponse, error)
	QueryPayment(ctx context.Context, method model.PaymentMethod, paymentID string) *PaymentVerificationResult
}

// ProviderClient is the hex port for one external QR payment network.
type ProviderClient interface {
	Name() string

	// CreatePayment registers the purchase with the provider and returns the
	// scannable QR payload plus its validity window.
	CreatePayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error)
	// QueryPayment maps the provider's status vocabulary onto a paid/unpaid
	// verdict. Verification is a query, not a command: absence of proof is
	// reported, never raised.
	QueryPayment(ctx context.Context, paymentID string) *PaymentVerificationResult
}
