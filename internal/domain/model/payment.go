package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // QR issued; awaiting provider confirmation
	PaymentStatusCompleted PaymentStatus = "completed" // terminal; entitlement activated
)

type PaymentMethod string

const (
	PaymentMethodWeChat PaymentMethod = "wechat"
	PaymentMethodAlipay PaymentMethod = "alipay"
	PaymentMethodPayPay PaymentMethod = "paypay"
)

// Payment records one attempted purchase against an external QR network.
//
// TransactionID initially holds the provider QR payload; for providers that
// report an authoritative transaction id on confirmation it is overwritten
// with that id.
type Payment struct {
	ID            string        // UUID
	CompanyID     string        // owning company
	Amount        int64         // major units (JPY yen / CNY yuan)
	Currency      string        // ISO code, "JPY" or "CNY"
	Plan          string        // purchased plan/tier identifier
	Method        PaymentMethod // which provider the QR was issued on
	Status        PaymentStatus
	TransactionID string // QR payload, later provider txn id
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time // set when completed
}

// QRPayload returns the scannable payload while the payment is still pending
// and the stored transaction id is a recognizable QR scheme; otherwise "".
func (p *Payment) QRPayload() string {
	if p.Status != PaymentStatusPending {
		return ""
	}
	for _, prefix := range []string{"weixin://", "https://qr.alipay.com/", "paypay://", "https://qr-stg.sandbox.paypay.ne.jp/", "https://qr.paypay.ne.jp/"} {
		if strings.HasPrefix(p.TransactionID, prefix) {
			return p.TransactionID
		}
	}
	return ""
}

// QRValidity is how long a freshly issued code stays scannable per provider.
func (m PaymentMethod) QRValidity() time.Duration {
	if m == PaymentMethodPayPay {
		return 5 * time.Minute
	}
	return 2 * time.Hour
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodWeChat, PaymentMethodAlipay, PaymentMethodPayPay:
		return true
	}
	return false
}
