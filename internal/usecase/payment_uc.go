// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/domain/ports/adapter"
	"jobmatch-payments/internal/domain/ports/repository"
	"jobmatch-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// ConfirmResult is returned from every path that completes a payment.
type ConfirmResult struct {
	Payment *model.Payment
	Track   model.EntitlementTrack
	Expiry  time.Time
}

type PaymentUseCase interface {
	// Initiate obtains a QR payload from the provider and creates the pending
	// payment record.
	Initiate(ctx context.Context, companyID, plan string, method model.PaymentMethod, amount int64, currency, description string) (*model.Payment, *adapter.PaymentResponse, error)
	// Confirm is the client-driven poll path: it re-queries the provider and
	// only completes the payment when the provider proves it was paid.
	// Returns domain.ErrNotPaid while the provider has no proof.
	Confirm(ctx context.Context, companyID, paymentID string) (*ConfirmResult, error)
	// HandleProviderNotice is the webhook path. The notice is treated as a
	// hint: the provider is re-queried before the transition is applied.
	HandleProviderNotice(ctx context.Context, paymentID string) (*ConfirmResult, error)
	// CompleteManually always fails closed. Payments complete only with
	// provider corroboration; no caller identity or role changes that.
	CompleteManually(ctx context.Context, companyID, paymentID string) error
	Get(ctx context.Context, paymentID string) (*model.Payment, error)
	// Totals per period (used by the admin stats endpoint)
	SumByPeriod(ctx context.Context, period string) (int64, error)
}

// Locker serializes the two confirmation channels per payment id. It only
// reduces duplicate provider queries; the conditional status update remains
// the correctness mechanism.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// QRCache keeps the scannable payload hot for the polling UI.
type QRCache interface {
	Put(ctx context.Context, paymentID, payload string, ttl time.Duration) error
	Get(ctx context.Context, paymentID string) (string, error)
}

type paymentUC struct {
	payments    repository.PaymentRepository
	entitlement EntitlementUseCase
	gateway     adapter.Gateway
	tm          repository.TransactionManager
	locker      Locker
	qrCache     QRCache
	notifier    NotificationUseCase
	log         *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	entitlement EntitlementUseCase,
	gateway adapter.Gateway,
	tm repository.TransactionManager,
	locker Locker,
	qrCache QRCache,
	notifier NotificationUseCase,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments:    payments,
		entitlement: entitlement,
		gateway:     gateway,
		tm:          tm,
		locker:      locker,
		qrCache:     qrCache,
		notifier:    notifier,
		log:         logger,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, companyID, plan string, method model.PaymentMethod, amount int64, currency, description string) (*model.Payment, *adapter.PaymentResponse, error) {
	if companyID == "" || amount <= 0 || !method.Valid() {
		return nil, nil, domain.ErrInvalidArgument
	}

	id := uuid.NewString()
	resp, err := u.gateway.CreatePayment(ctx, method, &adapter.PaymentRequest{
		PaymentID:   id,
		Amount:      amount,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	p := &model.Payment{
		ID:            id,
		CompanyID:     companyID,
		Amount:        amount,
		Currency:      currency,
		Plan:          plan,
		Method:        method,
		Status:        model.PaymentStatusPending,
		TransactionID: resp.QRCodeData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, nil, err
	}
	metrics.IncPayment("initiated")

	if u.qrCache != nil {
		if err := u.qrCache.Put(ctx, p.ID, resp.QRCodeData, method.QRValidity()); err != nil {
			u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("qr cache write failed")
		}
	}

	u.log.Info().Str("payment_id", p.ID).Str("method", string(method)).Int64("amount", amount).Str("currency", currency).Msg("payment initiated")
	return p, resp, nil
}

func (u *paymentUC) Confirm(ctx context.Context, companyID, paymentID string) (*ConfirmResult, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if p.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	if p.Status == model.PaymentStatusCompleted {
		return nil, domain.ErrAlreadyCompleted
	}

	// Never trust client-asserted success: the provider is the only witness.
	v := u.gateway.QueryPayment(ctx, p.Method, p.ID)
	if !v.IsPaid {
		if v.Err != "" {
			u.log.Warn().Str("payment_id", p.ID).Str("provider_err", v.Err).Msg("verification inconclusive")
		}
		return nil, domain.ErrNotPaid
	}
	return u.complete(ctx, p, v)
}

func (u *paymentUC) HandleProviderNotice(ctx context.Context, paymentID string) (*ConfirmResult, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PaymentStatusCompleted {
		return nil, domain.ErrAlreadyCompleted
	}

	v := u.gateway.QueryPayment(ctx, p.Method, p.ID)
	if !v.IsPaid {
		if v.Err != "" {
			u.log.Warn().Str("payment_id", p.ID).Str("provider_err", v.Err).Msg("notice not corroborated by provider")
		}
		return nil, domain.ErrNotPaid
	}
	return u.complete(ctx, p, v)
}

func (u *paymentUC) CompleteManually(ctx context.Context, companyID, paymentID string) error {
	u.log.Warn().Str("company_id", companyID).Str("payment_id", paymentID).Msg("manual completion attempt rejected")
	return domain.ErrManualCompletionDisabled
}

func (u *paymentUC) Get(ctx context.Context, paymentID string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, repository.NoTX, paymentID)
}

func (u *paymentUC) SumByPeriod(ctx context.Context, period string) (int64, error) {
	return u.payments.SumByPeriod(ctx, repository.NoTX, period)
}

// complete applies the single pending->completed transition and activates the
// entitlement in the same transaction. Whichever confirmation channel gets
// here second observes ErrAlreadyCompleted from the conditional update.
func (u *paymentUC) complete(ctx context.Context, p *model.Payment, v *adapter.PaymentVerificationResult) (*ConfirmResult, error) {
	if u.locker != nil {
		if token, err := u.locker.TryLock(ctx, "payment:confirm:"+p.ID, 30*time.Second); err == nil {
			defer func() { _ = u.locker.Unlock(ctx, "payment:confirm:"+p.ID, token) }()
		} else {
			u.log.Warn().Str("payment_id", p.ID).Msg("confirm lock not acquired; relying on conditional update")
		}
	}

	now := time.Now()
	var txnID *string
	if v.TransactionID != "" {
		txnID = &v.TransactionID
	}

	var track model.EntitlementTrack
	var expiry time.Time

	// A completed-but-unentitled payment is the unsafe failure mode, so both
	// writes happen in one transaction and the whole transition is retried on
	// entitlement failure rather than dropped.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := u.payments.MarkCompleted(ctx, tx, p.ID, txnID, now); err != nil {
				return err
			}
			track, expiry, err = u.entitlement.Activate(ctx, tx, p, now)
			return err
		})
		if err == nil || errors.Is(err, domain.ErrAlreadyCompleted) || errors.Is(err, domain.ErrNotFound) {
			break
		}
		u.log.Error().Err(err).Str("payment_id", p.ID).Int("attempt", attempt+1).Msg("completion transaction failed")
	}
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCompleted) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("complete payment %s: %w", p.ID, err)
	}

	p.Status = model.PaymentStatusCompleted
	if txnID != nil {
		p.TransactionID = *txnID
	}
	p.PaidAt = &now
	p.UpdatedAt = now

	metrics.IncPayment("completed")
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	u.log.Info().Str("payment_id", p.ID).Str("track", string(track)).Time("expiry", expiry).Msg("payment completed")

	if u.notifier != nil {
		u.notifier.PaymentCompleted(p, track, expiry)
	}
	return &ConfirmResult{Payment: p, Track: track, Expiry: expiry}, nil
}
