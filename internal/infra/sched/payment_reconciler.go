package sched

import (
	"context"
	"errors"
	"log"
	"time"

	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/ports/repository"
	"jobmatch-payments/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and tries
// to finalize them through the provider-corroborated path. This covers the
// cases where the webhook never arrived or the process crashed mid-confirm.
// Payments whose QR validity window has lapsed are skipped: the code can no
// longer be paid and re-querying it is pointless, but the row stays pending.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{uc: uc, payments: payments, interval: interval, staleAfter: staleAfter}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		log.Printf("payment-reconciler: list pending error: %v", err)
		return
	}
	for _, p := range pending {
		if time.Since(p.CreatedAt) > p.Method.QRValidity() {
			continue
		}
		if _, err := w.uc.HandleProviderNotice(ctx, p.ID); err != nil {
			if errors.Is(err, domain.ErrNotPaid) || errors.Is(err, domain.ErrAlreadyCompleted) {
				continue
			}
			log.Printf("payment-reconciler: confirm failed payment=%s err=%v", p.ID, err)
			continue
		}
		log.Printf("payment-reconciler: reconciled payment=%s", p.ID)
	}
}
