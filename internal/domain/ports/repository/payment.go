package repository

import (
	"context"
	"time"

	"jobmatch-payments/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// MarkCompleted flips status pending->completed as a conditional
	// single-writer update. It returns domain.ErrAlreadyCompleted when the row
	// exists but is no longer pending, and domain.ErrNotFound when it does not
	// exist. txnID, when non-nil, overwrites the stored transaction id with
	// the provider's authoritative one.
	MarkCompleted(ctx context.Context, tx Tx, id string, txnID *string, paidAt time.Time) error
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Payment, error)
	SumByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
