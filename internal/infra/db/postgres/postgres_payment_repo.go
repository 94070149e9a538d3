package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, company_id, amount, currency, plan, method, status, transaction_id, created_at, updated_at, paid_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, company_id, amount, currency, plan, method, status, transaction_id, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  transaction_id=$8, updated_at=$10;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, p.ID, p.CompanyID, p.Amount, p.Currency, p.Plan, p.Method, p.Status, p.TransactionID, p.CreatedAt, p.UpdatedAt, p.PaidAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{}
	err = ex.QueryRow(ctx, q, id).Scan(&p.ID, &p.CompanyID, &p.Amount, &p.Currency, &p.Plan, &p.Method, &p.Status, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// MarkCompleted is the check-then-set transition guard: the UPDATE only
// matches a row that is still pending, so concurrent confirmations cannot
// both win even without row locks.
func (r *paymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id string, txnID *string, paidAt time.Time) error {
	const q = `
UPDATE payments
SET status=$2, transaction_id=COALESCE($3, transaction_id), paid_at=$4, updated_at=NOW()
WHERE id=$1 AND status=$5;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, model.PaymentStatusCompleted, txnID, paidAt, model.PaymentStatusPending)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish the two zero-row cases.
	var status model.PaymentStatus
	err = ex.QueryRow(ctx, `SELECT status FROM payments WHERE id=$1;`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return domain.ErrReadDatabaseRow
	}
	return domain.ErrAlreadyCompleted
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status=$1 AND created_at < $2 ORDER BY created_at LIMIT $3;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, model.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p := &model.Payment{}
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Amount, &p.Currency, &p.Plan, &p.Method, &p.Status, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE status=$1 AND paid_at >= DATE_TRUNC($2, NOW());`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := ex.QueryRow(ctx, q, model.PaymentStatusCompleted, period).Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
