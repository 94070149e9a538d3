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

var _ repository.CompanyRepository = (*companyRepo)(nil)

// companyRepo touches only the entitlement slice of the companies table; the
// rest of the row belongs to the platform's CRUD surface.
type companyRepo struct{ pool *pgxpool.Pool }

func NewCompanyRepo(pool *pgxpool.Pool) *companyRepo {
	return &companyRepo{pool: pool}
}

func (r *companyRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Company, error) {
	const q = `SELECT id, name, email, subscription_plan, subscription_expiry, has_scout_access, scout_access_expiry FROM companies WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}

	c := &model.Company{}
	err = ex.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Email, &c.SubscriptionPlan, &c.SubscriptionExpiry, &c.HasScoutAccess, &c.ScoutAccessExpiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *companyRepo) ActivateSubscription(ctx context.Context, tx repository.Tx, companyID, plan string, expiry time.Time) error {
	const q = `UPDATE companies SET subscription_plan=$2, subscription_expiry=$3 WHERE id=$1;`
	return r.activate(ctx, tx, q, companyID, plan, expiry)
}

func (r *companyRepo) ActivateScoutAccess(ctx context.Context, tx repository.Tx, companyID string, expiry time.Time) error {
	const q = `UPDATE companies SET has_scout_access=TRUE, scout_access_expiry=$2 WHERE id=$1;`
	return r.activate(ctx, tx, q, companyID, expiry)
}

func (r *companyRepo) activate(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, args...)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
