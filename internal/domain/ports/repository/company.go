package repository

import (
	"context"
	"time"

	"jobmatch-payments/internal/domain/model"
)

// CompanyRepository exposes only what this subsystem needs from the larger
// Company entity: lookup plus the two entitlement writes. Each activation
// touches its own track and leaves the other untouched.
type CompanyRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Company, error)
	ActivateSubscription(ctx context.Context, tx Tx, companyID, plan string, expiry time.Time) error
	ActivateScoutAccess(ctx context.Context, tx Tx, companyID string, expiry time.Time) error
}
