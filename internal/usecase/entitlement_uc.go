// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase classifies a confirmed payment and mutates the owning
// company's entitlement fields. Called only from within a successful payment
// completion, with the same transaction handle, so both writes land together.
type EntitlementUseCase interface {
	Activate(ctx context.Context, tx repository.Tx, p *model.Payment, confirmedAt time.Time) (model.EntitlementTrack, time.Time, error)
}

type entitlementUC struct {
	companies repository.CompanyRepository
	log       *zerolog.Logger
}

func NewEntitlementUseCase(companies repository.CompanyRepository, logger *zerolog.Logger) *entitlementUC {
	return &entitlementUC{companies: companies, log: logger}
}

func (u *entitlementUC) Activate(ctx context.Context, tx repository.Tx, p *model.Payment, confirmedAt time.Time) (model.EntitlementTrack, time.Time, error) {
	expiry := addOneMonth(confirmedAt)

	if isScoutPurchase(p.Amount, p.Currency) {
		if err := u.companies.ActivateScoutAccess(ctx, tx, p.CompanyID, expiry); err != nil {
			return "", time.Time{}, err
		}
		u.log.Info().Str("company_id", p.CompanyID).Str("payment_id", p.ID).Time("expiry", expiry).Msg("scout access activated")
		return model.EntitlementScoutAccess, expiry, nil
	}

	if err := u.companies.ActivateSubscription(ctx, tx, p.CompanyID, p.Plan, expiry); err != nil {
		return "", time.Time{}, err
	}
	u.log.Info().Str("company_id", p.CompanyID).Str("payment_id", p.ID).Str("plan", p.Plan).Time("expiry", expiry).Msg("subscription activated")
	return model.EntitlementSubscription, expiry, nil
}

// isScoutPurchase distinguishes a scout-access purchase from a subscription
// purchase by price point. The intent is not persisted on the payment row, so
// a price-catalog change would reclassify in-flight purchases; keep this
// table in sync with the catalog.
func isScoutPurchase(amount int64, currency string) bool {
	return (amount == 3000 && currency == "JPY") || (amount == 150 && currency == "CNY")
}

// addOneMonth advances the month index by one, preserving the day-of-month
// where the target month supports it and clamping to its last day otherwise
// (Jan 31 -> Feb 28/29).
func addOneMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// last day of the next month: day 0 of the month after it
	last := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month+1, day, hour, min, sec, t.Nanosecond(), t.Location())
}
