package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/domain/ports/adapter"
	"jobmatch-payments/internal/domain/ports/repository"
	"jobmatch-payments/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase sends business-event email. Strictly fire-and-forget:
// delivery runs on the worker pool and failures are logged and discarded, so
// a payment transition is never gated on the mail system.
type NotificationUseCase interface {
	PaymentCompleted(p *model.Payment, track model.EntitlementTrack, expiry time.Time)
}

// TaskSubmitter is the slice of the worker pool this usecase needs.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

type notificationUC struct {
	companies repository.CompanyRepository
	mailer    adapter.Mailer
	pool      TaskSubmitter
	log       *zerolog.Logger
}

func NewNotificationUseCase(companies repository.CompanyRepository, mailer adapter.Mailer, pool TaskSubmitter, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{companies: companies, mailer: mailer, pool: pool, log: logger}
}

func (n *notificationUC) PaymentCompleted(p *model.Payment, track model.EntitlementTrack, expiry time.Time) {
	if n.mailer == nil || n.pool == nil {
		return
	}
	payment := *p
	err := n.pool.Submit(func(ctx context.Context) error {
		company, err := n.companies.FindByID(ctx, repository.NoTX, payment.CompanyID)
		if err != nil {
			metrics.IncPaymentEmail("completed", "no_company")
			return fmt.Errorf("load company %s: %w", payment.CompanyID, err)
		}
		if company.Email == "" {
			metrics.IncPaymentEmail("completed", "no_address")
			return nil
		}

		subject := "お支払いが完了しました / Payment completed"
		body := fmt.Sprintf(
			"<p>%s 様</p><p>お支払い（%d %s）を確認しました。</p><p>Your payment of %d %s has been confirmed.<br>Entitlement: %s, valid until %s.</p>",
			company.Name, payment.Amount, payment.Currency, payment.Amount, payment.Currency, track, expiry.Format("2006-01-02"),
		)
		if err := n.mailer.Send(ctx, company.Email, subject, body); err != nil {
			metrics.IncPaymentEmail("completed", "error")
			return fmt.Errorf("send mail to %s: %w", company.Email, err)
		}
		metrics.IncPaymentEmail("completed", "sent")
		return nil
	})
	if err != nil {
		n.log.Warn().Err(err).Str("payment_id", p.ID).Msg("notification task dropped")
	}
}
