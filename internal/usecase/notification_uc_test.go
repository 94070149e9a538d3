//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/usecase"
)

func TestNotificationUseCase_PaymentCompleted(t *testing.T) {
	payment := &model.Payment{ID: "pay-1", CompanyID: "company-1", Amount: 10000, Currency: "JPY", Plan: "BASIC"}
	expiry := time.Now().AddDate(0, 1, 0)

	t.Run("should mail the company on completion", func(t *testing.T) {
		companies := NewMockCompanyRepo()
		companies.Put(&model.Company{ID: "company-1", Name: "Acme", Email: "billing@acme.example"})
		mailer := &MockMailer{}
		uc := usecase.NewNotificationUseCase(companies, mailer, inlineSubmitter{}, newTestLogger())

		uc.PaymentCompleted(payment, model.EntitlementSubscription, expiry)

		if len(mailer.Sent) != 1 || mailer.Sent[0] != "billing@acme.example" {
			t.Fatalf("expected one mail to billing@acme.example, got %v", mailer.Sent)
		}
	})

	t.Run("should skip companies without an email address", func(t *testing.T) {
		companies := NewMockCompanyRepo()
		companies.Put(&model.Company{ID: "company-1", Name: "Acme"})
		mailer := &MockMailer{}
		uc := usecase.NewNotificationUseCase(companies, mailer, inlineSubmitter{}, newTestLogger())

		uc.PaymentCompleted(payment, model.EntitlementSubscription, expiry)

		if len(mailer.Sent) != 0 {
			t.Fatalf("expected no mail, got %v", mailer.Sent)
		}
	})

	t.Run("should never block the caller on a saturated pool", func(t *testing.T) {
		companies := NewMockCompanyRepo()
		companies.Put(&model.Company{ID: "company-1", Name: "Acme", Email: "billing@acme.example"})
		uc := usecase.NewNotificationUseCase(companies, &MockMailer{}, rejectingSubmitter{}, newTestLogger())

		done := make(chan struct{})
		go func() {
			uc.PaymentCompleted(payment, model.EntitlementSubscription, expiry)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("PaymentCompleted blocked on submit failure")
		}
	})
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) Submit(task func(ctx context.Context) error) error {
	return context.DeadlineExceeded
}
