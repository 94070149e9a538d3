// File: internal/usecase/mock_test.go
package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/domain/ports/adapter"
	"jobmatch-payments/internal/domain/ports/repository"
)

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment // by id

	SaveFunc                 func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc             func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	MarkCompletedFunc        func(ctx context.Context, tx repository.Tx, id string, txnID *string, paidAt time.Time) error
	ListPendingOlderThanFunc func(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error)
	SumByPeriodFunc          func(ctx context.Context, tx repository.Tx, period string) (int64, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// MarkCompleted mirrors the conditional update of the real repository: only a
// pending row transitions, and the zero-row cases are distinguished.
func (r *MockPaymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id string, txnID *string, paidAt time.Time) error {
	if r.MarkCompletedFunc != nil {
		return r.MarkCompletedFunc(ctx, tx, id, txnID, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return domain.ErrAlreadyCompleted
	}
	p.Status = model.PaymentStatusCompleted
	if txnID != nil {
		p.TransactionID = *txnID
	}
	pa := paidAt
	p.PaidAt = &pa
	p.UpdatedAt = paidAt
	return nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	if r.ListPendingOlderThanFunc != nil {
		return r.ListPendingOlderThanFunc(ctx, tx, cutoff, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	if r.SumByPeriodFunc != nil {
		return r.SumByPeriodFunc(ctx, tx, period)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.data {
		if p.Status == model.PaymentStatusCompleted {
			sum += p.Amount
		}
	}
	return sum, nil
}

// Get returns the stored payment without the defensive copy, for assertions.
func (r *MockPaymentRepo) Get(id string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[id]
}

// ---- Mock CompanyRepository ----

type MockCompanyRepo struct {
	mu   sync.Mutex
	data map[string]*model.Company

	SubscriptionCalls int
	ScoutCalls        int

	FindByIDFunc             func(ctx context.Context, tx repository.Tx, id string) (*model.Company, error)
	ActivateSubscriptionFunc func(ctx context.Context, tx repository.Tx, companyID, plan string, expiry time.Time) error
	ActivateScoutAccessFunc  func(ctx context.Context, tx repository.Tx, companyID string, expiry time.Time) error
}

var _ repository.CompanyRepository = (*MockCompanyRepo)(nil)

func NewMockCompanyRepo() *MockCompanyRepo {
	return &MockCompanyRepo{data: map[string]*model.Company{}}
}

func (r *MockCompanyRepo) Put(c *model.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.data[c.ID] = &cp
}

func (r *MockCompanyRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Company, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.data[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockCompanyRepo) ActivateSubscription(ctx context.Context, tx repository.Tx, companyID, plan string, expiry time.Time) error {
	if r.ActivateSubscriptionFunc != nil {
		return r.ActivateSubscriptionFunc(ctx, tx, companyID, plan, expiry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[companyID]
	if !ok {
		return domain.ErrNotFound
	}
	c.SubscriptionPlan = plan
	c.SubscriptionExpiry = &expiry
	r.SubscriptionCalls++
	return nil
}

func (r *MockCompanyRepo) ActivateScoutAccess(ctx context.Context, tx repository.Tx, companyID string, expiry time.Time) error {
	if r.ActivateScoutAccessFunc != nil {
		return r.ActivateScoutAccessFunc(ctx, tx, companyID, expiry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[companyID]
	if !ok {
		return domain.ErrNotFound
	}
	c.HasScoutAccess = true
	c.ScoutAccessExpiry = &expiry
	r.ScoutCalls++
	return nil
}

func (r *MockCompanyRepo) Get(id string) *model.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[id]
}

// ---- Mock Gateway ----

type MockGateway struct {
	CreatePaymentFunc func(ctx context.Context, method model.PaymentMethod, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error)
	QueryPaymentFunc  func(ctx context.Context, method model.PaymentMethod, paymentID string) *adapter.PaymentVerificationResult
	QueryCalls        int
}

var _ adapter.Gateway = (*MockGateway)(nil)

func (g *MockGateway) CreatePayment(ctx context.Context, method model.PaymentMethod, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	if g.CreatePaymentFunc != nil {
		return g.CreatePaymentFunc(ctx, method, req)
	}
	return &adapter.PaymentResponse{QRCodeData: "weixin://wxpay/bizpayurl?pr=" + req.PaymentID, ExpiresAt: time.Now().Add(2 * time.Hour)}, nil
}

func (g *MockGateway) QueryPayment(ctx context.Context, method model.PaymentMethod, paymentID string) *adapter.PaymentVerificationResult {
	g.QueryCalls++
	if g.QueryPaymentFunc != nil {
		return g.QueryPaymentFunc(ctx, method, paymentID)
	}
	return &adapter.PaymentVerificationResult{IsPaid: false, Err: "no verdict configured"}
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock Mailer / worker ----

type MockMailer struct {
	mu   sync.Mutex
	Sent []string // recipient addresses
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, to)
	return nil
}

// inlineSubmitter runs tasks synchronously so tests can assert side effects
// without sleeping.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
