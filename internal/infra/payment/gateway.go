package payment

import (
	"context"
	"fmt"

	"jobmatch-payments/internal/domain"
	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/domain/ports/adapter"
)

// Gateway is the single entry point in front of the provider clients. It
// dispatches by the Payment's recorded method so upstream code never branches
// on provider identity.
type Gateway struct {
	clients map[model.PaymentMethod]adapter.ProviderClient
}

func NewGateway() *Gateway {
	return &Gateway{clients: make(map[model.PaymentMethod]adapter.ProviderClient)}
}

// Register binds a provider client to a payment method. Nil clients are
// ignored so partially configured deployments can run with fewer providers.
func (g *Gateway) Register(method model.PaymentMethod, client adapter.ProviderClient) {
	if client != nil {
		g.clients[method] = client
	}
}

func (g *Gateway) Client(method model.PaymentMethod) (adapter.ProviderClient, error) {
	c, ok := g.clients[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMethod, method)
	}
	return c, nil
}

func (g *Gateway) CreatePayment(ctx context.Context, method model.PaymentMethod, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	c, err := g.Client(method)
	if err != nil {
		return nil, err
	}
	return c.CreatePayment(ctx, req)
}

func (g *Gateway) QueryPayment(ctx context.Context, method model.PaymentMethod, paymentID string) *adapter.PaymentVerificationResult {
	c, err := g.Client(method)
	if err != nil {
		return &adapter.PaymentVerificationResult{Err: err.Error()}
	}
	return c.QueryPayment(ctx, paymentID)
}
