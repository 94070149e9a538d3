package redis

import (
	"context"
	"time"
)

// QRCache keeps the scannable QR payload hot for the polling UI, with the
// provider's validity window as TTL so a lapsed code simply disappears.
type QRCache struct {
	cli RedisClient
}

func NewQRCache(cli RedisClient) *QRCache {
	return &QRCache{cli: cli}
}

func (c *QRCache) Put(ctx context.Context, paymentID, payload string, ttl time.Duration) error {
	return c.cli.Set(ctx, "payment:qr:"+paymentID, payload, ttl)
}

func (c *QRCache) Get(ctx context.Context, paymentID string) (string, error) {
	return c.cli.Get(ctx, "payment:qr:"+paymentID)
}
