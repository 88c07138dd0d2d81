package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrClaimHeld = errors.New("delivery claim already held")
)

// Claimer guards a single webhook delivery while it is being processed.
// The claim is a fast-path only: it stops two concurrent deliveries of the
// same deliveryId from both reaching the durable ledger insert, but the
// ledger's uniqueness constraint remains the source of truth. A lost claim
// (redis down, TTL expiry) is therefore safe.
type Claimer interface {
	WithDeliveryClaim(ctx context.Context, deliveryID string, fn func(ctx context.Context) error) error
}

type redisDeliveryClaimer struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeliveryClaimer creates a claimer that uses a per delivery Redis key
func NewRedisDeliveryClaimer(client *redis.Client, ttl time.Duration) Claimer {
	return &redisDeliveryClaimer{
		client: client,
		ttl:    ttl,
	}
}

func (c *redisDeliveryClaimer) WithDeliveryClaim(ctx context.Context, deliveryID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("claim:delivery:%s", deliveryID)
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, c.ttl).Result()
	if err != nil {
		// Redis being unavailable must not block webhook processing.
		return fn(ctx)
	}
	if !ok {
		return ErrClaimHeld
	}

	defer func() {
		_ = c.release(ctx, key, token)
	}()

	return fn(ctx)
}

var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (c *redisDeliveryClaimer) release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, c.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release delivery claim: %w", err)
	}
	return nil
}
