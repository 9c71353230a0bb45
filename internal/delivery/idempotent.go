package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"switchyard/internal/config"
	"switchyard/internal/constants"
	"switchyard/internal/logger"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

// Guard records which (service, event) pairs were already delivered.
type Guard interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Del(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis Del failed: %w", err)
	}
	return nil
}

// IdempotentChannel delivers each event at most once per service within the TTL. Replays
// of an already delivered event are acknowledged without calling next. A failed delivery
// releases its claim so a retry can go through.
type IdempotentChannel struct {
	next    Channel
	guard   Guard
	ttl     time.Duration
	onError string
	logger  logger.Logger
}

func NewIdempotentChannel(next Channel, guard Guard, cfg config.IdempotencyConfig, log logger.Logger) *IdempotentChannel {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = constants.DefaultTTLSeconds * time.Second
	}
	onError := cfg.OnRedisError
	if onError == "" {
		onError = constants.FallbackAllow
	}
	return &IdempotentChannel{
		next:    next,
		guard:   guard,
		ttl:     ttl,
		onError: onError,
		logger:  log,
	}
}

func deliveredKey(serviceID, eventID string) string {
	return constants.CacheKeyPrefixDelivered + serviceID + ":" + eventID
}

func (c *IdempotentChannel) Deliver(ctx context.Context, ev models.Event, svc models.Service) error {
	key := deliveredKey(svc.ID, ev.ID)

	claimed, err := c.guard.SetNX(ctx, key, time.Now().UTC().Unix(), c.ttl)
	if err != nil {
		metrics.FallbackUsageTotal.WithLabelValues("delivery", c.onError, "redis_error").Inc()
		if c.onError == constants.FallbackDeny {
			return apperrors.ErrServiceUnavailable.
				WithMessage("idempotency store unavailable").
				WithCause(err)
		}
		c.logger.WarnwCtx(ctx, "Idempotency check failed, delivering without guard",
			"error", err,
			"event_id", ev.ID,
			"service_id", svc.ID,
		)
		return c.next.Deliver(ctx, ev, svc)
	}

	if !claimed {
		metrics.DeliveriesTotal.WithLabelValues(svc.ID, "duplicate").Inc()
		c.logger.DebugwCtx(ctx, "Event already delivered", "event_id", ev.ID, "service_id", svc.ID)
		return nil
	}

	if err := c.next.Deliver(ctx, ev, svc); err != nil {
		// the claim must not outlive a failed delivery
		if delErr := c.guard.Del(context.WithoutCancel(ctx), key); delErr != nil {
			c.logger.WarnwCtx(ctx, "Failed to release delivery claim",
				"error", delErr,
				"key", key,
			)
		}
		return err
	}
	return nil
}
