package delivery

import (
	"context"
	"sync"

	"switchyard/internal/config"
	"switchyard/pkg/circuitbreaker"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

// BreakerChannel keeps one circuit breaker per target service so a failing service is
// shed without slowing deliveries to the others.
type BreakerChannel struct {
	next     Channel
	cfg      config.CircuitBreakerConfig
	mu       sync.Mutex
	breakers map[string]*circuitbreaker.Breaker
}

func NewBreakerChannel(next Channel, cfg config.CircuitBreakerConfig) *BreakerChannel {
	return &BreakerChannel{
		next:     next,
		cfg:      cfg,
		breakers: make(map[string]*circuitbreaker.Breaker),
	}
}

func (c *BreakerChannel) breaker(serviceID string) *circuitbreaker.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[serviceID]
	if !ok {
		b = circuitbreaker.New(circuitbreaker.SettingsFromConfig("delivery-"+serviceID, c.cfg))
		c.breakers[serviceID] = b
	}
	return b
}

func (c *BreakerChannel) Deliver(ctx context.Context, ev models.Event, svc models.Service) error {
	err := c.breaker(svc.ID).Do(ctx, func(ctx context.Context) error {
		return c.next.Deliver(ctx, ev, svc)
	})
	if err != nil && circuitbreaker.IsOpen(err) {
		metrics.DeliveriesTotal.WithLabelValues(svc.ID, "circuit_open").Inc()
		return apperrors.ErrDelivery.
			WithMessagef("circuit open for service %s", svc.ID).
			WithCause(apperrors.ErrServiceUnavailable.WithCause(err))
	}
	return err
}

// States reports the breaker state of every service seen so far.
func (c *BreakerChannel) States() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.breakers))
	for id, b := range c.breakers {
		out[id] = b.State().String()
	}
	return out
}
