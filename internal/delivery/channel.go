package delivery

import (
	"context"

	"switchyard/pkg/models"
)

// Channel delivers one event to one service.
type Channel interface {
	Deliver(ctx context.Context, ev models.Event, svc models.Service) error
}

type ChannelFunc func(ctx context.Context, ev models.Event, svc models.Service) error

func (f ChannelFunc) Deliver(ctx context.Context, ev models.Event, svc models.Service) error {
	return f(ctx, ev, svc)
}
