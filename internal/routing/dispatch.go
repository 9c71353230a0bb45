package routing

import (
	"context"
	"errors"
	"time"

	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
	"switchyard/pkg/retry"
)

// DeadLetterRoute is the handler name that receives events whose dispatch failed under a
// rule carrying the dlq action.
const DeadLetterRoute = "dead_letter"

// Handler is a named delivery target registered with the router.
type Handler interface {
	Handle(ctx context.Context, ev models.Event) error
}

type HandlerFunc func(ctx context.Context, ev models.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev models.Event) error {
	return f(ctx, ev)
}

// Dispatch hands the routed event to the handler of every route in result. The derived event
// is used when routing produced one. When any route fails and the decision asked for dead
// lettering, the event goes to DeadLetterRoute and the failure is considered handled.
func (r *Router) Dispatch(ctx context.Context, ev models.Event, result RoutingResult) error {
	if len(result.Routes) == 0 {
		return nil
	}
	if result.Event != nil {
		ev = *result.Event
	}
	if delay := result.Metadata.DelayMs; delay > 0 {
		if err := retry.Sleep(ctx, time.Duration(delay)*time.Millisecond); err != nil {
			return err
		}
	}

	snap := r.store.load()
	var errs []error
	for _, route := range result.Routes {
		h, ok := snap.handlers[route]
		if !ok {
			metrics.DispatchTotal.WithLabelValues(route, "unhandled").Inc()
			errs = append(errs, apperrors.ErrNotFound.WithMessagef("no handler registered for route %s", route))
			continue
		}
		if err := h.Handle(ctx, ev); err != nil {
			metrics.DispatchTotal.WithLabelValues(route, "error").Inc()
			errs = append(errs, err)
			continue
		}
		metrics.DispatchTotal.WithLabelValues(route, "success").Inc()
	}
	if len(errs) == 0 {
		return nil
	}

	failure := errors.Join(errs...)
	if result.Metadata.DeadLetter {
		if dl, ok := snap.handlers[DeadLetterRoute]; ok {
			err := dl.Handle(ctx, ev)
			if err == nil {
				metrics.DispatchTotal.WithLabelValues(DeadLetterRoute, "success").Inc()
				r.logger.WarnwCtx(ctx, "Dispatch failed, event dead-lettered",
					"event_id", ev.ID,
					"error", failure,
				)
				return nil
			}
			metrics.DispatchTotal.WithLabelValues(DeadLetterRoute, "error").Inc()
			failure = errors.Join(failure, err)
		}
	}
	return apperrors.ErrDelivery.WithMessagef("dispatching event %s", ev.ID).WithCause(failure)
}
