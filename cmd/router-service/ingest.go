package main

import (
	"context"
	"encoding/json"
	"fmt"

	"switchyard/internal/broker"
	"switchyard/internal/eventlog"
	"switchyard/internal/logger"
	"switchyard/internal/routing"
	"switchyard/pkg/logging"
	"switchyard/pkg/models"
	"switchyard/pkg/retry"
)

// ingest records, routes and dispatches one message of the input topic. With a nil
// event log nothing is recorded.
type ingest struct {
	events eventlog.Writer
	router *routing.Router
	logger logger.Logger
}

func (in *ingest) handleMessage(ctx context.Context, msg broker.Message) error {
	var ev models.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		in.logger.WarnwCtx(ctx, "Failed to decode event", "error", err, "key", msg.Key)
		return retry.NewFatalError(fmt.Errorf("failed to decode event: %w", err))
	}
	if err := models.ValidateEvent(&ev); err != nil {
		in.logger.WarnwCtx(ctx, "Rejecting invalid event", "error", err, "key", msg.Key)
		return retry.NewFatalError(err)
	}
	ctx = logging.WithEventID(ctx, ev.ID)

	// Append is idempotent on the event id, so a redelivered message keeps its version.
	if in.events != nil {
		recorded, err := in.events.Append(ctx, ev)
		if err != nil {
			return fmt.Errorf("failed to record event: %w", err)
		}
		ev = recorded
	}

	result, err := in.router.RouteEvent(ctx, ev, "")
	if err != nil {
		return retry.NewFatalError(err)
	}
	if len(result.Routes) == 0 {
		in.logger.DebugwCtx(ctx, "Event not routed", "event_type", ev.Type, "excluded_by", result.Metadata.ExcludedBy)
		return nil
	}

	if err := in.router.Dispatch(ctx, ev, result); err != nil {
		return err
	}
	in.logger.DebugwCtx(ctx, "Event routed", "routes", result.Routes, "default_route", result.Metadata.DefaultRoute)
	return nil
}
