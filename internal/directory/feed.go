package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"switchyard/internal/broker"
	"switchyard/internal/logger"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/models"
	"switchyard/pkg/retry"
)

// Feed keeps a Registry in sync with the DirectoryChange records published on the
// directory topic.
type Feed struct {
	consumer broker.Consumer
	topic    string
	registry *Registry
	logger   logger.Logger
}

func NewFeed(consumer broker.Consumer, topic string, registry *Registry, log logger.Logger) *Feed {
	return &Feed{
		consumer: consumer,
		topic:    topic,
		registry: registry,
		logger:   log,
	}
}

// Run consumes until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	return f.consumer.Consume(ctx, f.topic, f.HandleMessage)
}

func (f *Feed) HandleMessage(ctx context.Context, msg broker.Message) error {
	var change models.DirectoryChange
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		f.logger.WarnwCtx(ctx, "Failed to decode directory change", "error", err, "key", msg.Key)
		return retry.NewFatalError(fmt.Errorf("failed to decode directory change: %w", err))
	}

	if change.Service.ID == "" && msg.Key != "" {
		change.Service.ID = msg.Key
	}

	if err := f.registry.Apply(ctx, change); err != nil {
		// replays of an unregister are harmless
		if apperrors.IsNotFound(err) {
			f.logger.DebugwCtx(ctx, "Ignoring unregister of unknown service", "service_id", change.Service.ID)
			return nil
		}
		f.logger.ErrorwCtx(ctx, "Failed to apply directory change",
			"error", err,
			"action", change.Action,
			"service_id", change.Service.ID,
		)
		return retry.NewFatalError(err)
	}

	f.logger.InfowCtx(ctx, "Applied directory change",
		"action", change.Action,
		"service_id", change.Service.ID,
		"status", change.Service.Status,
		"changed_by", change.ChangedBy,
	)
	return nil
}
