package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"switchyard/internal/broker"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

// DeadLetter publishes events that could not be delivered to the dead-letter topic.
type DeadLetter struct {
	producer broker.Producer
	topic    string
	source   string
}

// NewDeadLetter returns a sink whose records carry source as their source topic.
func NewDeadLetter(producer broker.Producer, topic, source string) *DeadLetter {
	return &DeadLetter{producer: producer, topic: topic, source: source}
}

func (d *DeadLetter) DeadLetter(ctx context.Context, ev models.Event, serviceID string, cause error) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode dead-lettered event: %w", err)
	}

	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}

	record := broker.DeadLetter{
		SourceTopic: d.source,
		Key:         ev.ID,
		Target:      serviceID,
		Reason:      reason,
		Value:       value,
		Timestamp:   time.Now().UTC(),
	}
	if err := d.producer.Publish(ctx, d.topic, ev.ID, record); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}
	metrics.DLQMessagesTotal.WithLabelValues(d.source, d.topic, "delivery_failed").Inc()
	return nil
}
