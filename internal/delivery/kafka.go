package delivery

import (
	"context"

	"switchyard/internal/broker"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

// KafkaChannel publishes the event to the service's own topic, or to prefix+id when the
// service does not name one.
type KafkaChannel struct {
	producer broker.Producer
	prefix   string
}

func NewKafkaChannel(producer broker.Producer, topicPrefix string) *KafkaChannel {
	return &KafkaChannel{producer: producer, prefix: topicPrefix}
}

func (c *KafkaChannel) Topic(svc models.Service) string {
	if svc.Topic != "" {
		return svc.Topic
	}
	return c.prefix + svc.ID
}

func (c *KafkaChannel) Deliver(ctx context.Context, ev models.Event, svc models.Service) error {
	if err := c.producer.Publish(ctx, c.Topic(svc), ev.ID, ev); err != nil {
		metrics.DeliveriesTotal.WithLabelValues(svc.ID, "error").Inc()
		return apperrors.ErrDelivery.
			WithMessagef("delivering event %s to %s", ev.ID, svc.ID).
			WithCause(err)
	}
	metrics.DeliveriesTotal.WithLabelValues(svc.ID, "success").Inc()
	return nil
}
