package delivery

import (
	"context"

	"switchyard/internal/broker"
	"switchyard/internal/routing"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/models"
)

// TopicHandler is a router destination that forwards routed events to a topic.
type TopicHandler struct {
	producer broker.Producer
	topic    string
}

func NewTopicHandler(producer broker.Producer, topic string) *TopicHandler {
	return &TopicHandler{producer: producer, topic: topic}
}

func (h *TopicHandler) Topic() string {
	return h.topic
}

func (h *TopicHandler) Handle(ctx context.Context, ev models.Event) error {
	if err := h.producer.Publish(ctx, h.topic, ev.ID, ev); err != nil {
		return apperrors.ErrDelivery.WithMessagef("publishing event %s to %s", ev.ID, h.topic).WithCause(err)
	}
	return nil
}

// TopicHandlers builds router destinations from the destinations section of a definitions
// file: every destination name maps to a topic.
func TopicHandlers(producer broker.Producer) routing.HandlerFactory {
	return func(_ string, target string) (routing.Handler, error) {
		if target == "" {
			return nil, apperrors.ErrConfiguration.WithMessage("destination topic is required")
		}
		return NewTopicHandler(producer, target), nil
	}
}
