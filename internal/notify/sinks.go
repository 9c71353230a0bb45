package notify

import (
	"github.com/nats-io/nats.go"

	"switchyard/internal/logger"
	"switchyard/pkg/metrics"
)

// NATSSink publishes every notification as JSON on <prefix>.<kind>.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger logger.Logger
}

func NewNATSSink(conn *nats.Conn, prefix string, log logger.Logger) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix, logger: log}
}

func (s *NATSSink) Subject(k Kind) string {
	return s.prefix + "." + k.String()
}

func (s *NATSSink) Handle(n Notification) {
	data, err := n.JSON()
	if err != nil {
		s.logger.Warnw("Failed to encode notification", "kind", n.Kind.String(), "error", err)
		metrics.NotificationsPublished.WithLabelValues("nats", "encode_error").Inc()
		return
	}

	if err := s.conn.Publish(s.Subject(n.Kind), data); err != nil {
		s.logger.Warnw("Failed to publish notification", "kind", n.Kind.String(), "subject", n.Subject, "error", err)
		metrics.NotificationsPublished.WithLabelValues("nats", "error").Inc()
		return
	}
	metrics.NotificationsPublished.WithLabelValues("nats", "ok").Inc()
}

// LogSink writes notifications to the debug log.
func LogSink(log logger.Logger) Handler {
	return func(n Notification) {
		log.Debugw("Notification", "kind", n.Kind.String(), "subject", n.Subject, "detail", n.Detail)
	}
}
