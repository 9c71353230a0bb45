package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoutingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_events_total",
			Help: "Total number of events routed (count), by outcome: matched, default, unrouted, filtered, error",
		},
		[]string{"status"},
	)

	RoutingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routing_duration_ms",
			Help:    "Routing decision duration in milliseconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"status"},
	)

	RoutingCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_cache_lookups_total",
			Help: "Routing cache lookups (count), by result: hit, miss, stale",
		},
		[]string{"result"},
	)

	RoutingCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routing_cache_entries",
			Help: "Entries currently held by the routing decision cache (count)",
		},
	)

	RoutingTables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routing_tables",
			Help: "Registered routing tables (count)",
		},
	)

	RoutingFilters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routing_filters",
			Help: "Registered global event filters (count)",
		},
	)

	RoutingGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routing_config_generation",
			Help: "Current routing configuration generation",
		},
	)

	RoutingRuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_rule_matches_total",
			Help: "Rule matches (count)",
		},
		[]string{"table_id", "rule_id"},
	)

	RoutingEvaluationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_evaluation_errors_total",
			Help: "Expression or transform failures treated as non-match (count)",
		},
		[]string{"stage"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_dispatch_total",
			Help: "Handler invocations for routed events (count)",
		},
		[]string{"destination", "status"},
	)

	ReplaySessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replay_sessions_total",
			Help: "Replay sessions that reached a state (count)",
		},
		[]string{"status"},
	)

	ReplayActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "replay_active_sessions",
			Help: "Replay sessions currently running (count)",
		},
	)

	ReplayEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replay_events_total",
			Help: "Replayed events (count), by outcome: successful, failed, skipped",
		},
		[]string{"outcome"},
	)

	ReplayBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replay_batch_duration_ms",
			Help:    "Duration of one replay batch in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	ReplayRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_retries_total",
			Help: "Delivery retries scheduled by replay sessions (count)",
		},
	)

	ReplayCheckpointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_checkpoints_total",
			Help: "Replay checkpoints created (count)",
		},
	)

	RecoveryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_executions_total",
			Help: "Recovery plan executions (count)",
		},
		[]string{"plan_type", "status"},
	)

	RecoveryStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recovery_step_duration_ms",
			Help:    "Recovery step duration in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 300000},
		},
		[]string{"step_type", "status"},
	)

	RecoveryTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_triggers_total",
			Help: "Automatic recovery triggers fired (count)",
		},
		[]string{"source"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Event deliveries to services (count)",
		},
		[]string{"service", "status"},
	)

	DirectoryServices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "directory_services",
			Help: "Services known to the directory (count)",
		},
		[]string{"status"},
	)

	NotificationsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications forwarded to external sinks (count)",
		},
		[]string{"sink", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

// register tolerates collectors that another Register* call already added.
func register(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func RegisterRoutingMetrics() {
	register(
		RoutingEventsTotal,
		RoutingDuration,
		RoutingCacheLookupsTotal,
		RoutingCacheEntries,
		RoutingTables,
		RoutingFilters,
		RoutingGeneration,
		RoutingRuleMatchesTotal,
		RoutingEvaluationErrorsTotal,
		DispatchTotal,
	)
}

func RegisterReplayMetrics() {
	register(
		ReplaySessionsTotal,
		ReplayActiveSessions,
		ReplayEventsTotal,
		ReplayBatchDuration,
		ReplayRetriesTotal,
		ReplayCheckpointsTotal,
	)
}

func RegisterRecoveryMetrics() {
	register(RecoveryExecutionsTotal, RecoveryStepDuration, RecoveryTriggersTotal, DirectoryServices)
}

func RegisterDeliveryMetrics() {
	register(DeliveriesTotal, FallbackUsageTotal)
}

func RegisterNotificationMetrics() {
	register(NotificationsPublished)
}

func RegisterBrokerMetrics() {
	register(
		RetryAttemptsTotal,
		DLQMessagesTotal,
		KafkaMessagesReadTotal,
		KafkaMessagesWrittenTotal,
		KafkaMessageSizeBytes,
		KafkaConsumerLag,
		KafkaWriteDuration,
	)
}

func RegisterCircuitBreakerMetrics() {
	register(CircuitBreakerState, CircuitBreakerRequests, CircuitBreakerFailures)
}

func RegisterAPIMetrics() {
	register(RateLimitRequestsTotal, DatabaseQueriesTotal, DatabaseQueryDuration)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func ObserveRoutingDuration(duration time.Duration, status string) {
	RoutingDuration.WithLabelValues(status).Observe(millis(duration))
}

func ObserveReplayBatchDuration(duration time.Duration) {
	ReplayBatchDuration.Observe(millis(duration))
}

func ObserveRecoveryStepDuration(stepType, status string, duration time.Duration) {
	RecoveryStepDuration.WithLabelValues(stepType, status).Observe(millis(duration))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(millis(duration))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(millis(duration))
}
