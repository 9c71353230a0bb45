package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultInputTopic                = "live_events"
	DefaultDeliveryTopicPrefix       = "deliver."
	DefaultDirectoryTopic            = "service_directory"
	DefaultCommandTopic              = "recovery_commands"
	DefaultDLQTopic                  = "dead_letter_events"
	DefaultNotificationSubjectPrefix = "switchyard.notifications"
)

const (
	CacheKeyPrefixDelivered  = "delivered:"
	CacheKeyPrefixCheckpoint = "replay:checkpoints:"
	CacheKeyPrefixSession    = "replay:session:"
)

const (
	DefaultMongoDBName           = "switchyard"
	CollectionReplayConfigs      = "replay_configs"
	CollectionRecoveryPlans      = "recovery_plans"
	CollectionRecoveryExecutions = "recovery_executions"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultTTLSeconds = 3600
)

// Routing.
const (
	RoutingCacheSize           = 1000
	DefaultExpressionCostLimit = 10000
)

// Replay.
const (
	CheckpointRingSize        = 10
	CheckpointEveryBatches    = 10
	MaxOriginalTimingDelay    = time.Second
	DefaultReplayBatchSize    = 100
	DefaultReplayConcurrency  = 10
	DefaultReplayMaxRetries   = 3
	DefaultReplayRetryDelay   = time.Second
	DefaultBackoffMultiplier  = 2.0
	MaxReplayRetryDelay       = 24 * time.Hour
	DefaultRecoveryMaxAttempt = 3
)

// Recovery.
const (
	DefaultRecoveryStepTimeout     = 5 * time.Minute
	DefaultRecoveryRetryDelay      = time.Second
	MaxRecoveryRetryDelay          = 30 * time.Second
	DefaultExecutionHistoryLimit   = 100
	RecoveryTriggerSourceManual    = "manual"
	RecoveryTriggerSourceDirectory = "directory"
	RecoveryTriggerSourceSchedule  = "schedule"
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)
