package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	NATS           NATSConfig           `mapstructure:"nats"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Routing        RoutingConfig        `mapstructure:"routing"`
	Replay         ReplayConfig         `mapstructure:"replay"`
	Recovery       RecoveryConfig       `mapstructure:"recovery"`
	Delivery       DeliveryConfig       `mapstructure:"delivery"`
	API            APIConfig            `mapstructure:"api"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers             []string    `mapstructure:"brokers"`
	GroupID             string      `mapstructure:"group_id"`
	InputTopic          string      `mapstructure:"input_topic"`
	DeliveryTopicPrefix string      `mapstructure:"delivery_topic_prefix"`
	DirectoryTopic      string      `mapstructure:"directory_topic"`
	CommandTopic        string      `mapstructure:"command_topic"`
	DLQTopic            string      `mapstructure:"dlq_topic"`
	Retry               RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RoutingConfig struct {
	DefinitionsFile    string `mapstructure:"definitions_file"`
	WatchDefinitions   bool   `mapstructure:"watch_definitions"`
	ReloadDebounceMs   int    `mapstructure:"reload_debounce_ms"`
	CacheSize          int    `mapstructure:"cache_size"`
	RecordToEventLog   bool   `mapstructure:"record_to_event_log"`
	ExpressionCostMax  uint64 `mapstructure:"expression_cost_max"`
	NotifyRoutedEvents bool   `mapstructure:"notify_routed_events"`
}

type ReplayConfig struct {
	CheckpointTTLSeconds int `mapstructure:"checkpoint_ttl_seconds"`
	SessionTTLSeconds    int `mapstructure:"session_ttl_seconds"`
	MaxConcurrencyLimit  int `mapstructure:"max_concurrency_limit"`
	ProgressEveryBatches int `mapstructure:"progress_every_batches"`
}

type RecoveryConfig struct {
	AutoExecute             bool `mapstructure:"auto_execute"`
	DefaultStepTimeoutSecs  int  `mapstructure:"default_step_timeout_seconds"`
	DefaultStepMaxAttempts  int  `mapstructure:"default_step_max_attempts"`
	ExecutionHistoryLimit   int  `mapstructure:"execution_history_limit"`
	EnableScheduledTriggers bool `mapstructure:"enable_scheduled_triggers"`
}

type DeliveryConfig struct {
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

type IdempotencyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TTLSeconds   int    `mapstructure:"ttl_seconds"`
	OnRedisError string `mapstructure:"on_redis_error"`
}

type APIConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
