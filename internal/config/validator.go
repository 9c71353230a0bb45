package config

import (
	"errors"
	"fmt"
	"strings"

	"switchyard/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks everything that can be checked without touching the network.
func ValidateStatic(cfg *Config) error {
	var errs []error

	for _, check := range []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateKafka(c.Broker.Kafka) },
		func(c *Config) error { return validateDatabase(c.Database) },
		func(c *Config) error { return validateNATS(c.NATS) },
		func(c *Config) error { return validateRouting(c.Routing) },
		func(c *Config) error { return validateReplay(c.Replay) },
		func(c *Config) error { return validateRecovery(c.Recovery) },
		func(c *Config) error { return validateDelivery(c.Delivery) },
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{Field: "server.read_timeout_seconds", Message: "read timeout must be positive"}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{Field: "server.write_timeout_seconds", Message: "write timeout must be positive"}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{Field: "broker.kafka.retry.max_attempts", Message: "max_attempts must be non-negative"}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{Field: "broker.kafka.retry.multiplier", Message: "multiplier must be positive"}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{Field: "database.postgres.host", Message: "PostgreSQL host is required"}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{Field: "database.postgres.user", Message: "PostgreSQL user is required"}
	}

	if cfg.DBName == "" {
		return &ValidationError{Field: "database.postgres.dbname", Message: "PostgreSQL database name is required"}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{Field: "database.redis.host", Message: "Redis host is required"}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.TTLSeconds < 0 {
		return &ValidationError{Field: "database.redis.ttl_seconds", Message: "TTL must be non-negative"}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{Field: "database.mongodb.database", Message: "MongoDB database name is required"}
	}

	return nil
}

func validateNATS(cfg NATSConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if !strings.HasPrefix(cfg.URL, "nats://") && !strings.HasPrefix(cfg.URL, "tls://") {
		return &ValidationError{Field: "nats.url", Message: "NATS URL must start with nats:// or tls://"}
	}
	if cfg.SubjectPrefix == "" {
		return &ValidationError{Field: "nats.subject_prefix", Message: "subject prefix is required"}
	}
	return nil
}

func validateRouting(cfg RoutingConfig) error {
	if cfg.CacheSize < 0 || cfg.CacheSize > constants.RoutingCacheSize {
		return &ValidationError{
			Field:   "routing.cache_size",
			Message: fmt.Sprintf("cache size must be between 0 and %d, got %d", constants.RoutingCacheSize, cfg.CacheSize),
		}
	}
	if cfg.WatchDefinitions && cfg.DefinitionsFile == "" {
		return &ValidationError{Field: "routing.definitions_file", Message: "watching requires a definitions file"}
	}
	if cfg.ReloadDebounceMs < 0 {
		return &ValidationError{Field: "routing.reload_debounce_ms", Message: "debounce must be non-negative"}
	}
	return nil
}

func validateReplay(cfg ReplayConfig) error {
	if cfg.MaxConcurrencyLimit < 1 {
		return &ValidationError{Field: "replay.max_concurrency_limit", Message: "must be at least 1"}
	}
	if cfg.CheckpointTTLSeconds < 0 || cfg.SessionTTLSeconds < 0 {
		return &ValidationError{Field: "replay", Message: "TTLs must be non-negative"}
	}
	return nil
}

func validateRecovery(cfg RecoveryConfig) error {
	if cfg.DefaultStepTimeoutSecs <= 0 {
		return &ValidationError{Field: "recovery.default_step_timeout_seconds", Message: "must be positive"}
	}
	if cfg.DefaultStepMaxAttempts < 1 {
		return &ValidationError{Field: "recovery.default_step_max_attempts", Message: "must be at least 1"}
	}
	return nil
}

func validateDelivery(cfg DeliveryConfig) error {
	if !cfg.Idempotency.Enabled {
		return nil
	}
	switch strings.ToLower(cfg.Idempotency.OnRedisError) {
	case constants.FallbackAllow, constants.FallbackDeny:
	default:
		return &ValidationError{
			Field:   "delivery.idempotency.on_redis_error",
			Message: fmt.Sprintf("invalid value %q (valid: allow, deny)", cfg.Idempotency.OnRedisError),
		}
	}
	if cfg.Idempotency.TTLSeconds <= 0 {
		return &ValidationError{Field: "delivery.idempotency.ttl_seconds", Message: "TTL must be positive"}
	}
	return nil
}
