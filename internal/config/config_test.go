package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
broker:
  kafka:
    brokers: ["localhost:9092"]
    group_id: switchyard
database:
  mongodb:
    uri: mongodb://localhost:27017
    database: switchyard
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "live_events", cfg.Broker.Kafka.InputTopic)
	assert.Equal(t, "recovery_commands", cfg.Broker.Kafka.CommandTopic)
	assert.Equal(t, 64, cfg.Replay.MaxConcurrencyLimit)
	assert.Equal(t, 300, cfg.Recovery.DefaultStepTimeoutSecs)
	assert.Equal(t, 3, cfg.Recovery.DefaultStepMaxAttempts)
	assert.Equal(t, "switchyard.notifications", cfg.NATS.SubjectPrefix)
	assert.False(t, cfg.Recovery.AutoExecute)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BROKER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateStatic(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, minimal))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "no brokers", mutate: func(c *Config) { c.Broker.Kafka.Brokers = nil }, field: "broker.kafka.brokers"},
		{name: "bad mongo uri", mutate: func(c *Config) { c.Database.MongoDB.URI = "localhost" }, field: "database.mongodb.uri"},
		{name: "nats url", mutate: func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "http://x" }, field: "nats.url"},
		{name: "watch without file", mutate: func(c *Config) { c.Routing.WatchDefinitions = true }, field: "routing.definitions_file"},
		{name: "replay concurrency", mutate: func(c *Config) { c.Replay.MaxConcurrencyLimit = 0 }, field: "replay.max_concurrency_limit"},
		{name: "step attempts", mutate: func(c *Config) { c.Recovery.DefaultStepMaxAttempts = 0 }, field: "recovery.default_step_max_attempts"},
		{
			name: "idempotency fallback",
			mutate: func(c *Config) {
				c.Delivery.Idempotency.Enabled = true
				c.Delivery.Idempotency.OnRedisError = "maybe"
			},
			field: "delivery.idempotency.on_redis_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
