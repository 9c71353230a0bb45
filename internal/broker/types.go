package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Message is a record read from a topic. Value holds the JSON document as published.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Timestamp time.Time
}

type Producer interface {
	// Publish JSON-encodes value and writes it to topic under key.
	Publish(ctx context.Context, topic, key string, value interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error

// DeadLetter is the record written to the dead-letter topic. Target names the service a
// failed delivery was meant for.
type DeadLetter struct {
	SourceTopic string          `json:"source_topic"`
	Key         string          `json:"key"`
	Target      string          `json:"target,omitempty"`
	Reason      string          `json:"reason"`
	Value       json.RawMessage `json:"value"`
	Timestamp   time.Time       `json:"timestamp"`
}
