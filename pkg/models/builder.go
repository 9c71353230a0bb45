package models

import (
	"time"

	"github.com/google/uuid"
)

type EventBuilder struct {
	event *Event
}

func NewEventBuilder(eventType string) *EventBuilder {
	return &EventBuilder{
		event: &Event{
			Type:     eventType,
			Payload:  make(map[string]interface{}),
			Metadata: make(map[string]interface{}),
		},
	}
}

func (b *EventBuilder) WithID(id string) *EventBuilder {
	b.event.ID = id
	return b
}

func (b *EventBuilder) WithSource(source string) *EventBuilder {
	b.event.Source = source
	return b
}

func (b *EventBuilder) WithStream(streamID string, version int64) *EventBuilder {
	b.event.StreamID = streamID
	b.event.Version = version
	return b
}

func (b *EventBuilder) WithTimestamp(timestamp time.Time) *EventBuilder {
	b.event.Timestamp = timestamp
	return b
}

func (b *EventBuilder) WithPayload(payload map[string]interface{}) *EventBuilder {
	b.event.Payload = payload
	return b
}

func (b *EventBuilder) WithPayloadField(key string, value interface{}) *EventBuilder {
	b.event.Payload[key] = value
	return b
}

func (b *EventBuilder) WithMetadata(metadata map[string]interface{}) *EventBuilder {
	b.event.Metadata = metadata
	return b
}

func (b *EventBuilder) WithMetadataField(key string, value interface{}) *EventBuilder {
	if b.event.Metadata == nil {
		b.event.Metadata = make(map[string]interface{})
	}
	b.event.Metadata[key] = value
	return b
}

func (b *EventBuilder) Build() Event {
	if b.event.ID == "" {
		b.event.ID = uuid.NewString()
	}
	if b.event.Timestamp.IsZero() {
		b.event.Timestamp = time.Now().UTC()
	}
	return *b.event
}
