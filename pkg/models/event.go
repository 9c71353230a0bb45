package models

import (
	"fmt"
	"strings"
	"time"
)

// Event is an immutable record of something that happened. Routing and replay never modify an
// Event they receive; they work on the result of Clone.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	StreamID  string                 `json:"stream_id,omitempty"`
	Version   int64                  `json:"version,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateEvent(ev *Event) error {
	if ev == nil {
		return &ValidationError{Field: "event", Message: "event cannot be nil"}
	}
	if ev.ID == "" {
		return &ValidationError{Field: "id", Message: "event ID is required"}
	}
	if ev.Type == "" {
		return &ValidationError{Field: "type", Message: "event type is required"}
	}
	if ev.Source == "" {
		return &ValidationError{Field: "source", Message: "event source is required"}
	}
	if ev.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "event timestamp is required"}
	}
	return nil
}

// Clone returns a deep copy. Nested maps and slices are copied; scalar values are shared.
func (e Event) Clone() Event {
	out := e
	out.Payload = copyMap(e.Payload)
	out.Metadata = copyMap(e.Metadata)
	return out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Lookup resolves a dot path rooted at "payload" or "metadata" (e.g. payload.customer.id).
// Top-level attributes id, type, source and stream_id are also addressable.
func (e Event) Lookup(path string) (interface{}, bool) {
	root, rest, _ := strings.Cut(path, ".")
	switch root {
	case "payload":
		return lookupMap(e.Payload, rest)
	case "metadata":
		return lookupMap(e.Metadata, rest)
	case "id":
		return e.ID, rest == ""
	case "type":
		return e.Type, rest == ""
	case "source":
		return e.Source, rest == ""
	case "stream_id":
		return e.StreamID, rest == ""
	}
	return nil, false
}

func lookupMap(m map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return m, m != nil
	}
	var cur interface{} = m
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = node[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set assigns a value at a payload or metadata dot path, creating intermediate maps.
// It mutates e, so callers must own e (see Clone).
func (e *Event) Set(path string, value interface{}) error {
	root, rest, ok := strings.Cut(path, ".")
	if !ok || rest == "" {
		return fmt.Errorf("path %q must address a field under payload or metadata", path)
	}
	var target *map[string]interface{}
	switch root {
	case "payload":
		target = &e.Payload
	case "metadata":
		target = &e.Metadata
	default:
		return fmt.Errorf("path %q must start with payload or metadata", path)
	}
	if *target == nil {
		*target = make(map[string]interface{})
	}

	parts := strings.Split(rest, ".")
	node := *target
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
	return nil
}

// Remove deletes the field at a payload or metadata dot path and reports whether it existed.
// It mutates e, so callers must own e (see Clone).
func (e *Event) Remove(path string) bool {
	root, rest, ok := strings.Cut(path, ".")
	if !ok || rest == "" {
		return false
	}
	var node map[string]interface{}
	switch root {
	case "payload":
		node = e.Payload
	case "metadata":
		node = e.Metadata
	default:
		return false
	}

	parts := strings.Split(rest, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]interface{})
		if !ok {
			return false
		}
		node = next
	}
	last := parts[len(parts)-1]
	if _, exists := node[last]; !exists {
		return false
	}
	delete(node, last)
	return true
}

// MergeMetadata copies every entry of extra into the event metadata, overwriting existing keys.
func (e *Event) MergeMetadata(extra map[string]interface{}) {
	if len(extra) == 0 {
		return
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{}, len(extra))
	}
	for k, v := range extra {
		e.Metadata[k] = copyValue(v)
	}
}

// ToMap renders the event as the activation used by expression evaluation.
func (e Event) ToMap() map[string]interface{} {
	payload := e.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return map[string]interface{}{
		"id":        e.ID,
		"type":      e.Type,
		"source":    e.Source,
		"stream_id": e.StreamID,
		"version":   e.Version,
		"payload":   payload,
		"metadata":  metadata,
		"timestamp": e.Timestamp,
	}
}
