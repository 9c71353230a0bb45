package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Kind is the closed set of notifications the core emits.
type Kind int

const (
	KindRoutingTableAdded Kind = iota + 1
	KindRoutingTableRemoved
	KindFilterAdded
	KindFilterRemoved
	KindHandlerRegistered
	KindHandlerUnregistered
	KindEventRouted
	KindEventFiltered
	KindTransformationError
	KindRoutingFailed
	KindReplayStarted
	KindReplayPaused
	KindReplayResumed
	KindReplayStopped
	KindReplayProgress
	KindReplayCompleted
	KindReplayFailed
	KindCheckpointCreated
	KindRecoveryPlanStarted
	KindRecoveryPlanCompleted
	KindRecoveryPlanFailed
	KindAutoRecoveryTriggered
	KindServiceRegistered
	KindServiceUnregistered

	kindSentinel
)

var kindNames = map[Kind]string{
	KindRoutingTableAdded:     "routing_table_added",
	KindRoutingTableRemoved:   "routing_table_removed",
	KindFilterAdded:           "filter_added",
	KindFilterRemoved:         "filter_removed",
	KindHandlerRegistered:     "handler_registered",
	KindHandlerUnregistered:   "handler_unregistered",
	KindEventRouted:           "event_routed",
	KindEventFiltered:         "event_filtered",
	KindTransformationError:   "transformation_error",
	KindRoutingFailed:         "routing_failed",
	KindReplayStarted:         "replay_started",
	KindReplayPaused:          "replay_paused",
	KindReplayResumed:         "replay_resumed",
	KindReplayStopped:         "replay_stopped",
	KindReplayProgress:        "replay_progress",
	KindReplayCompleted:       "replay_completed",
	KindReplayFailed:          "replay_failed",
	KindCheckpointCreated:     "checkpoint_created",
	KindRecoveryPlanStarted:   "recovery_plan_started",
	KindRecoveryPlanCompleted: "recovery_plan_completed",
	KindRecoveryPlanFailed:    "recovery_plan_failed",
	KindAutoRecoveryTriggered: "auto_recovery_triggered",
	KindServiceRegistered:     "service_registered",
	KindServiceUnregistered:   "service_unregistered",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Valid() bool {
	return k > 0 && k < kindSentinel
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid notification kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown notification kind %q", string(text))
}

// Notification describes something the core did. Subject is the id of the table, filter,
// handler, event, session, plan or service the notification is about. Detail carries the
// kind-specific payload (routing result, progress, error text).
type Notification struct {
	Kind      Kind        `json:"kind"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Detail    interface{} `json:"detail,omitempty"`
}

func (n Notification) JSON() ([]byte, error) {
	return json.Marshal(n)
}

// ErrorDetail is the Detail of failure notifications.
type ErrorDetail struct {
	Error   string `json:"error"`
	EventID string `json:"event_id,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

type Publisher interface {
	Publish(n Notification)
}

type Handler func(Notification)

type subscription struct {
	id      int
	handler Handler
	kinds   map[Kind]bool
}

// Bus fans notifications out to subscribers synchronously, in subscription order.
// Subscribers must not block.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers h for the given kinds, or for every kind when none are given.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: h}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = b.now().UTC()
	}

	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if s.kinds != nil && !s.kinds[n.Kind] {
			continue
		}
		deliver(s.handler, n)
	}
}

func deliver(h Handler, n Notification) {
	defer func() {
		_ = recover()
	}()
	h(n)
}

type discard struct{}

func (discard) Publish(Notification) {}

// Discard drops every notification.
var Discard Publisher = discard{}
