package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_NamesAreUniqueAndComplete(t *testing.T) {
	seen := make(map[string]bool)
	for k := Kind(1); k < kindSentinel; k++ {
		name := k.String()
		require.NotContains(t, name, "kind(", "kind %d has no name", int(k))
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
	assert.False(t, Kind(0).Valid())
	assert.False(t, kindSentinel.Valid())
}

func TestKind_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Notification{Kind: KindCheckpointCreated, Subject: "s1"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"checkpoint_created"`)

	var n Notification
	require.NoError(t, json.Unmarshal(data, &n))
	assert.Equal(t, KindCheckpointCreated, n.Kind)

	_, err = json.Marshal(Notification{Kind: Kind(999)})
	assert.Error(t, err)
}

func TestBus_SubscribeFiltersByKind(t *testing.T) {
	bus := NewBus()

	var all, replay []Kind
	bus.Subscribe(func(n Notification) { all = append(all, n.Kind) })
	unsubscribe := bus.Subscribe(func(n Notification) { replay = append(replay, n.Kind) },
		KindReplayStarted, KindReplayCompleted)

	bus.Publish(Notification{Kind: KindEventRouted})
	bus.Publish(Notification{Kind: KindReplayStarted})
	unsubscribe()
	bus.Publish(Notification{Kind: KindReplayCompleted})

	assert.Equal(t, []Kind{KindEventRouted, KindReplayStarted, KindReplayCompleted}, all)
	assert.Equal(t, []Kind{KindReplayStarted}, replay)
}

func TestBus_PanickingSubscriberDoesNotStopFanOut(t *testing.T) {
	bus := NewBus()

	var got Notification
	bus.Subscribe(func(Notification) { panic("boom") })
	bus.Subscribe(func(n Notification) { got = n })

	bus.Publish(Notification{Kind: KindFilterAdded, Subject: "f1"})

	assert.Equal(t, "f1", got.Subject)
	assert.False(t, got.Timestamp.IsZero())
}
