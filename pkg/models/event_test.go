package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	return NewEventBuilder("order.created").
		WithID("e1").
		WithSource("shop").
		WithPayload(map[string]interface{}{
			"token":    "secret",
			"customer": map[string]interface{}{"id": "c1", "tier": "gold"},
			"items":    []interface{}{map[string]interface{}{"sku": "a"}},
		}).
		WithMetadataField("region", "eu").
		WithTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).
		Build()
}

func TestEvent_CloneIsDeep(t *testing.T) {
	orig := testEvent()
	clone := orig.Clone()

	require.True(t, clone.Remove("payload.customer.tier"))
	require.NoError(t, clone.Set("metadata.route.hops", 2))
	clone.Payload["items"].([]interface{})[0].(map[string]interface{})["sku"] = "b"

	tier, ok := orig.Lookup("payload.customer.tier")
	assert.True(t, ok)
	assert.Equal(t, "gold", tier)
	_, ok = orig.Lookup("metadata.route")
	assert.False(t, ok)
	assert.Equal(t, "a", orig.Payload["items"].([]interface{})[0].(map[string]interface{})["sku"])
}

func TestEvent_Lookup(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		path  string
		want  interface{}
		found bool
	}{
		{"type", "order.created", true},
		{"payload.customer.id", "c1", true},
		{"payload.customer.missing", nil, false},
		{"payload.token.deeper", nil, false},
		{"metadata.region", "eu", true},
		{"unknown.path", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := ev.Lookup(tt.path)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEvent_SetRejectsTopLevel(t *testing.T) {
	ev := testEvent()
	assert.Error(t, ev.Set("type", "x"))
	assert.Error(t, ev.Set("payload", "x"))
	assert.False(t, ev.Remove("payload.absent"))
}

func TestValidateEvent(t *testing.T) {
	ev := testEvent()
	assert.NoError(t, ValidateEvent(&ev))

	ev.Type = ""
	err := ValidateEvent(&ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type")
	assert.Error(t, ValidateEvent(nil))
}

func TestService_Subscribes(t *testing.T) {
	svc := Service{ID: "billing", Subscriptions: []string{"order.*", "invoice.paid"}}

	assert.True(t, svc.Subscribes("order.created"))
	assert.True(t, svc.Subscribes("invoice.paid"))
	assert.False(t, svc.Subscribes("invoice.created"))
	assert.False(t, svc.Subscribes("orders"))
	assert.True(t, Service{Subscriptions: []string{"*"}}.Subscribes("anything"))
}
