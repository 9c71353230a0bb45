package routing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchyard/internal/logger"
	"switchyard/pkg/cel"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/models"
	"switchyard/pkg/schema"
)

const testDefinitions = `
transforms:
  - name: mask-email
    set:
      payload.email_domain: "payload.email.split('@')[1]"
    remove:
      - payload.email
destinations:
  billing: deliver.billing
  audit: deliver.audit
  crm: deliver.crm
tables:
  - id: T1
    default_route: [audit]
    rules:
      - id: billing
        priority: 10
        conditions:
          event_type: order.created
        actions:
          routes: [billing]
      - id: crm
        priority: 20
        conditions:
          event_type_pattern: "^customer\\."
        actions:
          routes: [crm]
          transform: mask-email
filters:
  - id: drop-synthetic
    type: exclude
    conditions:
      expression: "has(metadata.synthetic) && metadata.synthetic == true"
`

type topicHandler struct{ topic string }

func (topicHandler) Handle(context.Context, models.Event) error { return nil }

func testFactory(_ string, target string) (Handler, error) {
	return topicHandler{topic: target}, nil
}

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(testDefinitions), schema.MustNew())
	require.NoError(t, err)

	require.Len(t, defs.Tables, 1)
	assert.Len(t, defs.Tables[0].Rules, 2)
	assert.Equal(t, []string{"audit"}, defs.Tables[0].DefaultRoute)
	require.Len(t, defs.Filters, 1)
	assert.Equal(t, FilterExclude, defs.Filters[0].Type)
	assert.Equal(t, "deliver.billing", defs.Destinations["billing"])

	empty, err := ParseDefinitions(nil, schema.MustNew())
	require.NoError(t, err)
	assert.Empty(t, empty.Tables)

	_, err = ParseDefinitions([]byte("tables:\n  - rules: []\n"), schema.MustNew())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRouter_ApplyDefinitions(t *testing.T) {
	ctx := context.Background()
	eval, err := cel.NewEvaluator()
	require.NoError(t, err)
	r := NewRouter(eval)

	defs, err := ParseDefinitions([]byte(testDefinitions), schema.MustNew())
	require.NoError(t, err)
	require.NoError(t, r.ApplyDefinitions(ctx, defs, eval, testFactory))

	m := r.GetMetrics()
	assert.Equal(t, 1, m.Tables)
	assert.Equal(t, 1, m.Filters)
	assert.Equal(t, 3, m.Handlers)
	assert.Equal(t, 1, m.Transforms)

	ev := models.NewEventBuilder("customer.updated").
		WithID("c1").
		WithPayloadField("email", "ada@example.com").
		Build()
	res, err := r.RouteEvent(ctx, ev, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"crm"}, res.Routes)
	require.NotNil(t, res.Event)
	assert.Equal(t, "example.com", res.Event.Payload["email_domain"])
	assert.NotContains(t, res.Event.Payload, "email")

	synthetic := models.NewEventBuilder("order.created").WithMetadataField("synthetic", true).Build()
	res, err = r.RouteEvent(ctx, synthetic, "")
	require.NoError(t, err)
	assert.Empty(t, res.Routes)
	assert.Equal(t, "drop-synthetic", res.Metadata.ExcludedBy)

	// a second file without the filter replaces the first one wholesale
	defs.Filters = nil
	defs.Tables[0].Rules = defs.Tables[0].Rules[:1]
	require.NoError(t, r.ApplyDefinitions(ctx, defs, eval, testFactory))
	assert.Empty(t, r.Filters())
	assert.Equal(t, 2, r.Tables()[0].Version)
}

func TestRouter_ApplyDefinitions_InvalidLeavesConfigurationUntouched(t *testing.T) {
	ctx := context.Background()
	eval, err := cel.NewEvaluator()
	require.NoError(t, err)
	r := NewRouter(eval)
	require.NoError(t, r.AddRoutingTable(ctx, createT1()))
	gen := r.Generation()

	err = r.ApplyDefinitions(ctx, &Definitions{
		Tables: []RoutingTable{{ID: "broken", Rules: []RouteRule{{ID: "r", Conditions: RuleConditions{SourcePattern: "["}, Actions: RuleActions{Routes: []string{"x"}}}}}},
	}, eval, testFactory)
	require.Error(t, err)
	assert.Equal(t, gen, r.Generation())
	require.Len(t, r.Tables(), 1)
	assert.Equal(t, "T1", r.Tables()[0].ID)
}

func TestDefinitionsWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables: []\n"), 0o600))

	reloads := make(chan struct{}, 4)
	w, err := NewDefinitionsWatcher(path, 20*time.Millisecond, func(context.Context) error {
		reloads <- struct{}{}
		return nil
	}, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(testDefinitions), 0o600))

	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("definitions change was not picked up")
	}
}
