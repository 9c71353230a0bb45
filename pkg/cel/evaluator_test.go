package cel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchyard/pkg/models"
)

func sampleEvent() models.Event {
	return models.NewEventBuilder("order.created").
		WithID("e-1").
		WithSource("checkout").
		WithPayload(map[string]interface{}{
			"status":     "active",
			"amount":     150.5,
			"region":     "eu",
			"name":       "widget",
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"customer":   map[string]interface{}{"tier": "gold"},
			"email":      "ada@example.com",
			"vip":        true,
		}).
		WithMetadataField("tenant", "acme").
		WithTimestamp(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)).
		Build()
}

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateBoolExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "comparison", expr: `payload.status == "active"`},
		{name: "dyn field", expr: `payload.vip`},
		{name: "type prefix", expr: `type.startsWith("order.")`},
		{name: "integer result", expr: `1 + 2`, wantError: true},
		{name: "string result", expr: `source + "x"`, wantError: true},
		{name: "syntax error", expr: `invalid syntax here!!!`, wantError: true},
		{name: "undefined variable", expr: `undefinedVar == "test"`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateBoolExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	ev := sampleEvent()

	for name, expr := range RuleExpressionExamples {
		t.Run(name, func(t *testing.T) {
			got, err := eval.EvaluateBool(context.Background(), expr, ev)
			require.NoError(t, err)
			assert.True(t, got, expr)
		})
	}

	tests := []struct {
		name      string
		expr      string
		want      bool
		wantError bool
	}{
		{name: "false comparison", expr: `payload.amount < 10`, want: false},
		{name: "int vs double", expr: `payload.amount > 150`, want: true},
		{name: "missing key errors", expr: `payload.absent == 1`, wantError: true},
		{name: "non-bool dyn", expr: `payload.status`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateBool(context.Background(), tt.expr, ev)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_TransformExamples(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	ev := sampleEvent()

	want := map[string]interface{}{
		"uppercase":   "WIDGET",
		"concatenate": "Ada Lovelace",
		"conditional": "normal",
		"default":     "EUR",
		"source_tag":  "checkout:order.created",
	}

	for name, expr := range TransformExpressionExamples {
		t.Run(name, func(t *testing.T) {
			got, err := eval.Evaluate(context.Background(), expr, ev)
			require.NoError(t, err)
			assert.Equal(t, want[name], got)
		})
	}
}

func TestEvaluate_CostLimit(t *testing.T) {
	eval, err := NewEvaluator(WithCostLimit(5))
	require.NoError(t, err)

	_, err = eval.EvaluateBool(context.Background(),
		`[1,2,3,4,5,6,7,8,9,10].all(x, [1,2,3,4,5,6,7,8,9,10].exists(y, x + y > 0))`, sampleEvent())
	assert.Error(t, err)
}

func TestNewMapEvaluator(t *testing.T) {
	eval, err := NewMapEvaluator([]string{"change", "services"})
	require.NoError(t, err)

	vars := map[string]interface{}{
		"change":   map[string]interface{}{"action": "unregister", "service_id": "billing"},
		"services": map[string]interface{}{"billing": "unhealthy"},
	}

	ok, err := eval.EvaluateBoolVars(context.Background(), `change.action == "unregister" && services.billing != "healthy"`, vars)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, eval.ValidateBoolExpression(`payload.x == 1`))
}
