package routing

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchyard/internal/notify"
	"switchyard/pkg/cel"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/models"
)

func newTestRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	eval, err := cel.NewEvaluator()
	require.NoError(t, err)
	return NewRouter(eval, opts...)
}

func createTestEvent(id, eventType string, payload map[string]interface{}) models.Event {
	return models.NewEventBuilder(eventType).
		WithID(id).
		WithSource("orders-api").
		WithPayload(payload).
		Build()
}

func boolPtr(b bool) *bool { return &b }

func createT1() RoutingTable {
	return RoutingTable{
		ID: "T1",
		Rules: []RouteRule{{
			ID:         "billing-rule",
			Priority:   10,
			Conditions: RuleConditions{EventType: "order.created"},
			Actions:    RuleActions{Routes: []string{"billing"}},
		}},
		DefaultRoute: []string{"audit"},
	}
}

type recorder struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (r *recorder) handle(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
}

func (r *recorder) count(k notify.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, kind := range r.kinds {
		if kind == k {
			n++
		}
	}
	return n
}

func TestRouter_RouteEvent_DefaultRouteScenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, createT1()))

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", nil), "")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, []string{"billing"}, res.Routes)
	assert.Equal(t, "billing-rule", res.Metadata.RuleID)
	assert.Equal(t, 10, res.Metadata.Priority)

	res, err = r.RouteEvent(ctx, createTestEvent("e2", "order.cancelled", nil), "")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.True(t, res.Metadata.DefaultRoute)
	assert.Equal(t, []string{"audit"}, res.Routes)
}

func TestRouter_RouteEvent_NamedTable(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, createT1()))
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "T2",
		Rules: []RouteRule{{
			ID:         "shipping",
			Conditions: RuleConditions{EventType: "order.created"},
			Actions:    RuleActions{Routes: []string{"shipping"}},
		}},
	}))

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", nil), "T2")
	require.NoError(t, err)
	assert.Equal(t, []string{"shipping"}, res.Routes)

	_, err = r.RouteEvent(ctx, createTestEvent("e1", "order.created", nil), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRouter_RulesSortedByPriorityStable(t *testing.T) {
	ctx := context.Background()

	rules := []RouteRule{
		{ID: "a", Priority: 5},
		{ID: "b", Priority: 1},
		{ID: "c", Priority: 5},
		{ID: "d", Priority: 3},
		{ID: "e", Priority: 1},
	}
	for i := range rules {
		rules[i].Actions.Routes = []string{rules[i].ID}
	}

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		shuffled := append([]RouteRule(nil), rules...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		r := newTestRouter(t)
		require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{ID: "t", Rules: shuffled}))

		got := r.Tables()[0].Rules
		require.Len(t, got, len(rules))
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, got[i-1].Priority, got[i].Priority)
		}

		// equal priorities keep the order they were declared in
		var want []string
		for _, p := range []int{1, 3, 5} {
			for _, rule := range shuffled {
				if rule.Priority == p {
					want = append(want, rule.ID)
				}
			}
		}
		var ids []string
		for _, rule := range got {
			ids = append(ids, rule.ID)
		}
		assert.Equal(t, want, ids)
	}
}

func TestRouter_FirstMatchByPriority(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "t",
		Rules: []RouteRule{
			{ID: "late", Priority: 20, Conditions: RuleConditions{EventType: "order.created"}, Actions: RuleActions{Routes: []string{"late"}}},
			{ID: "early", Priority: 10, Conditions: RuleConditions{EventType: "order.created"}, Actions: RuleActions{Routes: []string{"early"}}},
		},
	}))

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", nil), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, res.Routes)
	assert.Equal(t, "early", res.Metadata.RuleID)
}

func TestRouter_RouteEvent_IsDeterministicAndCached(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, createT1()))

	ev := createTestEvent("e1", "order.created", nil)
	first, err := r.RouteEvent(ctx, ev, "T1")
	require.NoError(t, err)
	second, err := r.RouteEvent(ctx, ev, "T1")
	require.NoError(t, err)

	assert.Equal(t, first.Routes, second.Routes)
	assert.Equal(t, first.Matched, second.Matched)
	assert.False(t, first.Metadata.Cached)
	assert.True(t, second.Metadata.Cached)

	m := r.GetMetrics()
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(1), m.CacheMisses)
	assert.Equal(t, 1, m.CacheEntries)
	assert.Equal(t, int64(2), m.TotalRouted)
}

func TestRouter_CacheSeparatesAmbiguousTypeAndSource(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "T1",
		Rules: []RouteRule{{
			ID:         "pipe",
			Conditions: RuleConditions{EventType: "a|b"},
			Actions:    RuleActions{Routes: []string{"billing"}},
		}},
		DefaultRoute: []string{"audit"},
	}))

	first, err := r.RouteEvent(ctx, models.Event{ID: "e1", Type: "a|b", Source: "c"}, "T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, first.Routes)

	second, err := r.RouteEvent(ctx, models.Event{ID: "e2", Type: "a", Source: "b|c"}, "T1")
	require.NoError(t, err)
	assert.False(t, second.Metadata.Cached)
	assert.Equal(t, []string{"audit"}, second.Routes)
}

func TestRouter_TableMutationInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, createT1()))

	ev := createTestEvent("e1", "order.cancelled", nil)
	res, err := r.RouteEvent(ctx, ev, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"audit"}, res.Routes)
	genBefore := r.Generation()

	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "T2",
		Rules: []RouteRule{{
			ID:         "cancellations",
			Conditions: RuleConditions{EventType: "order.cancelled"},
			Actions:    RuleActions{Routes: []string{"refunds"}},
		}},
	}))
	assert.Equal(t, 0, r.GetMetrics().CacheEntries)
	assert.Greater(t, r.Generation(), genBefore)

	res, err = r.RouteEvent(ctx, ev, "")
	require.NoError(t, err)
	assert.False(t, res.Metadata.Cached)
	assert.Equal(t, []string{"refunds"}, res.Routes)

	require.NoError(t, r.RemoveRoutingTable(ctx, "T2"))
	assert.Equal(t, 0, r.GetMetrics().CacheEntries)

	res, err = r.RouteEvent(ctx, ev, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"audit"}, res.Routes)

	assert.Error(t, r.RemoveRoutingTable(ctx, "T2"))
}

func TestRouter_ExcludeFilterOverridesRules(t *testing.T) {
	ctx := context.Background()
	bus := notify.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle)

	r := newTestRouter(t, WithNotifier(bus))
	require.NoError(t, r.AddRoutingTable(ctx, createT1()))
	require.NoError(t, r.AddFilter(ctx, EventFilter{
		ID:         "drop-tests",
		Type:       FilterExclude,
		Conditions: FilterConditions{Source: "load-test"},
	}))

	ev := createTestEvent("e1", "order.created", nil)
	ev.Source = "load-test"

	res, err := r.RouteEvent(ctx, ev, "")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Empty(t, res.Routes)
	assert.NotNil(t, res.Routes)
	assert.Equal(t, "drop-tests", res.Metadata.ExcludedBy)
	assert.Equal(t, int64(1), r.GetMetrics().Filtered)
	assert.Equal(t, 1, rec.count(notify.KindEventFiltered))
	assert.Equal(t, 1, rec.count(notify.KindFilterAdded))
}

func TestRouter_DuplicateRulesAcrossTables(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	for _, id := range []string{"A", "B"} {
		require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
			ID: id,
			Rules: []RouteRule{{
				ID:         id + "-rule",
				Conditions: RuleConditions{EventType: "order.created"},
				Actions:    RuleActions{Routes: []string{"dest-" + id, "shared"}, Duplicate: true},
			}},
		}))
	}

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", nil), "")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.ElementsMatch(t, []string{"dest-A", "shared", "dest-B"}, res.Routes)
	assert.Len(t, res.Metadata.Matches, 2)
}

func TestRouter_NonDuplicateMatchStopsOnlyItsTable(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "A",
		Rules: []RouteRule{
			{ID: "dup", Priority: 1, Conditions: RuleConditions{EventTypePattern: `^order\.`}, Actions: RuleActions{Routes: []string{"audit"}, Duplicate: true}},
			{ID: "stop", Priority: 2, Conditions: RuleConditions{EventType: "order.created"}, Actions: RuleActions{Routes: []string{"billing"}}},
			{ID: "never", Priority: 3, Conditions: RuleConditions{EventType: "order.created"}, Actions: RuleActions{Routes: []string{"never"}}},
		},
	}))
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID:    "B",
		Rules: []RouteRule{{ID: "b", Conditions: RuleConditions{EventType: "order.created"}, Actions: RuleActions{Routes: []string{"analytics"}}}},
	}))

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", nil), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "billing", "analytics"}, res.Routes)
	assert.Equal(t, "dup", res.Metadata.RuleID)
}

func TestRouter_EffectivePriorityDelayAndDLQ(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	override := 1

	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "t",
		Rules: []RouteRule{
			{ID: "a", Priority: 10, Actions: RuleActions{Routes: []string{"x"}, DelayMs: 50, Duplicate: true}},
			{ID: "b", Priority: 20, Actions: RuleActions{Routes: []string{"y"}, PriorityOverride: &override, DelayMs: 20, DLQ: true}},
		},
	}))

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "anything", nil), "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Metadata.Priority)
	assert.Equal(t, 50, res.Metadata.DelayMs)
	assert.True(t, res.Metadata.DeadLetter)
}

func TestRouter_ConditionPredicates(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	ev := createTestEvent("e1", "order.created", map[string]interface{}{
		"amount":   100.0,
		"customer": map[string]interface{}{"tier": "gold"},
	})
	ev.Metadata["region"] = "eu"

	tests := []struct {
		name string
		cond RuleConditions
		want bool
	}{
		{"no conditions", RuleConditions{}, true},
		{"type list", RuleConditions{EventTypes: []string{"order.updated", "order.created"}}, true},
		{"type list miss", RuleConditions{EventTypes: []string{"order.updated"}}, false},
		{"type regex", RuleConditions{EventTypePattern: `^order\.(created|updated)$`}, true},
		{"source exact", RuleConditions{Source: "orders-api"}, true},
		{"source list miss", RuleConditions{Sources: []string{"billing-api"}}, false},
		{"source regex", RuleConditions{SourcePattern: `-api$`}, true},
		{"metadata match", RuleConditions{Metadata: map[string]interface{}{"region": "eu"}}, true},
		{"metadata missing key", RuleConditions{Metadata: map[string]interface{}{"tenant": "a"}}, false},
		{"payload numeric across types", RuleConditions{Payload: map[string]interface{}{"amount": 100}}, true},
		{"payload nested path", RuleConditions{Payload: map[string]interface{}{"customer.tier": "gold"}}, true},
		{"payload mismatch", RuleConditions{Payload: map[string]interface{}{"amount": 99}}, false},
		{"expression", RuleConditions{Expression: "payload.amount > 50 && metadata.region == 'eu'"}, true},
		{"expression false", RuleConditions{Expression: "payload.amount > 500"}, false},
		{"conjunction short circuits", RuleConditions{EventType: "order.created", Source: "other"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := RouteRule{ID: "r", Conditions: tt.cond, Actions: RuleActions{Routes: []string{"x"}}}
			got, err := r.TestRule(ctx, rule, ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, r.Engine().EvaluateRule(ctx, rule, ev))
		})
	}
}

func TestRouter_ExpressionFailureIsNoMatch(t *testing.T) {
	ctx := context.Background()
	bus := notify.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle, notify.KindTransformationError)

	r := newTestRouter(t, WithNotifier(bus))
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "t",
		Rules: []RouteRule{{
			ID:         "needs-customer",
			Conditions: RuleConditions{Expression: "payload.customer.id == 'c1'"},
			Actions:    RuleActions{Routes: []string{"crm"}},
		}},
		DefaultRoute: []string{"audit"},
	}))

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", map[string]interface{}{}), "")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, []string{"audit"}, res.Routes)
	assert.Equal(t, 1, rec.count(notify.KindTransformationError))
}

func TestRouter_InvalidConfigurationRejected(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	gen := r.Generation()

	tests := []struct {
		name  string
		table RoutingTable
	}{
		{"missing id", RoutingTable{}},
		{"bad regex", RoutingTable{ID: "t", Rules: []RouteRule{{ID: "r", Conditions: RuleConditions{EventTypePattern: "("}, Actions: RuleActions{Routes: []string{"x"}}}}}},
		{"bad expression", RoutingTable{ID: "t", Rules: []RouteRule{{ID: "r", Conditions: RuleConditions{Expression: "payload.amount >"}, Actions: RuleActions{Routes: []string{"x"}}}}}},
		{"non bool expression", RoutingTable{ID: "t", Rules: []RouteRule{{ID: "r", Conditions: RuleConditions{Expression: "1 + 2"}, Actions: RuleActions{Routes: []string{"x"}}}}}},
		{"no routes", RoutingTable{ID: "t", Rules: []RouteRule{{ID: "r"}}}},
		{"duplicate rule id", RoutingTable{ID: "t", Rules: []RouteRule{{ID: "r", Actions: RuleActions{Routes: []string{"x"}}}, {ID: "r", Actions: RuleActions{Routes: []string{"y"}}}}}},
		{"unknown transform", RoutingTable{ID: "t", Rules: []RouteRule{{ID: "r", Actions: RuleActions{Routes: []string{"x"}, Transform: "nope"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.AddRoutingTable(ctx, tt.table)
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err))
		})
	}
	assert.Equal(t, gen, r.Generation())
	assert.Empty(t, r.Tables())

	err := r.AddFilter(ctx, EventFilter{ID: "f", Type: "drop"})
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestRouter_FiltersNeverMutateInput(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	require.NoError(t, r.RegisterTransform("upper-status", func(_ context.Context, ev models.Event) (models.Event, error) {
		ev.Payload["status"] = "PAID"
		return ev, nil
	}))
	require.NoError(t, r.AddFilter(ctx, EventFilter{
		ID:     "enrich",
		Type:   FilterEnrich,
		Action: FilterAction{AddMetadata: map[string]interface{}{"pipeline": "live"}},
	}))
	require.NoError(t, r.AddFilter(ctx, EventFilter{
		ID:     "scrub",
		Type:   FilterTransform,
		Action: FilterAction{Transform: "upper-status", RemoveFields: []string{"payload.card.token"}},
	}))
	require.NoError(t, r.AddFilter(ctx, EventFilter{ID: "orders", Type: FilterInclude, Conditions: FilterConditions{EventType: "order.paid"}}))

	ev := createTestEvent("e1", "order.paid", map[string]interface{}{
		"status": "paid",
		"card":   map[string]interface{}{"token": "tok_123", "last4": "4242"},
	})

	res, err := r.FilterEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.True(t, res.Modified)
	assert.Equal(t, []string{"orders", "scrub", "enrich"}, res.AppliedFilters)
	assert.Equal(t, []string{"upper-status"}, res.Transformations)

	assert.Equal(t, "PAID", res.Event.Payload["status"])
	_, hasToken := res.Event.Lookup("payload.card.token")
	assert.False(t, hasToken)
	assert.Equal(t, "live", res.Event.Metadata["pipeline"])

	assert.Equal(t, "paid", ev.Payload["status"])
	token, ok := ev.Lookup("payload.card.token")
	require.True(t, ok)
	assert.Equal(t, "tok_123", token)
	assert.NotContains(t, ev.Metadata, "pipeline")
}

func TestRouter_RuleTransformAndMetadata(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	require.NoError(t, r.RegisterTransform("tag", func(_ context.Context, ev models.Event) (models.Event, error) {
		ev.Payload["tagged"] = true
		return ev, nil
	}))
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "t",
		Rules: []RouteRule{{
			ID:      "r",
			Actions: RuleActions{Routes: []string{"x"}, Transform: "tag", Metadata: map[string]interface{}{"routed_by": "r"}},
		}},
	}))

	ev := createTestEvent("e1", "order.created", map[string]interface{}{})
	res, err := r.RouteEvent(ctx, ev, "")
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, true, res.Event.Payload["tagged"])
	assert.Equal(t, "r", res.Event.Metadata["routed_by"])
	assert.Equal(t, []string{"tag"}, res.Metadata.Transformations)
	assert.NotContains(t, ev.Payload, "tagged")

	// decisions that derive events are not cached
	_, err = r.RouteEvent(ctx, ev, "")
	require.NoError(t, err)
	assert.Equal(t, 0, r.GetMetrics().CacheEntries)
}

func TestRouter_FailuresPropagateAsRoutingError(t *testing.T) {
	ctx := context.Background()
	bus := notify.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle, notify.KindRoutingFailed)
	r := newTestRouter(t, WithNotifier(bus))

	require.NoError(t, r.RegisterTransform("boom", func(context.Context, models.Event) (models.Event, error) {
		panic("transform exploded")
	}))
	require.NoError(t, r.RegisterTransform("fails", func(_ context.Context, ev models.Event) (models.Event, error) {
		return ev, errors.New("upstream lookup failed")
	}))
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID:    "panics",
		Rules: []RouteRule{{ID: "r", Actions: RuleActions{Routes: []string{"x"}, Transform: "boom"}}},
	}))
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID:    "errors",
		Rules: []RouteRule{{ID: "r", Actions: RuleActions{Routes: []string{"x"}, Transform: "fails"}}},
	}))

	_, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", nil), "panics")
	require.Error(t, err)
	assert.True(t, apperrors.IsRouting(err))

	_, err = r.RouteEvent(ctx, createTestEvent("e2", "order.created", nil), "errors")
	require.Error(t, err)
	assert.True(t, apperrors.IsRouting(err))

	assert.Equal(t, int64(2), r.GetMetrics().Errors)
	assert.Equal(t, 2, rec.count(notify.KindRoutingFailed))
}

func TestRouter_TestFilter(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	res, err := r.TestFilter(ctx, EventFilter{
		ID:         "big-orders",
		Type:       FilterExclude,
		Conditions: FilterConditions{Expression: "payload.amount >= 1000"},
	}, createTestEvent("e1", "order.created", map[string]interface{}{"amount": 5000}))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, "big-orders", res.ExcludedBy)
	assert.Empty(t, r.Filters())
}

func TestRouter_HandlersAndDispatch(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	var mu sync.Mutex
	delivered := map[string][]string{}
	sink := func(name string) Handler {
		return HandlerFunc(func(_ context.Context, ev models.Event) error {
			mu.Lock()
			defer mu.Unlock()
			delivered[name] = append(delivered[name], ev.ID)
			return nil
		})
	}

	require.NoError(t, r.RegisterHandler("billing", sink("billing")))
	require.NoError(t, r.RegisterHandler("flaky", HandlerFunc(func(context.Context, models.Event) error {
		return errors.New("broker unavailable")
	})))
	require.NoError(t, r.RegisterHandler(DeadLetterRoute, sink(DeadLetterRoute)))
	assert.Error(t, r.RegisterHandler("", sink("x")))
	assert.Equal(t, 3, r.GetMetrics().Handlers)

	ev := createTestEvent("e1", "order.created", nil)
	require.NoError(t, r.Dispatch(ctx, ev, RoutingResult{Routes: []string{"billing"}}))
	assert.Equal(t, []string{"e1"}, delivered["billing"])

	err := r.Dispatch(ctx, ev, RoutingResult{Routes: []string{"flaky"}})
	require.Error(t, err)

	err = r.Dispatch(ctx, ev, RoutingResult{Routes: []string{"flaky"}, Metadata: ResultMetadata{DeadLetter: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, delivered[DeadLetterRoute])

	err = r.Dispatch(ctx, ev, RoutingResult{Routes: []string{"unknown"}})
	assert.Error(t, err)

	require.NoError(t, r.UnregisterHandler(DeadLetterRoute))
	require.NoError(t, r.RegisterHandler(DeadLetterRoute, HandlerFunc(func(context.Context, models.Event) error {
		return errors.New("dlq unavailable")
	})))
	err = r.Dispatch(ctx, ev, RoutingResult{Routes: []string{"flaky"}, Metadata: ResultMetadata{DeadLetter: true}})
	require.Error(t, err)
	assert.True(t, apperrors.IsDelivery(err))
	assert.Contains(t, err.Error(), "dlq unavailable")

	require.NoError(t, r.UnregisterHandler("flaky"))
	assert.Error(t, r.UnregisterHandler("flaky"))
}

func TestRouter_DispatchHonorsDelayAndCancellation(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterHandler("x", HandlerFunc(func(context.Context, models.Event) error { return nil })))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Dispatch(ctx, createTestEvent("e1", "t", nil), RoutingResult{
		Routes:   []string{"x"},
		Metadata: ResultMetadata{DelayMs: int(time.Hour / time.Millisecond)},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouter_ConcurrentRoutingDuringMutation(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, createT1()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				res, err := r.RouteEvent(ctx, createTestEvent("e", "order.created", nil), "")
				if assert.NoError(t, err) {
					assert.Contains(t, [][]string{{"billing"}, {"billing", "extra"}}, res.Routes)
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
			ID:    "extra",
			Rules: []RouteRule{{ID: "x", Conditions: RuleConditions{EventType: "order.created"}, Actions: RuleActions{Routes: []string{"extra"}}}},
		}))
		require.NoError(t, r.RemoveRoutingTable(ctx, "extra"))
	}
	wg.Wait()
}

func TestRouter_DisabledRuleIsSkipped(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "t",
		Rules: []RouteRule{
			{ID: "off", Enabled: boolPtr(false), Actions: RuleActions{Routes: []string{"off"}}},
			{ID: "on", Priority: 1, Actions: RuleActions{Routes: []string{"on"}}},
		},
	}))

	res, err := r.RouteEvent(ctx, createTestEvent("e1", "x", nil), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, res.Routes)
}
