package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchyard/internal/broker"
	"switchyard/internal/eventlog"
	"switchyard/internal/logger"
	"switchyard/internal/routing"
	"switchyard/pkg/cel"
	"switchyard/pkg/models"
	"switchyard/pkg/retry"
)

type delivered struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func (d *delivered) handler(route string, err error) routing.Handler {
	return routing.HandlerFunc(func(_ context.Context, ev models.Event) error {
		if err != nil {
			return err
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		d.events[route] = append(d.events[route], ev)
		return nil
	})
}

func (d *delivered) of(route string) []models.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[route]
}

func newIngest(t *testing.T, billingErr error) (*ingest, *eventlog.Memory, *delivered) {
	t.Helper()
	ctx := context.Background()

	eval, err := cel.NewEvaluator()
	require.NoError(t, err)
	r := routing.NewRouter(eval, routing.WithLogger(logger.NopLogger()))

	out := &delivered{events: map[string][]models.Event{}}
	require.NoError(t, r.RegisterHandler("billing", out.handler("billing", billingErr)))
	require.NoError(t, r.RegisterHandler("audit", out.handler("audit", nil)))
	require.NoError(t, r.RegisterHandler(routing.DeadLetterRoute, out.handler(routing.DeadLetterRoute, nil)))

	require.NoError(t, r.AddRoutingTable(ctx, routing.RoutingTable{
		ID: "orders",
		Rules: []routing.RouteRule{{
			ID:         "billing",
			Conditions: routing.RuleConditions{EventType: "order.created"},
			Actions:    routing.RuleActions{Routes: []string{"billing"}},
		}},
		DefaultRoute: []string{"audit"},
	}))

	log := eventlog.NewMemory()
	return &ingest{events: log, router: r, logger: logger.NopLogger()}, log, out
}

func message(t *testing.T, ev models.Event) broker.Message {
	t.Helper()
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	return broker.Message{Topic: "live_events", Key: ev.ID, Value: value}
}

func isFatal(err error) bool {
	var fatal retry.FatalError
	return errors.As(err, &fatal) && fatal.IsFatal()
}

func TestIngest_RecordsAndRoutes(t *testing.T) {
	ctx := context.Background()
	in, log, out := newIngest(t, nil)

	created := models.NewEventBuilder("order.created").WithID("e1").WithSource("orders-api").Build()
	shipped := models.NewEventBuilder("order.shipped").WithID("e2").WithSource("orders-api").Build()

	require.NoError(t, in.handleMessage(ctx, message(t, created)))
	require.NoError(t, in.handleMessage(ctx, message(t, shipped)))
	require.NoError(t, in.handleMessage(ctx, message(t, created)))

	recorded, err := log.GetEvents(ctx, eventlog.Query{})
	require.NoError(t, err)
	require.Len(t, recorded, 2)

	billing := out.of("billing")
	require.Len(t, billing, 2)
	assert.Equal(t, int64(1), billing[0].Version)
	assert.Equal(t, int64(1), billing[1].Version)

	audit := out.of("audit")
	require.Len(t, audit, 1)
	assert.Equal(t, "e2", audit[0].ID)
}

func TestIngest_RejectsBadMessages(t *testing.T) {
	ctx := context.Background()
	in, log, _ := newIngest(t, nil)

	err := in.handleMessage(ctx, broker.Message{Topic: "live_events", Value: []byte("{")})
	assert.True(t, isFatal(err))

	missingSource := models.NewEventBuilder("order.created").WithID("e1").Build()
	err = in.handleMessage(ctx, message(t, missingSource))
	assert.True(t, isFatal(err))

	recorded, err := log.GetEvents(ctx, eventlog.Query{})
	require.NoError(t, err)
	assert.Empty(t, recorded)
}

func TestIngest_DispatchFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	in, _, out := newIngest(t, errors.New("broker down"))

	ev := models.NewEventBuilder("order.created").WithID("e1").WithSource("orders-api").Build()
	err := in.handleMessage(ctx, message(t, ev))
	require.Error(t, err)

	assert.False(t, isFatal(err))
	assert.Empty(t, out.of(routing.DeadLetterRoute))
}
