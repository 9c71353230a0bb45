package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchyard/pkg/models"
)

func TestDecisionCache_Bounded(t *testing.T) {
	c := newDecisionCache(1000, 1)
	for i := 0; i < 1500; i++ {
		c.put(fmt.Sprintf("k%d", i), 1, RoutingResult{Routes: []string{"x"}})
	}
	assert.Equal(t, 1000, c.len())

	_, lookup := c.get("k999", 1)
	assert.Equal(t, cacheHit, lookup)
	_, lookup = c.get("k1200", 1)
	assert.Equal(t, cacheMiss, lookup)
}

func TestDecisionCache_GenerationTagged(t *testing.T) {
	c := newDecisionCache(10, 1)
	require.True(t, c.put("k", 1, RoutingResult{Routes: []string{"a"}}))

	// a writer that computed its decision under an older generation cannot publish it
	c.reset(2)
	assert.False(t, c.put("k", 1, RoutingResult{Routes: []string{"stale"}}))
	_, lookup := c.get("k", 2)
	assert.Equal(t, cacheMiss, lookup)

	// a reader holding an older snapshot never sees entries of the new generation
	require.True(t, c.put("k", 2, RoutingResult{Routes: []string{"b"}}))
	_, lookup = c.get("k", 1)
	assert.Equal(t, cacheStale, lookup)

	res, lookup := c.get("k", 2)
	assert.Equal(t, cacheHit, lookup)
	assert.Equal(t, []string{"b"}, res.Routes)
}

func TestDecisionCache_ReturnsCopies(t *testing.T) {
	c := newDecisionCache(10, 1)
	require.True(t, c.put("k", 1, RoutingResult{Routes: []string{"a"}}))

	res, _ := c.get("k", 1)
	res.Routes[0] = "mutated"

	again, _ := c.get("k", 1)
	assert.Equal(t, []string{"a"}, again.Routes)
}

func TestDecisionCache_Disabled(t *testing.T) {
	c := newDecisionCache(0, 1)
	assert.False(t, c.put("k", 1, RoutingResult{}))
}

func TestCacheKey(t *testing.T) {
	a := models.Event{Type: "order.created", Source: "api", Metadata: map[string]interface{}{"b": 1, "a": "x"}}
	b := models.Event{Type: "order.created", Source: "api", Metadata: map[string]interface{}{"a": "x", "b": 1}, Payload: map[string]interface{}{"ignored": true}}

	ka, ok := cacheKey(a, "T1")
	require.True(t, ok)
	kb, ok := cacheKey(b, "T1")
	require.True(t, ok)
	assert.Equal(t, ka, kb)

	kc, _ := cacheKey(a, "T2")
	assert.NotEqual(t, ka, kc)

	left, ok := cacheKey(models.Event{Type: "a|b", Source: "c"}, "T1")
	require.True(t, ok)
	right, ok := cacheKey(models.Event{Type: "a", Source: "b|c"}, "T1")
	require.True(t, ok)
	assert.NotEqual(t, left, right)

	sourceTable, _ := cacheKey(models.Event{Type: "a", Source: "b|T1"}, "")
	tableOnly, _ := cacheKey(models.Event{Type: "a", Source: "b"}, "T1|")
	assert.NotEqual(t, sourceTable, tableOnly)

	a.Metadata["c"] = make(chan int)
	_, ok = cacheKey(a, "T1")
	assert.False(t, ok)
}

func TestStore_UpdateIsAtomic(t *testing.T) {
	s := NewStore(10)
	gen := s.Generation()

	_, err := s.Update(func(d *draft) error {
		d.putTable(&compiledTable{RoutingTable: RoutingTable{ID: "t"}})
		return fmt.Errorf("rejected")
	})
	require.Error(t, err)
	assert.Equal(t, gen, s.Generation())
	assert.Empty(t, s.load().tables)

	next, err := s.Update(func(d *draft) error {
		d.putTable(&compiledTable{RoutingTable: RoutingTable{ID: "t"}})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)
	assert.Len(t, s.load().tables, 1)
}

func TestRouter_PayloadDependentRulesBypassCache(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	require.NoError(t, r.AddRoutingTable(ctx, RoutingTable{
		ID: "t",
		Rules: []RouteRule{{
			ID:         "big",
			Conditions: RuleConditions{Payload: map[string]interface{}{"size": "big"}},
			Actions:    RuleActions{Routes: []string{"bulk"}},
		}},
		DefaultRoute: []string{"standard"},
	}))

	big, err := r.RouteEvent(ctx, createTestEvent("e1", "order.created", map[string]interface{}{"size": "big"}), "")
	require.NoError(t, err)
	small, err := r.RouteEvent(ctx, createTestEvent("e2", "order.created", map[string]interface{}{"size": "small"}), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"bulk"}, big.Routes)
	assert.Equal(t, []string{"standard"}, small.Routes)
	assert.Equal(t, 0, r.GetMetrics().CacheEntries)
}
