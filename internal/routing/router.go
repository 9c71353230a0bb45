package routing

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"switchyard/internal/constants"
	"switchyard/internal/logger"
	"switchyard/internal/notify"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/logging"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
	"switchyard/pkg/tracing"
)

const tracerName = "routing"

type Option func(*Router)

// WithCacheSize bounds the decision cache. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(r *Router) { r.cacheSize = size }
}

func WithLogger(log logger.Logger) Option {
	return func(r *Router) { r.logger = log }
}

func WithNotifier(p notify.Publisher) Option {
	return func(r *Router) { r.notifier = p }
}

// WithEventNotifications toggles the per-event routed/filtered notifications. Configuration
// and failure notifications are always emitted.
func WithEventNotifications(enabled bool) Option {
	return func(r *Router) { r.eventNotifications = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

type counters struct {
	routed, matched, defaulted, unrouted, filtered, errors atomic.Int64
	cacheHits, cacheMisses                                 atomic.Int64
	latencyNanos                                           atomic.Int64
}

type Router struct {
	store  *Store
	engine *Engine
	eval   Evaluator

	logger             logger.Logger
	notifier           notify.Publisher
	eventNotifications bool
	cacheSize          int
	now                func() time.Time

	stats counters
}

// NewRouter builds a router with no tables or filters. eval may be nil, in which case rules
// and filters carrying expressions are rejected.
func NewRouter(eval Evaluator, opts ...Option) *Router {
	r := &Router{
		eval:               eval,
		logger:             logger.NopLogger(),
		notifier:           notify.Discard,
		eventNotifications: true,
		cacheSize:          constants.RoutingCacheSize,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.store = NewStore(r.cacheSize)
	r.engine = NewEngine(eval, r.logger, r.notifier)
	return r
}

// Engine exposes the decision logic bound to this router's evaluator.
func (r *Router) Engine() *Engine {
	return r.engine
}

func (r *Router) Generation() uint64 {
	return r.store.Generation()
}

func (r *Router) AddRoutingTable(ctx context.Context, table RoutingTable) error {
	now := r.now().UTC()
	var replaced bool
	gen, err := r.store.Update(func(d *draft) error {
		ct, err := compileTable(table, r.eval, d.transforms)
		if err != nil {
			return err
		}
		if prev := d.table(table.ID); prev != nil {
			ct.CreatedAt = prev.CreatedAt
			ct.Version = prev.Version + 1
		} else {
			if ct.CreatedAt.IsZero() {
				ct.CreatedAt = now
			}
			if ct.Version < 1 {
				ct.Version = 1
			}
		}
		ct.UpdatedAt = now
		replaced = d.putTable(ct)
		return nil
	})
	if err != nil {
		return err
	}

	r.afterUpdate(gen)
	r.logger.InfowCtx(ctx, "Routing table added",
		"table_id", table.ID,
		"rules", len(table.Rules),
		"replaced", replaced,
		"generation", gen,
	)
	r.notifier.Publish(notify.Notification{Kind: notify.KindRoutingTableAdded, Subject: table.ID})
	return nil
}

func (r *Router) RemoveRoutingTable(ctx context.Context, id string) error {
	gen, err := r.store.Update(func(d *draft) error {
		if !d.removeTable(id) {
			return apperrors.ErrNotFound.WithMessagef("routing table %s not found", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.afterUpdate(gen)
	r.logger.InfowCtx(ctx, "Routing table removed", "table_id", id, "generation", gen)
	r.notifier.Publish(notify.Notification{Kind: notify.KindRoutingTableRemoved, Subject: id})
	return nil
}

func (r *Router) AddFilter(ctx context.Context, filter EventFilter) error {
	gen, err := r.store.Update(func(d *draft) error {
		cf, err := compileFilter(filter, r.eval, d.transforms)
		if err != nil {
			return err
		}
		d.putFilter(cf)
		return nil
	})
	if err != nil {
		return err
	}

	r.afterUpdate(gen)
	r.logger.InfowCtx(ctx, "Filter added", "filter_id", filter.ID, "type", filter.Type, "generation", gen)
	r.notifier.Publish(notify.Notification{Kind: notify.KindFilterAdded, Subject: filter.ID})
	return nil
}

func (r *Router) RemoveFilter(ctx context.Context, id string) error {
	gen, err := r.store.Update(func(d *draft) error {
		if !d.removeFilter(id) {
			return apperrors.ErrNotFound.WithMessagef("filter %s not found", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.afterUpdate(gen)
	r.logger.InfowCtx(ctx, "Filter removed", "filter_id", id, "generation", gen)
	r.notifier.Publish(notify.Notification{Kind: notify.KindFilterRemoved, Subject: id})
	return nil
}

// RegisterHandler binds a destination name used in rule routes to a delivery target.
func (r *Router) RegisterHandler(name string, h Handler) error {
	if strings.TrimSpace(name) == "" {
		return configErr("handler name is required")
	}
	if h == nil {
		return configErr("handler %s is nil", name)
	}
	gen, err := r.store.Update(func(d *draft) error {
		d.handlers[name] = h
		return nil
	})
	if err != nil {
		return err
	}
	r.afterUpdate(gen)
	r.notifier.Publish(notify.Notification{Kind: notify.KindHandlerRegistered, Subject: name})
	return nil
}

func (r *Router) UnregisterHandler(name string) error {
	gen, err := r.store.Update(func(d *draft) error {
		if _, ok := d.handlers[name]; !ok {
			return apperrors.ErrNotFound.WithMessagef("handler %s not found", name)
		}
		delete(d.handlers, name)
		return nil
	})
	if err != nil {
		return err
	}
	r.afterUpdate(gen)
	r.notifier.Publish(notify.Notification{Kind: notify.KindHandlerUnregistered, Subject: name})
	return nil
}

// RegisterTransform makes a named transform available to rules and filters registered
// afterwards. Re-registering a name replaces it for every referencing rule.
func (r *Router) RegisterTransform(name string, t Transform) error {
	if strings.TrimSpace(name) == "" {
		return configErr("transform name is required")
	}
	if t == nil {
		return configErr("transform %s is nil", name)
	}
	gen, err := r.store.Update(func(d *draft) error {
		d.transforms[name] = t
		return nil
	})
	if err != nil {
		return err
	}
	r.afterUpdate(gen)
	return nil
}

func (r *Router) afterUpdate(gen uint64) {
	snap := r.store.load()
	metrics.RoutingGeneration.Set(float64(gen))
	metrics.RoutingTables.Set(float64(len(snap.tables)))
	metrics.RoutingFilters.Set(float64(len(snap.filters)))
	metrics.RoutingCacheEntries.Set(0)
}

// Tables returns the registered tables in registration order, rules sorted by priority.
func (r *Router) Tables() []RoutingTable {
	snap := r.store.load()
	out := make([]RoutingTable, 0, len(snap.tables))
	for _, t := range snap.tables {
		out = append(out, t.RoutingTable)
	}
	return out
}

// Filters returns the registered filters in evaluation order.
func (r *Router) Filters() []EventFilter {
	snap := r.store.load()
	out := make([]EventFilter, 0, len(snap.filters))
	for _, f := range snap.filters {
		out = append(out, f.EventFilter)
	}
	return out
}

// RouteEvent decides where ev goes. With an empty tableID every registered table is scanned
// in registration order. Expression failures count as non-matches; any other failure is
// returned as a ROUTING_ERROR and the result must not be used.
func (r *Router) RouteEvent(ctx context.Context, ev models.Event, tableID string) (result RoutingResult, err error) {
	ctx = logging.WithEventID(ctx, ev.ID)
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "routing.route_event")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", ev.Type),
		attribute.String("routing.table_id", tableID),
	)

	start := r.now()
	defer func() {
		if rec := recover(); rec != nil {
			err = apperrors.RecoverPanicAs(rec, apperrors.ErrRouting)
		}
		if err != nil {
			result = RoutingResult{}
			tracing.RecordError(span, err)
			r.fail(ctx, ev, err)
		}
	}()

	snap := r.store.load()
	scope, err := scopeOf(snap, tableID)
	if err != nil {
		return RoutingResult{}, err
	}

	key, cacheable := "", r.cacheable(snap, scope)
	if cacheable {
		key, cacheable = cacheKey(ev, tableID)
	}
	if cacheable {
		cached, lookup := r.store.cache.get(key, snap.generation)
		metrics.RoutingCacheLookupsTotal.WithLabelValues(lookup.String()).Inc()
		if lookup == cacheHit {
			r.stats.cacheHits.Add(1)
			cached.Metadata.Cached = true
			cached.Metadata.ProcessingTime = r.now().Sub(start)
			r.record(ctx, ev, cached)
			return cached, nil
		}
		r.stats.cacheMisses.Add(1)
	}

	result, err = r.decide(ctx, snap, scope, ev)
	if err != nil {
		return RoutingResult{}, apperrors.ErrRouting.WithMessagef("routing event %s", ev.ID).WithCause(err)
	}
	result.Metadata.Generation = snap.generation
	result.Metadata.ProcessingTime = r.now().Sub(start)

	if cacheable && r.store.cache.put(key, snap.generation, result) {
		metrics.RoutingCacheEntries.Set(float64(r.store.cache.len()))
	}
	r.record(ctx, ev, result)
	return result, nil
}

func scopeOf(snap *snapshot, tableID string) ([]*compiledTable, error) {
	if tableID == "" {
		return snap.tables, nil
	}
	t := snap.table(tableID)
	if t == nil {
		return nil, apperrors.ErrNotFound.WithMessagef("routing table %s not found", tableID)
	}
	return []*compiledTable{t}, nil
}

// cacheable reports whether decisions over scope depend only on the cache key attributes.
func (r *Router) cacheable(snap *snapshot, scope []*compiledTable) bool {
	if r.cacheSize <= 0 || !snap.filtersCacheable() {
		return false
	}
	for _, t := range scope {
		if !t.cacheable {
			return false
		}
	}
	return true
}

func (r *Router) decide(ctx context.Context, snap *snapshot, scope []*compiledTable, ev models.Event) (RoutingResult, error) {
	fr, err := r.engine.applyFilters(ctx, snap.filters, snap.transforms, ev)
	if err != nil {
		return RoutingResult{}, err
	}

	res := RoutingResult{Routes: []string{}}
	res.Metadata.AppliedFilters = fr.AppliedFilters
	res.Metadata.Transformations = fr.Transformations
	if !fr.Passed {
		res.Metadata.ExcludedBy = fr.ExcludedBy
		return res, nil
	}

	working, owned := fr.Event, fr.Modified
	seen := make(map[string]bool)
	addRoutes := func(routes []string) {
		for _, route := range routes {
			if !seen[route] {
				seen[route] = true
				res.Routes = append(res.Routes, route)
			}
		}
	}

	for _, t := range scope {
		for _, rule := range t.rules {
			if !rule.IsEnabled() || !r.engine.matches(ctx, rule, working) {
				continue
			}

			metrics.RoutingRuleMatchesTotal.WithLabelValues(t.ID, rule.ID).Inc()
			res.Metadata.Matches = append(res.Metadata.Matches, RuleMatch{TableID: t.ID, RuleID: rule.ID, RuleName: rule.Name})
			addRoutes(rule.Actions.Routes)

			if name := rule.Actions.Transform; name != "" {
				derived, err := runTransform(ctx, snap.transforms, name, working)
				if err != nil {
					r.engine.reportTransform(ctx, ev, rule.ID, err)
					return RoutingResult{}, err
				}
				working, owned = derived, true
				res.Metadata.Transformations = append(res.Metadata.Transformations, name)
			}
			if len(rule.Actions.Metadata) > 0 {
				if !owned {
					working, owned = working.Clone(), true
				}
				working.MergeMetadata(rule.Actions.Metadata)
			}

			priority := rule.Priority
			if rule.Actions.PriorityOverride != nil {
				priority = *rule.Actions.PriorityOverride
			}
			if len(res.Metadata.Matches) == 1 || priority < res.Metadata.Priority {
				res.Metadata.Priority = priority
			}
			if rule.Actions.DelayMs > res.Metadata.DelayMs {
				res.Metadata.DelayMs = rule.Actions.DelayMs
			}
			res.Metadata.DeadLetter = res.Metadata.DeadLetter || rule.Actions.DLQ

			if !rule.Actions.Duplicate {
				break
			}
		}
	}

	if len(res.Metadata.Matches) > 0 {
		res.Matched = true
		res.Metadata.RuleID = res.Metadata.Matches[0].RuleID
		res.Metadata.RuleName = res.Metadata.Matches[0].RuleName
	} else {
		for _, t := range scope {
			addRoutes(t.DefaultRoute)
		}
		res.Metadata.DefaultRoute = len(res.Routes) > 0
	}

	if owned {
		res.Event = &working
	}
	return res, nil
}

func (r *Router) record(ctx context.Context, ev models.Event, res RoutingResult) {
	status := "unrouted"
	switch {
	case res.Metadata.ExcludedBy != "":
		status = "filtered"
		r.stats.filtered.Add(1)
	case res.Matched:
		status = "matched"
		r.stats.matched.Add(1)
	case res.Metadata.DefaultRoute:
		status = "default"
		r.stats.defaulted.Add(1)
	default:
		r.stats.unrouted.Add(1)
	}
	r.stats.routed.Add(1)
	r.stats.latencyNanos.Add(int64(res.Metadata.ProcessingTime))

	metrics.RoutingEventsTotal.WithLabelValues(status).Inc()
	metrics.ObserveRoutingDuration(res.Metadata.ProcessingTime, status)

	r.logger.DebugwCtx(ctx, "Event routed",
		"status", status,
		"routes", res.Routes,
		"rule_id", res.Metadata.RuleID,
		"cached", res.Metadata.Cached,
	)

	if !r.eventNotifications {
		return
	}
	kind := notify.KindEventRouted
	if status == "filtered" {
		kind = notify.KindEventFiltered
	}
	r.notifier.Publish(notify.Notification{Kind: kind, Subject: ev.ID, Detail: res})
}

func (r *Router) fail(ctx context.Context, ev models.Event, err error) {
	r.stats.errors.Add(1)
	metrics.RoutingEventsTotal.WithLabelValues("error").Inc()
	r.logger.ErrorwCtx(ctx, "Routing failed",
		"event_type", ev.Type,
		"error", err,
	)
	r.notifier.Publish(notify.Notification{
		Kind:    notify.KindRoutingFailed,
		Subject: ev.ID,
		Detail:  notify.ErrorDetail{Error: err.Error(), EventID: ev.ID, Stage: "route"},
	})
}

// FilterEvent runs only the global filter chain.
func (r *Router) FilterEvent(ctx context.Context, ev models.Event) (FilterResult, error) {
	snap := r.store.load()
	return r.engine.applyFilters(ctx, snap.filters, snap.transforms, ev)
}

// TestRule evaluates rule against ev without registering it.
func (r *Router) TestRule(ctx context.Context, rule RouteRule, ev models.Event) (bool, error) {
	cr, err := compileRule(rule, r.eval, r.store.load().transforms)
	if err != nil {
		return false, err
	}
	return r.engine.matches(ctx, cr, ev), nil
}

// TestFilter runs filter alone against ev without registering it.
func (r *Router) TestFilter(ctx context.Context, filter EventFilter, ev models.Event) (FilterResult, error) {
	snap := r.store.load()
	cf, err := compileFilter(filter, r.eval, snap.transforms)
	if err != nil {
		return FilterResult{}, err
	}
	return r.engine.applyFilters(ctx, []*compiledFilter{cf}, snap.transforms, ev)
}

func (r *Router) GetMetrics() Metrics {
	snap := r.store.load()
	m := Metrics{
		TotalRouted:   r.stats.routed.Load(),
		Matched:       r.stats.matched.Load(),
		DefaultRouted: r.stats.defaulted.Load(),
		Unrouted:      r.stats.unrouted.Load(),
		Filtered:      r.stats.filtered.Load(),
		Errors:        r.stats.errors.Load(),
		CacheHits:     r.stats.cacheHits.Load(),
		CacheMisses:   r.stats.cacheMisses.Load(),
		CacheEntries:  r.store.cache.len(),
		Tables:        len(snap.tables),
		Filters:       len(snap.filters),
		Handlers:      len(snap.handlers),
		Transforms:    len(snap.transforms),
		Generation:    snap.generation,
	}
	if m.TotalRouted > 0 {
		m.AverageLatency = time.Duration(r.stats.latencyNanos.Load() / m.TotalRouted)
	}
	return m
}
