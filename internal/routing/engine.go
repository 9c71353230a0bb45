package routing

import (
	"context"
	"encoding/json"
	"reflect"

	"switchyard/internal/logger"
	"switchyard/internal/notify"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

// Evaluator runs boolean expressions against events. *cel.Evaluator implements it.
type Evaluator interface {
	ExpressionValidator
	EvaluateBool(ctx context.Context, expression string, ev models.Event) (bool, error)
}

// Engine is the pure decision logic shared by the router and the replay filters. It performs
// no I/O besides reporting expression failures.
type Engine struct {
	eval     Evaluator
	logger   logger.Logger
	notifier notify.Publisher
}

func NewEngine(eval Evaluator, log logger.Logger, notifier notify.Publisher) *Engine {
	if log == nil {
		log = logger.NopLogger()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Engine{eval: eval, logger: log, notifier: notifier}
}

// EvaluateRule reports whether every condition present on rule holds for ev. Invalid rules
// and failing expressions evaluate to false.
func (e *Engine) EvaluateRule(ctx context.Context, rule RouteRule, ev models.Event) bool {
	cr, err := compileConditions(rule, e.eval)
	if err != nil {
		e.report(ctx, ev, "rule_conditions", rule.ID, err)
		return false
	}
	return e.matches(ctx, cr, ev)
}

func (e *Engine) matches(ctx context.Context, r *compiledRule, ev models.Event) bool {
	if r.eventTypes != nil {
		if _, ok := r.eventTypes[ev.Type]; !ok {
			return false
		}
	}
	if r.typeRe != nil && !r.typeRe.MatchString(ev.Type) {
		return false
	}
	if r.sources != nil {
		if _, ok := r.sources[ev.Source]; !ok {
			return false
		}
	}
	if r.sourceRe != nil && !r.sourceRe.MatchString(ev.Source) {
		return false
	}
	if !fieldsMatch(ev, "metadata.", r.Conditions.Metadata) {
		return false
	}
	if !fieldsMatch(ev, "payload.", r.Conditions.Payload) {
		return false
	}
	if expr := r.Conditions.Expression; expr != "" {
		return e.expression(ctx, expr, ev, "rule_expression", r.ID)
	}
	return true
}

func fieldsMatch(ev models.Event, prefix string, want map[string]interface{}) bool {
	for key, expected := range want {
		got, ok := ev.Lookup(prefix + key)
		if !ok || !valuesEqual(got, expected) {
			return false
		}
	}
	return true
}

func (e *Engine) filterMatches(ctx context.Context, f *compiledFilter, ev models.Event) bool {
	c := f.Conditions
	if c.EventType != "" && c.EventType != ev.Type {
		return false
	}
	if c.Source != "" && c.Source != ev.Source {
		return false
	}
	if c.Expression != "" {
		return e.expression(ctx, c.Expression, ev, "filter_expression", f.ID)
	}
	return true
}

func (e *Engine) expression(ctx context.Context, expr string, ev models.Event, stage, ownerID string) bool {
	if e.eval == nil {
		return false
	}
	ok, err := e.eval.EvaluateBool(ctx, expr, ev)
	if err != nil {
		e.report(ctx, ev, stage, ownerID, err)
		return false
	}
	return ok
}

func (e *Engine) report(ctx context.Context, ev models.Event, stage, ownerID string, err error) {
	metrics.RoutingEvaluationErrorsTotal.WithLabelValues(stage).Inc()
	e.logger.WarnwCtx(ctx, "Expression evaluation failed, treating as no match",
		"stage", stage,
		"owner_id", ownerID,
		"event_id", ev.ID,
		"error", err,
	)
	e.notifier.Publish(notify.Notification{
		Kind:    notify.KindTransformationError,
		Subject: ev.ID,
		Detail:  notify.ErrorDetail{Error: err.Error(), EventID: ev.ID, Stage: stage},
	})
}

// ApplyFilters runs filters, which must already be in evaluation order, against ev. The input
// is never modified; a derived copy is returned in FilterResult.Event when a filter changed it.
// A transform that fails aborts the chain with an error.
func (e *Engine) applyFilters(ctx context.Context, filters []*compiledFilter, transforms map[string]Transform, ev models.Event) (FilterResult, error) {
	res := FilterResult{
		Passed:          true,
		Event:           ev,
		AppliedFilters:  []string{},
		Transformations: []string{},
	}

	own := func() {
		if !res.Modified {
			res.Event = res.Event.Clone()
			res.Modified = true
		}
	}

	for _, f := range filters {
		if !f.IsEnabled() || !e.filterMatches(ctx, f, res.Event) {
			continue
		}

		switch f.Type {
		case FilterInclude:
		case FilterExclude:
			res.AppliedFilters = append(res.AppliedFilters, f.ID)
			res.Passed = false
			res.ExcludedBy = f.ID
			return res, nil
		case FilterTransform:
			if name := f.Action.Transform; name != "" {
				derived, err := runTransform(ctx, transforms, name, res.Event)
				if err != nil {
					e.reportTransform(ctx, ev, f.ID, err)
					return res, err
				}
				res.Event = derived
				res.Modified = true
				res.Transformations = append(res.Transformations, name)
			}
			if len(f.Action.RemoveFields) > 0 {
				own()
				removeFields(&res.Event, f.Action.RemoveFields)
			}
		case FilterEnrich:
			own()
			res.Event.MergeMetadata(f.Action.AddMetadata)
			removeFields(&res.Event, f.Action.RemoveFields)
		}
		res.AppliedFilters = append(res.AppliedFilters, f.ID)
	}

	return res, nil
}

func runTransform(ctx context.Context, transforms map[string]Transform, name string, ev models.Event) (models.Event, error) {
	fn, ok := transforms[name]
	if !ok {
		return ev, configErr("transform %q is not registered", name)
	}
	return fn(ctx, ev.Clone())
}

func (e *Engine) reportTransform(ctx context.Context, ev models.Event, ownerID string, err error) {
	metrics.RoutingEvaluationErrorsTotal.WithLabelValues("transform").Inc()
	e.logger.ErrorwCtx(ctx, "Transformation failed",
		"owner_id", ownerID,
		"event_id", ev.ID,
		"error", err,
	)
	e.notifier.Publish(notify.Notification{
		Kind:    notify.KindTransformationError,
		Subject: ev.ID,
		Detail:  notify.ErrorDetail{Error: err.Error(), EventID: ev.ID, Stage: "transform"},
	})
}

func removeFields(ev *models.Event, paths []string) {
	for _, path := range paths {
		ev.Remove(path)
	}
}

// valuesEqual compares numbers by value, so 100 from YAML equals 100.0 from JSON.
func valuesEqual(a, b interface{}) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
