package routing

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "switchyard/pkg/errors"
)

// ExpressionValidator is satisfied by *cel.Evaluator.
type ExpressionValidator interface {
	ValidateBoolExpression(expression string) error
}

type compiledRule struct {
	RouteRule
	eventTypes map[string]struct{}
	sources    map[string]struct{}
	typeRe     *regexp.Regexp
	sourceRe   *regexp.Regexp
}

// cacheable reports whether the rule's decision depends only on type, source and metadata,
// and leaves the event untouched.
func (r *compiledRule) cacheable() bool {
	return len(r.Conditions.Payload) == 0 &&
		r.Conditions.Expression == "" &&
		r.Actions.Transform == "" &&
		len(r.Actions.Metadata) == 0
}

type compiledTable struct {
	RoutingTable
	rules     []*compiledRule
	cacheable bool
}

type compiledFilter struct {
	EventFilter
	seq int
}

func (f *compiledFilter) cacheable() bool {
	return f.Conditions.Expression == "" &&
		(f.Type == FilterInclude || f.Type == FilterExclude)
}

func configErr(format string, args ...interface{}) error {
	return apperrors.ErrConfiguration.WithMessagef(format, args...)
}

func stringSet(single string, list []string) map[string]struct{} {
	if single == "" && len(list) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(list)+1)
	if single != "" {
		set[single] = struct{}{}
	}
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set
}

// compileConditions prepares the predicates of a rule; actions are not checked.
func compileConditions(rule RouteRule, exprs ExpressionValidator) (*compiledRule, error) {
	cr := &compiledRule{
		RouteRule:  rule,
		eventTypes: stringSet(rule.Conditions.EventType, rule.Conditions.EventTypes),
		sources:    stringSet(rule.Conditions.Source, rule.Conditions.Sources),
	}

	var err error
	if p := rule.Conditions.EventTypePattern; p != "" {
		if cr.typeRe, err = regexp.Compile(p); err != nil {
			return nil, configErr("rule %s: invalid event_type_pattern %q: %v", rule.ID, p, err)
		}
	}
	if p := rule.Conditions.SourcePattern; p != "" {
		if cr.sourceRe, err = regexp.Compile(p); err != nil {
			return nil, configErr("rule %s: invalid source_pattern %q: %v", rule.ID, p, err)
		}
	}
	if expr := rule.Conditions.Expression; expr != "" {
		if exprs == nil {
			return nil, configErr("rule %s: expressions are not supported", rule.ID)
		}
		if err := exprs.ValidateBoolExpression(expr); err != nil {
			return nil, configErr("rule %s: %v", rule.ID, err)
		}
	}
	return cr, nil
}

func compileRule(rule RouteRule, exprs ExpressionValidator, transforms map[string]Transform) (*compiledRule, error) {
	if strings.TrimSpace(rule.ID) == "" {
		return nil, configErr("rule id is required")
	}
	cr, err := compileConditions(rule, exprs)
	if err != nil {
		return nil, err
	}

	if len(rule.Actions.Routes) == 0 && !rule.Actions.Duplicate {
		return nil, configErr("rule %s: at least one route is required", rule.ID)
	}
	for i, route := range rule.Actions.Routes {
		if strings.TrimSpace(route) == "" {
			return nil, configErr("rule %s: route %d is empty", rule.ID, i)
		}
	}
	if rule.Actions.DelayMs < 0 {
		return nil, configErr("rule %s: delay_ms must be non-negative", rule.ID)
	}
	if name := rule.Actions.Transform; name != "" {
		if _, ok := transforms[name]; !ok {
			return nil, configErr("rule %s: unknown transform %q", rule.ID, name)
		}
	}

	return cr, nil
}

func compileTable(table RoutingTable, exprs ExpressionValidator, transforms map[string]Transform) (*compiledTable, error) {
	if strings.TrimSpace(table.ID) == "" {
		return nil, configErr("routing table id is required")
	}
	for i, route := range table.DefaultRoute {
		if strings.TrimSpace(route) == "" {
			return nil, configErr("table %s: default route %d is empty", table.ID, i)
		}
	}

	ct := &compiledTable{RoutingTable: table, cacheable: true}
	ct.Rules = append([]RouteRule(nil), table.Rules...)
	ct.DefaultRoute = append([]string(nil), table.DefaultRoute...)

	seen := make(map[string]bool, len(table.Rules))
	for _, rule := range table.Rules {
		if seen[rule.ID] {
			return nil, configErr("table %s: duplicate rule id %q", table.ID, rule.ID)
		}
		seen[rule.ID] = true

		cr, err := compileRule(rule, exprs, transforms)
		if err != nil {
			return nil, err
		}
		ct.rules = append(ct.rules, cr)
	}

	// Stable so equal priorities keep declaration order.
	sort.SliceStable(ct.rules, func(i, j int) bool {
		return ct.rules[i].Priority < ct.rules[j].Priority
	})
	for i, cr := range ct.rules {
		ct.Rules[i] = cr.RouteRule
		if cr.IsEnabled() && !cr.cacheable() {
			ct.cacheable = false
		}
	}

	return ct, nil
}

func validateFieldPath(path string) error {
	root, rest, ok := strings.Cut(path, ".")
	if !ok || rest == "" || (root != "payload" && root != "metadata") {
		return fmt.Errorf("field path %q must start with payload. or metadata.", path)
	}
	return nil
}

func compileFilter(filter EventFilter, exprs ExpressionValidator, transforms map[string]Transform) (*compiledFilter, error) {
	if strings.TrimSpace(filter.ID) == "" {
		return nil, configErr("filter id is required")
	}
	if filter.Type.order() < 0 {
		return nil, configErr("filter %s: unknown type %q (valid: include, exclude, transform, enrich)", filter.ID, filter.Type)
	}
	if expr := filter.Conditions.Expression; expr != "" {
		if exprs == nil {
			return nil, configErr("filter %s: expressions are not supported", filter.ID)
		}
		if err := exprs.ValidateBoolExpression(expr); err != nil {
			return nil, configErr("filter %s: %v", filter.ID, err)
		}
	}
	for _, path := range filter.Action.RemoveFields {
		if err := validateFieldPath(path); err != nil {
			return nil, configErr("filter %s: %v", filter.ID, err)
		}
	}

	switch filter.Type {
	case FilterTransform:
		if filter.Action.Transform == "" && len(filter.Action.RemoveFields) == 0 {
			return nil, configErr("filter %s: transform filters need a transform or remove_fields", filter.ID)
		}
		if name := filter.Action.Transform; name != "" {
			if _, ok := transforms[name]; !ok {
				return nil, configErr("filter %s: unknown transform %q", filter.ID, name)
			}
		}
	case FilterEnrich:
		if len(filter.Action.AddMetadata) == 0 && len(filter.Action.RemoveFields) == 0 {
			return nil, configErr("filter %s: enrich filters need add_metadata or remove_fields", filter.ID)
		}
	}

	return &compiledFilter{EventFilter: filter}, nil
}

// sortFilters orders filters include, exclude, transform, enrich; registration order breaks ties.
func sortFilters(filters []*compiledFilter) {
	sort.SliceStable(filters, func(i, j int) bool {
		oi, oj := filters[i].Type.order(), filters[j].Type.order()
		if oi != oj {
			return oi < oj
		}
		return filters[i].seq < filters[j].seq
	})
}
