package routing

import (
	"time"

	"switchyard/pkg/models"
)

// RouteRule decides whether an event goes to the rule's destinations. Absent conditions are
// satisfied; present ones are combined with AND.
type RouteRule struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Enabled    *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Priority   int            `json:"priority" yaml:"priority"`
	Conditions RuleConditions `json:"conditions" yaml:"conditions"`
	Actions    RuleActions    `json:"actions" yaml:"actions"`
}

// IsEnabled treats an omitted flag as enabled.
func (r RouteRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type RuleConditions struct {
	EventType        string                 `json:"event_type,omitempty" yaml:"event_type,omitempty"`
	EventTypes       []string               `json:"event_types,omitempty" yaml:"event_types,omitempty"`
	EventTypePattern string                 `json:"event_type_pattern,omitempty" yaml:"event_type_pattern,omitempty"`
	Source           string                 `json:"source,omitempty" yaml:"source,omitempty"`
	Sources          []string               `json:"sources,omitempty" yaml:"sources,omitempty"`
	SourcePattern    string                 `json:"source_pattern,omitempty" yaml:"source_pattern,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Payload          map[string]interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
	Expression       string                 `json:"expression,omitempty" yaml:"expression,omitempty"`
}

type RuleActions struct {
	Routes           []string               `json:"routes" yaml:"routes"`
	Transform        string                 `json:"transform,omitempty" yaml:"transform,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	DelayMs          int                    `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`
	PriorityOverride *int                   `json:"priority_override,omitempty" yaml:"priority_override,omitempty"`
	// Duplicate keeps the table scan going after this rule matched.
	Duplicate bool `json:"duplicate,omitempty" yaml:"duplicate,omitempty"`
	// DLQ sends the event to the dead-letter handler when dispatch fails.
	DLQ bool `json:"dlq,omitempty" yaml:"dlq,omitempty"`
}

type RoutingTable struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name,omitempty" yaml:"name,omitempty"`
	Rules        []RouteRule `json:"rules" yaml:"rules"`
	DefaultRoute []string    `json:"default_route,omitempty" yaml:"default_route,omitempty"`
	Version      int         `json:"version" yaml:"version"`
	CreatedAt    time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time   `json:"updated_at" yaml:"-"`
}

type FilterType string

const (
	FilterInclude   FilterType = "include"
	FilterExclude   FilterType = "exclude"
	FilterTransform FilterType = "transform"
	FilterEnrich    FilterType = "enrich"
)

// order is the fixed evaluation position of a filter type.
func (t FilterType) order() int {
	switch t {
	case FilterInclude:
		return 0
	case FilterExclude:
		return 1
	case FilterTransform:
		return 2
	case FilterEnrich:
		return 3
	}
	return -1
}

type EventFilter struct {
	ID         string           `json:"id" yaml:"id"`
	Name       string           `json:"name,omitempty" yaml:"name,omitempty"`
	Type       FilterType       `json:"type" yaml:"type"`
	Enabled    *bool            `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Conditions FilterConditions `json:"conditions" yaml:"conditions"`
	Action     FilterAction     `json:"action" yaml:"action"`
}

func (f EventFilter) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

type FilterConditions struct {
	EventType  string `json:"event_type,omitempty" yaml:"event_type,omitempty"`
	Source     string `json:"source,omitempty" yaml:"source,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

type FilterAction struct {
	RemoveFields []string               `json:"remove_fields,omitempty" yaml:"remove_fields,omitempty"`
	AddMetadata  map[string]interface{} `json:"add_metadata,omitempty" yaml:"add_metadata,omitempty"`
	Transform    string                 `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// RoutingResult is the outcome of RouteEvent. Event is set only when filters or rules
// produced a derived copy of the input.
type RoutingResult struct {
	Matched  bool           `json:"matched"`
	Routes   []string       `json:"routes"`
	Event    *models.Event  `json:"event,omitempty"`
	Metadata ResultMetadata `json:"metadata"`
}

type ResultMetadata struct {
	RuleID          string        `json:"rule_id,omitempty"`
	RuleName        string        `json:"rule_name,omitempty"`
	Matches         []RuleMatch   `json:"matches,omitempty"`
	ProcessingTime  time.Duration `json:"processing_time"`
	Priority        int           `json:"priority"`
	DelayMs         int           `json:"delay_ms,omitempty"`
	DeadLetter      bool          `json:"dead_letter,omitempty"`
	DefaultRoute    bool          `json:"default_route,omitempty"`
	ExcludedBy      string        `json:"excluded_by,omitempty"`
	AppliedFilters  []string      `json:"applied_filters,omitempty"`
	Transformations []string      `json:"transformations,omitempty"`
	Cached          bool          `json:"cached"`
	Generation      uint64        `json:"generation"`
}

type RuleMatch struct {
	TableID  string `json:"table_id"`
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
}

// clone copies the slices so cached results are never shared with callers.
func (r RoutingResult) clone() RoutingResult {
	out := r
	out.Routes = append([]string{}, r.Routes...)
	out.Metadata.Matches = append([]RuleMatch(nil), r.Metadata.Matches...)
	out.Metadata.AppliedFilters = append([]string(nil), r.Metadata.AppliedFilters...)
	out.Metadata.Transformations = append([]string(nil), r.Metadata.Transformations...)
	if r.Event != nil {
		ev := r.Event.Clone()
		out.Event = &ev
	}
	return out
}

type FilterResult struct {
	Passed          bool         `json:"passed"`
	Event           models.Event `json:"event"`
	AppliedFilters  []string     `json:"applied_filters"`
	Transformations []string     `json:"transformations"`
	ExcludedBy      string       `json:"excluded_by,omitempty"`
	// Modified reports whether Event differs from the input.
	Modified bool `json:"modified"`
}

// Metrics is a point-in-time view of router counters.
type Metrics struct {
	TotalRouted    int64         `json:"total_routed"`
	Matched        int64         `json:"matched"`
	DefaultRouted  int64         `json:"default_routed"`
	Unrouted       int64         `json:"unrouted"`
	Filtered       int64         `json:"filtered"`
	Errors         int64         `json:"errors"`
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	CacheEntries   int           `json:"cache_entries"`
	AverageLatency time.Duration `json:"average_latency"`
	Tables         int           `json:"tables"`
	Filters        int           `json:"filters"`
	Handlers       int           `json:"handlers"`
	Transforms     int           `json:"transforms"`
	Generation     uint64        `json:"generation"`
}
