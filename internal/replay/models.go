package replay

import (
	"time"
)

type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
	ModeSelective   Mode = "selective"
	ModeTimeTravel  Mode = "time_travel"
)

type OnError string

const (
	OnErrorStop  OnError = "stop"
	OnErrorSkip  OnError = "skip"
	OnErrorRetry OnError = "retry"
	OnErrorDLQ   OnError = "dlq"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Config describes what to replay and how. It is stored and referenced by id when a
// session is started.
type Config struct {
	ID           string                 `json:"id" bson:"_id"`
	Name         string                 `json:"name" bson:"name"`
	Enabled      bool                   `json:"enabled" bson:"enabled"`
	Mode         Mode                   `json:"mode" bson:"mode"`
	Target       Target                 `json:"target" bson:"target"`
	TimeRange    *TimeRange             `json:"time_range,omitempty" bson:"time_range,omitempty"`
	VersionRange *VersionRange          `json:"version_range,omitempty" bson:"version_range,omitempty"`
	Options      Options                `json:"options" bson:"options"`
	Recovery     Recovery               `json:"recovery" bson:"recovery"`
	Filters      *Filters               `json:"filters,omitempty" bson:"filters,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at" bson:"updated_at"`
}

type Target struct {
	ServiceIDs []string `json:"service_ids,omitempty" bson:"service_ids,omitempty"`
	EventTypes []string `json:"event_types,omitempty" bson:"event_types,omitempty"`
	StreamIDs  []string `json:"stream_ids,omitempty" bson:"stream_ids,omitempty"`
}

type TimeRange struct {
	From *time.Time `json:"from,omitempty" bson:"from,omitempty"`
	To   *time.Time `json:"to,omitempty" bson:"to,omitempty"`
}

type VersionRange struct {
	From int64 `json:"from,omitempty" bson:"from,omitempty"`
	To   int64 `json:"to,omitempty" bson:"to,omitempty"`
}

type Options struct {
	BatchSize             int  `json:"batch_size,omitempty" bson:"batch_size"`
	DelayBetweenBatchesMs int  `json:"delay_between_batches_ms,omitempty" bson:"delay_between_batches_ms"`
	MaxConcurrency        int  `json:"max_concurrency,omitempty" bson:"max_concurrency"`
	SkipFailed            bool `json:"skip_failed" bson:"skip_failed"`
	CreateCheckpoints     bool `json:"create_checkpoints" bson:"create_checkpoints"`
	DryRun                bool `json:"dry_run" bson:"dry_run"`
	RespectOriginalTiming bool `json:"respect_original_timing" bson:"respect_original_timing"`
}

func (o Options) DelayBetweenBatches() time.Duration {
	return time.Duration(o.DelayBetweenBatchesMs) * time.Millisecond
}

type Recovery struct {
	Enabled           bool    `json:"enabled" bson:"enabled"`
	MaxRetries        *int    `json:"max_retries,omitempty" bson:"max_retries,omitempty"`
	RetryDelayMs      int     `json:"retry_delay_ms,omitempty" bson:"retry_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier,omitempty" bson:"backoff_multiplier"`
	OnError           OnError `json:"on_error,omitempty" bson:"on_error"`
}

// Retries is the retry budget of the retry policy. Zero means the first failure is final.
func (r Recovery) Retries() int {
	if r.MaxRetries == nil {
		return 0
	}
	return *r.MaxRetries
}

func (r Recovery) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// Filters select which fetched events are delivered. Include and Exclude are regular
// expressions matched against the event type and source.
type Filters struct {
	Include    []string `json:"include,omitempty" bson:"include,omitempty"`
	Exclude    []string `json:"exclude,omitempty" bson:"exclude,omitempty"`
	Expression string   `json:"expression,omitempty" bson:"expression,omitempty"`
}

// StartOptions tune a single session. A non-nil Overrides section replaces the matching
// section of the stored config for this session only.
type StartOptions struct {
	ResumeFromCheckpoint bool       `json:"resume_from_checkpoint"`
	Overrides            *Overrides `json:"overrides,omitempty"`
}

type Overrides struct {
	Target       *Target       `json:"target,omitempty"`
	TimeRange    *TimeRange    `json:"time_range,omitempty"`
	VersionRange *VersionRange `json:"version_range,omitempty"`
	Options      *Options      `json:"options,omitempty"`
	Recovery     *Recovery     `json:"recovery,omitempty"`
	Filters      *Filters      `json:"filters,omitempty"`
}

type Progress struct {
	Total          int    `json:"total_events"`
	Processed      int    `json:"processed_events"`
	Successful     int    `json:"successful_events"`
	Failed         int    `json:"failed_events"`
	Skipped        int    `json:"skipped_events"`
	Position       int    `json:"position"`
	CurrentEventID string `json:"current_event_id,omitempty"`
	Batches        int    `json:"batches"`
}

type SessionMetrics struct {
	StartedAt      *time.Time `json:"started_at,omitempty"`
	PausedAt       *time.Time `json:"paused_at,omitempty"`
	ResumedAt      *time.Time `json:"resumed_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ProcessingRate float64    `json:"processing_rate"`
	AvgEventSize   float64    `json:"avg_event_size"`
}

// Checkpoint is a resumable position: Position is the log offset of the next event to
// replay under the session's query.
type Checkpoint struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Position  int       `json:"position"`
	Label     string    `json:"label"`
	Processed int       `json:"processed"`
	EventID   string    `json:"event_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventError struct {
	EventID    string    `json:"event_id"`
	ServiceID  string    `json:"service_id,omitempty"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
	Resolved   bool      `json:"resolved"`
}

// Session is a point-in-time copy of a replay run.
type Session struct {
	ID          string         `json:"id"`
	ConfigID    string         `json:"config_id"`
	Status      Status         `json:"status"`
	Config      Config         `json:"config"`
	Progress    Progress       `json:"progress"`
	Metrics     SessionMetrics `json:"metrics"`
	Checkpoints []Checkpoint   `json:"checkpoints"`
	Errors      []EventError   `json:"errors"`
	DryRun      bool           `json:"dry_run"`
	Error       string         `json:"error,omitempty"`
}
