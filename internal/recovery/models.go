package recovery

import (
	"time"
)

type PlanType string

const (
	PlanDisasterRecovery PlanType = "disaster_recovery"
	PlanPointInTime      PlanType = "point_in_time"
	PlanServiceRecovery  PlanType = "service_recovery"
	PlanDataMigration    PlanType = "data_migration"
)

type StepType string

const (
	StepReplay   StepType = "replay"
	StepRestore  StepType = "restore"
	StepMigrate  StepType = "migrate"
	StepValidate StepType = "validate"
	StepRollback StepType = "rollback"
)

// Plan is an ordered, dependency-aware set of recovery steps.
type Plan struct {
	ID         string      `json:"id" bson:"_id"`
	Name       string      `json:"name" bson:"name"`
	Type       PlanType    `json:"type" bson:"type"`
	Enabled    bool        `json:"enabled" bson:"enabled"`
	Steps      []Step      `json:"steps" bson:"steps"`
	Triggers   *Triggers   `json:"triggers,omitempty" bson:"triggers,omitempty"`
	Validation *Validation `json:"validation,omitempty" bson:"validation,omitempty"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" bson:"updated_at"`
}

type Step struct {
	ID             string     `json:"id" bson:"id"`
	Name           string     `json:"name,omitempty" bson:"name,omitempty"`
	Type           StepType   `json:"type" bson:"type"`
	Dependencies   []string   `json:"dependencies,omitempty" bson:"dependencies,omitempty"`
	TimeoutSeconds int        `json:"timeout_seconds,omitempty" bson:"timeout_seconds,omitempty"`
	Retryable      bool       `json:"retryable" bson:"retryable"`
	MaxAttempts    int        `json:"max_attempts,omitempty" bson:"max_attempts,omitempty"`
	Config         StepConfig `json:"config" bson:"config"`
}

// StepConfig carries the handler input. ReplayConfigID is read by replay steps and
// Expressions by validate steps; Params is passed through to collaborator handlers.
type StepConfig struct {
	ReplayConfigID string                 `json:"replay_config_id,omitempty" bson:"replay_config_id,omitempty"`
	Expressions    []string               `json:"expressions,omitempty" bson:"expressions,omitempty"`
	Params         map[string]interface{} `json:"params,omitempty" bson:"params,omitempty"`
}

// Triggers start a plan without an operator. Conditions are evaluated against every
// directory change; Schedule is a five-field cron expression.
type Triggers struct {
	Conditions []string `json:"conditions,omitempty" bson:"conditions,omitempty"`
	Schedule   string   `json:"schedule,omitempty" bson:"schedule,omitempty"`
}

type Validation struct {
	Pre  []string `json:"pre,omitempty" bson:"pre,omitempty"`
	Post []string `json:"post,omitempty" bson:"post,omitempty"`
}

type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Execution is the record of one run of a plan.
type Execution struct {
	ID          string          `json:"id" bson:"_id"`
	PlanID      string          `json:"plan_id" bson:"plan_id"`
	PlanType    PlanType        `json:"plan_type" bson:"plan_type"`
	Trigger     string          `json:"trigger" bson:"trigger"`
	Status      ExecutionStatus `json:"status" bson:"status"`
	Steps       []StepResult    `json:"steps" bson:"steps"`
	Error       string          `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

type StepResult struct {
	StepID      string                 `json:"step_id" bson:"step_id"`
	Type        StepType               `json:"type" bson:"type"`
	Status      StepStatus             `json:"status" bson:"status"`
	Attempts    int                    `json:"attempts" bson:"attempts"`
	Error       string                 `json:"error,omitempty" bson:"error,omitempty"`
	Output      map[string]interface{} `json:"output,omitempty" bson:"output,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

func (e Execution) clone() Execution {
	out := e
	out.Steps = append([]StepResult(nil), e.Steps...)
	return out
}

// TriggerDetail is the detail of an AutoRecoveryTriggered notification.
type TriggerDetail struct {
	PlanID    string      `json:"plan_id"`
	Source    string      `json:"source"`
	Condition string      `json:"condition,omitempty"`
	Change    interface{} `json:"change,omitempty"`
}
