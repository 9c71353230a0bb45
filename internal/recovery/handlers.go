package recovery

import (
	"context"
	"fmt"
	"time"

	"switchyard/internal/broker"
	"switchyard/internal/constants"
	"switchyard/internal/replay"
	apperrors "switchyard/pkg/errors"
)

// StepRequest is what a handler receives for one attempt of one step.
type StepRequest struct {
	ExecutionID string
	Plan        Plan
	Step        Step
	Attempt     int
}

// StepHandler runs one step type. The returned output is stored on the step result.
type StepHandler interface {
	Execute(ctx context.Context, req StepRequest) (map[string]interface{}, error)
}

type StepHandlerFunc func(ctx context.Context, req StepRequest) (map[string]interface{}, error)

func (f StepHandlerFunc) Execute(ctx context.Context, req StepRequest) (map[string]interface{}, error) {
	return f(ctx, req)
}

// ReplayRunner is the part of the replay engine a replay step drives.
type ReplayRunner interface {
	StartReplay(ctx context.Context, configID string, opts replay.StartOptions) (string, error)
	Wait(ctx context.Context, sessionID string) (*replay.Session, error)
	StopReplay(sessionID string) error
}

// ReplayStep starts a replay session for the step's replay config and waits for it to
// finish. A session still running when the step times out is stopped.
type ReplayStep struct {
	Replays ReplayRunner
}

func (h ReplayStep) Execute(ctx context.Context, req StepRequest) (map[string]interface{}, error) {
	opts := replay.StartOptions{}
	if resume, ok := req.Step.Config.Params["resume_from_checkpoint"].(bool); ok {
		opts.ResumeFromCheckpoint = resume
	}

	id, err := h.Replays.StartReplay(ctx, req.Step.Config.ReplayConfigID, opts)
	if err != nil {
		return nil, err
	}

	s, err := h.Replays.Wait(ctx, id)
	if err != nil {
		if stopErr := h.Replays.StopReplay(id); stopErr != nil && !apperrors.IsSessionState(stopErr) {
			return nil, fmt.Errorf("replay session %s: %w (stop failed: %v)", id, err, stopErr)
		}
		return nil, fmt.Errorf("replay session %s: %w", id, err)
	}

	out := map[string]interface{}{
		"session_id": id,
		"status":     string(s.Status),
		"processed":  s.Progress.Processed,
		"successful": s.Progress.Successful,
		"failed":     s.Progress.Failed,
		"skipped":    s.Progress.Skipped,
	}
	if s.Status != replay.StatusCompleted {
		msg := s.Error
		if msg == "" {
			msg = string(s.Status)
		}
		return out, fmt.Errorf("replay session %s ended %s: %s", id, s.Status, msg)
	}
	return out, nil
}

// ValidateStep holds when every expression of the step holds over the service directory.
type ValidateStep struct {
	env expressionEnv
}

func (h ValidateStep) Execute(ctx context.Context, req StepRequest) (map[string]interface{}, error) {
	vars, err := h.env.vars(ctx, req.Plan, nil)
	if err != nil {
		return nil, err
	}
	if _, err := h.env.all(ctx, req.Step.Config.Expressions, vars); err != nil {
		return nil, err
	}
	return map[string]interface{}{"checked": len(req.Step.Config.Expressions)}, nil
}

// Command is published for steps carried out by other services (restore, migrate,
// rollback).
type Command struct {
	ExecutionID string                 `json:"execution_id"`
	PlanID      string                 `json:"plan_id"`
	StepID      string                 `json:"step_id"`
	Type        StepType               `json:"type"`
	Attempt     int                    `json:"attempt"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// CommandStep hands a step to another service by publishing a Command keyed by plan id.
type CommandStep struct {
	Producer broker.Producer
	Topic    string
}

func NewCommandStep(producer broker.Producer, topic string) CommandStep {
	if topic == "" {
		topic = constants.DefaultCommandTopic
	}
	return CommandStep{Producer: producer, Topic: topic}
}

func (h CommandStep) Execute(ctx context.Context, req StepRequest) (map[string]interface{}, error) {
	cmd := Command{
		ExecutionID: req.ExecutionID,
		PlanID:      req.Plan.ID,
		StepID:      req.Step.ID,
		Type:        req.Step.Type,
		Attempt:     req.Attempt,
		Params:      req.Step.Config.Params,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.Producer.Publish(ctx, h.Topic, req.Plan.ID, cmd); err != nil {
		return nil, fmt.Errorf("failed to publish %s command: %w", req.Step.Type, err)
	}
	return map[string]interface{}{"topic": h.Topic}, nil
}
