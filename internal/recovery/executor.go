package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"switchyard/internal/config"
	"switchyard/internal/constants"
	"switchyard/internal/directory"
	"switchyard/internal/logger"
	"switchyard/internal/notify"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/logging"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
	"switchyard/pkg/retry"
	"switchyard/pkg/schema"
	"switchyard/pkg/tracing"
)

const tracerName = "recovery"

// Dependencies of the executor. Directory and Evaluator are required; the repositories
// default to in-memory implementations.
type Dependencies struct {
	Plans      PlanRepository
	Executions ExecutionRepository
	Directory  directory.Directory
	Evaluator  Evaluator
	Schema     *schema.Validator
}

// Schedules runs plans on a cron schedule.
type Schedules interface {
	Schedule(planID, spec string) error
	Unschedule(planID string)
}

type Option func(*Executor)

func WithLogger(log logger.Logger) Option {
	return func(e *Executor) { e.logger = log }
}

func WithNotifier(p notify.Publisher) Option {
	return func(e *Executor) { e.notifier = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithSleep replaces the wait between step attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

func WithConfig(cfg config.RecoveryConfig) Option {
	return func(e *Executor) { e.cfg = cfg }
}

// WithReplays registers the built-in replay step handler.
func WithReplays(r ReplayRunner) Option {
	return func(e *Executor) { e.handlers[StepReplay] = ReplayStep{Replays: r} }
}

type Executor struct {
	deps Dependencies
	env  expressionEnv

	logger   logger.Logger
	notifier notify.Publisher
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	cfg      config.RecoveryConfig

	mu        sync.RWMutex
	handlers  map[StepType]StepHandler
	schedules Schedules
	active    map[string]string
	closed    bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewExecutor(deps Dependencies, opts ...Option) *Executor {
	if deps.Plans == nil {
		deps.Plans = NewMemoryPlans()
	}

	e := &Executor{
		deps:     deps,
		env:      expressionEnv{eval: deps.Evaluator, dir: deps.Directory},
		logger:   logger.NopLogger(),
		notifier: notify.Discard,
		now:      time.Now,
		sleep:    retry.Sleep,
		handlers: make(map[StepType]StepHandler),
		active:   make(map[string]string),
	}
	e.handlers[StepValidate] = ValidateStep{env: e.env}
	for _, opt := range opts {
		opt(e)
	}
	if e.deps.Executions == nil {
		limit := e.cfg.ExecutionHistoryLimit
		if limit <= 0 {
			limit = constants.DefaultExecutionHistoryLimit
		}
		e.deps.Executions = NewMemoryExecutions(limit)
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	return e
}

// RegisterStepHandler installs h for steps of type t, replacing any earlier handler.
func (e *Executor) RegisterStepHandler(t StepType, h StepHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[t] = h
}

func (e *Executor) handler(t StepType) StepHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.handlers[t]
}

// UseSchedules attaches s and schedules every stored plan that has a cron trigger.
func (e *Executor) UseSchedules(ctx context.Context, s Schedules) error {
	e.mu.Lock()
	e.schedules = s
	e.mu.Unlock()

	plans, err := e.deps.Plans.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range plans {
		if p.Triggers == nil || p.Triggers.Schedule == "" {
			continue
		}
		if err := s.Schedule(p.ID, p.Triggers.Schedule); err != nil {
			e.logger.ErrorwCtx(logging.WithPlanID(ctx, p.ID), "Failed to schedule recovery plan", "schedule", p.Triggers.Schedule, "error", err)
		}
	}
	return nil
}

func (e *Executor) currentSchedules() Schedules {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.schedules
}

// RegisterPlan validates p and stores it, replacing a plan with the same id.
func (e *Executor) RegisterPlan(ctx context.Context, p Plan) (Plan, error) {
	var exprs ExpressionValidator
	if e.deps.Evaluator != nil {
		exprs = e.deps.Evaluator
	}
	if err := validatePlan(p, e.deps.Schema, exprs); err != nil {
		return Plan{}, err
	}

	existing, err := e.deps.Plans.Get(ctx, p.ID)
	if err != nil {
		return Plan{}, err
	}
	now := e.now().UTC()
	if existing != nil {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if s := e.currentSchedules(); s != nil {
		if p.Triggers != nil && p.Triggers.Schedule != "" {
			if err := s.Schedule(p.ID, p.Triggers.Schedule); err != nil {
				return Plan{}, apperrors.ErrConfiguration.WithMessagef("recovery plan %q: invalid schedule %q", p.ID, p.Triggers.Schedule).WithCause(err)
			}
		} else {
			s.Unschedule(p.ID)
		}
	}

	if err := e.deps.Plans.Save(ctx, p); err != nil {
		return Plan{}, err
	}
	e.logger.InfowCtx(logging.WithPlanID(ctx, p.ID), "Recovery plan registered",
		"type", p.Type,
		"steps", len(p.Steps),
	)
	return p, nil
}

func (e *Executor) RemovePlan(ctx context.Context, id string) error {
	if err := e.deps.Plans.Delete(ctx, id); err != nil {
		return err
	}
	if s := e.currentSchedules(); s != nil {
		s.Unschedule(id)
	}
	return nil
}

func (e *Executor) GetPlan(ctx context.Context, id string) (*Plan, error) {
	p, err := e.deps.Plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.ErrNotFound.WithMessagef("recovery plan %s not found", id)
	}
	return p, nil
}

func (e *Executor) ListPlans(ctx context.Context) ([]Plan, error) {
	return e.deps.Plans.List(ctx)
}

func (e *Executor) GetExecution(ctx context.Context, id string) (*Execution, error) {
	ex, err := e.deps.Executions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, apperrors.ErrNotFound.WithMessagef("recovery execution %s not found", id)
	}
	return ex, nil
}

// ListExecutions returns the newest executions of planID, or of every plan when planID
// is empty.
func (e *Executor) ListExecutions(ctx context.Context, planID string, limit int) ([]Execution, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	return e.deps.Executions.List(ctx, planID, limit)
}

// ExecuteRecoveryPlan runs the plan to completion. The execution record is returned for
// failed runs too, together with the error that ended them.
func (e *Executor) ExecuteRecoveryPlan(ctx context.Context, planID string) (*Execution, error) {
	p, err := e.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, *p, constants.RecoveryTriggerSourceManual, nil)
}

// Shutdown cancels executions started by triggers and waits for them to return.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return apperrors.ErrTimeout.WithMessage("recovery executions did not stop in time").WithCause(ctx.Err())
	}
}

// spawn runs fn on a goroutine tracked by Shutdown. It reports false once Shutdown has
// begun, in which case fn is not run.
func (e *Executor) spawn(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return true
}

func (e *Executor) claim(planID, execID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if running, ok := e.active[planID]; ok {
		return apperrors.ErrConflict.WithMessagef("recovery plan %s is already executing (%s)", planID, running)
	}
	e.active[planID] = execID
	return nil
}

func (e *Executor) release(planID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, planID)
}

// execution guards the record of a running plan. Steps of one wave update it concurrently.
type execution struct {
	mu    sync.Mutex
	rec   Execution
	index map[string]int
}

func (x *execution) step(id string, fn func(*StepResult)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(&x.rec.Steps[x.index[id]])
}

func (x *execution) snapshot() Execution {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.rec.clone()
}

func (e *Executor) execute(ctx context.Context, p Plan, source string, change *models.DirectoryChange) (*Execution, error) {
	if !p.Enabled {
		return nil, apperrors.ErrConfiguration.WithMessagef("recovery plan %s is disabled", p.ID)
	}
	for _, s := range p.Steps {
		if e.handler(s.Type) == nil {
			return nil, apperrors.ErrConfiguration.WithMessagef("recovery plan %s: no handler for %s steps", p.ID, s.Type)
		}
	}
	stages, err := waves(p.Steps)
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithMessagef("recovery plan %s: %v", p.ID, err)
	}

	x := &execution{
		rec: Execution{
			ID:        uuid.NewString(),
			PlanID:    p.ID,
			PlanType:  p.Type,
			Trigger:   source,
			Status:    ExecutionRunning,
			StartedAt: e.now().UTC(),
		},
		index: make(map[string]int, len(p.Steps)),
	}
	for i, s := range p.Steps {
		x.rec.Steps = append(x.rec.Steps, StepResult{StepID: s.ID, Type: s.Type, Status: StepPending})
		x.index[s.ID] = i
	}

	if err := e.claim(p.ID, x.rec.ID); err != nil {
		return nil, err
	}
	defer e.release(p.ID)

	ctx = logging.WithPlanID(ctx, p.ID)
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "recovery.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("recovery.plan_id", p.ID),
		attribute.String("recovery.execution_id", x.rec.ID),
		attribute.String("recovery.trigger", source),
	)

	e.save(ctx, x)
	e.notifier.Publish(notify.Notification{Kind: notify.KindRecoveryPlanStarted, Subject: p.ID, Detail: x.snapshot()})
	e.logger.InfowCtx(ctx, "Recovery plan started", "execution_id", x.rec.ID, "trigger", source)

	runErr := e.run(ctx, p, x, stages, change)
	if runErr != nil {
		tracing.RecordError(span, runErr)
	}
	return e.finish(ctx, p, x, runErr)
}

func (e *Executor) run(ctx context.Context, p Plan, x *execution, stages [][]Step, change *models.DirectoryChange) error {
	if p.Validation != nil && len(p.Validation.Pre) > 0 {
		if err := e.check(ctx, p, change, p.Validation.Pre); err != nil {
			return apperrors.ErrValidation.WithMessagef("pre-validation of plan %s failed", p.ID).WithCause(err)
		}
	}

	for _, wave := range stages {
		g, gctx := errgroup.WithContext(ctx)
		for _, step := range wave {
			step := step
			g.Go(func() error {
				return e.runStep(gctx, p, x, step)
			})
		}
		err := g.Wait()
		e.save(ctx, x)
		if err != nil {
			return err
		}
	}

	if p.Validation != nil && len(p.Validation.Post) > 0 {
		if err := e.check(ctx, p, change, p.Validation.Post); err != nil {
			return apperrors.ErrValidation.WithMessagef("post-validation of plan %s failed", p.ID).WithCause(err)
		}
	}
	return nil
}

func (e *Executor) check(ctx context.Context, p Plan, change *models.DirectoryChange, exprs []string) error {
	vars, err := e.env.vars(ctx, p, change)
	if err != nil {
		return err
	}
	_, err = e.env.all(ctx, exprs, vars)
	return err
}

func (e *Executor) attempts(s Step) int {
	if !s.Retryable {
		return 1
	}
	switch {
	case s.MaxAttempts > 0:
		return s.MaxAttempts
	case e.cfg.DefaultStepMaxAttempts > 0:
		return e.cfg.DefaultStepMaxAttempts
	default:
		return constants.DefaultRecoveryMaxAttempt
	}
}

func (e *Executor) timeout(s Step) time.Duration {
	switch {
	case s.TimeoutSeconds > 0:
		return time.Duration(s.TimeoutSeconds) * time.Second
	case e.cfg.DefaultStepTimeoutSecs > 0:
		return time.Duration(e.cfg.DefaultStepTimeoutSecs) * time.Second
	default:
		return constants.DefaultRecoveryStepTimeout
	}
}

// runStep runs one step under its timeout, retrying a retryable step with exponential
// backoff until its attempts are spent.
func (e *Executor) runStep(ctx context.Context, p Plan, x *execution, s Step) error {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "recovery.step")
	defer span.End()
	span.SetAttributes(
		attribute.String("recovery.step_id", s.ID),
		attribute.String("recovery.step_type", string(s.Type)),
	)

	maxAttempts := e.attempts(s)
	timeout := e.timeout(s)
	schedule := retry.NewSchedule(constants.DefaultRecoveryRetryDelay, constants.DefaultBackoffMultiplier, maxAttempts-1, constants.MaxRecoveryRetryDelay)

	started := e.now().UTC()
	x.step(s.ID, func(r *StepResult) {
		r.Status = StepRunning
		r.StartedAt = &started
	})

	for attempt := 1; ; attempt++ {
		begin := time.Now()
		out, err := e.attempt(ctx, StepRequest{ExecutionID: x.rec.ID, Plan: p, Step: s, Attempt: attempt}, timeout)

		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.ObserveRecoveryStepDuration(string(s.Type), status, time.Since(begin))

		x.step(s.ID, func(r *StepResult) {
			r.Attempts = attempt
			r.Output = out
			if err != nil {
				r.Error = err.Error()
			} else {
				r.Error = ""
			}
		})

		if err == nil {
			done := e.now().UTC()
			x.step(s.ID, func(r *StepResult) {
				r.Status = StepCompleted
				r.CompletedAt = &done
			})
			return nil
		}

		e.logger.WarnwCtx(ctx, "Recovery step failed",
			"step_id", s.ID,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)

		delay, more := schedule.Next()
		if more && ctx.Err() == nil {
			if sleepErr := e.sleep(ctx, delay); sleepErr == nil {
				continue
			}
		}

		done := e.now().UTC()
		x.step(s.ID, func(r *StepResult) {
			r.Status = StepFailed
			r.CompletedAt = &done
		})
		tracing.RecordError(span, err)
		return apperrors.ErrPlanStep.
			WithMessagef("step %s failed after %d attempt(s)", s.ID, attempt).
			WithDetail("step_id", s.ID).
			WithCause(err)
	}
}

type stepOutcome struct {
	out map[string]interface{}
	err error
}

// attempt runs the handler once. The step fails when the timeout passes, whether or not the
// handler honors its context.
func (e *Executor) attempt(ctx context.Context, req StepRequest, timeout time.Duration) (map[string]interface{}, error) {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h := e.handler(req.Step.Type)
	done := make(chan stepOutcome, 1)
	go func() {
		var res stepOutcome
		defer func() {
			if r := recover(); r != nil {
				res.err = apperrors.RecoverPanicAs(r, apperrors.ErrPlanStep)
			}
			done <- res
		}()
		res.out, res.err = h.Execute(stepCtx, req)
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-stepCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.ErrTimeout.WithMessagef("step %s timed out after %s", req.Step.ID, timeout)
	}
}

func (e *Executor) save(ctx context.Context, x *execution) {
	if err := e.deps.Executions.Save(context.WithoutCancel(ctx), x.snapshot()); err != nil {
		e.logger.ErrorwCtx(ctx, "Failed to store recovery execution", "execution_id", x.rec.ID, "error", err)
	}
}

func (e *Executor) finish(ctx context.Context, p Plan, x *execution, runErr error) (*Execution, error) {
	done := e.now().UTC()

	x.mu.Lock()
	x.rec.CompletedAt = &done
	if runErr == nil {
		x.rec.Status = ExecutionCompleted
	} else {
		x.rec.Status = ExecutionFailed
		x.rec.Error = runErr.Error()
		for i := range x.rec.Steps {
			if x.rec.Steps[i].Status == StepPending {
				x.rec.Steps[i].Status = StepSkipped
			}
		}
	}
	x.mu.Unlock()

	e.save(ctx, x)
	rec := x.snapshot()
	metrics.RecoveryExecutionsTotal.WithLabelValues(string(p.Type), string(rec.Status)).Inc()

	if runErr != nil {
		e.notifier.Publish(notify.Notification{
			Kind:    notify.KindRecoveryPlanFailed,
			Subject: p.ID,
			Detail:  notify.ErrorDetail{Error: runErr.Error(), Stage: "recovery"},
		})
		e.logger.ErrorwCtx(ctx, "Recovery plan failed", "execution_id", rec.ID, "error", runErr)
		return &rec, runErr
	}

	e.notifier.Publish(notify.Notification{Kind: notify.KindRecoveryPlanCompleted, Subject: p.ID, Detail: rec})
	e.logger.InfowCtx(ctx, "Recovery plan completed",
		"execution_id", rec.ID,
		"duration", done.Sub(rec.StartedAt),
	)
	return &rec, nil
}

