package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchyard/internal/config"
	"switchyard/internal/directory"
	"switchyard/internal/logger"
	"switchyard/internal/notify"
	"switchyard/internal/replay"
	"switchyard/pkg/cel"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/models"
	"switchyard/pkg/schema"
)

type captured struct {
	mu   sync.Mutex
	list []notify.Notification
}

func (c *captured) handle(n notify.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, n)
}

func (c *captured) of(kind notify.Kind) []notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Notification
	for _, n := range c.list {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(e string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, e)
}

func (tr *trace) index(e string) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i, x := range tr.events {
		if x == e {
			return i
		}
	}
	return -1
}

type fixture struct {
	bus      *notify.Bus
	registry *directory.Registry
	notes    *captured
	sleeps   []time.Duration
	sleepMu  sync.Mutex
	deps     Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{bus: notify.NewBus(), notes: &captured{}}
	f.bus.Subscribe(f.notes.handle)
	f.registry = directory.NewRegistry(f.bus)
	require.NoError(t, f.registry.Register(context.Background(), models.Service{ID: "billing", Subscriptions: []string{"order.*"}}))

	eval, err := cel.NewMapEvaluator(ExpressionVariables)
	require.NoError(t, err)

	f.deps = Dependencies{
		Directory: f.registry,
		Evaluator: eval,
		Schema:    schema.MustNew(),
	}
	return f
}

func (f *fixture) executor(opts ...Option) *Executor {
	sleep := func(ctx context.Context, d time.Duration) error {
		f.sleepMu.Lock()
		f.sleeps = append(f.sleeps, d)
		f.sleepMu.Unlock()
		return ctx.Err()
	}
	opts = append([]Option{WithNotifier(f.bus), WithSleep(sleep), WithLogger(logger.NopLogger())}, opts...)
	return NewExecutor(f.deps, opts...)
}

func plan(id string, steps ...Step) Plan {
	return Plan{ID: id, Name: "plan " + id, Type: PlanServiceRecovery, Enabled: true, Steps: steps}
}

func step(id string, t StepType, deps ...string) Step {
	return Step{ID: id, Type: t, Dependencies: deps}
}

func ok(tr *trace, id string) StepHandlerFunc {
	return func(ctx context.Context, req StepRequest) (map[string]interface{}, error) {
		tr.add("start:" + req.Step.ID)
		tr.add("end:" + req.Step.ID)
		return nil, nil
	}
}

func TestWaves(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		want    [][]string
		wantErr string
	}{
		{
			name:  "linear",
			steps: []Step{step("a", StepRestore), step("b", StepMigrate, "a"), step("c", StepValidate, "b")},
			want:  [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name:  "diamond",
			steps: []Step{step("a", StepRestore), step("b", StepMigrate, "a"), step("c", StepReplay, "a"), step("d", StepValidate, "b", "c")},
			want:  [][]string{{"a"}, {"b", "c"}, {"d"}},
		},
		{
			name:  "independent",
			steps: []Step{step("a", StepRestore), step("b", StepRestore)},
			want:  [][]string{{"a", "b"}},
		},
		{name: "unknown dependency", steps: []Step{step("a", StepRestore, "ghost")}, wantErr: "unknown step"},
		{name: "self dependency", steps: []Step{step("a", StepRestore, "a")}, wantErr: "itself"},
		{name: "cycle", steps: []Step{step("a", StepRestore, "c"), step("b", StepRestore, "a"), step("c", StepRestore, "b")}, wantErr: "cycle"},
		{name: "duplicate", steps: []Step{step("a", StepRestore), step("a", StepMigrate)}, wantErr: "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := waves(tt.steps)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			var ids [][]string
			for _, w := range got {
				var wave []string
				for _, s := range w {
					wave = append(wave, s.ID)
				}
				ids = append(ids, wave)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRegisterPlan_Rejects(t *testing.T) {
	replayStep := step("r", StepReplay)
	replayStep.Config.ReplayConfigID = "orders"

	tests := []struct {
		name string
		plan Plan
	}{
		{name: "cycle", plan: plan("p", step("a", StepRestore, "b"), step("b", StepRestore, "a"))},
		{name: "unknown dependency", plan: plan("p", step("a", StepRestore, "zzz"))},
		{name: "replay without config", plan: plan("p", step("r", StepReplay))},
		{name: "validate without expressions", plan: plan("p", step("v", StepValidate))},
		{name: "no steps", plan: plan("p")},
		{name: "unknown type", plan: Plan{ID: "p", Name: "p", Type: "weekly", Enabled: true, Steps: []Step{replayStep}}},
		{name: "missing name", plan: Plan{ID: "p", Type: PlanPointInTime, Steps: []Step{replayStep}}},
		{
			name: "bad trigger expression",
			plan: func() Plan {
				p := plan("p", replayStep)
				p.Triggers = &Triggers{Conditions: []string{"change.action =="}}
				return p
			}(),
		},
		{
			name: "non-bool validation",
			plan: func() Plan {
				p := plan("p", replayStep)
				p.Validation = &Validation{Pre: []string{"1 + 2"}}
				return p
			}(),
		},
	}

	f := newFixture(t)
	e := f.executor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RegisterPlan(context.Background(), tt.plan)
			assert.True(t, apperrors.IsConfiguration(err), "got %v", err)
		})
	}

	plans, err := e.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestExecute_RunsWavesConcurrently(t *testing.T) {
	f := newFixture(t)
	e := f.executor()
	ctx := context.Background()
	tr := &trace{}

	var barrier sync.WaitGroup
	barrier.Add(2)
	meet := StepHandlerFunc(func(ctx context.Context, req StepRequest) (map[string]interface{}, error) {
		tr.add("start:" + req.Step.ID)
		barrier.Done()
		barrier.Wait()
		tr.add("end:" + req.Step.ID)
		return map[string]interface{}{"step": req.Step.ID}, nil
	})

	e.RegisterStepHandler(StepRestore, ok(tr, "a"))
	e.RegisterStepHandler(StepMigrate, meet)
	e.RegisterStepHandler(StepRollback, ok(tr, "d"))

	b := step("b", StepMigrate, "a")
	b.TimeoutSeconds = 5
	c := step("c", StepMigrate, "a")
	c.TimeoutSeconds = 5
	_, err := e.RegisterPlan(ctx, plan("diamond", step("a", StepRestore), b, c, step("d", StepRollback, "b", "c")))
	require.NoError(t, err)

	exec, err := e.ExecuteRecoveryPlan(ctx, "diamond")
	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, exec.Status)
	assert.Equal(t, "manual", exec.Trigger)
	require.NotNil(t, exec.CompletedAt)

	assert.Less(t, tr.index("end:a"), tr.index("start:b"))
	assert.Less(t, tr.index("end:a"), tr.index("start:c"))
	assert.Less(t, tr.index("end:b"), tr.index("start:d"))
	assert.Less(t, tr.index("end:c"), tr.index("start:d"))

	for _, r := range exec.Steps {
		assert.Equal(t, StepCompleted, r.Status, r.StepID)
		assert.Equal(t, 1, r.Attempts)
	}
	assert.Equal(t, map[string]interface{}{"step": "b"}, exec.Steps[1].Output)

	assert.Len(t, f.notes.of(notify.KindRecoveryPlanStarted), 1)
	assert.Len(t, f.notes.of(notify.KindRecoveryPlanCompleted), 1)

	stored, err := e.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, stored.Status)
}

func TestExecute_RetryableStepRetriesWithBackoff(t *testing.T) {
	f := newFixture(t)
	e := f.executor()
	ctx := context.Background()

	calls := 0
	e.RegisterStepHandler(StepRestore, StepHandlerFunc(func(ctx context.Context, req StepRequest) (map[string]interface{}, error) {
		calls++
		assert.Equal(t, calls, req.Attempt)
		if calls < 3 {
			return nil, errors.New("snapshot not ready")
		}
		return nil, nil
	}))

	s := step("restore", StepRestore)
	s.Retryable = true
	_, err := e.RegisterPlan(ctx, plan("retry", s))
	require.NoError(t, err)

	exec, err := e.ExecuteRecoveryPlan(ctx, "retry")
	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, exec.Status)
	assert.Equal(t, 3, exec.Steps[0].Attempts)
	assert.Empty(t, exec.Steps[0].Error)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)
}

func TestExecute_FailureAbortsPlan(t *testing.T) {
	tests := []struct {
		name      string
		retryable bool
		attempts  int
	}{
		{name: "not retryable", retryable: false, attempts: 1},
		{name: "retries exhausted", retryable: true, attempts: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := f.executor(WithConfig(config.RecoveryConfig{DefaultStepMaxAttempts: 2}))
			ctx := context.Background()
			tr := &trace{}

			e.RegisterStepHandler(StepRestore, StepHandlerFunc(func(context.Context, StepRequest) (map[string]interface{}, error) {
				return nil, errors.New("backup missing")
			}))
			e.RegisterStepHandler(StepMigrate, ok(tr, "b"))

			a := step("a", StepRestore)
			a.Retryable = tt.retryable
			_, err := e.RegisterPlan(ctx, plan("abort", a, step("b", StepMigrate, "a")))
			require.NoError(t, err)

			exec, err := e.ExecuteRecoveryPlan(ctx, "abort")
			require.Error(t, err)
			assert.True(t, apperrors.IsPlanStep(err))
			require.NotNil(t, exec)
			assert.Equal(t, ExecutionFailed, exec.Status)
			assert.NotEmpty(t, exec.Error)
			assert.Equal(t, StepFailed, exec.Steps[0].Status)
			assert.Equal(t, tt.attempts, exec.Steps[0].Attempts)
			assert.Contains(t, exec.Steps[0].Error, "backup missing")
			assert.Equal(t, StepSkipped, exec.Steps[1].Status)
			assert.Equal(t, -1, tr.index("start:b"))
			assert.Len(t, f.notes.of(notify.KindRecoveryPlanFailed), 1)
		})
	}
}

func TestExecute_StepTimeout(t *testing.T) {
	f := newFixture(t)
	e := f.executor()
	ctx := context.Background()

	stuck := make(chan struct{})
	defer close(stuck)
	e.RegisterStepHandler(StepRestore, StepHandlerFunc(func(context.Context, StepRequest) (map[string]interface{}, error) {
		<-stuck
		return nil, nil
	}))

	s := step("slow", StepRestore)
	s.TimeoutSeconds = 1
	_, err := e.RegisterPlan(ctx, plan("timeout", s))
	require.NoError(t, err)

	start := time.Now()
	exec, err := e.ExecuteRecoveryPlan(ctx, "timeout")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.True(t, errors.Is(err, apperrors.ErrTimeout), "got %v", err)
	assert.Equal(t, StepFailed, exec.Steps[0].Status)
	assert.Contains(t, exec.Steps[0].Error, "timed out")
}

func TestExecute_Validations(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		validation Validation
		stepStatus StepStatus
		wantErr    bool
	}{
		{name: "all hold", validation: Validation{Pre: []string{`"billing" in directory.by_id`}, Post: []string{`directory.healthy == 1`}}, stepStatus: StepCompleted},
		{name: "pre fails", validation: Validation{Pre: []string{`directory.healthy >= 2`}}, stepStatus: StepSkipped, wantErr: true},
		{name: "post fails", validation: Validation{Post: []string{`directory.total == 0`}}, stepStatus: StepCompleted, wantErr: true},
		{name: "pre errors", validation: Validation{Pre: []string{`directory.by_id["crm"].status == "healthy"`}}, stepStatus: StepSkipped, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := f.executor()
			e.RegisterStepHandler(StepRestore, ok(&trace{}, "a"))

			p := plan("validated", step("a", StepRestore))
			p.Validation = &tt.validation
			_, err := e.RegisterPlan(ctx, p)
			require.NoError(t, err)

			exec, err := e.ExecuteRecoveryPlan(ctx, "validated")
			if tt.wantErr {
				assert.True(t, apperrors.IsValidation(err), "got %v", err)
				assert.Equal(t, ExecutionFailed, exec.Status)
			} else {
				require.NoError(t, err)
				assert.Equal(t, ExecutionCompleted, exec.Status)
			}
			assert.Equal(t, tt.stepStatus, exec.Steps[0].Status)
		})
	}
}

func TestValidateStep(t *testing.T) {
	f := newFixture(t)
	e := f.executor()
	ctx := context.Background()

	holds := step("check", StepValidate)
	holds.Config.Expressions = []string{
		`directory.services.exists(s, s.id == "billing" && "order.*" in s.subscriptions)`,
		`plan.type == "service_recovery"`,
	}
	_, err := e.RegisterPlan(ctx, plan("holds", holds))
	require.NoError(t, err)
	exec, err := e.ExecuteRecoveryPlan(ctx, "holds")
	require.NoError(t, err)
	assert.Equal(t, 2, exec.Steps[0].Output["checked"])

	fails := step("check", StepValidate)
	fails.Config.Expressions = []string{`directory.total > 5`}
	_, err = e.RegisterPlan(ctx, plan("fails", fails))
	require.NoError(t, err)
	exec, err = e.ExecuteRecoveryPlan(ctx, "fails")
	require.Error(t, err)
	assert.Contains(t, exec.Steps[0].Error, "directory.total > 5")
}

type fakeReplays struct {
	mu      sync.Mutex
	status  replay.Status
	block   bool
	started []string
	stopped []string
}

func (r *fakeReplays) StartReplay(_ context.Context, configID string, _ replay.StartOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, configID)
	return "session-" + configID, nil
}

func (r *fakeReplays) Wait(ctx context.Context, id string) (*replay.Session, error) {
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &replay.Session{ID: id, Status: r.status, Progress: replay.Progress{Total: 4, Processed: 4, Successful: 4}}, nil
}

func (r *fakeReplays) StopReplay(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, id)
	return nil
}

func TestReplayStep(t *testing.T) {
	ctx := context.Background()
	replayPlan := func() Plan {
		s := step("replay", StepReplay)
		s.Config.ReplayConfigID = "orders"
		s.TimeoutSeconds = 1
		return plan("replay", s)
	}

	t.Run("completed session", func(t *testing.T) {
		f := newFixture(t)
		replays := &fakeReplays{status: replay.StatusCompleted}
		e := f.executor(WithReplays(replays))
		_, err := e.RegisterPlan(ctx, replayPlan())
		require.NoError(t, err)

		exec, err := e.ExecuteRecoveryPlan(ctx, "replay")
		require.NoError(t, err)
		assert.Equal(t, []string{"orders"}, replays.started)
		assert.Equal(t, "session-orders", exec.Steps[0].Output["session_id"])
		assert.Equal(t, 4, exec.Steps[0].Output["processed"])
	})

	t.Run("failed session", func(t *testing.T) {
		f := newFixture(t)
		e := f.executor(WithReplays(&fakeReplays{status: replay.StatusFailed}))
		_, err := e.RegisterPlan(ctx, replayPlan())
		require.NoError(t, err)

		exec, err := e.ExecuteRecoveryPlan(ctx, "replay")
		require.Error(t, err)
		assert.Contains(t, exec.Steps[0].Error, "ended failed")
	})

	t.Run("timeout stops the session", func(t *testing.T) {
		f := newFixture(t)
		replays := &fakeReplays{block: true}
		e := f.executor(WithReplays(replays))
		_, err := e.RegisterPlan(ctx, replayPlan())
		require.NoError(t, err)

		_, err = e.ExecuteRecoveryPlan(ctx, "replay")
		require.Error(t, err)
		require.Eventually(t, func() bool {
			replays.mu.Lock()
			defer replays.mu.Unlock()
			return len(replays.stopped) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})
}

type publishedCommand struct {
	topic, key string
	value      interface{}
}

type fakeProducer struct {
	mu   sync.Mutex
	sent []publishedCommand
	err  error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, publishedCommand{topic: topic, key: key, value: value})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestCommandStep(t *testing.T) {
	f := newFixture(t)
	e := f.executor()
	ctx := context.Background()

	producer := &fakeProducer{}
	for _, st := range []StepType{StepRestore, StepMigrate, StepRollback} {
		e.RegisterStepHandler(st, NewCommandStep(producer, ""))
	}

	restore := step("restore", StepRestore)
	restore.Config.Params = map[string]interface{}{"snapshot": "2024-03-01"}
	_, err := e.RegisterPlan(ctx, plan("commands", restore, step("migrate", StepMigrate, "restore")))
	require.NoError(t, err)

	exec, err := e.ExecuteRecoveryPlan(ctx, "commands")
	require.NoError(t, err)

	require.Len(t, producer.sent, 2)
	first := producer.sent[0]
	assert.Equal(t, "recovery_commands", first.topic)
	assert.Equal(t, "commands", first.key)
	cmd := first.value.(Command)
	assert.Equal(t, exec.ID, cmd.ExecutionID)
	assert.Equal(t, StepRestore, cmd.Type)
	assert.Equal(t, "2024-03-01", cmd.Params["snapshot"])

	producer.err = errors.New("broker down")
	_, err = e.ExecuteRecoveryPlan(ctx, "commands")
	assert.True(t, apperrors.IsPlanStep(err))
}

func TestExecute_Rejections(t *testing.T) {
	f := newFixture(t)
	e := f.executor()
	ctx := context.Background()

	_, err := e.ExecuteRecoveryPlan(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = e.RegisterPlan(ctx, plan("no-handler", step("m", StepMigrate)))
	require.NoError(t, err)
	exec, err := e.ExecuteRecoveryPlan(ctx, "no-handler")
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Nil(t, exec)

	p := plan("disabled", step("m", StepMigrate))
	p.Enabled = false
	_, err = e.RegisterPlan(ctx, p)
	require.NoError(t, err)
	_, err = e.ExecuteRecoveryPlan(ctx, "disabled")
	assert.True(t, apperrors.IsConfiguration(err))

	list, err := e.ListExecutions(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExecute_OneRunPerPlan(t *testing.T) {
	f := newFixture(t)
	e := f.executor()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	e.RegisterStepHandler(StepRestore, StepHandlerFunc(func(context.Context, StepRequest) (map[string]interface{}, error) {
		close(started)
		<-release
		return nil, nil
	}))
	_, err := e.RegisterPlan(ctx, plan("single", step("a", StepRestore)))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteRecoveryPlan(ctx, "single")
		done <- err
	}()

	<-started
	_, err = e.ExecuteRecoveryPlan(ctx, "single")
	assert.True(t, apperrors.IsConflict(err))

	running, err := e.ListExecutions(ctx, "single", 10)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, ExecutionRunning, running[0].Status)

	close(release)
	require.NoError(t, <-done)
}

func TestPlanLifecycle(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e := f.executor(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	created, err := e.RegisterPlan(ctx, plan("life", step("a", StepRestore)))
	require.NoError(t, err)
	assert.Equal(t, now, created.CreatedAt)

	now = now.Add(time.Hour)
	updated, err := e.RegisterPlan(ctx, plan("life", step("a", StepRestore), step("b", StepMigrate, "a")))
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, now, updated.UpdatedAt)

	got, err := e.GetPlan(ctx, "life")
	require.NoError(t, err)
	assert.Len(t, got.Steps, 2)

	require.NoError(t, e.RemovePlan(ctx, "life"))
	assert.True(t, apperrors.IsNotFound(e.RemovePlan(ctx, "life")))
	_, err = e.GetPlan(ctx, "life")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = e.GetExecution(ctx, "nope")
	assert.True(t, apperrors.IsNotFound(err))
}
