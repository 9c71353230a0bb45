package replay

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"switchyard/internal/constants"
	"switchyard/internal/directory"
	"switchyard/internal/eventlog"
	"switchyard/internal/logger"
	"switchyard/internal/notify"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/logging"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
	"switchyard/pkg/retry"
	"switchyard/pkg/schema"
)

type ExpressionValidator interface {
	ValidateBoolExpression(expression string) error
}

type Evaluator interface {
	ExpressionValidator
	EvaluateBool(ctx context.Context, expression string, ev models.Event) (bool, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, ev models.Event, svc models.Service) error
}

type DeadLetterSink interface {
	DeadLetter(ctx context.Context, ev models.Event, serviceID string, cause error) error
}

// Dependencies are the collaborators of the engine. Log, Directory and Deliverer are
// required; the stores default to in-memory implementations.
type Dependencies struct {
	Log         eventlog.Reader
	Directory   directory.Directory
	Deliverer   Deliverer
	DeadLetter  DeadLetterSink
	Configs     ConfigRepository
	Checkpoints CheckpointStore
	Sessions    SessionStore
	Evaluator   Evaluator
	Schema      *schema.Validator
}

type Option func(*Engine)

func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.logger = log }
}

func WithNotifier(p notify.Publisher) Option {
	return func(e *Engine) { e.notifier = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSleep replaces the wait used for batch delays and retry backoff.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

func WithMaxConcurrencyLimit(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

// WithProgressEvery publishes a progress notification every n batches.
func WithProgressEvery(n int) Option {
	return func(e *Engine) { e.progressEvery = n }
}

type Engine struct {
	deps Dependencies

	logger         logger.Logger
	notifier       notify.Publisher
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
	maxConcurrency int
	progressEvery  int

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func NewEngine(deps Dependencies, opts ...Option) *Engine {
	if deps.Configs == nil {
		deps.Configs = NewMemoryConfigs()
	}
	if deps.Checkpoints == nil {
		deps.Checkpoints = NewMemoryCheckpoints()
	}
	if deps.Sessions == nil {
		deps.Sessions = NewMemorySessions()
	}

	e := &Engine{
		deps:          deps,
		logger:        logger.NopLogger(),
		notifier:      notify.Discard,
		now:           time.Now,
		sleep:         retry.Sleep,
		progressEvery: 1,
		sessions:      make(map[string]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.progressEvery < 1 {
		e.progressEvery = 1
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	return e
}

// RegisterConfig validates cfg and stores it, replacing any config with the same id.
func (e *Engine) RegisterConfig(ctx context.Context, cfg Config) (Config, error) {
	cfg.applyDefaults()
	if err := validateConfig(cfg, e.deps.Schema, e.expressions(), e.maxConcurrency); err != nil {
		return Config{}, err
	}

	now := e.now().UTC()
	existing, err := e.deps.Configs.Get(ctx, cfg.ID)
	if err != nil {
		return Config{}, err
	}
	if existing != nil {
		cfg.CreatedAt = existing.CreatedAt
	} else if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := e.deps.Configs.Save(ctx, cfg); err != nil {
		return Config{}, err
	}
	e.logger.InfowCtx(ctx, "Replay config registered", "config_id", cfg.ID, "mode", cfg.Mode)
	return cfg, nil
}

// RemoveConfig deletes a config that no live session is using.
func (e *Engine) RemoveConfig(ctx context.Context, id string) error {
	for _, s := range e.ListSessions() {
		if s.ConfigID == id && !s.Status.Terminal() {
			return apperrors.ErrConflict.WithMessagef("replay config %s has an active session %s", id, s.ID)
		}
	}
	return e.deps.Configs.Delete(ctx, id)
}

func (e *Engine) GetConfig(ctx context.Context, id string) (*Config, error) {
	cfg, err := e.deps.Configs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, apperrors.ErrNotFound.WithMessagef("replay config %s not found", id)
	}
	return cfg, nil
}

func (e *Engine) ListConfigs(ctx context.Context) ([]Config, error) {
	return e.deps.Configs.List(ctx)
}

// Checkpoints returns the stored checkpoints of a config, newest first.
func (e *Engine) Checkpoints(ctx context.Context, configID string) ([]Checkpoint, error) {
	return e.deps.Checkpoints.List(ctx, configID)
}

// StartReplay creates a session for configID and runs it in the background. It returns
// as soon as the session is registered.
func (e *Engine) StartReplay(ctx context.Context, configID string, opts StartOptions) (string, error) {
	if err := e.baseCtx.Err(); err != nil {
		return "", apperrors.ErrServiceUnavailable.WithMessage("replay engine is shut down")
	}

	stored, err := e.GetConfig(ctx, configID)
	if err != nil {
		return "", err
	}
	if !stored.Enabled {
		return "", apperrors.ErrConfiguration.WithMessagef("replay config %s is disabled", configID)
	}

	cfg := stored.withOverrides(opts.Overrides)
	cfg.applyDefaults()
	if err := validateConfig(cfg, e.deps.Schema, e.expressions(), e.maxConcurrency); err != nil {
		return "", err
	}
	filters, err := compileFilters(cfg.Filters, e.expressions())
	if err != nil {
		return "", err
	}

	startOffset := 0
	if opts.ResumeFromCheckpoint || cfg.Mode == ModeIncremental {
		cp, err := e.deps.Checkpoints.Latest(ctx, cfg.ID)
		if err != nil {
			return "", apperrors.ErrServiceUnavailable.WithMessage("checkpoint store unavailable").WithCause(err)
		}
		if cp != nil {
			startOffset = cp.Position
		}
	}

	s := newSession(uuid.NewString(), cfg, filters, startOffset)
	runCtx, cancel := context.WithCancel(logging.WithSessionID(e.baseCtx, s.id))
	s.cancel = cancel

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(runCtx, s)

	e.logger.InfowCtx(logging.WithSessionID(ctx, s.id), "Replay session created",
		"config_id", cfg.ID,
		"mode", cfg.Mode,
		"start_offset", startOffset,
		"dry_run", cfg.Options.DryRun,
	)
	return s.id, nil
}

func (e *Engine) session(id string) (*session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound.WithMessagef("replay session %s not found", id)
	}
	return s, nil
}

func transitionErr(id string, from Status, op string) error {
	return apperrors.ErrSessionState.
		WithMessagef("cannot %s session %s in state %s", op, id, from).
		WithDetail("status", string(from))
}

// PauseReplay asks a running session to pause at the next batch boundary.
func (e *Engine) PauseReplay(id string) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	st, ok := s.state.(runningState)
	if !ok {
		from := s.state.status()
		s.mu.Unlock()
		return transitionErr(id, from, "pause")
	}
	s.state = st.pause()
	now := e.now().UTC()
	s.metrics.PausedAt = &now
	progress := s.progress
	s.mu.Unlock()

	e.notifier.Publish(notify.Notification{Kind: notify.KindReplayPaused, Subject: id, Detail: progress})
	return nil
}

func (e *Engine) ResumeReplay(id string) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	st, ok := s.state.(pausedState)
	if !ok {
		from := s.state.status()
		s.mu.Unlock()
		return transitionErr(id, from, "resume")
	}
	s.state = st.resumeRun()
	now := e.now().UTC()
	s.metrics.ResumedAt = &now
	progress := s.progress
	s.mu.Unlock()

	e.notifier.Publish(notify.Notification{Kind: notify.KindReplayResumed, Subject: id, Detail: progress})
	return nil
}

// StopReplay cancels a running or paused session. An in-flight batch settles before the
// run exits; the ReplayStopped notification is published once it has.
func (e *Engine) StopReplay(id string) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch st := s.state.(type) {
	case runningState:
		s.state = st.stop()
	case pausedState:
		s.state = st.stop()
	default:
		from := s.state.status()
		s.mu.Unlock()
		return transitionErr(id, from, "stop")
	}
	s.mu.Unlock()

	s.cancel()
	return nil
}

// GetSession returns the live session, or the persisted snapshot of a session that ran
// in an earlier process.
func (e *Engine) GetSession(ctx context.Context, id string) (*Session, error) {
	if s, err := e.session(id); err == nil {
		snap := s.snapshot()
		return &snap, nil
	}

	stored, err := e.deps.Sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperrors.ErrNotFound.WithMessagef("replay session %s not found", id)
	}
	return stored, nil
}

// ListSessions returns the sessions of this process, oldest first.
func (e *Engine) ListSessions() []Session {
	e.mu.RLock()
	out := make([]Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s.snapshot())
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Metrics.StartedAt != nil && out[j].Metrics.StartedAt != nil && !out[i].Metrics.StartedAt.Equal(*out[j].Metrics.StartedAt) {
			return out[i].Metrics.StartedAt.Before(*out[j].Metrics.StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Wait blocks until the session reaches a terminal state or ctx is done.
func (e *Engine) Wait(ctx context.Context, id string) (*Session, error) {
	s, err := e.session(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-s.done:
		snap := s.snapshot()
		return &snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops every live session and waits for their runs to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.RLock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		_ = e.StopReplay(id)
	}
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
		return apperrors.ErrTimeout.WithMessage("replay sessions did not stop in time").WithCause(ctx.Err())
	}
}

func (e *Engine) expressions() ExpressionValidator {
	if e.deps.Evaluator == nil {
		return nil
	}
	return e.deps.Evaluator
}

type session struct {
	id          string
	cfg         Config
	filters     *compiledFilters
	startOffset int
	cancel      context.CancelFunc
	done        chan struct{}

	mu          sync.Mutex
	state       state
	progress    Progress
	metrics     SessionMetrics
	checkpoints []Checkpoint
	errors      []EventError
	errMsg      string
	bytes       int64
}

func newSession(id string, cfg Config, filters *compiledFilters, startOffset int) *session {
	return &session{
		id:          id,
		cfg:         cfg,
		filters:     filters,
		startOffset: startOffset,
		done:        make(chan struct{}),
		state:       pendingState{},
		progress:    Progress{Position: startOffset},
	}
}

func (s *session) snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *session) snapshotLocked() Session {
	return Session{
		ID:          s.id,
		ConfigID:    s.cfg.ID,
		Status:      s.state.status(),
		Config:      s.cfg,
		Progress:    s.progress,
		Metrics:     s.metrics,
		Checkpoints: append([]Checkpoint(nil), s.checkpoints...),
		Errors:      append([]EventError(nil), s.errors...),
		DryRun:      s.cfg.Options.DryRun,
		Error:       s.errMsg,
	}
}

// addCheckpoint appends cp to the session ring, dropping the oldest beyond the ring size.
func (s *session) addCheckpoint(cp Checkpoint) {
	s.checkpoints = append(s.checkpoints, cp)
	if over := len(s.checkpoints) - constants.CheckpointRingSize; over > 0 {
		s.checkpoints = append([]Checkpoint(nil), s.checkpoints[over:]...)
	}
	metrics.ReplayCheckpointsTotal.Inc()
}
