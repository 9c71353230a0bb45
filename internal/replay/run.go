package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"switchyard/internal/constants"
	"switchyard/internal/directory"
	"switchyard/internal/eventlog"
	"switchyard/internal/notify"
	"switchyard/pkg/logging"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
	"switchyard/pkg/retry"
	"switchyard/pkg/tracing"
)

const tracerName = "replay"

// errStopped ends the batch loop when the session left the running state.
var errStopped = errors.New("replay stopped")

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "successful"
	case outcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// runner drives one session from pending to a terminal state.
type runner struct {
	e *Engine
	s *session

	// deliveries are not tied to the session context so a stop lets the batch settle
	deliveryCtx context.Context

	lastCheckpoint int
}

func (e *Engine) run(ctx context.Context, s *session) {
	defer e.wg.Done()
	defer close(s.done)
	defer s.cancel()

	r := &runner{
		e:           e,
		s:           s,
		deliveryCtx: logging.WithSessionID(context.WithoutCancel(ctx), s.id),
	}

	s.mu.Lock()
	st, ok := s.state.(pendingState)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.state = st.start()
	now := e.now().UTC()
	s.metrics.StartedAt = &now
	s.mu.Unlock()

	metrics.ReplayActiveSessions.Inc()
	defer metrics.ReplayActiveSessions.Dec()

	e.notifier.Publish(notify.Notification{Kind: notify.KindReplayStarted, Subject: s.id, Detail: s.cfg.ID})
	e.logger.InfowCtx(ctx, "Replay session started", "config_id", s.cfg.ID)

	err := r.execute(ctx)
	r.finish(ctx, err)
}

func (r *runner) execute(ctx context.Context) error {
	events, err := r.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errStopped
		}
		return fmt.Errorf("fetching events: %w", err)
	}

	r.s.mu.Lock()
	r.s.progress.Total = len(events)
	r.s.mu.Unlock()

	return r.loop(ctx, events)
}

func (r *runner) query() eventlog.Query {
	cfg := r.s.cfg
	q := eventlog.Query{
		EventTypes: cfg.Target.EventTypes,
		StreamIDs:  cfg.Target.StreamIDs,
	}
	if cfg.TimeRange != nil {
		q.FromTimestamp = cfg.TimeRange.From
		q.ToTimestamp = cfg.TimeRange.To
	}
	if cfg.VersionRange != nil {
		q.FromVersion = cfg.VersionRange.From
		q.ToVersion = cfg.VersionRange.To
	}
	return q
}

// fetch pages through the event log from the session's start offset.
func (r *runner) fetch(ctx context.Context) ([]models.Event, error) {
	q := r.query()
	q.Offset = r.s.startOffset
	q.Limit = constants.MaxLimit

	var events []models.Event
	for {
		page, err := r.e.deps.Log.GetEvents(ctx, q)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)
		if len(page) < q.Limit {
			return events, nil
		}
		q.Offset += len(page)
	}
}

func (r *runner) loop(ctx context.Context, events []models.Event) error {
	cfg := r.s.cfg
	size := cfg.Options.BatchSize
	dryRun := cfg.Options.DryRun

	for start, batchNo := 0, 1; ; start, batchNo = start+size, batchNo+1 {
		if start > 0 && start < len(events) && !dryRun {
			if err := r.throttle(ctx, events[start-1], events[start]); err != nil {
				return errStopped
			}
		}
		// status may have changed while throttled
		if !r.awaitRunning(ctx) {
			return errStopped
		}
		if start >= len(events) {
			return nil
		}
		end := start + size
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		began := time.Now()
		fatal := r.runBatch(ctx, batchNo, batch)
		metrics.ObserveReplayBatchDuration(time.Since(began))

		r.s.mu.Lock()
		r.s.progress.Batches = batchNo
		r.s.progress.Position = r.s.startOffset + end
		r.updateRateLocked()
		progress := r.s.progress
		due := r.checkpointsEnabled() && progress.Processed-r.lastCheckpoint >= size*constants.CheckpointEveryBatches
		r.s.mu.Unlock()

		if batchNo%r.e.progressEvery == 0 {
			r.e.notifier.Publish(notify.Notification{Kind: notify.KindReplayProgress, Subject: r.s.id, Detail: progress})
		}
		if due {
			r.checkpoint(ctx, fmt.Sprintf("batch-%d", batchNo), batch[len(batch)-1].ID)
		}
		if fatal != nil {
			return fatal
		}
	}
}

// awaitRunning blocks while the session is paused and reports whether it may continue.
func (r *runner) awaitRunning(ctx context.Context) bool {
	for {
		r.s.mu.Lock()
		switch st := r.s.state.(type) {
		case runningState:
			r.s.mu.Unlock()
			return true
		case pausedState:
			resume := st.resume
			r.s.mu.Unlock()
			select {
			case <-resume:
			case <-ctx.Done():
				return false
			}
		default:
			r.s.mu.Unlock()
			return false
		}
	}
}

func (r *runner) throttle(ctx context.Context, prev, next models.Event) error {
	opts := r.s.cfg.Options
	if d := opts.DelayBetweenBatches(); d > 0 {
		if err := r.e.sleep(ctx, d); err != nil {
			return err
		}
	}
	if opts.RespectOriginalTiming {
		gap := next.Timestamp.Sub(prev.Timestamp)
		if gap > constants.MaxOriginalTimingDelay {
			gap = constants.MaxOriginalTimingDelay
		}
		if gap > 0 {
			return r.e.sleep(ctx, gap)
		}
	}
	return nil
}

// runBatch processes batch with at most MaxConcurrency events in flight and returns the
// first error that must end the session.
func (r *runner) runBatch(ctx context.Context, batchNo int, batch []models.Event) error {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "replay.batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("replay.session_id", r.s.id),
		attribute.Int("replay.batch", batchNo),
		attribute.Int("replay.batch_size", len(batch)),
	)

	var g errgroup.Group
	g.SetLimit(r.s.cfg.Options.MaxConcurrency)

	for _, ev := range batch {
		ev := ev
		g.Go(func() error {
			result, err := r.processEvent(ctx, ev)
			r.record(ev, result)
			return err
		})
	}

	err := g.Wait()
	if err != nil {
		tracing.RecordError(span, err)
	}
	return err
}

func (r *runner) processEvent(ctx context.Context, ev models.Event) (outcome, error) {
	dctx := logging.WithEventID(r.deliveryCtx, ev.ID)

	pass, err := r.passes(dctx, ev)
	if err != nil {
		r.e.logger.WarnwCtx(dctx, "Replay filter expression failed, skipping event", "error", err)
		return outcomeSkipped, nil
	}
	if !pass {
		return outcomeSkipped, nil
	}
	if r.s.cfg.Options.DryRun {
		return outcomeSuccess, nil
	}

	targets, err := r.targets(dctx, ev)
	if err != nil {
		r.addError(EventError{EventID: ev.ID, Error: err.Error(), Timestamp: r.e.now().UTC()})
		if r.policy() == OnErrorStop {
			return outcomeFailed, fmt.Errorf("resolving targets of event %s: %w", ev.ID, err)
		}
		return outcomeFailed, nil
	}
	if len(targets) == 0 {
		return outcomeSkipped, nil
	}

	result := outcomeSuccess
	var fatal error
	for _, svc := range targets {
		if err := r.deliver(ctx, dctx, ev, svc); err != nil {
			result = outcomeFailed
			if fatal == nil && r.isFatal(err) {
				fatal = err
			}
		}
	}
	return result, fatal
}

func (r *runner) passes(ctx context.Context, ev models.Event) (bool, error) {
	f := r.s.filters
	if len(f.include) > 0 && !anyMatches(f.include, ev.Type, ev.Source) {
		return false, nil
	}
	if anyMatches(f.exclude, ev.Type, ev.Source) {
		return false, nil
	}
	if f.expression == "" {
		return true, nil
	}
	if r.e.deps.Evaluator == nil {
		return false, fmt.Errorf("no evaluator configured for %q", f.expression)
	}
	return r.e.deps.Evaluator.EvaluateBool(ctx, f.expression, ev)
}

// targets resolves the services an event is replayed to: the configured service ids, or
// every healthy service subscribing to the event type.
func (r *runner) targets(ctx context.Context, ev models.Event) ([]models.Service, error) {
	ids := r.s.cfg.Target.ServiceIDs
	if len(ids) == 0 {
		return r.e.deps.Directory.DiscoverServices(ctx, directory.Filter{
			Status:    models.ServiceStatusHealthy,
			EventType: ev.Type,
		})
	}

	out := make([]models.Service, 0, len(ids))
	for _, id := range ids {
		svc, err := r.e.deps.Directory.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		if svc == nil {
			r.e.logger.DebugwCtx(ctx, "Replay target not in directory", "service_id", id)
			continue
		}
		out = append(out, *svc)
	}
	return out, nil
}

// policy is the effective error policy. Retry and dead-lettering need recovery enabled;
// without it failures are recorded and skipped.
func (r *runner) policy() OnError {
	rec := r.s.cfg.Recovery
	if rec.OnError == OnErrorStop {
		return OnErrorStop
	}
	if !rec.Enabled {
		return OnErrorSkip
	}
	return rec.OnError
}

type fatalDelivery struct{ err error }

func (f fatalDelivery) Error() string { return f.err.Error() }
func (f fatalDelivery) Unwrap() error { return f.err }

func (r *runner) isFatal(err error) bool {
	var f fatalDelivery
	return errors.As(err, &f)
}

// deliver sends ev to svc and applies the error policy to a failure. It returns nil when
// the event reached the service, possibly after retries.
func (r *runner) deliver(ctx, dctx context.Context, ev models.Event, svc models.Service) error {
	err := r.e.deps.Deliverer.Deliver(dctx, ev, svc)
	if err == nil {
		return nil
	}

	idx := r.addError(EventError{
		EventID:   ev.ID,
		ServiceID: svc.ID,
		Error:     err.Error(),
		Timestamp: r.e.now().UTC(),
	})

	switch r.policy() {
	case OnErrorStop:
		return fatalDelivery{err: err}

	case OnErrorRetry:
		rec := r.s.cfg.Recovery
		schedule := retry.NewSchedule(rec.RetryDelay(), rec.BackoffMultiplier, rec.Retries(), constants.MaxReplayRetryDelay)
		for attempt := 1; ; attempt++ {
			delay, ok := schedule.Next()
			if !ok {
				break
			}
			if waitErr := r.e.sleep(ctx, delay); waitErr != nil {
				return err
			}
			metrics.ReplayRetriesTotal.Inc()

			err = r.e.deps.Deliverer.Deliver(dctx, ev, svc)
			r.updateError(idx, attempt, err)
			if err == nil {
				return nil
			}
		}
		r.e.logger.WarnwCtx(dctx, "Replay retries exhausted",
			"service_id", svc.ID,
			"retries", rec.Retries(),
			"error", err,
		)
		if !r.s.cfg.Options.SkipFailed {
			return fatalDelivery{err: err}
		}
		return err

	case OnErrorDLQ:
		if r.e.deps.DeadLetter == nil {
			return err
		}
		if dlqErr := r.e.deps.DeadLetter.DeadLetter(dctx, ev, svc.ID, err); dlqErr != nil {
			r.e.logger.ErrorwCtx(dctx, "Failed to dead-letter replayed event", "service_id", svc.ID, "error", dlqErr)
			r.addError(EventError{
				EventID:   ev.ID,
				ServiceID: svc.ID,
				Error:     "dead letter: " + dlqErr.Error(),
				Timestamp: r.e.now().UTC(),
			})
		}
		return err

	default:
		return err
	}
}

func (r *runner) addError(entry EventError) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.errors = append(r.s.errors, entry)
	return len(r.s.errors) - 1
}

func (r *runner) updateError(idx, retries int, err error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry := &r.s.errors[idx]
	entry.RetryCount = retries
	entry.Timestamp = r.e.now().UTC()
	if err == nil {
		entry.Resolved = true
		return
	}
	entry.Error = err.Error()
}

// record accounts one processed event. Processed and the outcome counter move together
// under the session lock.
func (r *runner) record(ev models.Event, result outcome) {
	size := 0
	if data, err := json.Marshal(ev); err == nil {
		size = len(data)
	}

	r.s.mu.Lock()
	p := &r.s.progress
	p.Processed++
	switch result {
	case outcomeSuccess:
		p.Successful++
	case outcomeFailed:
		p.Failed++
	default:
		p.Skipped++
	}
	p.CurrentEventID = ev.ID
	r.s.bytes += int64(size)
	r.s.metrics.AvgEventSize = float64(r.s.bytes) / float64(p.Processed)
	r.s.mu.Unlock()

	metrics.ReplayEventsTotal.WithLabelValues(result.String()).Inc()
}

// updateRateLocked must be called with the session lock held.
func (r *runner) updateRateLocked() {
	if r.s.metrics.StartedAt == nil {
		return
	}
	elapsed := r.e.now().Sub(*r.s.metrics.StartedAt).Seconds()
	if elapsed > 0 {
		r.s.metrics.ProcessingRate = float64(r.s.progress.Processed) / elapsed
	}
}

// checkpointsEnabled is true for sessions that deliver and either ask for checkpoints or
// run incrementally, which needs them to know where to resume.
func (r *runner) checkpointsEnabled() bool {
	opts := r.s.cfg.Options
	if opts.DryRun {
		return false
	}
	return opts.CreateCheckpoints || r.s.cfg.Mode == ModeIncremental
}

func (r *runner) checkpoint(ctx context.Context, label, eventID string) {
	r.s.mu.Lock()
	cp := Checkpoint{
		ID:        uuid.NewString(),
		SessionID: r.s.id,
		Position:  r.s.progress.Position,
		Label:     label,
		Processed: r.s.progress.Processed,
		EventID:   eventID,
		Timestamp: r.e.now().UTC(),
	}
	r.s.addCheckpoint(cp)
	r.lastCheckpoint = cp.Processed
	r.s.mu.Unlock()

	if err := r.e.deps.Checkpoints.Save(context.WithoutCancel(ctx), r.s.cfg.ID, cp); err != nil {
		r.e.logger.ErrorwCtx(ctx, "Failed to store checkpoint", "checkpoint_id", cp.ID, "error", err)
	}
	r.e.notifier.Publish(notify.Notification{Kind: notify.KindCheckpointCreated, Subject: r.s.id, Detail: cp})
}

func (r *runner) finish(ctx context.Context, runErr error) {
	s := r.s

	if runErr == nil && r.checkpointsEnabled() {
		s.mu.Lock()
		pending := s.progress.Processed > r.lastCheckpoint
		last := s.progress.CurrentEventID
		s.mu.Unlock()
		if pending {
			r.checkpoint(ctx, "final", last)
		}
	}

	s.mu.Lock()
	switch st := s.state.(type) {
	case runningState:
		switch {
		case runErr == nil:
			s.state = st.complete()
		case errors.Is(runErr, errStopped):
			s.state = st.stop()
		default:
			s.state = st.fail(runErr)
		}
	case pausedState:
		if runErr != nil && !errors.Is(runErr, errStopped) {
			s.state = st.fail(runErr)
		} else {
			s.state = st.stop()
		}
	}
	if t, ok := s.state.(terminalState); ok {
		s.errMsg = t.err
	}
	now := r.e.now().UTC()
	s.metrics.CompletedAt = &now
	r.updateRateLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()
	if err := r.e.deps.Sessions.Save(persistCtx, snap); err != nil {
		r.e.logger.ErrorwCtx(ctx, "Failed to persist replay session", "error", err)
	}

	metrics.ReplaySessionsTotal.WithLabelValues(string(snap.Status)).Inc()

	kind := notify.KindReplayCompleted
	switch snap.Status {
	case StatusFailed:
		kind = notify.KindReplayFailed
	case StatusCancelled:
		kind = notify.KindReplayStopped
	}
	r.e.notifier.Publish(notify.Notification{Kind: kind, Subject: s.id, Detail: snap.Progress})

	r.e.logger.InfowCtx(ctx, "Replay session finished",
		"status", snap.Status,
		"processed", snap.Progress.Processed,
		"successful", snap.Progress.Successful,
		"failed", snap.Progress.Failed,
		"skipped", snap.Progress.Skipped,
		"error", snap.Error,
	)
}
