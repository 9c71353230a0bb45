package recovery

import (
	"context"

	"switchyard/internal/constants"
	"switchyard/internal/notify"
	"switchyard/pkg/logging"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

// Subscribe evaluates plan triggers for every service registration and removal published
// on bus. Evaluation happens off the publishing goroutine.
func (e *Executor) Subscribe(bus *notify.Bus) (unsubscribe func()) {
	return bus.Subscribe(e.onDirectoryChange, notify.KindServiceRegistered, notify.KindServiceUnregistered)
}

func (e *Executor) onDirectoryChange(n notify.Notification) {
	change, ok := n.Detail.(models.DirectoryChange)
	if !ok {
		return
	}
	e.spawn(func() {
		if _, err := e.EvaluateTriggers(e.baseCtx, change); err != nil {
			e.logger.ErrorwCtx(e.baseCtx, "Failed to evaluate recovery triggers", "service_id", change.Service.ID, "error", err)
		}
	})
}

// EvaluateTriggers checks the trigger conditions of every enabled plan against change. A
// plan fires on its first condition that holds; conditions that fail to evaluate are
// logged and treated as not holding.
func (e *Executor) EvaluateTriggers(ctx context.Context, change models.DirectoryChange) ([]TriggerDetail, error) {
	plans, err := e.deps.Plans.List(ctx)
	if err != nil {
		return nil, err
	}

	var fired []TriggerDetail
	for _, p := range plans {
		if !p.Enabled || p.Triggers == nil || len(p.Triggers.Conditions) == 0 {
			continue
		}
		pctx := logging.WithPlanID(ctx, p.ID)

		vars, err := e.env.vars(pctx, p, &change)
		if err != nil {
			return fired, err
		}
		for _, cond := range p.Triggers.Conditions {
			ok, err := e.deps.Evaluator.EvaluateBoolVars(pctx, cond, vars)
			if err != nil {
				e.logger.WarnwCtx(pctx, "Recovery trigger condition failed", "condition", cond, "error", err)
				continue
			}
			if !ok {
				continue
			}
			d := TriggerDetail{
				PlanID:    p.ID,
				Source:    constants.RecoveryTriggerSourceDirectory,
				Condition: cond,
				Change:    change,
			}
			e.fire(pctx, p, d, &change)
			fired = append(fired, d)
			break
		}
	}
	return fired, nil
}

// TriggerScheduled fires a plan from its cron schedule.
func (e *Executor) TriggerScheduled(planID string) {
	ctx := logging.WithPlanID(e.baseCtx, planID)
	p, err := e.deps.Plans.Get(ctx, planID)
	if err != nil {
		e.logger.ErrorwCtx(ctx, "Failed to load scheduled recovery plan", "error", err)
		return
	}
	if p == nil || !p.Enabled {
		return
	}
	e.fire(ctx, *p, TriggerDetail{PlanID: p.ID, Source: constants.RecoveryTriggerSourceSchedule}, nil)
}

func (e *Executor) fire(ctx context.Context, p Plan, d TriggerDetail, change *models.DirectoryChange) {
	metrics.RecoveryTriggersTotal.WithLabelValues(d.Source).Inc()
	e.notifier.Publish(notify.Notification{Kind: notify.KindAutoRecoveryTriggered, Subject: p.ID, Detail: d})
	e.logger.InfowCtx(ctx, "Recovery plan triggered",
		"source", d.Source,
		"condition", d.Condition,
		"auto_execute", e.cfg.AutoExecute,
	)

	if !e.cfg.AutoExecute {
		return
	}

	e.spawn(func() {
		if _, err := e.execute(e.baseCtx, p, d.Source, change); err != nil {
			e.logger.WarnwCtx(ctx, "Triggered recovery plan did not complete", "error", err)
		}
	})
}
