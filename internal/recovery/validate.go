package recovery

import (
	"fmt"
	"sort"

	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/schema"
)

type ExpressionValidator interface {
	ValidateBoolExpression(expression string) error
}

func planErr(format string, args ...interface{}) error {
	return apperrors.ErrConfiguration.WithMessagef(format, args...)
}

// validatePlan checks p against the plan schema, its dependency graph and every
// expression it carries.
func validatePlan(p Plan, validator *schema.Validator, exprs ExpressionValidator) error {
	if validator != nil {
		if err := validator.Validate(schema.RecoveryPlan, p); err != nil {
			return apperrors.ErrConfiguration.WithMessagef("recovery plan %q does not match schema", p.ID).WithCause(err)
		}
	}
	if p.ID == "" {
		return planErr("recovery plan id is required")
	}
	if len(p.Steps) == 0 {
		return planErr("recovery plan %q has no steps", p.ID)
	}

	switch p.Type {
	case PlanDisasterRecovery, PlanPointInTime, PlanServiceRecovery, PlanDataMigration:
	default:
		return planErr("recovery plan %q: unknown type %q", p.ID, p.Type)
	}

	for _, s := range p.Steps {
		switch s.Type {
		case StepReplay:
			if s.Config.ReplayConfigID == "" {
				return planErr("recovery plan %q: replay step %q needs a replay_config_id", p.ID, s.ID)
			}
		case StepValidate:
			if len(s.Config.Expressions) == 0 {
				return planErr("recovery plan %q: validate step %q has no expressions", p.ID, s.ID)
			}
		case StepRestore, StepMigrate, StepRollback:
		default:
			return planErr("recovery plan %q: step %q has unknown type %q", p.ID, s.ID, s.Type)
		}
		if s.TimeoutSeconds < 0 || s.MaxAttempts < 0 {
			return planErr("recovery plan %q: step %q has a negative timeout or attempt count", p.ID, s.ID)
		}
	}

	if _, err := waves(p.Steps); err != nil {
		return planErr("recovery plan %q: %v", p.ID, err)
	}

	for _, expr := range planExpressions(p) {
		if exprs == nil {
			return planErr("recovery plan %q carries expressions but no evaluator is configured", p.ID)
		}
		if err := exprs.ValidateBoolExpression(expr); err != nil {
			return apperrors.ErrConfiguration.WithMessagef("recovery plan %q: invalid expression %q", p.ID, expr).WithCause(err)
		}
	}
	return nil
}

func planExpressions(p Plan) []string {
	var out []string
	if p.Triggers != nil {
		out = append(out, p.Triggers.Conditions...)
	}
	if p.Validation != nil {
		out = append(out, p.Validation.Pre...)
		out = append(out, p.Validation.Post...)
	}
	for _, s := range p.Steps {
		if s.Type == StepValidate {
			out = append(out, s.Config.Expressions...)
		}
	}
	return out
}

// waves orders steps into dependency levels: every step of wave n depends only on steps
// of earlier waves. Steps keep their declared order inside a wave.
func waves(steps []Step) ([][]Step, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			return nil, fmt.Errorf("step %d has no id", i)
		}
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", s.ID)
		}
		index[s.ID] = i
	}

	indegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		for _, dep := range s.Dependencies {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", s.ID, dep)
			}
			if j == i {
				return nil, fmt.Errorf("step %q depends on itself", s.ID)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var current []int
	for i := range steps {
		if indegree[i] == 0 {
			current = append(current, i)
		}
	}

	var out [][]Step
	placed := 0
	for len(current) > 0 {
		wave := make([]Step, 0, len(current))
		var next []int
		for _, i := range current {
			wave = append(wave, steps[i])
			for _, d := range dependents[i] {
				indegree[d]--
				if indegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		sort.Ints(next)
		out = append(out, wave)
		placed += len(current)
		current = next
	}

	if placed != len(steps) {
		var cyclic []string
		for i, s := range steps {
			if indegree[i] > 0 {
				cyclic = append(cyclic, s.ID)
			}
		}
		return nil, fmt.Errorf("dependency cycle between steps %v", cyclic)
	}
	return out, nil
}
