package recovery

import (
	"context"
	"fmt"

	"switchyard/internal/directory"
	"switchyard/pkg/models"
)

// ExpressionVariables are the variables plan expressions are compiled against. Each is a
// map: directory holds the current service snapshot, change the directory change that is
// being evaluated (empty outside triggers), plan the plan's id, name and type.
var ExpressionVariables = []string{"directory", "change", "plan"}

type Evaluator interface {
	ExpressionValidator
	EvaluateBoolVars(ctx context.Context, expression string, vars map[string]interface{}) (bool, error)
}

func serviceVars(s models.Service) map[string]interface{} {
	subs := make([]interface{}, 0, len(s.Subscriptions))
	for _, sub := range s.Subscriptions {
		subs = append(subs, sub)
	}
	labels := make(map[string]interface{}, len(s.Labels))
	for k, v := range s.Labels {
		labels[k] = v
	}
	return map[string]interface{}{
		"id":            s.ID,
		"name":          s.Name,
		"status":        string(s.Status),
		"topic":         s.Topic,
		"subscriptions": subs,
		"labels":        labels,
	}
}

// directoryVars exposes services (a list), by_id, total and healthy.
func directoryVars(services []models.Service) map[string]interface{} {
	list := make([]interface{}, 0, len(services))
	byID := make(map[string]interface{}, len(services))
	healthy := 0
	for _, s := range services {
		m := serviceVars(s)
		list = append(list, m)
		byID[s.ID] = m
		if s.Healthy() {
			healthy++
		}
	}
	return map[string]interface{}{
		"services": list,
		"by_id":    byID,
		"total":    len(services),
		"healthy":  healthy,
	}
}

func changeVars(change *models.DirectoryChange) map[string]interface{} {
	if change == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"action":     change.Action,
		"service":    serviceVars(change.Service),
		"changed_by": change.ChangedBy,
		"timestamp":  change.Timestamp,
	}
}

func planVars(p Plan) map[string]interface{} {
	return map[string]interface{}{
		"id":   p.ID,
		"name": p.Name,
		"type": string(p.Type),
	}
}

type expressionEnv struct {
	eval Evaluator
	dir  directory.Directory
}

func (x expressionEnv) vars(ctx context.Context, p Plan, change *models.DirectoryChange) (map[string]interface{}, error) {
	services, err := x.dir.DiscoverServices(ctx, directory.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read service directory: %w", err)
	}
	return map[string]interface{}{
		"directory": directoryVars(services),
		"change":    changeVars(change),
		"plan":      planVars(p),
	}, nil
}

// all reports the first expression that does not hold. An evaluation error counts as
// not holding.
func (x expressionEnv) all(ctx context.Context, exprs []string, vars map[string]interface{}) (string, error) {
	for _, expr := range exprs {
		ok, err := x.eval.EvaluateBoolVars(ctx, expr, vars)
		if err != nil {
			return expr, fmt.Errorf("expression %q: %w", expr, err)
		}
		if !ok {
			return expr, fmt.Errorf("expression %q is false", expr)
		}
	}
	return "", nil
}
