package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"switchyard/pkg/models"
)

// Transform derives an event. It receives a copy it owns and may modify freely.
type Transform func(ctx context.Context, ev models.Event) (models.Event, error)

// TransformDefinition declares a transform in configuration: every Set entry assigns the value
// of an expression (evaluated against the incoming event) to a payload or metadata path, then
// Remove deletes paths.
type TransformDefinition struct {
	Name   string            `json:"name" yaml:"name"`
	Set    map[string]string `json:"set,omitempty" yaml:"set,omitempty"`
	Remove []string          `json:"remove,omitempty" yaml:"remove,omitempty"`
}

// ValueEvaluator is satisfied by *cel.Evaluator.
type ValueEvaluator interface {
	ValidateExpression(expression string) error
	Evaluate(ctx context.Context, expression string, ev models.Event) (interface{}, error)
}

// NewExpressionTransform compiles a TransformDefinition.
func NewExpressionTransform(def TransformDefinition, eval ValueEvaluator) (Transform, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, configErr("transform name is required")
	}
	if len(def.Set) == 0 && len(def.Remove) == 0 {
		return nil, configErr("transform %s: set or remove is required", def.Name)
	}

	paths := make([]string, 0, len(def.Set))
	for path, expr := range def.Set {
		if err := validateFieldPath(path); err != nil {
			return nil, configErr("transform %s: %v", def.Name, err)
		}
		if err := eval.ValidateExpression(expr); err != nil {
			return nil, configErr("transform %s: %s: %v", def.Name, path, err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range def.Remove {
		if err := validateFieldPath(path); err != nil {
			return nil, configErr("transform %s: %v", def.Name, err)
		}
	}

	set := make(map[string]string, len(def.Set))
	for k, v := range def.Set {
		set[k] = v
	}
	remove := append([]string(nil), def.Remove...)

	return func(ctx context.Context, ev models.Event) (models.Event, error) {
		input := ev.Clone()
		for _, path := range paths {
			value, err := eval.Evaluate(ctx, set[path], input)
			if err != nil {
				return ev, fmt.Errorf("transform %s: %s: %w", def.Name, path, err)
			}
			if err := ev.Set(path, value); err != nil {
				return ev, fmt.Errorf("transform %s: %w", def.Name, err)
			}
		}
		for _, path := range remove {
			ev.Remove(path)
		}
		return ev, nil
	}, nil
}
