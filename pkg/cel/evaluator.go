package cel

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"google.golang.org/protobuf/types/known/structpb"

	"switchyard/pkg/models"
)

const (
	defaultCostLimit  = 10000
	maxCachedPrograms = 4096
)

// Evaluator compiles and runs CEL expressions. CEL has no loops, no I/O and a bounded cost
// model, so rule authors cannot run arbitrary code through it.
type Evaluator struct {
	env       *cel.Env
	costLimit uint64

	programs sync.Map
	cached   atomic.Int64
}

type Option func(*Evaluator)

// WithCostLimit caps the runtime cost of a single evaluation.
func WithCostLimit(limit uint64) Option {
	return func(e *Evaluator) {
		if limit > 0 {
			e.costLimit = limit
		}
	}
}

// NewEvaluator builds the event environment: id, type, source, stream_id, version, payload,
// metadata and timestamp.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	return newEvaluator([]cel.EnvOption{
		cel.Variable("id", cel.StringType),
		cel.Variable("type", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("stream_id", cel.StringType),
		cel.Variable("version", cel.IntType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
	}, opts)
}

// NewMapEvaluator builds an environment whose variables are the given names, each a
// map(string, dyn). Used for recovery triggers and plan validations.
func NewMapEvaluator(names []string, opts ...Option) (*Evaluator, error) {
	vars := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		vars = append(vars, cel.Variable(name, cel.MapType(cel.StringType, cel.DynType)))
	}
	return newEvaluator(vars, opts)
}

func newEvaluator(vars []cel.EnvOption, opts []Option) (*Evaluator, error) {
	envOpts := append([]cel.EnvOption{
		ext.Strings(),
		cel.CrossTypeNumericComparisons(true),
	}, vars...)

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Evaluator{env: env, costLimit: defaultCostLimit}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

// ValidateBoolExpression accepts expressions whose static type is bool, or dyn (a field pulled
// out of payload/metadata) which is checked again at evaluation time.
func (e *Evaluator) ValidateBoolExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(types.BoolType) && !out.IsExactType(types.DynType) {
		return fmt.Errorf("expression must return bool, got %v", out)
	}
	return nil
}

// EvaluateBool runs a boolean expression against an event.
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, ev models.Event) (bool, error) {
	return e.EvaluateBoolVars(ctx, expression, ev.ToMap())
}

// EvaluateBoolVars runs a boolean expression against an explicit activation.
func (e *Evaluator) EvaluateBoolVars(ctx context.Context, expression string, vars map[string]interface{}) (bool, error) {
	val, err := e.eval(ctx, expression, vars)
	if err != nil {
		return false, err
	}

	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return bool, got %s", val.Type().TypeName())
	}
	return b, nil
}

// Evaluate runs an expression against an event and returns a JSON-compatible Go value.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, ev models.Event) (interface{}, error) {
	val, err := e.eval(ctx, expression, ev.ToMap())
	if err != nil {
		return nil, err
	}
	return toNative(val)
}

func (e *Evaluator) eval(ctx context.Context, expression string, vars map[string]interface{}) (ref.Val, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}
	return result, nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	if p, ok := e.programs.Load(expression); ok {
		return p.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast,
		cel.CostLimit(e.costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	if e.cached.Load() < maxCachedPrograms {
		if _, loaded := e.programs.LoadOrStore(expression, program); !loaded {
			e.cached.Add(1)
		}
	}
	return program, nil
}

var jsonValueType = reflect.TypeOf(&structpb.Value{})

func toNative(val ref.Val) (interface{}, error) {
	if types.IsError(val) {
		return nil, fmt.Errorf("expression produced an error value: %v", val)
	}
	native, err := val.ConvertToNative(jsonValueType)
	if err != nil {
		return nil, fmt.Errorf("expression result of type %s is not JSON-compatible: %w", val.Type().TypeName(), err)
	}
	return native.(*structpb.Value).AsInterface(), nil
}
