package predicate

import (
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithCache wires a Cache into the CEL evaluator.
func CELWithCache(cache Cache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Registered functions are reachable as call("name", [args...]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    Cache
	registry *FunctionRegistry
	env      *celgo.Env
	envErr   error
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.env, e.envErr = e.buildEnv()
	return e
}

func (e *celEvaluator) Evaluate(ctx Context, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, "", err)
	}
	return &celProgram{
		evaluator:  e,
		program:    program,
		expression: expression,
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string) (celgo.Program, error) {
	if e.envErr != nil {
		return nil, e.envErr
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}
	checked, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := e.env.Program(checked)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("record", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("kind", celgo.StringType),
		celgo.Variable("guid", celgo.StringType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.FunctionBinding(e.callBinding()),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

type celProgram struct {
	evaluator  *celEvaluator
	program    celgo.Program
	expression string
}

func (p *celProgram) Evaluate(ctx Context) (any, error) {
	ctx = ctx.withDefaults()
	out, _, err := p.program.Eval(ctx.bindings())
	if err != nil {
		return nil, wrapEvaluationError("cel", p.expression, ctx.subject(), err)
	}
	return out.Value(), nil
}

var anySliceType = reflect.TypeOf([]any{})

func (e *celEvaluator) callBinding() func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) != 2 {
			return types.NewErr("predicate: call requires a name and an argument list")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("predicate: call name must be string")
		}
		native, err := values[1].ConvertToNative(anySliceType)
		if err != nil {
			return types.NewErr("predicate: call arguments: %v", err)
		}
		args, _ := native.([]any)
		for i, arg := range args {
			if val, ok := arg.(ref.Val); ok {
				args[i] = val.Value()
			}
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
