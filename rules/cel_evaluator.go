package rules

import (
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Every registered function is callable by name with one argument, and with
// any arity through call(name, [args]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// baseVariables are always declared; validators bind value and control.
var baseVariables = []string{"args", "metadata", "value", "control"}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, compileFailure(EngineCEL, "", ctx.Control, ErrEmptyExpression)
	}
	ctx = ctx.withDefaults()
	snapshot := snapshotAsMap(ctx.Snapshot)
	program, err := e.loadOrCompile(expression, ctx.Control, sortedKeys(snapshot))
	if err != nil {
		return nil, err
	}
	return e.run(ctx, expression, program, snapshot)
}

func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	cfg := applyCompileOptions(opts)
	if expression == "" {
		return nil, compileFailure(EngineCEL, "", cfg.control, ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression, cfg.control, cfg.variables)
	if err != nil {
		return nil, err
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

// loadOrCompile keys the cache on the declared variables too; CEL type
// checks identifiers at compile time.
func (e *celEvaluator) loadOrCompile(expression, control string, variables []string) (celgo.Program, error) {
	key := cacheKey(EngineCEL, expression+"|"+strings.Join(variables, ","))
	if program, ok := cachedProgram[celgo.Program](e.cache, key); ok {
		return program, nil
	}

	env, err := e.buildEnv(variables)
	if err != nil {
		return nil, compileFailure(EngineCEL, expression, control, err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, compileFailure(EngineCEL, expression, control, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, compileFailure(EngineCEL, expression, control, err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv(variables []string) (*celgo.Env, error) {
	declared := map[string]struct{}{"now": {}}
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
	}
	for _, name := range append(append([]string{}, baseVariables...), variables...) {
		if _, ok := declared[name]; ok {
			continue
		}
		declared[name] = struct{}{}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list", []*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)}, celgo.DynType,
				celgo.BinaryBinding(e.callBinding()),
			),
		))
		for _, name := range e.registry.Names() {
			if _, ok := declared[name]; ok {
				continue
			}
			opts = append(opts, celgo.Function(name,
				celgo.Overload(name+"_dyn", []*celgo.Type{celgo.DynType}, celgo.DynType,
					celgo.UnaryBinding(e.unaryBinding(name)),
				),
			))
		}
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) run(ctx RuleContext, expression string, program celgo.Program, snapshot map[string]any) (any, error) {
	activation := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"value":    nil,
		"control":  ctx.Control,
	}
	for key, value := range snapshot {
		activation[key] = value
	}
	out, _, err := program.Eval(activation)
	if err != nil {
		return nil, runFailure(EngineCEL, expression, ctx.Control, err)
	}
	return out.Value(), nil
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
	program    celgo.Program
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, runFailure(EngineCEL, r.expression, ctx.Control, errNoProgram)
	}
	ctx = ctx.withDefaults()
	return r.evaluator.run(ctx, r.expression, r.program, snapshotAsMap(ctx.Snapshot))
}

func (e *celEvaluator) unaryBinding(name string) func(ref.Val) ref.Val {
	return func(value ref.Val) ref.Val {
		return e.invoke(name, []any{nativeValue(value)})
	}
}

func (e *celEvaluator) callBinding() func(ref.Val, ref.Val) ref.Val {
	return func(nameVal, argsVal ref.Val) ref.Val {
		name, ok := nameVal.Value().(string)
		if !ok {
			return types.NewErr("rules: call name must be string")
		}
		var args []any
		switch typed := argsVal.Value().(type) {
		case []any:
			args = typed
		case []ref.Val:
			for _, item := range typed {
				args = append(args, nativeValue(item))
			}
		default:
			args = []any{typed}
		}
		return e.invoke(name, args)
	}
}

func (e *celEvaluator) invoke(name string, args []any) ref.Val {
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

func nativeValue(value ref.Val) any {
	if value == nil || value.Type() == types.NullType {
		return nil
	}
	return value.Value()
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
