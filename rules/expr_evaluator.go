package rules

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry functions by name.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator returns the default Evaluator, backed by expr-lang/expr.
// Undeclared identifiers evaluate to nil instead of failing compilation, so a
// validator may reference snapshot keys that are only sometimes present.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression, ForControl(ctx.Control))
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	cfg := applyCompileOptions(opts)
	if expression == "" {
		return nil, compileFailure(EngineExpr, "", cfg.control, ErrEmptyExpression)
	}
	key := cacheKey(EngineExpr, expression)
	if program, ok := cachedProgram[*exprvm.Program](e.cache, key); ok {
		return exprRule{program: program, expression: expression}, nil
	}

	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		fn := name
		options = append(options, exprlang.Function(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		}))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, compileFailure(EngineExpr, expression, cfg.control, err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return exprRule{program: program, expression: expression}, nil
}

type exprRule struct {
	program    *exprvm.Program
	expression string
}

func (r exprRule) Evaluate(ctx RuleContext) (any, error) {
	if r.program == nil {
		return nil, runFailure(EngineExpr, r.expression, ctx.Control, errNoProgram)
	}
	ctx = ctx.withDefaults()
	env := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	if ctx.Control != "" {
		env["control"] = ctx.Control
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		env[key] = value
	}
	result, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, runFailure(EngineExpr, r.expression, ctx.Control, err)
	}
	return result, nil
}

// cachedProgram loads a program of type T stored under key.
func cachedProgram[T any](cache ProgramCache, key string) (T, bool) {
	var zero T
	if cache == nil {
		return zero, false
	}
	cached, ok := cache.Get(key)
	if !ok {
		return zero, false
	}
	program, ok := cached.(T)
	return program, ok
}

func cacheKey(engine, expression string) string {
	return engine + ":" + expression
}

func snapshotAsMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
