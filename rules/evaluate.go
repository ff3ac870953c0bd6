package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNoEvaluator = errors.New("rules: evaluator not configured")

// Option configures an evaluator built through New.
type Option func(*evaluatorConfig)

type evaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCache shares cache between compilations.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry functions to expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *evaluatorConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// New builds the evaluator for engine. An empty engine selects expr. The js
// engine returns ErrNoEvaluator unless the binary was built with js_eval.
func New(engine string, opts ...Option) (Evaluator, error) {
	cfg := evaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(cfg.cache), ExprWithFunctionRegistry(cfg.registry)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cfg.cache), CELWithFunctionRegistry(cfg.registry)), nil
	case EngineJS:
		evaluator := NewJSEvaluator(JSWithProgramCache(cfg.cache), JSWithFunctionRegistry(cfg.registry))
		if evaluator == nil {
			return nil, fmt.Errorf("%w: js engine requires the js_eval build tag", ErrNoEvaluator)
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("rules: unknown engine %q", engine)
	}
}

// Check runs a compiled rule and reports whether its result is truthy. The
// attempt is always reported to logger, including its duration.
func Check(logger EvaluatorLogger, engine string, rule CompiledRule, expr string, ctx RuleContext) (bool, error) {
	if rule == nil {
		return false, ErrNoEvaluator
	}
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	ctx = ctx.withDefaults()
	start := time.Now()
	value, err := rule.Evaluate(ctx)
	duration := time.Since(start)
	err = runFailure(engine, expr, ctx.Control, err)
	logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Control:  ctx.Control,
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return Truthy(value), nil
}

// Truthy reports whether value counts as a passing result.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	default:
		return true
	}
}

// EngineName reports the engine implemented by e.
func EngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return EngineExpr
	case *celEvaluator:
		return EngineCEL
	default:
		if name, ok := e.(interface{ engineName() string }); ok {
			return name.engineName()
		}
		return "custom"
	}
}
