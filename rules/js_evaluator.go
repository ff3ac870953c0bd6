//go:build js_eval

package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// JSAvailable reports whether the binary was built with the js_eval tag.
const JSAvailable = true

// ErrJSTimeout is the interrupt value of a rule stopped by JSWithTimeout.
var ErrJSTimeout = errors.New("rules: js rule exceeded its time limit")

type jsEvaluator struct {
	opts jsOptions
}

// NewJSEvaluator returns an Evaluator backed by goja. Rules are expressions;
// they are wrapped in a function so a bare `value > 0` returns its result.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{opts: newJSOptions(opts)}
}

func (e *jsEvaluator) engineName() string { return EngineJS }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression, ForControl(ctx.Control))
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	cfg := applyCompileOptions(opts)
	if expression == "" {
		return nil, compileFailure(EngineJS, "", cfg.control, ErrEmptyExpression)
	}
	key := cacheKey(EngineJS, expression)
	if program, ok := cachedProgram[*goja.Program](e.opts.cache, key); ok {
		return jsRule{evaluator: e, program: program, expression: expression}, nil
	}
	program, err := goja.Compile(cfg.control, fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, compileFailure(EngineJS, expression, cfg.control, err)
	}
	if e.opts.cache != nil {
		e.opts.cache.Set(key, program)
	}
	return jsRule{evaluator: e, program: program, expression: expression}, nil
}

type jsRule struct {
	evaluator  *jsEvaluator
	program    *goja.Program
	expression string
}

// Evaluate runs the rule on a fresh runtime; a goja.Runtime is not safe for
// concurrent use.
func (r jsRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, runFailure(EngineJS, r.expression, ctx.Control, errNoProgram)
	}
	ctx = ctx.withDefaults()
	vm := goja.New()
	if err := r.evaluator.bind(vm, ctx); err != nil {
		return nil, runFailure(EngineJS, r.expression, ctx.Control, err)
	}
	if timeout := r.evaluator.opts.timeout; timeout > 0 {
		timer := time.AfterFunc(timeout, func() { vm.Interrupt(ErrJSTimeout) })
		defer timer.Stop()
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && interrupted.Value() == ErrJSTimeout {
			err = ErrJSTimeout
		}
		return nil, runFailure(EngineJS, r.expression, ctx.Control, err)
	}
	return value.Export(), nil
}

func (e *jsEvaluator) bind(vm *goja.Runtime, ctx RuleContext) error {
	bindings := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"control":  ctx.Control,
		"value":    nil,
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		bindings[key] = value
	}
	if registry := e.opts.registry; registry != nil {
		bindings["call"] = func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}
		for _, name := range registry.Names() {
			fn := name
			bindings[fn] = func(arguments ...any) (any, error) {
				return registry.Call(fn, arguments...)
			}
		}
	}
	for key, value := range bindings {
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
