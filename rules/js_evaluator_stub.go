//go:build !js_eval

package rules

// JSAvailable reports whether the binary was built with the js_eval tag.
const JSAvailable = false

// NewJSEvaluator returns nil; New turns that into ErrNoEvaluator.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}
