package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Phases in which a validator rule can fail.
const (
	PhaseCompile = "compile"
	PhaseRun     = "run"
)

var (
	// ErrEmptyExpression is returned when a rule has no source.
	ErrEmptyExpression = errors.New("rules: expression must not be empty")
	errNoProgram       = errors.New("compiled rule has no program")
)

// EvaluationError reports a validator rule that failed to compile or run.
// Control is empty when the rule was compiled outside a registry.
type EvaluationError struct {
	Engine  string
	Phase   string
	Expr    string
	Control string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("rules: ")
	b.WriteString(e.Engine)
	if e.Phase != "" {
		b.WriteString(" " + e.Phase)
	}
	if e.Control != "" {
		fmt.Fprintf(&b, " control %q", e.Control)
	}
	if e.Expr != "" {
		fmt.Fprintf(&b, " rule %q", e.Expr)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsCompileError reports whether err carries a rule that never compiled.
func IsCompileError(err error) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr) && evalErr.Phase == PhaseCompile
}

func compileFailure(engine, expr, control string, err error) error {
	return annotate(engine, PhaseCompile, expr, control, err)
}

func runFailure(engine, expr, control string, err error) error {
	return annotate(engine, PhaseRun, expr, control, err)
}

// annotate fills the missing fields of an existing EvaluationError in place
// or wraps err in a new one.
func annotate(engine, phase, expr, control string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Phase: phase, Expr: expr, Control: control, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Phase == "" {
		evalErr.Phase = phase
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Control == "" {
		evalErr.Control = control
	}
	return evalErr
}
