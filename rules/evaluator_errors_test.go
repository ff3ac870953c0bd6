package rules

import (
	"errors"
	"testing"
)

func TestRunFailureCarriesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := runFailure(EngineExpr, "nonEmpty(value)", "metric", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != EngineExpr || evalErr.Phase != PhaseRun || evalErr.Control != "metric" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	want := `rules: expr run control "metric" rule "nonEmpty(value)": boom`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if IsCompileError(err) {
		t.Fatalf("run failure reported as compile error")
	}
}

func TestAnnotateFillsExistingError(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{Engine: EngineExpr, Err: base}

	err := compileFailure(EngineCEL, "value > 0", "row_limit", existing)
	if err != existing {
		t.Fatalf("expected the existing error to be reused, got %v", err)
	}
	if existing.Engine != EngineExpr {
		t.Fatalf("engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "value > 0" || existing.Control != "row_limit" || existing.Phase != PhaseCompile {
		t.Fatalf("missing fields should be filled, got %+v", existing)
	}
	if !IsCompileError(err) {
		t.Fatalf("expected compile error")
	}
}

func TestAnnotateNil(t *testing.T) {
	if err := runFailure(EngineExpr, "value", "metric", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestEmptyExpressionRejected(t *testing.T) {
	evaluator := NewCELEvaluator()
	_, err := evaluator.Compile("", ForControl("metric"))
	if !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Control != "metric" {
		t.Fatalf("expected control on empty expression error, got %v", err)
	}
}
