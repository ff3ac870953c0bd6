package controls

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type computeFixture struct {
	Description string        `json:"description"`
	Cases       []computeCase `json:"cases"`
}

type computeCase struct {
	Name         string         `json:"name"`
	Payload      map[string]any `json:"payload"`
	FormData     map[string]any `json:"formData"`
	ExpectValues map[string]any `json:"expectValues"`
	ExpectErr    string         `json:"expectErr"`
}

func TestComputeFromFixtures(t *testing.T) {
	registry := loadRegistry(t, "registry.yaml")
	fx := loadComputeFixture(t, "compute_cases.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			state, err := Compute(registry, tc.Payload, tc.FormData)
			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				var resolution *ResolutionError
				if !errors.As(err, &resolution) {
					t.Fatalf("expected ResolutionError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if diff := cmp.Diff(tc.ExpectValues, FormData(state)); diff != "" {
				t.Fatalf("form data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeMetricScenario(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Template{Name: "metric", Type: TypeSelect, Default: "sum"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	payload := map[string]any{
		"datasource_id": 1.0,
		"form_data":     map[string]any{"metric": "count"},
		"dashboards":    []any{},
	}

	state, err := Compute(registry, payload, payload["form_data"].(map[string]any))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := state["metric"].Value; got != "count" {
		t.Fatalf("expected metric value count, got %#v", got)
	}
	if got := FormData(state)["metric"]; got != "count" {
		t.Fatalf("expected form data metric count, got %#v", got)
	}
}

func TestComputeFormDataIgnoresUnrelatedPayload(t *testing.T) {
	registry := NewRegistry()
	for _, template := range []Template{
		{Name: "metric", Type: TypeSelect, Default: "sum", FreeForm: true},
		{Name: "row_limit", Type: TypeText, Default: 100.0},
		{Name: "since", Type: TypeText, Default: "7 days ago"},
	} {
		if err := registry.Register(template); err != nil {
			t.Fatalf("register %s: %v", template.Name, err)
		}
	}
	values := map[string]any{"metric": "count", "row_limit": 10.0}

	bare, err := Compute(registry, map[string]any{}, values)
	if err != nil {
		t.Fatalf("compute with empty payload: %v", err)
	}
	busy, err := Compute(registry, map[string]any{
		"dashboards":    []any{map[string]any{"id": 1.0}},
		"slice":         map[string]any{"slice_id": 7.0, "form_data": map[string]any{"metric": "avg"}},
		"user_id":       3.0,
		"datasource_id": 1.0,
	}, values)
	if err != nil {
		t.Fatalf("compute with unrelated payload: %v", err)
	}
	if diff := cmp.Diff(FormData(bare), FormData(busy)); diff != "" {
		t.Fatalf("form data depends on payload (-bare +busy):\n%s", diff)
	}
	want := map[string]any{"metric": "count", "row_limit": 10.0, "since": "7 days ago"}
	if diff := cmp.Diff(want, FormData(busy)); diff != "" {
		t.Fatalf("form data mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeFilterSelectFromDatasource(t *testing.T) {
	registry := NewRegistry()
	for _, template := range []Template{
		{Name: "filters", Type: TypeFilter, Default: []any{}, ChoicesFrom: ChoicesFromFilterable},
		{Name: "metric", Type: TypeSelect, Default: "sum", FreeForm: true},
	} {
		if err := registry.Register(template); err != nil {
			t.Fatalf("register %s: %v", template.Name, err)
		}
	}
	state, err := Compute(registry, map[string]any{
		"datasource": map[string]any{"type": "table", "filter_select_enabled": true},
	}, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !state["filters"].FilterSelect || state["metric"].FilterSelect {
		t.Fatalf("expected filterSelect only on filters, got %+v", state)
	}
	out := state.ToMap()
	if out["filters"].(map[string]any)["filterSelect"] != true {
		t.Fatalf("expected filterSelect in the state map, got %v", out["filters"])
	}

	state, err = Compute(registry, map[string]any{}, nil)
	if err != nil {
		t.Fatalf("compute without datasource: %v", err)
	}
	if state.ToMap()["filters"].(map[string]any)["filterSelect"] != false {
		t.Fatalf("expected filterSelect false without datasource metadata")
	}
}

func TestComputeDoesNotMutateInputs(t *testing.T) {
	registry := loadRegistry(t, "registry.yaml")
	formData := map[string]any{"groupby": []any{"region"}, "color_scheme": "x"}
	payload := map[string]any{"datasource": map[string]any{"gb_cols": []any{[]any{"state", "state"}}}}

	state, err := Compute(registry, payload, formData, WithUnknownControls(Ignore))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if _, ok := state["color_scheme"]; ok {
		t.Fatalf("ignored control leaked into state")
	}
	want := map[string]any{"groupby": []any{"region"}, "color_scheme": "x"}
	if diff := cmp.Diff(want, formData); diff != "" {
		t.Fatalf("form data mutated (-want +got):\n%s", diff)
	}

	values := FormData(state)
	values["groupby"] = []any{"mutated"}
	if diff := cmp.Diff([]any{}, state["groupby"].Value); diff != "" {
		t.Fatalf("FormData shares values with state (-want +got):\n%s", diff)
	}
}

func TestComputeValidationErrors(t *testing.T) {
	registry := loadRegistry(t, "registry.yaml")

	state, err := Compute(registry, nil, map[string]any{"metric": "", "row_limit": "lots"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if diff := cmp.Diff([]string{"cannot be empty"}, state["metric"].ValidationErrors); diff != "" {
		t.Fatalf("metric errors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"must be an integer"}, state["row_limit"].ValidationErrors); diff != "" {
		t.Fatalf("row_limit errors (-want +got):\n%s", diff)
	}
	if got := state["groupby"].ValidationErrors; got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil validation errors, got %#v", got)
	}
}

func TestComputeChoicesFromDatasource(t *testing.T) {
	registry := loadRegistry(t, "registry.yaml")
	payload := map[string]any{
		"datasource": map[string]any{
			"type":          "table",
			"metrics_combo": []any{[]any{"count", "COUNT(*)"}, []any{"sum__num", "SUM(num)"}},
		},
	}

	state, err := Compute(registry, payload, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := []Choice{{Value: "count", Label: "COUNT(*)"}, {Value: "sum__num", Label: "SUM(num)"}}
	if diff := cmp.Diff(want, state["metric"].Choices); diff != "" {
		t.Fatalf("metric choices (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Choice{{Value: "table", Label: "Table View"}, {Value: "line", Label: "Line Chart"}}, state["viz_type"].Choices); diff != "" {
		t.Fatalf("viz_type choices (-want +got):\n%s", diff)
	}
}

func TestStateToMap(t *testing.T) {
	registry := loadRegistry(t, "registry.yaml")
	state, err := Compute(registry, nil, map[string]any{"viz_type": "line"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	out := state.ToMap()
	metric, ok := out["metric"].(map[string]any)
	if !ok {
		t.Fatalf("expected metric entry, got %#v", out["metric"])
	}
	if metric["label"] != "Y axis" || metric["value"] != "sum__num" {
		t.Fatalf("unexpected metric entry %#v", metric)
	}
	viz := out["viz_type"].(map[string]any)
	if diff := cmp.Diff([]any{[]any{"table", "Table View"}, []any{"line", "Line Chart"}}, viz["choices"]); diff != "" {
		t.Fatalf("viz_type choices (-want +got):\n%s", diff)
	}
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("state map is not JSON encodable: %v", err)
	}
}

func TestDecodeDatasourceLegacyLayout(t *testing.T) {
	payload := map[string]any{
		"datasource": map[string]any{
			"type":                  "druid",
			"filter_select_enabled": true,
			"time_column_grains": map[string]any{
				"time_columns": []any{[]any{"ds", "ds"}},
				"time_grains":  []any{"day", "week"},
			},
		},
	}
	ds, err := DecodeDatasource("explore", payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Datasource{
		Type:         "druid",
		FilterSelect: true,
		Granularity:  []Choice{{Value: "ds", Label: "ds"}},
		TimeGrains:   []Choice{{Value: "day", Label: "day"}, {Value: "week", Label: "week"}},
	}
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Fatalf("datasource mismatch (-want +got):\n%s", diff)
	}
	if _, ok := payload["datasource"].(map[string]any)["filter_select"]; ok {
		t.Fatalf("decode mutated payload")
	}
}

func TestDecodeDatasourceRejectsNonObject(t *testing.T) {
	_, err := DecodeDatasource("explore", map[string]any{"datasource": "birth_names"})
	var resolution *ResolutionError
	if !errors.As(err, &resolution) || resolution.Kind != KindDatasource {
		t.Fatalf("expected datasource ResolutionError, got %v", err)
	}
}

func TestComputeDatasourceTypeIsCaseInsensitive(t *testing.T) {
	registry := loadRegistry(t, "registry.yaml")
	payload := map[string]any{"datasource": map[string]any{"type": " Druid "}}

	if _, err := Compute(registry, payload, nil); err != nil {
		t.Fatalf("compute: %v", err)
	}
	ds, err := DecodeDatasource("explore", payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ds.Type != "druid" {
		t.Fatalf("expected normalised type, got %q", ds.Type)
	}
}

func loadRegistry(t *testing.T, name string) *Registry {
	t.Helper()
	registry, err := LoadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("load registry %q: %v", name, err)
	}
	return registry
}

func loadComputeFixture(t *testing.T, name string) computeFixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read compute fixture %q: %v", name, err)
	}
	var fx computeFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal compute fixture %q: %v", name, err)
	}
	return fx
}
