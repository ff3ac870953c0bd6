package explore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	bootstate "github.com/goliatone/go-bootstate"
	"github.com/goliatone/go-bootstate/controls"
	"github.com/goliatone/go-bootstate/explore"
)

var fixedNow = time.UnixMilli(1700000000000)

func runPage(t *testing.T, variant *explore.Variant, name string) (*bootstate.Result, error) {
	t.Helper()
	page, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture %s: %v", name, err)
	}
	defer page.Close()

	b, err := bootstate.New(variant, bootstate.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}
	return b.Run(context.Background(), page)
}

func TestDeriveFormValueWinsOverDefault(t *testing.T) {
	registry := controls.NewRegistry(controls.WithDefaultVizType("big_number"))
	for _, template := range []controls.Template{
		{Name: "viz_type", Type: controls.TypeSelect, Default: "big_number"},
		{Name: "metric", Type: controls.TypeSelect, Default: "sum", FreeForm: true},
	} {
		if err := registry.Register(template); err != nil {
			t.Fatalf("register %s: %v", template.Name, err)
		}
	}
	if err := registry.RegisterVizType(controls.VizType{Name: "big_number", Controls: []string{"viz_type", "metric"}}); err != nil {
		t.Fatalf("register viz type: %v", err)
	}

	payload := bootstate.Payload{"form_data": map[string]any{"metric": "count"}}
	computed, err := explore.New(explore.WithRegistry(registry)).Derive(context.Background(), payload)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	metric := computed["controls"].(map[string]any)["metric"].(map[string]any)
	if metric["value"] != "count" || metric["default"] != "sum" {
		t.Fatalf("unexpected metric control %v", metric)
	}
	want := map[string]any{"viz_type": "big_number", "metric": "count"}
	if diff := cmp.Diff(want, computed["latestQueryFormData"]); diff != "" {
		t.Fatalf("latestQueryFormData mismatch (-want +got):\n%s", diff)
	}
	if _, ok := payload["form_data"].(map[string]any)["viz_type"]; ok {
		t.Fatalf("derive must not modify the payload form data")
	}
}

func TestRunExplorePage(t *testing.T) {
	result, err := runPage(t, explore.New(), "explore.html")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	state := result.Store.GetState()

	if _, ok := state["form_data"]; ok {
		t.Fatalf("form_data must be stripped from the initial state")
	}
	if state["isStarred"] != false {
		t.Fatalf("reserved isStarred must shadow the payload, got %v", state["isStarred"])
	}
	if state["can_add"] != true || state["can_download"] != false {
		t.Fatalf("unexpected permissions can_add=%v can_download=%v", state["can_add"], state["can_download"])
	}
	if state["chartUpdateStartTime"] != float64(fixedNow.UnixMilli()) {
		t.Fatalf("unexpected chartUpdateStartTime %v", state["chartUpdateStartTime"])
	}
	if state["user_id"] != 3.0 {
		t.Fatalf("expected payload user_id, got %v", state["user_id"])
	}

	formData := state["latestQueryFormData"].(map[string]any)
	controlState := state["controls"].(map[string]any)
	if diff := cmp.Diff(sortedKeys(controlState), sortedKeys(formData)); diff != "" {
		t.Fatalf("controls and form data keys differ (-controls +form):\n%s", diff)
	}

	checks := map[string]any{
		"viz_type":  "table",
		"metrics":   []any{"sum__num"},
		"groupby":   []any{},
		"row_limit": 50.0,
		"filters":   []any{map[string]any{"col": "gender", "op": "in", "val": []any{"boy"}}},
		"since":     "7 days ago",
	}
	for name, want := range checks {
		if diff := cmp.Diff(want, formData[name]); diff != "" {
			t.Errorf("form data %s mismatch (-want +got):\n%s", name, diff)
		}
	}

	metrics := controlState["metrics"].(map[string]any)
	wantChoices := []any{[]any{"count", "COUNT(*)"}, []any{"sum__num", "SUM(num)"}}
	if diff := cmp.Diff(wantChoices, metrics["choices"]); diff != "" {
		t.Fatalf("metrics choices mismatch (-want +got):\n%s", diff)
	}

	if trace := result.State.Trace("controls"); trace.Winner != bootstate.ScopeComputed {
		t.Fatalf("expected controls to come from the computed scope, got %q", trace.Winner)
	}
}

func TestRunCarriesLegacyFilterSelect(t *testing.T) {
	page := `<div id="js-explore-view-container" data-bootstrap='{
		"datasource": {"type": "table", "filter_select_enabled": true, "filterable_cols": [["gender", "gender"]]},
		"form_data": {"viz_type": "table"}
	}'></div>`
	b, err := bootstate.New(explore.New(), bootstate.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}
	result, err := b.Run(context.Background(), strings.NewReader(page))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	controlState := result.Store.GetState()["controls"].(map[string]any)
	filters := controlState["filters"].(map[string]any)
	if filters["filterSelect"] != true {
		t.Fatalf("expected filterSelect on the filters control, got %v", filters["filterSelect"])
	}
	if _, ok := controlState["metrics"].(map[string]any)["filterSelect"]; ok {
		t.Fatalf("filterSelect must only be set on filter controls")
	}
}

func TestRunRejectsUnknownVizType(t *testing.T) {
	_, err := runPage(t, explore.New(), "stale_viz.html")
	var resolution *bootstate.ControlResolutionError
	if !errors.As(err, &resolution) {
		t.Fatalf("expected ControlResolutionError, got %v", err)
	}
	if resolution.Kind != controls.KindVizType || resolution.Name != "sunburst" {
		t.Fatalf("unexpected resolution error %+v", resolution)
	}
	var stageErr *bootstate.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != bootstate.StageDerive {
		t.Fatalf("expected derive stage error, got %v", err)
	}
}

func TestDeriveUnknownControls(t *testing.T) {
	payload := bootstate.Payload{"form_data": map[string]any{"viz_type": "table", "bogus": 1.0}}

	_, err := explore.New().Derive(context.Background(), payload)
	var resolution *controls.ResolutionError
	if !errors.As(err, &resolution) || resolution.Kind != controls.KindControl || resolution.Name != "bogus" {
		t.Fatalf("expected unknown control error, got %v", err)
	}

	computed, err := explore.New(explore.WithUnknownControls(controls.Ignore)).Derive(context.Background(), payload)
	if err != nil {
		t.Fatalf("derive with ignore policy: %v", err)
	}
	if _, ok := computed["latestQueryFormData"].(map[string]any)["bogus"]; ok {
		t.Fatalf("ignored control must not reach the form data")
	}
}

func TestDeriveMalformedFormData(t *testing.T) {
	_, err := explore.New().Derive(context.Background(), bootstate.Payload{"form_data": "viz_type=table"})
	var malformed *bootstate.MalformedPayloadError
	if !errors.As(err, &malformed) || malformed.Attribute != "form_data" {
		t.Fatalf("expected MalformedPayloadError on form_data, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	registry := explore.DefaultRegistry()

	if registry.DefaultVizType() != "table" {
		t.Fatalf("unexpected default viz type %q", registry.DefaultVizType())
	}
	for _, viz := range registry.VizTypes() {
		names, _, err := registry.ControlNames(viz)
		if err != nil {
			t.Fatalf("control names for %s: %v", viz, err)
		}
		for _, name := range names {
			if !registry.Has(name) {
				t.Fatalf("viz type %s lists unregistered control %s", viz, name)
			}
		}
	}

	_, overrides, err := registry.ControlNames("pie")
	if err != nil {
		t.Fatalf("control names for pie: %v", err)
	}
	if overrides["row_limit"].Default != 25.0 {
		t.Fatalf("expected pie row_limit override, got %v", overrides["row_limit"])
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
