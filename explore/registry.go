package explore

import (
	"fmt"

	"github.com/goliatone/go-bootstate/controls"
)

var defaultTemplates = []controls.Template{
	{Name: "datasource", Type: controls.TypeSelect, Label: "Datasource"},
	{
		Name:    "viz_type",
		Type:    controls.TypeSelect,
		Label:   "Visualization Type",
		Default: "table",
		Choices: []controls.Choice{
			{Value: "table", Label: "Table View"},
			{Value: "line", Label: "Time Series - Line Chart"},
			{Value: "big_number", Label: "Big Number"},
			{Value: "pie", Label: "Pie Chart"},
			{Value: "dist_bar", Label: "Distribution - Bar Chart"},
		},
	},
	{
		Name:        "metric",
		Type:        controls.TypeSelect,
		Label:       "Metric",
		Default:     "count",
		FreeForm:    true,
		ChoicesFrom: controls.ChoicesFromMetrics,
		Validators:  []controls.Validator{{Rule: "nonEmpty(value)", Message: "cannot be empty"}},
	},
	{
		Name:        "metrics",
		Type:        controls.TypeSelect,
		Label:       "Metrics",
		Multi:       true,
		Default:     []any{"count"},
		ChoicesFrom: controls.ChoicesFromMetrics,
		Validators:  []controls.Validator{{Rule: "nonEmpty(value)", Message: "cannot be empty"}},
	},
	{Name: "groupby", Type: controls.TypeSelect, Label: "Group by", Multi: true, Default: []any{}, ChoicesFrom: controls.ChoicesFromGroupby},
	{Name: "columns", Type: controls.TypeSelect, Label: "Columns", Multi: true, Default: []any{}, ChoicesFrom: controls.ChoicesFromColumns},
	{Name: "granularity_sqla", Type: controls.TypeSelect, Label: "Time Column", ChoicesFrom: controls.ChoicesFromGranularity},
	{Name: "time_grain_sqla", Type: controls.TypeSelect, Label: "Time Grain", Default: "Time Column", ChoicesFrom: controls.ChoicesFromTimeGrain},
	{Name: "since", Type: controls.TypeSelect, Label: "Since", Default: "7 days ago", FreeForm: true},
	{Name: "until", Type: controls.TypeSelect, Label: "Until", Default: "now", FreeForm: true},
	{
		Name:       "row_limit",
		Type:       controls.TypeSelect,
		Label:      "Row limit",
		Default:    10000.0,
		FreeForm:   true,
		Validators: []controls.Validator{{Rule: "integer(value)", Message: "is expected to be an integer"}},
	},
	{
		Name:       "limit",
		Type:       controls.TypeSelect,
		Label:      "Series limit",
		Default:    50.0,
		FreeForm:   true,
		Validators: []controls.Validator{{Rule: "integer(value)", Message: "is expected to be an integer"}},
	},
	{Name: "order_desc", Type: controls.TypeCheckbox, Label: "Sort Descending", Default: true},
	{Name: "filters", Type: controls.TypeFilter, Label: "Filters", Default: []any{}, ChoicesFrom: controls.ChoicesFromFilterable},
	{Name: "where", Type: controls.TypeText, Label: "Custom WHERE clause", Default: ""},
	{Name: "having", Type: controls.TypeText, Label: "Custom HAVING clause", Default: ""},
	{Name: "slice_id", Type: controls.TypeHidden, Label: "Slice ID"},
}

var defaultVizTypes = []controls.VizType{
	{
		Name:  "table",
		Label: "Table View",
		Controls: []string{
			"datasource", "viz_type", "metrics", "groupby", "columns",
			"granularity_sqla", "time_grain_sqla", "since", "until",
			"row_limit", "order_desc", "filters", "where", "having", "slice_id",
		},
	},
	{
		Name:  "line",
		Label: "Time Series - Line Chart",
		Controls: []string{
			"datasource", "viz_type", "metrics", "groupby",
			"granularity_sqla", "time_grain_sqla", "since", "until",
			"limit", "filters", "where", "having", "slice_id",
		},
	},
	{
		Name:  "big_number",
		Label: "Big Number",
		Controls: []string{
			"datasource", "viz_type", "metric", "granularity_sqla",
			"since", "until", "filters", "where", "having", "slice_id",
		},
		Overrides: map[string]controls.Override{
			"metric": {Label: "Big number metric"},
		},
	},
	{
		Name:  "pie",
		Label: "Pie Chart",
		Controls: []string{
			"datasource", "viz_type", "metrics", "groupby",
			"since", "until", "row_limit", "filters", "where", "having", "slice_id",
		},
		Overrides: map[string]controls.Override{
			"row_limit": {Default: 25.0},
		},
	},
	{
		Name:  "dist_bar",
		Label: "Distribution - Bar Chart",
		Controls: []string{
			"datasource", "viz_type", "metrics", "groupby", "columns",
			"since", "until", "row_limit", "order_desc", "filters", "where", "having", "slice_id",
		},
		Overrides: map[string]controls.Override{
			"groupby": {Label: "Series"},
			"columns": {Label: "Breakdowns"},
		},
	},
}

// DefaultRegistry returns the built-in controls and viz types. The default viz
// type is table; datasources of type table and druid are accepted.
func DefaultRegistry(opts ...controls.RegistryOption) *controls.Registry {
	all := append([]controls.RegistryOption{
		controls.WithDefaultVizType("table"),
		controls.WithDatasourceTypes("table", "druid"),
	}, opts...)
	registry := controls.NewRegistry(all...)
	for _, template := range defaultTemplates {
		if err := registry.Register(template); err != nil {
			panic(fmt.Sprintf("explore: default control %q: %v", template.Name, err))
		}
	}
	for _, viz := range defaultVizTypes {
		if err := registry.RegisterVizType(viz); err != nil {
			panic(fmt.Sprintf("explore: default viz type %q: %v", viz.Name, err))
		}
	}
	return registry
}
