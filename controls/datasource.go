package controls

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-bootstate/internal/hydrate"
)

// Datasource is the metadata an explore payload ships about the table or
// cluster being explored. Only the fields that feed control choices are kept.
type Datasource struct {
	ID                any      `json:"id,omitempty"`
	Type              string   `json:"type,omitempty"`
	Name              string   `json:"name,omitempty"`
	MetricsCombo      []Choice `json:"metrics_combo,omitempty"`
	GroupbyColumns    []Choice `json:"gb_cols,omitempty"`
	AllColumns        []Choice `json:"all_cols,omitempty"`
	OrderByChoices    []Choice `json:"order_by_choices,omitempty"`
	FilterableColumns []Choice `json:"filterable_cols,omitempty"`
	FilterSelect      bool     `json:"filter_select"`
	Granularity       []Choice `json:"granularity_sqla,omitempty"`
	TimeGrains        []Choice `json:"time_grain_sqla,omitempty"`
}

// Choices returns the choices a template with the given ChoicesFrom draws.
func (d Datasource) Choices(source string) []Choice {
	switch source {
	case ChoicesFromMetrics:
		return cloneChoices(d.MetricsCombo)
	case ChoicesFromGroupby:
		return cloneChoices(d.GroupbyColumns)
	case ChoicesFromColumns:
		return cloneChoices(d.AllColumns)
	case ChoicesFromOrderBy:
		return cloneChoices(d.OrderByChoices)
	case ChoicesFromFilterable:
		return cloneChoices(d.FilterableColumns)
	case ChoicesFromGranularity:
		return cloneChoices(d.Granularity)
	case ChoicesFromTimeGrain:
		return cloneChoices(d.TimeGrains)
	default:
		return nil
	}
}

var datasourceDecoder = hydrate.NewDecoder[Datasource](
	hydrate.WithPreHook[Datasource](normalizeLegacyDatasource),
	hydrate.WithPostHook[Datasource](normalizeDatasourceType),
)

// DecodeDatasource reads payload["datasource"]. A missing or null field
// yields the zero Datasource.
func DecodeDatasource(variant string, payload map[string]any) (Datasource, error) {
	raw, ok := payload["datasource"]
	if !ok || raw == nil {
		return Datasource{}, nil
	}
	object, ok := raw.(map[string]any)
	if !ok {
		return Datasource{}, &ResolutionError{
			Kind: KindDatasource,
			Name: "datasource",
			Err:  fmt.Errorf("expected object, got %T", raw),
		}
	}
	ds, err := datasourceDecoder.Decode(hydrate.Context{Variant: variant, Field: "datasource"}, object)
	if err != nil {
		return Datasource{}, &ResolutionError{Kind: KindDatasource, Name: datasourceName(object), Err: err}
	}
	return ds, nil
}

// normalizeLegacyDatasource maps the older table metadata layout onto the
// current keys: filter_select_enabled, and time_column_grains holding
// time_columns / time_grains.
func normalizeLegacyDatasource(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	if legacy, ok := payload["filter_select_enabled"]; ok {
		if _, exists := payload["filter_select"]; !exists {
			payload["filter_select"] = legacy
		}
		delete(payload, "filter_select_enabled")
	}

	grains, ok := payload["time_column_grains"]
	if !ok {
		return payload, nil
	}
	delete(payload, "time_column_grains")
	grainMap, ok := grains.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("time_column_grains must be an object, got %T", grains)
	}
	if _, exists := payload["granularity_sqla"]; !exists {
		if columns, ok := grainMap["time_columns"]; ok {
			payload["granularity_sqla"] = columns
		}
	}
	if _, exists := payload["time_grain_sqla"]; !exists {
		if names, ok := grainMap["time_grains"]; ok {
			payload["time_grain_sqla"] = names
		}
	}
	return payload, nil
}

// normalizeDatasourceType lower-cases the type so registry matching is
// case-insensitive.
func normalizeDatasourceType(_ hydrate.Context, ds *Datasource) error {
	ds.Type = strings.ToLower(strings.TrimSpace(ds.Type))
	return nil
}

func datasourceName(object map[string]any) string {
	if name, ok := object["name"].(string); ok && name != "" {
		return name
	}
	if kind, ok := object["type"].(string); ok && kind != "" {
		return kind
	}
	return "datasource"
}
