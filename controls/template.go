package controls

import "github.com/goliatone/go-bootstate/layering"

// Control types with special handling during Compute.
const (
	TypeSelect   = "SelectControl"
	TypeFilter   = "FilterControl"
	TypeText     = "TextControl"
	TypeCheckbox = "CheckboxControl"
	TypeHidden   = "HiddenControl"
)

// Datasource fields a template can draw its choices from.
const (
	ChoicesFromMetrics     = "metrics"
	ChoicesFromGroupby     = "groupby"
	ChoicesFromColumns     = "columns"
	ChoicesFromOrderBy     = "order_by"
	ChoicesFromFilterable  = "filterable"
	ChoicesFromGranularity = "granularity"
	ChoicesFromTimeGrain   = "time_grain"
)

var choiceSources = map[string]struct{}{
	ChoicesFromMetrics:     {},
	ChoicesFromGroupby:     {},
	ChoicesFromColumns:     {},
	ChoicesFromOrderBy:     {},
	ChoicesFromFilterable:  {},
	ChoicesFromGranularity: {},
	ChoicesFromTimeGrain:   {},
}

// Validator is an expression that must hold for a control value. The value is
// bound as `value` and the control name as `control`.
type Validator struct {
	Rule    string `json:"rule" yaml:"rule" toml:"rule"`
	Message string `json:"message,omitempty" yaml:"message" toml:"message"`
}

// Template is the registry entry a control descriptor is seeded from.
type Template struct {
	Name        string
	Type        string
	Label       string
	Description string
	Default     any
	Multi       bool
	FreeForm    bool
	Choices     []Choice
	ChoicesFrom string
	Validators  []Validator
}

// Override adjusts a template for one viz type. Empty fields keep the
// template value.
type Override struct {
	Label       string
	Description string
	Default     any
}

// VizType lists the controls a visualization uses, in display order.
type VizType struct {
	Name      string
	Label     string
	Controls  []string
	Overrides map[string]Override
}

func (t Template) clone() Template {
	out := t
	out.Default = layering.Clone(t.Default)
	out.Choices = cloneChoices(t.Choices)
	if len(t.Validators) > 0 {
		out.Validators = append([]Validator(nil), t.Validators...)
	}
	return out
}

func (t Template) withOverride(override Override) Template {
	if override.Label != "" {
		t.Label = override.Label
	}
	if override.Description != "" {
		t.Description = override.Description
	}
	if override.Default != nil {
		t.Default = layering.Clone(override.Default)
	}
	return t
}

func (v VizType) clone() VizType {
	out := v
	out.Controls = append([]string(nil), v.Controls...)
	if len(v.Overrides) > 0 {
		out.Overrides = make(map[string]Override, len(v.Overrides))
		for name, override := range v.Overrides {
			override.Default = layering.Clone(override.Default)
			out.Overrides[name] = override
		}
	}
	return out
}
