package controls

import (
	"github.com/goliatone/go-bootstate/layering"
	"github.com/goliatone/go-bootstate/rules"
)

// Descriptor is the computed state of one control.
type Descriptor struct {
	Name             string      `json:"name"`
	Type             string      `json:"type,omitempty"`
	Label            string      `json:"label,omitempty"`
	Description      string      `json:"description,omitempty"`
	Default          any         `json:"default"`
	Multi            bool        `json:"multi,omitempty"`
	FreeForm         bool        `json:"freeForm,omitempty"`
	Choices          []Choice    `json:"choices,omitempty"`
	Validators       []Validator `json:"validators,omitempty"`
	ValidationErrors []string    `json:"validationErrors"`
	Value            any         `json:"value"`

	// FilterSelect is set on filter controls when the datasource can list
	// distinct column values for the filter picker.
	FilterSelect bool `json:"filterSelect,omitempty"`
}

// State maps control names to their descriptors.
type State map[string]Descriptor

// UnknownControlPolicy decides what Compute does with form data keys that
// name no registered control.
type UnknownControlPolicy int

const (
	// Reject fails with a ResolutionError.
	Reject UnknownControlPolicy = iota
	// Ignore drops the key.
	Ignore
)

// ComputeOption configures a Compute call.
type ComputeOption func(*computeConfig)

type computeConfig struct {
	unknown UnknownControlPolicy
	variant string
}

// WithUnknownControls selects the policy for unrecognised form data keys.
func WithUnknownControls(policy UnknownControlPolicy) ComputeOption {
	return func(cfg *computeConfig) {
		cfg.unknown = policy
	}
}

// WithVariant labels decode errors with the bootstrap variant name.
func WithVariant(name string) ComputeOption {
	return func(cfg *computeConfig) {
		cfg.variant = name
	}
}

// Compute builds the controls state for payload. initialValues is the form
// data the page was rendered with; it is copied, never mutated.
func Compute(registry *Registry, payload map[string]any, initialValues map[string]any, opts ...ComputeOption) (State, error) {
	cfg := computeConfig{variant: "explore"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if registry == nil {
		registry = NewRegistry()
	}

	formData := layering.CloneMap(initialValues)
	if formData == nil {
		formData = map[string]any{}
	}
	for key := range formData {
		if registry.Has(key) {
			continue
		}
		if cfg.unknown == Ignore {
			delete(formData, key)
			continue
		}
		return nil, &ResolutionError{Kind: KindControl, Name: key}
	}

	vizType, _ := formData["viz_type"].(string)
	names, overrides, err := registry.ControlNames(vizType)
	if err != nil {
		return nil, err
	}

	datasource, err := DecodeDatasource(cfg.variant, payload)
	if err != nil {
		return nil, err
	}
	if !registry.acceptsDatasourceType(datasource.Type) {
		return nil, &ResolutionError{Kind: KindDatasource, Name: datasource.Type}
	}

	state := make(State, len(names))
	for _, name := range names {
		template, _ := registry.Template(name)
		if override, ok := overrides[name]; ok {
			template = template.withOverride(override)
		}
		choices := template.Choices
		if template.ChoicesFrom != "" {
			choices = datasource.Choices(template.ChoicesFrom)
		}
		clearStaleValue(name, template, choices, formData)

		value, ok := formData[name]
		if !ok {
			value = layering.Clone(template.Default)
		}
		descriptor := Descriptor{
			Name:        name,
			Type:        template.Type,
			Label:       template.Label,
			Description: template.Description,
			Default:     template.Default,
			Multi:       template.Multi,
			FreeForm:    template.FreeForm,
			Choices:     choices,
			Validators:  template.Validators,
			Value:       value,
		}
		if template.Type == TypeFilter {
			descriptor.FilterSelect = datasource.FilterSelect
		}
		descriptor.ValidationErrors = registry.validate(name, value)
		state[name] = descriptor
	}
	return state, nil
}

// FormData projects each control's current value.
func FormData(state State) map[string]any {
	out := make(map[string]any, len(state))
	for name, descriptor := range state {
		out[name] = layering.Clone(descriptor.Value)
	}
	return out
}

// ToMap renders state as plain JSON-compatible maps, the shape stored in
// the application state.
func (s State) ToMap() map[string]any {
	out := make(map[string]any, len(s))
	for name, descriptor := range s {
		entry := map[string]any{
			"name":             descriptor.Name,
			"type":             descriptor.Type,
			"label":            descriptor.Label,
			"description":      descriptor.Description,
			"default":          layering.Clone(descriptor.Default),
			"multi":            descriptor.Multi,
			"freeForm":         descriptor.FreeForm,
			"validationErrors": toAnySlice(descriptor.ValidationErrors),
			"value":            layering.Clone(descriptor.Value),
		}
		if len(descriptor.Choices) > 0 {
			choices := make([]any, len(descriptor.Choices))
			for i, choice := range descriptor.Choices {
				choices[i] = []any{choice.Value, choice.labelOrValue()}
			}
			entry["choices"] = choices
		}
		if descriptor.Type == TypeFilter {
			entry["filterSelect"] = descriptor.FilterSelect
		}
		if len(descriptor.Validators) > 0 {
			validators := make([]any, len(descriptor.Validators))
			for i, validator := range descriptor.Validators {
				validators[i] = map[string]any{"rule": validator.Rule, "message": validator.Message}
			}
			entry["validators"] = validators
		}
		out[name] = entry
	}
	return out
}

// clearStaleValue drops form values that no longer match the datasource.
func clearStaleValue(name string, template Template, choices []Choice, formData map[string]any) {
	value, ok := formData[name]
	if !ok || value == nil || len(choices) == 0 {
		return
	}
	valid := choiceSet(choices)

	switch template.Type {
	case TypeSelect:
		if name == "datasource" {
			return
		}
		if template.Multi {
			list, ok := value.([]any)
			if !ok || len(list) == 0 {
				return
			}
			if _, found := valid[formatValue(list[0])]; !found {
				delete(formData, name)
			}
			return
		}
		if template.FreeForm {
			return
		}
		if _, found := valid[formatValue(value)]; !found {
			delete(formData, name)
		}
	case TypeFilter:
		filters, ok := value.([]any)
		if !ok {
			return
		}
		kept := make([]any, 0, len(filters))
		for _, filter := range filters {
			object, ok := filter.(map[string]any)
			if !ok {
				continue
			}
			if _, found := valid[formatValue(object["col"])]; found {
				kept = append(kept, filter)
			}
		}
		formData[name] = kept
	}
}

func (r *Registry) validate(name string, value any) []string {
	errs := []string{}
	for _, compiled := range r.validators(name) {
		ok, err := rules.Check(r.logger, r.engine, compiled.rule, compiled.validator.Rule, rules.RuleContext{
			Snapshot: map[string]any{"value": value, "control": name},
			Control:  name,
		})
		if ok && err == nil {
			continue
		}
		message := compiled.validator.Message
		if message == "" {
			message = "invalid value"
		}
		errs = append(errs, message)
	}
	return errs
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}
