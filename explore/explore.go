// Package explore is the chart explore page variant: it derives the controls
// state and latest query form data from the payload's form_data.
package explore

import (
	"context"
	"errors"
	"time"

	bootstate "github.com/goliatone/go-bootstate"
	"github.com/goliatone/go-bootstate/controls"
)

// Name of the variant.
const Name = "explore"

var errFormDataNotObject = errors.New("form_data must be an object")

// Option configures the explore variant.
type Option func(*Variant)

// WithRegistry replaces DefaultRegistry.
func WithRegistry(registry *controls.Registry) Option {
	return func(v *Variant) {
		if registry != nil {
			v.registry = registry
		}
	}
}

// WithUnknownControls selects what happens to form data keys naming no
// registered control. Defaults to controls.Reject.
func WithUnknownControls(policy controls.UnknownControlPolicy) Option {
	return func(v *Variant) {
		v.unknown = policy
	}
}

// Variant implements bootstate.Variant for the explore view.
type Variant struct {
	registry *controls.Registry
	unknown  controls.UnknownControlPolicy
}

// New returns the explore variant.
func New(opts ...Option) *Variant {
	v := &Variant{}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if v.registry == nil {
		v.registry = DefaultRegistry()
	}
	return v
}

func (v *Variant) Name() string { return Name }

func (v *Variant) Anchor() bootstate.Anchor { return bootstate.ExploreAnchor }

// Registry returns the control registry the variant computes against.
func (v *Variant) Registry() *controls.Registry { return v.registry }

// Plan strips form_data and seeds the chart status fields. The chart update
// start time is the merge instant in Unix milliseconds.
func (v *Variant) Plan() bootstate.MergePlan {
	return bootstate.MergePlan{
		Defaults: map[string]any{
			"dashboards":    []any{},
			"can_add":       false,
			"can_download":  false,
			"can_overwrite": false,
			"slice":         nil,
			"user_id":       nil,
		},
		Reserved: func(now time.Time) map[string]any {
			return map[string]any{
				"alert":                   nil,
				"chartStatus":             nil,
				"chartUpdateEndTime":      nil,
				"chartUpdateStartTime":    float64(now.UnixMilli()),
				"filterColumnOpts":        []any{},
				"isDatasourceMetaLoading": false,
				"isStarred":               false,
				"queryResponse":           nil,
				"triggerRender":           false,
			}
		},
		Strip: []string{"form_data"},
	}
}

// Derive computes the controls from payload["form_data"].
func (v *Variant) Derive(_ context.Context, payload bootstate.Payload) (map[string]any, error) {
	formData, err := initialValues(payload)
	if err != nil {
		return nil, err
	}
	state, err := controls.Compute(v.registry, payload, formData,
		controls.WithUnknownControls(v.unknown),
		controls.WithVariant(Name),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"controls":            state.ToMap(),
		"latestQueryFormData": controls.FormData(state),
	}, nil
}

func initialValues(payload bootstate.Payload) (map[string]any, error) {
	raw, ok := payload["form_data"]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}
	formData, ok := raw.(map[string]any)
	if !ok {
		return nil, &bootstate.MalformedPayloadError{
			Anchor:    bootstate.ExploreAnchor,
			Attribute: "form_data",
			Err:       errFormDataNotObject,
		}
	}
	return formData, nil
}
