package controls

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-bootstate/rules"
)

var (
	// ErrControlNameRequired indicates a template without a name.
	ErrControlNameRequired = errors.New("controls: name must be provided")
	// ErrDuplicateControl indicates a template name registered twice.
	ErrDuplicateControl = errors.New("controls: names must be unique")
	// ErrUnknownChoiceSource indicates a template drawing choices from a
	// datasource field that does not exist.
	ErrUnknownChoiceSource = errors.New("controls: unknown choices source")
)

// Registry is the static lookup table of control templates and viz types.
// It is safe for concurrent reads once populated.
type Registry struct {
	mu              sync.RWMutex
	templates       map[string]Template
	vizTypes        map[string]VizType
	defaultViz      string
	datasourceTypes map[string]struct{}

	evaluator rules.Evaluator
	engine    string
	logger    rules.EvaluatorLogger
	compiled  map[string][]compiledValidator
}

type compiledValidator struct {
	validator Validator
	rule      rules.CompiledRule
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEvaluator sets the engine validators compile against.
func WithEvaluator(evaluator rules.Evaluator) RegistryOption {
	return func(r *Registry) {
		if evaluator != nil {
			r.evaluator = evaluator
		}
	}
}

// WithEvaluatorLogger reports every validator run to logger.
func WithEvaluatorLogger(logger rules.EvaluatorLogger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDefaultVizType sets the viz type used when form data carries none.
func WithDefaultVizType(name string) RegistryOption {
	return func(r *Registry) {
		r.defaultViz = strings.TrimSpace(name)
	}
}

// WithDatasourceTypes restricts the datasource types Compute accepts.
func WithDatasourceTypes(types ...string) RegistryOption {
	return func(r *Registry) {
		for _, name := range types {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if r.datasourceTypes == nil {
				r.datasourceTypes = map[string]struct{}{}
			}
			r.datasourceTypes[name] = struct{}{}
		}
	}
}

// NewRegistry returns an empty registry. Validators compile with the expr
// engine and the default function set unless WithEvaluator is given.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		templates: map[string]Template{},
		vizTypes:  map[string]VizType{},
		compiled:  map[string][]compiledValidator{},
		logger:    rules.NoopEvaluatorLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.evaluator == nil {
		r.evaluator = rules.NewExprEvaluator(
			rules.ExprWithFunctionRegistry(rules.DefaultFunctions()),
			rules.ExprWithProgramCache(rules.NewMemoryCache()),
		)
	}
	r.engine = rules.EngineName(r.evaluator)
	return r
}

// Register adds a control template, compiling its validators.
func (r *Registry) Register(template Template) error {
	template.Name = strings.TrimSpace(template.Name)
	if template.Name == "" {
		return ErrControlNameRequired
	}
	if template.ChoicesFrom != "" {
		if _, ok := choiceSources[template.ChoicesFrom]; !ok {
			return fmt.Errorf("%w: %q on control %q", ErrUnknownChoiceSource, template.ChoicesFrom, template.Name)
		}
	}

	compiled := make([]compiledValidator, 0, len(template.Validators))
	for _, validator := range template.Validators {
		if strings.TrimSpace(validator.Rule) == "" {
			return fmt.Errorf("controls: control %q has a validator without rule", template.Name)
		}
		rule, err := r.evaluator.Compile(validator.Rule, rules.WithVariables("value", "control"), rules.ForControl(template.Name))
		if err != nil {
			return fmt.Errorf("controls: compile validator for %q: %w", template.Name, err)
		}
		compiled = append(compiled, compiledValidator{validator: validator, rule: rule})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[template.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateControl, template.Name)
	}
	r.templates[template.Name] = template.clone()
	r.compiled[template.Name] = compiled
	return nil
}

// RegisterVizType adds a viz type. Every control it lists must already be
// registered.
func (r *Registry) RegisterVizType(viz VizType) error {
	viz.Name = strings.TrimSpace(viz.Name)
	if viz.Name == "" {
		return fmt.Errorf("controls: viz type name must be provided")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.vizTypes[viz.Name]; exists {
		return fmt.Errorf("controls: viz type %q already registered", viz.Name)
	}
	seen := make(map[string]struct{}, len(viz.Controls))
	ordered := make([]string, 0, len(viz.Controls))
	for _, name := range viz.Controls {
		if _, ok := r.templates[name]; !ok {
			return fmt.Errorf("controls: viz type %q references unknown control %q", viz.Name, name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		ordered = append(ordered, name)
	}
	for name := range viz.Overrides {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("controls: viz type %q overrides control %q it does not use", viz.Name, name)
		}
	}
	viz.Controls = ordered
	r.vizTypes[viz.Name] = viz.clone()
	return nil
}

// Has reports whether name is a registered control.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// Template returns a copy of the template registered under name.
func (r *Registry) Template(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	template, ok := r.templates[name]
	if !ok {
		return Template{}, false
	}
	return template.clone(), true
}

// Names returns registered control names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VizTypes returns registered viz type names sorted alphabetically.
func (r *Registry) VizTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.vizTypes))
	for name := range r.vizTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultVizType returns the viz type used when form data names none.
func (r *Registry) DefaultVizType() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultViz
}

// Engine reports the rules engine validators run on.
func (r *Registry) Engine() string {
	return r.engine
}

// ControlNames resolves the controls used by vizType. A registry without viz
// types applies every control.
func (r *Registry) ControlNames(vizType string) ([]string, map[string]Override, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.vizTypes) == 0 {
		names := make([]string, 0, len(r.templates))
		for name := range r.templates {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil, nil
	}

	if vizType == "" {
		vizType = r.defaultViz
	}
	viz, ok := r.vizTypes[vizType]
	if !ok {
		return nil, nil, &ResolutionError{Kind: KindVizType, Name: vizType}
	}
	clone := viz.clone()
	return clone.Controls, clone.Overrides, nil
}

func (r *Registry) acceptsDatasourceType(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.datasourceTypes) == 0 || name == "" {
		return true
	}
	_, ok := r.datasourceTypes[name]
	return ok
}

func (r *Registry) validators(name string) []compiledValidator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compiled[name]
}
