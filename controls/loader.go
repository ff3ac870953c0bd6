package controls

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-bootstate/internal/hydrate"
)

// fileRegistry is the on-disk layout of a registry file. Both YAML and TOML
// files are normalised to JSON before decoding so choices accept the same
// pair, object and scalar forms everywhere.
type fileRegistry struct {
	DefaultVizType  string        `json:"default_viz_type"`
	DatasourceTypes []string      `json:"datasource_types"`
	Controls        []fileControl `json:"controls"`
	VizTypes        []fileVizType `json:"viz_types"`
}

type fileControl struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Default     any         `json:"default"`
	Multi       bool        `json:"multi"`
	FreeForm    bool        `json:"free_form"`
	Choices     []Choice    `json:"choices"`
	ChoicesFrom string      `json:"choices_from"`
	Validators  []Validator `json:"validators"`
}

type fileVizType struct {
	Name      string                  `json:"name"`
	Label     string                  `json:"label"`
	Controls  []string                `json:"controls"`
	Overrides map[string]fileOverride `json:"overrides"`
}

type fileOverride struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Default     any    `json:"default"`
}

// LoadFile builds a registry from a .yaml, .yml or .toml file. opts are
// applied before the file's own settings.
func LoadFile(path string, opts ...RegistryOption) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controls: read registry: %w", err)
	}

	var generic map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("controls: parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(raw), &generic); err != nil {
			return nil, fmt.Errorf("controls: parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("controls: unsupported registry format %q", ext)
	}

	return Load(generic, opts...)
}

var registryDecoder = hydrate.NewDecoder[fileRegistry](
	hydrate.WithDisallowUnknownFields[fileRegistry](),
)

// Load builds a registry from an already parsed document.
func Load(document map[string]any, opts ...RegistryOption) (*Registry, error) {
	if document == nil {
		document = map[string]any{}
	}
	file, err := registryDecoder.Decode(hydrate.Context{Field: "registry"}, document)
	if err != nil {
		return nil, fmt.Errorf("controls: decode registry: %w", err)
	}

	all := append([]RegistryOption{}, opts...)
	if file.DefaultVizType != "" {
		all = append(all, WithDefaultVizType(file.DefaultVizType))
	}
	if len(file.DatasourceTypes) > 0 {
		all = append(all, WithDatasourceTypes(file.DatasourceTypes...))
	}
	registry := NewRegistry(all...)

	for _, control := range file.Controls {
		if err := registry.Register(Template{
			Name:        control.Name,
			Type:        control.Type,
			Label:       control.Label,
			Description: control.Description,
			Default:     control.Default,
			Multi:       control.Multi,
			FreeForm:    control.FreeForm,
			Choices:     control.Choices,
			ChoicesFrom: control.ChoicesFrom,
			Validators:  control.Validators,
		}); err != nil {
			return nil, err
		}
	}
	for _, viz := range file.VizTypes {
		overrides := make(map[string]Override, len(viz.Overrides))
		for name, override := range viz.Overrides {
			overrides[name] = Override(override)
		}
		if err := registry.RegisterVizType(VizType{
			Name:      viz.Name,
			Label:     viz.Label,
			Controls:  viz.Controls,
			Overrides: overrides,
		}); err != nil {
			return nil, err
		}
	}
	if name := registry.DefaultVizType(); name != "" && len(file.VizTypes) > 0 {
		if _, _, err := registry.ControlNames(name); err != nil {
			return nil, fmt.Errorf("controls: default viz type: %w", err)
		}
	}
	return registry, nil
}
