package bootstate

import (
	"fmt"
	"sort"
	"strings"
)

// FieldDescriptor describes a path, the inferred type and, when built from a
// State, the scope that supplied the path's top-level key.
type FieldDescriptor struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Scope string `json:"scope,omitempty"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(value any) (SchemaDocument, error) {
	descriptors := deriveFieldDescriptors(value, "")
	if descriptors == nil {
		descriptors = []FieldDescriptor{}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

// Schema describes the merged value with generator, or the descriptor
// generator when nil, and lists the scopes it was built from.
func (s *State) Schema(generator SchemaGenerator) (SchemaDocument, error) {
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	var value any
	if s != nil {
		value = s.Value
	}
	doc, err := generator.Generate(value)
	if err != nil {
		return SchemaDocument{}, fmt.Errorf("bootstate: schema: %w", err)
	}
	if s == nil {
		return doc, nil
	}
	if descriptors, ok := doc.Document.([]FieldDescriptor); ok {
		for i := range descriptors {
			top, _, _ := strings.Cut(descriptors[i].Path, ".")
			descriptors[i].Scope = s.Provenance[top]
		}
	}
	for _, layer := range s.layers {
		doc.Scopes = append(doc.Scopes, SchemaScope{
			Name:       layer.Scope.Name,
			Label:      layer.Scope.Label,
			Priority:   layer.Scope.Priority,
			Metadata:   copyMetadata(layer.Scope.Metadata),
			SnapshotID: layer.SnapshotID,
		})
	}
	return doc, nil
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	if value == nil {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: "nil"}}
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{
				Path: prefix,
				Type: "map[string]any",
			}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, deriveFieldDescriptors(typed[key], joinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = typeName(typed[0])
		}
		return []FieldDescriptor{{
			Path: prefix,
			Type: "[]" + elementType,
		}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{
			Path: prefix,
			Type: typeName(typed),
		}}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
