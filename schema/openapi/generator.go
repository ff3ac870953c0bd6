// Package openapi describes an initial state as an OpenAPI document: the
// state schema is published under components and returned by one operation.
package openapi

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	bootstate "github.com/goliatone/go-bootstate"
)

type generator struct {
	config Config
}

// NewGenerator constructs an OpenAPI schema generator over DefaultConfig.
func NewGenerator(opts ...Option) bootstate.SchemaGenerator {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

func (g generator) Generate(value any) (bootstate.SchemaDocument, error) {
	schema, err := buildSchema(reflect.ValueOf(value))
	if err != nil {
		return bootstate.SchemaDocument{}, err
	}
	document := buildDocument(g.config, schema)
	if err := validateDocument(document); err != nil {
		return bootstate.SchemaDocument{}, err
	}
	return bootstate.SchemaDocument{
		Format:   bootstate.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}

// nullable is the 3.0 spelling of a value that was null in the sample.
func nullable() map[string]any {
	return map[string]any{"nullable": true}
}

func buildSchema(rv reflect.Value) (map[string]any, error) {
	if !rv.IsValid() {
		return nullable(), nil
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nullable(), nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		// Whole samples are reported as integers.
		if f := rv.Float(); f == float64(int64(f)) {
			return map[string]any{"type": "integer"}, nil
		}
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			return map[string]any{"type": "string", "format": "date-time"}, nil
		}
		return schemaForStruct(rv)
	case reflect.Map:
		return schemaForMap(rv)
	case reflect.Slice, reflect.Array:
		return schemaForSlice(rv)
	default:
		return nil, fmt.Errorf("openapi: unsupported kind %s", rv.Kind())
	}
}

func schemaForMap(rv reflect.Value) (map[string]any, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("openapi: map key type %s unsupported", rv.Type().Key())
	}
	properties := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		child, err := buildSchema(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", iter.Key().String(), err)
		}
		properties[iter.Key().String()] = child
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func schemaForStruct(rv reflect.Value) (map[string]any, error) {
	rt := rv.Type()
	properties := map[string]any{}
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		child, err := buildSchema(rv.Field(i))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		properties[name] = child
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

// schemaForSlice infers items from the first element. Control choices are
// [value, label] pairs, so an array of arrays is common.
func schemaForSlice(rv reflect.Value) (map[string]any, error) {
	items := map[string]any{}
	if rv.Len() > 0 {
		var err error
		if items, err = buildSchema(rv.Index(0)); err != nil {
			return nil, fmt.Errorf("[0]: %w", err)
		}
	}
	return map[string]any{
		"type":  "array",
		"items": items,
	}, nil
}

func buildDocument(cfg Config, schema map[string]any) map[string]any {
	operation := map[string]any{
		"operationId": cfg.operationID(),
		"responses": map[string]any{
			"200": map[string]any{
				"description": "Initial state",
				"content": map[string]any{
					cfg.ContentType: map[string]any{
						"schema": map[string]any{"$ref": "#/components/schemas/" + cfg.Component},
					},
				},
			},
		},
	}
	if cfg.Summary != "" {
		operation["summary"] = cfg.Summary
	}

	info := map[string]any{
		"title":   cfg.Title,
		"version": cfg.APIVersion,
	}
	if cfg.Description != "" {
		info["description"] = cfg.Description
	}

	return map[string]any{
		"openapi": cfg.Version,
		"info":    info,
		"paths": map[string]any{
			cfg.Path: map[string]any{cfg.Method: operation},
		},
		"components": map[string]any{
			"schemas": map[string]any{cfg.Component: schema},
		},
	}
}

func validateDocument(document map[string]any) error {
	if version, _ := document["openapi"].(string); version == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	components, _ := document["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)

	pathKeys := make([]string, 0, len(paths))
	for key := range paths {
		pathKeys = append(pathKeys, key)
	}
	sort.Strings(pathKeys)
	for _, pathKey := range pathKeys {
		if !strings.HasPrefix(pathKey, "/") {
			return fmt.Errorf("openapi: path %q must start with /", pathKey)
		}
		pathItem, _ := paths[pathKey].(map[string]any)
		for method, operationValue := range pathItem {
			operation, _ := operationValue.(map[string]any)
			if _, ok := operation["operationId"].(string); !ok {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			responses, _ := operation["responses"].(map[string]any)
			if len(responses) == 0 {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
			for status, responseValue := range responses {
				response, _ := responseValue.(map[string]any)
				content, _ := response["content"].(map[string]any)
				for contentType, mediaValue := range content {
					media, _ := mediaValue.(map[string]any)
					schema, _ := media["schema"].(map[string]any)
					ref, _ := schema["$ref"].(string)
					name := strings.TrimPrefix(ref, "#/components/schemas/")
					if _, ok := schemas[name]; !ok {
						return fmt.Errorf("openapi: %s %s %s %s references unknown schema %q", method, pathKey, status, contentType, ref)
					}
				}
			}
		}
	}
	return nil
}
