// Package sqllab is the SQL Lab page variant. It opens a single untitled query
// editor bound to the payload's default database.
package sqllab

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	bootstate "github.com/goliatone/go-bootstate"
	"github.com/goliatone/go-bootstate/layering"
)

// Name of the variant.
const Name = "sqllab"

// Defaults of the editor opened on load.
const (
	DefaultEditorTitle = "Untitled Query"
	DefaultEditorSQL   = "SELECT ..."
	DefaultSouthPane   = "Results"
)

// Option configures the SQL Lab variant.
type Option func(*Variant)

// WithEditorIDs replaces the uuid generator used for query editor ids.
func WithEditorIDs(next func() string) Option {
	return func(v *Variant) {
		if next != nil {
			v.newID = next
		}
	}
}

// Variant implements bootstate.Variant for SQL Lab.
type Variant struct {
	newID func() string
}

// New returns the SQL Lab variant.
func New(opts ...Option) *Variant {
	v := &Variant{newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

func (v *Variant) Name() string { return Name }

func (v *Variant) Anchor() bootstate.Anchor { return bootstate.SQLLabAnchor }

// Plan strips defaultDbId, which only seeds the editor, and form_data.
func (v *Variant) Plan() bootstate.MergePlan {
	return bootstate.MergePlan{
		Reserved: func(time.Time) map[string]any {
			return map[string]any{
				"alerts":             []any{},
				"networkOn":          true,
				"queries":            map[string]any{},
				"databases":          map[string]any{},
				"tables":             []any{},
				"queriesLastUpdate":  0.0,
				"activeSouthPaneTab": DefaultSouthPane,
			}
		},
		Strip: []string{"defaultDbId", "form_data"},
	}
}

// Derive opens the default query editor and carries the common section.
func (v *Variant) Derive(_ context.Context, payload bootstate.Payload) (map[string]any, error) {
	common := map[string]any{}
	if raw, ok := payload["common"]; ok && raw != nil {
		object, ok := raw.(map[string]any)
		if !ok {
			return nil, &bootstate.MalformedPayloadError{
				Anchor:    bootstate.SQLLabAnchor,
				Attribute: "common",
				Err:       fmt.Errorf("expected object, got %T", raw),
			}
		}
		common = layering.CloneMap(object)
	}

	editor := map[string]any{
		"id":            v.newID(),
		"title":         DefaultEditorTitle,
		"sql":           DefaultEditorSQL,
		"selectedText":  nil,
		"latestQueryId": nil,
		"autorun":       false,
		"dbId":          layering.Clone(payload["defaultDbId"]),
	}
	return map[string]any{
		"queryEditors": []any{editor},
		"tabHistory":   []any{editor["id"]},
		"common":       common,
	}, nil
}
