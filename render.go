package bootstate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/net/html"

	"github.com/goliatone/go-bootstate/layering"
	"github.com/goliatone/go-bootstate/store"
)

// Mount is what the render boundary receives besides the store.
type Mount struct {
	ID      string
	Node    *html.Node
	Globals map[string]any
}

// Renderer mounts the application for a seeded store.
type Renderer interface {
	Render(ctx context.Context, st *store.Store, mount Mount) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, st *store.Store, mount Mount) error

// Render calls fn.
func (fn RendererFunc) Render(ctx context.Context, st *store.Store, mount Mount) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, st, mount)
}

// SessionInitializer prepares request state, such as a CSRF token, before
// the payload is read.
type SessionInitializer interface {
	Init(ctx context.Context) error
}

// SessionInitializerFunc adapts a function to SessionInitializer.
type SessionInitializerFunc func(ctx context.Context) error

// Init calls fn.
func (fn SessionInitializerFunc) Init(ctx context.Context) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// JSONRenderer writes the store's state as indented JSON. Globals are
// written under "globals" when present.
func JSONRenderer(w io.Writer) Renderer {
	return RendererFunc(func(_ context.Context, st *store.Store, mount Mount) error {
		if st == nil {
			return fmt.Errorf("bootstate: render: store is nil")
		}
		out := st.GetState()
		if len(mount.Globals) > 0 {
			out = map[string]any{
				"state":   out,
				"globals": layering.CloneMap(mount.Globals),
			}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	})
}
