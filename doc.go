// Package bootstate reconciles the bootstrap payload a server embeds in an
// HTML page with client side state and seeds a store with the result.
//
// A run has four stages:
//
//	Extract  the anchor element's data attribute -> Payload
//	Derive   variant specific computed fields (controls, query editors)
//	Merge    defaults < payload < reserved status fields < computed fields
//	Store    store.New(reducer, initial state), then Renderer.Render
//
// The layering follows a scope stack: every layer is a named Scope with a
// priority and the merged State remembers which scope supplied each key
// (see State.Trace). Payload keys that collide with reserved or computed
// fields are stripped before the merge, so they are shadowed rather than
// rejected.
//
// Variants live in their own packages (explore, sqllab) and implement the
// Variant interface. A Bootstrapper runs the stages for one variant:
//
//	b, err := bootstate.New(explore.New(), bootstate.WithLogger(logger))
//	result, err := b.Run(ctx, page)
package bootstate
