// Package controls derives the controls state of an explore view from a
// static control registry, the datasource metadata shipped in the bootstrap
// payload and the form data the page was rendered with.
//
// The registry is the lookup table of control templates and viz types. It is
// built in code (Register / RegisterVizType) or loaded from a YAML or TOML
// file (LoadFile). Validators attached to templates are compiled once through
// a rules.Evaluator when the template is registered.
//
// Data flow:
//
//	payload["datasource"] -> Datasource (choices)
//	payload["form_data"]  -> Compute -> State -> FormData
package controls
