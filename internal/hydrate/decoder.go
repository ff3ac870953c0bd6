// Package hydrate turns loosely typed payload objects into structs. Hooks
// run on a private copy of the object, so callers' maps are never modified.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-bootstate/layering"
)

// Context identifies which part of a bootstrap payload is being decoded.
type Context struct {
	Variant string
	Field   string
}

func (c Context) String() string {
	if c.Variant == "" {
		return c.Field
	}
	return c.Variant + "." + c.Field
}

// Phase names the decode step a DecodeError came from.
type Phase string

const (
	PhaseInput  Phase = "input"
	PhasePre    Phase = "pre-hook"
	PhaseDecode Phase = "decode"
	PhasePost   Phase = "post-hook"
)

// DecodeError reports the context and phase of a failed decode.
type DecodeError struct {
	Context Context
	Phase   Phase
	Err     error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Phase {
	case PhaseInput:
		return fmt.Sprintf("hydrate: %s %v", e.Context, e.Err)
	case PhaseDecode:
		return fmt.Sprintf("hydrate: decode %s: %v", e.Context, e.Err)
	default:
		return fmt.Sprintf("hydrate: %s for %s failed: %v", e.Phase, e.Context, e.Err)
	}
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PreHook rewrites the raw object before decoding, for example to rename
// legacy keys. Returning nil keeps the object as modified in place.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded struct.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts payload objects into T.
type Decoder[T any] struct {
	preHooks       []PreHook
	postHooks      []PostHook[T]
	disallowFields bool
}

// WithPreHook appends hook to the pre-decode chain.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.preHooks = append(d.preHooks, hook)
		}
	}
}

// WithPostHook appends hook to the post-decode chain.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.postHooks = append(d.postHooks, hook)
		}
	}
}

// WithDisallowUnknownFields rejects keys T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.disallowFields = true
	}
}

// NewDecoder builds a Decoder. Decoders are safe for concurrent use.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, &DecodeError{Context: ctx, Phase: PhaseInput, Err: fmt.Errorf("is nil")}
	}

	current := layering.CloneMap(payload)
	for _, hook := range d.preHooks {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, &DecodeError{Context: ctx, Phase: PhasePre, Err: err}
		}
		if next != nil {
			current = next
		}
	}

	result, err := d.decode(ctx, current)
	if err != nil {
		return zero, &DecodeError{Context: ctx, Phase: PhaseDecode, Err: err}
	}

	for _, hook := range d.postHooks {
		if err := hook(ctx, &result); err != nil {
			return zero, &DecodeError{Context: ctx, Phase: PhasePost, Err: err}
		}
	}
	return result, nil
}

func (d *Decoder[T]) decode(ctx Context, object map[string]any) (T, error) {
	var result T
	buffer, err := json.Marshal(object)
	if err != nil {
		return result, err
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.disallowFields {
		decoder.DisallowUnknownFields()
	}
	err = decoder.Decode(&result)
	return result, err
}
