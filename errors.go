package bootstate

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-bootstate/controls"
)

// MissingAnchorError reports a document without the anchor element.
type MissingAnchorError struct {
	Anchor Anchor
}

func (e *MissingAnchorError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("bootstate: anchor element %q not found", e.Anchor.ID)
}

// MalformedPayloadError reports an anchor whose attribute is absent, empty or
// not a JSON object.
type MalformedPayloadError struct {
	Anchor    Anchor
	Attribute string
	Err       error
}

func (e *MalformedPayloadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("bootstate: malformed payload in %s: %v", e.Anchor, e.Err)
	}
	return fmt.Sprintf("bootstate: malformed payload in %s", e.Anchor)
}

func (e *MalformedPayloadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ControlResolutionError reports form data or datasource metadata that the
// control registry cannot resolve.
type ControlResolutionError = controls.ResolutionError

// StageError reports the bootstrap stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("bootstate: %s failed", e.Stage)
	}
	return fmt.Sprintf("bootstate: %s: %s", e.Stage, strings.TrimPrefix(e.Err.Error(), "bootstate: "))
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
