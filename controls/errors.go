package controls

import "fmt"

// ResolutionKind names what a ResolutionError failed to resolve.
type ResolutionKind string

const (
	KindControl    ResolutionKind = "control"
	KindVizType    ResolutionKind = "viz_type"
	KindDatasource ResolutionKind = "datasource"
)

// ResolutionError reports form data or datasource metadata that references
// something the registry does not know about.
type ResolutionError struct {
	Kind ResolutionKind
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("controls: %s %q: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("controls: unknown %s %q", e.Kind, e.Name)
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
