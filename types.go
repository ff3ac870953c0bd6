package bootstate

import "time"

// Payload is the JSON object embedded in the page's anchor attribute.
type Payload = map[string]any

// InitialState is the merged state a store is seeded with.
type InitialState = map[string]any

// Anchor identifies the element and attribute carrying the payload.
type Anchor struct {
	ID        string `json:"id"`
	Attribute string `json:"attribute"`
}

func (a Anchor) String() string {
	return "#" + a.ID + "[" + a.Attribute + "]"
}

// Known anchors.
var (
	ExploreAnchor = Anchor{ID: "js-explore-view-container", Attribute: "data-bootstrap"}
	SQLLabAnchor  = Anchor{ID: "app", Attribute: "data-bootstrap"}
)

// State is the result of a merge: the initial state, the instant it was built
// and, per top-level key, the scope that supplied it.
type State struct {
	Value      InitialState
	CreatedAt  time.Time
	Provenance map[string]string

	layers []Layer
}

// Layers returns the layers the state was merged from, strongest first.
func (s *State) Layers() []Layer {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(s.layers))
	for i := range s.layers {
		out[i] = cloneLayer(s.layers[i])
	}
	return out
}

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

// Schema formats produced by the built-in generators.
const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI represents an OpenAPI document describing the
	// initial state as a response body.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema alongside its format and the
// scopes it was merged from.
type SchemaDocument struct {
	Format   SchemaFormat  `json:"format"`
	Document any           `json:"document"`
	Scopes   []SchemaScope `json:"scopes,omitempty"`
}

// SchemaScope describes a single scope entry included in a schema document.
type SchemaScope struct {
	Name       string         `json:"name"`
	Label      string         `json:"label,omitempty"`
	Priority   int            `json:"priority"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
}

// SchemaGenerator transforms a value into a schema document. Implementations
// must be safe for concurrent use and return an empty document for nil.
type SchemaGenerator interface {
	Generate(value any) (SchemaDocument, error)
}
