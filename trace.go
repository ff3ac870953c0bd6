package bootstate

import (
	"encoding/json"

	"github.com/goliatone/go-bootstate/layering"
)

// Trace captures which layers held a top-level key of the initial state.
type Trace struct {
	Path   string       `json:"path"`
	Winner string       `json:"winner,omitempty"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how a specific scope contributed to a traced key.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// Trace reports every layer's contribution to key, strongest first.
func (s *State) Trace(key string) Trace {
	trace := Trace{Path: key, Layers: []Provenance{}}
	if s == nil {
		return trace
	}
	trace.Winner = s.Provenance[key]
	for _, layer := range s.layers {
		value, found := layer.Snapshot[key]
		trace.Layers = append(trace.Layers, Provenance{
			Scope:      layer.Scope.clone(),
			SnapshotID: layer.SnapshotID,
			Path:       key,
			Value:      layering.Clone(value),
			Found:      found,
		})
	}
	return trace
}

// ToJSON serialises the trace for logging or the CLI.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
