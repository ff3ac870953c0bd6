package bootstate

// Scope names and priorities of the initial state layers. Higher numbers win.
const (
	ScopeDefaults = "defaults"
	ScopePayload  = "payload"
	ScopeReserved = "reserved"
	ScopeComputed = "computed"

	ScopePriorityDefaults = 100
	ScopePriorityPayload  = 200
	ScopePriorityReserved = 300
	ScopePriorityComputed = 400
)

// DefaultsPayloadReservedComputed assembles the canonical four-layer stack
// (defaults -> payload -> reserved -> computed). The payload must already be
// stripped.
func DefaultsPayloadReservedComputed(defaults, payload, reserved, computed map[string]any, opts ...LayerOption) (*Stack, error) {
	return NewStack(
		NewLayer(NewScope(ScopeComputed, ScopePriorityComputed, WithScopeLabel("Computed")), computed, opts...),
		NewLayer(NewScope(ScopeReserved, ScopePriorityReserved, WithScopeLabel("Reserved status fields")), reserved, opts...),
		NewLayer(NewScope(ScopePayload, ScopePriorityPayload, WithScopeLabel("Bootstrap payload")), payload, opts...),
		NewLayer(NewScope(ScopeDefaults, ScopePriorityDefaults, WithScopeLabel("Soft defaults")), defaults, opts...),
	)
}
