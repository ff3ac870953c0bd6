package bootstate

import (
	"time"

	"github.com/goliatone/go-bootstate/layering"
)

// MergePlan describes how a variant assembles its initial state.
type MergePlan struct {
	// Defaults fill keys the payload does not supply.
	Defaults map[string]any
	// Reserved builds the status fields owned by the client. It receives the
	// instant the merge started.
	Reserved func(now time.Time) map[string]any
	// Strip lists payload keys that never reach the initial state.
	Strip []string
	// Clock defaults to time.Now.
	Clock func() time.Time
	// SnapshotID is recorded on every layer, usually the run id.
	SnapshotID string
}

func (p MergePlan) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// Merge combines defaults, the stripped payload, reserved fields and computed
// fields, weakest to strongest. The payload and computed maps are not
// modified.
func Merge(payload Payload, plan MergePlan, computed map[string]any) (*State, error) {
	now := plan.now()

	var reserved map[string]any
	if plan.Reserved != nil {
		reserved = plan.Reserved(now)
	}

	strip := make([]string, 0, len(plan.Strip)+len(reserved)+len(computed))
	strip = append(strip, plan.Strip...)
	for key := range reserved {
		strip = append(strip, key)
	}
	for key := range computed {
		strip = append(strip, key)
	}

	var opts []LayerOption
	if plan.SnapshotID != "" {
		opts = append(opts, WithSnapshotID(plan.SnapshotID))
	}
	stack, err := DefaultsPayloadReservedComputed(
		plan.Defaults,
		StripPayload(payload, strip...),
		reserved,
		computed,
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return stack.Merge(now)
}

// StripPayload returns a copy of payload without keys.
func StripPayload(payload Payload, keys ...string) Payload {
	if payload == nil {
		return Payload{}
	}
	drop := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		drop[key] = struct{}{}
	}
	out := make(Payload, len(payload))
	for key, value := range payload {
		if _, ok := drop[key]; ok {
			continue
		}
		out[key] = layering.Clone(value)
	}
	return out
}
