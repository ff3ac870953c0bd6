package activity

import (
	"strings"
	"time"
)

// Verbs and object type emitted for bootstrap runs.
const (
	VerbBootstrapMounted = "bootstrap.mounted"
	VerbBootstrapFailed  = "bootstrap.failed"
	ObjectTypeBootstrap  = "bootstrap"
)

// StageContext captures what a bootstrap run had reached when the event was
// built.
type StageContext struct {
	Variant   string
	Anchor    string
	Stage     string
	StateKeys int
}

// BootstrapEventInput describes the common fields for bootstrap events.
type BootstrapEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	RunID          string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Stage          StageContext
	Duration       time.Duration
	Err            error
	OccurredAt     time.Time
}

// BuildBootstrapMountedEvent constructs the event for a run whose store was
// mounted.
func BuildBootstrapMountedEvent(input BootstrapEventInput) Event {
	return buildBootstrapEvent(VerbBootstrapMounted, input)
}

// BuildBootstrapFailedEvent constructs the event for a run aborted by an
// error. The error message is recorded under "error".
func BuildBootstrapFailedEvent(input BootstrapEventInput) Event {
	return buildBootstrapEvent(VerbBootstrapFailed, input)
}

func buildBootstrapEvent(verb string, input BootstrapEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Stage.Variant != "" {
		metadata = ensureMetadata(metadata)
		metadata["variant"] = input.Stage.Variant
	}
	if input.Stage.Anchor != "" {
		metadata = ensureMetadata(metadata)
		metadata["anchor"] = input.Stage.Anchor
	}
	if input.Stage.Stage != "" {
		metadata = ensureMetadata(metadata)
		metadata["stage"] = input.Stage.Stage
	}
	if input.Stage.StateKeys > 0 {
		metadata = ensureMetadata(metadata)
		metadata["state_keys"] = input.Stage.StateKeys
	}
	if input.Duration > 0 {
		metadata = ensureMetadata(metadata)
		metadata["duration_ms"] = input.Duration.Milliseconds()
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.RunID)
	if objectID == "" {
		objectID = ObjectTypeBootstrap
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     ObjectTypeBootstrap,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
