// Package usersink forwards bootstrap activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-bootstate/layering"
	"github.com/goliatone/go-bootstate/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Identifiers that are not UUIDs, such as numeric payload user ids, are kept
// in the record data under "<field>_ref".
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if !normalized.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := layering.CloneMap(normalized.Metadata)
	setData := func(key string, value any) {
		if data == nil {
			data = map[string]any{}
		}
		data[key] = value
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID, "actor_ref", setData),
		UserID:     parseUUID(normalized.UserID, "user_ref", setData),
		TenantID:   parseUUID(normalized.TenantID, "tenant_ref", setData),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	if normalized.ObjectType == activity.ObjectTypeBootstrap {
		setData("run_id", normalized.ObjectID)
	}
	if normalized.DefinitionCode != "" {
		setData("definition_code", normalized.DefinitionCode)
	}
	if len(normalized.Recipients) > 0 {
		setData("recipients", append([]string{}, normalized.Recipients...))
	}
	record.Data = data

	return h.Sink.Log(ctx, record)
}

func parseUUID(input, refKey string, set func(string, any)) uuid.UUID {
	value := strings.TrimSpace(input)
	if value == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		set(refKey, value)
		return uuid.Nil
	}
	return id
}
