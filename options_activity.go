package bootstate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-bootstate/pkg/activity"
)

// WithActivityHooks attaches hooks notified when a run mounts or fails.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// ActivityHooks returns a copy of the hooks configured on b.
func (b *Bootstrapper) ActivityHooks() activity.Hooks {
	if b == nil {
		return nil
	}
	return cloneActivityHooks(b.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	return hooks.Compact()
}

// emitActivity reports the outcome of a run. Hook failures are logged and
// never change the run result.
func (b *Bootstrapper) emitActivity(ctx context.Context, run *runState, runErr error) {
	emitter := activity.NewEmitter(b.cfg.activityHooks, activity.Config{Enabled: true})
	if !emitter.Enabled() {
		return
	}

	input := activity.BootstrapEventInput{
		ActorID:  b.cfg.actorID,
		UserID:   payloadUserID(run.payload),
		TenantID: b.cfg.tenantID,
		RunID:    run.id,
		Stage: activity.StageContext{
			Variant: b.variant.Name(),
			Anchor:  b.variant.Anchor().ID,
			Stage:   run.stage,
		},
		Duration:   time.Since(run.started),
		Err:        runErr,
		OccurredAt: time.Now(),
	}
	if run.state != nil {
		input.Stage.StateKeys = len(run.state.Value)
		input.OccurredAt = run.state.CreatedAt
	}

	event := activity.BuildBootstrapMountedEvent(input)
	if runErr != nil {
		event = activity.BuildBootstrapFailedEvent(input)
	}
	if err := emitter.Emit(ctx, event); err != nil {
		b.cfg.logger.Warn("activity hooks failed",
			zap.String("run_id", run.id),
			zap.String("verb", event.Verb),
			zap.Error(err),
		)
	}
}

func payloadUserID(payload Payload) string {
	switch id := payload["user_id"].(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%d", int64(id))
	default:
		return ""
	}
}
