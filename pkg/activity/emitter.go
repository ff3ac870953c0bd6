package activity

import (
	"context"
	"strings"
)

// Default channel and definition code applied by an Emitter.
const (
	DefaultChannel        = "bootstrap"
	DefaultDefinitionCode = "bootstrap.lifecycle"
)

// Config controls emission defaults.
type Config struct {
	Enabled        bool
	Channel        string
	DefinitionCode string
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks          Hooks
	enabled        bool
	channel        string
	definitionCode string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	compact := hooks.Compact()
	return &Emitter{
		hooks:          compact,
		enabled:        cfg.Enabled && len(compact) > 0,
		channel:        orDefault(cfg.Channel, DefaultChannel),
		definitionCode: orDefault(cfg.DefinitionCode, DefaultDefinitionCode),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Emit forwards event to all hooks, filling in the channel and definition
// code when the event leaves them empty.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.DefinitionCode) == "" {
		event.DefinitionCode = e.definitionCode
	}
	return e.hooks.Notify(ctx, event)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
