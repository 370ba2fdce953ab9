package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "factory"

// Config controls activity emission.
type Config struct {
	Enabled bool
	// Channel replaces DefaultChannel for events without one.
	Channel string
}

// Emitter is the Registry side of activity reporting: it stamps the channel
// and delivers events to its hooks.
type Emitter struct {
	hooks   Hooks
	channel string
}

// NewEmitter returns an emitter for hooks. A disabled config or an empty hook
// list yields an emitter that drops every event.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	e := &Emitter{channel: strings.TrimSpace(cfg.Channel)}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	if cfg.Enabled {
		e.hooks = CloneHooks(hooks)
	}
	return e
}

// Enabled reports whether Emit delivers anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.hooks.Enabled()
}

// Emit delivers event, setting the emitter channel when the event has none.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
