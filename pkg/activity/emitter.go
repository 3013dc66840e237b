package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events that carry no channel.
const DefaultChannel = "stores"

// Config holds the defaults an Emitter applies to outgoing events.
type Config struct {
	Enabled bool
	Channel string
	// ActorID and TenantID are stamped on events that leave them empty,
	// typically the service identity running the processes.
	ActorID  string
	TenantID string
}

// Emitter applies Config defaults and hands events to its hooks.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	channel  string
	actorID  string
	tenantID string
}

// NewEmitter builds an emitter. It is disabled when cfg.Enabled is false or
// when no non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	compacted := Compact(hooks)
	return &Emitter{
		hooks:    compacted,
		enabled:  cfg.Enabled && len(compacted) > 0,
		channel:  channel,
		actorID:  strings.TrimSpace(cfg.ActorID),
		tenantID: strings.TrimSpace(cfg.TenantID),
	}
}

func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit fills the channel, actor and tenant when the event leaves them empty,
// then notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	fill(&event.Channel, e.channel)
	fill(&event.ActorID, e.actorID)
	fill(&event.TenantID, e.tenantID)
	return e.hooks.Notify(ctx, event)
}

func fill(field *string, fallback string) {
	if strings.TrimSpace(*field) == "" {
		*field = fallback
	}
}
