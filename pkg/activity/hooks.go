package activity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Event is one store lifecycle occurrence: a process execution, a failed
// execution, or a history undo/redo. IDs are plain strings so sinks decide
// how to parse them.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Deliverable reports whether the event names a verb and an object. Events
// missing either are dropped before any hook sees them.
func (e Event) Deliverable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Filtered forwards only the events whose verb starts with one of prefixes.
// With no prefixes every event passes.
func Filtered(hook ActivityHook, prefixes ...string) ActivityHook {
	if hook == nil {
		return nil
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if len(prefixes) == 0 {
			return hook.Notify(ctx, event)
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(event.Verb, prefix) {
				return hook.Notify(ctx, event)
			}
		}
		return nil
	})
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Compact drops nil hooks. It returns nil when nothing is left.
func Compact(hooks Hooks) Hooks {
	var out Hooks
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

// HookFailure records the error returned by the hook at Index.
type HookFailure struct {
	Index int
	Err   error
}

// DeliveryError collects every hook failure of one Notify call. Every hook
// is still called when an earlier one fails.
type DeliveryError struct {
	Verb     string
	Failures []HookFailure
}

func (e *DeliveryError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, fmt.Sprintf("hook %d: %v", failure.Index, failure.Err))
	}
	return fmt.Sprintf("activity: deliver %q: %s", e.Verb, strings.Join(parts, "; "))
}

// Unwrap exposes the hook errors to errors.Is and errors.As.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure.Err)
	}
	return errs
}

// Notify normalizes event and forwards it to every hook. Undeliverable
// events are dropped silently. Failures come back as a *DeliveryError.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.Deliverable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var failures []HookFailure
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			failures = append(failures, HookFailure{Index: i, Err: err})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &DeliveryError{Verb: normalized.Verb, Failures: failures}
}

// NormalizeEvent returns a trimmed copy of event that shares no slices or
// maps with it. A missing timestamp is set to now; timestamps are in UTC.
func NormalizeEvent(event Event) Event {
	out := event
	for _, field := range []*string{
		&out.Verb, &out.ActorID, &out.UserID, &out.TenantID,
		&out.ObjectType, &out.ObjectID, &out.Channel, &out.DefinitionCode,
	} {
		*field = strings.TrimSpace(*field)
	}
	out.Recipients = append([]string(nil), event.Recipients...)
	out.Metadata = nil
	if len(event.Metadata) > 0 {
		out.Metadata = make(map[string]any, len(event.Metadata))
		for key, value := range event.Metadata {
			out.Metadata[key] = value
		}
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	out.OccurredAt = out.OccurredAt.UTC()
	return out
}
