// Package usersink forwards store activity into a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-stores/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook is an activity.ActivityHook writing go-users activity records.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs restricts forwarding to the listed verbs. Empty forwards all.
	Verbs []string
}

// Notify maps event into an ActivityRecord. Identities that are not UUIDs,
// such as service actors, are kept in the record data under <field>_ref.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if !event.Deliverable() || !h.forwards(event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := newRecordData(event)
	record := usertypes.ActivityRecord{
		ActorID:    data.identity("actor", event.ActorID),
		UserID:     data.identity("user", event.UserID),
		TenantID:   data.identity("tenant", event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	if len(data) > 0 {
		record.Data = data
	}
	return h.Sink.Log(ctx, record)
}

func (h Hook) forwards(verb string) bool {
	if len(h.Verbs) == 0 {
		return true
	}
	for _, allowed := range h.Verbs {
		if strings.EqualFold(strings.TrimSpace(allowed), verb) {
			return true
		}
	}
	return false
}

type recordData map[string]any

func newRecordData(event activity.Event) recordData {
	data := recordData{}
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = event.Recipients
	}
	return data
}

// identity parses raw as a UUID. Anything else is recorded as field_ref and
// yields uuid.Nil.
func (d recordData) identity(field, raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		d[field+"_ref"] = raw
		return uuid.Nil
	}
	return id
}
