package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-stores/pkg/activity"
	"github.com/goliatone/go-stores/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsProcessEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildProcessExecutedEvent(activity.ProcessEventInput{
		ActorID:        actorID.String(),
		UserID:         userID.String(),
		TenantID:       tenantID.String(),
		ProcessID:      "increment",
		Channel:        "stores",
		DefinitionCode: "stores:process",
		Recipients:     []string{"recipient@example.com"},
		Operations:     1,
		UndoOperations: 1,
		OccurredAt:     now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.UserID != userID || record.TenantID != tenantID {
		t.Fatalf("unexpected identity fields: %+v", record)
	}
	if record.Verb != "store.process.executed" || record.ObjectType != "store.process" || record.ObjectID != "increment" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "stores" {
		t.Fatalf("expected channel stores got %q", record.Channel)
	}
	if record.OccurredAt != now {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["definition_code"] != "stores:process" {
		t.Fatalf("expected definition_code metadata got %v", record.Data["definition_code"])
	}
	if record.Data["operations"] != 1 {
		t.Fatalf("expected metadata passthrough got %v", record.Data["operations"])
	}
	recipients, ok := record.Data["recipients"].([]string)
	if !ok || len(recipients) != 1 || recipients[0] != "recipient@example.com" {
		t.Fatalf("expected recipients metadata got %v", record.Data["recipients"])
	}
}

func TestHookNotifyKeepsNonUUIDIdentities(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       "store.history.undone",
		ActorID:    "not-a-uuid",
		ObjectType: "store.history",
		ObjectID:   "history",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected nil actor, got %s", sink.records[0].ActorID)
	}
	if diff := cmp.Diff(map[string]any{"actor_ref": "not-a-uuid"}, sink.records[0].Data); diff != "" {
		t.Fatalf("record data mismatch (-want +got):\n%s", diff)
	}

	_ = hook.Notify(context.Background(), activity.Event{Verb: "store.history.redone", ObjectType: "store.history", ObjectID: "history"})
	if sink.records[1].Data != nil {
		t.Fatalf("expected no data without metadata or refs, got %v", sink.records[1].Data)
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Verbs: []string{"store.process.failed"}}

	executed := activity.BuildProcessExecutedEvent(activity.ProcessEventInput{ProcessID: "p"})
	failed := activity.BuildProcessFailedEvent(activity.ProcessEventInput{ProcessID: "p", Err: errors.New("boom")})
	if err := hook.Notify(context.Background(), executed); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := hook.Notify(context.Background(), failed); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 || sink.records[0].Verb != "store.process.failed" {
		t.Fatalf("expected only the failed event, got %+v", sink.records)
	}
}

func TestHookNotifyDefaultsTimestampAndPropagatesError(t *testing.T) {
	sinkErr := errors.New("sink down")
	sink := &recordingSink{err: sinkErr}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       "store.process.executed",
		ObjectType: "store.process",
		ObjectID:   "1",
	})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}
