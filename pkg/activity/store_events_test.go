package activity

import (
	"context"
	"errors"
	"testing"
)

func TestBuildProcessExecutedEventCarriesCounts(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	input := ProcessEventInput{
		ActorID:        " actor ",
		UserID:         " user ",
		TenantID:       " tenant ",
		ProcessID:      " increment ",
		Metadata:       meta,
		Operations:     2,
		UndoOperations: 3,
		DefinitionCode: "stores:process",
		Recipients:     []string{"user@example.com"},
		Channel:        "stores",
	}

	event := BuildProcessExecutedEvent(input)

	if event.Verb != "store.process.executed" {
		t.Fatalf("expected verb store.process.executed got %s", event.Verb)
	}
	if event.ObjectType != "store.process" || event.ObjectID != "increment" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.UserID != "user" || event.TenantID != "tenant" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Metadata["operations"] != 2 || event.Metadata["undo_operations"] != 3 {
		t.Fatalf("expected operation counts, got %+v", event.Metadata)
	}
	if _, ok := event.Metadata["error"]; ok {
		t.Fatalf("expected no error metadata, got %+v", event.Metadata)
	}
	if event.Metadata["custom"] != "value" {
		t.Fatalf("expected custom metadata preserved, got %+v", event.Metadata)
	}
	event.Metadata["custom"] = "changed"
	if meta["custom"] != "value" {
		t.Fatalf("expected input metadata untouched")
	}
	event.Recipients[0] = "changed"
	if input.Recipients[0] != "user@example.com" {
		t.Fatalf("expected input recipients untouched, got %v", input.Recipients)
	}
}

func TestBuildProcessFailedEventRecordsError(t *testing.T) {
	event := BuildProcessFailedEvent(ProcessEventInput{Err: errors.New("boom")})
	if event.Verb != "store.process.failed" {
		t.Fatalf("expected verb store.process.failed got %s", event.Verb)
	}
	if event.ObjectID != "process" {
		t.Fatalf("expected fallback object ID 'process', got %q", event.ObjectID)
	}
	if event.Metadata["error"] != "boom" {
		t.Fatalf("expected error metadata, got %+v", event.Metadata)
	}
}

func TestBuildHistoryEventsWorkWithHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	if err := hooks.Notify(context.Background(), BuildHistoryUndoneEvent(HistoryEventInput{Cursor: 1, Entries: 2, Operations: 1})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := hooks.Notify(context.Background(), BuildHistoryRedoneEvent(HistoryEventInput{HistoryID: "doc", Cursor: 2, Entries: 2})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(capture.Events) != 2 {
		t.Fatalf("expected capture to record events, got %d", len(capture.Events))
	}
	if capture.Events[0].Verb != "store.history.undone" || capture.Events[0].ObjectID != "history" {
		t.Fatalf("unexpected undo event: %+v", capture.Events[0])
	}
	if capture.Events[1].Verb != "store.history.redone" || capture.Events[1].ObjectID != "doc" {
		t.Fatalf("unexpected redo event: %+v", capture.Events[1])
	}
	if capture.Events[0].Metadata["cursor"] != 1 || capture.Events[0].Metadata["entries"] != 2 {
		t.Fatalf("expected history metadata, got %+v", capture.Events[0].Metadata)
	}
}
