package activity

import (
	"strings"
	"time"
)

// ProcessEventInput describes the common fields for process lifecycle events.
type ProcessEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ProcessID      string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Operations     int
	UndoOperations int
	Err            error
	OccurredAt     time.Time
}

// HistoryEventInput describes an undo or redo step of a history manager.
type HistoryEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	HistoryID  string
	Channel    string
	Metadata   map[string]any
	Cursor     int
	Entries    int
	Operations int
	OccurredAt time.Time
}

// BuildProcessExecutedEvent constructs the event for a successful execution.
func BuildProcessExecutedEvent(input ProcessEventInput) Event {
	return buildProcessEvent("store.process.executed", input)
}

// BuildProcessFailedEvent constructs the event for a failed execution.
func BuildProcessFailedEvent(input ProcessEventInput) Event {
	return buildProcessEvent("store.process.failed", input)
}

// BuildHistoryUndoneEvent constructs the event for a history undo step.
func BuildHistoryUndoneEvent(input HistoryEventInput) Event {
	return buildHistoryEvent("store.history.undone", input)
}

// BuildHistoryRedoneEvent constructs the event for a history redo step.
func BuildHistoryRedoneEvent(input HistoryEventInput) Event {
	return buildHistoryEvent("store.history.redone", input)
}

func buildProcessEvent(verb string, input ProcessEventInput) Event {
	metadata := metadataCopy(input.Metadata)
	metadata["operations"] = input.Operations
	metadata["undo_operations"] = input.UndoOperations
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ProcessID)
	if objectID == "" {
		objectID = "process"
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     "store.process",
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func buildHistoryEvent(verb string, input HistoryEventInput) Event {
	metadata := metadataCopy(input.Metadata)
	metadata["cursor"] = input.Cursor
	metadata["entries"] = input.Entries
	metadata["operations"] = input.Operations

	objectID := strings.TrimSpace(input.HistoryID)
	if objectID == "" {
		objectID = "history"
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: "store.history",
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// metadataCopy returns a writable copy of meta, never nil.
func metadataCopy(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+3)
	for key, value := range meta {
		out[key] = value
	}
	return out
}
