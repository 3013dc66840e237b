package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-stores/pkg/activity"
)

// HistoryEntry is one recorded execution.
type HistoryEntry struct {
	Operations     []Operation `json:"operations"`
	UndoOperations []Operation `json:"undoOperations"`
}

// HistoryData is the serialized history of one store. Entries before Cursor
// are applied; entries from Cursor on can be redone.
type HistoryData struct {
	History []HistoryEntry `json:"history"`
	Cursor  int            `json:"cursor"`
}

// HistoryOption configures a HistoryManager.
type HistoryOption func(*historyConfig)

type historyConfig struct {
	id       string
	hooks    activity.Hooks
	channel  string
	actorID  string
	tenantID string
	logger   HistoryLogger
}

// WithHistoryLogger attaches a logger that observes every undo and redo,
// including activity hook failures.
func WithHistoryLogger(logger HistoryLogger) HistoryOption {
	return func(cfg *historyConfig) {
		cfg.logger = logger
	}
}

// WithHistoryActivityHooks emits undo and redo events to hooks.
func WithHistoryActivityHooks(hooks activity.Hooks) HistoryOption {
	normalized := activity.Compact(hooks)
	return func(cfg *historyConfig) {
		cfg.hooks = normalized
	}
}

// WithHistoryChannel overrides the channel stamped on undo and redo events.
func WithHistoryChannel(channel string) HistoryOption {
	return func(cfg *historyConfig) {
		cfg.channel = channel
	}
}

// WithHistoryActor sets the actor and tenant stamped on undo and redo events.
func WithHistoryActor(actorID, tenantID string) HistoryOption {
	return func(cfg *historyConfig) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

// WithHistoryID names the manager in emitted events.
func WithHistoryID(id string) HistoryOption {
	return func(cfg *historyConfig) {
		cfg.id = id
	}
}

// HistoryManager records an undo/redo history per store.
type HistoryManager struct {
	mu        sync.Mutex
	histories map[*Store]*HistoryData
	emitter   *activity.Emitter
	cfg       historyConfig
}

// NewHistoryManager returns a manager with no recorded history.
func NewHistoryManager(opts ...HistoryOption) *HistoryManager {
	cfg := historyConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopHistoryLogger{}
	}
	emitter := activity.NewEmitter(cfg.hooks, activity.Config{
		Enabled:  true,
		Channel:  cfg.channel,
		ActorID:  cfg.actorID,
		TenantID: cfg.tenantID,
	})
	return &HistoryManager{
		histories: map[*Store]*HistoryData{},
		emitter:   emitter,
		cfg:       cfg,
	}
}

// Collector wraps cb so successful executions are appended to the history of
// their store. Entries past the cursor are discarded first. The result handed
// to cb undoes through the manager.
func (m *HistoryManager) Collector(cb ProcessCallback) ProcessCallback {
	return func(result ProcessResult, err error) {
		if err == nil && result.Store != nil {
			store := result.Store
			m.mu.Lock()
			h := m.history(store)
			h.History = append(h.History[:h.Cursor:h.Cursor], HistoryEntry{
				Operations:     result.Operations,
				UndoOperations: result.UndoOperations,
			})
			h.Cursor = len(h.History)
			m.mu.Unlock()
			result.Undo = func() error {
				return m.Undo(store)
			}
		}
		if cb != nil {
			cb(result, err)
		}
	}
}

// Undo reverts the entry before the cursor. Without one it is a no-op.
func (m *HistoryManager) Undo(store *Store) error {
	if store == nil {
		return ErrNilStore
	}
	m.mu.Lock()
	h := m.history(store)
	if h.Cursor == 0 {
		m.mu.Unlock()
		return nil
	}
	entry := h.History[h.Cursor-1]
	cursor, entries := h.Cursor, len(h.History)
	m.mu.Unlock()

	if _, err := store.Apply(entry.UndoOperations, true); err != nil {
		err = fmt.Errorf("stores: history undo: %w", err)
		m.cfg.logger.LogHistory(HistoryLogEvent{
			HistoryID:  m.cfg.id,
			Action:     "undo",
			Cursor:     cursor,
			Entries:    entries,
			Operations: len(entry.UndoOperations),
			Err:        err,
		})
		return err
	}

	m.mu.Lock()
	h.Cursor--
	data := activity.HistoryEventInput{
		HistoryID:  m.cfg.id,
		Cursor:     h.Cursor,
		Entries:    len(h.History),
		Operations: len(entry.UndoOperations),
	}
	m.mu.Unlock()
	m.emit("undo", data, activity.BuildHistoryUndoneEvent(data))
	return nil
}

// Redo re-applies the entry at the cursor and refreshes its undo patch.
// Without one it is a no-op.
func (m *HistoryManager) Redo(store *Store) error {
	if store == nil {
		return ErrNilStore
	}
	m.mu.Lock()
	h := m.history(store)
	if h.Cursor >= len(h.History) {
		m.mu.Unlock()
		return nil
	}
	cursor, entries := h.Cursor, len(h.History)
	entry := h.History[cursor]
	m.mu.Unlock()

	undo, err := store.Apply(entry.Operations, true)
	if err != nil {
		err = fmt.Errorf("stores: history redo: %w", err)
		m.cfg.logger.LogHistory(HistoryLogEvent{
			HistoryID:  m.cfg.id,
			Action:     "redo",
			Cursor:     cursor,
			Entries:    entries,
			Operations: len(entry.Operations),
			Err:        err,
		})
		return err
	}

	m.mu.Lock()
	if cursor < len(h.History) {
		h.History[cursor].UndoOperations = undo
	}
	h.Cursor = cursor + 1
	data := activity.HistoryEventInput{
		HistoryID:  m.cfg.id,
		Cursor:     h.Cursor,
		Entries:    len(h.History),
		Operations: len(entry.Operations),
	}
	m.mu.Unlock()
	m.emit("redo", data, activity.BuildHistoryRedoneEvent(data))
	return nil
}

// CanUndo reports whether Undo would revert an entry.
func (m *HistoryManager) CanUndo(store *Store) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[store]
	return ok && h.Cursor > 0
}

// CanRedo reports whether Redo would re-apply an entry.
func (m *HistoryManager) CanRedo(store *Store) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[store]
	return ok && h.Cursor < len(h.History)
}

// Serialize returns a copy of the history recorded for store.
func (m *HistoryManager) Serialize(store *Store) HistoryData {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[store]
	if !ok {
		return HistoryData{History: []HistoryEntry{}}
	}
	out := HistoryData{
		History: make([]HistoryEntry, len(h.History)),
		Cursor:  h.Cursor,
	}
	for i, entry := range h.History {
		out.History[i] = HistoryEntry{
			Operations:     append([]Operation(nil), entry.Operations...),
			UndoOperations: append([]Operation(nil), entry.UndoOperations...),
		}
	}
	return out
}

// Deserialize replaces the history of store with data and replays the
// operations of every entry before the cursor onto store.
func (m *HistoryManager) Deserialize(store *Store, data HistoryData) error {
	if store == nil {
		return ErrNilStore
	}
	if data.Cursor < 0 || data.Cursor > len(data.History) {
		return fmt.Errorf("stores: history cursor %d out of range [0,%d]", data.Cursor, len(data.History))
	}
	entries := make([]HistoryEntry, len(data.History))
	copy(entries, data.History)

	m.mu.Lock()
	m.histories[store] = &HistoryData{History: entries, Cursor: data.Cursor}
	m.mu.Unlock()

	for i := 0; i < data.Cursor; i++ {
		if _, err := store.Apply(entries[i].Operations, true); err != nil {
			return fmt.Errorf("stores: history replay entry %d: %w", i, err)
		}
	}
	return nil
}

// history returns the record for store, creating it. Callers hold m.mu.
func (m *HistoryManager) history(store *Store) *HistoryData {
	h, ok := m.histories[store]
	if !ok {
		h = &HistoryData{}
		m.histories[store] = h
	}
	return h
}

// emit delivers event and logs the completed action with any hook failure.
func (m *HistoryManager) emit(action string, data activity.HistoryEventInput, event activity.Event) {
	var hookErr error
	if m.emitter.Enabled() {
		hookErr = m.emitter.Emit(context.Background(), event)
	}
	m.cfg.logger.LogHistory(HistoryLogEvent{
		HistoryID:  data.HistoryID,
		Action:     action,
		Cursor:     data.Cursor,
		Entries:    data.Entries,
		Operations: data.Operations,
		HookErr:    hookErr,
	})
}
