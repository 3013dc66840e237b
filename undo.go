package stores

import "sync"

// UndoManager keeps a stack of undo patches collected from successful
// executions, across any number of stores.
type UndoManager struct {
	mu    sync.Mutex
	stack []*undoEntry
}

type undoEntry struct {
	store *Store
	ops   []Operation
}

// NewUndoManager returns an empty manager.
func NewUndoManager() *UndoManager {
	return &UndoManager{}
}

// Collector wraps cb so successful executions push their undo patch. The
// result handed to cb carries an Undo that reverts that execution and drops
// its entry from the stack.
func (m *UndoManager) Collector(cb ProcessCallback) ProcessCallback {
	return func(result ProcessResult, err error) {
		if err == nil && result.Store != nil {
			entry := &undoEntry{store: result.Store, ops: result.UndoOperations}
			m.mu.Lock()
			m.stack = append(m.stack, entry)
			m.mu.Unlock()
			result.Undo = func() error {
				m.drop(entry)
				_, err := entry.store.Apply(entry.ops, true)
				return err
			}
		}
		if cb != nil {
			cb(result, err)
		}
	}
}

// Undo pops the most recent entry and applies it. An empty stack is a no-op.
// Reverting an entry whose paths changed since may fail with ErrTestFailed.
func (m *UndoManager) Undo() error {
	m.mu.Lock()
	if len(m.stack) == 0 {
		m.mu.Unlock()
		return nil
	}
	entry := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	m.mu.Unlock()
	_, err := entry.store.Apply(entry.ops, true)
	return err
}

// Len reports the number of entries on the stack.
func (m *UndoManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

func (m *UndoManager) drop(target *undoEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i] == target {
			m.stack = append(m.stack[:i:i], m.stack[i+1:]...)
			return
		}
	}
}
