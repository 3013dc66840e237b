package persist

import (
	"context"
	"sync"

	"github.com/goliatone/go-stores/internal/tree"
)

// MemoryBackend is an in-memory Backend keyed by Ref.Identifier.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: map[string]record{}}
}

func (b *MemoryBackend) Load(_ context.Context, ref Ref) (Snapshot, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	b.mu.RLock()
	rec, ok := b.records[key]
	b.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return cloneSnapshot(rec.Snapshot), cloneMeta(rec.Meta), true, nil
}

func (b *MemoryBackend) Save(_ context.Context, ref Ref, snapshot Snapshot, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	stored, found := b.records[key]
	next, err := NextMeta(stored.Meta, found, meta)
	if err != nil {
		return Meta{}, err
	}
	b.records[key] = record{Snapshot: cloneSnapshot(snapshot), Meta: next}
	return cloneMeta(next), nil
}

func cloneSnapshot(snapshot Snapshot) Snapshot {
	if snapshot == nil {
		return nil
	}
	out := make(Snapshot, len(snapshot))
	for i, entry := range snapshot {
		out[i] = Entry{Path: entry.Path, Value: tree.Clone(entry.Value)}
	}
	return out
}
