package persist

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	stores "github.com/goliatone/go-stores"
)

// Persister binds a Backend and Ref to the paths selected from a store.
type Persister struct {
	backend  Backend
	ref      Ref
	selector []stores.Pointer
	timeout  time.Duration

	mu   sync.Mutex
	meta Meta
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithSaveTimeout bounds the saves triggered by Collector.
func WithSaveTimeout(timeout time.Duration) PersisterOption {
	return func(p *Persister) {
		p.timeout = timeout
	}
}

// NewPersister returns a persister saving selector under ref.
func NewPersister(backend Backend, ref Ref, selector ...stores.Pointer) *Persister {
	return NewPersisterWith(backend, ref, selector)
}

// NewPersisterWith is NewPersister with options.
func NewPersisterWith(backend Backend, ref Ref, selector []stores.Pointer, opts ...PersisterOption) *Persister {
	p := &Persister{
		backend:  backend,
		ref:      ref,
		selector: append([]stores.Pointer(nil), selector...),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Meta returns the meta of the last load or save.
func (p *Persister) Meta() Meta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneMeta(p.meta)
}

// Load restores the persisted snapshot into store. It reports false when
// nothing was persisted yet.
func (p *Persister) Load(ctx context.Context, store *stores.Store) (bool, error) {
	if p.backend == nil {
		return false, fmt.Errorf("persist: backend is required")
	}
	if store == nil {
		return false, stores.ErrNilStore
	}
	snapshot, meta, ok, err := p.backend.Load(ctx, p.ref)
	if err != nil {
		return false, fmt.Errorf("persist: load %+v: %w", p.ref, err)
	}
	if !ok {
		return false, nil
	}
	if _, err := Restore(store, snapshot); err != nil {
		return false, err
	}
	p.mu.Lock()
	p.meta = meta
	p.mu.Unlock()
	return true, nil
}

// Save captures the selected paths of store and saves them with the ETag of
// the last load or save.
func (p *Persister) Save(ctx context.Context, store *stores.Store) (Meta, error) {
	if p.backend == nil {
		return Meta{}, fmt.Errorf("persist: backend is required")
	}
	if store == nil {
		return Meta{}, stores.ErrNilStore
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	saved, err := p.backend.Save(ctx, p.ref, Capture(store, p.selector), Meta{ETag: p.meta.ETag, Extra: p.meta.Extra})
	if err != nil {
		return Meta{}, fmt.Errorf("persist: save %+v: %w", p.ref, err)
	}
	p.meta = saved
	return cloneMeta(saved), nil
}

// Collector wraps cb so every successful execution is saved. A failed save
// is reported to cb in place of the nil error.
func (p *Persister) Collector(cb stores.ProcessCallback) stores.ProcessCallback {
	return func(result stores.ProcessResult, err error) {
		if err == nil && result.Store != nil {
			ctx := context.Background()
			if p.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}
			if _, saveErr := p.Save(ctx, result.Store); saveErr != nil {
				err = saveErr
			}
		}
		if cb != nil {
			cb(result, err)
		}
	}
}

// Collector saves the selected paths of the executed store after each
// successful execution.
func Collector(backend Backend, ref Ref, selector []stores.Pointer, cb stores.ProcessCallback) stores.ProcessCallback {
	return NewPersister(backend, ref, selector...).Collector(cb)
}

// Load restores the snapshot saved under ref into store.
func Load(ctx context.Context, backend Backend, ref Ref, store *stores.Store) error {
	_, err := NewPersister(backend, ref).Load(ctx, store)
	return err
}

// Capture returns the values found at selector. Absent paths are skipped.
func Capture(store *stores.Store, selector []stores.Pointer) Snapshot {
	snapshot := make(Snapshot, 0, len(selector))
	for _, p := range selector {
		value, ok, err := store.Lookup(p)
		if err != nil || !ok {
			continue
		}
		snapshot = append(snapshot, Entry{Path: p.String(), Value: value})
	}
	return snapshot
}

// Restore writes snapshot into store in one patch, creating missing parent
// containers, and returns the undo patch.
func Restore(store *stores.Store, snapshot Snapshot) ([]stores.Operation, error) {
	var current any = store.State()
	var ops []stores.Operation
	push := func(op stores.Operation) error {
		next, err := op.Apply(current)
		if err != nil {
			return err
		}
		current = next
		ops = append(ops, op)
		return nil
	}

	for _, entry := range snapshot {
		target, err := stores.NewPointer(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("persist: restore %q: %w", entry.Path, err)
		}
		segments := target.Segments()
		for i := 1; i < len(segments); i++ {
			parent, _ := stores.PointerFrom(segments[:i]...)
			if _, ok := parent.Get(current); ok {
				continue
			}
			if err := push(stores.Add(parent, emptyContainer(segments[i]))); err != nil {
				return nil, fmt.Errorf("persist: restore %q: %w", entry.Path, err)
			}
		}
		op := stores.Add(target, entry.Value)
		if _, ok := target.Get(current); ok {
			op = stores.Replace(target, entry.Value)
		}
		if err := push(op); err != nil {
			return nil, fmt.Errorf("persist: restore %q: %w", entry.Path, err)
		}
	}
	if len(ops) == 0 {
		return nil, nil
	}
	return store.Apply(ops, true)
}

func emptyContainer(next string) any {
	if _, err := strconv.Atoi(next); err == nil {
		return []any{}
	}
	return map[string]any{}
}
