package stores

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-stores/internal/tree"
)

// Store owns a root tree that is only changed through Apply. Nodes are
// never mutated after they become reachable from the root, so values
// returned by Get stay stable.
type Store struct {
	mu        sync.RWMutex
	root      map[string]any
	listeners []*changeListener
	observers []*changeListener
	pending   []Pointer
	cfg       storeConfig
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	layers []map[string]any
	logger ApplyLogger
}

// WithInitialState seeds the store with layers ordered strongest to weakest.
func WithInitialState(layers ...map[string]any) StoreOption {
	return func(cfg *storeConfig) {
		cfg.layers = append(cfg.layers, layers...)
	}
}

// WithApplyLogger attaches a logger that observes every Apply call.
func WithApplyLogger(logger ApplyLogger) StoreOption {
	return func(cfg *storeConfig) {
		cfg.logger = logger
	}
}

// NewStore constructs an empty store, or one seeded by WithInitialState.
func NewStore(opts ...StoreOption) *Store {
	cfg := storeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopApplyLogger{}
	}
	return &Store{
		root: tree.Merge(cfg.layers...),
		cfg:  cfg,
	}
}

// Apply runs ops in order against the current root and returns the undo
// patch: applying it as returned restores the tree from before the call.
// There is no rollback: when an operation fails the earlier ones stay
// applied and the undo patch covering them is returned with the error.
// With notify set, change callbacks and invalidation observers run before
// Apply returns.
func (s *Store) Apply(ops []Operation, notify bool) ([]Operation, error) {
	undo, _, err := s.apply(ops, notify)
	return undo, err
}

// apply is Apply that also reports how many operations took effect.
func (s *Store) apply(ops []Operation, notify bool) ([]Operation, int, error) {
	start := time.Now()
	s.mu.Lock()
	var current any = s.root
	var undo []Operation
	var applyErr error
	applied := 0
	for _, op := range ops {
		next, inverse, err := applyWithInverse(current, op)
		if err != nil {
			applyErr = err
			break
		}
		s.pending = append(s.pending, touchedPaths(current, op)...)
		current = next
		undo = append(inverse, undo...)
		applied++
	}
	s.root = current.(map[string]any)
	s.mu.Unlock()

	s.cfg.logger.LogApply(ApplyLogEvent{
		Operations: len(ops),
		Applied:    applied,
		Duration:   time.Since(start),
		Err:        applyErr,
	})
	if notify {
		s.Invalidate()
	}
	return undo, applied, applyErr
}

// Get returns the value at p, or nil when absent.
func (s *Store) Get(p Pointer) any {
	value, _, _ := s.Lookup(p)
	return value
}

// Lookup returns the value at p and whether it exists. The zero pointer
// fails with ErrRootAccessDenied.
func (s *Store) Lookup(p Pointer) (any, bool, error) {
	if p.IsZero() {
		return nil, false, ErrRootAccessDenied
	}
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()
	value, ok := p.Get(root)
	return value, ok, nil
}

// State returns the current root. Callers must treat it as read-only.
func (s *Store) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Path builds a pointer from strings, ints and pointers (concatenated).
func (s *Store) Path(segments ...any) (Pointer, error) {
	return buildPath(segments...)
}

// MustPath is Path that panics on error.
func (s *Store) MustPath(segments ...any) Pointer {
	p, err := buildPath(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// At addresses index within the sequence at p.
func (s *Store) At(p Pointer, index int) Pointer {
	return p.Push(strconv.Itoa(index))
}

// Subscription is returned by OnChange and OnInvalidate.
type Subscription struct {
	remove func()
}

// Remove unregisters the callback. It is safe to call more than once.
func (s *Subscription) Remove() {
	if s != nil && s.remove != nil {
		s.remove()
	}
}

type changeListener struct {
	paths    []Pointer
	callback func()
	active   atomic.Bool
}

func (l *changeListener) matches(touched []Pointer) bool {
	for _, registered := range l.paths {
		for _, path := range touched {
			if registered.Related(path) {
				return true
			}
		}
	}
	return false
}

// OnChange registers callback for changes touching any of pointers, their
// ancestors or their descendants. The callback fires at most once per flush.
func (s *Store) OnChange(callback func(), pointers ...Pointer) *Subscription {
	paths := make([]Pointer, 0, len(pointers))
	for _, p := range pointers {
		if !p.IsZero() {
			paths = append(paths, p)
		}
	}
	listener := &changeListener{paths: paths, callback: callback}
	listener.active.Store(true)
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
	return &Subscription{remove: func() { s.detach(&s.listeners, listener) }}
}

// OnInvalidate registers an observer notified on every Invalidate call.
func (s *Store) OnInvalidate(observer func()) *Subscription {
	listener := &changeListener{callback: observer}
	listener.active.Store(true)
	s.mu.Lock()
	s.observers = append(s.observers, listener)
	s.mu.Unlock()
	return &Subscription{remove: func() { s.detach(&s.observers, listener) }}
}

func (s *Store) detach(list *[]*changeListener, target *changeListener) {
	target.active.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := (*list)[:0:0]
	for _, l := range *list {
		if l != target {
			out = append(out, l)
		}
	}
	*list = out
}

// Invalidate flushes pending changes to matching OnChange callbacks, then
// notifies invalidation observers.
func (s *Store) Invalidate() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	listeners := append([]*changeListener(nil), s.listeners...)
	observers := append([]*changeListener(nil), s.observers...)
	s.mu.Unlock()

	if len(pending) > 0 {
		for _, l := range listeners {
			if l.active.Load() && l.callback != nil && l.matches(pending) {
				l.callback()
			}
		}
	}
	for _, o := range observers {
		if o.active.Load() && o.callback != nil {
			o.callback()
		}
	}
}

func buildPath(segments ...any) (Pointer, error) {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch typed := segment.(type) {
		case string:
			out = append(out, typed)
		case int:
			out = append(out, strconv.Itoa(typed))
		case Pointer:
			out = append(out, typed.segments...)
		default:
			return Pointer{}, fmt.Errorf("%w: unsupported segment type %T", ErrInvalidPath, segment)
		}
	}
	return PointerFrom(out...)
}

// touchedPaths reports the paths op changes, with "-" segments resolved
// against the tree before op runs.
func touchedPaths(before any, op Operation) []Pointer {
	insert := op.Op == KindAdd || op.Op == KindCopy || op.Op == KindMove
	switch op.Op {
	case KindTest:
		return nil
	case KindMove:
		return []Pointer{
			resolvePointer(before, op.Path, insert),
			resolvePointer(before, op.From, false),
		}
	default:
		return []Pointer{resolvePointer(before, op.Path, insert)}
	}
}

// applyWithInverse applies op and derives the operations that undo it,
// measured against the tree right before the change.
func applyWithInverse(current any, op Operation) (any, []Operation, error) {
	next, err := op.Apply(current)
	if err != nil {
		return nil, nil, err
	}
	switch op.Op {
	case KindTest:
		return next, nil, nil
	case KindRemove:
		prior, ok := op.Path.Get(current)
		if !ok {
			return next, nil, nil
		}
		return next, []Operation{Add(resolvePointer(current, op.Path, false), prior)}, nil
	case KindReplace:
		prior, _ := op.Path.Get(current)
		return next, []Operation{Replace(resolvePointer(current, op.Path, false), prior)}, nil
	case KindAdd, KindCopy:
		return next, insertInverse(current, next, resolvePointer(current, op.Path, true)), nil
	case KindMove:
		if op.From.Equal(op.Path) {
			return next, nil, nil
		}
		value, _ := op.From.Get(current)
		to := resolvePointer(current, op.Path, true)
		copied, err := Add(to, value).Apply(current)
		if err != nil {
			return nil, nil, operationError(op, err)
		}
		inverse := insertInverse(current, copied, to)
		source, removed := moveSource(current, resolvePointer(current, op.From, false), to)
		if !removed {
			return next, inverse, nil
		}
		return next, append([]Operation{Add(source, value)}, inverse...), nil
	default:
		return next, nil, nil
	}
}

// insertInverse undoes a value placed at path: overwritten map keys get
// their prior value back, new keys and sequence inserts are removed behind
// a Test guard that detects divergence.
func insertInverse(before, after any, path Pointer) []Operation {
	placed, _ := path.Get(after)
	parentPath, err := path.Pop()
	var parent any = before
	if err == nil {
		parent, _ = parentPath.Get(before)
	}
	if _, isSequence := parent.([]any); !isSequence {
		if prior, found := path.Get(before); found {
			return []Operation{Replace(path, prior)}
		}
	}
	return []Operation{Test(path, placed), Remove(path)}
}

// resolvePointer replaces "-" segments that address sequences with concrete
// indexes so undo patches replay against the exact same slots.
func resolvePointer(target any, p Pointer, insert bool) Pointer {
	segments := p.Segments()
	current := target
	for i, segment := range segments {
		if list, ok := current.([]any); ok && segment == "-" {
			last := i == len(segments)-1
			if idx, ok := sequenceIndex(segment, len(list), insert && last); ok {
				segments[i] = strconv.Itoa(idx)
			}
		}
		next, ok := child(current, segments[i])
		if !ok {
			break
		}
		current = next
	}
	return Pointer{segments: segments}
}
