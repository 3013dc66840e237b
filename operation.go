package stores

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goliatone/go-stores/internal/tree"
)

// Kind names an operation in the patch algebra.
type Kind string

const (
	KindAdd     Kind = "add"
	KindRemove  Kind = "remove"
	KindReplace Kind = "replace"
	KindTest    Kind = "test"
	KindCopy    Kind = "copy"
	KindMove    Kind = "move"
)

func (k Kind) valid() bool {
	switch k {
	case KindAdd, KindRemove, KindReplace, KindTest, KindCopy, KindMove:
		return true
	default:
		return false
	}
}

func (k Kind) usesFrom() bool {
	return k == KindCopy || k == KindMove
}

func (k Kind) usesValue() bool {
	return k == KindAdd || k == KindReplace || k == KindTest
}

// Operation describes one mutation (or assertion) against a tree.
type Operation struct {
	Op    Kind
	Path  Pointer
	From  Pointer
	Value any
}

// Patch is an ordered list of operations.
type Patch = []Operation

// Add sets value at path, creating the location. On sequences the value is
// inserted at the index.
func Add(path Pointer, value any) Operation {
	return Operation{Op: KindAdd, Path: path, Value: value}
}

// Remove deletes the value at path.
func Remove(path Pointer) Operation {
	return Operation{Op: KindRemove, Path: path}
}

// Replace overwrites an existing value at path.
func Replace(path Pointer, value any) Operation {
	return Operation{Op: KindReplace, Path: path, Value: value}
}

// Test asserts the value at path equals value.
func Test(path Pointer, value any) Operation {
	return Operation{Op: KindTest, Path: path, Value: value}
}

// Copy duplicates the value at from into path.
func Copy(from, path Pointer) Operation {
	return Operation{Op: KindCopy, Path: path, From: from}
}

// Move relocates the value at from to path.
func Move(from, path Pointer) Operation {
	return Operation{Op: KindMove, Path: path, From: from}
}

// NewOperation builds and validates an operation of any kind.
func NewOperation(kind Kind, path Pointer, value any, from Pointer) (Operation, error) {
	op := Operation{Op: kind, Path: path, From: from}
	if kind.usesValue() {
		op.Value = value
	}
	if err := op.Validate(); err != nil {
		return Operation{}, operationError(op, err)
	}
	return op, nil
}

// Validate checks the structural requirements of the operation.
func (o Operation) Validate() error {
	if !o.Op.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, o.Op)
	}
	if o.Path.IsZero() {
		return fmt.Errorf("%w: access to the root is not supported", ErrInvalidPath)
	}
	if o.Op.usesFrom() && o.From.IsZero() {
		return ErrMissingFrom
	}
	return nil
}

// Apply runs the operation against target and returns the resulting tree.
// target is never mutated; containers along the touched paths are copied.
// Test operations return target unchanged or ErrTestFailed.
func (o Operation) Apply(target any) (any, error) {
	if err := o.Validate(); err != nil {
		return nil, operationError(o, err)
	}
	if target == nil {
		return nil, operationError(o, fmt.Errorf("%w: target tree is nil", ErrInvalidPath))
	}
	out, err := o.apply(target)
	if err != nil {
		return nil, operationError(o, err)
	}
	return out, nil
}

// Matches is the pure predicate behind Test: it reports whether the value at
// Path equals Value. Absent values never match.
func (o Operation) Matches(target any) (bool, error) {
	if o.Path.IsZero() {
		return false, operationError(o, fmt.Errorf("%w: access to the root is not supported", ErrInvalidPath))
	}
	if target == nil {
		return false, operationError(o, fmt.Errorf("%w: target tree is nil", ErrInvalidPath))
	}
	current, ok := o.Path.Get(target)
	if !ok {
		return false, nil
	}
	return tree.Equal(current, o.Value), nil
}

func (o Operation) apply(target any) (any, error) {
	switch o.Op {
	case KindAdd:
		return update(target, o.Path.segments, insertChild(tree.Clone(o.Value)))
	case KindRemove:
		if _, ok := o.Path.Get(target); !ok {
			return target, nil
		}
		return update(target, o.Path.segments, removeChild)
	case KindReplace:
		return update(target, o.Path.segments, replaceChild(tree.Clone(o.Value)))
	case KindTest:
		ok, err := o.Matches(target)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrTestFailed
		}
		return target, nil
	case KindCopy:
		value, ok := o.From.Get(target)
		if !ok {
			return nil, ErrMissingSource
		}
		return update(target, o.Path.segments, insertChild(tree.Clone(value)))
	case KindMove:
		value, ok := o.From.Get(target)
		if !ok {
			return nil, ErrMissingSource
		}
		if o.From.Equal(o.Path) {
			return target, nil
		}
		if o.From.Contains(o.Path) {
			return nil, fmt.Errorf("%w: cannot move a value into one of its children", ErrInvalidPath)
		}
		to := resolvePointer(target, o.Path, true)
		copied, err := update(target, to.segments, insertChild(value))
		if err != nil {
			return nil, err
		}
		source, ok := moveSource(target, resolvePointer(target, o.From, false), to)
		if !ok {
			return copied, nil
		}
		return update(copied, source.segments, removeChild)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, o.Op)
	}
}

// moveSource locates from in the tree produced by inserting at to. A
// sequence insert ahead of from shifts its index by one. It reports false
// when the insert overwrote from or one of its ancestors.
func moveSource(before any, from, to Pointer) (Pointer, bool) {
	depth := len(to.segments) - 1
	var parent any = before
	if depth > 0 {
		parent, _ = Pointer{segments: to.segments[:depth]}.Get(before)
	}
	if _, isSequence := parent.([]any); !isSequence {
		return from, !to.Contains(from)
	}
	segments := from.Segments()
	if len(segments) <= depth {
		return from, true
	}
	for i := 0; i < depth; i++ {
		if segments[i] != to.segments[i] {
			return from, true
		}
	}
	at, _ := strconv.Atoi(to.segments[depth])
	if index, err := strconv.Atoi(segments[depth]); err == nil && index >= at {
		segments[depth] = strconv.Itoa(index + 1)
	}
	return Pointer{segments: segments}, true
}

type childFunc func(parent any, segment string) (any, error)

// update copies the containers leading to the parent of the final segment
// and hands that copy to fn. Every parent must already exist.
func update(node any, segments []string, fn childFunc) (any, error) {
	if len(segments) == 1 {
		if !tree.IsContainer(node) {
			return nil, fmt.Errorf("%w: parent of %q is not a container", ErrInvalidPath, segments[0])
		}
		return fn(tree.ShallowCopy(node), segments[0])
	}
	next, ok := child(node, segments[0])
	if !ok || !tree.IsContainer(next) {
		return nil, fmt.Errorf("%w: parent %q does not exist", ErrInvalidPath, segments[0])
	}
	updated, err := update(next, segments[1:], fn)
	if err != nil {
		return nil, err
	}
	return setChild(tree.ShallowCopy(node), segments[0], updated)
}

func insertChild(value any) childFunc {
	return func(parent any, segment string) (any, error) {
		list, ok := parent.([]any)
		if !ok {
			return setChild(parent, segment, value)
		}
		i, ok := sequenceIndex(segment, len(list), true)
		if !ok {
			return nil, fmt.Errorf("%w: index %q out of range", ErrInvalidPath, segment)
		}
		out := make([]any, 0, len(list)+1)
		out = append(out, list[:i]...)
		out = append(out, value)
		return append(out, list[i:]...), nil
	}
}

func replaceChild(value any) childFunc {
	return func(parent any, segment string) (any, error) {
		if _, ok := child(parent, segment); !ok {
			return nil, ErrReplaceOfMissingPath
		}
		return setChild(parent, segment, value)
	}
}

func removeChild(parent any, segment string) (any, error) {
	switch typed := parent.(type) {
	case map[string]any:
		delete(typed, segment)
		return typed, nil
	case []any:
		i, ok := sequenceIndex(segment, len(typed), false)
		if !ok {
			return typed, nil
		}
		out := make([]any, 0, len(typed)-1)
		out = append(out, typed[:i]...)
		return append(out, typed[i+1:]...), nil
	default:
		return nil, fmt.Errorf("%w: parent of %q is not a container", ErrInvalidPath, segment)
	}
}

// String renders the diagnostic form {"op","path","from"}.
func (o Operation) String() string {
	diag := struct {
		Op   Kind   `json:"op"`
		Path string `json:"path"`
		From string `json:"from,omitempty"`
	}{Op: o.Op, Path: o.Path.String()}
	if o.Op.usesFrom() {
		diag.From = o.From.String()
	}
	raw, err := json.Marshal(diag)
	if err != nil {
		return fmt.Sprintf("{op:%s path:%s}", o.Op, o.Path)
	}
	return string(raw)
}

type wireOperation struct {
	Op    Kind            `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from,omitempty"`
}

// MarshalJSON encodes {op, path, value?, from?}. Value is always present
// for add, replace and test, even when nil.
func (o Operation) MarshalJSON() ([]byte, error) {
	wire := wireOperation{Op: o.Op, Path: o.Path.String()}
	if o.Op.usesValue() {
		raw, err := json.Marshal(o.Value)
		if err != nil {
			return nil, fmt.Errorf("stores: marshal %s value at %q: %w", o.Op, o.Path, err)
		}
		wire.Value = raw
	}
	if o.Op.usesFrom() {
		wire.From = o.From.String()
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the wire form and validates the operation.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var wire wireOperation
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var value any
	if len(wire.Value) > 0 {
		if err := json.Unmarshal(wire.Value, &value); err != nil {
			return fmt.Errorf("stores: decode %s value at %q: %w", wire.Op, wire.Path, err)
		}
	}
	op, err := decodeOperation(wire.Op, wire.Path, wire.From, value)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

func decodeOperation(kind Kind, path, from string, value any) (Operation, error) {
	target, err := NewPointer(path)
	if err != nil {
		return Operation{}, fmt.Errorf("stores: %s path %q: %w", kind, path, err)
	}
	var source Pointer
	if from != "" {
		source, err = NewPointer(from)
		if err != nil {
			return Operation{}, fmt.Errorf("stores: %s from %q: %w", kind, from, err)
		}
	}
	return NewOperation(kind, target, value, source)
}
