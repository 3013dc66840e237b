package stores

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-stores/internal/tree"
)

// Pointer addresses a location in a state tree using JSON-Pointer-like
// segments. Pointers are immutable values; the zero Pointer addresses the
// root and is rejected wherever a location is required.
type Pointer struct {
	segments []string
}

// NewPointer parses path ("/a/b~1c") into a Pointer. The leading slash is
// optional. The root ("" or "/") is not a valid pointer.
func NewPointer(path string) (Pointer, error) {
	path = strings.TrimPrefix(path, "/")
	raw := strings.Split(path, "/")
	segments := make([]string, len(raw))
	for i, segment := range raw {
		segments[i] = decodeSegment(segment)
	}
	return PointerFrom(segments...)
}

// PointerFrom builds a Pointer from already decoded segments.
func PointerFrom(segments ...string) (Pointer, error) {
	if len(segments) == 0 || (len(segments) == 1 && segments[0] == "") {
		return Pointer{}, fmt.Errorf("%w: access to the root is not supported", ErrInvalidPath)
	}
	return Pointer{segments: append([]string(nil), segments...)}, nil
}

// MustPointer is NewPointer that panics on error.
func MustPointer(path string) Pointer {
	p, err := NewPointer(path)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p is the zero pointer.
func (p Pointer) IsZero() bool {
	return len(p.segments) == 0
}

// Len returns the number of segments.
func (p Pointer) Len() int {
	return len(p.segments)
}

// Segments returns a copy of the decoded segments.
func (p Pointer) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Last returns the final segment.
func (p Pointer) Last() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Push returns a new pointer with segment appended.
func (p Pointer) Push(segment string) Pointer {
	segments := make([]string, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)
	return Pointer{segments: append(segments, segment)}
}

// Pop returns a new pointer without the final segment. Popping the last
// remaining segment would address the root and fails.
func (p Pointer) Pop() (Pointer, error) {
	if len(p.segments) <= 1 {
		return Pointer{}, fmt.Errorf("%w: access to the root is not supported", ErrInvalidPath)
	}
	return Pointer{segments: append([]string(nil), p.segments[:len(p.segments)-1]...)}, nil
}

// Join concatenates other onto p.
func (p Pointer) Join(other Pointer) Pointer {
	segments := make([]string, 0, len(p.segments)+len(other.segments))
	segments = append(segments, p.segments...)
	return Pointer{segments: append(segments, other.segments...)}
}

// Get navigates target and returns the addressed value. A missing
// intermediate container reports absent rather than an error.
func (p Pointer) Get(target any) (any, bool) {
	if len(p.segments) == 0 {
		return nil, false
	}
	current := target
	for _, segment := range p.segments {
		next, ok := child(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Contains reports whether other equals p or lies below it.
func (p Pointer) Contains(other Pointer) bool {
	if len(other.segments) < len(p.segments) {
		return false
	}
	for i, segment := range p.segments {
		if other.segments[i] != segment {
			return false
		}
	}
	return true
}

// Related reports whether p and other are equal or one is an ancestor of
// the other.
func (p Pointer) Related(other Pointer) bool {
	return p.Contains(other) || other.Contains(p)
}

// Equal reports whether both pointers address the same location.
func (p Pointer) Equal(other Pointer) bool {
	return len(p.segments) == len(other.segments) && p.Contains(other)
}

// String re-escapes the segments and joins them with a leading slash.
func (p Pointer) String() string {
	if len(p.segments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, segment := range p.segments {
		b.WriteByte('/')
		b.WriteString(encodeSegment(segment))
	}
	return b.String()
}

// MarshalJSON encodes the pointer as its string form.
func (p Pointer) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a pointer string. The empty string yields the zero
// pointer so optional fields round-trip.
func (p *Pointer) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*p = Pointer{}
		return nil
	}
	parsed, err := NewPointer(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func decodeSegment(segment string) string {
	if !strings.Contains(segment, "~") {
		return segment
	}
	return strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
}

func encodeSegment(segment string) string {
	if !strings.ContainsAny(segment, "~/") {
		return segment
	}
	return strings.ReplaceAll(strings.ReplaceAll(segment, "~", "~0"), "/", "~1")
}

// WalkResult describes the location reached by Walk.
type WalkResult struct {
	// Root is the tree after the walk; a new tree when cloning.
	Root any
	// Parent is the container holding the final segment, as placed in Root.
	Parent any
	// Segment is the final segment with "-" resolved against sequences.
	Segment string
	Value   any
	Found   bool
}

// Walk navigates segments from target down to the parent of the final
// segment. Missing intermediate containers are created: with clone set the
// containers along the path are copied and target is left untouched,
// otherwise they are created in place.
func Walk(segments []string, target any, clone bool) (WalkResult, error) {
	if len(segments) == 0 {
		return WalkResult{}, fmt.Errorf("%w: access to the root is not supported", ErrInvalidPath)
	}
	if !tree.IsContainer(target) {
		return WalkResult{}, fmt.Errorf("%w: target is not a container", ErrInvalidPath)
	}
	var result WalkResult
	root, err := walk(segments, target, clone, &result)
	if err != nil {
		return WalkResult{}, err
	}
	result.Root = root
	return result, nil
}

func walk(segments []string, node any, clone bool, result *WalkResult) (any, error) {
	if clone {
		node = tree.ShallowCopy(node)
	}
	segment := segments[0]
	if len(segments) == 1 {
		result.Parent = node
		result.Segment = resolveSegment(node, segment)
		result.Value, result.Found = child(node, segment)
		return node, nil
	}
	next, ok := child(node, segment)
	if !ok || next == nil {
		next = newContainer(segments[1])
	} else if !tree.IsContainer(next) {
		return nil, fmt.Errorf("%w: segment %q is not a container", ErrInvalidPath, segment)
	}
	updated, err := walk(segments[1:], next, clone, result)
	if err != nil {
		return nil, err
	}
	return setChild(node, segment, updated)
}

func newContainer(nextSegment string) any {
	if _, err := strconv.Atoi(nextSegment); err == nil {
		return []any{}
	}
	return map[string]any{}
}

func child(node any, segment string) (any, bool) {
	switch typed := node.(type) {
	case map[string]any:
		value, ok := typed[segment]
		return value, ok
	case []any:
		i, ok := sequenceIndex(segment, len(typed), false)
		if !ok {
			return nil, false
		}
		return typed[i], true
	default:
		return nil, false
	}
}

// setChild sets segment on node, returning the container to store in the
// parent (sequences may grow by one element).
func setChild(node any, segment string, value any) (any, error) {
	switch typed := node.(type) {
	case map[string]any:
		typed[segment] = value
		return typed, nil
	case []any:
		i, ok := sequenceIndex(segment, len(typed), true)
		if !ok {
			return nil, fmt.Errorf("%w: index %q out of range", ErrInvalidPath, segment)
		}
		if i == len(typed) {
			return append(typed, value), nil
		}
		typed[i] = value
		return typed, nil
	default:
		return nil, fmt.Errorf("%w: segment %q has no parent container", ErrInvalidPath, segment)
	}
}

// sequenceIndex resolves segment against a sequence of length n. "-" is the
// last element. insert widens the accepted range to n.
func sequenceIndex(segment string, n int, insert bool) (int, bool) {
	if segment == "-" {
		if n == 0 {
			return 0, insert
		}
		return n - 1, true
	}
	if segment == "" || segment[0] == '+' || segment[0] == '-' {
		return 0, false
	}
	i, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	limit := n
	if insert {
		limit = n + 1
	}
	if i >= limit {
		return 0, false
	}
	return i, true
}

func resolveSegment(node any, segment string) string {
	if segment != "-" {
		return segment
	}
	if typed, ok := node.([]any); ok {
		if i, ok := sequenceIndex(segment, len(typed), true); ok {
			return strconv.Itoa(i)
		}
	}
	return segment
}
