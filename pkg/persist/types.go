package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("persist: etag mismatch")

var ErrInvalidRef = errors.New("persist: invalid ref")

// Ref identifies one persisted snapshot.
type Ref struct {
	Namespace string
	ID        string
}

// Identifier returns the canonical storage key: "namespace" or
// "namespace/id".
func (r Ref) Identifier() (string, error) {
	namespace := strings.TrimSpace(r.Namespace)
	if namespace == "" {
		return "", fmt.Errorf("%w: namespace is required", ErrInvalidRef)
	}
	if strings.Contains(namespace, "/") {
		return "", fmt.Errorf("%w: namespace %q must not contain '/'", ErrInvalidRef, namespace)
	}
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return namespace, nil
	}
	return namespace + "/" + id, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Entry is the value found at one path.
type Entry struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Snapshot lists the persisted entries in selector order.
type Snapshot []Entry

// Backend loads and saves one snapshot per Ref.
type Backend interface {
	Load(ctx context.Context, ref Ref) (snapshot Snapshot, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot Snapshot, meta Meta) (Meta, error)
}

// record is the stored form shared by the serialized backends.
type record struct {
	Snapshot Snapshot `json:"snapshot"`
	Meta     Meta     `json:"meta"`
}

// NextMeta checks requested against the stored meta and returns the meta for
// the new revision. An empty requested ETag skips the check.
func NextMeta(stored Meta, found bool, requested Meta) (Meta, error) {
	if requested.ETag != "" && found && stored.ETag != requested.ETag {
		return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, requested.ETag, stored.ETag)
	}
	out := cloneMeta(stored)
	if requested.Extra != nil {
		out.Extra = cloneMeta(requested).Extra
	}
	out.SnapshotID = requested.SnapshotID
	if out.SnapshotID == "" {
		out.SnapshotID = uuid.NewString()
	}
	out.ETag = uuid.NewString()
	out.UpdatedAt = requested.UpdatedAt
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}
	return out, nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
