package boltbackend_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	stores "github.com/goliatone/go-stores"
	"github.com/goliatone/go-stores/pkg/persist"
	"github.com/goliatone/go-stores/pkg/persist/boltbackend"
	"github.com/google/go-cmp/cmp"
)

func openBackend(t *testing.T) *boltbackend.Backend {
	t.Helper()
	backend, err := boltbackend.Open(filepath.Join(t.TempDir(), "stores.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestBackendSaveLoadRoundTrip(t *testing.T) {
	backend := openBackend(t)
	ctx := context.Background()
	ref := persist.Ref{Namespace: "docs", ID: "readme"}

	_, _, ok, err := backend.Load(ctx, ref)
	if err != nil || ok {
		t.Fatalf("expected empty load, got ok=%v err=%v", ok, err)
	}

	snapshot := persist.Snapshot{
		{Path: "/doc/title", Value: "Readme"},
		{Path: "/doc/tags", Value: []any{"a", "b"}},
	}
	meta, err := backend.Save(ctx, ref, snapshot, persist.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.ETag == "" || meta.SnapshotID == "" || meta.UpdatedAt.IsZero() {
		t.Fatalf("expected populated meta, got %+v", meta)
	}

	loaded, loadedMeta, ok, err := backend.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(snapshot, loaded); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if loadedMeta.ETag != meta.ETag {
		t.Fatalf("expected etag %q, got %q", meta.ETag, loadedMeta.ETag)
	}
}

func TestBackendRejectsStaleETag(t *testing.T) {
	backend := openBackend(t)
	ctx := context.Background()
	ref := persist.Ref{Namespace: "docs"}

	first, err := backend.Save(ctx, ref, persist.Snapshot{{Path: "/n", Value: 1.0}}, persist.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := backend.Save(ctx, ref, persist.Snapshot{{Path: "/n", Value: 2.0}}, persist.Meta{ETag: first.ETag}); err != nil {
		t.Fatalf("save with current etag: %v", err)
	}
	_, err = backend.Save(ctx, ref, persist.Snapshot{{Path: "/n", Value: 3.0}}, persist.Meta{ETag: first.ETag})
	if !errors.Is(err, persist.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
}

func TestBackendRestoresStore(t *testing.T) {
	backend := openBackend(t)
	ctx := context.Background()
	ref := persist.Ref{Namespace: "counter"}

	source := stores.NewStore(stores.WithInitialState(map[string]any{"count": 3.0, "ignored": true}))
	p := persist.NewPersister(backend, ref, stores.MustPointer("/count"))
	if _, err := p.Save(ctx, source); err != nil {
		t.Fatalf("save: %v", err)
	}

	target := stores.NewStore()
	if err := persist.Load(ctx, backend, ref, target); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"count": 3.0}, target.State()); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
}
