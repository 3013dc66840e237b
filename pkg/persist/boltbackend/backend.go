// Package boltbackend persists snapshots in a bbolt database, one bucket per
// namespace.
package boltbackend

import (
	"context"
	"fmt"

	"github.com/goliatone/go-stores/pkg/persist"
	bolt "go.etcd.io/bbolt"
)

// Backend stores each Ref as one key in the bucket named by its namespace.
type Backend struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("boltbackend: open %q: %w", path, err)
	}
	return New(db), nil
}

// New wraps an already open database.
func New(db *bolt.DB) *Backend {
	return &Backend{db: db}
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Load(_ context.Context, ref persist.Ref) (persist.Snapshot, persist.Meta, bool, error) {
	key, err := recordKey(ref)
	if err != nil {
		return nil, persist.Meta{}, false, err
	}
	var raw []byte
	err = b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ref.Namespace))
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(key); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, persist.Meta{}, false, err
	}
	if raw == nil {
		return nil, persist.Meta{}, false, nil
	}
	snapshot, meta, err := persist.DecodeRecord(raw)
	if err != nil {
		return nil, persist.Meta{}, false, err
	}
	return snapshot, meta, true, nil
}

func (b *Backend) Save(_ context.Context, ref persist.Ref, snapshot persist.Snapshot, meta persist.Meta) (persist.Meta, error) {
	key, err := recordKey(ref)
	if err != nil {
		return persist.Meta{}, err
	}
	var saved persist.Meta
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(ref.Namespace))
		if err != nil {
			return err
		}
		var stored persist.Meta
		found := false
		if v := bucket.Get(key); v != nil {
			_, stored, err = persist.DecodeRecord(v)
			if err != nil {
				return err
			}
			found = true
		}
		next, err := persist.NextMeta(stored, found, meta)
		if err != nil {
			return err
		}
		raw, err := persist.EncodeRecord(snapshot, next)
		if err != nil {
			return err
		}
		if err := bucket.Put(key, raw); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return persist.Meta{}, err
	}
	return saved, nil
}

// recordKey validates ref and returns the key inside the namespace bucket.
func recordKey(ref persist.Ref) ([]byte, error) {
	if _, err := ref.Identifier(); err != nil {
		return nil, err
	}
	if ref.ID == "" {
		return []byte("_"), nil
	}
	return []byte(ref.ID), nil
}
