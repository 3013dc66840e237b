// Package persist saves selected paths of a store to a Backend and restores
// them later.
//
// A Backend only loads and saves one Snapshot for one Ref. Saves carry the
// ETag of the last load or save; a backend whose stored ETag differs rejects
// the save with ErrETagMismatch. Backends shipped here:
//
//   - MemoryBackend for tests and examples.
//   - boltbackend, one bbolt bucket per namespace.
//   - miniobackend, one object per Ref in an S3 compatible bucket.
//
// Persister ties a Backend to a store: Load restores the snapshot, creating
// missing parent containers, and Collector saves after every successful
// process execution.
package persist
