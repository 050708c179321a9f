package ports

import "github.com/phargogh/taskgraph/internal/core/domain"

// MemoStore is the durable fingerprint -> Record mapping.
// Lookup/Insert/Delete give the Scheduler its hit/miss
// and drift-eviction path; FindByContent gives it cross-fingerprint
// artifact reuse when a task opts into CopyDuplicateArtifact with a
// content-hash algorithm.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type MemoStore interface {
	// Lookup returns the record for fingerprint, or (nil, nil) on a miss.
	Lookup(fingerprint string) (*domain.Record, error)

	// Insert upserts rec. Idempotent: inserting the same fingerprint twice
	// with the same contents is a no-op observable effect.
	Insert(rec domain.Record) error

	// Delete removes the record for fingerprint, used when a prior
	// record's targets no longer match their recorded stats.
	Delete(fingerprint string) error

	// FindByContent returns the record most recently indexed under the
	// given content hash, or (nil, nil) if none is indexed. Deleting that
	// record removes the index entry; an older record with the same
	// content is not found afterwards.
	FindByContent(contentHash string) (*domain.Record, error)

	// Close releases the underlying storage file.
	Close() error
}
