// Package memostore implements the durable MemoStore over a
// single embedded bbolt file: a fingerprint -> Record bucket plus a
// secondary content-hash -> fingerprint index for cross-path artifact
// reuse.
package memostore

import (
	"bytes"
	"encoding/gob"
	"time"

	"go.etcd.io/bbolt"

	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	bucketFingerprints = []byte("fingerprints")
	bucketByContent    = []byte("by_content")
)

// Store implements ports.MemoStore over go.etcd.io/bbolt, a single-file
// embedded B+tree store matching the one-durable-file-per-workspace
// layout. bbolt's single-writer,
// multiple-reader transaction model satisfies the concurrency contract
// directly: writes are issued from the Scheduler's per-task goroutines,
// possibly several at once, and bbolt itself serializes them.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the MemoStore file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open memostore file")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketFingerprints, bucketByContent} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "failed to create memostore buckets")
	}

	return &Store{db: db}, nil
}

var _ ports.MemoStore = (*Store)(nil)

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the record for fingerprint, or (nil, nil) on a miss.
func (s *Store) Lookup(fingerprint string) (*domain.Record, error) {
	var rec *domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketFingerprints).Get([]byte(fingerprint))
		if raw == nil {
			return nil
		}
		decoded, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		rec = decoded
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to look up fingerprint"), "fingerprint", fingerprint)
	}
	return rec, nil
}

// Insert upserts rec and refreshes its entries in the by-content index.
func (s *Store) Insert(rec domain.Record) error {
	encoded, err := encodeRecord(rec)
	if err != nil {
		return zerr.Wrap(err, "failed to encode record")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketFingerprints).Put([]byte(rec.Fingerprint), encoded); err != nil {
			return err
		}
		byContent := tx.Bucket(bucketByContent)
		for _, stat := range rec.TargetStats {
			if stat.ContentHash == "" {
				continue
			}
			if err := byContent.Put([]byte(stat.ContentHash), []byte(rec.Fingerprint)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the record for fingerprint and prunes any by-content
// entries pointing at it, used on drift detection.
func (s *Store) Delete(fingerprint string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		fpBucket := tx.Bucket(bucketFingerprints)
		raw := fpBucket.Get([]byte(fingerprint))
		if raw != nil {
			if rec, err := decodeRecord(raw); err == nil {
				byContent := tx.Bucket(bucketByContent)
				for _, stat := range rec.TargetStats {
					if stat.ContentHash == "" {
						continue
					}
					if v := byContent.Get([]byte(stat.ContentHash)); v != nil && string(v) == fingerprint {
						if err := byContent.Delete([]byte(stat.ContentHash)); err != nil {
							return err
						}
					}
				}
			}
		}
		return fpBucket.Delete([]byte(fingerprint))
	})
}

// FindByContent resolves a content hash to the record of the fingerprint
// most recently indexed under it, or (nil, nil) when none is indexed.
// Delete drops an index entry that points at the deleted fingerprint
// without restoring an older fingerprint's entry.
func (s *Store) FindByContent(contentHash string) (*domain.Record, error) {
	var rec *domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		fp := tx.Bucket(bucketByContent).Get([]byte(contentHash))
		if fp == nil {
			return nil
		}
		raw := tx.Bucket(bucketFingerprints).Get(fp)
		if raw == nil {
			return nil
		}
		decoded, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		rec = decoded
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to look up content hash"), "content_hash", contentHash)
	}
	return rec, nil
}

func encodeRecord(rec domain.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(raw []byte) (*domain.Record, error) {
	var rec domain.Record
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
