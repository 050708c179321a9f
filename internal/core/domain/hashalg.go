package domain

// HashAlgorithm selects how a task's declared target paths contribute to its
// fingerprint and whether a content digest is computed for cross-path
// artifact reuse.
type HashAlgorithm string

const (
	// HashSizeTimestamp is the default: target stats feed the fingerprint
	// digest directly as (size, mtime) pairs, with no content read.
	HashSizeTimestamp HashAlgorithm = "sizetimestamp"
	// HashMD5 additionally computes an MD5 content digest per target.
	HashMD5 HashAlgorithm = "md5"
	// HashSHA256 additionally computes a SHA-256 content digest per target.
	HashSHA256 HashAlgorithm = "sha256"
)

// IsContentHash reports whether alg requires reading file contents, which is
// also the condition under which cross-path artifact reuse is possible.
func (a HashAlgorithm) IsContentHash() bool {
	return a == HashMD5 || a == HashSHA256
}
