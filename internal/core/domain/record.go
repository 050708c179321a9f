package domain

import "time"

// FileStat summarizes a filesystem path as observed at fingerprint time: its
// size and modification time always, and a content digest when the task's
// HashAlgorithm requests one.
type FileStat struct {
	Path        string
	Size        int64
	ModTimeNano int64
	ContentHash string // empty unless a content-hash algorithm was requested
}

// Record is the durable MemoStore entry: a completed task's fingerprint,
// the target paths it declared, their stats at completion, and when that
// completion was recorded.
type Record struct {
	Fingerprint string
	TargetPaths []string
	TargetStats []FileStat
	Timestamp   time.Time
}
