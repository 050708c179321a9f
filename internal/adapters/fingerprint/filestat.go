// Package fingerprint derives a task's stable identity: it resolves a
// task's argument tree and declared targets to filesystem stats, and folds
// those stats into a deterministic hash.
package fingerprint

import (
	"crypto/md5"  //nolint:gosec // content digest, not used for security
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/phargogh/taskgraph/internal/core/domain"
)

// maxPathLen mirrors the OS path length ceiling: any string longer than
// this is definitely not a path, so it is never handed to os.Stat.
const maxPathLen = 4096

// ignoreSet is a set of cleaned, absolute paths to exclude from stat
// gathering even if referenced.
type ignoreSet map[string]struct{}

func newIgnoreSet(paths []string) ignoreSet {
	set := make(ignoreSet, len(paths))
	for _, p := range paths {
		if clean, err := canonicalize(p); err == nil {
			set[clean] = struct{}{}
		}
	}
	return set
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// statPath resolves a single path to a FileStat. It returns ok=false (with
// a nil error) when the path should contribute nothing: it is too long to
// plausibly be a path, it names nothing on disk, or it is in ignore.
func statPath(path string, ignore ignoreSet, ignoreDirectories bool, alg domain.HashAlgorithm) (domain.FileStat, bool, error) {
	if len(path) > maxPathLen {
		return domain.FileStat{}, false, nil
	}

	clean, err := canonicalize(path)
	if err != nil {
		return domain.FileStat{}, false, nil //nolint:nilerr // unresolvable path is a non-match, not an error
	}

	if _, skip := ignore[clean]; skip {
		return domain.FileStat{}, false, nil
	}

	info, err := os.Stat(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.FileStat{}, false, nil
		}
		return domain.FileStat{}, false, err
	}

	stat := domain.FileStat{
		Path:        clean,
		Size:        info.Size(),
		ModTimeNano: info.ModTime().UnixNano(),
	}

	if info.IsDir() {
		if ignoreDirectories {
			return domain.FileStat{}, false, nil
		}
		return stat, true, nil
	}

	if alg.IsContentHash() {
		hash, err := contentHash(clean, alg)
		if err != nil {
			return domain.FileStat{}, false, err
		}
		stat.ContentHash = hash
	}

	return stat, true, nil
}

func contentHash(path string, alg domain.HashAlgorithm) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-declared and already stat-resolved
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // best-effort close on a read-only handle

	var h io.Writer
	var sum func([]byte) []byte
	switch alg {
	case domain.HashMD5:
		d := md5.New() //nolint:gosec // content digest, not used for security
		h, sum = d, d.Sum
	case domain.HashSHA256:
		d := sha256.New()
		h, sum = d, d.Sum
	default:
		return "", nil
	}

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum(nil)), nil
}

// StatTargets resolves a task's declared target paths to stats, sorted by
// path so reordering the declared target list across runs never changes
// the fingerprint.
func StatTargets(paths []string, ignorePaths []string, alg domain.HashAlgorithm) ([]domain.FileStat, error) {
	ignore := newIgnoreSet(ignorePaths)
	stats := make([]domain.FileStat, 0, len(paths))
	for _, p := range paths {
		stat, ok, err := statPath(p, ignore, false, alg)
		if err != nil {
			return nil, err
		}
		if ok {
			stats = append(stats, stat)
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Path < stats[j].Path })
	return stats, nil
}

// StatValue walks a Value tree, descending into sequences and mappings, and
// returns the FileStat records of every Path leaf that names an existing
// filesystem entry, sorted by path. Scalars never contribute.
func StatValue(v domain.Value, ignorePaths []string, alg domain.HashAlgorithm) ([]domain.FileStat, error) {
	ignore := newIgnoreSet(ignorePaths)
	var stats []domain.FileStat
	if err := walkValue(v, ignore, alg, &stats); err != nil {
		return nil, err
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Path < stats[j].Path })
	return stats, nil
}

func walkValue(v domain.Value, ignore ignoreSet, alg domain.HashAlgorithm, out *[]domain.FileStat) error {
	switch val := v.(type) {
	case nil:
		return nil
	case domain.ScalarValue:
		return nil
	case domain.SeqValue:
		for _, item := range val.Items {
			if err := walkValue(item, ignore, alg, out); err != nil {
				return err
			}
		}
		return nil
	case domain.MapValue:
		keys := make([]string, 0, len(val.Items))
		for k := range val.Items {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := walkValue(val.Items[k], ignore, alg, out); err != nil {
				return err
			}
		}
		return nil
	case domain.PathValue:
		stat, ok, err := statPath(val.Path, ignore, false, alg)
		if err != nil {
			return err
		}
		if ok {
			*out = append(*out, stat)
		}
		return nil
	default:
		return nil
	}
}
