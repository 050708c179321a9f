package fingerprint

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
)

var _ ports.Fingerprinter = (*Fingerprinter)(nil)

// Fingerprinter computes a task's identity hash by accumulating five fixed
// blocks, in order, into a single xxhash digest: function identity,
// normalized args, normalized kwargs, sorted output-target stats, and
// sorted dependency fingerprints. This fixed order is the sole source of
// determinism.
type Fingerprinter struct{}

// New creates a Fingerprinter.
func New() *Fingerprinter {
	return &Fingerprinter{}
}

// StatTargets resolves a task's declared target paths to stats.
func (f *Fingerprinter) StatTargets(paths []string, ignorePaths []string, alg domain.HashAlgorithm) ([]domain.FileStat, error) {
	return StatTargets(paths, ignorePaths, alg)
}

// Fingerprint derives the task's identity hash.
func (f *Fingerprinter) Fingerprint(
	funcID domain.FuncID,
	args, kwargs domain.Value,
	ignorePaths []string,
	targetStats []domain.FileStat,
	depFingerprints []string,
	alg domain.HashAlgorithm,
) (string, error) {
	h := xxhash.New()

	// Block 1: function identity.
	writeString(h, funcID.QualifiedName)
	writeString(h, funcID.SourceHash)
	writeSep(h)

	// Block 2: args.
	if err := f.writeValueBlock(h, args, ignorePaths, alg); err != nil {
		return "", err
	}

	// Block 3: kwargs.
	if err := f.writeValueBlock(h, kwargs, ignorePaths, alg); err != nil {
		return "", err
	}

	// Block 4: sorted output-target stats.
	sortedTargets := make([]domain.FileStat, len(targetStats))
	copy(sortedTargets, targetStats)
	sort.Slice(sortedTargets, func(i, j int) bool { return sortedTargets[i].Path < sortedTargets[j].Path })
	for _, stat := range sortedTargets {
		writeStat(h, stat)
	}
	writeSep(h)

	// Block 5: sorted dependency fingerprints.
	sortedDeps := make([]string, len(depFingerprints))
	copy(sortedDeps, depFingerprints)
	sort.Strings(sortedDeps)
	for _, dep := range sortedDeps {
		writeString(h, dep)
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// writeValueBlock writes a structural encoding of v (preserving sequence
// order and sorting map keys) and, separately, the sorted FileStat records
// of every Path leaf it contains. Path leaves contribute a fixed placeholder
// to the structural stream rather than their literal string, so the
// fingerprint only changes when the referenced file's stat changes.
func (f *Fingerprinter) writeValueBlock(h *xxhash.Digest, v domain.Value, ignorePaths []string, alg domain.HashAlgorithm) error {
	var stats []domain.FileStat
	if err := f.writeValueStructure(h, v, &stats); err != nil {
		return err
	}

	ignore := newIgnoreSet(ignorePaths)
	resolved := stats[:0]
	for _, raw := range stats {
		stat, ok, err := statPath(raw.Path, ignore, false, alg)
		if err != nil {
			return err
		}
		if ok {
			resolved = append(resolved, stat)
		}
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Path < resolved[j].Path })
	for _, stat := range resolved {
		writeStat(h, stat)
	}
	writeSep(h)
	return nil
}

func (f *Fingerprinter) writeValueStructure(h *xxhash.Digest, v domain.Value, paths *[]domain.FileStat) error {
	switch val := v.(type) {
	case nil:
		_, _ = h.Write([]byte{'N'})
	case domain.ScalarValue:
		_, _ = h.Write([]byte{'S'})
		writeString(h, val.Literal)
	case domain.SeqValue:
		_, _ = h.Write([]byte{'Q'})
		for _, item := range val.Items {
			if err := f.writeValueStructure(h, item, paths); err != nil {
				return err
			}
		}
		_, _ = h.Write([]byte{0})
	case domain.MapValue:
		_, _ = h.Write([]byte{'M'})
		keys := make([]string, 0, len(val.Items))
		for k := range val.Items {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeString(h, k)
			if err := f.writeValueStructure(h, val.Items[k], paths); err != nil {
				return err
			}
		}
		_, _ = h.Write([]byte{0})
	case domain.PathValue:
		_, _ = h.Write([]byte{'P'})
		*paths = append(*paths, domain.FileStat{Path: val.Path})
	default:
		return fmt.Errorf("fingerprint: unrecognized value kind %T", v)
	}
	return nil
}

func writeString(h *xxhash.Digest, s string) {
	_, _ = h.WriteString(s)
	_, _ = h.Write([]byte{0})
}

func writeSep(h *xxhash.Digest) {
	_, _ = h.Write([]byte{0, 0})
}

func writeStat(h *xxhash.Digest, stat domain.FileStat) {
	writeString(h, stat.Path)
	_ = binary.Write(h, binary.LittleEndian, stat.Size)
	_ = binary.Write(h, binary.LittleEndian, stat.ModTimeNano)
	writeString(h, stat.ContentHash)
}
