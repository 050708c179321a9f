package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phargogh/taskgraph/internal/core/domain"
)

func TestFingerprint_DeterministicAcrossTargetOrder(t *testing.T) {
	f := New()
	funcID := domain.FuncID{QualifiedName: "pkg.Func", SourceHash: "v1"}
	args := domain.SeqValue{Items: []domain.Value{domain.ScalarValue{Literal: "5"}}}
	kwargs := domain.MapValue{Items: map[string]domain.Value{}}

	statsA := []domain.FileStat{{Path: "/a", Size: 1, ModTimeNano: 1}, {Path: "/b", Size: 2, ModTimeNano: 2}}
	statsB := []domain.FileStat{{Path: "/b", Size: 2, ModTimeNano: 2}, {Path: "/a", Size: 1, ModTimeNano: 1}}

	fp1, err := f.Fingerprint(funcID, args, kwargs, nil, statsA, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)
	fp2, err := f.Fingerprint(funcID, args, kwargs, nil, statsB, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)

	require.Equal(t, fp1, fp2)
}

func TestFingerprint_SourceHashChangeChangesFingerprint(t *testing.T) {
	f := New()
	args := domain.ScalarValue{Literal: "x"}
	kwargs := domain.ScalarValue{Literal: ""}

	fp1, err := f.Fingerprint(domain.FuncID{QualifiedName: "pkg.Func", SourceHash: "v1"}, args, kwargs, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)
	fp2, err := f.Fingerprint(domain.FuncID{QualifiedName: "pkg.Func", SourceHash: "v2"}, args, kwargs, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)

	require.NotEqual(t, fp1, fp2)
}

func TestFingerprint_SameQualifiedNameNewAddressIsInvariant(t *testing.T) {
	// Rebinding a function to a new memory address has no observable effect
	// here since FuncID carries only a qualified name and a caller-supplied
	// source hash, never a runtime pointer.
	f := New()
	funcID1 := domain.FuncID{QualifiedName: "pkg.Func", SourceHash: "same"}
	funcID2 := domain.FuncID{QualifiedName: "pkg.Func", SourceHash: "same"}

	fp1, err := f.Fingerprint(funcID1, domain.ScalarValue{}, domain.ScalarValue{}, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)
	fp2, err := f.Fingerprint(funcID2, domain.ScalarValue{}, domain.ScalarValue{}, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)

	require.Equal(t, fp1, fp2)
}

func TestFingerprint_ScalarArgsNotFileScrubbed(t *testing.T) {
	f := New()
	funcID := domain.FuncID{QualifiedName: "pkg.Func"}
	kwargs := domain.ScalarValue{}

	args := domain.SeqValue{Items: []domain.Value{
		domain.ScalarValue{Literal: "1"},
		domain.ScalarValue{Literal: "2"},
		domain.ScalarValue{Literal: "3"},
	}}

	fp1, err := f.Fingerprint(funcID, args, kwargs, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)

	args2 := domain.SeqValue{Items: []domain.Value{
		domain.ScalarValue{Literal: "1"},
		domain.ScalarValue{Literal: "2"},
		domain.ScalarValue{Literal: "4"},
	}}
	fp2, err := f.Fingerprint(funcID, args2, kwargs, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)

	require.NotEqual(t, fp1, fp2, "differing scalar literal must change the fingerprint")
}

func TestFingerprint_PathArgumentTracksFileStatNotString(t *testing.T) {
	f := New()
	dir := t.TempDir()
	p := filepath.Join(dir, "in.dat")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o644))

	funcID := domain.FuncID{QualifiedName: "pkg.Func"}
	args := domain.PathValue{Path: p}
	kwargs := domain.ScalarValue{}

	fp1, err := f.Fingerprint(funcID, args, kwargs, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)

	// Rewriting the file's contents (and therefore its mtime/size) changes
	// the fingerprint even though the argument's string form is unchanged.
	require.NoError(t, os.WriteFile(p, []byte("v2-longer"), 0o644))

	fp2, err := f.Fingerprint(funcID, args, kwargs, nil, nil, nil, domain.HashSizeTimestamp)
	require.NoError(t, err)

	require.NotEqual(t, fp1, fp2)
}

func TestFingerprint_DependencyFingerprintOrderIrrelevant(t *testing.T) {
	f := New()
	funcID := domain.FuncID{QualifiedName: "pkg.Func"}

	fp1, err := f.Fingerprint(funcID, domain.ScalarValue{}, domain.ScalarValue{}, nil, nil, []string{"dep-a", "dep-b"}, domain.HashSizeTimestamp)
	require.NoError(t, err)
	fp2, err := f.Fingerprint(funcID, domain.ScalarValue{}, domain.ScalarValue{}, nil, nil, []string{"dep-b", "dep-a"}, domain.HashSizeTimestamp)
	require.NoError(t, err)

	require.Equal(t, fp1, fp2)
}
