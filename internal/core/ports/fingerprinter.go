package ports

import "github.com/phargogh/taskgraph/internal/core/domain"

// Fingerprinter derives a task's stable identity hash and stats its
// declared targets. The two are separate methods: the Scheduler calls
// Fingerprint with no target stats, so a task's fingerprint does not depend
// on its declared targets, and calls StatTargets on its own to record
// target stats in the MemoStore and to check them against a hit.
//
//go:generate go run go.uber.org/mock/mockgen -source=fingerprinter.go -destination=mocks/mock_fingerprinter.go -package=mocks
type Fingerprinter interface {
	// Fingerprint derives a task's identity hash from its function
	// identity, normalized args/kwargs, sorted target stats, and sorted
	// dependency fingerprints, in that fixed order.
	Fingerprint(
		funcID domain.FuncID,
		args, kwargs domain.Value,
		ignorePaths []string,
		targetStats []domain.FileStat,
		depFingerprints []string,
		alg domain.HashAlgorithm,
	) (string, error)

	// StatTargets resolves a task's declared target paths to FileStats,
	// honoring ignorePaths and computing a content digest when alg
	// requires one.
	StatTargets(paths []string, ignorePaths []string, alg domain.HashAlgorithm) ([]domain.FileStat, error)
}
