package taskgraph

import (
	"io"
	"time"
)

const defaultReportingInterval = 5 * time.Second

type graphConfig struct {
	reportingInterval time.Duration
	logOutput         io.Writer
}

// Option configures a TaskGraph at construction.
type Option func(*graphConfig)

// WithReportingInterval sets how often the graph logs a progress snapshot.
func WithReportingInterval(d time.Duration) Option {
	return func(cfg *graphConfig) {
		if d > 0 {
			cfg.reportingInterval = d
		}
	}
}

// WithLogOutput redirects the graph's log output (defaults to stderr).
func WithLogOutput(w io.Writer) Option {
	return func(cfg *graphConfig) { cfg.logOutput = w }
}

type taskConfig struct {
	name                  string
	funcID                FuncID
	hasFunc               bool
	args                  Value
	kwargs                Value
	targetPaths           []string
	ignorePaths           []string
	deps                  []*Task
	hashAlg               HashAlgorithm
	copyDuplicateArtifact bool
	retries               int
}

// TaskOption configures one AddTask submission.
type TaskOption func(*taskConfig)

// WithFunc names the registered function this task calls. Omitting it
// submits an "empty task" that succeeds immediately and contributes
// nothing to the memo store.
func WithFunc(id FuncID) TaskOption {
	return func(cfg *taskConfig) {
		cfg.funcID = id
		cfg.hasFunc = true
	}
}

// WithArgs sets the task's positional argument tree.
func WithArgs(v Value) TaskOption {
	return func(cfg *taskConfig) { cfg.args = v }
}

// WithKwargs sets the task's keyword argument tree.
func WithKwargs(v Value) TaskOption {
	return func(cfg *taskConfig) { cfg.kwargs = v }
}

// WithTargetPaths declares the files the task will create. Declaration
// order never affects the task's fingerprint.
func WithTargetPaths(paths ...string) TaskOption {
	return func(cfg *taskConfig) { cfg.targetPaths = paths }
}

// WithIgnorePaths excludes paths from fingerprint stat-gathering even when
// the task's arguments reference them.
func WithIgnorePaths(paths ...string) TaskOption {
	return func(cfg *taskConfig) { cfg.ignorePaths = paths }
}

// WithDeps declares upstream tasks. Each must have been returned by the
// same graph's AddTask.
func WithDeps(deps ...*Task) TaskOption {
	return func(cfg *taskConfig) { cfg.deps = deps }
}

// WithName attaches a human label. Labels never contribute to identity.
func WithName(name string) TaskOption {
	return func(cfg *taskConfig) { cfg.name = name }
}

// WithHashAlgorithm selects how targets contribute to the fingerprint;
// defaults to HashSizeTimestamp.
func WithHashAlgorithm(alg HashAlgorithm) TaskOption {
	return func(cfg *taskConfig) { cfg.hashAlg = alg }
}

// WithCopyDuplicateArtifact lets the graph satisfy this task by copying
// bytes from a content-equivalent prior output recorded under the same
// fingerprint at different paths. Requires a content-hash algorithm.
func WithCopyDuplicateArtifact(enabled bool) TaskOption {
	return func(cfg *taskConfig) { cfg.copyDuplicateArtifact = enabled }
}

// WithRetries sets how many times a failing task is re-attempted before
// the failure becomes final.
func WithRetries(n int) TaskOption {
	return func(cfg *taskConfig) { cfg.retries = n }
}
