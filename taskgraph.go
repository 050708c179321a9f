package taskgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/zerr"

	"github.com/phargogh/taskgraph/internal/adapters/fingerprint"
	"github.com/phargogh/taskgraph/internal/adapters/logbridge"
	"github.com/phargogh/taskgraph/internal/adapters/logger"
	"github.com/phargogh/taskgraph/internal/adapters/memostore"
	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
	"github.com/phargogh/taskgraph/internal/engine/scheduler"
	"github.com/phargogh/taskgraph/internal/engine/worker"
)

// Task is the handle AddTask returns: join it, inspect its state, or pass
// it as a dependency of a later submission to the same graph.
type Task = domain.Task

// FuncID is the stable identity of a registered task function.
type FuncID = domain.FuncID

// Func is the signature of a registrable task body.
type Func = worker.Func

// State is a Task's lifecycle state.
type State = domain.State

// Task lifecycle states.
const (
	StatePending   = domain.StatePending
	StateReady     = domain.StateReady
	StateRunning   = domain.StateRunning
	StateSucceeded = domain.StateSucceeded
	StateFailed    = domain.StateFailed
	StateSkipped   = domain.StateSkipped
)

// HashAlgorithm selects how target files contribute to a fingerprint.
type HashAlgorithm = domain.HashAlgorithm

// Supported hash algorithms.
const (
	HashSizeTimestamp = domain.HashSizeTimestamp
	HashMD5           = domain.HashMD5
	HashSHA256        = domain.HashSHA256
)

// Error taxonomy; see the domain package for each error's contract.
var (
	ErrInvalidSubmission       = domain.ErrInvalidSubmission
	ErrGraphClosed             = domain.ErrGraphClosed
	ErrGraphTerminated         = domain.ErrGraphTerminated
	ErrMissingTargetOutput     = domain.ErrMissingTargetOutput
	ErrDuplicateTargetMismatch = domain.ErrDuplicateTargetMismatch
	ErrUserTaskFailure         = domain.ErrUserTaskFailure
)

// Register associates a qualified name with a task function. It must be
// called at process startup, before New, for every function any task will
// reference; worker child processes resolve functions through the same
// registry, so registration must happen before RunWorker too.
func Register(qualifiedName string, fn Func) {
	worker.Register(qualifiedName, fn)
}

// RunWorker must be the first call in main for any binary that constructs
// a TaskGraph with one or more worker processes. In the parent process it
// returns immediately; in a pre-forked worker child it never returns.
func RunWorker() {
	worker.RunWorker()
}

// TaskGraph is the public facade over the scheduler, the memoization
// store, and the worker pool: a single workspace-scoped graph instance
// with no package-level state of its own. The function registry that
// Register fills is the one piece of process-wide state.
type TaskGraph struct {
	store    *memostore.Store
	log      *logger.Logger
	sched    *scheduler.Scheduler
	reporter *logbridge.Reporter

	repCancel context.CancelFunc
	repOnce   sync.Once
	termOnce  sync.Once

	inline bool

	mu         sync.Mutex
	nextID     int64
	owned      map[*Task]struct{}
	closed     bool
	terminated bool
	cause      error
}

// New creates a TaskGraph over workspaceDir, creating the directory if
// absent. nWorkers selects the execution mode: -1 runs each task to
// completion before AddTask returns, 0 runs tasks one at a time on a
// background goroutine, and n >= 1 pre-forks n OS worker processes.
func New(workspaceDir string, nWorkers int, opts ...Option) (*TaskGraph, error) {
	cfg := graphConfig{reportingInterval: defaultReportingInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return nil, zerr.Wrap(err, "failed to create workspace directory")
	}

	store, err := memostore.Open(filepath.Join(workspaceDir, domain.DatabaseFileName))
	if err != nil {
		return nil, err
	}

	log := logger.New()
	if cfg.logOutput != nil {
		log.SetOutput(cfg.logOutput)
	}

	var exec ports.Executor
	concurrency := 1
	if nWorkers >= 1 {
		pool, err := worker.NewPool(nWorkers, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		exec = pool
		concurrency = nWorkers
	} else {
		exec = worker.NewInlineExecutor()
	}

	sched := scheduler.New(exec, store, fingerprint.New(), log, concurrency)

	g := &TaskGraph{
		store:  store,
		log:    log,
		sched:  sched,
		inline: nWorkers < 0,
		owned:  make(map[*Task]struct{}),
	}

	repCtx, cancel := context.WithCancel(context.Background())
	g.repCancel = cancel
	g.reporter = logbridge.NewReporter(log, cfg.reportingInterval, sched.Snapshot)
	go g.reporter.Run(repCtx)

	return g, nil
}

// AddTask validates and submits one task, returning its handle. With
// nWorkers == -1 the task runs to completion before AddTask returns (its
// deps are already terminal by then), and any failure surfaces here
// instead of through Join.
func (g *TaskGraph) AddTask(opts ...TaskOption) (*Task, error) {
	cfg := taskConfig{hashAlg: HashSizeTimestamp}
	for _, opt := range opts {
		opt(&cfg)
	}

	g.mu.Lock()
	if g.terminated {
		g.mu.Unlock()
		return nil, ErrGraphTerminated
	}
	if g.closed {
		g.mu.Unlock()
		return nil, ErrGraphClosed
	}
	t, err := g.buildTaskLocked(&cfg)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := g.sched.Submit(t); err != nil {
		return nil, err
	}

	if g.inline {
		_, _ = t.Join(context.Background())
		if err := t.Err(); err != nil {
			g.mu.Lock()
			g.terminated = true
			g.cause = err
			g.mu.Unlock()
			return t, err
		}
	}

	return t, nil
}

// buildTaskLocked validates cfg and allocates the Task node. Caller holds
// g.mu.
func (g *TaskGraph) buildTaskLocked(cfg *taskConfig) (*Task, error) {
	if cfg.retries < 0 {
		return nil, zerr.With(ErrInvalidSubmission, "n_retries", cfg.retries)
	}
	switch cfg.hashAlg {
	case HashSizeTimestamp, HashMD5, HashSHA256:
	default:
		return nil, zerr.With(ErrInvalidSubmission, "hash_algorithm", string(cfg.hashAlg))
	}
	for _, p := range cfg.targetPaths {
		if p == "" {
			return nil, zerr.With(ErrInvalidSubmission, "reason", "empty target path")
		}
	}

	depIDs := make([]int64, len(cfg.deps))
	for i, dep := range cfg.deps {
		if dep == nil {
			return nil, zerr.With(ErrInvalidSubmission, "reason", "nil dependency")
		}
		if _, ok := g.owned[dep]; !ok {
			return nil, zerr.With(ErrInvalidSubmission, "reason", "dependency belongs to a different graph")
		}
		depIDs[i] = dep.ID
	}

	g.nextID++
	name := cfg.name
	if name == "" {
		name = fmt.Sprintf("task-%d", g.nextID)
	}

	t := domain.NewTask(g.nextID, name)
	t.Func = cfg.funcID
	t.HasFunc = cfg.hasFunc
	t.Args = cfg.args
	t.Kwargs = cfg.kwargs
	t.TargetPaths = append([]string(nil), cfg.targetPaths...)
	t.IgnorePaths = append([]string(nil), cfg.ignorePaths...)
	t.Deps = depIDs
	t.HashAlg = cfg.hashAlg
	t.CopyDuplicateArtifact = cfg.copyDuplicateArtifact
	t.MaxRetries = cfg.retries
	t.InitRetries()

	g.owned[t] = struct{}{}
	return t, nil
}

// Close marks the graph closed: subsequent AddTask calls return
// ErrGraphClosed. Idempotent.
func (g *TaskGraph) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return nil
}

// Join blocks until every submitted task has reached a terminal state or
// ctx is done, reporting whether the graph quiesced in time. The error is
// the first task failure's cause; once Join has surfaced one, the graph is
// terminated and repeated Join calls return the same cause immediately.
// Join does not cancel in-flight work on timeout.
func (g *TaskGraph) Join(ctx context.Context) (bool, error) {
	g.mu.Lock()
	if g.terminated {
		cause := g.cause
		g.mu.Unlock()
		return true, cause
	}
	g.mu.Unlock()

	if g.inline {
		// Every AddTask already ran its task to completion.
		return true, nil
	}

	ok, err := g.sched.Join(ctx)
	if !ok {
		return false, nil
	}

	g.mu.Lock()
	if err != nil {
		g.terminated = true
		g.cause = err
	}
	closed := g.closed
	g.mu.Unlock()

	if closed {
		g.stopReporter()
	}
	return true, err
}

// Terminate forcibly shuts down the worker pool, stops the progress
// reporter, and releases the store file. Safe to call multiple times; the
// graph rejects submissions afterward.
func (g *TaskGraph) Terminate() {
	g.termOnce.Do(func() {
		g.mu.Lock()
		g.terminated = true
		if g.cause == nil {
			g.cause = g.sched.Err()
		}
		g.mu.Unlock()

		g.sched.Terminate()
		g.stopReporter()
		_ = g.store.Close()
	})
}

func (g *TaskGraph) stopReporter() {
	g.repOnce.Do(func() {
		g.repCancel()
		g.reporter.Wait()
	})
}
