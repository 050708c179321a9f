// Package scheduler implements the dependency-driven executor that drives
// Tasks from Ready to a terminal state under a bounded concurrency budget,
// consulting the MemoStore before running anything and recording
// completions back into it.
//
// The model is streaming rather than batch: tasks arrive one at a time via
// Submit and become Ready as their deps resolve, so the full graph is
// never known up front.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/zerr"

	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
)

// terminator is implemented by worker.Pool; Scheduler type-asserts for it so
// Terminate can hard-kill outstanding OS processes without the ports.Executor
// interface itself needing a Terminate method that inline/single-thread
// executors don't have any use for.
type terminator interface {
	Terminate()
}

// Scheduler drives a streaming task graph to completion. It owns no
// filesystem state of its own; all durable state lives in the MemoStore.
type Scheduler struct {
	executor      ports.Executor
	store         ports.MemoStore
	fingerprinter ports.Fingerprinter
	logger        ports.Logger
	sem           chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu          sync.Mutex
	tasks       map[int64]*domain.Task
	dependents  map[int64][]int64
	pendingDeps map[int64]int
	dispatched  map[int64]bool
	tainted     map[int64]error
	outstanding int
	termErr     error
	quiescentCh chan struct{}
}

// New creates a Scheduler. concurrency bounds how many tasks may have their
// runTask body (memo check plus, on a miss, Execute) in flight at once; the
// facade passes 1 for n_workers==0 (inline executor, one goroutine but still
// off the caller's own goroutine so Join's timeouts work) and n_workers for
// the OS-process pool.
func New(executor ports.Executor, store ports.MemoStore, fingerprinter ports.Fingerprinter, logger ports.Logger, concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		executor:      executor,
		store:         store,
		fingerprinter: fingerprinter,
		logger:        logger,
		sem:           make(chan struct{}, concurrency),
		ctx:           ctx,
		cancel:        cancel,
		tasks:         make(map[int64]*domain.Task),
		dependents:    make(map[int64][]int64),
		pendingDeps:   make(map[int64]int),
		dispatched:    make(map[int64]bool),
		tainted:       make(map[int64]error),
		quiescentCh:   make(chan struct{}),
	}
}

// Submit registers t with the scheduler. If t has no outstanding deps, its
// fingerprint and duplicate-target check happen synchronously here, so a
// mismatch is reported to the submitter directly for the common case of a
// dependency-free resubmission; the task is then dispatched for
// asynchronous execution. If deps are still outstanding, Submit only records
// bookkeeping and returns; the same checks run later, inside the dispatched
// task's own goroutine, once its deps resolve.
func (s *Scheduler) Submit(t *domain.Task) error {
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.outstanding++

	pending := 0
	var upstreamCause error
	for _, depID := range t.Deps {
		dep := s.tasks[depID]
		s.dependents[depID] = append(s.dependents[depID], t.ID)
		switch dep.State() {
		case domain.StateSucceeded, domain.StateSkipped:
		case domain.StateFailed:
			if upstreamCause == nil {
				upstreamCause = dep.Err()
			}
		default:
			pending++
		}
	}
	s.mu.Unlock()

	if upstreamCause != nil {
		s.finalize(t, domain.StateFailed, wrapUpstream(upstreamCause))
		return nil
	}

	if pending > 0 {
		t.SetState(domain.StatePending)
		s.mu.Lock()
		s.pendingDeps[t.ID] = pending
		s.mu.Unlock()
		return nil
	}

	t.SetState(domain.StateReady)
	_, mismatch, err := s.precheck(t)
	if err != nil {
		s.finalize(t, domain.StateFailed, err)
		return err
	}
	if mismatch != nil {
		s.finalize(t, domain.StateFailed, mismatch)
		return mismatch
	}

	s.dispatch(t)
	return nil
}

// precheck computes t's identity fingerprint (deps must already be
// terminal-success at this point) and, for a task with declared targets,
// checks whether an existing record under that fingerprint declares a
// different target set without CopyDuplicateArtifact to justify it.
func (s *Scheduler) precheck(t *domain.Task) (fingerprint string, mismatch error, err error) {
	fp, err := s.fingerprintFor(t)
	if err != nil {
		return "", nil, err
	}
	if len(t.TargetPaths) == 0 {
		return fp, nil, nil
	}

	rec, err := s.store.Lookup(fp)
	if err != nil {
		return "", nil, err
	}
	if rec != nil && !samePathSet(rec.TargetPaths, t.TargetPaths) && !canReuseArtifact(t) {
		return "", zerr.With(domain.ErrDuplicateTargetMismatch, "fingerprint", fp), nil
	}
	return fp, nil, nil
}

func canReuseArtifact(t *domain.Task) bool {
	return t.CopyDuplicateArtifact && t.HashAlg.IsContentHash()
}

// fingerprintFor derives t's identity hash from its function identity,
// normalized args/kwargs, and its deps' fingerprints. Declared target paths
// deliberately do not feed this hash: doing so would make a
// target-set mismatch between two otherwise-identical submissions
// structurally impossible to detect, which is exactly what
// DuplicateTargetMismatch exists to catch.
func (s *Scheduler) fingerprintFor(t *domain.Task) (string, error) {
	depFPs := s.depFingerprints(t)
	return s.fingerprinter.Fingerprint(t.Func, t.Args, t.Kwargs, t.IgnorePaths, nil, depFPs, t.HashAlg)
}

func (s *Scheduler) depFingerprints(t *domain.Task) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	fps := make([]string, len(t.Deps))
	for i, id := range t.Deps {
		fps[i] = s.tasks[id].Fingerprint()
	}
	return fps
}

// dispatch marks t dispatched and launches its execution goroutine, unless
// the graph has already determined t's fate via fail-fast (tainted), in
// which case it is finalized as FAILED without ever touching the executor.
func (s *Scheduler) dispatch(t *domain.Task) {
	s.mu.Lock()
	if s.dispatched[t.ID] {
		s.mu.Unlock()
		return
	}
	s.dispatched[t.ID] = true
	cause, tainted := s.tainted[t.ID]
	s.mu.Unlock()

	if tainted {
		s.finalize(t, domain.StateFailed, wrapUpstream(cause))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			s.finalize(t, domain.StateFailed, s.ctx.Err())
			return
		}
		defer func() { <-s.sem }()
		s.runTask(t)
	}()
}

// runTask is the body of a single dispatched task: fingerprint, memo check,
// execute-on-miss, verify declared outputs, record, finalize. It runs on its
// own goroutine, gated by sem.
func (s *Scheduler) runTask(t *domain.Task) {
	fp, err := s.fingerprintFor(t)
	if err != nil {
		s.finalize(t, domain.StateFailed, err)
		return
	}
	t.SetFingerprint(fp)

	if cause, tainted := s.checkTainted(t.ID); tainted {
		s.finalize(t, domain.StateFailed, wrapUpstream(cause))
		return
	}

	if len(t.TargetPaths) > 0 {
		hit, err := s.tryMemoHit(t, fp)
		if err != nil {
			s.finalize(t, domain.StateFailed, err)
			return
		}
		if hit {
			s.logger.Info(fmt.Sprintf("skipping %s (memoized)", t.Name.String()))
			s.finalize(t, domain.StateSkipped, nil)
			return
		}
	}

	t.SetState(domain.StateRunning)

	if t.HasFunc {
		if err := s.runUserFunc(t); err != nil {
			s.finalize(t, domain.StateFailed, err)
			return
		}
	}

	if len(t.TargetPaths) > 0 {
		missing, err := firstMissingPath(t.TargetPaths)
		if err != nil {
			s.finalize(t, domain.StateFailed, err)
			return
		}
		if missing != "" {
			s.finalize(t, domain.StateFailed, zerr.With(domain.ErrMissingTargetOutput, "path", missing))
			return
		}

		stats, err := s.fingerprinter.StatTargets(t.TargetPaths, t.IgnorePaths, t.HashAlg)
		if err != nil {
			s.finalize(t, domain.StateFailed, err)
			return
		}

		rec := domain.Record{
			Fingerprint: fp,
			TargetPaths: append([]string(nil), t.TargetPaths...),
			TargetStats: stats,
			Timestamp:   time.Now(),
		}
		if err := s.store.Insert(rec); err != nil {
			s.logger.Error(zerr.With(zerr.Wrap(err, "failed to record completed task"), "task", t.Name.String()))
		}
	}

	if cause, tainted := s.checkTainted(t.ID); tainted {
		s.finalize(t, domain.StateFailed, wrapUpstream(cause))
		return
	}

	s.finalize(t, domain.StateSucceeded, nil)
}

// tryMemoHit implements the reuse rules: a hit with a matching target set and
// unchanged on-disk stats skips the task; a hit with a different target set
// is satisfied by copying bytes from the recorded artifact when the task
// opted in; a hit whose recorded stats no longer match current disk state is
// stale and is evicted, falling through to a miss.
func (s *Scheduler) tryMemoHit(t *domain.Task, fp string) (bool, error) {
	rec, err := s.store.Lookup(fp)
	if err != nil || rec == nil {
		return false, err
	}

	if !samePathSet(rec.TargetPaths, t.TargetPaths) {
		if !canReuseArtifact(t) {
			return false, zerr.With(domain.ErrDuplicateTargetMismatch, "fingerprint", fp)
		}
		copied, err := s.copyArtifact(rec, t)
		if err != nil {
			return false, err
		}
		if !copied {
			// No on-disk artifact still matches the recorded content
			// hashes; evict the stale record and re-run.
			if err := s.store.Delete(fp); err != nil {
				s.logger.Error(zerr.Wrap(err, "failed to evict stale memo record"))
			}
			return false, nil
		}
		return true, nil
	}

	curStats, err := s.fingerprinter.StatTargets(t.TargetPaths, t.IgnorePaths, t.HashAlg)
	if err != nil {
		return false, err
	}
	if !statsEqual(rec.TargetStats, curStats) {
		if err := s.store.Delete(fp); err != nil {
			s.logger.Error(zerr.Wrap(err, "failed to evict stale memo record"))
		}
		return false, nil
	}

	return true, nil
}

// runUserFunc executes t.Func, retrying on failure per t.MaxRetries with an
// exponentially growing delay between attempts.
func (s *Scheduler) runUserFunc(t *domain.Task) error {
	bo := backoff.NewExponentialBackOff()
	for {
		_, err := s.executor.Execute(s.ctx, t)
		if err == nil {
			return nil
		}
		if !t.ConsumeRetry() {
			return err
		}

		delay := bo.NextBackOff()
		s.logger.Warn(fmt.Sprintf("task %s failed, retrying in %s: %v", t.Name.String(), delay, err))
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

// checkTainted reports whether id has been marked as a transitive dependent
// of an already-failed task by cascadeFail.
func (s *Scheduler) checkTainted(id int64) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cause, ok := s.tainted[id]
	return cause, ok
}

// finalize transitions t to a terminal state exactly once and drives the
// rest of the state machine from that transition: releasing Join waiters,
// advancing ready dependents, or cascading a failure.
func (s *Scheduler) finalize(t *domain.Task, state domain.State, err error) {
	if !t.MarkTerminal(state, err) {
		return
	}
	s.onTerminal(t, state, err)
}

func (s *Scheduler) onTerminal(t *domain.Task, state domain.State, err error) {
	s.mu.Lock()
	s.outstanding--
	dependents := append([]int64(nil), s.dependents[t.ID]...)
	if state == domain.StateFailed && s.termErr == nil {
		s.termErr = err
	}
	quiesced := s.outstanding == 0
	if quiesced {
		close(s.quiescentCh)
		s.quiescentCh = make(chan struct{})
	}
	s.mu.Unlock()

	if state == domain.StateFailed {
		s.logger.Warn(fmt.Sprintf("task %s failed: %v", t.Name.String(), err))
		s.cascadeFail(t.ID, err)
		return
	}

	for _, depID := range dependents {
		s.mu.Lock()
		if _, tainted := s.tainted[depID]; tainted {
			s.mu.Unlock()
			continue
		}
		dep, ok := s.tasks[depID]
		if !ok {
			s.mu.Unlock()
			continue
		}
		s.pendingDeps[depID]--
		ready := s.pendingDeps[depID] == 0
		s.mu.Unlock()

		if ready {
			dep.SetState(domain.StateReady)
			s.dispatch(dep)
		}
	}
}

// cascadeFail walks the transitive dependents of a just-failed task, taints
// every non-terminal one, and immediately finalizes as FAILED any that have
// not yet been dispatched. Tasks already dispatched (running, or racing to
// complete) are left to finish; their own completion path checks
// checkTainted before recording a success.
func (s *Scheduler) cascadeFail(startID int64, cause error) {
	s.mu.Lock()
	queue := append([]int64(nil), s.dependents[startID]...)
	var toFinalize []*domain.Task
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		t, ok := s.tasks[id]
		if !ok || t.State().Terminal() {
			continue
		}
		if _, already := s.tainted[id]; already {
			continue
		}
		s.tainted[id] = cause
		if !s.dispatched[id] {
			toFinalize = append(toFinalize, t)
		}
		queue = append(queue, s.dependents[id]...)
	}
	s.mu.Unlock()

	for _, t := range toFinalize {
		s.finalize(t, domain.StateFailed, wrapUpstream(cause))
	}
}

// Join blocks until every submitted task has reached a terminal state, or
// ctx is done. It returns (true, cause) once quiescent, where cause is the
// error of the first task that exhausted its retries (nil if every task
// succeeded or was skipped); repeated calls after quiescence return the same
// cause immediately.
func (s *Scheduler) Join(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.outstanding == 0 {
		err := s.termErr
		s.mu.Unlock()
		return true, err
	}
	ch := s.quiescentCh
	s.mu.Unlock()

	select {
	case <-ch:
		s.mu.Lock()
		err := s.termErr
		s.mu.Unlock()
		return true, err
	case <-ctx.Done():
		return false, nil
	}
}

// Err returns the first fail-fast cause recorded so far, or nil.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termErr
}

// Snapshot returns the current count of tasks per state, for the periodic
// progress reporter.
func (s *Scheduler) Snapshot() map[domain.State]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.State]int, 6)
	for _, t := range s.tasks {
		counts[t.State()]++
	}
	return counts
}

// Terminate hard-kills the worker pool (if the executor has one) and
// releases every goroutine blocked on retry backoff or worker dispatch.
// Safe to call multiple times; idempotent via sync.Once.
func (s *Scheduler) Terminate() {
	s.once.Do(func() {
		s.cancel()
		if term, ok := s.executor.(terminator); ok {
			term.Terminate()
		}
	})
	s.wg.Wait()
}

func wrapUpstream(cause error) error {
	if cause == nil {
		return domain.ErrUserTaskFailure
	}
	return zerr.Wrap(cause, "upstream task failed")
}

func samePathSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	ca := make([]string, len(a))
	for i, p := range a {
		ca[i] = canonPath(p)
	}
	cb := make([]string, len(b))
	for i, p := range b {
		cb[i] = canonPath(p)
	}
	sort.Strings(ca)
	sort.Strings(cb)
	for i := range ca {
		if ca[i] != cb[i] {
			return false
		}
	}
	return true
}

func canonPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return filepath.Clean(abs)
}

func statsEqual(a, b []domain.FileStat) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path ||
			a[i].Size != b[i].Size ||
			a[i].ModTimeNano != b[i].ModTimeNano ||
			a[i].ContentHash != b[i].ContentHash {
			return false
		}
	}
	return true
}

// firstMissingPath returns the first declared path that does not name an
// existing filesystem entry, or "" if all exist.
func firstMissingPath(paths []string) (string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return p, nil
			}
			return "", err
		}
	}
	return "", nil
}

// copyArtifact copies bytes from each of rec's recorded target paths to the
// correspondingly-positioned path in t.TargetPaths, implementing the
// artifact-reuse law: the two target lists are assumed to describe the same
// computation's outputs in the same declared order. Each source must still
// match its recorded content hash; a drifted source is resolved through the
// store's by-content index before giving up. Returns false (with a nil
// error) when no matching artifact remains on disk.
func (s *Scheduler) copyArtifact(rec *domain.Record, t *domain.Task) (bool, error) {
	if len(rec.TargetPaths) != len(t.TargetPaths) {
		return false, zerr.With(domain.ErrDuplicateTargetMismatch, "reason", "target count differs, cannot reuse artifact")
	}

	statByPath := make(map[string]domain.FileStat, len(rec.TargetStats))
	for _, stat := range rec.TargetStats {
		statByPath[stat.Path] = stat
	}

	for i, dst := range t.TargetPaths {
		recorded, ok := statByPath[canonPath(rec.TargetPaths[i])]
		if !ok {
			return false, nil
		}
		src, ok := s.artifactSource(recorded, t.HashAlg)
		if !ok {
			return false, nil
		}
		if err := copyFile(src, dst); err != nil {
			return false, zerr.Wrap(err, "failed to copy duplicate artifact")
		}
	}
	return true, nil
}

// artifactSource returns an on-disk path whose current content still
// matches the recorded content hash, preferring the recorded path and
// falling back to the store's by-content index when that file has since
// been modified or removed.
func (s *Scheduler) artifactSource(recorded domain.FileStat, alg domain.HashAlgorithm) (string, bool) {
	if s.contentMatches(recorded.Path, recorded.ContentHash, alg) {
		return recorded.Path, true
	}

	alt, err := s.store.FindByContent(recorded.ContentHash)
	if err != nil || alt == nil {
		return "", false
	}
	for _, stat := range alt.TargetStats {
		if stat.ContentHash == recorded.ContentHash && s.contentMatches(stat.Path, recorded.ContentHash, alg) {
			return stat.Path, true
		}
	}
	return "", false
}

func (s *Scheduler) contentMatches(path, wantHash string, alg domain.HashAlgorithm) bool {
	if wantHash == "" {
		return false
	}
	stats, err := s.fingerprinter.StatTargets([]string{path}, nil, alg)
	if err != nil || len(stats) != 1 {
		return false
	}
	return stats[0].ContentHash == wantHash
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src) //nolint:gosec // src is a previously-recorded, caller-declared target path
	if err != nil {
		return err
	}
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(dst, data, 0o644) //nolint:gosec // task output artifact, not sensitive
}
