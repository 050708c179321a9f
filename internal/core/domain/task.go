package domain

import (
	"context"
	"sync"
)

// FuncID is the stable identity of a task's function: a qualified name
// registered once at process startup, plus a caller-supplied digest that
// changes when the function's behavior changes. Go has no runtime source
// introspection, so SourceHash stands in for a source-text hash:
// rebinding QualifiedName to a new code pointer between runs never
// changes a Task's fingerprint, but bumping SourceHash does.
type FuncID struct {
	QualifiedName string
	SourceHash    string
}

// Task is the in-memory node of the task graph: a function plus arguments,
// declared outputs, upstream deps, and the mutable runtime state the
// Scheduler drives it through. Deps reference upstream tasks by arena index
// rather than by pointer, so the graph has no cyclic ownership to unwind at
// teardown.
type Task struct {
	ID                    int64
	Name                  InternedString // label only, never part of identity
	Func                  FuncID
	HasFunc               bool // false for an "empty task": succeeds immediately
	Args                  Value
	Kwargs                Value
	TargetPaths           []string
	IgnorePaths           []string
	Deps                  []int64
	HashAlg               HashAlgorithm
	CopyDuplicateArtifact bool
	MaxRetries            int

	mu          sync.RWMutex
	state       State
	fingerprint string
	retries     int
	err         error
	done        chan struct{}
	closed      bool
}

// NewTask allocates a Task in its initial Pending state. Callers finish
// populating its fields before the Scheduler ever observes it.
func NewTask(id int64, name string) *Task {
	return &Task{
		ID:    id,
		Name:  NewInternedString(name),
		state: StatePending,
		done:  make(chan struct{}),
	}
}

// InitRetries seeds the remaining-retry counter from MaxRetries. Called once
// after MaxRetries has been set, before the task is registered for
// scheduling.
func (t *Task) InitRetries() {
	t.mu.Lock()
	t.retries = t.MaxRetries
	t.mu.Unlock()
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SetState transitions the task to a non-terminal state. Terminal
// transitions go through MarkTerminal so Join waiters are released.
func (t *Task) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Fingerprint returns the task's identity hash, or "" before it has been
// computed (i.e. before all deps have reached a terminal, non-failed state).
func (t *Task) Fingerprint() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fingerprint
}

// SetFingerprint assigns the task's fingerprint. This must happen exactly
// once in a task's lifetime.
func (t *Task) SetFingerprint(fp string) {
	t.mu.Lock()
	t.fingerprint = fp
	t.mu.Unlock()
}

// RetriesRemaining reports how many more attempts a failed task may make.
func (t *Task) RetriesRemaining() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.retries
}

// ConsumeRetry decrements the remaining-retry counter and reports whether a
// retry was available to consume.
func (t *Task) ConsumeRetry() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retries <= 0 {
		return false
	}
	t.retries--
	return true
}

// Err returns the error a failed task terminated with, or nil.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// MarkTerminal transitions the task to a terminal state, records its error
// (nil on success or skip), and releases any goroutines blocked in Join. It
// reports whether this call performed the transition: a task can be
// finalized at most once (e.g. fail-fast propagation and the task's own
// in-flight completion can race to call MarkTerminal on the same task), and
// the Scheduler uses this return value to decide whether to cascade to
// dependents or discard a now-moot result.
func (t *Task) MarkTerminal(state State, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.state = state
	t.err = err
	close(t.done)
	t.closed = true
	return true
}

// Join blocks until the task reaches a terminal state or ctx is done,
// reporting whether it reached one in time.
func (t *Task) Join(ctx context.Context) (bool, error) {
	select {
	case <-t.done:
		return true, t.Err()
	case <-ctx.Done():
		return false, nil
	}
}

// Equal reports whether two tasks carry the same, already-computed
// fingerprint.
func (t *Task) Equal(other *Task) bool {
	if other == nil {
		return false
	}
	fp := t.Fingerprint()
	return fp != "" && fp == other.Fingerprint()
}
