// Package worker implements the graph's execution modes: inline
// (n_workers == -1 or 0, a task running on a Scheduler goroutine one at a
// time), and an OS-process pool (n_workers >= 1). Go has no
// stable way to serialize a function pointer
// across a process boundary, so callers register their functions by a
// stable qualified name before constructing a TaskGraph; both the inline
// and pool paths resolve a Task's FuncID back to a callable through this
// same registry.
package worker

import (
	"context"
	"sync"

	"github.com/phargogh/taskgraph/internal/core/domain"
)

// Func is a registered task body: the callable a Task's FuncID resolves to.
type Func func(ctx context.Context, args, kwargs domain.Value) error

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

// Register associates qualifiedName with fn. It must be called once at
// process startup, before taskgraph.New, for every function any task will
// reference by FuncID.QualifiedName. Registering the same name twice
// replaces the prior registration.
func Register(qualifiedName string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[qualifiedName] = fn
}

// Lookup resolves a qualified name to its registered function.
func Lookup(qualifiedName string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[qualifiedName]
	return fn, ok
}
