// Package ports defines the core interfaces the scheduler drives: task
// execution, fingerprinting, durable memoization, and logging.
package ports

import (
	"context"

	"github.com/phargogh/taskgraph/internal/core/domain"
)

// Outcome carries whatever metadata an Executor wants to hand back to the
// Scheduler alongside a nil error. It is currently empty; it exists so
// Execute's signature does not need to change if a future worker mode needs
// to report something beyond "it didn't error."
type Outcome struct{}

// Executor runs a single task's function to completion. The implementations
// in internal/engine/worker are the inline executor (used for n_workers -1
// and 0) and the OS-process pool.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	Execute(ctx context.Context, task *domain.Task) (Outcome, error)
}
