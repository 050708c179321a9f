package worker

import (
	"context"

	"go.trai.ch/zerr"

	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
)

// InlineExecutor runs a task's function synchronously on the calling
// goroutine. It backs both n_workers == -1 and n_workers == 0: in both
// modes the Scheduler calls it from the goroutine it starts for each
// dispatched task, one task at a time. With n_workers == -1, AddTask
// waits for that goroutine to finish the task; the task does not run on
// the caller's own goroutine.
type InlineExecutor struct{}

// NewInlineExecutor creates an InlineExecutor.
func NewInlineExecutor() *InlineExecutor {
	return &InlineExecutor{}
}

var _ ports.Executor = (*InlineExecutor)(nil)

// Execute runs task.Func synchronously. An empty task (no Func) succeeds
// immediately without contributing to the MemoStore.
func (e *InlineExecutor) Execute(ctx context.Context, task *domain.Task) (ports.Outcome, error) {
	if !task.HasFunc {
		return ports.Outcome{}, nil
	}

	fn, ok := Lookup(task.Func.QualifiedName)
	if !ok {
		return ports.Outcome{}, zerr.With(zerr.New("function not registered"), "func_id", task.Func.QualifiedName)
	}

	if err := fn(ctx, task.Args, task.Kwargs); err != nil {
		return ports.Outcome{}, domain.WrapUserFailure(err)
	}

	return ports.Outcome{}, nil
}
