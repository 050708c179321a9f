package worker

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/phargogh/taskgraph/internal/adapters/logbridge"
)

// RunWorker is the small entrypoint a host binary's main must call before
// anything else (before flag parsing, before cobra, before anything that
// might block on stdin). If the current process is not one of this
// package's own pre-forked children, it returns immediately and the host's
// main continues normally; otherwise it never returns: it loops reading
// WorkUnit frames from stdin, executing the registered function, and
// writing a WorkResult frame to stdout, until stdin is closed, then exits
// the process.
func RunWorker() {
	if os.Getenv(EnvWorkerFlag) == "" {
		return
	}

	handler := logbridge.NewHandler(os.Stderr)
	runWorkerLoop(os.Stdin, os.Stdout, handler)
	os.Exit(0)
}

func runWorkerLoop(in io.Reader, out io.Writer, handler *Handler) {
	for {
		var unit WorkUnit
		if err := ReadFrame(in, &unit); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			return
		}

		result := WorkResult{}
		fn, ok := Lookup(unit.FuncName)
		switch {
		case !ok:
			result.Err = "function " + unit.FuncName + " is not registered in this process"
			_ = handler.Error(result.Err)
		default:
			if err := fn(context.Background(), unit.Args, unit.Kwargs); err != nil {
				result.Err = err.Error()
				_ = handler.Error(result.Err)
			} else {
				_ = handler.Info("task completed: " + unit.FuncName)
			}
		}

		if err := WriteFrame(out, &result); err != nil {
			return
		}
	}
}

// Handler is re-exported for worker_main's own use; the logbridge package's
// exported Handler type is otherwise only consumed by this file.
type Handler = logbridge.Handler
