package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
	"github.com/phargogh/taskgraph/internal/adapters/logbridge"
)

// EnvWorkerFlag is set (to "1") on every child process this package spawns,
// and on nothing else. RunWorker checks for it to decide whether the
// current process should re-enter as a worker loop instead of running the
// host binary's own main.
const EnvWorkerFlag = "TASKGRAPH_WORKER_FUNC"

// Pool is a fixed-size, pre-forked pool of OS processes running a fresh
// copy of the current binary, each re-entering RunWorker via EnvWorkerFlag.
// Work units and results cross each child's stdin/stdout as length-prefixed
// gob frames (protocol.go); each child's stderr is bridged to the caller's
// logger by internal/adapters/logbridge.
type Pool struct {
	logger ports.Logger

	mu      sync.Mutex
	procs   []*child
	avail   chan *child
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	nextIdx int
}

type child struct {
	idx    int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	mu     sync.Mutex
}

// NewPool pre-forks n worker child processes.
func NewPool(n int, logger ports.Logger) (*Pool, error) {
	if n < 1 {
		return nil, zerr.With(zerr.New("pool size must be at least 1"), "n_workers", n)
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve worker executable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger: logger,
		avail:  make(chan *child, n),
		ctx:    ctx,
		cancel: cancel,
	}

	children := make([]*child, n)
	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		c := &child{idx: i}
		children[i] = c
		g.Go(func() error { return p.start(exe, c) })
	}
	err = g.Wait()

	p.mu.Lock()
	p.procs = children
	p.nextIdx = n
	p.mu.Unlock()

	if err != nil {
		p.Terminate()
		return nil, err
	}
	for _, c := range children {
		p.avail <- c
	}

	return p, nil
}

// start launches a fresh worker process into c, overwriting any prior
// cmd/stdin/stdout. c.idx and its identity are preserved so a respawn after
// a crash never invalidates references already sitting in p.avail.
func (p *Pool) start(exe string, c *child) error {
	cmd := exec.CommandContext(p.ctx, exe) //nolint:gosec // re-execs the current trusted binary
	cmd.Env = append(os.Environ(), EnvWorkerFlag+"=1")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return zerr.Wrap(err, "failed to open worker stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return zerr.Wrap(err, "failed to open worker stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return zerr.Wrap(err, "failed to open worker stderr")
	}

	if err := cmd.Start(); err != nil {
		return zerr.Wrap(err, "failed to start worker process")
	}

	c.cmd, c.stdin, c.stdout = cmd, stdin, stdout

	bridge := logbridge.NewBridge(p.logger, fmt.Sprintf("taskgraph-worker-%d", c.idx))
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		bridge.Drain(p.ctx, stderr)
	}()

	return nil
}

var _ ports.Executor = (*Pool)(nil)

// Execute dispatches task to a free child process and blocks for its
// result, honoring ctx for cancellation.
func (p *Pool) Execute(ctx context.Context, task *domain.Task) (ports.Outcome, error) {
	if !task.HasFunc {
		return ports.Outcome{}, nil
	}

	select {
	case c := <-p.avail:
		outcome, err := p.dispatch(ctx, c, task)
		p.avail <- c
		return outcome, err
	case <-ctx.Done():
		return ports.Outcome{}, ctx.Err()
	case <-p.ctx.Done():
		return ports.Outcome{}, zerr.New("worker pool terminated")
	}
}

func (p *Pool) dispatch(ctx context.Context, c *child, task *domain.Task) (ports.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unit := WorkUnit{FuncName: task.Func.QualifiedName, Args: task.Args, Kwargs: task.Kwargs}
	if err := WriteFrame(c.stdin, &unit); err != nil {
		p.replace(c)
		return ports.Outcome{}, domain.WrapUserFailure(err)
	}

	type frameResult struct {
		res WorkResult
		err error
	}
	resultCh := make(chan frameResult, 1)
	go func() {
		var res WorkResult
		err := ReadFrame(c.stdout, &res)
		resultCh <- frameResult{res, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			// The child died, was signal-killed, or otherwise never wrote a
			// result. Treated as a user task failure (subject to retry),
			// not a pool-fatal error, with a synthetic message standing in
			// for whatever the process would have reported.
			p.replace(c)
			return ports.Outcome{}, zerr.With(
				domain.WrapUserFailure(errors.New("worker process exited without returning a result")),
				"cause", r.err.Error(),
			)
		}
		if r.res.Err != "" {
			return ports.Outcome{}, domain.WrapUserFailure(errors.New(r.res.Err))
		}
		return ports.Outcome{}, nil
	case <-ctx.Done():
		return ports.Outcome{}, ctx.Err()
	}
}

// replace kills c's process and respawns a new one into the same *child,
// so the reference already waiting in p.avail becomes live again rather
// than pointing at a permanently broken pipe.
func (p *Pool) replace(c *child) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}

	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}

	exe, err := os.Executable()
	if err != nil {
		return
	}
	_ = p.start(exe, c)
}

// Terminate hard-kills every worker process. Safe to call multiple times.
func (p *Pool) Terminate() {
	p.cancel()

	p.mu.Lock()
	procs := p.procs
	p.mu.Unlock()

	for _, c := range procs {
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	}
	p.wg.Wait()
}
