package logbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
)

// Bridge drains one worker process's log pipe and forwards each record to
// the parent's logger sink, tagging it with a logical process name so its
// origin is observable even though ports.Logger carries no structured
// fields of its own.
type Bridge struct {
	logger      ports.Logger
	processName string
}

// NewBridge creates a Bridge that tags every forwarded record with
// processName (e.g. "taskgraph-worker-3").
func NewBridge(logger ports.Logger, processName string) *Bridge {
	return &Bridge{logger: logger, processName: processName}
}

// Drain scans r line by line, decoding each as a Record and forwarding it
// to the logger, until r is exhausted or ctx is done. It is meant to run in
// its own goroutine, one per live worker process.
func (b *Bridge) Drain(ctx context.Context, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			b.forward(line)
		}
	}
}

func (b *Bridge) forward(line string) {
	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		// Not a structured record (e.g. a crash dump to stderr); forward it
		// verbatim rather than drop it.
		b.logger.Info(b.tag(line))
		return
	}

	msg := b.tag(rec.Message)
	switch rec.Level {
	case LevelWarn:
		b.logger.Warn(msg)
	case LevelError:
		b.logger.Error(fmt.Errorf("%s", msg))
	default:
		b.logger.Info(msg)
	}
}

func (b *Bridge) tag(msg string) string {
	return fmt.Sprintf("[%s] %s", b.processName, msg)
}

// Reporter periodically emits a progress snapshot (counts per State) to the
// logger sink until its context is cancelled.
type Reporter struct {
	logger   ports.Logger
	interval time.Duration
	snapshot func() map[domain.State]int

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewReporter creates a Reporter that calls snapshot every interval.
func NewReporter(logger ports.Logger, interval time.Duration, snapshot func() map[domain.State]int) *Reporter {
	return &Reporter{
		logger:   logger,
		interval: interval,
		snapshot: snapshot,
		done:     make(chan struct{}),
	}
}

// Run blocks, emitting progress reports on the configured interval, until
// ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	counts := r.snapshot()
	r.logger.Info(fmt.Sprintf(
		"progress: pending=%d ready=%d running=%d succeeded=%d failed=%d skipped=%d",
		counts[domain.StatePending], counts[domain.StateReady], counts[domain.StateRunning],
		counts[domain.StateSucceeded], counts[domain.StateFailed], counts[domain.StateSkipped],
	))
}

// Wait blocks until Run has returned, for use during teardown.
func (r *Reporter) Wait() {
	<-r.done
}
