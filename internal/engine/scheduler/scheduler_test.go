package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phargogh/taskgraph/internal/adapters/fingerprint"
	"github.com/phargogh/taskgraph/internal/adapters/logger"
	"github.com/phargogh/taskgraph/internal/adapters/memostore"
	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/engine/worker"
)

func newTestScheduler(t *testing.T, concurrency int) (*Scheduler, *memostore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := memostore.Open(filepath.Join(dir, domain.DatabaseFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := logger.New()
	log.SetOutput(io.Discard)

	s := New(worker.NewInlineExecutor(), store, fingerprint.New(), log, concurrency)
	return s, store
}

func writeFileTask(id int64, name, path string, body []byte, deps []int64) *domain.Task {
	funcName := "scheduler_test.write_" + name
	worker.Register(funcName, func(_ context.Context, _, _ domain.Value) error {
		return os.WriteFile(path, body, 0o644)
	})

	tsk := domain.NewTask(id, name)
	tsk.HasFunc = true
	tsk.Func = domain.FuncID{QualifiedName: funcName}
	tsk.TargetPaths = []string{path}
	tsk.Deps = deps
	tsk.InitRetries()
	return tsk
}

func TestScheduler_SingleTaskSucceeds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)
		dir := t.TempDir()
		out := filepath.Join(dir, "out.dat")

		tsk := writeFileTask(1, "write", out, []byte("hello"), nil)
		require.NoError(t, s.Submit(tsk))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)
		require.Equal(t, domain.StateSucceeded, tsk.State())

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		require.Equal(t, "hello", string(data))
	})
}

func TestScheduler_EmptyTaskSucceedsWithoutMemo(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, store := newTestScheduler(t, 1)
		tsk := domain.NewTask(1, "empty")
		tsk.InitRetries()

		require.NoError(t, s.Submit(tsk))
		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)
		require.Equal(t, domain.StateSucceeded, tsk.State())

		rec, err := store.Lookup(tsk.Fingerprint())
		require.NoError(t, err)
		require.Nil(t, rec)
	})
}

func TestScheduler_SecondRunSkipsViaMemo(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dir := t.TempDir()
		storePath := filepath.Join(dir, domain.DatabaseFileName)
		out := filepath.Join(dir, "out.dat")

		runOnce := func() *domain.Task {
			store, err := memostore.Open(storePath)
			require.NoError(t, err)
			defer store.Close()

			log := logger.New()
			log.SetOutput(io.Discard)
			s := New(worker.NewInlineExecutor(), store, fingerprint.New(), log, 1)

			tsk := writeFileTask(1, "write", out, []byte("hello"), nil)
			require.NoError(t, s.Submit(tsk))
			ok, err := s.Join(context.Background())
			require.True(t, ok)
			require.NoError(t, err)
			return tsk
		}

		first := runOnce()
		require.Equal(t, domain.StateSucceeded, first.State())

		info, err := os.Stat(out)
		require.NoError(t, err)
		mtimeAfterFirstRun := info.ModTime()

		second := runOnce()
		require.Equal(t, domain.StateSkipped, second.State())

		info, err = os.Stat(out)
		require.NoError(t, err)
		require.Equal(t, mtimeAfterFirstRun, info.ModTime(), "mtime must not change on a memoized re-run")
	})
}

func TestScheduler_TargetlessTaskAlwaysReexecutes(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)
		var calls int
		worker.Register("scheduler_test.count", func(_ context.Context, _, _ domain.Value) error {
			calls++
			return nil
		})

		run := func(id int64) domain.State {
			tsk := domain.NewTask(id, "count")
			tsk.HasFunc = true
			tsk.Func = domain.FuncID{QualifiedName: "scheduler_test.count"}
			tsk.InitRetries()
			require.NoError(t, s.Submit(tsk))
			ok, err := s.Join(context.Background())
			require.True(t, ok)
			require.NoError(t, err)
			return tsk.State()
		}

		require.Equal(t, domain.StateSucceeded, run(1))
		require.Equal(t, domain.StateSucceeded, run(2))
		require.Equal(t, 2, calls)
	})
}

func TestScheduler_FailFastPropagatesToDependents(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 2)

		boom := errors.New("division by zero")
		worker.Register("scheduler_test.divByZero", func(_ context.Context, _, _ domain.Value) error {
			return boom
		})
		var yRan bool
		worker.Register("scheduler_test.y", func(_ context.Context, _, _ domain.Value) error {
			yRan = true
			return nil
		})

		taskA := domain.NewTask(1, "A")
		taskA.InitRetries()
		require.NoError(t, s.Submit(taskA))

		taskX := domain.NewTask(2, "X")
		taskX.HasFunc = true
		taskX.Func = domain.FuncID{QualifiedName: "scheduler_test.divByZero"}
		taskX.Deps = []int64{taskA.ID}
		taskX.InitRetries()
		require.NoError(t, s.Submit(taskX))

		taskY := domain.NewTask(3, "Y")
		taskY.HasFunc = true
		taskY.Func = domain.FuncID{QualifiedName: "scheduler_test.y"}
		taskY.Deps = []int64{taskX.ID}
		taskY.InitRetries()
		require.NoError(t, s.Submit(taskY))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.Error(t, err)
		require.ErrorIs(t, err, boom)

		require.Equal(t, domain.StateFailed, taskX.State())
		require.Equal(t, domain.StateFailed, taskY.State())
		require.False(t, yRan)
	})
}

func TestScheduler_RetrySucceedsBeforeExhaustion(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)

		attempts := 0
		worker.Register("scheduler_test.failFour", func(_ context.Context, _, _ domain.Value) error {
			attempts++
			if attempts < 5 {
				return errors.New("not yet")
			}
			return nil
		})

		tsk := domain.NewTask(1, "flaky")
		tsk.HasFunc = true
		tsk.Func = domain.FuncID{QualifiedName: "scheduler_test.failFour"}
		tsk.MaxRetries = 5
		tsk.InitRetries()
		require.NoError(t, s.Submit(tsk))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)
		require.Equal(t, domain.StateSucceeded, tsk.State())
		require.Equal(t, 5, attempts)
	})
}

func TestScheduler_RetryExhaustionFails(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)

		boom := errors.New("always fails")
		worker.Register("scheduler_test.alwaysFails", func(_ context.Context, _, _ domain.Value) error {
			return boom
		})

		tsk := domain.NewTask(1, "broken")
		tsk.HasFunc = true
		tsk.Func = domain.FuncID{QualifiedName: "scheduler_test.alwaysFails"}
		tsk.MaxRetries = 2
		tsk.InitRetries()
		require.NoError(t, s.Submit(tsk))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.ErrorIs(t, err, boom)
		require.Equal(t, domain.StateFailed, tsk.State())
	})
}

func TestScheduler_MissingTargetOutputFails(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)

		worker.Register("scheduler_test.noop", func(_ context.Context, _, _ domain.Value) error {
			return nil
		})

		tsk := domain.NewTask(1, "noop")
		tsk.HasFunc = true
		tsk.Func = domain.FuncID{QualifiedName: "scheduler_test.noop"}
		tsk.TargetPaths = []string{filepath.Join(t.TempDir(), "never-created.dat")}
		tsk.InitRetries()
		require.NoError(t, s.Submit(tsk))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.ErrorIs(t, err, domain.ErrMissingTargetOutput)
		require.Equal(t, domain.StateFailed, tsk.State())
	})
}

func TestScheduler_DuplicateTargetMismatchSynchronous(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)
		dir := t.TempDir()

		worker.Register("scheduler_test.dup", func(_ context.Context, _, _ domain.Value) error {
			return nil
		})

		first := domain.NewTask(1, "first")
		first.HasFunc = true
		first.Func = domain.FuncID{QualifiedName: "scheduler_test.dup"}
		first.TargetPaths = []string{filepath.Join(dir, "a.dat")}
		first.InitRetries()
		require.NoError(t, s.Submit(first))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)

		second := domain.NewTask(2, "second")
		second.HasFunc = true
		second.Func = domain.FuncID{QualifiedName: "scheduler_test.dup"}
		second.TargetPaths = []string{filepath.Join(dir, "a.dat"), filepath.Join(dir, "b.dat")}
		second.InitRetries()

		err = s.Submit(second)
		require.ErrorIs(t, err, domain.ErrDuplicateTargetMismatch)
	})
}

func TestScheduler_CopyDuplicateArtifactReusesBytes(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)
		dir := t.TempDir()

		var calls int
		worker.Register("scheduler_test.contentTask", func(_ context.Context, _, _ domain.Value) error {
			calls++
			return os.WriteFile(filepath.Join(dir, "a.dat"), []byte("payload"), 0o644)
		})

		first := domain.NewTask(1, "first")
		first.HasFunc = true
		first.Func = domain.FuncID{QualifiedName: "scheduler_test.contentTask"}
		first.TargetPaths = []string{filepath.Join(dir, "a.dat")}
		first.HashAlg = domain.HashSHA256
		first.CopyDuplicateArtifact = true
		first.InitRetries()
		require.NoError(t, s.Submit(first))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)

		second := domain.NewTask(2, "second")
		second.HasFunc = true
		second.Func = domain.FuncID{QualifiedName: "scheduler_test.contentTask"}
		second.TargetPaths = []string{filepath.Join(dir, "b.dat")}
		second.HashAlg = domain.HashSHA256
		second.CopyDuplicateArtifact = true
		second.InitRetries()
		require.NoError(t, s.Submit(second))

		ok, err = s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)
		require.Equal(t, domain.StateSkipped, second.State())
		require.Equal(t, 1, calls, "the user function must run only once across both submissions")

		data, err := os.ReadFile(filepath.Join(dir, "b.dat"))
		require.NoError(t, err)
		require.Equal(t, "payload", string(data))
	})
}

func TestScheduler_JoinTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)

		release := make(chan struct{})
		worker.Register("scheduler_test.blocks", func(ctx context.Context, _, _ domain.Value) error {
			<-release
			return nil
		})

		tsk := domain.NewTask(1, "blocks")
		tsk.HasFunc = true
		tsk.Func = domain.FuncID{QualifiedName: "scheduler_test.blocks"}
		tsk.InitRetries()
		require.NoError(t, s.Submit(tsk))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		ok, err := s.Join(ctx)
		require.False(t, ok)
		require.NoError(t, err)

		close(release)
		ok, err = s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)
	})
}

func TestScheduler_ArtifactReuseFallsBackToContentIndex(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := newTestScheduler(t, 1)
		dir := t.TempDir()
		a := filepath.Join(dir, "a.dat")
		b := filepath.Join(dir, "b.dat")
		c := filepath.Join(dir, "c.dat")

		var v1Calls int
		worker.Register("scheduler_test.artifactV1", func(_ context.Context, _, _ domain.Value) error {
			v1Calls++
			return os.WriteFile(a, []byte("shared payload"), 0o644)
		})
		worker.Register("scheduler_test.artifactV2", func(_ context.Context, _, _ domain.Value) error {
			return os.WriteFile(b, []byte("shared payload"), 0o644)
		})

		contentTask := func(id int64, funcName, target string) *domain.Task {
			tsk := domain.NewTask(id, funcName)
			tsk.HasFunc = true
			tsk.Func = domain.FuncID{QualifiedName: funcName}
			tsk.TargetPaths = []string{target}
			tsk.HashAlg = domain.HashSHA256
			tsk.CopyDuplicateArtifact = true
			tsk.InitRetries()
			return tsk
		}

		require.NoError(t, s.Submit(contentTask(1, "scheduler_test.artifactV1", a)))
		require.NoError(t, s.Submit(contentTask(2, "scheduler_test.artifactV2", b)))
		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)

		// The recorded source for the first fingerprint no longer matches
		// its content hash; only the by-content index still knows where an
		// intact copy of those bytes lives.
		require.NoError(t, os.WriteFile(a, []byte("tampered"), 0o644))

		third := contentTask(3, "scheduler_test.artifactV1", c)
		require.NoError(t, s.Submit(third))
		ok, err = s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)

		require.Equal(t, domain.StateSkipped, third.State())
		require.Equal(t, 1, v1Calls)

		data, err := os.ReadFile(c)
		require.NoError(t, err)
		require.Equal(t, "shared payload", string(data))
	})
}
